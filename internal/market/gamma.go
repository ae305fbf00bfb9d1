package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"WhaleSentinel/internal/calculator"
	"WhaleSentinel/internal/model"
)

const DefaultGammaURL = "https://gamma-api.polymarket.com"

var (
	// ErrMarketNotFound is a definitive upstream answer that the market does not exist.
	ErrMarketNotFound = errors.New("market not found")
	// ErrInvalidStatus means the upstream answered but without a usable closed flag.
	ErrInvalidStatus = errors.New("market status missing closed flag")
)

// StatusFetcher looks up the liveness of one market.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, marketID string) (*model.MarketStatus, error)
}

// GammaFetcher implements StatusFetcher against the gamma markets endpoint.
type GammaFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewGammaFetcher creates a new fetcher with optional proxy support.
func NewGammaFetcher(baseURL, proxyURL string, timeout time.Duration) *GammaFetcher {
	if baseURL == "" {
		baseURL = DefaultGammaURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &GammaFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// gammaMarket is the subset of the gamma market payload the liveness gate needs.
// Closed is a pointer so a missing flag can be told apart from false.
type gammaMarket struct {
	ConditionID string `json:"conditionId"`
	Closed      *bool  `json:"closed"`
	ClosedTime  string `json:"closedTime"`
	EndDate     string `json:"endDate"`
}

// FetchStatus fetches the market identified by its condition id.
func (f *GammaFetcher) FetchStatus(ctx context.Context, marketID string) (*model.MarketStatus, error) {
	marketID = strings.TrimSpace(marketID)
	if marketID == "" {
		return nil, fmt.Errorf("market id is empty")
	}

	u, err := url.Parse(f.BaseURL + "/markets")
	if err != nil {
		return nil, fmt.Errorf("invalid gamma url: %w", err)
	}
	q := u.Query()
	q.Set("condition_ids", marketID)
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch market: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", marketID, ErrMarketNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
		return nil, fmt.Errorf("fetch market: status %d, body: %s", resp.StatusCode, string(body))
	}

	var markets []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		return nil, fmt.Errorf("decode market: %w", err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("%s: %w", marketID, ErrMarketNotFound)
	}

	m := markets[0]
	if m.Closed == nil {
		return nil, fmt.Errorf("%s: %w", marketID, ErrInvalidStatus)
	}
	status := &model.MarketStatus{MarketID: marketID, Closed: *m.Closed}
	if ts, ok := calculator.ParseISOToUnix(m.ClosedTime); ok {
		status.ClosedTime = ts
	}
	if ts, ok := calculator.ParseISOToUnix(m.EndDate); ok {
		status.EndDate = ts
	}
	return status, nil
}
