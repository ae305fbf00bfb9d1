package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"WhaleSentinel/internal/model"

	"go.uber.org/zap"
)

const (
	DefaultDataAPIURL = "https://data-api.polymarket.com"
	userAgent         = "whale-sentinel/0.1"
)

// DataAPIFetcher implements Fetcher using the public data API trades endpoint.
type DataAPIFetcher struct {
	BaseURL string
	Client  *http.Client
	logger  *zap.Logger
}

// NewDataAPIFetcher creates a new fetcher with optional proxy support.
func NewDataAPIFetcher(logger *zap.Logger, baseURL, proxyURL string, timeout time.Duration) *DataAPIFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseURL == "" {
		baseURL = DefaultDataAPIURL
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
	return &DataAPIFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

func (f *DataAPIFetcher) Name() string { return "data-api" }

// apiTrade is the JSON shape of one record from the trades endpoint.
type apiTrade struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Side            string  `json:"side"`
	Asset           string  `json:"asset"`
	ConditionID     string  `json:"conditionId"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
	Title           string  `json:"title"`
	Slug            string  `json:"slug"`
	EventSlug       string  `json:"eventSlug"`
	Outcome         string  `json:"outcome"`
	TransactionHash string  `json:"transactionHash"`
}

// FetchTrades requests a single page of trades.
func (f *DataAPIFetcher) FetchTrades(ctx context.Context, q TradeQuery) ([]model.Trade, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(f.BaseURL + "/trades")
	if err != nil {
		return nil, fmt.Errorf("invalid data api url: %w", err)
	}
	params := u.Query()
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("takerOnly", strconv.FormatBool(q.TakerOnly))
	if q.FilterType != "" {
		params.Set("filterType", q.FilterType)
		params.Set("filterAmount", strconv.FormatFloat(q.FilterAmount, 'f', -1, 64))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch trades: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
		return nil, fmt.Errorf("fetch trades: status %d, body: %s", resp.StatusCode, string(body))
	}

	var raw []apiTrade
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}

	f.logger.Debug("fetched trades page",
		zap.Int("offset", q.Offset),
		zap.Int("limit", q.Limit),
		zap.Int("count", len(raw)),
	)

	// Records are passed through unfiltered so page length keeps its meaning for the poller.
	trades := make([]model.Trade, 0, len(raw))
	for _, r := range raw {
		trades = append(trades, model.Trade{
			ProxyWallet:     r.ProxyWallet,
			Side:            model.Side(strings.ToUpper(r.Side)),
			Asset:           r.Asset,
			ConditionID:     r.ConditionID,
			Size:            r.Size,
			Price:           r.Price,
			Timestamp:       r.Timestamp,
			Title:           r.Title,
			Slug:            r.Slug,
			EventSlug:       r.EventSlug,
			Outcome:         r.Outcome,
			TransactionHash: r.TransactionHash,
		})
	}
	return trades, nil
}
