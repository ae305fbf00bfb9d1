package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"WhaleSentinel/internal/calculator"
	"WhaleSentinel/internal/model"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const watermarkKey = "last_seen_ts"

// SQLiteStore persists trades to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(logger *zap.Logger, dbPath string) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dbPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps PRAGMAs on the one handle.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			transaction_hash TEXT,
			dedupe_key       TEXT NOT NULL UNIQUE,
			proxy_wallet     TEXT NOT NULL,
			condition_id     TEXT NOT NULL,
			side             TEXT NOT NULL,
			size             REAL NOT NULL,
			price            REAL NOT NULL,
			notional         REAL NOT NULL,
			ts               INTEGER NOT NULL,
			title            TEXT,
			slug             TEXT,
			event_slug       TEXT,
			outcome          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_wallet_ts ON trades(proxy_wallet, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_condition_ts ON trades(condition_id, ts)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, trades []model.Trade) (res *UpsertResult, err error) {
	res = &UpsertResult{}
	if len(trades) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error("rollback failed", zap.Error(rbErr))
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO trades
		(transaction_hash, dedupe_key, proxy_wallet, condition_id, side,
		 size, price, notional, ts, title, slug, event_slug, outcome)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	touched := make(map[string]struct{})
	inserted := make(map[string]struct{})
	for i := range trades {
		t := &trades[i]
		touched[t.ProxyWallet] = struct{}{}
		if t.Timestamp > res.MaxTimestamp {
			res.MaxTimestamp = t.Timestamp
		}

		r, execErr := stmt.ExecContext(ctx,
			nullString(t.TransactionHash), t.DedupeKey(),
			t.ProxyWallet, t.ConditionID, string(t.Side),
			t.Size, t.Price, t.Notional(), t.Timestamp,
			nullString(t.Title), nullString(t.Slug), nullString(t.EventSlug), nullString(t.Outcome),
		)
		if execErr != nil {
			return nil, fmt.Errorf("insert trade %s: %w", t.DedupeKey(), execErr)
		}
		n, raErr := r.RowsAffected()
		if raErr != nil {
			return nil, fmt.Errorf("rows affected: %w", raErr)
		}
		if n > 0 {
			res.Inserted += int(n)
			inserted[t.ProxyWallet] = struct{}{}
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	res.WalletsTouched = sortedKeys(touched)
	res.WalletsInserted = sortedKeys(inserted)
	return res, nil
}

func (s *SQLiteStore) Watermark(ctx context.Context) (int64, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, watermarkKey).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read watermark: %w", err)
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse watermark %q: %w", v, err)
	}
	return ts, nil
}

func (s *SQLiteStore) SetWatermark(ctx context.Context, ts int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
		WHERE CAST(meta.value AS INTEGER) < CAST(excluded.value AS INTEGER)`,
		watermarkKey, strconv.FormatInt(ts, 10),
	)
	if err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}

func (s *SQLiteStore) WalletAggregate(ctx context.Context, wallet string, now int64) (*model.WalletAggregate, error) {
	var firstSeen, lastSeen sql.NullInt64
	var total int
	err := s.db.QueryRowContext(ctx, `SELECT MIN(ts), MAX(ts), COUNT(*)
		FROM trades WHERE proxy_wallet = ?`, wallet,
	).Scan(&firstSeen, &lastSeen, &total)
	if err != nil {
		return nil, fmt.Errorf("wallet base aggregate: %w", err)
	}
	if !firstSeen.Valid || !lastSeen.Valid || total == 0 {
		return nil, nil
	}

	agg := &model.WalletAggregate{
		Wallet:      wallet,
		FirstSeen:   firstSeen.Int64,
		LastSeen:    lastSeen.Int64,
		TotalTrades: total,
	}

	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(notional), 0), COUNT(*)
		FROM trades WHERE proxy_wallet = ? AND ts >= ?`,
		wallet, calculator.Since24h(now),
	).Scan(&agg.Notional24h, &agg.Trades24h)
	if err != nil {
		return nil, fmt.Errorf("wallet 24h aggregate: %w", err)
	}

	since30d := calculator.Since30d(now)
	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(notional), 0),
			COUNT(DISTINCT condition_id), COUNT(DISTINCT event_slug)
		FROM trades WHERE proxy_wallet = ? AND ts >= ?`,
		wallet, since30d,
	).Scan(&agg.Notional30d, &agg.UniqueMarkets30d, &agg.UniqueEvents30d)
	if err != nil {
		return nil, fmt.Errorf("wallet 30d aggregate: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT condition_id, SUM(notional) AS n
		FROM trades WHERE proxy_wallet = ? AND ts >= ?
		GROUP BY condition_id
		ORDER BY n DESC, condition_id ASC
		LIMIT 1`,
		wallet, since30d,
	).Scan(&agg.TopMarketID, &agg.TopMarketNotional30d)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("wallet top market: %w", err)
	}

	return agg, nil
}

func (s *SQLiteStore) TradeCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	s.logger.Info("closing sqlite store")
	return s.db.Close()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
