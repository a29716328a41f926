package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
	"github.com/lemollon/AlphaGEX-sub013/internal/margin"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"
)

// SQLiteStore implements SnapshotStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based snapshot store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperrors.NewStoreError("open", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, apperrors.NewStoreError("init_schema", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Account-level margin snapshots, one row per bot per poll
	CREATE TABLE IF NOT EXISTS account_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bot_name TEXT NOT NULL,
		market_type TEXT NOT NULL,
		account_equity REAL NOT NULL,
		total_margin_used REAL NOT NULL,
		total_maintenance_margin REAL NOT NULL,
		available_margin REAL NOT NULL,
		margin_usage_pct REAL NOT NULL,
		margin_ratio REAL NOT NULL,
		effective_leverage REAL NOT NULL,
		total_notional REAL NOT NULL,
		total_unrealized_pnl REAL NOT NULL,
		total_daily_funding REAL NOT NULL,
		position_count INTEGER NOT NULL,
		health_status TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Per-position metric rows attached to an account snapshot
	CREATE TABLE IF NOT EXISTS position_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		snapshot_id INTEGER NOT NULL,
		bot_name TEXT NOT NULL,
		position_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity REAL NOT NULL,
		entry_price REAL NOT NULL,
		current_price REAL NOT NULL,
		notional_value REAL NOT NULL,
		initial_margin_required REAL NOT NULL,
		maintenance_margin_required REAL NOT NULL,
		unrealized_pnl REAL NOT NULL,
		liquidation_price REAL,
		distance_to_liq_pct REAL,
		funding_rate REAL,
		daily_funding_cost REAL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (snapshot_id) REFERENCES account_snapshots(id)
	);

	-- Margin alerts emitted by the monitor
	CREATE TABLE IF NOT EXISTS margin_alerts (
		id TEXT PRIMARY KEY,
		bot_name TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		details TEXT,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Daily worst-case margin stats, one row per bot per UTC day
	CREATE TABLE IF NOT EXISTS daily_margin_stats (
		bot_name TEXT NOT NULL,
		date TEXT NOT NULL,
		peak_margin_usage_pct REAL NOT NULL,
		worst_margin_ratio REAL NOT NULL,
		worst_liq_distance_pct REAL,
		max_effective_leverage REAL NOT NULL,
		peak_notional REAL NOT NULL,
		alerts_info INTEGER NOT NULL DEFAULT 0,
		alerts_warning INTEGER NOT NULL DEFAULT 0,
		alerts_danger INTEGER NOT NULL DEFAULT 0,
		alerts_critical INTEGER NOT NULL DEFAULT 0,
		poll_count INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (bot_name, date)
	);

	-- Create indexes for performance
	CREATE INDEX IF NOT EXISTS idx_account_snapshots_bot_time ON account_snapshots(bot_name, timestamp);
	CREATE INDEX IF NOT EXISTS idx_position_snapshots_snapshot ON position_snapshots(snapshot_id);
	CREATE INDEX IF NOT EXISTS idx_margin_alerts_bot_time ON margin_alerts(bot_name, timestamp);
	CREATE INDEX IF NOT EXISTS idx_margin_alerts_level ON margin_alerts(level);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Snapshot Methods
// ============================================================================

// SaveSnapshot persists an account metrics snapshot and its position rows
// in one transaction. Non-finite ratios (flat books report +Inf) are
// stored at the same cap the wire serialization uses.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, metrics *margin.AccountMarginMetrics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStoreError("save_snapshot", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO account_snapshots (bot_name, market_type, account_equity, total_margin_used, total_maintenance_margin, available_margin, margin_usage_pct, margin_ratio, effective_leverage, total_notional, total_unrealized_pnl, total_daily_funding, position_count, health_status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, metrics.BotName, string(metrics.MarketType), metrics.AccountEquity, metrics.TotalMarginUsed,
		metrics.TotalMaintenanceMargin, metrics.AvailableMargin, metrics.MarginUsagePct, finiteOr(metrics.MarginRatio),
		finiteOr(metrics.EffectiveLeverage), metrics.TotalNotional, metrics.TotalUnrealizedPnL, metrics.TotalDailyFunding,
		metrics.PositionCount, metrics.HealthStatus.String(), metrics.Timestamp)
	if err != nil {
		return apperrors.NewStoreError("save_snapshot", err)
	}

	snapshotID, err := res.LastInsertId()
	if err != nil {
		return apperrors.NewStoreError("save_snapshot", err)
	}

	if len(metrics.Positions) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO position_snapshots (snapshot_id, bot_name, position_id, symbol, side, quantity, entry_price, current_price, notional_value, initial_margin_required, maintenance_margin_required, unrealized_pnl, liquidation_price, distance_to_liq_pct, funding_rate, daily_funding_cost, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return apperrors.NewStoreError("save_snapshot", err)
		}
		defer stmt.Close()

		for _, p := range metrics.Positions {
			_, err := stmt.ExecContext(ctx, snapshotID, metrics.BotName, p.PositionID, p.Symbol, string(p.Side),
				p.Quantity, p.EntryPrice, p.CurrentPrice, p.NotionalValue, p.InitialMarginRequired,
				p.MaintenanceMarginRequired, p.UnrealizedPnL, nullFloat(p.LiquidationPrice),
				nullFloat(p.DistanceToLiqPct), nullFloat(p.FundingRate), nullFloat(p.DailyFundingCost),
				metrics.Timestamp)
			if err != nil {
				return apperrors.NewStoreError("save_snapshot", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("save_snapshot", err)
	}

	return nil
}

const accountSnapshotColumns = "id, bot_name, market_type, account_equity, total_margin_used, total_maintenance_margin, available_margin, margin_usage_pct, margin_ratio, effective_leverage, total_notional, total_unrealized_pnl, total_daily_funding, position_count, health_status, timestamp"

// Snapshots retrieves account snapshot rows, newest first.
func (s *SQLiteStore) Snapshots(ctx context.Context, filter SnapshotFilter) ([]AccountSnapshot, error) {
	query := "SELECT " + accountSnapshotColumns + " FROM account_snapshots WHERE 1=1"
	args := []interface{}{}

	if filter.BotName != "" {
		query += " AND bot_name = ?"
		args = append(args, filter.BotName)
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("snapshots", err)
	}
	defer rows.Close()

	var snapshots []AccountSnapshot
	for rows.Next() {
		snap, err := scanAccountSnapshot(rows)
		if err != nil {
			return nil, apperrors.NewStoreError("snapshots", err)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// LatestSnapshot returns the newest snapshot for a bot with its position
// rows loaded. Returns ErrDataNotFound when the bot has no history.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, botName string) (*AccountSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountSnapshotColumns+" FROM account_snapshots WHERE bot_name = ? ORDER BY timestamp DESC, id DESC LIMIT 1",
		botName)

	snap, err := scanAccountSnapshot(row)
	if err != nil {
		if apperrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewStoreError("latest_snapshot", apperrors.ErrDataNotFound)
		}
		return nil, apperrors.NewStoreError("latest_snapshot", err)
	}

	positions, err := s.positionsForSnapshot(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	snap.Positions = positions
	return &snap, nil
}

func (s *SQLiteStore) positionsForSnapshot(ctx context.Context, snapshotID int64) ([]PositionSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, symbol, side, quantity, entry_price, current_price, notional_value, initial_margin_required, maintenance_margin_required, unrealized_pnl, liquidation_price, distance_to_liq_pct, funding_rate, daily_funding_cost
		FROM position_snapshots
		WHERE snapshot_id = ?
		ORDER BY id ASC
	`, snapshotID)
	if err != nil {
		return nil, apperrors.NewStoreError("snapshot_positions", err)
	}
	defer rows.Close()

	var positions []PositionSnapshot
	for rows.Next() {
		var p PositionSnapshot
		var liq, dist, rate, cost sql.NullFloat64
		if err := rows.Scan(&p.PositionID, &p.Symbol, &p.Side, &p.Quantity, &p.EntryPrice, &p.CurrentPrice,
			&p.NotionalValue, &p.InitialMarginRequired, &p.MaintenanceMarginRequired, &p.UnrealizedPnL,
			&liq, &dist, &rate, &cost); err != nil {
			return nil, apperrors.NewStoreError("snapshot_positions", err)
		}
		p.LiquidationPrice = floatPtr(liq)
		p.DistanceToLiqPct = floatPtr(dist)
		p.FundingRate = floatPtr(rate)
		p.DailyFundingCost = floatPtr(cost)
		positions = append(positions, p)
	}

	return positions, rows.Err()
}

// ============================================================================
// Alert Methods
// ============================================================================

// SaveAlert persists a margin alert.
func (s *SQLiteStore) SaveAlert(ctx context.Context, alert *models.MarginAlert) error {
	details, _ := json.Marshal(alert.Details)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO margin_alerts (id, bot_name, level, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, alert.ID, alert.BotName, alert.Level.String(), alert.Message, string(details), alert.Timestamp)
	if err != nil {
		return apperrors.NewStoreError("save_alert", err)
	}
	return nil
}

// Alerts retrieves margin alerts, newest first. MinLevel keeps alerts at
// or above the given severity.
func (s *SQLiteStore) Alerts(ctx context.Context, filter AlertFilter) ([]models.MarginAlert, error) {
	query := "SELECT id, bot_name, level, message, details, timestamp FROM margin_alerts WHERE 1=1"
	args := []interface{}{}

	if filter.BotName != "" {
		query += " AND bot_name = ?"
		args = append(args, filter.BotName)
	}
	if filter.MinLevel != nil {
		names := levelNamesAtOrAbove(*filter.MinLevel)
		query += " AND level IN (?" + repeatPlaceholder(len(names)-1) + ")"
		for _, n := range names {
			args = append(args, n)
		}
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("alerts", err)
	}
	defer rows.Close()

	var alerts []models.MarginAlert
	for rows.Next() {
		var a models.MarginAlert
		var level string
		var details sql.NullString
		if err := rows.Scan(&a.ID, &a.BotName, &level, &a.Message, &details, &a.Timestamp); err != nil {
			return nil, apperrors.NewStoreError("alerts", err)
		}
		a.Level = models.ParseAlertLevel(level)
		if details.Valid && details.String != "" {
			json.Unmarshal([]byte(details.String), &a.Details)
		}
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// ============================================================================
// Daily Stat Methods
// ============================================================================

// UpsertDailyStat merges one poll's observations into the bot's daily row.
// Gauges keep the worst value seen; counters accumulate, so callers pass
// per-poll deltas, not running totals.
func (s *SQLiteStore) UpsertDailyStat(ctx context.Context, stat *models.DailyMarginStat) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_margin_stats (bot_name, date, peak_margin_usage_pct, worst_margin_ratio, worst_liq_distance_pct, max_effective_leverage, peak_notional, alerts_info, alerts_warning, alerts_danger, alerts_critical, poll_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bot_name, date) DO UPDATE SET
			peak_margin_usage_pct = MAX(peak_margin_usage_pct, excluded.peak_margin_usage_pct),
			worst_margin_ratio = MIN(worst_margin_ratio, excluded.worst_margin_ratio),
			worst_liq_distance_pct = CASE
				WHEN worst_liq_distance_pct IS NULL THEN excluded.worst_liq_distance_pct
				WHEN excluded.worst_liq_distance_pct IS NULL THEN worst_liq_distance_pct
				ELSE MIN(worst_liq_distance_pct, excluded.worst_liq_distance_pct)
			END,
			max_effective_leverage = MAX(max_effective_leverage, excluded.max_effective_leverage),
			peak_notional = MAX(peak_notional, excluded.peak_notional),
			alerts_info = alerts_info + excluded.alerts_info,
			alerts_warning = alerts_warning + excluded.alerts_warning,
			alerts_danger = alerts_danger + excluded.alerts_danger,
			alerts_critical = alerts_critical + excluded.alerts_critical,
			poll_count = poll_count + excluded.poll_count,
			updated_at = excluded.updated_at
	`, stat.BotName, stat.Date, stat.PeakMarginUsagePct, stat.WorstMarginRatio,
		nullFloat(stat.WorstLiqDistancePct), stat.MaxEffectiveLeverage, stat.PeakNotional,
		stat.AlertsInfo, stat.AlertsWarning, stat.AlertsDanger, stat.AlertsCritical,
		stat.PollCount, stat.UpdatedAt)
	if err != nil {
		return apperrors.NewStoreError("upsert_daily_stat", err)
	}
	return nil
}

// DailyStats retrieves daily stat rows, newest date first.
func (s *SQLiteStore) DailyStats(ctx context.Context, filter StatFilter) ([]models.DailyMarginStat, error) {
	query := "SELECT bot_name, date, peak_margin_usage_pct, worst_margin_ratio, worst_liq_distance_pct, max_effective_leverage, peak_notional, alerts_info, alerts_warning, alerts_danger, alerts_critical, poll_count, updated_at FROM daily_margin_stats WHERE 1=1"
	args := []interface{}{}

	if filter.BotName != "" {
		query += " AND bot_name = ?"
		args = append(args, filter.BotName)
	}
	if filter.StartDate != "" {
		query += " AND date >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		query += " AND date <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY date DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("daily_stats", err)
	}
	defer rows.Close()

	var stats []models.DailyMarginStat
	for rows.Next() {
		var d models.DailyMarginStat
		var worstDist sql.NullFloat64
		if err := rows.Scan(&d.BotName, &d.Date, &d.PeakMarginUsagePct, &d.WorstMarginRatio, &worstDist,
			&d.MaxEffectiveLeverage, &d.PeakNotional, &d.AlertsInfo, &d.AlertsWarning, &d.AlertsDanger,
			&d.AlertsCritical, &d.PollCount, &d.UpdatedAt); err != nil {
			return nil, apperrors.NewStoreError("daily_stats", err)
		}
		d.WorstLiqDistancePct = floatPtr(worstDist)
		stats = append(stats, d)
	}

	return stats, rows.Err()
}

// ============================================================================
// Retention
// ============================================================================

// PruneBefore deletes snapshots, alerts and daily stats older than the
// cutoff. Returns the number of rows removed.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewStoreError("prune", err)
	}
	defer tx.Rollback()

	var total int64

	res, err := tx.ExecContext(ctx,
		"DELETE FROM position_snapshots WHERE snapshot_id IN (SELECT id FROM account_snapshots WHERE timestamp < ?)",
		cutoff)
	if err != nil {
		return 0, apperrors.NewStoreError("prune", err)
	}
	n, _ := res.RowsAffected()
	total += n

	res, err = tx.ExecContext(ctx, "DELETE FROM account_snapshots WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, apperrors.NewStoreError("prune", err)
	}
	n, _ = res.RowsAffected()
	total += n

	res, err = tx.ExecContext(ctx, "DELETE FROM margin_alerts WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, apperrors.NewStoreError("prune", err)
	}
	n, _ = res.RowsAffected()
	total += n

	res, err = tx.ExecContext(ctx, "DELETE FROM daily_margin_stats WHERE date < ?", cutoff.UTC().Format("2006-01-02"))
	if err != nil {
		return 0, apperrors.NewStoreError("prune", err)
	}
	n, _ = res.RowsAffected()
	total += n

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewStoreError("prune", err)
	}

	return total, nil
}

// ============================================================================
// Helpers
// ============================================================================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountSnapshot(row rowScanner) (AccountSnapshot, error) {
	var snap AccountSnapshot
	var health string
	err := row.Scan(&snap.ID, &snap.BotName, &snap.MarketType, &snap.AccountEquity, &snap.TotalMarginUsed,
		&snap.TotalMaintenanceMargin, &snap.AvailableMargin, &snap.MarginUsagePct, &snap.MarginRatio,
		&snap.EffectiveLeverage, &snap.TotalNotional, &snap.TotalUnrealizedPnL, &snap.TotalDailyFunding,
		&snap.PositionCount, &health, &snap.Timestamp)
	if err != nil {
		return snap, err
	}
	snap.HealthStatus = models.ParseHealthStatus(health)
	return snap, nil
}

func nullFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func finiteOr(v float64) float64 {
	if math.IsInf(v, 1) {
		return margin.InfCap
	}
	if math.IsInf(v, -1) {
		return -margin.InfCap
	}
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func levelNamesAtOrAbove(min models.AlertLevel) []string {
	names := []string{}
	for l := min; l <= models.AlertCritical; l++ {
		names = append(names, l.String())
	}
	return names
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

var _ SnapshotStore = (*SQLiteStore)(nil)
