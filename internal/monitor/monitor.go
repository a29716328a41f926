// Package monitor runs the margin polling loop: it feeds provider
// state through the margin engine and fans the results out to the
// notifier, the store, and the stream hub. The engine stays pure; all
// cross-poll state (health transitions, danger-zone timers) lives here.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lemollon/AlphaGEX-sub013/internal/config"
	apperrors "github.com/lemollon/AlphaGEX-sub013/internal/errors"
	"github.com/lemollon/AlphaGEX-sub013/internal/logging"
	"github.com/lemollon/AlphaGEX-sub013/internal/margin"
	"github.com/lemollon/AlphaGEX-sub013/internal/models"
	"github.com/lemollon/AlphaGEX-sub013/internal/notify"
	"github.com/lemollon/AlphaGEX-sub013/internal/performance"
	"github.com/lemollon/AlphaGEX-sub013/internal/provider"
	"github.com/lemollon/AlphaGEX-sub013/internal/store"
	"github.com/lemollon/AlphaGEX-sub013/internal/stream"
)

const (
	defaultPollInterval = 30 * time.Second
	// sideEffectTimeout bounds each dispatched store write or
	// notification, detached from the loop context so shutdown does
	// not cut persistence short.
	sideEffectTimeout = 30 * time.Second
	// pruneInterval is how often the retention sweep runs.
	pruneInterval = 24 * time.Hour
)

// Options bundles the monitor's collaborators. Store, Notifier, and
// Hub are optional; a nil Store skips persistence, a nil Notifier is
// replaced with a NoOpNotifier, a nil Hub skips streaming.
type Options struct {
	Monitor  config.MonitorConfig
	Bots     []margin.BotMarginConfig
	Provider provider.StateProvider
	Store    store.SnapshotStore
	Notifier notify.Notifier
	Hub      *stream.Hub
	Logger   zerolog.Logger
}

// botRuntime is the only state that survives across polling cycles,
// scoped per bot.
type botRuntime struct {
	cfg     margin.BotMarginConfig
	engine  *margin.Engine
	limiter *performance.RateLimiter

	lastHealth      models.HealthStatus
	dangerZoneStart *time.Time
	reduceAdvised   bool
	closeAdvised    bool
	lastPollAt      time.Time
}

// Monitor owns the polling loop and the per-bot runtimes.
type Monitor struct {
	cfg      config.MonitorConfig
	provider provider.StateProvider
	store    store.SnapshotStore
	notifier notify.Notifier
	hub      *stream.Hub
	pool     *performance.WorkerPool
	logger   zerolog.Logger

	mu   sync.Mutex
	bots map[string]*botRuntime

	now func() time.Time
}

// New builds a monitor from materialized bot configs. Every bot gets
// its own engine and alert limiter.
func New(opts Options) (*Monitor, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("monitor requires a state provider")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewNoOpNotifier()
	}

	m := &Monitor{
		cfg:      opts.Monitor,
		provider: opts.Provider,
		store:    opts.Store,
		notifier: opts.Notifier,
		hub:      opts.Hub,
		pool:     performance.NewWorkerPool(opts.Monitor.Workers),
		logger:   opts.Logger,
		bots:     make(map[string]*botRuntime, len(opts.Bots)),
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, bc := range opts.Bots {
		engine, err := margin.NewEngine(bc)
		if err != nil {
			return nil, apperrors.Wrapf(err, "bot %s", bc.BotName)
		}
		m.bots[bc.BotName] = &botRuntime{
			cfg:     bc,
			engine:  engine,
			limiter: performance.NewRateLimiterPerMinute(opts.Monitor.AlertsPerMinute, alertBurst(opts.Monitor.AlertsPerMinute)),
		}
	}

	return m, nil
}

// alertBurst sizes the limiter bucket so a full health transition
// cascade is never eaten by throttling.
func alertBurst(perMinute float64) int {
	if perMinute <= 0 {
		return 1
	}
	return int(math.Ceil(perMinute))
}

// Bots returns the monitored bot names, sorted.
func (m *Monitor) Bots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.bots))
	for name := range m.bots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Monitor) runtime(botName string) *botRuntime {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bots[botName]
}

// Run polls all bots at the configured interval until the context is
// cancelled. The first cycle runs immediately.
func (m *Monitor) Run(ctx context.Context) error {
	interval := m.cfg.PollInterval()
	if interval <= 0 {
		interval = defaultPollInterval
	}

	m.pool.Start()
	defer m.pool.Stop()

	if m.hub != nil {
		m.hub.Start(ctx)
		defer m.hub.Stop()
	}

	m.logger.Info().
		Dur("interval", interval).
		Int("bots", len(m.Bots())).
		Msg("margin monitor started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	m.pruneHistory()
	m.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("margin monitor stopped")
			return nil
		case <-ticker.C:
			m.PollOnce(ctx)
		case <-pruneTicker.C:
			m.pruneHistory()
		}
	}
}

// RunOnce runs a single polling cycle with the side-effect pool up and
// drains every accepted write before returning. CLI one-shots use this
// instead of Run.
func (m *Monitor) RunOnce(ctx context.Context) {
	m.pool.Start()
	m.PollOnce(ctx)
	m.pool.Stop()
}

// PollOnce runs one full cycle over all bots, sequentially and in
// stable order. One bot's failure never aborts the rest of the cycle.
func (m *Monitor) PollOnce(ctx context.Context) {
	for _, name := range m.Bots() {
		if ctx.Err() != nil {
			return
		}
		m.pollBot(ctx, name)
	}
}

// pollBot evaluates one bot: fetch state, compute metrics, update the
// runtime state machine, then dispatch the side effects.
func (m *Monitor) pollBot(ctx context.Context, botName string) {
	rt := m.runtime(botName)
	if rt == nil {
		return
	}

	logger := logging.WithBot(m.logger, botName)

	state, err := m.provider.BotState(ctx, botName)
	if err != nil {
		logger.Error().Err(err).Msg("state fetch failed")
		m.reportError(rt, logger, err, fmt.Sprintf("polling %s", botName))
		return
	}

	metrics := rt.engine.AccountMetrics(state.AccountEquity, state.Positions)
	logging.LogPoll(logger, botName, metrics.MarginUsagePct, metrics.HealthStatus, metrics.PositionCount)

	m.mu.Lock()
	alerts := m.evaluate(rt, metrics)
	rt.lastPollAt = m.now()
	m.mu.Unlock()

	for _, alert := range alerts {
		m.emitAlert(rt, logger, alert)
	}

	m.persistPoll(logger, metrics, alerts)

	if m.hub != nil {
		m.hub.Publish(metrics)
	}
}

// emitAlert persists the alert and, rate limit permitting, delivers
// it. Persistence is unconditional so the history stays complete even
// when delivery is throttled.
func (m *Monitor) emitAlert(rt *botRuntime, logger zerolog.Logger, alert *models.MarginAlert) {
	logging.LogAlert(logger, alert)

	if m.store != nil {
		m.dispatch(logger, "save_alert", func() {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			defer cancel()

			start := time.Now()
			err := m.store.SaveAlert(ctx, alert)
			logging.LogStoreCall(logger, "save_alert", time.Since(start), err)
		})
	}

	if !rt.limiter.Allow() {
		logger.Debug().
			Str("alert_id", alert.ID).
			Str("level", alert.Level.String()).
			Msg("alert delivery throttled")
		return
	}

	m.dispatch(logger, "send_alert", func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if err := m.notifier.SendAlert(ctx, alert); err != nil {
			logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("alert delivery failed")
		}
	})
}

// persistPoll writes the snapshot and merges the daily stat row.
func (m *Monitor) persistPoll(logger zerolog.Logger, metrics *margin.AccountMarginMetrics, alerts []*models.MarginAlert) {
	if m.store == nil {
		return
	}

	m.dispatch(logger, "save_snapshot", func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		start := time.Now()
		err := m.store.SaveSnapshot(ctx, metrics)
		logging.LogStoreCall(logger, "save_snapshot", time.Since(start), err)
	})

	stat := &models.DailyMarginStat{
		BotName:              metrics.BotName,
		Date:                 metrics.Timestamp.UTC().Format("2006-01-02"),
		PeakMarginUsagePct:   metrics.MarginUsagePct,
		WorstMarginRatio:     metrics.MarginRatio,
		WorstLiqDistancePct:  metrics.WorstLiqDistancePct(),
		MaxEffectiveLeverage: metrics.EffectiveLeverage,
		PeakNotional:         metrics.TotalNotional,
		PollCount:            1,
	}
	for _, alert := range alerts {
		stat.CountAlert(alert.Level)
	}

	m.dispatch(logger, "upsert_daily_stat", func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		start := time.Now()
		err := m.store.UpsertDailyStat(ctx, stat)
		logging.LogStoreCall(logger, "upsert_daily_stat", time.Since(start), err)
	})
}

// reportError notifies about an operational failure, subject to the
// bot's alert limiter so a persistently broken provider does not flood
// the channels.
func (m *Monitor) reportError(rt *botRuntime, logger zerolog.Logger, err error, errContext string) {
	if !rt.limiter.Allow() {
		return
	}

	m.dispatch(logger, "send_error", func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if nerr := m.notifier.SendError(ctx, err, errContext); nerr != nil {
			logger.Warn().Err(nerr).Msg("error notification failed")
		}
	})
}

// pruneHistory applies the retention policy.
func (m *Monitor) pruneHistory() {
	if m.store == nil || m.cfg.RetentionDays <= 0 {
		return
	}

	cutoff := m.now().AddDate(0, 0, -m.cfg.RetentionDays)
	m.dispatch(m.logger, "prune_history", func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		start := time.Now()
		removed, err := m.store.PruneBefore(ctx, cutoff)
		logging.LogStoreCall(m.logger, "prune_history", time.Since(start), err)
		if err == nil && removed > 0 {
			m.logger.Info().Int64("rows", removed).Time("cutoff", cutoff).Msg("history pruned")
		}
	})
}

// dispatch hands a side effect to the worker pool. A full queue drops
// the task; the poll loop never waits on side effects.
func (m *Monitor) dispatch(logger zerolog.Logger, name string, task func()) {
	if !m.pool.Submit(task) {
		logger.Warn().Str("task", name).Msg("worker queue full, side effect dropped")
	}
}

// PoolStats exposes the side-effect pool counters.
func (m *Monitor) PoolStats() performance.PoolStats {
	return m.pool.Stats()
}
