package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookwatch/clients/clobapi"
	"bookwatch/clients/notifier"
	"bookwatch/config"
)

// MarketInfo identifies one outcome token of a tracked market.
type MarketInfo struct {
	TokenID  string
	Outcome  string
	Question string
	Slug     string
	Volume   float64
}

// BigOrder is a resting order that crossed the size or value threshold.
type BigOrder struct {
	TokenID    string
	Side       string // BID or ASK
	Price      float64
	Size       float64
	Value      float64
	Outcome    string
	Question   string
	Slug       string
	DetectedAt time.Time
}

// BigOrderStats is a snapshot of monitor counters since Start.
type BigOrderStats struct {
	MarketsMonitored  int
	OrdersChecked     int64
	BigOrdersDetected int64
	AlertsSent        int64
	TotalValue        float64
	MaxValue          float64
	StartTime         time.Time
	Uptime            time.Duration
}

// BigOrderMonitor sweeps orderbooks across many markets looking for
// resting orders over the configured thresholds. Each distinct order
// (token, side, price, size) alerts once; it may alert again after it
// has been absent from the book for SeenGraceCycles cycles.
type BigOrderMonitor struct {
	logger *zap.Logger
	api    *clobapi.ClobApiClient
	filter *SportsFilter
	notify notifier.Notifier

	marketsCfg config.MarketsConfig

	configMu        sync.RWMutex
	pollInterval    time.Duration
	stopTimeout     time.Duration
	sizeThreshold   float64
	valueThreshold  float64
	seenGraceCycles int

	mu      sync.Mutex
	running bool
	markets []MarketInfo
	seen    map[string]int // order key -> consecutive cycles absent
	cancel  context.CancelFunc
	done    chan struct{}

	callbackMu sync.RWMutex
	callbacks  []func(BigOrder)

	history *HistoryBuffer[BigOrder]

	statsMu sync.Mutex
	stats   BigOrderStats
}

func NewBigOrderMonitor(logger *zap.Logger, api *clobapi.ClobApiClient, notify notifier.Notifier, cfg config.BigOrderConfig, marketsCfg config.MarketsConfig) *BigOrderMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	grace := cfg.SeenGraceCycles
	if grace < 1 {
		grace = 1
	}
	return &BigOrderMonitor{
		logger:          logger,
		api:             api,
		filter:          NewSportsFilter(),
		notify:          notify,
		marketsCfg:      marketsCfg,
		pollInterval:    cfg.PollInterval,
		stopTimeout:     cfg.StopTimeout,
		sizeThreshold:   cfg.SizeThreshold,
		valueThreshold:  cfg.ValueThreshold,
		seenGraceCycles: grace,
		seen:            make(map[string]int),
		history:         NewHistoryBuffer[BigOrder](cfg.HistorySize),
	}
}

// AddCallback registers a handler invoked for each newly detected big
// order. Panicking handlers are logged and contained.
func (m *BigOrderMonitor) AddCallback(fn func(BigOrder)) {
	if fn == nil {
		return
	}
	m.callbackMu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.callbackMu.Unlock()
}

// SetThresholds updates detection thresholds on a running monitor. A
// negative value leaves the corresponding threshold unchanged.
func (m *BigOrderMonitor) SetThresholds(sizeThreshold, valueThreshold float64) {
	m.configMu.Lock()
	defer m.configMu.Unlock()
	if sizeThreshold >= 0 {
		m.sizeThreshold = sizeThreshold
	}
	if valueThreshold >= 0 {
		m.valueThreshold = valueThreshold
	}
}

func (m *BigOrderMonitor) thresholds() (float64, float64) {
	m.configMu.RLock()
	defer m.configMu.RUnlock()
	return m.sizeThreshold, m.valueThreshold
}

// SetMarkets replaces the tracked market set.
func (m *BigOrderMonitor) SetMarkets(markets []MarketInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets = append(m.markets[:0], markets...)
}

// Markets returns a copy of the tracked markets.
func (m *BigOrderMonitor) Markets() []MarketInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MarketInfo, len(m.markets))
	copy(out, m.markets)
	return out
}

// DiscoverMarkets fetches active high-volume markets and expands each
// into one MarketInfo per outcome token, capped at limit markets.
func (m *BigOrderMonitor) DiscoverMarkets(ctx context.Context, limit int) ([]MarketInfo, error) {
	markets, err := m.api.GetMarkets(ctx, clobapi.DefaultMarketsQuery(m.marketsCfg))
	if err != nil {
		return nil, fmt.Errorf("discover markets: %w", err)
	}

	var infos []MarketInfo
	count := 0
	for _, market := range markets {
		if limit > 0 && count >= limit {
			break
		}
		ids := market.GetTokenIDs()
		if len(ids) == 0 {
			continue
		}
		outcomes := market.GetOutcomes()
		for i, id := range ids {
			outcome := ""
			if i < len(outcomes) {
				outcome = outcomes[i]
			}
			infos = append(infos, MarketInfo{
				TokenID:  id,
				Outcome:  outcome,
				Question: market.Question,
				Slug:     market.Slug,
				Volume:   market.VolumeNum,
			})
		}
		count++
	}

	m.logger.Info("discovered markets for big order sweep",
		zap.Int("markets", count),
		zap.Int("tokens", len(infos)))
	return infos, nil
}

// Start launches the sweep loop. When autoDiscover is set and no markets
// are tracked yet, markets are discovered first. Returns ErrAlreadyRunning
// on a running monitor and ErrNoMarkets when nothing can be swept.
func (m *BigOrderMonitor) Start(ctx context.Context, autoDiscover bool, marketLimit int) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	needDiscovery := autoDiscover && len(m.markets) == 0
	m.mu.Unlock()

	if needDiscovery {
		infos, err := m.DiscoverMarkets(ctx, marketLimit)
		if err != nil {
			return err
		}
		m.SetMarkets(infos)
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	if len(m.markets) == 0 {
		m.mu.Unlock()
		return ErrNoMarkets
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	marketCount := len(m.markets)
	m.mu.Unlock()

	m.statsMu.Lock()
	m.stats = BigOrderStats{MarketsMonitored: marketCount, StartTime: time.Now()}
	m.statsMu.Unlock()

	m.logger.Info("big order monitor started",
		zap.Int("markets", marketCount),
		zap.Duration("poll_interval", m.pollInterval))

	go m.run(loopCtx, done)
	return nil
}

// run sweeps on a drift-corrected schedule: the next sleep is shortened
// by however long the sweep itself took.
func (m *BigOrderMonitor) run(ctx context.Context, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		close(done)
	}()

	for {
		cycleStart := time.Now()
		m.sweep(ctx)

		sleep := m.pollInterval - time.Since(cycleStart)
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// Stop signals the sweep loop and waits up to the stop timeout.
func (m *BigOrderMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
		m.logger.Info("big order monitor stopped")
	case <-time.After(m.stopTimeout):
		m.logger.Warn("big order monitor did not stop within timeout",
			zap.Duration("timeout", m.stopTimeout))
	}
}

// Running reports whether the sweep loop is active.
func (m *BigOrderMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *BigOrderMonitor) sweep(ctx context.Context) {
	m.mu.Lock()
	markets := make([]MarketInfo, len(m.markets))
	copy(markets, m.markets)
	m.mu.Unlock()

	current := make(map[string]bool)
	for _, market := range markets {
		if ctx.Err() != nil {
			return
		}
		if err := m.sweepMarket(ctx, market, current); err != nil {
			m.logger.Warn("sweep failed for market",
				zap.String("token_id", shortID(market.TokenID)),
				zap.Error(err))
		}
	}
	if ctx.Err() != nil {
		return
	}
	m.ageSeen(current)
}

func (m *BigOrderMonitor) sweepMarket(ctx context.Context, market MarketInfo, current map[string]bool) error {
	book, err := m.api.GetOrderbook(ctx, market.TokenID)
	if err != nil {
		return fmt.Errorf("get orderbook: %w", err)
	}

	sizeThreshold, valueThreshold := m.thresholds()
	checked := int64(len(book.Bids) + len(book.Asks))

	m.statsMu.Lock()
	m.stats.OrdersChecked += checked
	m.statsMu.Unlock()

	check := func(side string, lv clobapi.Level) {
		value := lv.Price * lv.Size
		if lv.Size < sizeThreshold && value < valueThreshold {
			return
		}
		key := orderKey(market.TokenID, side, lv.Price, lv.Size)
		current[key] = true

		m.mu.Lock()
		_, known := m.seen[key]
		m.seen[key] = 0
		m.mu.Unlock()
		if known {
			return
		}

		m.handleDetection(BigOrder{
			TokenID:    market.TokenID,
			Side:       side,
			Price:      lv.Price,
			Size:       lv.Size,
			Value:      value,
			Outcome:    market.Outcome,
			Question:   market.Question,
			Slug:       market.Slug,
			DetectedAt: time.Now(),
		}, book)
	}
	for _, lv := range book.Bids {
		check("BID", lv)
	}
	for _, lv := range book.Asks {
		check("ASK", lv)
	}
	return nil
}

// ageSeen bumps the absence counter of every known order missing from
// the current sweep and forgets those absent for the grace window.
func (m *BigOrderMonitor) ageSeen(current map[string]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.seen {
		if current[key] {
			continue
		}
		m.seen[key]++
		if m.seen[key] >= m.seenGraceCycles {
			delete(m.seen, key)
		}
	}
}

func (m *BigOrderMonitor) handleDetection(order BigOrder, book *clobapi.Book) {
	m.history.Append(order)

	m.statsMu.Lock()
	m.stats.BigOrdersDetected++
	m.stats.TotalValue += order.Value
	if order.Value > m.stats.MaxValue {
		m.stats.MaxValue = order.Value
	}
	m.statsMu.Unlock()

	m.logger.Info("big order detected",
		zap.String("token_id", shortID(order.TokenID)),
		zap.String("side", order.Side),
		zap.Float64("price", order.Price),
		zap.Float64("size", order.Size),
		zap.Float64("value", order.Value),
		zap.String("question", order.Question))

	m.callbackMu.RLock()
	callbacks := m.callbacks
	m.callbackMu.RUnlock()
	for _, fn := range callbacks {
		m.invokeCallback(fn, order)
	}

	if m.notify == nil {
		return
	}
	spread := book.ComputeSpread()
	side := "BUY"
	if order.Side == "ASK" {
		side = "SELL"
	}
	m.notify.SendOrderAlert(notifier.OrderAlert{
		TokenID:   order.TokenID,
		Question:  order.Question,
		Outcome:   order.Outcome,
		Sport:     m.filter.CategorizeSport(order.Question),
		Side:      side,
		Price:     order.Price,
		Size:      order.Size,
		Value:     order.Value,
		BestBid:   spread.BestBid,
		BestAsk:   spread.BestAsk,
		SpreadPct: spread.SpreadPct,
		Message:   fmt.Sprintf("Resting %s of %.0f shares worth $%.2f", order.Side, order.Size, order.Value),
		Reasons:   []notifier.AlertReason{notifier.AlertReasonLargeOrder},
		Timestamp: order.DetectedAt,
	})

	m.statsMu.Lock()
	m.stats.AlertsSent++
	m.statsMu.Unlock()
}

func (m *BigOrderMonitor) invokeCallback(fn func(BigOrder), order BigOrder) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("big order callback panicked",
				zap.String("token_id", shortID(order.TokenID)),
				zap.Any("panic", rec))
		}
	}()
	fn(order)
}

// Stats returns a snapshot of the monitor counters.
func (m *BigOrderMonitor) Stats() BigOrderStats {
	m.statsMu.Lock()
	stats := m.stats
	m.statsMu.Unlock()

	m.mu.Lock()
	stats.MarketsMonitored = len(m.markets)
	m.mu.Unlock()

	if !stats.StartTime.IsZero() {
		stats.Uptime = time.Since(stats.StartTime)
	}
	return stats
}

// BigOrdersTable exports the detection history, oldest first.
func (m *BigOrderMonitor) BigOrdersTable() Table {
	t := Table{Columns: []string{
		"token_id", "side", "price", "size", "value", "outcome", "question", "detected_at",
	}}
	for _, o := range m.history.Items() {
		t.Rows = append(t.Rows, []string{
			shortID(o.TokenID),
			o.Side,
			fmtFloat(o.Price),
			fmtFloat(o.Size),
			fmt.Sprintf("%.2f", o.Value),
			o.Outcome,
			o.Question,
			o.DetectedAt.UTC().Format(time.RFC3339),
		})
	}
	return t
}

// ClearHistory drops the detection history. The seen set is kept so
// standing orders do not re-alert.
func (m *BigOrderMonitor) ClearHistory() {
	m.history.Clear()
}

func orderKey(tokenID, side string, price, size float64) string {
	return fmt.Sprintf("%s_%s_%g_%g", tokenID, side, price, size)
}
