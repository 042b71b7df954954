package app

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookwatch/clients/clobapi"
	"bookwatch/config"
)

// BookMonitorConfig tunes the polling monitor. Thresholds can be changed
// while the monitor runs via UpdateConfig.
type BookMonitorConfig struct {
	PollInterval   time.Duration
	StopTimeout    time.Duration
	SpreadEpsilon  float64
	SizeThreshold  float64
	ValueThreshold float64
	DepthLevels    int
}

func DefaultBookMonitorConfig() BookMonitorConfig {
	return BookMonitorConfig{
		PollInterval:  5 * time.Second,
		StopTimeout:   5 * time.Second,
		SpreadEpsilon: 0,
		SizeThreshold: 1000,
		DepthLevels:   10,
	}
}

func bookMonitorConfigFrom(cfg config.MonitorConfig) BookMonitorConfig {
	return BookMonitorConfig{
		PollInterval:   cfg.PollInterval,
		StopTimeout:    cfg.StopTimeout,
		SpreadEpsilon:  cfg.SpreadEpsilon,
		SizeThreshold:  cfg.SizeThreshold,
		ValueThreshold: cfg.ValueThreshold,
		DepthLevels:    cfg.DepthLevels,
	}
}

// BookMonitor polls orderbooks for a set of tracked tokens and dispatches
// events when state changes between cycles. One poll cycle touches every
// tracked token; a failing token is skipped, never aborts the cycle.
type BookMonitor struct {
	logger *zap.Logger
	api    *clobapi.ClobApiClient
	filter *SportsFilter

	configMu sync.RWMutex
	config   BookMonitorConfig

	mu            sync.Mutex
	running       bool
	tracked       []string
	lastSpread    map[string]float64
	lastTradeTime map[string]int64
	cancel        context.CancelFunc
	done          chan struct{}

	callbacks *callbackRegistry

	spreadHistory *HistoryBuffer[clobapi.Spread]
	bookHistory   *HistoryBuffer[clobapi.Book]
	tradeHistory  *HistoryBuffer[clobapi.Trade]
}

func NewBookMonitor(logger *zap.Logger, api *clobapi.ClobApiClient, filter *SportsFilter, cfg config.MonitorConfig) *BookMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if filter == nil {
		filter = NewSportsFilter()
	}
	return &BookMonitor{
		logger:        logger,
		api:           api,
		filter:        filter,
		config:        bookMonitorConfigFrom(cfg),
		lastSpread:    make(map[string]float64),
		lastTradeTime: make(map[string]int64),
		callbacks:     newCallbackRegistry(logger),
		spreadHistory: NewHistoryBuffer[clobapi.Spread](cfg.SpreadHistorySize),
		bookHistory:   NewHistoryBuffer[clobapi.Book](cfg.BookHistorySize),
		tradeHistory:  NewHistoryBuffer[clobapi.Trade](cfg.TradeHistorySize),
	}
}

// AddCallback registers a handler for an event type. Handlers run on the
// monitor goroutine in registration order; panics are logged and contained.
func (m *BookMonitor) AddCallback(t EventType, fn func(Event)) {
	m.callbacks.Add(t, fn)
}

// UpdateConfig swaps thresholds on a running monitor. The new values take
// effect on the next poll cycle.
func (m *BookMonitor) UpdateConfig(cfg BookMonitorConfig) {
	m.configMu.Lock()
	m.config = cfg
	m.configMu.Unlock()
}

func (m *BookMonitor) getConfig() BookMonitorConfig {
	m.configMu.RLock()
	defer m.configMu.RUnlock()
	return m.config
}

// SetTrackedMarkets replaces the tracked token set. Spread and trade
// baselines for dropped tokens are discarded.
func (m *BookMonitor) SetTrackedMarkets(tokenIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := make(map[string]bool, len(tokenIDs))
	m.tracked = append(m.tracked[:0], tokenIDs...)
	for _, id := range tokenIDs {
		keep[id] = true
	}
	for id := range m.lastSpread {
		if !keep[id] {
			delete(m.lastSpread, id)
		}
	}
	for id := range m.lastTradeTime {
		if !keep[id] {
			delete(m.lastTradeTime, id)
		}
	}
}

// AddMarket appends a token to the tracked set if not already present.
func (m *BookMonitor) AddMarket(tokenID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.tracked {
		if id == tokenID {
			return
		}
	}
	m.tracked = append(m.tracked, tokenID)
}

// TrackedMarkets returns a copy of the tracked token IDs.
func (m *BookMonitor) TrackedMarkets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.tracked))
	copy(out, m.tracked)
	return out
}

// DiscoverSportsMoneylines fetches active markets and returns the first
// token of each sports moneyline market, in listing order, capped at limit.
// The listing window is deliberately wide; the classifier does the narrowing.
func (m *BookMonitor) DiscoverSportsMoneylines(ctx context.Context, limit int) ([]string, error) {
	q := clobapi.DefaultMarketsQuery(config.MarketsConfig{Limit: 500, VolumeNumMin: 0, EndDateDays: 14})
	markets, err := m.api.GetMarkets(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("discover markets: %w", err)
	}

	var tokens []string
	for _, market := range markets {
		if limit > 0 && len(tokens) >= limit {
			break
		}
		if !m.filter.IsSportsMarket(market.Question, market.Description) {
			continue
		}
		if !m.filter.IsMoneylineMarket(market.Question) {
			continue
		}
		ids := market.GetTokenIDs()
		if len(ids) == 0 {
			continue
		}
		tokens = append(tokens, ids[0])
	}

	m.logger.Info("discovered sports moneylines",
		zap.Int("markets_scanned", len(markets)),
		zap.Int("tokens", len(tokens)))
	return tokens, nil
}

// Start launches the polling loop. Returns ErrAlreadyRunning if the
// monitor is already running and ErrNoMarkets when nothing is tracked.
func (m *BookMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	if len(m.tracked) == 0 {
		m.mu.Unlock()
		return ErrNoMarkets
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	trackedCount := len(m.tracked)
	m.mu.Unlock()

	m.logger.Info("book monitor started",
		zap.Int("tracked", trackedCount),
		zap.Duration("poll_interval", m.getConfig().PollInterval))

	go m.run(loopCtx, done)
	return nil
}

func (m *BookMonitor) run(ctx context.Context, done chan struct{}) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		close(done)
	}()

	for {
		m.pollCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.getConfig().PollInterval):
		}
	}
}

// Stop signals the loop to exit and waits up to StopTimeout for it. A
// stop on a monitor that isn't running is a no-op.
func (m *BookMonitor) Stop() {
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
		m.logger.Info("book monitor stopped")
	case <-time.After(m.getConfig().StopTimeout):
		m.logger.Warn("book monitor did not stop within timeout",
			zap.Duration("timeout", m.getConfig().StopTimeout))
	}
}

// Running reports whether the poll loop is active.
func (m *BookMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *BookMonitor) pollCycle(ctx context.Context) {
	cfg := m.getConfig()

	m.mu.Lock()
	tracked := make([]string, len(m.tracked))
	copy(tracked, m.tracked)
	m.mu.Unlock()

	for _, tokenID := range tracked {
		if ctx.Err() != nil {
			return
		}
		if err := m.pollToken(ctx, tokenID, cfg); err != nil {
			m.logger.Warn("poll failed for market",
				zap.String("token_id", shortID(tokenID)),
				zap.Error(err))
		}
	}
}

func (m *BookMonitor) pollToken(ctx context.Context, tokenID string, cfg BookMonitorConfig) error {
	book, err := m.api.GetOrderbook(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("get orderbook: %w", err)
	}

	now := time.Now()
	m.processBook(tokenID, book, cfg, now)
	m.detectNewTrades(ctx, tokenID, now)
	return nil
}

// processBook runs one book snapshot through the update, spread and large
// order pipelines. Both the poller and the websocket feed land here.
func (m *BookMonitor) processBook(tokenID string, book *clobapi.Book, cfg BookMonitorConfig, now time.Time) {
	spread := book.ComputeSpread()
	depth := book.ComputeDepth(cfg.DepthLevels)

	m.bookHistory.Append(*book)
	m.spreadHistory.Append(spread)

	m.callbacks.Dispatch(Event{
		Type:      EventOrderbookUpdate,
		TokenID:   tokenID,
		Timestamp: now,
		Payload:   BookUpdate{Book: book, Spread: spread, Depth: depth},
	})

	m.detectSpreadChange(tokenID, spread, cfg, now)
	m.detectLargeOrders(tokenID, book, cfg, now)
}

// detectSpreadChange dispatches spread_change when the spread moved by
// more than epsilon since the previous cycle. The first observation of a
// token only sets the baseline.
func (m *BookMonitor) detectSpreadChange(tokenID string, spread clobapi.Spread, cfg BookMonitorConfig, now time.Time) {
	m.mu.Lock()
	prev, seen := m.lastSpread[tokenID]
	m.lastSpread[tokenID] = spread.Spread
	m.mu.Unlock()

	if !seen {
		return
	}
	delta := spread.Spread - prev
	if math.Abs(delta) <= cfg.SpreadEpsilon {
		return
	}

	m.callbacks.Dispatch(Event{
		Type:      EventSpreadChange,
		TokenID:   tokenID,
		Timestamp: now,
		Payload:   SpreadChange{Previous: prev, Current: spread.Spread, Delta: delta},
	})
}

func (m *BookMonitor) detectLargeOrders(tokenID string, book *clobapi.Book, cfg BookMonitorConfig, now time.Time) {
	emit := func(side string, lv clobapi.Level) {
		valueHit := cfg.ValueThreshold > 0 && lv.Price*lv.Size >= cfg.ValueThreshold
		if lv.Size < cfg.SizeThreshold && !valueHit {
			return
		}
		m.callbacks.Dispatch(Event{
			Type:      EventLargeOrder,
			TokenID:   tokenID,
			Timestamp: now,
			Payload: LargeOrder{
				TokenID:   tokenID,
				Side:      side,
				Price:     lv.Price,
				Size:      lv.Size,
				Value:     lv.Price * lv.Size,
				Timestamp: now,
			},
		})
	}
	for _, lv := range book.Bids {
		emit("BID", lv)
	}
	for _, lv := range book.Asks {
		emit("ASK", lv)
	}
}

// detectNewTrades dispatches new_trade for trades newer than the last
// seen match time for the token. Trade fetch failures are logged only.
func (m *BookMonitor) detectNewTrades(ctx context.Context, tokenID string, now time.Time) {
	trades, err := m.api.GetTrades(ctx, tokenID, 100)
	if err != nil {
		m.logger.Debug("trade fetch failed",
			zap.String("token_id", shortID(tokenID)),
			zap.Error(err))
		return
	}

	m.mu.Lock()
	lastSeen := m.lastTradeTime[tokenID]
	m.mu.Unlock()

	maxSeen := lastSeen
	for _, tr := range trades {
		ts := tr.GetMatchTimeUnix()
		if ts <= lastSeen {
			continue
		}
		if ts > maxSeen {
			maxSeen = ts
		}
		m.tradeHistory.Append(tr)

		price := tr.GetPriceFloat()
		size := tr.GetSizeFloat()
		m.callbacks.Dispatch(Event{
			Type:      EventNewTrade,
			TokenID:   tokenID,
			Timestamp: now,
			Payload: TradeInfo{
				TradeID: tr.ID,
				Side:    tr.Side,
				Price:   price,
				Size:    size,
				Value:   price * size,
			},
		})
	}

	if maxSeen > lastSeen {
		m.mu.Lock()
		m.lastTradeTime[tokenID] = maxSeen
		m.mu.Unlock()
	}
}

// IngestStreamBook feeds a book snapshot received over the websocket into
// the same pipeline the poller uses, sharing spread baselines with it.
func (m *BookMonitor) IngestStreamBook(tokenID string, book *clobapi.Book) {
	if book == nil {
		return
	}
	m.processBook(tokenID, book, m.getConfig(), time.Now())
}

// IngestStreamTrade feeds a trade received over the websocket into the
// same new_trade pipeline the poller uses.
func (m *BookMonitor) IngestStreamTrade(tokenID string, tr clobapi.Trade) {
	now := time.Now()
	ts := tr.GetMatchTimeUnix()

	m.mu.Lock()
	lastSeen := m.lastTradeTime[tokenID]
	if ts > lastSeen {
		m.lastTradeTime[tokenID] = ts
	}
	m.mu.Unlock()

	if ts <= lastSeen {
		return
	}
	m.tradeHistory.Append(tr)

	price := tr.GetPriceFloat()
	size := tr.GetSizeFloat()
	m.callbacks.Dispatch(Event{
		Type:      EventNewTrade,
		TokenID:   tokenID,
		Timestamp: now,
		Payload: TradeInfo{
			TradeID: tr.ID,
			Side:    tr.Side,
			Price:   price,
			Size:    size,
			Value:   price * size,
		},
	})
}

// LatestSpreads returns the most recent spread observation per token.
func (m *BookMonitor) LatestSpreads() map[string]clobapi.Spread {
	latest := make(map[string]clobapi.Spread)
	for _, s := range m.spreadHistory.Items() {
		latest[s.TokenID] = s
	}
	return latest
}

// SpreadTable exports spread history, oldest first.
func (m *BookMonitor) SpreadTable() Table {
	t := Table{Columns: []string{
		"token_id", "best_bid", "best_ask", "mid", "spread", "spread_pct", "timestamp",
	}}
	for _, s := range m.spreadHistory.Items() {
		t.Rows = append(t.Rows, []string{
			shortID(s.TokenID),
			fmtFloat(s.BestBid),
			fmtFloat(s.BestAsk),
			fmtFloat(s.Mid),
			fmtFloat(s.Spread),
			fmt.Sprintf("%.2f", s.SpreadPct),
			s.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return t
}

// BookSummaryTable exports one row per book snapshot in history.
func (m *BookMonitor) BookSummaryTable() Table {
	t := Table{Columns: []string{
		"token_id", "best_bid", "best_ask", "bid_levels", "ask_levels", "timestamp",
	}}
	for _, b := range m.bookHistory.Items() {
		t.Rows = append(t.Rows, []string{
			shortID(b.TokenID),
			fmtFloat(b.BestBid()),
			fmtFloat(b.BestAsk()),
			fmt.Sprintf("%d", len(b.Bids)),
			fmt.Sprintf("%d", len(b.Asks)),
			b.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return t
}

// TradeTable exports observed trades, oldest first.
func (m *BookMonitor) TradeTable() Table {
	t := Table{Columns: []string{
		"trade_id", "token_id", "side", "price", "size", "value",
	}}
	for _, tr := range m.tradeHistory.Items() {
		price := tr.GetPriceFloat()
		size := tr.GetSizeFloat()
		t.Rows = append(t.Rows, []string{
			tr.ID,
			shortID(tr.TokenID),
			tr.Side,
			fmtFloat(price),
			fmtFloat(size),
			fmt.Sprintf("%.2f", price*size),
		})
	}
	return t
}

// ClearHistory drops all buffered observations. Spread and trade
// baselines are kept so diffing picks up where it left off.
func (m *BookMonitor) ClearHistory() {
	m.spreadHistory.Clear()
	m.bookHistory.Clear()
	m.tradeHistory.Clear()
}
