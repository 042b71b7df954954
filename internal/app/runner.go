package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookwatch/clients"
	"bookwatch/clients/clobapi"
	"bookwatch/clients/clobstream"
	"bookwatch/clients/notifier"
	"bookwatch/config"
)

// Runner owns the monitors and the position ledger and keeps them alive
// until the context is cancelled.
type Runner struct {
	logger *zap.Logger
	cfg    *config.Config
	cl     *clients.Clients

	books     *BookMonitor
	bigs      *BigOrderMonitor
	ledger    *PositionLedger
	startTime time.Time
}

func NewRunner(logger *zap.Logger, cfg *config.Config, cl *clients.Clients) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger: logger,
		cfg:    cfg,
		cl:     cl,
		books:  NewBookMonitor(logger, cl.ClobAPI, NewSportsFilter(), cfg.Monitor),
		bigs:   NewBigOrderMonitor(logger, cl.ClobAPI, cl.Notifier, cfg.BigOrders, cfg.Markets),
		ledger: NewPositionLedger(logger),
	}
}

// Books exposes the orderbook monitor.
func (r *Runner) Books() *BookMonitor { return r.books }

// BigOrders exposes the big order monitor.
func (r *Runner) BigOrders() *BigOrderMonitor { return r.bigs }

// Ledger exposes the position ledger.
func (r *Runner) Ledger() *PositionLedger { return r.ledger }

// Run discovers markets, starts both monitors and blocks until ctx is
// cancelled, then shuts everything down.
func (r *Runner) Run(ctx context.Context) error {
	r.startTime = time.Now()

	tokens, err := r.books.DiscoverSportsMoneylines(ctx, r.cfg.Markets.Limit)
	if err != nil {
		return fmt.Errorf("market discovery: %w", err)
	}
	if len(tokens) == 0 {
		r.logger.Warn("no sports moneyline markets found")
	}
	r.books.SetTrackedMarkets(tokens)

	r.wireBookEvents()

	if len(tokens) > 0 {
		if err := r.books.Start(ctx); err != nil {
			return fmt.Errorf("start book monitor: %w", err)
		}
	}
	if err := r.bigs.Start(ctx, true, r.cfg.BigOrders.MarketLimit); err != nil {
		if err == ErrNoMarkets {
			r.logger.Warn("big order monitor idle, no markets discovered")
		} else {
			return fmt.Errorf("start big order monitor: %w", err)
		}
	}

	if r.cl.Notifier != nil {
		r.cl.Notifier.SendOrderAlert(notifier.OrderAlert{
			Message:   fmt.Sprintf("Monitoring started: %d sports moneyline tokens tracked", len(tokens)),
			Reasons:   []notifier.AlertReason{notifier.AlertReasonMonitorStatus},
			Timestamp: time.Now(),
		})
	}

	g, gCtx := errgroup.WithContext(ctx)

	if r.cfg.Monitor.UseStream && r.cl.Stream != nil && len(tokens) > 0 {
		if err := r.cl.Stream.ConnectMarket(gCtx, tokens); err != nil {
			r.logger.Warn("websocket connect failed, polling only", zap.Error(err))
		} else {
			g.Go(func() error { return r.pumpStream(gCtx) })
		}
	}

	g.Go(func() error { return r.refreshPositions(gCtx) })

	if r.cfg.HealthServer.Enabled {
		g.Go(func() error { return r.serveHealth(gCtx) })
	}

	g.Go(func() error {
		<-gCtx.Done()
		r.shutdown()
		return nil
	})

	return g.Wait()
}

// wireBookEvents routes monitor events to logs and the notifier. Large
// orders seen by the book monitor alert like big order sweep hits do.
func (r *Runner) wireBookEvents() {
	r.books.AddCallback(EventSpreadChange, func(ev Event) {
		change := ev.Payload.(SpreadChange)
		r.logger.Info("spread changed",
			zap.String("token_id", shortID(ev.TokenID)),
			zap.Float64("previous", change.Previous),
			zap.Float64("current", change.Current),
			zap.Float64("delta", change.Delta))
	})

	r.books.AddCallback(EventLargeOrder, func(ev Event) {
		order := ev.Payload.(LargeOrder)
		if r.cl.Notifier == nil {
			return
		}
		side := "BUY"
		if order.Side == "ASK" {
			side = "SELL"
		}
		r.cl.Notifier.SendOrderAlert(notifier.OrderAlert{
			TokenID:   order.TokenID,
			Side:      side,
			Price:     order.Price,
			Size:      order.Size,
			Value:     order.Value,
			Message:   fmt.Sprintf("Large resting %s on a tracked moneyline book", order.Side),
			Reasons:   []notifier.AlertReason{notifier.AlertReasonLargeOrder},
			Timestamp: ev.Timestamp,
		})
	})

	r.books.AddCallback(EventNewTrade, func(ev Event) {
		trade := ev.Payload.(TradeInfo)
		r.logger.Debug("trade observed",
			zap.String("token_id", shortID(ev.TokenID)),
			zap.String("side", trade.Side),
			zap.Float64("price", trade.Price),
			zap.Float64("size", trade.Size))
	})
}

// pumpStream feeds websocket trade events into the book monitor's
// new_trade pipeline.
func (r *Runner) pumpStream(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-r.cl.Stream.Errors():
			if !ok {
				return nil
			}
			r.logger.Warn("websocket error", zap.Error(err))
		case msg, ok := <-r.cl.Stream.Messages():
			if !ok {
				return nil
			}
			if trade := clobstream.ParseTradeEvent(msg); trade != nil {
				r.books.IngestStreamTrade(trade.AssetID, clobapi.Trade{
					ID:        trade.TradeID,
					TokenID:   trade.AssetID,
					Side:      trade.Side,
					Price:     trade.Price,
					Size:      trade.Size,
					MatchTime: trade.Timestamp,
				})
				continue
			}
			if snap := clobstream.ParseBookEvent(msg); snap != nil {
				r.books.IngestStreamBook(snap.AssetID, streamBook(snap, msg))
			}
		}
	}
}

// streamBook converts a websocket book snapshot into the REST book shape.
// Levels re-parse from the raw message so the decimal-string decoding is
// shared with the REST client.
func streamBook(snap *clobstream.BookEvent, raw json.RawMessage) *clobapi.Book {
	var levels struct {
		Bids []clobapi.Level `json:"bids"`
		Asks []clobapi.Level `json:"asks"`
	}
	if err := json.Unmarshal(raw, &levels); err != nil {
		return nil
	}
	return &clobapi.Book{
		TokenID:   snap.AssetID,
		Bids:      levels.Bids,
		Asks:      levels.Asks,
		Timestamp: time.Now(),
	}
}

// refreshPositions marks open positions to the latest mids on a ticker
// and sends gain/loss alerts when thresholds are crossed.
func (r *Runner) refreshPositions(ctx context.Context) error {
	interval := r.cfg.Positions.UpdateInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	alerted := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		prices := make(map[string]float64)
		for tokenID, spread := range r.books.LatestSpreads() {
			if spread.Mid > 0 {
				prices[tokenID] = spread.Mid
			}
		}
		if len(prices) == 0 {
			continue
		}
		r.ledger.UpdatePositions(prices)

		alerts := r.ledger.Alerts(r.cfg.Positions.StopLossPct, r.cfg.Positions.TakeProfitPct)
		for _, pos := range alerts.StopLoss {
			r.sendPositionAlert(pos, notifier.AlertReasonPositionLoss, alerted)
		}
		for _, pos := range alerts.TakeProfit {
			r.sendPositionAlert(pos, notifier.AlertReasonPositionGain, alerted)
		}
	}
}

// sendPositionAlert notifies once per position per threshold breach.
func (r *Runner) sendPositionAlert(pos Position, reason notifier.AlertReason, alerted map[string]bool) {
	key := pos.ID + "_" + string(reason)
	if alerted[key] || r.cl.Notifier == nil {
		return
	}
	alerted[key] = true

	r.cl.Notifier.SendOrderAlert(notifier.OrderAlert{
		TokenID:      pos.TokenID,
		Question:     pos.MarketName,
		Price:        pos.CurrentPrice,
		Size:         pos.Size,
		Value:        pos.CurrentPrice * pos.Size,
		PositionID:   pos.ID,
		PositionSide: pos.Side,
		EntryPrice:   pos.EntryPrice,
		PnlPct:       pos.UnrealizedPnlPct,
		HasPosition:  true,
		Message:      fmt.Sprintf("Unrealized P&L crossed %.1f%%", pos.UnrealizedPnlPct),
		Reasons:      []notifier.AlertReason{reason},
		Timestamp:    time.Now(),
	})
}

// serviceStats is the /stats payload.
type serviceStats struct {
	Uptime         string              `json:"uptime"`
	TrackedMarkets int                 `json:"tracked_markets"`
	BigOrders      BigOrderStats       `json:"big_orders"`
	Portfolio      PortfolioSummary    `json:"portfolio"`
	Websocket      *clobstream.WSStats `json:"websocket,omitempty"`
}

func (r *Runner) serveHealth(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := serviceStats{
			Uptime:         time.Since(r.startTime).Round(time.Second).String(),
			TrackedMarkets: len(r.books.TrackedMarkets()),
			BigOrders:      r.bigs.Stats(),
			Portfolio:      r.ledger.Summary(),
		}
		if r.cl.Stream != nil {
			ws := r.cl.Stream.Stats()
			stats.Websocket = &ws
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			r.logger.Warn("stats encode failed", zap.Error(err))
		}
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", r.cfg.HealthServer.Port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	r.logger.Info("health server listening", zap.Int("port", r.cfg.HealthServer.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

func (r *Runner) shutdown() {
	r.logger.Info("shutting down")

	r.books.Stop()
	r.bigs.Stop()

	if r.cl.Stream != nil {
		if err := r.cl.Stream.Close(); err != nil {
			r.logger.Warn("websocket close failed", zap.Error(err))
		}
	}
	if r.cl.Notifier != nil {
		r.cl.Notifier.SendOrderAlert(notifier.OrderAlert{
			Message:   "Monitoring stopped",
			Reasons:   []notifier.AlertReason{notifier.AlertReasonMonitorStatus},
			Timestamp: time.Now(),
		})
		if err := r.cl.Notifier.Close(); err != nil {
			r.logger.Warn("notifier close failed", zap.Error(err))
		}
	}
}
