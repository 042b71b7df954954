package app

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	SideLong  = "LONG"
	SideShort = "SHORT"

	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Position is a simulated holding in a market outcome token.
type Position struct {
	ID         string
	TokenID    string
	MarketName string
	Side       string
	Size       float64
	EntryPrice float64
	OpenedAt   time.Time
	Status     string

	// refreshed by UpdatePositions while open
	CurrentPrice     float64
	UnrealizedPnl    float64
	UnrealizedPnlPct float64

	// set when closed
	ExitPrice float64
	ClosedAt  time.Time
}

// PnlRecord is the realized result of a closed position.
type PnlRecord struct {
	PositionID string
	TokenID    string
	MarketName string
	Side       string
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	Pnl        float64
	PnlPct     float64
	ClosedAt   time.Time
}

// PositionAlerts buckets open positions that breached the stop-loss or
// take-profit thresholds.
type PositionAlerts struct {
	StopLoss   []Position
	TakeProfit []Position
}

// PortfolioSummary aggregates open and closed position performance.
type PortfolioSummary struct {
	OpenPositions   int
	ClosedPositions int
	WinningTrades   int
	LosingTrades    int
	TotalUnrealized float64
	TotalRealized   float64
	TotalPnl        float64 // TotalRealized + TotalUnrealized
	WinRate         float64
	BestTrade       float64
	WorstTrade      float64
}

// PositionLedger tracks simulated positions and realized pnl. No orders
// are ever placed; prices come from the monitors.
type PositionLedger struct {
	logger *zap.Logger

	mu        sync.Mutex
	positions map[string]*Position
	order     []string // insertion order, for stable tables
	records   []PnlRecord
}

func NewPositionLedger(logger *zap.Logger) *PositionLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PositionLedger{
		logger:    logger,
		positions: make(map[string]*Position),
	}
}

// AddPosition opens a simulated position and returns its ID.
func (l *PositionLedger) AddPosition(tokenID, marketName, side string, size, entryPrice float64) (string, error) {
	if size <= 0 {
		return "", ErrInvalidSize
	}
	side = strings.ToUpper(side)
	if side != SideLong && side != SideShort {
		return "", ErrInvalidSide
	}

	pos := &Position{
		ID:           uuid.NewString(),
		TokenID:      tokenID,
		MarketName:   marketName,
		Side:         side,
		Size:         size,
		EntryPrice:   entryPrice,
		OpenedAt:     time.Now(),
		Status:       StatusOpen,
		CurrentPrice: entryPrice,
	}

	l.mu.Lock()
	l.positions[pos.ID] = pos
	l.order = append(l.order, pos.ID)
	l.mu.Unlock()

	l.logger.Info("position opened",
		zap.String("position_id", pos.ID),
		zap.String("token_id", shortID(tokenID)),
		zap.String("side", side),
		zap.Float64("size", size),
		zap.Float64("entry_price", entryPrice))

	return pos.ID, nil
}

// UpdatePositions refreshes unrealized pnl on open positions from the
// given token_id -> price map. Positions without a price are unchanged.
func (l *PositionLedger) UpdatePositions(prices map[string]float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, pos := range l.positions {
		if pos.Status != StatusOpen {
			continue
		}
		price, ok := prices[pos.TokenID]
		if !ok {
			continue
		}
		pos.CurrentPrice = price
		pos.UnrealizedPnl = pnl(pos.Side, pos.Size, pos.EntryPrice, price)
		pos.UnrealizedPnlPct = pnlPct(pos.UnrealizedPnl, pos.Size, pos.EntryPrice)
	}
}

// ClosePosition realizes a position at the exit price and returns its pnl.
func (l *PositionLedger) ClosePosition(positionID string, exitPrice float64) (float64, error) {
	l.mu.Lock()
	pos, ok := l.positions[positionID]
	if !ok || pos.Status != StatusOpen {
		l.mu.Unlock()
		return 0, ErrPositionNotFound
	}

	realized := pnl(pos.Side, pos.Size, pos.EntryPrice, exitPrice)
	pct := pnlPct(realized, pos.Size, pos.EntryPrice)

	pos.Status = StatusClosed
	pos.ExitPrice = exitPrice
	pos.ClosedAt = time.Now()
	pos.CurrentPrice = exitPrice
	pos.UnrealizedPnl = 0
	pos.UnrealizedPnlPct = 0

	l.records = append(l.records, PnlRecord{
		PositionID: pos.ID,
		TokenID:    pos.TokenID,
		MarketName: pos.MarketName,
		Side:       pos.Side,
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Pnl:        realized,
		PnlPct:     pct,
		ClosedAt:   pos.ClosedAt,
	})
	l.mu.Unlock()

	l.logger.Info("position closed",
		zap.String("position_id", positionID),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", realized),
		zap.Float64("pnl_pct", pct))

	return realized, nil
}

// Alerts returns open positions whose unrealized pnl percentage breached
// the stop-loss (at or below) or take-profit (at or above) thresholds.
func (l *PositionLedger) Alerts(stopLossPct, takeProfitPct float64) PositionAlerts {
	l.mu.Lock()
	defer l.mu.Unlock()

	var alerts PositionAlerts
	for _, id := range l.order {
		pos := l.positions[id]
		if pos.Status != StatusOpen {
			continue
		}
		switch {
		case pos.UnrealizedPnlPct <= stopLossPct:
			alerts.StopLoss = append(alerts.StopLoss, *pos)
		case pos.UnrealizedPnlPct >= takeProfitPct:
			alerts.TakeProfit = append(alerts.TakeProfit, *pos)
		}
	}
	return alerts
}

// GetPosition returns a snapshot of a position by ID.
func (l *PositionLedger) GetPosition(positionID string) (Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[positionID]
	if !ok {
		return Position{}, ErrPositionNotFound
	}
	return *pos, nil
}

// OpenPositions returns snapshots of all open positions in opening order.
func (l *PositionLedger) OpenPositions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Position
	for _, id := range l.order {
		if pos := l.positions[id]; pos.Status == StatusOpen {
			out = append(out, *pos)
		}
	}
	return out
}

// Summary aggregates portfolio performance across open and closed
// positions. Win rate is winners/closed*100, 0 when nothing has closed.
func (l *PositionLedger) Summary() PortfolioSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s PortfolioSummary
	for _, pos := range l.positions {
		if pos.Status == StatusOpen {
			s.OpenPositions++
			s.TotalUnrealized += pos.UnrealizedPnl
		}
	}

	s.ClosedPositions = len(l.records)
	for i, rec := range l.records {
		s.TotalRealized += rec.Pnl
		if rec.Pnl > 0 {
			s.WinningTrades++
		} else if rec.Pnl < 0 {
			s.LosingTrades++
		}
		if i == 0 || rec.Pnl > s.BestTrade {
			s.BestTrade = rec.Pnl
		}
		if i == 0 || rec.Pnl < s.WorstTrade {
			s.WorstTrade = rec.Pnl
		}
	}
	if s.ClosedPositions > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.ClosedPositions) * 100
	}
	s.TotalPnl = s.TotalRealized + s.TotalUnrealized
	return s
}

// PositionsTable exports the ledger as a table, open and closed, in
// opening order.
func (l *PositionLedger) PositionsTable() Table {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := Table{Columns: []string{
		"position_id", "token_id", "market", "side", "size",
		"entry_price", "current_price", "unrealized_pnl", "unrealized_pnl_pct", "status",
	}}
	for _, id := range l.order {
		pos := l.positions[id]
		t.Rows = append(t.Rows, []string{
			pos.ID,
			shortID(pos.TokenID),
			pos.MarketName,
			pos.Side,
			fmtFloat(pos.Size),
			fmtFloat(pos.EntryPrice),
			fmtFloat(pos.CurrentPrice),
			fmt.Sprintf("%.2f", pos.UnrealizedPnl),
			fmt.Sprintf("%.2f", pos.UnrealizedPnlPct),
			pos.Status,
		})
	}
	return t
}

// PnlTable exports realized pnl records in closing order.
func (l *PositionLedger) PnlTable() Table {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := Table{Columns: []string{
		"position_id", "token_id", "market", "side", "size",
		"entry_price", "exit_price", "pnl", "pnl_pct", "closed_at",
	}}
	for _, rec := range l.records {
		t.Rows = append(t.Rows, []string{
			rec.PositionID,
			shortID(rec.TokenID),
			rec.MarketName,
			rec.Side,
			fmtFloat(rec.Size),
			fmtFloat(rec.EntryPrice),
			fmtFloat(rec.ExitPrice),
			fmt.Sprintf("%.2f", rec.Pnl),
			fmt.Sprintf("%.2f", rec.PnlPct),
			rec.ClosedAt.UTC().Format(time.RFC3339),
		})
	}
	return t
}

func pnl(side string, size, entry, current float64) float64 {
	if side == SideShort {
		return size * (entry - current)
	}
	return size * (current - entry)
}

func pnlPct(pnl, size, entry float64) float64 {
	basis := size * entry
	if basis == 0 {
		return 0
	}
	return pnl / basis * 100
}
