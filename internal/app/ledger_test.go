package app

import (
	"math"
	"testing"

	"go.uber.org/zap"
)

func TestAddPositionValidation(t *testing.T) {
	l := NewPositionLedger(zap.NewNop())

	if _, err := l.AddPosition("tok", "market", "LONG", 0, 0.5); err != ErrInvalidSize {
		t.Errorf("expected ErrInvalidSize for zero size, got %v", err)
	}
	if _, err := l.AddPosition("tok", "market", "LONG", -10, 0.5); err != ErrInvalidSize {
		t.Errorf("expected ErrInvalidSize for negative size, got %v", err)
	}
	if _, err := l.AddPosition("tok", "market", "SIDEWAYS", 10, 0.5); err != ErrInvalidSide {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}

	id, err := l.AddPosition("tok", "market", "long", 10, 0.5)
	if err != nil {
		t.Fatalf("expected lowercase side accepted, got error: %v", err)
	}
	pos, err := l.GetPosition(id)
	if err != nil {
		t.Fatalf("GetPosition failed: %v", err)
	}
	if pos.Side != "LONG" {
		t.Errorf("expected side normalized to LONG, got %s", pos.Side)
	}
	if pos.Status != StatusOpen {
		t.Errorf("expected status OPEN, got %s", pos.Status)
	}
}

func TestClosePositionLongPnl(t *testing.T) {
	l := NewPositionLedger(zap.NewNop())

	id, err := l.AddPosition("tok", "market", "LONG", 100, 0.50)
	if err != nil {
		t.Fatalf("AddPosition failed: %v", err)
	}

	pnl, err := l.ClosePosition(id, 0.60)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	if !almostEqualF(pnl, 10.0) {
		t.Errorf("expected realized pnl 10.0, got %f", pnl)
	}

	s := l.Summary()
	if s.ClosedPositions != 1 {
		t.Errorf("expected 1 closed position, got %d", s.ClosedPositions)
	}
	if !almostEqualF(s.TotalRealized, 10.0) {
		t.Errorf("expected total realized 10.0, got %f", s.TotalRealized)
	}

	table := l.PnlTable()
	if table.NumRows() != 1 {
		t.Fatalf("expected 1 pnl record, got %d", table.NumRows())
	}
	if table.Rows[0][8] != "20.00" {
		t.Errorf("expected pnl_pct 20.00, got %s", table.Rows[0][8])
	}
}

func TestClosePositionShortPnl(t *testing.T) {
	l := NewPositionLedger(zap.NewNop())

	id, err := l.AddPosition("tok", "market", "SHORT", 100, 0.50)
	if err != nil {
		t.Fatalf("AddPosition failed: %v", err)
	}

	pnl, err := l.ClosePosition(id, 0.60)
	if err != nil {
		t.Fatalf("ClosePosition failed: %v", err)
	}
	if !almostEqualF(pnl, -10.0) {
		t.Errorf("expected realized pnl -10.0, got %f", pnl)
	}

	table := l.PnlTable()
	if table.Rows[0][8] != "-20.00" {
		t.Errorf("expected pnl_pct -20.00, got %s", table.Rows[0][8])
	}
}

func TestClosePositionErrors(t *testing.T) {
	l := NewPositionLedger(zap.NewNop())

	if _, err := l.ClosePosition("missing", 0.5); err != ErrPositionNotFound {
		t.Errorf("expected ErrPositionNotFound for unknown id, got %v", err)
	}

	id, _ := l.AddPosition("tok", "market", "LONG", 10, 0.5)
	if _, err := l.ClosePosition(id, 0.6); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if _, err := l.ClosePosition(id, 0.7); err != ErrPositionNotFound {
		t.Errorf("expected ErrPositionNotFound for double close, got %v", err)
	}
}

func TestUpdatePositions(t *testing.T) {
	l := NewPositionLedger(zap.NewNop())

	longID, _ := l.AddPosition("tokA", "market a", "LONG", 100, 0.50)
	shortPosID, _ := l.AddPosition("tokB", "market b", "SHORT", 50, 0.40)
	noPriceID, _ := l.AddPosition("tokC", "market c", "LONG", 10, 0.30)

	l.UpdatePositions(map[string]float64{
		"tokA": 0.55,
		"tokB": 0.30,
	})

	long, _ := l.GetPosition(longID)
	if !almostEqualF(long.UnrealizedPnl, 5.0) {
		t.Errorf("expected long unrealized pnl 5.0, got %f", long.UnrealizedPnl)
	}
	if !almostEqualF(long.UnrealizedPnlPct, 10.0) {
		t.Errorf("expected long unrealized pct 10.0, got %f", long.UnrealizedPnlPct)
	}

	short, _ := l.GetPosition(shortPosID)
	if !almostEqualF(short.UnrealizedPnl, 5.0) {
		t.Errorf("expected short unrealized pnl 5.0, got %f", short.UnrealizedPnl)
	}

	untouched, _ := l.GetPosition(noPriceID)
	if untouched.CurrentPrice != 0.30 {
		t.Errorf("expected position without price unchanged, got current price %f", untouched.CurrentPrice)
	}
	if untouched.UnrealizedPnl != 0 {
		t.Errorf("expected zero unrealized pnl without price, got %f", untouched.UnrealizedPnl)
	}
}

func TestAlertsBuckets(t *testing.T) {
	l := NewPositionLedger(zap.NewNop())

	lossID, _ := l.AddPosition("tokLoss", "m", "LONG", 100, 0.50)
	gainID, _ := l.AddPosition("tokGain", "m", "LONG", 100, 0.50)
	quietID, _ := l.AddPosition("tokQuiet", "m", "LONG", 100, 0.50)

	l.UpdatePositions(map[string]float64{
		"tokLoss":  0.44, // -12%
		"tokGain":  0.625, // +25%
		"tokQuiet": 0.525, // +5%
	})

	alerts := l.Alerts(-10, 20)

	if len(alerts.StopLoss) != 1 || alerts.StopLoss[0].ID != lossID {
		t.Errorf("expected exactly the -12%% position in stop loss, got %d entries", len(alerts.StopLoss))
	}
	if len(alerts.TakeProfit) != 1 || alerts.TakeProfit[0].ID != gainID {
		t.Errorf("expected exactly the +25%% position in take profit, got %d entries", len(alerts.TakeProfit))
	}
	for _, p := range append(alerts.StopLoss, alerts.TakeProfit...) {
		if p.ID == quietID {
			t.Error("+5% position should not appear in any bucket")
		}
	}
}

func TestSummaryWinRate(t *testing.T) {
	l := NewPositionLedger(zap.NewNop())

	if rate := l.Summary().WinRate; rate != 0 {
		t.Errorf("expected win rate 0 with no closed positions, got %f", rate)
	}

	// three closed positions: +5, -2, +3
	for _, exit := range []float64{0.55, 0.48, 0.53} {
		id, _ := l.AddPosition("tok", "m", "LONG", 100, 0.50)
		if _, err := l.ClosePosition(id, exit); err != nil {
			t.Fatalf("ClosePosition failed: %v", err)
		}
	}

	// plus one open position up 4.0 unrealized
	if _, err := l.AddPosition("tokOpen", "m", "LONG", 100, 0.50); err != nil {
		t.Fatalf("AddPosition failed: %v", err)
	}
	l.UpdatePositions(map[string]float64{"tokOpen": 0.54})

	s := l.Summary()
	if math.Abs(s.WinRate-66.7) > 0.1 {
		t.Errorf("expected win rate ~66.7, got %f", s.WinRate)
	}
	if s.WinningTrades != 2 || s.LosingTrades != 1 {
		t.Errorf("expected 2 winners and 1 loser, got %d and %d", s.WinningTrades, s.LosingTrades)
	}
	if !almostEqualF(s.BestTrade, 5.0) {
		t.Errorf("expected best trade 5.0, got %f", s.BestTrade)
	}
	if !almostEqualF(s.WorstTrade, -2.0) {
		t.Errorf("expected worst trade -2.0, got %f", s.WorstTrade)
	}
	if !almostEqualF(s.TotalRealized, 6.0) {
		t.Errorf("expected total realized 6.0, got %f", s.TotalRealized)
	}
	if !almostEqualF(s.TotalPnl, s.TotalRealized+s.TotalUnrealized) {
		t.Errorf("expected total pnl %f, got %f", s.TotalRealized+s.TotalUnrealized, s.TotalPnl)
	}
	if !almostEqualF(s.TotalUnrealized, 4.0) {
		t.Errorf("expected total unrealized 4.0, got %f", s.TotalUnrealized)
	}
}

func TestPositionsTableOrder(t *testing.T) {
	l := NewPositionLedger(zap.NewNop())

	first, _ := l.AddPosition("tokA", "market a", "LONG", 10, 0.5)
	second, _ := l.AddPosition("tokB", "market b", "SHORT", 20, 0.6)

	table := l.PositionsTable()
	if table.NumRows() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.NumRows())
	}
	if table.Rows[0][0] != first || table.Rows[1][0] != second {
		t.Error("expected rows in opening order")
	}
	if len(table.Columns) != 10 {
		t.Errorf("expected 10 columns, got %d", len(table.Columns))
	}
	if table.Columns[0] != "position_id" || table.Columns[9] != "status" {
		t.Errorf("unexpected column layout: %v", table.Columns)
	}
}

func almostEqualF(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
