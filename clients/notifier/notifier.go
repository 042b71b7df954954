package notifier

import (
	"time"
)

// AlertReason indicates why an alert was triggered.
type AlertReason string

const (
	AlertReasonLargeOrder    AlertReason = "large_order"
	AlertReasonSpreadChange  AlertReason = "spread_change"
	AlertReasonNewTrade      AlertReason = "new_trade"
	AlertReasonPositionGain  AlertReason = "position_gain"
	AlertReasonPositionLoss  AlertReason = "position_loss"
	AlertReasonMonitorStatus AlertReason = "monitor_status" // Start/stop and discovery notices
)

// OrderAlert contains all the data needed for an orderbook alert notification.
type OrderAlert struct {
	// Market info
	TokenID  string
	Question string
	Outcome  string
	Sport    string // Sport category when the market was classified, "" otherwise

	// Order info
	Side  string // BUY or SELL
	Price float64
	Size  float64
	Value float64 // Price * Size in USD

	// Book context at detection time
	BestBid   float64
	BestAsk   float64
	SpreadPct float64

	// Position info (for ledger alerts)
	PositionID   string
	PositionSide string // LONG or SHORT
	EntryPrice   float64
	PnlPct       float64
	HasPosition  bool // True if position fields are populated

	// Freeform status text (for monitor_status alerts)
	Message string

	// Alert metadata
	Reasons   []AlertReason
	Timestamp time.Time
}

// Notifier is the interface for sending orderbook alerts to various channels.
type Notifier interface {
	// SendOrderAlert sends an orderbook alert notification.
	SendOrderAlert(alert OrderAlert)

	// Close cleans up any resources.
	Close() error
}

// MultiNotifier broadcasts alerts to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a new MultiNotifier with the given notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	// Filter out nil notifiers
	var active []Notifier
	for _, n := range notifiers {
		if n != nil {
			active = append(active, n)
		}
	}
	return &MultiNotifier{notifiers: active}
}

// SendOrderAlert sends the alert to all registered notifiers.
func (m *MultiNotifier) SendOrderAlert(alert OrderAlert) {
	for _, n := range m.notifiers {
		n.SendOrderAlert(alert)
	}
}

// Close closes all registered notifiers.
func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Count returns the number of active notifiers.
func (m *MultiNotifier) Count() int {
	return len(m.notifiers)
}
