package app

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"bookwatch/clients/clobapi"
)

// EventType identifies a class of monitor event.
type EventType string

const (
	EventOrderbookUpdate EventType = "orderbook_update"
	EventSpreadChange    EventType = "spread_change"
	EventNewTrade        EventType = "new_trade"
	EventLargeOrder      EventType = "large_order"
)

// Event is delivered to registered callbacks. Payload holds the typed
// detail struct for the event type.
type Event struct {
	Type      EventType
	TokenID   string
	Timestamp time.Time
	Payload   any
}

// BookUpdate is the payload of an orderbook_update event.
type BookUpdate struct {
	Book   *clobapi.Book
	Spread clobapi.Spread
	Depth  clobapi.Depth
}

// SpreadChange is the payload of a spread_change event.
type SpreadChange struct {
	Previous float64
	Current  float64
	Delta    float64
}

// TradeInfo is the payload of a new_trade event.
type TradeInfo struct {
	TradeID string
	Side    string
	Price   float64
	Size    float64
	Value   float64
}

// LargeOrder is the payload of a large_order event.
type LargeOrder struct {
	TokenID   string
	Side      string // BID or ASK
	Price     float64
	Size      float64
	Value     float64
	Timestamp time.Time
}

// callbackRegistry fans events out to handlers registered per type.
// Handlers run in registration order; a panicking handler is logged and
// never takes down the dispatch loop.
type callbackRegistry struct {
	mu        sync.RWMutex
	callbacks map[EventType][]func(Event)
	logger    *zap.Logger
}

func newCallbackRegistry(logger *zap.Logger) *callbackRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &callbackRegistry{
		callbacks: make(map[EventType][]func(Event)),
		logger:    logger,
	}
}

func (r *callbackRegistry) Add(t EventType, fn func(Event)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[t] = append(r.callbacks[t], fn)
}

func (r *callbackRegistry) Dispatch(ev Event) {
	r.mu.RLock()
	handlers := r.callbacks[ev.Type]
	r.mu.RUnlock()

	for _, fn := range handlers {
		r.invoke(fn, ev)
	}
}

func (r *callbackRegistry) invoke(fn func(Event), ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event callback panicked",
				zap.String("event_type", string(ev.Type)),
				zap.String("token_id", shortID(ev.TokenID)),
				zap.Any("panic", rec))
		}
	}()
	fn(ev)
}
