package clobstream

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewClobStreamClient(t *testing.T) {
	client := NewClobStreamClient(nil)

	if client.logger == nil {
		t.Error("expected logger to be set")
	}
	if client.marketWSURL != "wss://ws-subscriptions-clob.polymarket.com/ws/market" {
		t.Errorf("unexpected WS URL: %s", client.marketWSURL)
	}
	if client.pingInterval != 10*time.Second {
		t.Errorf("unexpected ping interval: %v", client.pingInterval)
	}
	if client.msgCh == nil {
		t.Error("expected msgCh to be initialized")
	}
	if client.errCh == nil {
		t.Error("expected errCh to be initialized")
	}
	if client.closeCh == nil {
		t.Error("expected closeCh to be initialized")
	}
}

func TestNewClobStreamClient_WithLogger(t *testing.T) {
	logger := zap.NewNop()
	client := NewClobStreamClient(logger)

	if client.logger != logger {
		t.Error("expected custom logger to be set")
	}
}

func TestStats_Empty(t *testing.T) {
	client := NewClobStreamClient(nil)

	stats := client.Stats()

	if stats.MessageCount != 0 {
		t.Errorf("expected 0 messages, got %d", stats.MessageCount)
	}
	if !stats.LastMessageAt.IsZero() {
		t.Error("expected zero time for last message")
	}
}

func TestClose_NoConnection(t *testing.T) {
	client := NewClobStreamClient(nil)

	if err := client.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	// Second close should also be safe
	if err := client.Close(); err != nil {
		t.Errorf("unexpected error on second close: %v", err)
	}
}

func TestSubscribeAssets_NotConnected(t *testing.T) {
	client := NewClobStreamClient(nil)

	if err := client.SubscribeAssets([]string{"asset1", "asset2"}); err == nil {
		t.Error("expected error when not connected")
	}
}

func TestUnsubscribeAssets_NotConnected(t *testing.T) {
	client := NewClobStreamClient(nil)

	if err := client.UnsubscribeAssets([]string{"asset1"}); err == nil {
		t.Error("expected error when not connected")
	}
}

func TestParseTradeEvent(t *testing.T) {
	raw := json.RawMessage(`{
		"event_type": "last_trade_price",
		"asset_id": "tok1",
		"price": "0.55",
		"size": "750",
		"side": "BUY",
		"timestamp": "1700000000"
	}`)

	event := ParseTradeEvent(raw)
	if event == nil {
		t.Fatal("expected trade event")
	}
	if event.AssetID != "tok1" {
		t.Errorf("asset = %s, want tok1", event.AssetID)
	}
	if event.GetPriceFloat() != 0.55 {
		t.Errorf("price = %v, want 0.55", event.GetPriceFloat())
	}
	if event.GetSizeFloat() != 750 {
		t.Errorf("size = %v, want 750", event.GetSizeFloat())
	}
	if event.GetTimestampUnix() != 1700000000 {
		t.Errorf("timestamp = %d, want 1700000000", event.GetTimestampUnix())
	}
}

func TestParseTradeEvent_NotTrade(t *testing.T) {
	raw := json.RawMessage(`{"event_type": "price_change", "asset_id": "tok1"}`)

	if event := ParseTradeEvent(raw); event != nil {
		t.Errorf("expected nil for non-trade event, got %+v", event)
	}
}

func TestParseTradeEvent_BadJSON(t *testing.T) {
	if event := ParseTradeEvent(json.RawMessage(`not json`)); event != nil {
		t.Errorf("expected nil for bad json, got %+v", event)
	}
}

func TestParseBookEvent(t *testing.T) {
	raw := json.RawMessage(`{
		"event_type": "book",
		"asset_id": "tok1",
		"bids": [{"price": "0.48", "size": "100"}],
		"asks": [{"price": "0.52", "size": "200"}],
		"timestamp": "1700000000"
	}`)

	event := ParseBookEvent(raw)
	if event == nil {
		t.Fatal("expected book event")
	}
	if len(event.Bids) != 1 || event.Bids[0].Price != "0.48" {
		t.Errorf("bids = %+v, want one level at 0.48", event.Bids)
	}
}

func TestParseBookEvent_NotBook(t *testing.T) {
	raw := json.RawMessage(`{"event_type": "trade", "asset_id": "tok1"}`)

	if event := ParseBookEvent(raw); event != nil {
		t.Errorf("expected nil for non-book event, got %+v", event)
	}
}

func TestParseEventType(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"book", `{"event_type": "book"}`, "book"},
		{"trade", `{"event_type": "trade"}`, "trade"},
		{"missing", `{}`, "empty"},
		{"bad json", `garbage`, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseEventType(json.RawMessage(tt.input)); got != tt.expected {
				t.Errorf("ParseEventType() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestEmitFrame_Batch(t *testing.T) {
	client := NewClobStreamClient(nil)

	client.emitFrame([]byte(`[{"event_type": "trade"}, {"event_type": "book"}]`))

	if got := len(client.msgCh); got != 2 {
		t.Errorf("expected 2 forwarded messages, got %d", got)
	}
}

func TestEmitFrame_SingleObject(t *testing.T) {
	client := NewClobStreamClient(nil)

	client.emitFrame([]byte(`  {"event_type": "trade"}`))

	if got := len(client.msgCh); got != 1 {
		t.Errorf("expected 1 forwarded message, got %d", got)
	}
}

func TestEmitFrame_Empty(t *testing.T) {
	client := NewClobStreamClient(nil)

	client.emitFrame([]byte("   "))

	if got := len(client.msgCh); got != 0 {
		t.Errorf("expected no forwarded messages, got %d", got)
	}
}
