package discord

import (
	"testing"
	"time"

	"bookwatch/clients/notifier"
	"bookwatch/config"

	"go.uber.org/zap"
)

func TestNewDiscordClient_NoToken(t *testing.T) {
	cfg := &config.Config{
		IsProd: false,
		Discord: config.DiscordConfig{
			BotToken:      "",
			ProdChannelID: "prod-channel",
			BetaChannelID: "beta-channel",
		},
	}

	client := NewDiscordClient(zap.NewNop(), cfg)

	if client.session != nil {
		t.Error("expected nil session when no token provided")
	}
	if client.channelID != "beta-channel" {
		t.Errorf("expected beta channel, got: %s", client.channelID)
	}
}

func TestNewDiscordClient_ProdChannel(t *testing.T) {
	cfg := &config.Config{
		IsProd: true,
		Discord: config.DiscordConfig{
			BotToken:      "",
			ProdChannelID: "prod-channel",
			BetaChannelID: "beta-channel",
		},
	}

	client := NewDiscordClient(nil, cfg)

	if client.channelID != "prod-channel" {
		t.Errorf("expected prod channel, got: %s", client.channelID)
	}
}

func TestSendMessage_NoSession(t *testing.T) {
	client := &DiscordClient{
		logger:  zap.NewNop(),
		session: nil,
	}

	// Should not panic
	client.SendMessage("test message")
}

func TestSendOrderAlert_NoSession(t *testing.T) {
	client := &DiscordClient{
		logger:  zap.NewNop(),
		session: nil,
	}

	// Should not panic
	client.SendOrderAlert(notifier.OrderAlert{TokenID: "tok1"})
}

func TestBuildOrderEmbed_BuySide(t *testing.T) {
	client := &DiscordClient{
		logger: zap.NewNop(),
	}

	alert := notifier.OrderAlert{
		TokenID:   "12345678901234567890",
		Question:  "Will the Chiefs win?",
		Outcome:   "Yes",
		Sport:     "NFL",
		Side:      "BUY",
		Price:     0.55,
		Size:      750,
		Value:     412.5,
		BestBid:   0.54,
		BestAsk:   0.56,
		SpreadPct: 3.64,
		Reasons:   []notifier.AlertReason{notifier.AlertReasonLargeOrder},
		Timestamp: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	embed := client.buildOrderEmbed(alert)

	if embed.Title != "🐋 Large Order Detected" {
		t.Errorf("unexpected title: %s", embed.Title)
	}
	if embed.Color != 0x2ECC71 { // Green for BUY
		t.Errorf("unexpected color for BUY: %d", embed.Color)
	}
	if len(embed.Fields) != 5 {
		t.Errorf("expected 5 fields, got %d", len(embed.Fields))
	}
}

func TestBuildOrderEmbed_SellSide(t *testing.T) {
	client := &DiscordClient{
		logger: zap.NewNop(),
	}

	alert := notifier.OrderAlert{
		TokenID: "tok1",
		Side:    "SELL",
		Price:   0.4,
		Size:    1000,
		Value:   400,
	}

	embed := client.buildOrderEmbed(alert)

	if embed.Color != 0xE74C3C { // Red for SELL
		t.Errorf("unexpected color for SELL: %d", embed.Color)
	}

	var foundSide bool
	for _, field := range embed.Fields {
		if field.Name == "Side" && field.Value == "🔴 SELL" {
			foundSide = true
		}
	}
	if !foundSide {
		t.Error("expected SELL side with red emoji")
	}
}

func TestBuildOrderEmbed_SellSideCaseInsensitive(t *testing.T) {
	client := &DiscordClient{
		logger: zap.NewNop(),
	}

	embed := client.buildOrderEmbed(notifier.OrderAlert{TokenID: "tok1", Side: "sell"})

	if embed.Color != 0xE74C3C {
		t.Errorf("expected red color for sell, got: %d", embed.Color)
	}
}

func TestBuildOrderEmbed_PositionField(t *testing.T) {
	client := &DiscordClient{
		logger: zap.NewNop(),
	}

	alert := notifier.OrderAlert{
		TokenID:      "tok1",
		Question:     "Will the Lakers win?",
		PositionID:   "pos-1",
		PositionSide: "LONG",
		EntryPrice:   0.5,
		PnlPct:       20.0,
		HasPosition:  true,
		Reasons:      []notifier.AlertReason{notifier.AlertReasonPositionGain},
	}

	embed := client.buildOrderEmbed(alert)

	if embed.Title != "📈 Position Up" {
		t.Errorf("unexpected title: %s", embed.Title)
	}

	var foundPosition bool
	for _, field := range embed.Fields {
		if field.Name == "Position" && field.Value == "LONG from $0.500\nP&L: +20.0%" {
			foundPosition = true
		}
	}
	if !foundPosition {
		t.Error("expected position field with entry price and pnl")
	}
}

func TestBuildOrderEmbed_ZeroTimestamp(t *testing.T) {
	client := &DiscordClient{
		logger: zap.NewNop(),
	}

	embed := client.buildOrderEmbed(notifier.OrderAlert{TokenID: "tok1", Timestamp: time.Time{}})

	// Should use current time, so timestamp should not be empty
	if embed.Timestamp == "" {
		t.Error("expected non-empty timestamp")
	}
}

func TestBuildOrderEmbed_DescriptionFormat(t *testing.T) {
	client := &DiscordClient{
		logger: zap.NewNop(),
	}

	alert := notifier.OrderAlert{
		TokenID:  "tok1",
		Question: "Will the Celtics beat the Heat?",
		Outcome:  "Yes",
		Sport:    "NBA",
	}

	embed := client.buildOrderEmbed(alert)

	expectedDesc := "**Will the Celtics beat the Heat?**\nOutcome: Yes\nSport: NBA"
	if embed.Description != expectedDesc {
		t.Errorf("unexpected description: %q", embed.Description)
	}
}

func TestBuildAlertTitle(t *testing.T) {
	client := &DiscordClient{
		logger: zap.NewNop(),
	}

	tests := []struct {
		name     string
		reasons  []notifier.AlertReason
		expected string
	}{
		{
			name:     "large order only",
			reasons:  []notifier.AlertReason{notifier.AlertReasonLargeOrder},
			expected: "🐋 Large Order Detected",
		},
		{
			name:     "large order + spread change",
			reasons:  []notifier.AlertReason{notifier.AlertReasonLargeOrder, notifier.AlertReasonSpreadChange},
			expected: "🐋 Large Order Moving the Book",
		},
		{
			name:     "spread change only",
			reasons:  []notifier.AlertReason{notifier.AlertReasonSpreadChange},
			expected: "📏 Spread Change",
		},
		{
			name:     "new trade only",
			reasons:  []notifier.AlertReason{notifier.AlertReasonNewTrade},
			expected: "⚡ New Trade",
		},
		{
			name:     "position loss",
			reasons:  []notifier.AlertReason{notifier.AlertReasonPositionLoss},
			expected: "📉 Position Down",
		},
		{
			name:     "monitor status",
			reasons:  []notifier.AlertReason{notifier.AlertReasonMonitorStatus},
			expected: "ℹ️ Monitor Status",
		},
		{
			name:     "no reasons",
			reasons:  []notifier.AlertReason{},
			expected: "🚨 Orderbook Alert",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embed := client.buildOrderEmbed(notifier.OrderAlert{
				TokenID: "tok1",
				Reasons: tt.reasons,
			})

			if embed.Title != tt.expected {
				t.Errorf("expected title %q, got %q", tt.expected, embed.Title)
			}
		})
	}
}

func TestShortToken(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"123456789012345678901234567890", "123456…567890"},
		{"12345678901234", "12345678901234"}, // <= 14 chars
		{"short", "short"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := shortToken(tt.input)
			if result != tt.expected {
				t.Errorf("shortToken(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestClose_NoSession(t *testing.T) {
	client := &DiscordClient{
		logger:  zap.NewNop(),
		session: nil,
	}

	if err := client.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
