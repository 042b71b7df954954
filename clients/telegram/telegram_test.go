package telegram

import (
	"strings"
	"testing"
	"time"

	"bookwatch/clients/notifier"
	"bookwatch/config"

	"go.uber.org/zap"
)

func TestNewTelegramClient_NoToken(t *testing.T) {
	cfg := &config.Config{
		IsProd: false,
		Telegram: config.TelegramConfig{
			BotToken:   "",
			ProdChatID: "prod-chat",
			BetaChatID: "beta-chat",
		},
	}

	client := NewTelegramClient(zap.NewNop(), cfg)

	if client.botToken != "" {
		t.Error("expected empty token")
	}
	if client.chatID != "beta-chat" {
		t.Errorf("expected beta chat, got: %s", client.chatID)
	}
}

func TestNewTelegramClient_ProdChat(t *testing.T) {
	cfg := &config.Config{
		IsProd: true,
		Telegram: config.TelegramConfig{
			BotToken:   "token",
			ProdChatID: "prod-chat",
			BetaChatID: "beta-chat",
		},
	}

	client := NewTelegramClient(nil, cfg)

	if client.chatID != "prod-chat" {
		t.Errorf("expected prod chat, got: %s", client.chatID)
	}
}

func TestSendOrderAlert_NotConfigured(t *testing.T) {
	client := &TelegramClient{
		logger: zap.NewNop(),
	}

	// Should not panic
	client.SendOrderAlert(notifier.OrderAlert{TokenID: "tok1"})
}

func TestBuildAlertMessage(t *testing.T) {
	client := &TelegramClient{
		logger: zap.NewNop(),
	}

	alert := notifier.OrderAlert{
		TokenID:   "tok1",
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

	msg := client.buildAlertMessage(alert)

	for _, want := range []string{
		"Large Order Detected",
		"Will the Chiefs win?",
		"*Outcome:* Yes",
		"*Sport:* NFL",
		"🟢 BUY",
		"750.00 shares @ $0.550",
		"*Value:* $412.50",
		"0.540 / 0.560",
		"bookwatch",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestBuildAlertMessage_Position(t *testing.T) {
	client := &TelegramClient{
		logger: zap.NewNop(),
	}

	alert := notifier.OrderAlert{
		TokenID:      "tok1",
		Question:     "Will the Lakers win?",
		PositionSide: "LONG",
		EntryPrice:   0.5,
		PnlPct:       -15.0,
		HasPosition:  true,
		Reasons:      []notifier.AlertReason{notifier.AlertReasonPositionLoss},
	}

	msg := client.buildAlertMessage(alert)

	if !strings.Contains(msg, "Position Down") {
		t.Errorf("message missing loss title:\n%s", msg)
	}
	if !strings.Contains(msg, "LONG from $0.500 (P&L: -15.0%)") {
		t.Errorf("message missing position line:\n%s", msg)
	}
}

func TestBuildAlertMessage_SellEmoji(t *testing.T) {
	client := &TelegramClient{
		logger: zap.NewNop(),
	}

	msg := client.buildAlertMessage(notifier.OrderAlert{
		TokenID: "tok1",
		Side:    "SELL",
	})

	if !strings.Contains(msg, "🔴 SELL") {
		t.Errorf("expected red emoji for SELL:\n%s", msg)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"with_underscore", "with\\_underscore"},
		{"with*asterisk", "with\\*asterisk"},
		{"[bracket]", "\\[bracket\\]"},
		{"`code`", "\\`code\\`"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := escapeMarkdown(tt.input); got != tt.expected {
				t.Errorf("escapeMarkdown(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestClose(t *testing.T) {
	client := &TelegramClient{logger: zap.NewNop()}

	if err := client.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
