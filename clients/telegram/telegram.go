package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bookwatch/clients/notifier"
	"bookwatch/config"

	"go.uber.org/zap"
)

const telegramAPIURL = "https://api.telegram.org/bot%s/%s"

// TelegramClient sends alerts to Telegram.
// Implements notifier.Notifier interface.
type TelegramClient struct {
	logger   *zap.Logger
	botToken string
	chatID   string
	isProd   bool
	client   *http.Client
}

func NewTelegramClient(logger *zap.Logger, cfg *config.Config) *TelegramClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatID := cfg.Telegram.BetaChatID
	if cfg.IsProd {
		chatID = cfg.Telegram.ProdChatID
	}

	token := cfg.Telegram.BotToken
	if token == "" {
		logger.Warn("TELEGRAM_BOT_KEY not set, Telegram alerts disabled")
		return &TelegramClient{
			logger: logger,
			chatID: chatID,
			isProd: cfg.IsProd,
		}
	}

	logger.Info("telegram bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("chatID", chatID),
	)

	return &TelegramClient{
		logger:   logger,
		botToken: token,
		chatID:   chatID,
		isProd:   cfg.IsProd,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SendOrderAlert sends an orderbook alert notification.
// Implements notifier.Notifier interface.
func (tc *TelegramClient) SendOrderAlert(alert notifier.OrderAlert) {
	if tc.botToken == "" || tc.chatID == "" {
		tc.logger.Warn("telegram not configured, skipping alert")
		return
	}

	message := tc.buildAlertMessage(alert)

	if err := tc.sendMessage(message); err != nil {
		tc.logger.Error("failed to send telegram message", zap.Error(err))
		return
	}

	tc.logger.Info("sent telegram order alert",
		zap.String("tokenID", alert.TokenID),
		zap.String("question", alert.Question),
	)
}

func (tc *TelegramClient) buildAlertMessage(alert notifier.OrderAlert) string {
	var sb strings.Builder

	// Title based on reasons
	title := tc.buildAlertTitle(alert.Reasons)
	sb.WriteString(fmt.Sprintf("*%s*\n\n", escapeMarkdown(title)))

	// Market info
	sb.WriteString(fmt.Sprintf("*Market:* %s\n", escapeMarkdown(alert.Question)))
	if alert.Outcome != "" {
		sb.WriteString(fmt.Sprintf("*Outcome:* %s\n", escapeMarkdown(alert.Outcome)))
	}
	if alert.Sport != "" {
		sb.WriteString(fmt.Sprintf("*Sport:* %s\n", escapeMarkdown(alert.Sport)))
	}
	sb.WriteString("\n")

	// Order details
	if alert.Side != "" {
		sideEmoji := "🟢"
		if strings.ToUpper(alert.Side) == "SELL" {
			sideEmoji = "🔴"
		}
		sb.WriteString(fmt.Sprintf("*Side:* %s %s\n", sideEmoji, alert.Side))
		sb.WriteString(fmt.Sprintf("*Order:* %.2f shares @ $%.3f\n", alert.Size, alert.Price))
		sb.WriteString(fmt.Sprintf("*Value:* $%.2f\n", alert.Value))
	}

	// Book context
	if alert.BestBid > 0 || alert.BestAsk > 0 {
		sb.WriteString(fmt.Sprintf("*Book:* %.3f / %.3f (%.2f%% spread)\n", alert.BestBid, alert.BestAsk, alert.SpreadPct))
	}

	// Position info
	if alert.HasPosition {
		pnlSign := "+"
		if alert.PnlPct < 0 {
			pnlSign = ""
		}
		sb.WriteString(fmt.Sprintf("*Position:* %s from $%.3f (P&L: %s%.1f%%)\n",
			alert.PositionSide, alert.EntryPrice, pnlSign, alert.PnlPct))
	}

	if alert.Message != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", escapeMarkdown(alert.Message)))
	}

	// Timestamp
	pst, _ := time.LoadLocation("America/Los_Angeles")
	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	sb.WriteString(fmt.Sprintf("\n_bookwatch • %s_", ts.In(pst).Format("1/2/2006, 3:04:05PM (MST)")))

	return sb.String()
}

func (tc *TelegramClient) buildAlertTitle(reasons []notifier.AlertReason) string {
	hasLargeOrder := false
	hasSpreadChange := false
	hasNewTrade := false
	hasPositionGain := false
	hasPositionLoss := false
	hasMonitorStatus := false

	for _, r := range reasons {
		switch r {
		case notifier.AlertReasonLargeOrder:
			hasLargeOrder = true
		case notifier.AlertReasonSpreadChange:
			hasSpreadChange = true
		case notifier.AlertReasonNewTrade:
			hasNewTrade = true
		case notifier.AlertReasonPositionGain:
			hasPositionGain = true
		case notifier.AlertReasonPositionLoss:
			hasPositionLoss = true
		case notifier.AlertReasonMonitorStatus:
			hasMonitorStatus = true
		}
	}

	if hasLargeOrder && hasSpreadChange {
		return "🐋 Large Order Moving the Book"
	}
	if hasLargeOrder {
		return "🐋 Large Order Detected"
	}
	if hasSpreadChange {
		return "📏 Spread Change"
	}
	if hasNewTrade {
		return "⚡ New Trade"
	}
	if hasPositionGain {
		return "📈 Position Up"
	}
	if hasPositionLoss {
		return "📉 Position Down"
	}
	if hasMonitorStatus {
		return "ℹ️ Monitor Status"
	}
	return "🚨 Orderbook Alert"
}

func (tc *TelegramClient) sendMessage(text string) error {
	url := fmt.Sprintf(telegramAPIURL, tc.botToken, "sendMessage")

	payload := map[string]interface{}{
		"chat_id":    tc.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := tc.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// Close cleans up resources. Implements notifier.Notifier interface.
func (tc *TelegramClient) Close() error {
	return nil
}

// escapeMarkdown escapes special characters for Telegram Markdown.
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
