package discord

import (
	"fmt"
	"strings"
	"time"

	"bookwatch/clients/notifier"
	"bookwatch/config"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordClient sends alerts to Discord.
// Implements notifier.Notifier interface.
type DiscordClient struct {
	logger    *zap.Logger
	session   *discordgo.Session
	channelID string
	isProd    bool
}

func NewDiscordClient(logger *zap.Logger, cfg *config.Config) *DiscordClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	channelID := cfg.Discord.BetaChannelID
	if cfg.IsProd {
		channelID = cfg.Discord.ProdChannelID
	}

	token := cfg.Discord.BotToken
	if token == "" {
		logger.Warn("DISCORD_BOT_TOKEN not set, Discord alerts disabled")
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		logger.Error("failed to create discord session", zap.Error(err))
		return &DiscordClient{
			logger:    logger,
			channelID: channelID,
			isProd:    cfg.IsProd,
		}
	}

	logger.Info("discord bot initialized",
		zap.Bool("isProd", cfg.IsProd),
		zap.String("channelID", channelID),
	)

	return &DiscordClient{
		logger:    logger,
		session:   session,
		channelID: channelID,
		isProd:    cfg.IsProd,
	}
}

// SendMessage sends a plain text message.
func (dc *DiscordClient) SendMessage(message string) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping message")
		return
	}

	_, err := dc.session.ChannelMessageSend(dc.channelID, message)
	if err != nil {
		dc.logger.Error("failed to send discord message", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord message")
}

// SendOrderAlert sends a rich embedded orderbook alert.
// Implements notifier.Notifier interface.
func (dc *DiscordClient) SendOrderAlert(alert notifier.OrderAlert) {
	if dc.session == nil {
		dc.logger.Warn("discord session not initialized, skipping alert")
		return
	}

	embed := dc.buildOrderEmbed(alert)

	_, err := dc.session.ChannelMessageSendEmbed(dc.channelID, embed)
	if err != nil {
		dc.logger.Error("failed to send discord embed", zap.Error(err))
		return
	}

	dc.logger.Info("sent discord order alert",
		zap.String("tokenID", alert.TokenID),
		zap.String("question", alert.Question),
	)
}

func (dc *DiscordClient) buildOrderEmbed(alert notifier.OrderAlert) *discordgo.MessageEmbed {
	// Choose color based on side
	color := 0x2ECC71 // Green for BUY
	sideEmoji := "🟢"
	if strings.ToUpper(alert.Side) == "SELL" {
		color = 0xE74C3C // Red for SELL
		sideEmoji = "🔴"
	}

	title := dc.buildAlertTitle(alert.Reasons)

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Token",
			Value:  shortToken(alert.TokenID),
			Inline: true,
		},
	}

	if alert.Side != "" {
		fields = append(fields,
			&discordgo.MessageEmbedField{
				Name:   "Side",
				Value:  fmt.Sprintf("%s %s", sideEmoji, alert.Side),
				Inline: true,
			},
			&discordgo.MessageEmbedField{
				Name:   "Order",
				Value:  fmt.Sprintf("%.2f shares @ $%.3f", alert.Size, alert.Price),
				Inline: true,
			},
			&discordgo.MessageEmbedField{
				Name:   "Value",
				Value:  fmt.Sprintf("$%.2f", alert.Value),
				Inline: true,
			},
		)
	}

	if alert.BestBid > 0 || alert.BestAsk > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Book",
			Value:  fmt.Sprintf("%.3f / %.3f (%.2f%% spread)", alert.BestBid, alert.BestAsk, alert.SpreadPct),
			Inline: true,
		})
	}

	if alert.HasPosition {
		pnlSign := "+"
		if alert.PnlPct < 0 {
			pnlSign = ""
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Position",
			Value:  fmt.Sprintf("%s from $%.3f\nP&L: %s%.1f%%", alert.PositionSide, alert.EntryPrice, pnlSign, alert.PnlPct),
			Inline: true,
		})
	}

	// Build description with market info
	description := fmt.Sprintf("**%s**", alert.Question)
	if alert.Outcome != "" {
		description += fmt.Sprintf("\nOutcome: %s", alert.Outcome)
	}
	if alert.Sport != "" {
		description += fmt.Sprintf("\nSport: %s", alert.Sport)
	}
	if alert.Message != "" {
		description += "\n" + alert.Message
	}

	// Format timestamp for footer (PST)
	pst, _ := time.LoadLocation("America/Los_Angeles")
	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	footerText := fmt.Sprintf("bookwatch * %s", ts.In(pst).Format("1/2/2006, 3:04:05PM (MST)"))

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: footerText,
		},
		Timestamp: ts.Format(time.RFC3339),
	}
}

func (dc *DiscordClient) buildAlertTitle(reasons []notifier.AlertReason) string {
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

func shortToken(id string) string {
	if len(id) <= 14 {
		return id
	}
	return id[:6] + "…" + id[len(id)-6:]
}

// Close closes the Discord session.
func (dc *DiscordClient) Close() error {
	if dc.session != nil {
		return dc.session.Close()
	}
	return nil
}
