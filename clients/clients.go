package clients

import (
	"bookwatch/clients/clobapi"
	"bookwatch/clients/clobstream"
	"bookwatch/clients/discord"
	"bookwatch/clients/notifier"
	"bookwatch/clients/telegram"
	"bookwatch/config"

	"go.uber.org/zap"
)

type Clients struct {
	Logger *zap.Logger

	Discord  *discord.DiscordClient
	Telegram *telegram.TelegramClient
	Notifier notifier.Notifier // Combined notifier for all channels
	ClobAPI  *clobapi.ClobApiClient
	Stream   *clobstream.ClobStreamClient
}

func NewClients(logger *zap.Logger, cfg *config.Config) *Clients {
	discordClient := discord.NewDiscordClient(logger, cfg)
	telegramClient := telegram.NewTelegramClient(logger, cfg)

	// Create combined notifier for all channels
	multiNotifier := notifier.NewMultiNotifier(discordClient, telegramClient)

	c := &Clients{
		Logger:   logger,
		Discord:  discordClient,
		Telegram: telegramClient,
		Notifier: multiNotifier,
		ClobAPI:  clobapi.NewClobApiClient(logger, cfg),
	}

	// Only create WebSocket client if configured to use it
	if cfg.Monitor.UseStream {
		c.Stream = clobstream.NewClobStreamClient(logger)
	}

	return c
}
