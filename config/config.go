package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Environment
	IsProd bool

	// Discord
	Discord DiscordConfig

	// Telegram
	Telegram TelegramConfig

	// Polymarket API endpoints and rate limiting
	Polymarket PolymarketConfig

	// Orderbook monitor
	Monitor MonitorConfig

	// Big order detector
	BigOrders BigOrderConfig

	// Market discovery
	Markets MarketsConfig

	// Simulated position ledger
	Positions PositionsConfig

	// Health server
	HealthServer HealthServerConfig
}

// DiscordConfig holds Discord-related configuration.
type DiscordConfig struct {
	BotToken      string
	ProdChannelID string
	BetaChannelID string
}

// TelegramConfig holds Telegram-related configuration.
type TelegramConfig struct {
	BotToken   string
	ProdChatID string
	BetaChatID string
}

// PolymarketConfig holds Polymarket API configuration.
type PolymarketConfig struct {
	ClobAPIURL  string
	GammaAPIURL string

	// Minimum delay between consecutive outbound requests.
	RateLimitDelay time.Duration
}

// MonitorConfig holds orderbook monitor configuration.
type MonitorConfig struct {
	PollInterval time.Duration // Time between polling cycles
	StopTimeout  time.Duration // Bounded wait for the poll goroutine on Stop

	// Minimum absolute spread difference to fire a spread_change event.
	// Zero means any difference fires.
	SpreadEpsilon float64

	// Large order detection on individual book levels. A level qualifies
	// by size or, when ValueThreshold > 0, by size*price.
	SizeThreshold  float64
	ValueThreshold float64

	DepthLevels int // Price levels per side for depth metrics

	SpreadHistorySize int // Per-market spread history capacity
	BookHistorySize   int // Per-market book summary capacity
	TradeHistorySize  int // Per-market trade history capacity

	UseStream bool // If true, take new_trade events from the websocket feed
}

// BigOrderConfig holds big order detector configuration.
type BigOrderConfig struct {
	PollInterval time.Duration
	StopTimeout  time.Duration

	SizeThreshold  float64 // Minimum order size to alert on
	ValueThreshold float64 // Minimum order size*price to alert on

	// Cycles an order key may be absent from the book before it is
	// forgotten; a reappearing identical order alerts again.
	SeenGraceCycles int

	MarketLimit int // Markets to auto-discover on Start
	HistorySize int // Detected big order history capacity
}

// MarketsConfig holds market discovery configuration.
type MarketsConfig struct {
	Limit        int     // Markets per listing page
	VolumeNumMin float64 // Minimum market volume in USD
	EndDateDays  int     // Only markets ending within this many days
}

// PositionsConfig holds simulated position ledger configuration.
type PositionsConfig struct {
	UpdateInterval time.Duration // Time between mark-to-market refreshes

	StopLossPct   float64 // Alert at or below this unrealized pnl percentage
	TakeProfitPct float64 // Alert at or above this unrealized pnl percentage
}

// HealthServerConfig holds health check server configuration.
type HealthServerConfig struct {
	Enabled bool
	Port    int
}

// Defaults returns a config with hardcoded default values.
func Defaults() *Config {
	return &Config{
		IsProd:   false,
		Discord:  DiscordConfig{},
		Telegram: TelegramConfig{},
		Polymarket: PolymarketConfig{
			ClobAPIURL:     "https://clob.polymarket.com",
			GammaAPIURL:    "https://gamma-api.polymarket.com",
			RateLimitDelay: 500 * time.Millisecond,
		},
		Monitor: MonitorConfig{
			PollInterval:      5 * time.Second,
			StopTimeout:       5 * time.Second,
			SpreadEpsilon:     0,
			SizeThreshold:     1000.0,
			ValueThreshold:    0,
			DepthLevels:       10,
			SpreadHistorySize: 1000,
			BookHistorySize:   1000,
			TradeHistorySize:  5000,
			UseStream:         false,
		},
		BigOrders: BigOrderConfig{
			PollInterval:    3 * time.Second,
			StopTimeout:     5 * time.Second,
			SizeThreshold:   500.0,
			ValueThreshold:  100.0,
			SeenGraceCycles: 1,
			MarketLimit:     50,
			HistorySize:     10000,
		},
		Markets: MarketsConfig{
			Limit:        100,
			VolumeNumMin: 100000.0,
			EndDateDays:  7,
		},
		Positions: PositionsConfig{
			UpdateInterval: 30 * time.Second,
			StopLossPct:    -10.0,
			TakeProfitPct:  20.0,
		},
		HealthServer: HealthServerConfig{
			Enabled: true,
			Port:    8080,
		},
	}
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		IsProd: envBool("STAGE", "PROD"),

		Discord: DiscordConfig{
			BotToken:      envString("DISCORD_BOT_TOKEN", ""),
			ProdChannelID: envString("DISCORD_PROD_CHANNEL_ID", ""),
			BetaChannelID: envString("DISCORD_BETA_CHANNEL_ID", ""),
		},

		Telegram: TelegramConfig{
			BotToken:   envString("TELEGRAM_BOT_KEY", ""),
			ProdChatID: envString("TELEGRAM_PROD_CHAT_ID", ""),
			BetaChatID: envString("TELEGRAM_BETA_CHAT_ID", ""),
		},

		Polymarket: PolymarketConfig{
			ClobAPIURL:     envString("POLYMARKET_CLOB_API_URL", "https://clob.polymarket.com"),
			GammaAPIURL:    envString("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
			RateLimitDelay: envDuration("POLYMARKET_RATE_LIMIT_DELAY", 500*time.Millisecond),
		},

		Monitor: MonitorConfig{
			PollInterval:      envDuration("MONITOR_POLL_INTERVAL", 5*time.Second),
			StopTimeout:       envDuration("MONITOR_STOP_TIMEOUT", 5*time.Second),
			SpreadEpsilon:     envFloat("MONITOR_SPREAD_EPSILON", 0),
			SizeThreshold:     envFloat("MONITOR_SIZE_THRESHOLD", 1000.0),
			ValueThreshold:    envFloat("MONITOR_VALUE_THRESHOLD", 0),
			DepthLevels:       envInt("MONITOR_DEPTH_LEVELS", 10),
			SpreadHistorySize: envInt("MONITOR_SPREAD_HISTORY_SIZE", 1000),
			BookHistorySize:   envInt("MONITOR_BOOK_HISTORY_SIZE", 1000),
			TradeHistorySize:  envInt("MONITOR_TRADE_HISTORY_SIZE", 5000),
			UseStream:         envBoolDefault("MONITOR_USE_STREAM", false),
		},

		BigOrders: BigOrderConfig{
			PollInterval:    envDuration("BIG_ORDER_POLL_INTERVAL", 3*time.Second),
			StopTimeout:     envDuration("BIG_ORDER_STOP_TIMEOUT", 5*time.Second),
			SizeThreshold:   envFloat("BIG_ORDER_SIZE_THRESHOLD", 500.0),
			ValueThreshold:  envFloat("BIG_ORDER_VALUE_THRESHOLD", 100.0),
			SeenGraceCycles: envInt("BIG_ORDER_SEEN_GRACE_CYCLES", 1),
			MarketLimit:     envInt("BIG_ORDER_MARKET_LIMIT", 50),
			HistorySize:     envInt("BIG_ORDER_HISTORY_SIZE", 10000),
		},

		Markets: MarketsConfig{
			Limit:        envInt("MARKETS_LIMIT", 100),
			VolumeNumMin: envFloat("MARKETS_VOLUME_NUM_MIN", 100000.0),
			EndDateDays:  envInt("MARKETS_END_DATE_DAYS", 7),
		},

		Positions: PositionsConfig{
			UpdateInterval: envDuration("POSITIONS_UPDATE_INTERVAL", 30*time.Second),
			StopLossPct:    envFloat("POSITIONS_STOP_LOSS_PCT", -10.0),
			TakeProfitPct:  envFloat("POSITIONS_TAKE_PROFIT_PCT", 20.0),
		},
		HealthServer: HealthServerConfig{
			Enabled: envBoolDefault("HEALTH_SERVER_ENABLED", true),
			Port:    envInt("HEALTH_SERVER_PORT", 8080),
		},
	}
}

// Helper functions for parsing environment variables

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key, trueValue string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), trueValue)
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}
