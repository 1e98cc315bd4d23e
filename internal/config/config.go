package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	// Storage
	PostgresDSN string // optional; webhook persistence is disabled when empty
	RedisURL    string

	// Chain (Base mainnet by default)
	RPCURL              string
	ChainID             int64
	EscrowAddress       string
	BoosterDropAddress  string
	BoosterTokenAddress string

	// Upstream APIs
	AlchemyAPIKey   string
	AlchemyBaseURL  string
	WieldAPIKey     string
	WieldBaseURL    string
	UpstreamTimeout time.Duration
	ProxyCacheTTL   time.Duration

	// Wallet
	WalletPrivateKey   string // embedded provider, hex
	WalletKeystore     string // embedded provider, keystore file
	WalletPassphrase   string
	InjectedWalletURL  string // injected provider, JSON-RPC endpoint
	WalletPollInterval time.Duration

	// Packs
	PackPollInterval    time.Duration
	PackPollMaxAttempts int

	// Offers
	ListConcurrency int

	// Game
	GameTicketSecret string
	GameTicketTTL    time.Duration

	// Indexer
	IndexerPollInterval time.Duration
	IndexerMaxBlockSpan uint64

	// Server
	APIPort            string
	AppURL             string
	RateLimitPerMinute int
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		PostgresDSN: getEnv("POSTGRES_DSN", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		RPCURL:              getEnv("RPC_URL", "https://mainnet.base.org"),
		ChainID:             int64(getEnvInt("CHAIN_ID", 8453)),
		EscrowAddress:       strings.ToLower(getEnv("ESCROW_ADDRESS", "")),
		BoosterDropAddress:  strings.ToLower(getEnv("BOOSTER_DROP_ADDRESS", "0xcdc74eeedc5ede1ef6033f22e8f0401af5b561ea")),
		BoosterTokenAddress: strings.ToLower(getEnv("BOOSTER_TOKEN_ADDRESS", "0x2b068f4a6132db05541b1d78beffe1ab0a97e375")),

		AlchemyAPIKey:   getEnv("ALCHEMY_API_KEY", ""),
		AlchemyBaseURL:  getEnv("ALCHEMY_BASE_URL", "https://base-mainnet.g.alchemy.com/v2"),
		WieldAPIKey:     getEnv("WIELD_API_KEY", ""),
		WieldBaseURL:    getEnv("WIELD_BASE_URL", "https://build.wield.xyz/vibe/boosterbox"),
		UpstreamTimeout: time.Duration(getEnvInt("UPSTREAM_TIMEOUT_MS", 15000)) * time.Millisecond,
		ProxyCacheTTL:   time.Duration(getEnvInt("PROXY_CACHE_TTL_SECONDS", 30)) * time.Second,

		WalletPrivateKey:   getEnv("WALLET_PRIVATE_KEY", ""),
		WalletKeystore:     getEnv("WALLET_KEYSTORE", ""),
		WalletPassphrase:   getEnv("WALLET_PASSPHRASE", ""),
		InjectedWalletURL:  getEnv("INJECTED_WALLET_URL", ""),
		WalletPollInterval: time.Duration(getEnvInt("WALLET_POLL_INTERVAL_MS", 3000)) * time.Millisecond,

		PackPollInterval:    time.Duration(getEnvInt("PACK_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		PackPollMaxAttempts: getEnvInt("PACK_POLL_MAX_ATTEMPTS", 30),

		ListConcurrency: getEnvInt("LIST_CONCURRENCY", 8),

		GameTicketSecret: getEnv("GAME_TICKET_SECRET", "change-me-in-production"),
		GameTicketTTL:    time.Duration(getEnvInt("GAME_TICKET_TTL_MINUTES", 30)) * time.Minute,

		IndexerPollInterval: time.Duration(getEnvInt("INDEXER_POLL_INTERVAL_MS", 5000)) * time.Millisecond,
		IndexerMaxBlockSpan: uint64(getEnvInt("INDEXER_MAX_BLOCK_SPAN", 2000)),

		APIPort:            getEnv("API_PORT", "3000"),
		AppURL:             getEnv("APP_URL", "https://v0-vib-escrow.vercel.app"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	return cfg
}

func (c *Config) HasPostgres() bool {
	return c.PostgresDSN != ""
}

func (c *Config) Validate(log *zap.Logger) {
	if c.AlchemyAPIKey == "" {
		log.Warn("ALCHEMY_API_KEY is not set, /api/nft will fail upstream")
	}
	if c.WieldAPIKey == "" {
		log.Warn("WIELD_API_KEY is not set, /api/vibe will fail upstream")
	}
	if c.EscrowAddress == "" {
		log.Warn("ESCROW_ADDRESS is not set, offer endpoints are disabled")
	}
	if c.GameTicketSecret == "change-me-in-production" {
		log.Warn("GAME_TICKET_SECRET is default, change in production")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
