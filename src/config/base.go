package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config is loaded from the environment; selected keys may be overridden by rows
// in the settings table (see ApplySettings).
type Config struct {
	App     App
	DB      DB
	Chain   Chain
	Jobs    Jobs
	HTTP    HTTP
	Discord Discord
	AI      AI
}

type App struct {
	Environment string `env:"ENVIRONMENT" envDefault:"prod"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret   string `env:"JWT_SECRET,notEmpty"`
}

func (c App) IsDevEnvironment() bool {
	return c.Environment == "dev"
}

type DB struct {
	MySQLDSN string `env:"MYSQL_DSN,notEmpty"`
	// Empty RedisURL runs the change feed and nonce store in-process.
	RedisURL        string `env:"REDIS_URL"`
	TallyMaxRetries int    `env:"TALLY_MAX_RETRIES" envDefault:"5"`
}

type Chain struct {
	RPCURL              string        `env:"RPC_URL"`
	ChainID             int64         `env:"CHAIN_ID" envDefault:"1"`
	GovernanceAddress   string        `env:"GOVERNANCE_ADDRESS"`
	SignerKey           string        `env:"SIGNER_KEY"`
	ReceiptPollInterval time.Duration `env:"RECEIPT_POLL_INTERVAL" envDefault:"2s"`
	RPCTimeout          time.Duration `env:"RPC_TIMEOUT" envDefault:"30s"`
}

// Enabled reports whether a ledger endpoint is configured.
func (c Chain) Enabled() bool {
	return c.RPCURL != "" && c.GovernanceAddress != ""
}

type Jobs struct {
	OutboxSchedule    string `env:"OUTBOX_SCHEDULE" envDefault:"@every 15s"`
	ReconcileSchedule string `env:"RECONCILE_SCHEDULE" envDefault:"@every 5m"`
	FinalizeSchedule  string `env:"FINALIZE_SCHEDULE" envDefault:"@every 1m"`
}

type HTTP struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	CORSOrigins []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`
	RateLimit   int           `env:"RATE_LIMIT" envDefault:"60"`
	RateWindow  time.Duration `env:"RATE_WINDOW" envDefault:"1m"`

	// TLS is served when both files are set.
	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`
}

func (c HTTP) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

type Discord struct {
	Token     string `env:"DISCORD_TOKEN"`
	ChannelID string `env:"DISCORD_CHANNEL_ID"`
}

func (c Discord) Enabled() bool {
	return c.Token != "" && c.ChannelID != ""
}

// AI configures proposal analysis. Analysis is off unless a provider and key
// are set.
type AI struct {
	Provider string        `env:"AI_PROVIDER"`
	APIKey   string        `env:"AI_API_KEY"`
	Model    string        `env:"AI_MODEL"`
	Endpoint string        `env:"AI_ENDPOINT"`
	Timeout  time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`
}

func (c AI) Enabled() bool {
	return c.Provider != "" && c.APIKey != ""
}

func Load() (Config, error) {
	var config Config

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// ApplySettings overrides values with non-empty database settings.
func (c *Config) ApplySettings(get func(name string) string) {
	override := func(dst *string, name string) {
		if v := strings.TrimSpace(get(name)); v != "" {
			*dst = v
		}
	}

	override(&c.Discord.Token, "discord_token")
	override(&c.Discord.ChannelID, "discord_channel_id")
	override(&c.Chain.GovernanceAddress, "governance_address")
	override(&c.Chain.RPCURL, "rpc_url")
	override(&c.AI.Provider, "ai_provider")
	override(&c.AI.Model, "ai_model")

	if v := strings.TrimSpace(get("cors_origins")); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		c.HTTP.CORSOrigins = origins
	}
}
