package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MYSQL_DSN", "user:pass@tcp(localhost:3306)/netstate")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 5, cfg.DB.TallyMaxRetries)
	assert.Equal(t, "@every 15s", cfg.Jobs.OutboxSchedule)
	assert.False(t, cfg.Chain.Enabled())
	assert.False(t, cfg.Discord.Enabled())
	assert.False(t, cfg.AI.Enabled())
	assert.False(t, cfg.App.IsDevEnvironment())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestApplySettings_OverridesNonEmpty(t *testing.T) {
	cfg := Config{Discord: Discord{Token: "env-token"}}
	settings := map[string]string{
		"discord_channel_id": "123456789012",
		"cors_origins":       "https://a.example, https://b.example",
		"ai_provider":        "anthropic",
	}

	cfg.ApplySettings(func(name string) string { return settings[name] })

	assert.Equal(t, "env-token", cfg.Discord.Token)
	assert.Equal(t, "123456789012", cfg.Discord.ChannelID)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
}
