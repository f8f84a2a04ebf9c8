package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertLogLevel(t testing.TB, expected slog.Level, v any) {
	t.Helper()

	lvl, ok := v.(*slog.LevelVar)
	require.Truef(t, ok, "could not convert %#v (%T) to *slog.LevelVar", v, v)
	assert.Equal(t, expected, lvl.Level())
}

// clearEnv removes PB_ variables for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, "PB_") {
			continue
		}
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() { _ = os.Setenv(key, value) })
	}
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), "test.env")
	envContent := `
# General/database config

PB_DATABASE=/home/foo/partybus.sqlite3
PB_DATABASE_TYPE=sqlite
PB_DATABASE_LOG_LEVEL=WARN
PB_DATABASE_SLOW_THRESHOLD=250ms
PB_LOG_LEVEL=DEBUG
PB_STARTUP_TIMEOUT=20s
PB_SHUTDOWN_TIMEOUT=40s

# Workflow

PB_WORKFLOW_CANONICAL_TIMEZONE=PST
PB_WORKFLOW_NOTICE_DELETE_AFTER=10s
PB_WORKFLOW_WIZARD_TIMEOUT=10m
PB_WORKFLOW_SIGNUP_REPOST_INTERVAL=5s

# Discord bot config

PB_DISCORD_TOKEN=your-discord-bot-token
PB_DISCORD_APPLICATION_ID=your-discord-bot-app-id
PB_DISCORD_GUILD_ID=1234
PB_DISCORD_LOG_LEVEL=WARN
PB_DISCORD_DISCORDGO_LOG_LEVEL=ERROR
PB_DISCORD_STARTUP_MESSAGE="Beep beep!"
PB_DISCORD_GATEWAY_INTENTS=3243773

# Discord webhook server

PB_DISCORD_WEBHOOK_SERVER_ENABLED=true
PB_DISCORD_WEBHOOK_SERVER_LISTEN=127.0.0.1:5501
PB_DISCORD_WEBHOOK_SERVER_SSL_CERT=/etc/ssl/cert.pem
PB_DISCORD_WEBHOOK_SERVER_SSL_KEY=/etc/ssl/cert.key
PB_DISCORD_WEBHOOK_SERVER_LOG_LEVEL=INFO
PB_DISCORD_WEBHOOK_SERVER_PUBLIC_KEY=your_discord_public_key_here

# API server

PB_API_LISTEN=127.0.0.1:5500
PB_API_SECRET=your-api-secret
PB_API_LOG_LEVEL=DEBUG
PB_API_CORS_ALLOW_ORIGINS=https://127.0.0.1:5000 https://localhost:5000
PB_API_CORS_ALLOW_METHODS=GET POST PATCH
PB_API_CORS_ALLOW_HEADERS=Content-Type
PB_API_SESSION_MAX_AGE=2h
`
	require.NoError(t, os.WriteFile(envFile, []byte(envContent), 0o600))
	t.Cleanup(
		func() {
			for _, line := range strings.Split(envContent, "\n") {
				if key, _, ok := strings.Cut(line, "="); ok {
					_ = os.Unsetenv(key)
				}
			}
		},
	)

	t.Cleanup(func() { configFile = "" })
	_, err := executeRoot(t, "", fmt.Sprintf("--config=%s", envFile), "version")
	require.NoError(t, err)

	assert.Equal(t, "/home/foo/partybus.sqlite3", viper.GetString("database"))
	assertLogLevel(t, slog.LevelWarn, viper.Get("database_log_level"))
	assertLogLevel(t, slog.LevelDebug, viper.Get("log_level"))
	assertLogLevel(t, slog.LevelError, viper.Get("discord.discordgo_log_level"))
	assert.Equal(
		t,
		[]string{"https://127.0.0.1:5000", "https://localhost:5000"},
		viper.GetStringSlice("api.cors.allow_origins"),
	)

	assert.Equal(t, "/home/foo/partybus.sqlite3", cfg.Database)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, slog.LevelWarn, cfg.DatabaseLogLevel.Level())
	assert.Equal(t, 250*time.Millisecond, cfg.DatabaseSlowThreshold)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel.Level())
	assert.Equal(t, 20*time.Second, cfg.StartupTimeout)
	assert.Equal(t, 40*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "PST", cfg.Workflow.CanonicalTimezone)
	assert.Equal(t, 10*time.Second, cfg.Workflow.NoticeDeleteAfter)
	assert.Equal(t, 10*time.Minute, cfg.Workflow.WizardTimeout)
	assert.Equal(t, 5*time.Second, cfg.Workflow.SignupRepostInterval)

	assert.Equal(t, "your-discord-bot-token", cfg.Discord.Token)
	assert.Equal(t, "your-discord-bot-app-id", cfg.Discord.ApplicationID)
	assert.Equal(t, "1234", cfg.Discord.GuildID)
	assert.Equal(t, slog.LevelWarn, cfg.Discord.LogLevel.Level())
	assert.Equal(t, slog.LevelError, cfg.Discord.DiscordGoLogLevel.Level())
	assert.Equal(t, "Beep beep!", cfg.Discord.StartupMessage)
	assert.Equal(t, discordgo.Intent(3243773), cfg.Discord.GatewayIntents)

	webhook := cfg.Discord.WebhookServer
	assert.True(t, webhook.Enabled)
	assert.Equal(t, "127.0.0.1:5501", webhook.Listen)
	assert.Equal(t, "/etc/ssl/cert.pem", webhook.SSL.Cert)
	assert.Equal(t, "/etc/ssl/cert.key", webhook.SSL.Key)
	assert.Equal(t, "your_discord_public_key_here", webhook.PublicKey)
	assert.Equal(t, slog.LevelInfo, webhook.LogLevel.Level())

	assert.Equal(t, "127.0.0.1:5500", cfg.API.Listen)
	assert.Equal(t, "your-api-secret", cfg.API.Secret)
	assert.Equal(t, slog.LevelDebug, cfg.API.LogLevel.Level())
	assert.Equal(t, 2*time.Hour, cfg.API.SessionMaxAge)
	// shorter lists replace the defaults rather than overwriting a prefix
	assert.Equal(t, []string{"GET", "POST", "PATCH"}, cfg.API.CORS.AllowMethods)
	assert.Equal(t, []string{"Content-Type"}, cfg.API.CORS.AllowHeaders)
	assert.Equal(
		t,
		[]string{"https://127.0.0.1:5000", "https://localhost:5000"},
		cfg.API.CORS.AllowOrigins,
	)
}

func TestLevelToStringHookFunc(t *testing.T) {
	lvl, err := levelStringToLevelVar("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl.Level())

	_, err = levelStringToLevelVar("LOUD")
	assert.Error(t, err)

	_, err = getLogLevel("LOUD")
	assert.Error(t, err)
}
