//nolint:lll // struct tags can't be split
package partybus

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
)

const (
	EnvvarSetEnvPrefix    = "PARTYBUS_ENV_PREFIX"
	DefaultEnvPrefix      = "PB"
	DefaultDatabaseType   = "sqlite"
	DefaultDatabase       = "partybus.sqlite3"
	DefaultLogLevel       = slog.LevelInfo
	DefaultStartupTimeout = 30 * time.Second

	DefaultShutdownTimeout = 60 * time.Second

	DefaultReadTimeout                       = 5 * time.Second
	DefaultReadHeaderTimeout                 = 5 * time.Second
	DefaultWriteTimeout                      = 10 * time.Second
	DefaultIdleTimeout                       = 30 * time.Second
	DefaultDiscordWebhookServerListen        = "127.0.0.1:5001"
	DefaultDiscordWebhookServerTLSminVersion = tls.VersionTLS12
	DefaultDiscordGatewayIntent              = discordgo.IntentsAllWithoutPrivileged

	DefaultDiscordWebhookLogLevel = slog.LevelInfo
	DefaultDiscordLogLevel        = slog.LevelWarn
	DefaultDiscordErrorMessage    = "sorry, something went wrong!"
	DefaultDiscordCustomStatus    = "Driving the party bus"
	DefaultDiscordStartupMessage  = "All aboard!"
	DefaultAPIListen              = "127.0.0.1:5000"
	DefaultAPITLSMinVersion       = tls.VersionTLS12
	DefaultAPISessionMaxAge       = 6 * time.Hour

	DefaultDatabaseSlowThreshold   = 200 * time.Millisecond
	DefaultDatabaseLogLevel        = slog.LevelInfo
	DefaultDiscordgoLogLevel       = slog.LevelWarn
	DefaultAPILogLevel             = slog.LevelInfo
	defaultListenNetwork           = "tcp"
	DefaultAPICORSAllowCredentials = true

	DefaultCanonicalTimezone    = "EST"
	DefaultNoticeDeleteAfter    = 30 * time.Second
	DefaultWizardTimeout        = discordInteractionTokenLifespan
	DefaultWizardSweepInterval  = time.Minute
	DefaultSignupRepostInterval = 2 * time.Second
)

// DiscordInteractionReceiveMethod is how an interaction reached the
// bot, which decides how it must be responded to
type DiscordInteractionReceiveMethod string

var (
	discordInteractionReceiveMethodGateway DiscordInteractionReceiveMethod = "gateway"
	discordInteractionReceiveMethodWebhook DiscordInteractionReceiveMethod = "webhook"
)

var (
	DefaultCORSAllowMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
		http.MethodHead,
	}
	DefaultCORSAllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-Requested-With",
		"Cache-Control",
		"X-CSRF-Token",
		xRequestIDHeader,
	}
	DefaultCORSExposeHeaders = []string{
		"Content-Type",
		"Content-Length",
		xRequestIDHeader,
		"Location",
		"Last-Modified",
	}
	DefaultCORSMaxAge = 12 * time.Hour
)

// Config is the bot's static configuration, loaded at startup from the
// environment (see cmd). Settings that can change while the bot runs
// live in RuntimeConfig instead.
type Config struct {
	// Database is a sqlite file path or a postgres DSN
	Database string `yaml:"database" mapstructure:"database" json:"database"`

	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" binding:"oneof=sqlite postgres"`

	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// Queries slower than this are logged at WARN
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	API *APIConfig `yaml:"api" mapstructure:"api" json:"api"`

	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// Workflow configures the training and job wizards
	Workflow *WorkflowConfig `yaml:"workflow" mapstructure:"workflow" json:"workflow"`

	// LogLevel applies to the bot's own logger, and anything without a
	// more specific level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// StartupTimeout bounds loading the store and connecting to discord.
	// Startup is aborted when it passes.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout bounds waiting for in-flight interactions on
	// shutdown, after which connections are closed regardless.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	HTTPClient *http.Client `log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// WorkflowConfig configures the interactive wizards and the signup message.
type WorkflowConfig struct {
	// CanonicalTimezone is the timezone abbreviation that availability
	// and job times are normalized to before they're stored.
	CanonicalTimezone string `yaml:"canonical_timezone" mapstructure:"canonical_timezone" json:"canonical_timezone" binding:"required"`

	// NoticeDeleteAfter is how long public notices (unqualified, missing
	// trainee) stay in the signup channel.
	NoticeDeleteAfter time.Duration `yaml:"notice_delete_after" mapstructure:"notice_delete_after" json:"notice_delete_after"`

	// WizardTimeout is how long an idle wizard stays resumable.
	WizardTimeout time.Duration `yaml:"wizard_timeout" mapstructure:"wizard_timeout" json:"wizard_timeout" binding:"min=1s"`

	// WizardSweepInterval is how often expired wizards are removed
	WizardSweepInterval time.Duration `yaml:"wizard_sweep_interval" mapstructure:"wizard_sweep_interval" json:"wizard_sweep_interval" binding:"min=1ms"`

	// SignupRepostInterval is the minimum time between signup message reposts
	SignupRepostInterval time.Duration `yaml:"signup_repost_interval" mapstructure:"signup_repost_interval" json:"signup_repost_interval"`
}

func validateWorkflowConfig(field reflect.Value) any {
	if value, ok := field.Interface().(WorkflowConfig); ok {
		if _, ok := TimezoneByName(value.CanonicalTimezone); !ok {
			return fmt.Sprintf("unknown timezone %q", value.CanonicalTimezone)
		}
		if value.NoticeDeleteAfter < 0 {
			return "notice_delete_after must be >= 0"
		}
		if value.SignupRepostInterval < 0 {
			return "signup_repost_interval must be >= 0"
		}
	}
	return nil
}

// canonicalTimezone returns the configured Timezone, falling back
// to DefaultCanonicalTimezone.
func (w *WorkflowConfig) canonicalTimezone() Timezone {
	if w != nil {
		if tz, ok := TimezoneByName(w.CanonicalTimezone); ok {
			return tz
		}
	}
	tz, _ := TimezoneByName(DefaultCanonicalTimezone)
	return tz
}

// DiscordConfig holds the bot's discord credentials, the guild it
// serves, and its discord-side log levels.
type DiscordConfig struct {
	// Bot token, from the Bot page of the developer portal
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required"`

	WebhookServer DiscordWebhookServerConfig `yaml:"webhook_server" mapstructure:"webhook_server" json:"webhook_server"`

	// GuildID specifies the guild ID used when registering slash commands,
	// and the guild that trainer/trainee role IDs are resolved against.
	// Commands are registered globally when it's empty, but roles
	// can't be verified.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// DiscordGoLogLevel filters discordgo's own logging, which is noisy
	// below WARN
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// If specified, and [RuntimeConfig.DiscordNotificationChannelID] is set,
	// the bot sends this message to that channel whenever it connects.
	StartupMessage string `yaml:"startup_message" mapstructure:"startup_message" json:"startup_message"`

	// See https://discord.com/developers/docs/topics/gateway#gateway-intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	httpClient *http.Client
}

// DiscordWebhookServerConfig configures receiving interactions as HTTP
// POSTs from discord instead of over the gateway websocket.
type DiscordWebhookServerConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// host:port, ex: 127.0.0.1:5001
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required_if=Enabled true"`

	// One of tcp, tcp4, tcp6 or unix
	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"required_if=Enabled true,omitempty,oneof=tcp tcp4 tcp6 unix"`

	SSL SSLConfig `yaml:"ssl" mapstructure:"ssl" json:"ssl"`

	// PublicKey is the hex-encoded application public key, from the
	// General Information page of the developer portal. Requests not
	// signed by it are rejected.
	PublicKey string `yaml:"public_key" mapstructure:"public_key" json:"public_key" binding:"required_if=Enabled true"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	ReadTimeout       time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout"`
}

// APIConfig configures the admin API server
type APIConfig struct {
	// host:port, ex: 127.0.0.1:5000
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required"`

	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"oneof=tcp tcp4 tcp6 unix"`

	// Secret is stretched into the session cookie signing key
	Secret string `yaml:"secret" mapstructure:"secret" json:"secret" log:"[redacted]"`

	SSL SSLConfig `yaml:"ssl" mapstructure:"ssl" json:"ssl"`

	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	CORS CORSConfig `yaml:"cors" mapstructure:"cors" json:"cors"`

	ReadTimeout       time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout" binding:"min=1s"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout" binding:"min=1s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout" binding:"min=1s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout" binding:"min=1s"`

	SessionMaxAge time.Duration `yaml:"session_max_age" mapstructure:"session_max_age" json:"session_max_age" binding:"min=10m,max=24h"`

	// If true, the SameSite attribute of the session cookie will be set to
	// 'None', and pprof endpoints are registered
	Development bool `yaml:"development" mapstructure:"development" json:"development"`
}

// SSLConfig points at a certificate and key. TLS is off when Cert
// is empty.
type SSLConfig struct {
	Cert          string `yaml:"cert" mapstructure:"cert" json:"cert"`
	Key           string `yaml:"key" mapstructure:"key" json:"key"`
	TLSMinVersion uint16 `yaml:"tls_min_version" mapstructure:"tls_min_version" json:"tls_min_version"`
}

type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins" mapstructure:"allow_origins" json:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods" mapstructure:"allow_methods" json:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers" mapstructure:"allow_headers" json:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers" mapstructure:"expose_headers" json:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age" json:"max_age"`
}

// GINConfig converts c for the cors middleware
func (c CORSConfig) GINConfig() cors.Config {
	return cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		ExposeHeaders:    c.ExposeHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           c.MaxAge,
	}
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{},
		AllowMethods:     append([]string(nil), DefaultCORSAllowMethods...),
		AllowHeaders:     append([]string(nil), DefaultCORSAllowHeaders...),
		ExposeHeaders:    append([]string(nil), DefaultCORSExposeHeaders...),
		MaxAge:           DefaultCORSMaxAge,
		AllowCredentials: DefaultAPICORSAllowCredentials,
	}
}

func newLevelVar(level slog.Level) *slog.LevelVar {
	v := &slog.LevelVar{}
	v.Set(level)
	return v
}

// DefaultConfig returns a Config with all default settings populated.
// The discord credentials are left empty.
func DefaultConfig() *Config {
	return &Config{
		DatabaseType:          DefaultDatabaseType,
		Database:              DefaultDatabase,
		DatabaseLogLevel:      newLevelVar(DefaultDatabaseLogLevel),
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		LogLevel:              newLevelVar(DefaultLogLevel),
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		Workflow:              defaultWorkflowConfig(),
		Discord: &DiscordConfig{
			WebhookServer:     defaultWebhookServerConfig(),
			GatewayIntents:    DefaultDiscordGatewayIntent,
			LogLevel:          newLevelVar(DefaultDiscordLogLevel),
			DiscordGoLogLevel: newLevelVar(DefaultDiscordgoLogLevel),
			StartupMessage:    DefaultDiscordStartupMessage,
		},
		API: defaultAPIConfig(),
	}
}

func defaultWorkflowConfig() *WorkflowConfig {
	return &WorkflowConfig{
		CanonicalTimezone:    DefaultCanonicalTimezone,
		NoticeDeleteAfter:    DefaultNoticeDeleteAfter,
		WizardTimeout:        DefaultWizardTimeout,
		WizardSweepInterval:  DefaultWizardSweepInterval,
		SignupRepostInterval: DefaultSignupRepostInterval,
	}
}

func defaultWebhookServerConfig() DiscordWebhookServerConfig {
	return DiscordWebhookServerConfig{
		Listen:            DefaultDiscordWebhookServerListen,
		ListenNetwork:     defaultListenNetwork,
		SSL:               SSLConfig{TLSMinVersion: DefaultDiscordWebhookServerTLSminVersion},
		LogLevel:          newLevelVar(DefaultDiscordWebhookLogLevel),
		ReadTimeout:       DefaultReadTimeout,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}
}

func defaultAPIConfig() *APIConfig {
	return &APIConfig{
		Listen:            DefaultAPIListen,
		ListenNetwork:     defaultListenNetwork,
		SSL:               SSLConfig{TLSMinVersion: DefaultAPITLSMinVersion},
		LogLevel:          newLevelVar(DefaultAPILogLevel),
		CORS:              DefaultCORSConfig(),
		ReadTimeout:       DefaultReadTimeout,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		SessionMaxAge:     DefaultAPISessionMaxAge,
	}
}
