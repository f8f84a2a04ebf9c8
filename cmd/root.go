package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/AllegroVivo/PartyBusBot/partybus"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg        = partybus.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:          "partybus [flags]",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
			// configured lists replace the defaults instead of extending them
			func(dc *mapstructure.DecoderConfig) { dc.ZeroFields = true },
		)
	},
}

func getLogLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
	return lvl, nil
}

// LevelToStringHookFunc decodes log level names into *slog.LevelVar
func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}
		if t.Elem() != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, err
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else if err := godotenv.Load(configFile); err != nil {
		log.Printf("unable to load %s: %v", configFile, err)
	}

	viper.SetDefault("database", partybus.DefaultDatabase)
	viper.SetDefault("database_type", partybus.DefaultDatabaseType)
	viper.SetDefault("database_slow_threshold", partybus.DefaultDatabaseSlowThreshold)
	viper.SetDefault("database_log_level", partybus.DefaultDatabaseLogLevel.String())

	viper.SetDefault("log_level", partybus.DefaultLogLevel.String())
	viper.SetDefault("startup_timeout", partybus.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", partybus.DefaultShutdownTimeout)

	// Workflow config
	viper.SetDefault("workflow.canonical_timezone", partybus.DefaultCanonicalTimezone)
	viper.SetDefault("workflow.notice_delete_after", partybus.DefaultNoticeDeleteAfter)
	viper.SetDefault("workflow.wizard_timeout", partybus.DefaultWizardTimeout)
	viper.SetDefault("workflow.wizard_sweep_interval", partybus.DefaultWizardSweepInterval)
	viper.SetDefault("workflow.signup_repost_interval", partybus.DefaultSignupRepostInterval)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.log_level", partybus.DefaultDiscordLogLevel.String())
	viper.SetDefault("discord.discordgo_log_level", partybus.DefaultDiscordgoLogLevel.String())
	viper.SetDefault("discord.gateway_intents", partybus.DefaultDiscordGatewayIntent)
	viper.SetDefault("discord.startup_message", partybus.DefaultDiscordStartupMessage)

	// Discord: Webhook server
	viper.SetDefault("discord.webhook_server.enabled", false)
	viper.SetDefault("discord.webhook_server.listen", partybus.DefaultDiscordWebhookServerListen)
	viper.SetDefault("discord.webhook_server.listen_network", "tcp")
	viper.SetDefault("discord.webhook_server.public_key", "")
	viper.SetDefault("discord.webhook_server.read_timeout", partybus.DefaultReadTimeout)
	viper.SetDefault("discord.webhook_server.read_header_timeout", partybus.DefaultReadHeaderTimeout)
	viper.SetDefault("discord.webhook_server.write_timeout", partybus.DefaultWriteTimeout)
	viper.SetDefault("discord.webhook_server.idle_timeout", partybus.DefaultIdleTimeout)
	viper.SetDefault(
		"discord.webhook_server.log_level",
		partybus.DefaultDiscordWebhookLogLevel.String(),
	)
	viper.SetDefault(
		"discord.webhook_server.ssl.tls_min_version",
		partybus.DefaultDiscordWebhookServerTLSminVersion,
	)

	fatalErr := func(err error) {
		if err != nil {
			log.Fatalf("error: %v", err)
		}
	}

	fatalErr(viper.BindEnv("discord.webhook_server.ssl.cert"))
	fatalErr(viper.BindEnv("discord.webhook_server.ssl.key"))

	// API config
	viper.SetDefault("api.listen", partybus.DefaultAPIListen)
	viper.SetDefault("api.listen_network", "tcp")
	viper.SetDefault("api.secret", "")
	viper.SetDefault("api.development", false)
	viper.SetDefault("api.log_level", partybus.DefaultAPILogLevel.String())
	viper.SetDefault("api.session_max_age", partybus.DefaultAPISessionMaxAge)
	viper.SetDefault("api.read_timeout", partybus.DefaultReadTimeout)
	viper.SetDefault("api.read_header_timeout", partybus.DefaultReadHeaderTimeout)
	viper.SetDefault("api.write_timeout", partybus.DefaultWriteTimeout)
	viper.SetDefault("api.idle_timeout", partybus.DefaultIdleTimeout)
	viper.SetDefault("api.ssl.tls_min_version", partybus.DefaultAPITLSMinVersion)

	fatalErr(viper.BindEnv("api.ssl.cert"))
	fatalErr(viper.BindEnv("api.ssl.key"))

	// API: CORS config
	viper.SetDefault("api.cors.allow_headers", partybus.DefaultCORSAllowHeaders)
	viper.SetDefault("api.cors.allow_methods", partybus.DefaultCORSAllowMethods)
	viper.SetDefault("api.cors.expose_headers", partybus.DefaultCORSExposeHeaders)
	viper.SetDefault("api.cors.allow_origins", []string{})
	viper.SetDefault("api.cors.max_age", partybus.DefaultCORSMaxAge)
	viper.SetDefault("api.cors.allow_credentials", partybus.DefaultAPICORSAllowCredentials)

	envPrefix := os.Getenv(partybus.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = partybus.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// space-separated env values need to be split before unmarshalling
	for _, key := range []string{
		"api.cors.allow_headers",
		"api.cors.allow_origins",
		"api.cors.allow_methods",
		"api.cors.expose_headers",
	} {
		viper.Set(key, viper.GetStringSlice(key))
	}

	for _, key := range []string{
		"log_level",
		"database_log_level",
		"discord.log_level",
		"discord.discordgo_log_level",
		"discord.webhook_server.log_level",
		"api.log_level",
	} {
		if _, ok := viper.Get(key).(*slog.LevelVar); ok {
			continue
		}
		logLevelVar, err := levelStringToLevelVar(viper.GetString(key))
		if err != nil {
			log.Fatalf("error parsing %s: %v", key, err)
		}
		viper.Set(key, logLevelVar)
	}
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

//nolint:gochecknoinits // cobra registration
func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Env file to load configuration from",
	)
}
