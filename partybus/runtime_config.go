package partybus

import (
	"fmt"
	"log/slog"
	"reflect"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

var (
	columnRuntimeConfigPaused                       = "paused"
	columnRuntimeConfigAdminUsername                = "admin_username"
	columnRuntimeConfigAdminPassword                = "admin_password"
	columnRuntimeConfigDiscordNotificationChannelID = "discord_notification_channel_id"
	columnRuntimeConfigJobChannelID                 = "job_channel_id"
)

// RuntimeConfig holds settings that can be modified while the bot is
// running, and are persisted across restarts.
//
//nolint:lll // struct tags can't be split
type RuntimeConfig struct {
	ModelUintID
	ModelUnixTime

	// Paused indicates whether the bot is currently paused. Commands
	// received while paused are answered with a notice and ignored.
	Paused bool `json:"paused" gorm:"not null;default:false"`

	// RecoverPanic recovers from panics raised while handling an
	// interaction, rather than crashing the bot
	RecoverPanic bool `json:"recover_panic" gorm:"not null;default:false"`

	// Opens a discord gateway websocket connection.
	// If the bot receives slash commands via gateway, this is required.
	// If the bot receives commands via webhook, enabling this allows the
	// bot to appear online and set its status.
	DiscordGatewayEnabled bool `json:"discord_gateway_enabled" gorm:"not null;default:true"`

	// DiscordCustomStatus is the custom status message displayed for the bot on Discord.
	DiscordCustomStatus string `json:"discord_custom_status" gorm:"type:string"`

	// DiscordErrorMessage is shown when an interaction fails unexpectedly
	DiscordErrorMessage string `json:"discord_error_message" gorm:"type:string"`

	// DiscordNotificationChannelID is where startup messages are sent
	DiscordNotificationChannelID string `json:"discord_notification_channel_id" gorm:"type:string"`

	// JobChannelID is the channel job postings are sent to
	JobChannelID string `json:"job_channel_id" gorm:"type:string"`

	// AdminUsername for the admin API
	AdminUsername string `json:"admin_username" gorm:"type:string" log:"[redacted]"`

	// AdminPassword stores the hashed password for the admin user
	AdminPassword string `json:"admin_password" gorm:"type:string" log:"[redacted]"`

	// LogLevel is the general logging level for the application.
	LogLevel DBLogLevel `gorm:"default:INFO;type:string;check:log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`

	// DiscordLogLevel is the logging level for Discord-related operations.
	DiscordLogLevel DBLogLevel `gorm:"default:INFO;type:string;check:discord_log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"discord_log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`

	// DiscordGoLogLevel is the logging level for the DiscordGo library.
	DiscordGoLogLevel DBLogLevel `gorm:"default:INFO;column:discordgo_log_level;type:string;check:discordgo_log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"discordgo_log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`

	// DatabaseLogLevel is the logging level for database operations.
	DatabaseLogLevel DBLogLevel `gorm:"default:INFO;type:string;check:database_log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"database_log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`

	// DiscordWebhookLogLevel is the logging level for Discord webhook operations.
	DiscordWebhookLogLevel DBLogLevel `gorm:"default:INFO;type:string;check:discord_webhook_log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"discord_webhook_log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`

	// APILogLevel is the logging level for API operations.
	APILogLevel DBLogLevel `gorm:"default:INFO;type:string;check:api_log_level in ('INFO', 'WARN', 'ERROR', 'DEBUG')" json:"api_log_level" binding:"omitempty,oneof=INFO WARN ERROR DEBUG"`
}

func (RuntimeConfig) TableName() string {
	return "config"
}

func (r RuntimeConfig) LogValue() slog.Value {
	return structToSlogValue(r)
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		DiscordGatewayEnabled:  true,
		DiscordCustomStatus:    DefaultDiscordCustomStatus,
		DiscordErrorMessage:    DefaultDiscordErrorMessage,
		LogLevel:               DBLogLevelInfo,
		DiscordLogLevel:        DBLogLevelInfo,
		DiscordGoLogLevel:      DBLogLevelWarn,
		DatabaseLogLevel:       DBLogLevelInfo,
		DiscordWebhookLogLevel: DBLogLevelInfo,
		APILogLevel:            DBLogLevelInfo,
	}
}

// RuntimeConfigUpdate is a partial update to RuntimeConfig. Nil fields
// are left unchanged.
//
//nolint:lll // can't break tags
type RuntimeConfigUpdate struct {
	Paused       *bool `json:"paused,omitempty"`
	RecoverPanic *bool `json:"recover_panic,omitempty"`

	DiscordGatewayEnabled        *bool   `json:"discord_gateway_enabled,omitempty"`
	DiscordCustomStatus          *string `json:"discord_custom_status,omitempty" binding:"omitnil,max=128"`
	DiscordErrorMessage          *string `json:"discord_error_message,omitempty" binding:"omitnil,min=1,max=2000"`
	DiscordNotificationChannelID *string `json:"discord_notification_channel_id,omitempty" binding:"omitnil,omitempty,numeric"`
	JobChannelID                 *string `json:"job_channel_id,omitempty" binding:"omitnil,omitempty,numeric"`

	LogLevel               *DBLogLevel `json:"log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
	DiscordLogLevel        *DBLogLevel `json:"discord_log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
	DiscordGoLogLevel      *DBLogLevel `json:"discordgo_log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
	DatabaseLogLevel       *DBLogLevel `json:"database_log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
	DiscordWebhookLogLevel *DBLogLevel `json:"discord_webhook_log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
	APILogLevel            *DBLogLevel `json:"api_log_level,omitempty" binding:"omitnil,oneof=INFO WARN ERROR DEBUG"`
}

func (b RuntimeConfigUpdate) validate() error {
	return structValidator.Struct(b)
}

// validateRuntimeUpdateLimits checks that channel IDs look like discord
// snowflakes
func validateRuntimeUpdateLimits(field reflect.Value) any {
	if value, ok := field.Interface().(RuntimeConfigUpdate); ok {
		for name, id := range map[string]*string{
			columnRuntimeConfigDiscordNotificationChannelID: value.DiscordNotificationChannelID,
			columnRuntimeConfigJobChannelID:                 value.JobChannelID,
		} {
			if id == nil || *id == "" {
				continue
			}
			if _, err := strconv.ParseUint(*id, 10, 64); err != nil {
				return fmt.Sprintf("%s: invalid channel id %q", name, *id)
			}
		}
	}
	return nil
}

// updates returns the column values to persist for the non-nil
// fields of the update
func (b RuntimeConfigUpdate) updates() map[string]any {
	cols := map[string]any{}
	set := func(col string, v any) {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr && !rv.IsNil() {
			cols[col] = rv.Elem().Interface()
		}
	}
	set(columnRuntimeConfigPaused, b.Paused)
	set("recover_panic", b.RecoverPanic)
	set("discord_gateway_enabled", b.DiscordGatewayEnabled)
	set("discord_custom_status", b.DiscordCustomStatus)
	set("discord_error_message", b.DiscordErrorMessage)
	set(columnRuntimeConfigDiscordNotificationChannelID, b.DiscordNotificationChannelID)
	set(columnRuntimeConfigJobChannelID, b.JobChannelID)
	set("log_level", b.LogLevel)
	set("discord_log_level", b.DiscordLogLevel)
	set("discordgo_log_level", b.DiscordGoLogLevel)
	set("database_log_level", b.DatabaseLogLevel)
	set("discord_webhook_log_level", b.DiscordWebhookLogLevel)
	set("api_log_level", b.APILogLevel)
	return cols
}

func getDiscordPresenceStatusUpdate(config RuntimeConfig) discordgo.GatewayStatusUpdate {
	if config.Paused {
		return discordgo.GatewayStatusUpdate{
			AFK:    true,
			Status: string(discordgo.StatusDoNotDisturb),
		}
	}
	return discordgo.GatewayStatusUpdate{Status: config.DiscordCustomStatus}
}
