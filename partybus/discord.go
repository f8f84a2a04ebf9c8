package partybus

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	// discordInteractionTokenLifespan defines the lifespan of a Discord interaction token.
	// Discord interaction tokens currently expire after 15 minutes.
	discordInteractionTokenLifespan = 15 * time.Minute

	// discordModalInputLabelMaxLength defines the maximum length for the
	// label of a modal input
	discordModalInputLabelMaxLength = 45

	// discordMaxButtonsPerActionRow defines the maximum number of buttons
	// allowed per action row
	discordMaxButtonsPerActionRow = 5

	// discordMaxSelectOptions is the most options a select menu may have
	discordMaxSelectOptions = 25

	// discordMaxActionRows is the most action rows a message may have
	discordMaxActionRows = 5

	DiscordSlashCommandAdmin     = "admin"
	DiscordSlashCommandPositions = "positions"
	DiscordSlashCommandTraining  = "training"
	DiscordSlashCommandJobs      = "jobs"

	subcommandAddTrainer        = "add_trainer"
	subcommandUserStatus        = "user_status"
	subcommandPostSignup        = "post_signup"
	subcommandTrainerManagement = "trainer_management"
	subcommandSetJobChannel     = "set_job_channel"
	subcommandAdd               = "add"
	subcommandStatus            = "status"
	subcommandGlobalReqs        = "global_reqs"
	subcommandProfile           = "profile"
	subcommandConfig            = "config"
	subcommandUpdate            = "update"
	subcommandPost              = "post"

	optionUser     = "user"
	optionChannel  = "channel"
	optionName     = "name"
	optionPosition = "position"
)

// Discord manages the discord session and the bot's slash commands
type Discord struct {
	session                     DiscordSessionHandler
	config                      *DiscordConfig
	logger                      *slog.Logger
	publicKey                   ed25519.PublicKey
	metricConnects              atomic.Int64
	metricDisconnects           atomic.Int64
	connected                   atomic.Bool
	discordgoRemoveHandlerFuncs []func()
	p                           *PartyBus
}

// newDiscord initializes a new Discord instance with the provided configuration
func newDiscord(config *DiscordConfig) (*Discord, error) {
	d := &Discord{
		config:                      config,
		discordgoRemoveHandlerFuncs: []func(){},
	}

	if config.WebhookServer.PublicKey != "" {
		publicKey, err := hex.DecodeString(config.WebhookServer.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("error decoding public key: %w", err)
		}
		d.publicKey = ed25519.PublicKey(publicKey)
	}

	return d, nil
}

// newSession creates a discordgo session for the configured bot token
func (d *Discord) newSession() (DiscordSessionHandler, error) {
	session := DiscordSession{logger: d.logger.With(loggerNameKey, "discord_session_handler")}
	disc, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return session, fmt.Errorf("error creating discord session: %w", err)
	}
	disc.SyncEvents = true
	disc.StateEnabled = false
	session.session = disc
	if d.config.httpClient != nil {
		disc.Client = d.config.httpClient
	}

	if err = session.SetLogLevel(d.config.DiscordGoLogLevel.Level()); err != nil {
		return session, err
	}
	return session, nil
}

func guildOnly() (*[]discordgo.InteractionContextType, *[]discordgo.ApplicationIntegrationType) {
	contexts := []discordgo.InteractionContextType{discordgo.InteractionContextGuild}
	integrationTypes := []discordgo.ApplicationIntegrationType{discordgo.ApplicationIntegrationGuildInstall}
	return &contexts, &integrationTypes
}

func managerPermissions() *int64 {
	var perm int64 = discordgo.PermissionManageGuild
	return &perm
}

func subcommand(
	name string,
	description string,
	options ...*discordgo.ApplicationCommandOption,
) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func userOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        optionUser,
		Description: description,
		Required:    true,
	}
}

func textChannelOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         optionChannel,
		Description:  description,
		Required:     true,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
}

// appCommandAdmin is the management-only /admin command
func (*Discord) appCommandAdmin() *discordgo.ApplicationCommand {
	contexts, integrationTypes := guildOnly()
	return &discordgo.ApplicationCommand{
		Name:                     DiscordSlashCommandAdmin,
		Description:              "Training administration",
		Type:                     discordgo.ChatApplicationCommand,
		DefaultMemberPermissions: managerPermissions(),
		Contexts:                 contexts,
		IntegrationTypes:         integrationTypes,
		Options: []*discordgo.ApplicationCommandOption{
			subcommand(subcommandAddTrainer, "Register a user as a trainer", userOption("The user to register")),
			subcommand(subcommandUserStatus, "View and edit a user's training profile", userOption("The user to view")),
			subcommand(
				subcommandPostSignup,
				"Post the trainer/trainee sign up message",
				textChannelOption("Where to post the sign up message"),
			),
			subcommand(subcommandTrainerManagement, "Assign or remove trainers from trainings"),
			subcommand(
				subcommandSetJobChannel,
				"Set the channel job postings are sent to",
				textChannelOption("Where to post jobs"),
			),
		},
	}
}

func (*Discord) appCommandPositions() *discordgo.ApplicationCommand {
	contexts, integrationTypes := guildOnly()
	minLength := 1
	return &discordgo.ApplicationCommand{
		Name:                     DiscordSlashCommandPositions,
		Description:              "Manage trainable positions",
		Type:                     discordgo.ChatApplicationCommand,
		DefaultMemberPermissions: managerPermissions(),
		Contexts:                 contexts,
		IntegrationTypes:         integrationTypes,
		Options: []*discordgo.ApplicationCommandOption{
			subcommand(
				subcommandAdd, "Add a new position",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionName,
					Description: "The position's name",
					Required:    true,
					MinLength:   &minLength,
					MaxLength:   selectLabelMaxRunes,
				},
			),
			subcommand(
				subcommandStatus, "View and edit positions",
				&discordgo.ApplicationCommandOption{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        optionPosition,
					Description: "The position to view",
					Required:    false,
				},
			),
			subcommand(subcommandGlobalReqs, "Manage requirements shared by every position"),
		},
	}
}

func (*Discord) appCommandTraining() *discordgo.ApplicationCommand {
	contexts, integrationTypes := guildOnly()
	return &discordgo.ApplicationCommand{
		Name:             DiscordSlashCommandTraining,
		Description:      "Your training profile",
		Type:             discordgo.ChatApplicationCommand,
		Contexts:         contexts,
		IntegrationTypes: integrationTypes,
		Options: []*discordgo.ApplicationCommandOption{
			subcommand(subcommandProfile, "View and edit your training profile"),
			subcommand(subcommandConfig, "Your notification settings"),
			subcommand(
				subcommandUpdate,
				"Update a trainee's requirement progress",
				userOption("The trainee to update"),
			),
		},
	}
}

func (*Discord) appCommandJobs() *discordgo.ApplicationCommand {
	contexts, integrationTypes := guildOnly()
	return &discordgo.ApplicationCommand{
		Name:             DiscordSlashCommandJobs,
		Description:      "Job postings",
		Type:             discordgo.ChatApplicationCommand,
		Contexts:         contexts,
		IntegrationTypes: integrationTypes,
		Options: []*discordgo.ApplicationCommandOption{
			subcommand(subcommandPost, "Create a new job post"),
		},
	}
}

// registerCommands sends the bot's commands to the discord bulk overwrite
// endpoint
func (d *Discord) registerCommands(options ...discordgo.RequestOption) (
	[]*discordgo.ApplicationCommand,
	error,
) {
	if d.session == nil {
		session, err := d.newSession()
		if err != nil {
			return nil, err
		}
		d.session = session
	}

	commands := []*discordgo.ApplicationCommand{
		d.appCommandAdmin(),
		d.appCommandPositions(),
		d.appCommandTraining(),
		d.appCommandJobs(),
	}

	created, err := d.session.ApplicationCommandBulkOverwrite(
		d.config.ApplicationID,
		d.config.GuildID,
		commands,
		options...,
	)
	if err != nil {
		d.logger.Error("error overwriting discord commands", tint.Err(err))
		return created, err
	}
	if len(created) == 0 {
		d.logger.Warn("no commands created")
	}
	return created, nil
}

func (d *Discord) handlerReady() func(s *discordgo.Session, r *discordgo.Ready) {
	return func(s *discordgo.Session, r *discordgo.Ready) {
		attrs := []any{"session_id", r.SessionID}
		if r.User != nil {
			attrs = append(attrs, "user_id", r.User.ID, "username", r.User.Username)
		}
		d.logger.Info("Ready", attrs...)
	}
}

func (d *Discord) handlerConnect() func(s *discordgo.Session, r *discordgo.Connect) {
	return func(s *discordgo.Session, r *discordgo.Connect) {
		d.metricConnects.Add(1)
		d.connected.Store(true)
		d.logger.Info("Connected", "connects", d.metricConnects.Load())

		config := d.p.RuntimeConfig()
		if config.DiscordCustomStatus != "" {
			if err := d.session.UpdateCustomStatus(config.DiscordCustomStatus); err != nil {
				d.logger.Error("unable to set custom status", tint.Err(err))
			}
		}
		if config.DiscordNotificationChannelID != "" && d.config.StartupMessage != "" {
			if _, err := d.session.ChannelMessageSend(
				config.DiscordNotificationChannelID,
				d.config.StartupMessage,
				discordgo.WithRetryOnRatelimit(false),
				discordgo.WithRestRetries(1),
			); err != nil {
				d.logger.Error("unable to send startup message", tint.Err(err))
			}
		}
	}
}

func (d *Discord) handlerDisconnect() func(s *discordgo.Session, r *discordgo.Disconnect) {
	return func(s *discordgo.Session, r *discordgo.Disconnect) {
		d.connected.Store(false)
		d.metricDisconnects.Add(1)
		d.logger.Info("disconnected", "disconnects", d.metricDisconnects.Load())
	}
}

// roleExists reports whether roleID is a role in the configured guild.
// Lookup failures are treated as the role not existing.
func (d *Discord) roleExists(roleID string) bool {
	if d.config.GuildID == "" {
		d.logger.Warn("no guild configured, unable to verify role", "role_id", roleID)
		return false
	}
	roles, err := d.session.GuildRoles(d.config.GuildID)
	if err != nil {
		d.logger.Warn("unable to fetch guild roles", tint.Err(err))
		return false
	}
	for _, r := range roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}

// sendDM sends an embed to a user's direct messages
func (d *Discord) sendDM(userID string, embed *discordgo.MessageEmbed) error {
	ch, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("error opening DM channel: %w", err)
	}
	_, err = d.session.ChannelMessageSendComplex(
		ch.ID,
		&discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}},
	)
	return err
}

// DiscordSessionHandler defines the methods of discordgo.Session the
// bot uses, so the session can be mocked in tests.
type DiscordSessionHandler interface {
	// Open creates a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	// ChannelMessageSend sends a plain text message to a channel
	ChannelMessageSend(
		channelID string,
		message string,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ChannelMessageSendComplex sends a message with embeds and
	// components to a channel
	ChannelMessageSendComplex(
		channelID string,
		data *discordgo.MessageSend,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ChannelMessageEditComplex edits an existing message
	ChannelMessageEditComplex(
		m *discordgo.MessageEdit,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	ChannelMessageDelete(channelID string, messageID string, opts ...discordgo.RequestOption) error

	// ChannelMessage fetches a single message
	ChannelMessage(
		channelID string,
		messageID string,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// Channel fetches a channel
	Channel(channelID string, opts ...discordgo.RequestOption) (*discordgo.Channel, error)

	// UserChannelCreate opens (or returns the existing) DM channel with a user
	UserChannelCreate(recipientID string, opts ...discordgo.RequestOption) (*discordgo.Channel, error)

	// User fetches a user
	User(userID string, opts ...discordgo.RequestOption) (*discordgo.User, error)

	// GuildRoles lists a guild's roles
	GuildRoles(guildID string, opts ...discordgo.RequestOption) ([]*discordgo.Role, error)

	// ApplicationCommandBulkOverwrite replaces the application's commands
	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)

	// UpdateCustomStatus sets the bot's user status to the given string.
	// If empty, sets the bot user to active and removes any existing
	// custom status.
	UpdateCustomStatus(status string) error

	// AddHandler adds a discord gateway event handler
	AddHandler(handler any) func()

	// InteractionRespond sends an interaction response to Discord
	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	// InteractionResponseEdit modifies the original interaction response
	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// InteractionResponseDelete deletes the original interaction response
	InteractionResponseDelete(
		interaction *discordgo.Interaction,
		options ...discordgo.RequestOption,
	) error

	// SetIdentify sets the identify object that's sent during the initial
	// handshake with the discord gateway
	SetIdentify(discordgo.Identify)

	// SetLogLevel modifies the session's log level
	SetLogLevel(lvl slog.Level) error

	SetHTTPClient(client *http.Client)
}

// DiscordSession implements DiscordSessionHandler, wrapping a
// [discordgo.Session](https://pkg.go.dev/github.com/bwmarrin/discordgo#Session)
type DiscordSession struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func (d DiscordSession) SetLogLevel(lvl slog.Level) error {
	switch lvl.Level() {
	case slog.LevelInfo:
		d.session.LogLevel = discordgo.LogInformational
	case slog.LevelWarn:
		d.session.LogLevel = discordgo.LogWarning
	case slog.LevelDebug:
		d.session.LogLevel = discordgo.LogDebug
	case slog.LevelError:
		d.session.LogLevel = discordgo.LogError
	default:
		return fmt.Errorf("invalid log level: %s", lvl)
	}
	return nil
}

func (d DiscordSession) SetHTTPClient(client *http.Client) {
	d.session.Client = client
}

func (d DiscordSession) SetIdentify(i discordgo.Identify) {
	d.session.Identify = i
}

func (d DiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	return d.session.InteractionRespond(interaction, resp, options...)
}

func (d DiscordSession) InteractionResponseEdit(
	interaction *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.InteractionResponseEdit(interaction, newresp, options...)
}

func (d DiscordSession) InteractionResponseDelete(
	interaction *discordgo.Interaction,
	options ...discordgo.RequestOption,
) error {
	return d.session.InteractionResponseDelete(interaction, options...)
}

func (d DiscordSession) AddHandler(handler any) func() {
	return d.session.AddHandler(handler)
}

func (d DiscordSession) Open() error {
	return d.session.Open()
}

func (d DiscordSession) Close() error {
	return d.session.Close()
}

func (d DiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSend(channelID, message, opts...)
}

func (d DiscordSession) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := d.session.ChannelMessageSendComplex(channelID, data, opts...)
	if err != nil {
		d.logger.Error("error sending message", tint.Err(err), "channel_id", channelID)
	} else {
		d.logger.Debug("sent message", "channel_id", channelID, "message_id", msg.ID)
	}
	return msg, err
}

func (d DiscordSession) ChannelMessageEditComplex(
	m *discordgo.MessageEdit,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageEditComplex(m, opts...)
}

func (d DiscordSession) ChannelMessageDelete(
	channelID string,
	messageID string,
	opts ...discordgo.RequestOption,
) error {
	err := d.session.ChannelMessageDelete(channelID, messageID, opts...)
	if err != nil {
		d.logger.Warn(
			"error deleting message",
			tint.Err(err),
			"channel_id", channelID,
			"message_id", messageID,
		)
	}
	return err
}

func (d DiscordSession) ChannelMessage(
	channelID string,
	messageID string,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessage(channelID, messageID, opts...)
}

func (d DiscordSession) Channel(channelID string, opts ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return d.session.Channel(channelID, opts...)
}

func (d DiscordSession) UserChannelCreate(
	recipientID string,
	opts ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return d.session.UserChannelCreate(recipientID, opts...)
}

func (d DiscordSession) User(userID string, opts ...discordgo.RequestOption) (*discordgo.User, error) {
	return d.session.User(userID, opts...)
}

func (d DiscordSession) GuildRoles(guildID string, opts ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	return d.session.GuildRoles(guildID, opts...)
}

func (d DiscordSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	created, err := d.session.ApplicationCommandBulkOverwrite(appID, guildID, commands, options...)
	if err != nil {
		d.logger.Error("error overwriting discord commands", tint.Err(err))
		return created, err
	}
	for _, c := range created {
		d.logger.Info("Created command", "command", c.Name, "id", c.ID)
	}
	return created, nil
}

func (d DiscordSession) UpdateCustomStatus(status string) error {
	return d.session.UpdateCustomStatus(status)
}

// getDiscordUser returns the [discordgo.User] associated with the interaction.
// Users don't always appear in the same place in the interaction object, so
// this checks known areas.
func getDiscordUser(i *discordgo.InteractionCreate) *discordgo.User {
	u := i.User
	if u == nil && i.Member != nil {
		u = i.Member.User
	}
	return u
}

// memberCanManage reports whether the interaction's member has the
// Manage Server permission
func memberCanManage(i *discordgo.InteractionCreate) bool {
	return i.Member != nil && i.Member.Permissions&discordgo.PermissionManageGuild != 0
}

// discordDisplayName prefers the user's global name over their username
func discordDisplayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
