package partybus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

var (
	// When building, set these like:
	// -ldflags "-X github.com/AllegroVivo/PartyBusBot/partybus.Version=$$(date +'%Y%m%d')"

	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

var defaultLogWriter io.Writer = os.Stdout

const (
	pausedCustomStatus = "Paused"
	pausedMessage      = "The bot is paused right now. Try again later!"

	storeReloadTimeout         = 30 * time.Second
	runtimeConfigReloadTimeout = 30 * time.Second
)

// PartyBus is the bot. It owns the discord session, the in-memory
// Store, the wizard registry and the admin API.
//
// Create one with New, then call Run.
type PartyBus struct {
	dbNotifier DBNotifier
	config     *Config

	// read connection
	db *gorm.DB

	// gorm.DB wrapper for writes. With sqlite, writes are serialized
	// by a mutex.
	writeDB DBI

	store   *Store
	wizards *wizardRegistry

	logger     *slog.Logger
	logHandler slog.Handler

	discord *Discord

	// admin API
	api *API

	// receives interactions over HTTP when the gateway isn't used
	discordWebhookServer      *DiscordWebhookServer
	webhookInteractionHandler func(c *gin.Context)

	// signupMu serializes posting/editing the signup message, and
	// signupLimiter spaces out reposts
	signupMu      sync.Mutex
	signupLimiter *rate.Limiter

	// signalStop triggers a graceful shutdown, such as from the
	// `/api/quit` endpoint
	signalStop chan struct{}

	// signalReady receives a value once Run has loaded the store,
	// opened the discord session and started its background workers
	signalReady chan struct{}

	// eventShutdown receives a value when shutdown finishes
	eventShutdown chan struct{}

	// prevents Run from executing concurrently
	runMu sync.Mutex

	// while paused, slash commands are answered with a notice and
	// otherwise ignored
	paused atomic.Bool

	startedAt time.Time

	// pendingSetup is true until admin credentials have been set
	pendingSetup atomic.Bool

	// getInteractionHandlerFunc returns the InteractionHandler for an
	// incoming interaction, so handling is the same for the gateway
	// and webhooks
	getInteractionHandlerFunc func(
		ctx context.Context,
		i *discordgo.InteractionCreate,
	) InteractionHandler

	runtimeConfig *RuntimeConfig
	cfgMu         sync.RWMutex

	interactionsInProgress atomic.Int64

	// deferredWG tracks work that outlives its interaction's handler
	deferredWG sync.WaitGroup

	triggerRuntimeConfigRefreshCh chan bool
	triggerStoreReloadCh          chan bool
}

// New creates a PartyBus from config. Errors from each component are
// collected and returned together.
func New(config *Config) (*PartyBus, error) {
	var errs []error

	switch config.DatabaseType {
	case dbTypeSQLite, dbTypePostgres:
		//
	default:
		errs = append(
			errs,
			errors.New("invalid database type (must be 'sqlite' or 'postgres')"),
		)
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Workflow == nil {
		config.Workflow = DefaultConfig().Workflow
	}

	p := &PartyBus{
		config:                        config,
		signalReady:                   make(chan struct{}, 1),
		signalStop:                    make(chan struct{}, 1),
		eventShutdown:                 make(chan struct{}, 1),
		triggerRuntimeConfigRefreshCh: make(chan bool, 1),
		triggerStoreReloadCh:          make(chan bool, 1),
		signupLimiter:                 rate.NewLimiter(rate.Every(config.Workflow.SignupRepostInterval), 1),
	}

	p.logHandler = tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     p.config.LogLevel,
			AddSource: true,
		},
	)
	p.logger = slog.New(p.logHandler)
	slog.SetDefault(p.logger)

	p.wizards = newWizardRegistry(config.Workflow.WizardTimeout, p.logger)

	p.config.Discord.httpClient = p.config.HTTPClient

	disc, err := newDiscord(p.config.Discord)
	if err != nil {
		errs = append(errs, err)
		return p, errors.Join(errs...)
	}

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     p.config.Discord.DiscordGoLogLevel,
				AddSource: true,
			},
		).WithAttrs([]slog.Attr{slog.String(loggerNameKey, "discordgo")}),
	)

	disc.logger = slog.New(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     p.config.Discord.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "discord")
	p.discord = disc
	disc.p = p

	api, err := newAPI(p, config.API)
	errs = append(errs, err)
	p.api = api

	if config.Discord.WebhookServer.Enabled {
		webhookServer, e := newWebhookServer(p, config.Discord.WebhookServer)
		errs = append(errs, e)
		p.discordWebhookServer = webhookServer
	}

	return p, errors.Join(errs...)
}

func (p *PartyBus) ValidateConfig() error {
	if p.config.Workflow != nil {
		if msg := validateWorkflowConfig(reflect.ValueOf(*p.config.Workflow)); msg != nil {
			return fmt.Errorf("invalid workflow config: %v", msg)
		}
	}
	return structValidator.Struct(p.config)
}

// RuntimeConfig returns a copy of the current runtime configuration
func (p *PartyBus) RuntimeConfig() RuntimeConfig {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	if p.runtimeConfig == nil {
		return DefaultRuntimeConfig()
	}
	return *p.runtimeConfig
}

// canonicalTimezone is the timezone availability and job times are
// stored in
func (p *PartyBus) canonicalTimezone() Timezone {
	return p.config.Workflow.canonicalTimezone()
}

// Store returns the bot's in-memory store. It's nil until Run has
// initialized the database.
func (p *PartyBus) Store() *Store {
	return p.store
}

// RegisterSlashCommands overwrites the bot's slash commands with
// the current definitions
func (p *PartyBus) RegisterSlashCommands(options ...discordgo.RequestOption) (
	[]*discordgo.ApplicationCommand,
	error,
) {
	return p.discord.registerCommands(options...)
}

// Run initializes the database and store, connects to discord, and
// handles interactions until ctx is cancelled or a stop signal is
// received.
func (p *PartyBus) Run(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.startedAt = time.Now()
	logger := p.logger

	if err := p.ValidateConfig(); err != nil {
		logger.Error("invalid config", tint.Err(err))
		return err
	}

	notifier, err := newDBNotifier(p)
	if err != nil {
		logger.Error("error creating db notifier", tint.Err(err))
		return err
	}
	p.dbNotifier = notifier

	ctx = WithLogger(ctx, logger)
	runtimeWG := &sync.WaitGroup{}

	p.webhookInteractionHandler = webhookReceiveHandler(ctx, p)

	logger.LogAttrs(ctx, slog.LevelInfo, "starting", slog.Any("config", p.config))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-p.signalStop:
			p.logger.Warn("got stop signal, canceling")
			cancel()
		case <-ctx.Done():
			p.logger.Warn("context canceled")
		}
	}()

	go func() {
		httpErr := p.api.Serve(ctx)
		if httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			p.logger.ErrorContext(ctx, "error serving api HTTP", tint.Err(httpErr))
		}
	}()

	startCtx, startCancel := context.WithTimeout(ctx, p.config.StartupTimeout)
	defer startCancel()

	initErr := make(chan error, 1)
	go func() {
		logger.Debug("initializing run...")
		initErr <- p.initRun(startCtx)
	}()

	select {
	case <-startCtx.Done():
		return fmt.Errorf("startup cancelled or timed out")
	case e := <-initErr:
		if e != nil {
			logger.ErrorContext(ctx, "init error", tint.Err(e))
			p.api.close()
			return e
		}
		logger.InfoContext(ctx, "init complete")
	}

	runtimeCfg := p.RuntimeConfig()

	if discErr := p.initDiscordSession(ctx, runtimeWG); discErr != nil {
		logger.ErrorContext(ctx, "error creating discord session", tint.Err(discErr))
		return discErr
	}

	if p.config.Discord.WebhookServer.Enabled {
		p.startWebhookServer(ctx, runtimeWG)
	} else if !runtimeCfg.DiscordGatewayEnabled {
		logger.WarnContext(ctx, "discord gateway and webhook server disabled")
	}

	if err = p.discordInit(ctx, runtimeCfg, logger); err != nil {
		return err
	}

	p.verifyPositionRoles(ctx)
	p.verifySignupMessage(ctx)

	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		p.wizards.run(ctx, p.config.Workflow.WizardSweepInterval)
	}()

	p.startRuntimeConfigRefresher(ctx, runtimeWG)
	p.startStoreReloader(ctx, runtimeWG)

	for _, channel := range []string{
		p.dbNotifier.RuntimeConfigChannelName(),
		p.dbNotifier.StoreChannelName(),
		p.dbNotifier.StopChannelName(),
	} {
		if channel == "" {
			continue
		}
		runtimeWG.Add(1)
		go func(ch string) {
			defer runtimeWG.Done()
			if e := p.dbNotifier.Listen(ctx, ch); e != nil {
				p.logger.ErrorContext(ctx, "error listening on channel", "channel", ch, tint.Err(e))
			}
		}(channel)
	}

	select {
	case p.signalReady <- struct{}{}:
	default:
	}
	logger.InfoContext(ctx, "ready")

	<-ctx.Done()
	return p.shutdown(ctx, runtimeWG)
}

// initRun opens and migrates the database, loads (or creates) the
// runtime config and loads the store
func (p *PartyBus) initRun(ctx context.Context) error {
	p.logger.Debug("initializing DB...")
	if err := p.initDB(ctx); err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}

	var botState RuntimeConfig
	getStateErr := p.db.WithContext(ctx).Last(&botState).Error
	if getStateErr != nil {
		if !errors.Is(getStateErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("error getting config: %w", getStateErr)
		}
		botState = DefaultRuntimeConfig()
		if _, err := p.writeDB.Create(ctx, &botState); err != nil {
			return fmt.Errorf("error creating config: %w", err)
		}
	}
	if validationErr := structValidator.Struct(botState); validationErr != nil {
		return fmt.Errorf("invalid runtime config: %w", validationErr)
	}
	if botState.AdminUsername == "" || botState.AdminPassword == "" {
		p.pendingSetup.Store(true)
		p.logger.Warn("admin credentials not set, the admin API is in setup mode")
	}

	p.cfgMu.Lock()
	p.paused.Store(botState.Paused)
	p.setRuntimeLevels(botState)
	p.runtimeConfig = &botState
	p.cfgMu.Unlock()

	p.store = NewStore(p.writeDB, p.logger)
	if err := p.store.Load(ctx); err != nil {
		return err
	}
	return nil
}

// initDB opens the configured database, applies sqlite connection
// settings and migrates every table
func (p *PartyBus) initDB(ctx context.Context) error {
	logger, ok := ContextLogger(ctx)
	if !ok || logger == nil {
		logger = p.logger
	}

	handler := tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     p.config.DatabaseLogLevel,
			AddSource: true,
		},
	)

	gormLogger := newGORMLogger(handler, p.config.DatabaseSlowThreshold)
	db, err := getDB(p.config.DatabaseType, p.config.Database, gormLogger)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	p.db = db
	p.writeDB = NewDatabase(db, logger, p.config.DatabaseType == dbTypePostgres)

	if p.config.DatabaseType == dbTypeSQLite {
		sqlDB, e := db.DB()
		if e != nil {
			return fmt.Errorf("error getting database connection: %w", e)
		}
		sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
		sqlDB.SetMaxIdleConns(sqliteMaxIdleConns)
		sqlDB.SetConnMaxLifetime(sqliteMaxConnLifetime)
		pragmaErrors := make([]error, 0, len(sqliteExecPragma))
		for _, pragma := range sqliteExecPragma {
			pragmaErrors = append(pragmaErrors, db.WithContext(ctx).Exec(pragma).Error)
		}
		if pragmaErr := errors.Join(pragmaErrors...); pragmaErr != nil {
			return pragmaErr
		}
	}

	logger.Debug("migrating database...")
	if err = migrate(ctx, db); err != nil {
		logger.Error("error migrating database", tint.Err(err))
		return fmt.Errorf("error migrating database: %w", err)
	}
	logger.Debug("finished migrating database")
	return nil
}

func (p *PartyBus) initDiscordSession(ctx context.Context, runtimeWG *sync.WaitGroup) error {
	logger := p.logger.With(loggerNameKey, "discord_session")

	if p.discord.session == nil {
		disc, discErr := p.discord.newSession()
		if discErr != nil {
			return fmt.Errorf("error creating discord session: %w", discErr)
		}
		p.discord.session = disc
	}

	ctx = WithLogger(ctx, logger)

	for _, h := range p.discord.discordgoRemoveHandlerFuncs {
		h()
	}

	p.discord.session.SetIdentify(
		discordgo.Identify{
			Intents:  p.config.Discord.GatewayIntents,
			Presence: getDiscordPresenceStatusUpdate(p.RuntimeConfig()),
		},
	)

	p.discord.discordgoRemoveHandlerFuncs = []func(){
		p.discord.session.AddHandler(p.discord.handlerConnect()),
		p.discord.session.AddHandler(p.discord.handlerDisconnect()),
		p.discord.session.AddHandler(p.discord.handlerReady()),
		p.discord.session.AddHandler(
			func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
				handler := p.getInteractionHandlerFunc(ctx, i)
				runtimeWG.Add(1)
				go func() {
					defer runtimeWG.Done()
					p.handleInteraction(ctx, handler)
				}()
			},
		),
	}

	if p.getInteractionHandlerFunc == nil {
		p.getInteractionHandlerFunc = func(
			_ context.Context,
			i *discordgo.InteractionCreate,
		) InteractionHandler {
			return GatewayHandler{
				session:     p.discord.session,
				interaction: i,
				logger: p.logger.With(
					slog.Group("interaction", interactionLogAttrs(*i)...),
				),
			}
		}
	}
	return nil
}

// discordInit opens the gateway connection, if the gateway is enabled
func (p *PartyBus) discordInit(
	ctx context.Context,
	runtimeCfg RuntimeConfig,
	logger *slog.Logger,
) error {
	if !runtimeCfg.DiscordGatewayEnabled {
		return nil
	}
	logger.InfoContext(ctx, "connecting to discord")
	if err := p.discord.session.Open(); err != nil {
		logger.ErrorContext(ctx, "error connecting to discord!", tint.Err(err))
		return fmt.Errorf("error connecting to discord: %w", err)
	}
	return nil
}

func (p *PartyBus) startWebhookServer(ctx context.Context, runtimeWG *sync.WaitGroup) {
	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		httpErr := p.discordWebhookServer.Serve(ctx)
		if httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			p.logger.ErrorContext(ctx, "error serving webhook HTTP", tint.Err(httpErr))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = p.discordWebhookServer.httpServer.Close()
	}()
}

// startRuntimeConfigRefresher reloads the runtime config from the
// database whenever a refresh is triggered, such as by another
// instance updating it
func (p *PartyBus) startRuntimeConfigRefresher(ctx context.Context, runtimeWG *sync.WaitGroup) {
	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.triggerRuntimeConfigRefreshCh:
				refreshCtx, refreshCancel := context.WithTimeout(ctx, runtimeConfigReloadTimeout)
				if err := p.refreshRuntimeConfig(refreshCtx); err != nil {
					p.logger.ErrorContext(ctx, "error refreshing runtime config", tint.Err(err))
				}
				refreshCancel()
			}
		}
	}()
}

func (p *PartyBus) refreshRuntimeConfig(ctx context.Context) error {
	var refreshed RuntimeConfig
	if err := p.db.WithContext(ctx).Last(&refreshed).Error; err != nil {
		return err
	}

	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()

	previous := p.runtimeConfig
	p.runtimeConfig = &refreshed
	p.setRuntimeLevels(refreshed)
	p.paused.Store(refreshed.Paused)
	if refreshed.AdminUsername != "" && refreshed.AdminPassword != "" {
		p.pendingSetup.Store(false)
	}

	if previous != nil {
		updateDiscordBotStatus(p, p.logger, *previous, refreshed)
	}
	p.logger.InfoContext(ctx, "refreshed runtime config")
	return nil
}

// startStoreReloader replaces the store's contents from the database
// whenever a reload is triggered
func (p *PartyBus) startStoreReloader(ctx context.Context, runtimeWG *sync.WaitGroup) {
	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.triggerStoreReloadCh:
				reloadCtx, reloadCancel := context.WithTimeout(ctx, storeReloadTimeout)
				if err := p.store.Load(reloadCtx); err != nil {
					p.logger.ErrorContext(ctx, "error reloading store", tint.Err(err))
				} else {
					p.refreshSignupMessage(reloadCtx)
				}
				reloadCancel()
			}
		}
	}()
}

// setRuntimeLevels applies the log levels from state to each
// component's LevelVar
func (p *PartyBus) setRuntimeLevels(state RuntimeConfig) {
	p.config.LogLevel.Set(state.LogLevel.Level())
	p.config.Discord.LogLevel.Set(state.DiscordLogLevel.Level())
	p.config.Discord.DiscordGoLogLevel.Set(state.DiscordGoLogLevel.Level())
	p.config.API.LogLevel.Set(state.APILogLevel.Level())
	p.config.Discord.WebhookServer.LogLevel.Set(state.DiscordWebhookLogLevel.Level())
	p.config.DatabaseLogLevel.Set(state.DatabaseLogLevel.Level())
}

// shutdown waits for in-flight interactions and background workers,
// up to Config.ShutdownTimeout, then closes the discord session and
// the API server
func (p *PartyBus) shutdown(ctx context.Context, runtimeWG *sync.WaitGroup) error {
	p.logger.WarnContext(ctx, "shutting down")
	defer func() {
		select {
		case p.eventShutdown <- struct{}{}:
		default:
		}
	}()

	shutdownTimeout := p.config.ShutdownTimeout
	closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer closeCancel()

	p.logger.InfoContext(
		ctx,
		"exiting!",
		"shutdown_timeout", shutdownTimeout,
		"interactions_in_progress", p.interactionsInProgress.Load(),
	)

	if p.discord.session != nil {
		if err := p.discord.session.Close(); err != nil {
			p.logger.ErrorContext(ctx, "error closing discord session", tint.Err(err))
		}
	}

	gracefulShutdownCh := make(chan struct{}, 1)
	go func() {
		runtimeWG.Wait()
		p.deferredWG.Wait()
		gracefulShutdownCh <- struct{}{}
	}()

	announcementTicker := time.NewTicker(10 * time.Second)
	defer announcementTicker.Stop()

	for {
		select {
		case <-gracefulShutdownCh:
			p.logger.Info("graceful shutdown complete")
			if err := p.api.httpServer.Shutdown(closeCtx); err != nil {
				p.logger.Error("error shutting down api server", tint.Err(err))
			}
			return nil
		case <-announcementTicker.C:
			p.logger.Info(
				"waiting for interactions to finish",
				"interactions_in_progress", p.interactionsInProgress.Load(),
			)
		case <-closeCtx.Done():
			p.logger.Warn("interactions did not finish in time, forcing close")
			_ = p.api.httpServer.Close()
			if p.discordWebhookServer != nil {
				_ = p.discordWebhookServer.httpServer.Close()
			}
			return fmt.Errorf("interactions did not finish in time")
		}
	}
}

// Pause stops the bot from handling slash commands until Resume is
// called. It returns false if the bot was already paused.
func (p *PartyBus) Pause(ctx context.Context) bool {
	if p.paused.Swap(true) {
		return false
	}
	p.logger.WarnContext(ctx, "bot paused")

	if p.discord.session != nil && p.discord.connected.Load() {
		if err := p.discord.session.UpdateCustomStatus(pausedCustomStatus); err != nil {
			p.logger.ErrorContext(ctx, "unable to update status", tint.Err(err))
		}
	}

	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()
	if p.runtimeConfig != nil && !p.runtimeConfig.Paused {
		if _, err := p.writeDB.Update(ctx, p.runtimeConfig, columnRuntimeConfigPaused, true); err != nil {
			p.logger.ErrorContext(ctx, "unable to set paused in db", tint.Err(err))
		}
	}
	return true
}

// Resume resumes handling slash commands. It returns false if the bot
// wasn't paused.
func (p *PartyBus) Resume(ctx context.Context) bool {
	if !p.paused.Swap(false) {
		p.logger.Warn("bot not paused")
		return false
	}
	p.logger.InfoContext(ctx, "bot resumed")

	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()

	if p.discord.session != nil && p.discord.connected.Load() && p.runtimeConfig != nil {
		if err := p.discord.session.UpdateCustomStatus(p.runtimeConfig.DiscordCustomStatus); err != nil {
			p.logger.ErrorContext(ctx, "unable to update status", tint.Err(err))
		}
	}
	if p.runtimeConfig != nil && p.runtimeConfig.Paused {
		if _, err := p.writeDB.Update(ctx, p.runtimeConfig, columnRuntimeConfigPaused, false); err != nil {
			p.logger.ErrorContext(ctx, "unable to set resumed in db", tint.Err(err))
		}
	}
	return true
}

// handleInteraction logs the interaction and dispatches it by type.
// It's called once per interaction, in its own goroutine.
func (p *PartyBus) handleInteraction(ctx context.Context, handler InteractionHandler) {
	p.interactionsInProgress.Add(1)
	defer p.interactionsInProgress.Add(-1)

	i := handler.GetInteraction()
	logger := handler.Logger()

	if p.RuntimeConfig().RecoverPanic {
		defer func() {
			if rc := recover(); rc != nil {
				p.handleRecover(ctx, rc)
				_ = handler.Respond(ctx, ephemeralResponse(p.RuntimeConfig().DiscordErrorMessage))
			}
		}()
	}

	discordUser := getDiscordUser(i)
	if discordUser == nil {
		logger.ErrorContext(ctx, "no user found in interaction", "interaction", structToSlogValue(i))
		return
	}

	ctx = WithLogger(ctx, logger)
	logger.InfoContext(ctx, "received new interaction", "user_id", discordUser.ID)

	wg := &sync.WaitGroup{}
	defer wg.Wait()

	if interactionLog, err := newInteractionLog(i, discordUser, handler); err != nil {
		logger.ErrorContext(ctx, "error marshaling interaction", tint.Err(err))
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, createErr := p.writeDB.Create(ctx, interactionLog); createErr != nil {
				logger.ErrorContext(ctx, "error logging interaction", tint.Err(createErr))
			}
		}()
	}

	if discordUser.Bot {
		logger.WarnContext(ctx, "user is bot, ignoring")
		return
	}

	switch i.Type {
	case discordgo.InteractionPing:
		_ = handler.Respond(ctx, &discordgo.InteractionResponse{Type: discordgo.InteractionResponsePong})
	case discordgo.InteractionApplicationCommand:
		if p.paused.Load() {
			_ = handler.Respond(ctx, ephemeralResponse(pausedMessage))
			return
		}
		p.handleCommand(ctx, handler, discordUser)
	case discordgo.InteractionMessageComponent:
		p.handleComponent(ctx, handler, discordUser)
	case discordgo.InteractionModalSubmit:
		p.handleModalSubmit(ctx, handler, discordUser)
	default:
		logger.WarnContext(ctx, "unhandled interaction type", "type", i.Type.String())
	}
}

// handleRecover logs a panic recovered while handling an interaction,
// with its stack trace
func (*PartyBus) handleRecover(ctx context.Context, rc any) {
	logger, ok := ContextLogger(ctx)
	if logger == nil || !ok {
		logger = slog.Default()
	}
	stackTrace := string(debug.Stack())
	switch v := rc.(type) {
	case error:
		logger.ErrorContext(ctx, "recovered from panic", tint.Err(v), "stack_trace", stackTrace)
	case string:
		logger.ErrorContext(ctx, "recovered from panic", tint.Err(errors.New(v)), "stack_trace", stackTrace)
	default:
		logger.ErrorContext(ctx, "recovered from panic", "panic_arg", rc, "stack_trace", stackTrace)
	}
}
