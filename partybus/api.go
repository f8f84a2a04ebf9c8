package partybus

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
	ginPprof "github.com/gin-contrib/pprof"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	pprofPrefix             = "/debug"
	apiPrefix               = "/api"
	apiPathPause            = "/pause"
	apiPathResume           = "/resume"
	apiPathQuit             = "/quit"
	apiPathLogin            = "/login"
	apiPathLogout           = "/logout"
	apiPathPositions        = "/positions"
	apiPathPosition         = "/positions/:id"
	apiPathUsers            = "/users"
	apiPathUser             = "/users/:id"
	apiPathTrainings        = "/trainings"
	apiPathJobs             = "/jobs"
	apiPathSignupRepost     = "/signup/repost"
	apiPathReload           = "/reload"
	apiPathRegisterCommands = "/discord/register_commands"
	apiPathLoggedIn         = "/logged_in"
	apiHealthCheck          = "/healthz"
	apiDiscordInteractions  = "/discord/interactions"
	apiPathConfig           = "/config"
	apiPathSetup            = "/setup"
	apiPathSetupStatus      = "/setup/status"
)

const (
	xRequestIDHeader = "X-Request-ID"
	sessionVarName   = "user"
	sessionVarField  = "username"
)

var (
	structValidator = validator.New()
)

// API is the admin HTTP server. It exposes the store read-only, and
// lets an admin repost the signup message, reload state and change
// the runtime config.
type API struct {
	config              *APIConfig
	httpServer          *http.Server
	listener            net.Listener
	engine              *gin.Engine
	store               CookieStore
	loginRequestLimiter *rate.Limiter
	requestMetrics      map[string]int
	requestMetricsMu    sync.Mutex
	logger              *slog.Logger

	handlers *APIHandlers
}

// newAPI sets up the gin engine, session store and routes
func newAPI(p *PartyBus, config *APIConfig) (*API, error) {
	setupLogger := slog.New(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     config.LogLevel,
				AddSource: true,
			},
		),
	)

	r := gin.New()

	api := &API{
		config:              config,
		engine:              r,
		requestMetrics:      map[string]int{},
		loginRequestLimiter: rate.NewLimiter(rate.Limit(1), 1),
	}
	apiHandlers := NewAPIHandlers(p)
	api.handlers = apiHandlers
	api.store = apiHandlers.store
	_ = r.Use(sessions.Sessions(sessionVarName, apiHandlers.store))

	httpServer := &http.Server{
		Addr:              config.Listen,
		Handler:           r,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	if config.SSL.Cert != "" {
		tlsCfg, e := tlsConfig(config.SSL)
		if e != nil {
			return nil, fmt.Errorf("error loading SSL certs: %w", e)
		}
		httpServer.TLSConfig = tlsCfg
	}
	api.httpServer = httpServer
	api.logger = setupLogger.With(loggerNameKey, "api")

	corsConfig := config.CORS.GINConfig()
	if len(corsConfig.AllowOrigins) == 0 && api.config.Development {
		corsConfig.AllowOrigins = []string{"*"}
		corsConfig.AllowCredentials = false
	}

	if !config.Development {
		r.Use(gin.Recovery())
	}
	r.Use(
		requestIDMiddleware(),
		ginLoggingMiddleware(),
		metricMiddleware(api),
	)
	if len(corsConfig.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}

	r.POST(apiPathLogin, apiHandlers.loginHandler)
	r.GET(apiHealthCheck, apiHandlers.healthCheck)
	r.POST(apiPathLogout, apiHandlers.logoutHandler)

	if config.Development {
		ginPprof.Register(r, pprofPrefix)
		runtime.SetMutexProfileFraction(1)
		runtime.SetBlockProfileRate(1)
	}

	r.POST(apiPathSetup, apiHandlers.adminSetup)
	r.GET(apiPathSetupStatus, apiHandlers.setupStatus)

	protected := r.Group(apiPrefix)
	protected.Use(authMiddleware(p))

	protected.GET(apiPathLoggedIn, apiHandlers.loggedIn)
	protected.GET(apiPathConfig, apiHandlers.getConfig)
	protected.PATCH(apiPathConfig, apiHandlers.updateRuntimeConfig)
	protected.POST(apiPathQuit, apiHandlers.botQuit)
	protected.POST(apiPathPause, apiHandlers.botPause)
	protected.POST(apiPathResume, apiHandlers.botResume)
	protected.POST(apiPathRegisterCommands, apiHandlers.discordRegisterCommands)

	data := protected.Group("")
	data.Use(storeReadyMiddleware(p))
	data.GET(apiPathPositions, apiHandlers.getPositions)
	data.GET(apiPathPosition, apiHandlers.getPosition)
	data.GET(apiPathUsers, apiHandlers.getUsers)
	data.GET(apiPathUser, apiHandlers.getUser)
	data.GET(apiPathTrainings, apiHandlers.getTrainings)
	data.GET(apiPathJobs, apiHandlers.getJobs)
	data.POST(apiPathSignupRepost, apiHandlers.signupRepost)
	data.POST(apiPathReload, apiHandlers.reload)

	return api, nil
}

// Serve listens on the configured address, with TLS if a cert was
// configured
func (a *API) Serve(ctx context.Context) error {
	if a.listener != nil {
		return a.httpServer.Serve(a.listener)
	}
	listenCfg := &net.ListenConfig{}
	ln, e := listenCfg.Listen(ctx, a.config.ListenNetwork, a.config.Listen)
	if e != nil {
		return fmt.Errorf("error listening on %s: %w", a.config.Listen, e)
	}
	if a.httpServer.TLSConfig != nil {
		ln = tls.NewListener(ln, a.httpServer.TLSConfig)
	} else {
		a.logger.Warn("starting api server without TLS")
	}
	a.listener = ln
	return a.httpServer.Serve(a.listener)
}

func (a *API) close() {
	if err := a.httpServer.Close(); err != nil {
		a.logger.Error("error closing api server", tint.Err(err))
	}
}

func (a *API) getSessionUsername(c *gin.Context) (string, error) {
	session, err := a.store.Get(c.Request, sessionVarName)
	if err != nil {
		return "", err
	}
	username, ok := session.Values[sessionVarField]
	if !ok {
		return "", errors.New("username not found in session")
	}
	s, ok := username.(string)
	if !ok || s == "" {
		return "", errors.New("username not set")
	}
	return s, nil
}

type CookieStore interface {
	sessions.Store
}

func NewCookieStore(keyPairs ...[]byte) CookieStore {
	return &cookieStore{gsessions.NewCookieStore(keyPairs...)}
}

type cookieStore struct {
	*gsessions.CookieStore
}

func (c *cookieStore) Options(options sessions.Options) {
	c.CookieStore.Options = options.ToGorillaOptions()
}

// APIHandlers contains the handlers for the API endpoints
type APIHandlers struct {
	p      *PartyBus
	logger *slog.Logger
	store  CookieStore
}

// NewAPIHandlers sets up the session store. If no API secret is
// configured, a random one is generated, so sessions won't survive
// a restart.
func NewAPIHandlers(p *PartyBus) *APIHandlers {
	logger := p.logger.With(loggerNameKey, "api")

	var secretKey []byte
	switch sk := p.config.API.Secret; {
	case sk == "":
		logger.Warn(
			"api secret not set, generating random secret " +
				"(sessions will not persist across restarts)",
		)
		secretKey = securecookie.GenerateRandomKey(64)
	default:
		secretKey = derive64ByteKey(sk)
	}

	store := NewCookieStore(secretKey)
	store.Options(sessionOptions(p.config.API))
	return &APIHandlers{p: p, logger: logger, store: store}
}

func sessionOptions(config *APIConfig) sessions.Options {
	sameSite := http.SameSiteStrictMode
	if config.Development {
		sameSite = http.SameSiteNoneMode
	}
	return sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		MaxAge:   int(config.SessionMaxAge.Seconds()),
		SameSite: sameSite,
	}
}

// setupStatus reports whether admin credentials still need to be set
func (h *APIHandlers) setupStatus(c *gin.Context) {
	c.JSON(http.StatusOK, setupResponse{Required: h.p.pendingSetup.Load()})
}

// adminSetup sets the admin credentials. It's only allowed while
// setup is pending.
//
// Responses:
//   - 201 Created: credentials were set
//   - 400 Bad Request: invalid payload
//   - 403 Forbidden: setup isn't pending
func (h *APIHandlers) adminSetup(c *gin.Context) {
	p := h.p
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()

	if !p.pendingSetup.Load() || p.runtimeConfig == nil {
		c.JSON(http.StatusForbidden, httpError{Error: "Forbidden"})
		return
	}

	logger := ginContextLogger(c)
	logger.Info("first time admin setup")
	var adminSetup adminSetupPayload

	if e := c.ShouldBindJSON(&adminSetup); e != nil {
		logger.Error("bad payload", tint.Err(e))
		c.JSON(http.StatusBadRequest, httpError{Error: e.Error()})
		return
	}

	password, err := HashPassword(adminSetup.Password)
	if err != nil {
		logger.Error("error hashing password", tint.Err(err))
		ginReplyError(c, "error setting admin credentials")
		return
	}

	if _, err = p.writeDB.Updates(
		c, p.runtimeConfig, map[string]any{
			columnRuntimeConfigAdminUsername: adminSetup.Username,
			columnRuntimeConfigAdminPassword: password,
		},
	); err != nil {
		logger.Error("error updating admin credentials", tint.Err(err))
		ginReplyError(c, "error updating admin credentials")
		return
	}
	p.runtimeConfig.AdminUsername = adminSetup.Username
	p.runtimeConfig.AdminPassword = password
	p.pendingSetup.Store(false)
	c.JSON(http.StatusCreated, httpReply{Message: "admin credentials set"})
}

// loginHandler checks the credentials against the stored admin
// credentials, and starts a session. Attempts are rate limited.
//
// Responses:
//   - 200 OK: logged in
//   - 400 Bad Request: invalid payload
//   - 401 Unauthorized: wrong or unset credentials
//   - 429 Too Many Requests: rate limited
func (h *APIHandlers) loginHandler(c *gin.Context) {
	logger := ginContextLogger(c)
	if !h.p.api.loginRequestLimiter.Allow() {
		logger.Warn("login rate limited")
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}

	var login userLogin
	if err := c.ShouldBindJSON(&login); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	runtimeConfig := h.p.RuntimeConfig()
	if runtimeConfig.AdminUsername == "" || runtimeConfig.AdminPassword == "" {
		logger.Warn("admin username and password not set")
		c.JSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
		return
	}
	if login.Username != runtimeConfig.AdminUsername {
		logger.Warn("admin username incorrect")
		c.JSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
		return
	}
	valid, err := VerifyPassword(runtimeConfig.AdminPassword, login.Password)
	if err != nil {
		logger.Error("error verifying password", tint.Err(err))
		ginReplyError(c, "internal server error")
		return
	}
	if !valid {
		logger.Warn("invalid login attempt", "username", login.Username)
		c.JSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
		return
	}

	session, err := h.store.New(c.Request, sessionVarName)
	if err != nil && session == nil {
		logger.Error("error creating session", tint.Err(err))
		ginReplyError(c, "internal server error")
		return
	}
	opts := sessionOptions(h.p.api.config)
	session.Options = opts.ToGorillaOptions()
	session.Values[sessionVarField] = login.Username
	if err = session.Save(c.Request, c.Writer); err != nil {
		logger.Error("error saving session", tint.Err(err))
		ginReplyError(c, "internal server error")
		return
	}
	logger.Info("saved user session", "username", login.Username)
	c.JSON(http.StatusOK, loggedInResponse{Username: login.Username})
}

func (h *APIHandlers) healthCheck(c *gin.Context) {
	c.JSON(
		http.StatusOK, healthCheckResponse{
			Paused:                  h.p.paused.Load(),
			DiscordGatewayConnected: h.p.discord.connected.Load(),
			ActiveWizards:           h.p.wizards.len(),
			InteractionsInProgress:  h.p.interactionsInProgress.Load(),
		},
	)
}

func (h *APIHandlers) logoutHandler(c *gin.Context) {
	logger := ginContextLogger(c)
	session, err := h.store.Get(c.Request, sessionVarName)
	if err != nil {
		logger.Error("error getting session", tint.Err(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	session.Values[sessionVarField] = ""
	if err = session.Save(c.Request, c.Writer); err != nil {
		logger.Error("error saving cookie", tint.Err(err))
	}
	ginReplyMessage(c, "logged out")
}

func (h *APIHandlers) loggedIn(c *gin.Context) {
	username, err := h.p.api.getSessionUsername(c)
	if err != nil {
		ginContextLogger(c).Warn("error getting session username", tint.Err(err))
		c.JSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, loggedInResponse{Username: username})
}

// discordRegisterCommands overwrites the bot's slash commands
//
// Responses:
//   - 201 Created: the registered commands
//   - 500 Internal Server Error: discord returned an error
func (h *APIHandlers) discordRegisterCommands(c *gin.Context) {
	log := ginContextLogger(c)
	log.Info("registering commands")

	createdCommands, err := h.p.RegisterSlashCommands(discordgo.WithContext(c))
	if err != nil {
		log.Error("error registering commands", tint.Err(err))
		ginReplyError(c, "error registering commands")
		return
	}
	c.JSON(http.StatusCreated, createdCommands)
}

func (h *APIHandlers) botPause(c *gin.Context) {
	if h.p.Pause(c) {
		ginReplyMessage(c, "bot paused")
		return
	}
	c.AbortWithStatusJSON(http.StatusConflict, httpError{Error: "bot already paused"})
}

func (h *APIHandlers) botResume(c *gin.Context) {
	if h.p.Resume(c) {
		ginReplyMessage(c, "bot resumed")
		return
	}
	c.AbortWithStatusJSON(http.StatusConflict, httpError{Error: "bot not paused"})
}

func (h *APIHandlers) getPositions(c *gin.Context) {
	c.JSON(
		http.StatusOK, positionsResponse{
			Positions:          h.p.store.Positions(),
			GlobalRequirements: h.p.store.GlobalRequirements(),
		},
	)
}

func (h *APIHandlers) getPosition(c *gin.Context) {
	pos, ok := h.p.store.Position(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, httpError{Error: "position not found"})
		return
	}
	c.JSON(
		http.StatusOK, positionDetail{
			Position:         pos,
			Requirements:     h.p.store.RequirementsFor(pos.ID),
			QualifiedTrainer: h.p.store.QualifiedTrainers(pos.ID),
			Trainings: h.p.store.Trainings(
				func(t Training) bool { return t.PositionID == pos.ID },
			),
		},
	)
}

func (h *APIHandlers) getUsers(c *gin.Context) {
	var query Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, paginate(h.p.store.TUsers(), query))
}

// getUser returns the user with the trainings they're a trainee or
// trainer in
func (h *APIHandlers) getUser(c *gin.Context) {
	id := c.Param("id")
	u, ok := h.p.store.TUser(id)
	if !ok {
		c.JSON(http.StatusNotFound, httpError{Error: "user not found"})
		return
	}
	c.JSON(
		http.StatusOK, userDetail{
			TUser:    u,
			Trainee:  h.p.store.TrainingsFor(id),
			Trainer:  h.p.store.Trainings(func(t Training) bool { return t.Trainer() == id }),
			JobPosts: jobsFilter(h.p.store.Jobs(), func(j Job) bool { return j.RequesterID == id }),
		},
	)
}

func (h *APIHandlers) getTrainings(c *gin.Context) {
	var query GetTrainingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}
	trainings := h.p.store.Trainings(
		func(t Training) bool {
			switch {
			case query.Unmatched && t.Matched():
				return false
			case query.PositionID != "" && t.PositionID != query.PositionID:
				return false
			case query.TraineeID != "" && t.TraineeID != query.TraineeID:
				return false
			case query.TrainerID != "" && t.Trainer() != query.TrainerID:
				return false
			}
			return true
		},
	)
	c.JSON(http.StatusOK, paginate(trainings, query.Pagination))
}

func (h *APIHandlers) getJobs(c *gin.Context) {
	var query GetJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}
	jobs := h.p.store.Jobs()
	if query.Open {
		jobs = jobsFilter(jobs, func(j Job) bool { return !j.Taken() })
	}
	c.JSON(http.StatusOK, paginate(jobs, query.Pagination))
}

// signupRepost deletes and reposts the signup message in its
// current channel
//
// Responses:
//   - 200 OK: the new message location
//   - 409 Conflict: no signup channel has been set
//   - 500 Internal Server Error: discord returned an error
func (h *APIHandlers) signupRepost(c *gin.Context) {
	logger := ginContextLogger(c)
	ctx := WithLogger(c, logger)
	if err := h.p.postSignupMessage(ctx, ""); err != nil {
		if errors.Is(err, ErrChannelNotSet) {
			c.JSON(http.StatusConflict, httpError{Error: "signup channel not set"})
			return
		}
		logger.Error("error reposting signup message", tint.Err(err))
		ginReplyError(c, "error reposting signup message")
		return
	}
	c.JSON(http.StatusOK, h.p.store.SignupLocation())
}

// reload replaces the store's contents from the database, and
// notifies other instances to do the same
func (h *APIHandlers) reload(c *gin.Context) {
	log := ginContextLogger(c)
	log.Info("reloading store")
	ctx, cancel := context.WithTimeout(c, storeReloadTimeout)
	defer cancel()

	if err := h.p.store.Load(ctx); err != nil {
		log.Error("error reloading store", tint.Err(err))
		ginReplyError(c, "error reloading store")
		return
	}
	h.p.refreshSignupMessage(ctx)

	if h.p.dbNotifier != nil && h.p.dbNotifier.StoreChannelName() != "" {
		if !h.p.dbNotifier.ReloadStore(ctx) {
			log.Error("error sending store reload notification")
		}
	}
	ginReplyMessage(c, "reloaded")
}

func (h *APIHandlers) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.p.RuntimeConfig())
}

// updateRuntimeConfig applies a partial update to the runtime config.
// The update is validated before it's persisted, and the updated
// config is validated again inside the transaction.
//
// Responses:
//   - 202 Accepted: the updated config
//   - 400 Bad Request: invalid payload
//   - 500 Internal Server Error: the update failed
func (h *APIHandlers) updateRuntimeConfig(c *gin.Context) {
	p := h.p
	logger := ginContextLogger(c)

	var updateRequest RuntimeConfigUpdate
	if err := c.ShouldBindJSON(&updateRequest); err != nil {
		logger.Error("bad payload", tint.Err(err))
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}
	if err := updateRequest.validate(); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}
	updates := updateRequest.updates()
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, httpError{Error: "no updates"})
		return
	}

	p.cfgMu.Lock()
	if p.runtimeConfig == nil {
		p.cfgMu.Unlock()
		c.JSON(http.StatusServiceUnavailable, httpError{Error: "not ready"})
		return
	}
	existingConfig := p.runtimeConfig
	rollbackConfig := *existingConfig
	logger.InfoContext(c, "applying updates", "updates", updates)

	statusCode := http.StatusInternalServerError
	updateError := p.writeDB.Transaction(
		c,
		func(tx *gorm.DB) error {
			if err := tx.Model(existingConfig).Updates(updates).Error; err != nil {
				return err
			}
			if err := structValidator.Struct(existingConfig); err != nil {
				statusCode = http.StatusBadRequest
				return err
			}
			return nil
		},
	)
	if updateError != nil {
		*existingConfig = rollbackConfig
		p.cfgMu.Unlock()
		logger.ErrorContext(c, "error updating config", tint.Err(updateError))
		c.JSON(statusCode, httpError{Error: "error updating config"})
		return
	}

	p.setRuntimeLevels(*existingConfig)
	wasPaused := p.paused.Swap(existingConfig.Paused)
	switch {
	case wasPaused && !existingConfig.Paused:
		logger.Info("unpaused bot")
	case existingConfig.Paused && !wasPaused:
		logger.Warn("paused bot")
	}
	updated := *existingConfig
	p.cfgMu.Unlock()

	updateDiscordBotStatus(p, logger, rollbackConfig, updated)

	c.JSON(http.StatusAccepted, updated)

	if p.dbNotifier != nil && p.dbNotifier.RuntimeConfigChannelName() != "" {
		if !p.dbNotifier.ReloadRuntimeConfig(c) {
			logger.Error("error sending config update notification")
		}
	}
}

// botQuit signals every instance to stop
func (h *APIHandlers) botQuit(c *gin.Context) {
	log := ginContextLogger(c)
	log.Warn("sending stop signal")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	doneCh := make(chan struct{}, 1)
	go func() {
		h.p.dbNotifier.Stop(ctx)
		doneCh <- struct{}{}
		close(doneCh)
	}()
	select {
	case <-doneCh:
		ginReplyMessage(c, "quitting")
	case <-ctx.Done():
		log.Warn("timeout sending stop signal")
		c.JSON(http.StatusGatewayTimeout, httpError{Error: "timeout sending stop signal"})
	}
}

// Pagination limits list responses. Records are returned in the
// store's sort order, reversed when Order is desc.
type Pagination struct {
	Limit  int  `form:"limit" binding:"omitempty,min=1,max=100"`
	Order  Sort `form:"order" binding:"omitempty,oneof=asc desc"`
	Offset int  `form:"offset" binding:"omitempty,min=0"`
}

type Sort string

var (
	Ascending  Sort = "asc"
	Descending Sort = "desc"
)

type GetTrainingsQuery struct {
	Pagination
	Unmatched  bool   `form:"unmatched"`
	PositionID string `form:"position_id"`
	TraineeID  string `form:"trainee_id" binding:"omitempty,numeric"`
	TrainerID  string `form:"trainer_id" binding:"omitempty,numeric"`
}

type GetJobsQuery struct {
	Pagination
	Open bool `form:"open"`
}

func paginate[T any](items []T, page Pagination) []T {
	if page.Order == Descending {
		reversed := make([]T, len(items))
		for i, v := range items {
			reversed[len(items)-1-i] = v
		}
		items = reversed
	}
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[page.Offset:]
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

func jobsFilter(jobs []Job, keep func(Job) bool) []Job {
	rv := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if keep(j) {
			rv = append(rv, j)
		}
	}
	return rv
}

type positionsResponse struct {
	Positions          []Position    `json:"positions"`
	GlobalRequirements []Requirement `json:"global_requirements"`
}

type positionDetail struct {
	Position
	Requirements     []Requirement `json:"requirements"`
	QualifiedTrainer []TUser       `json:"qualified_trainers"`
	Trainings        []Training    `json:"trainings"`
}

type userDetail struct {
	TUser
	Trainee  []Training `json:"trainee_trainings"`
	Trainer  []Training `json:"trainer_trainings"`
	JobPosts []Job      `json:"job_posts"`
}

type loggedInResponse struct {
	Username string `json:"username"`
}

type healthCheckResponse struct {
	Paused                  bool  `json:"paused"`
	DiscordGatewayConnected bool  `json:"discord_gateway_connected"`
	ActiveWizards           int   `json:"active_wizards"`
	InteractionsInProgress  int64 `json:"interactions_in_progress"`
}

type httpReply struct {
	Message string `json:"message"`
}

// httpError is an error message returned to the client
type httpError struct {
	Error string `json:"error"`
}

type userLogin struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminSetupPayload struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required,min=8,eqfield=ConfirmPassword"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// setupResponse is the response for the setup status endpoint.
// Required is true until admin credentials have been set.
type setupResponse struct {
	Required bool `json:"required"`
}

// authMiddleware aborts with 401 unless the session has a username.
// Every request is rejected while setup is pending.
func authMiddleware(p *PartyBus) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := ginContextLogger(c)
		if p.pendingSetup.Load() {
			logger.Warn("admin username and password not set")
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
			return
		}

		username, err := p.api.getSessionUsername(c)
		if err != nil {
			logger.Warn("unauthorized request", tint.Err(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpError{Error: "unauthorized"})
			return
		}

		logger.Debug("got session", sessionVarField, username)
		c.Next()
	}
}

// storeReadyMiddleware aborts with 503 until the store has been loaded
func storeReadyMiddleware(p *PartyBus) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p.store == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, httpError{Error: "not ready"})
			return
		}
		c.Next()
	}
}

// requestIDMiddleware sets a random X-Request-ID on the context and
// the response
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := generateRandomHexString(32)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(xRequestIDHeader, id)
		c.Header(xRequestIDHeader, id)
		c.Next()
	}
}

// ginContextLogger returns the slog.Logger from the given gin context,
// or, if it doesn't exist, creates a logger with request details included,
// and sets the logger in the context so the next call to ginContextLogger
// will return the new logger.
func ginContextLogger(c *gin.Context) *slog.Logger {
	if logger, ok := c.Get(string(loggerContextKey)); ok {
		if requestLogger, ok := logger.(*slog.Logger); ok {
			return requestLogger
		}
	}
	requestID, _ := c.Get(xRequestIDHeader)
	path := c.Request.URL.Path
	if raw := c.Request.URL.RawQuery; raw != "" {
		path = path + "?" + raw
	}

	requestLogger := slog.Default().With(
		slog.Group(
			"request",
			"method", c.Request.Method,
			"path", path,
			"remote_addr", c.Request.RemoteAddr,
			"remote_ip", c.RemoteIP(),
			"user_agent", c.Request.UserAgent(),
			"referer", c.Request.Referer(),
		),
		slog.Any(xRequestIDHeader, requestID),
	)
	c.Set(string(loggerContextKey), requestLogger)
	return requestLogger
}

// ginLoggingMiddleware logs each request when it finishes, with its
// duration and any errors added to the context
func ginLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestLogger := ginContextLogger(c)
		c.Next()
		latency := time.Since(start)

		response := slog.Group(
			"response",
			"status_code", c.Writer.Status(),
			"body_size", c.Writer.Size(),
		)

		var errs []error
		for _, e := range c.Errors.ByType(gin.ErrorTypePrivate) {
			errs = append(errs, *e)
		}
		if len(errs) > 0 {
			requestLogger.Error(
				fmt.Sprintf("%s %s finished with errors", c.Request.Method, c.Request.URL),
				"duration", latency,
				"errors", errs,
				response,
			)
			return
		}
		requestLogger.Info(
			fmt.Sprintf("%s %s finished", c.Request.Method, c.Request.URL),
			"duration", latency,
			response,
		)
	}
}

// metricMiddleware counts requests per method and path
func metricMiddleware(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Next()

		a.requestMetricsMu.Lock()
		defer a.requestMetricsMu.Unlock()

		a.requestMetrics[fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path)]++
	}
}

// ginReplyMessage sends a JSON response with a message,
// with HTTP status code 200
func ginReplyMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, httpReply{Message: message})
}

// ginReplyError aborts with a JSON error and HTTP status code 500
func ginReplyError(c *gin.Context, err string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, httpError{Error: err})
}

//nolint:gochecknoinits // gotta register the validators
func init() {
	structValidator.SetTagName("binding")
	structValidator.RegisterCustomTypeFunc(validateWorkflowConfig, WorkflowConfig{})
	structValidator.RegisterCustomTypeFunc(
		validateRuntimeUpdateLimits,
		RuntimeConfigUpdate{},
	)
}

// updateDiscordBotStatus opens, closes or updates the gateway
// connection to match a runtime config change
func updateDiscordBotStatus(
	p *PartyBus,
	logger *slog.Logger,
	previous RuntimeConfig,
	current RuntimeConfig,
) {
	session := p.discord.session
	if session == nil {
		return
	}
	switch {
	case previous.DiscordGatewayEnabled && !current.DiscordGatewayEnabled:
		if err := session.Close(); err != nil {
			logger.Error("error closing discord connection", tint.Err(err))
		}
	case previous.DiscordGatewayEnabled && current.DiscordGatewayEnabled:
		if !p.discord.connected.Load() {
			return
		}
		switch {
		case current.Paused && !previous.Paused:
			if err := session.UpdateCustomStatus(pausedCustomStatus); err != nil {
				logger.Error("error updating discord status", tint.Err(err))
			}
		case !current.Paused && previous.Paused,
			current.DiscordCustomStatus != previous.DiscordCustomStatus:
			if err := session.UpdateCustomStatus(current.DiscordCustomStatus); err != nil {
				logger.Error("error updating discord status", tint.Err(err))
			}
		}
	case current.DiscordGatewayEnabled:
		session.SetIdentify(
			discordgo.Identify{
				Intents:  p.config.Discord.GatewayIntents,
				Presence: getDiscordPresenceStatusUpdate(current),
			},
		)
		// the connect handler reads the runtime config, which the
		// caller may have locked
		go func() {
			if err := session.Open(); err != nil {
				logger.Error("error opening discord connection", tint.Err(err))
			}
		}()
	}
}
