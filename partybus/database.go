package partybus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	dbTypeSQLite                              = "sqlite"
	dbTypePostgres                            = "postgres"
	postgresNotifyChannelRuntimeConfigUpdated = "partybus_reload_runtime_config"
	postgresNotifyChannelReloadStore          = "partybus_reload_store"
	postgresNotifyChannelStop                 = "partybus_stop"
)

var (
	sqliteMaxOpenConns    = 1
	sqliteMaxIdleConns    = 1
	sqliteMaxConnLifetime = 5 * time.Minute
	sqliteExecPragma      = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
		"pragma foreign_keys = ON;",
		"pragma mmap_size = 8000000000;",
	}
	dbOperationTimeout    = 30 * time.Second
	dbNotifierSendTimeout = 15 * time.Second
)

// ModelUnixTime is an embeddable model with millisecond Unix timestamps
// for creation and update.
type ModelUnixTime struct {
	CreatedAt int64 `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64 `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
}

type ModelStringID struct {
	ID string `gorm:"primaryKey" json:"id"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// allModels is the full set of tables managed by AutoMigrate
func allModels() []any {
	return []any{
		&Position{},
		&Requirement{},
		&TUser{},
		&TUserConfig{},
		&Availability{},
		&Qualification{},
		&Training{},
		&RequirementOverride{},
		&SignupMessageRecord{},
		&Job{},
		&RuntimeConfig{},
		&InteractionLog{},
	}
}

// database wraps a gorm connection, serializing writes unless
// concurrent writes are enabled (as they are for postgres).
// It implements DBI.
type database struct {
	db                     *gorm.DB
	mu                     sync.Mutex
	logger                 *slog.Logger
	enableConcurrentWrites bool
}

// NewDatabase returns a DBI backed by the given gorm connection.
// If log is nil, slog.Default is used.
func NewDatabase(
	db *gorm.DB,
	log *slog.Logger,
	enableConcurrentWrites bool,
) DBI {
	if log == nil {
		log = slog.Default()
	}
	return &database{
		db:                     db,
		logger:                 log.With(loggerNameKey, "writedb"),
		enableConcurrentWrites: enableConcurrentWrites,
	}
}

func (d *database) DB() *gorm.DB {
	return d.db
}

// lock acquires the write lock and applies dbOperationTimeout if ctx
// has no deadline. The returned func releases both.
func (d *database) lock(ctx context.Context) (context.Context, func()) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
	}
	cancel := func() {}
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
	}
	return ctx, func() {
		cancel()
		if !d.enableConcurrentWrites {
			d.mu.Unlock()
		}
	}
}

func (d *database) Create(ctx context.Context, value any, omit ...string) (
	rowsAffected int64,
	err error,
) {
	ctx, unlock := d.lock(ctx)
	defer unlock()

	db := d.db.WithContext(ctx)
	if len(omit) > 0 {
		db = db.Omit(omit...)
	}
	rv := db.Create(value)
	return rv.RowsAffected, rv.Error
}

// Upsert inserts value, or updates updateColumns when a row with the
// same conflictColumns already exists.
func (d *database) Upsert(
	ctx context.Context,
	value any,
	conflictColumns []string,
	updateColumns []string,
) (rowsAffected int64, err error) {
	ctx, unlock := d.lock(ctx)
	defer unlock()

	cols := make([]clause.Column, 0, len(conflictColumns))
	for _, c := range conflictColumns {
		cols = append(cols, clause.Column{Name: c})
	}
	rv := d.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   cols,
			DoUpdates: clause.AssignmentColumns(updateColumns),
		},
	).Create(value)
	return rv.RowsAffected, rv.Error
}

func (d *database) Updates(ctx context.Context, model, values any) (
	rowsAffected int64,
	err error,
) {
	ctx, unlock := d.lock(ctx)
	defer unlock()

	rv := d.db.WithContext(ctx).Model(model).Updates(values)
	return rv.RowsAffected, rv.Error
}

func (d *database) Transaction(
	ctx context.Context,
	fc func(tx *gorm.DB) error,
	opts ...*sql.TxOptions,
) error {
	ctx, unlock := d.lock(ctx)
	defer unlock()

	return d.db.WithContext(ctx).Transaction(fc, opts...)
}

func (d *database) Save(ctx context.Context, value any, omit ...string) (
	rowsAffected int64,
	err error,
) {
	ctx, unlock := d.lock(ctx)
	defer unlock()

	db := d.db.WithContext(ctx)
	if len(omit) > 0 {
		db = db.Omit(omit...)
	}
	rv := db.Save(value)
	return rv.RowsAffected, rv.Error
}

func (d *database) Update(
	ctx context.Context,
	model any,
	column string,
	value any,
) (rowsAffected int64, err error) {
	ctx, unlock := d.lock(ctx)
	defer unlock()

	rv := d.db.WithContext(ctx).Model(model).Update(column, value)
	return rv.RowsAffected, rv.Error
}

// UpdatesWhere applies values to rows of model matching query. Callers
// use the returned rowsAffected for optimistic checks.
func (d *database) UpdatesWhere(
	ctx context.Context,
	model any,
	values map[string]any,
	query any,
	conds ...any,
) (rowsAffected int64, err error) {
	ctx, unlock := d.lock(ctx)
	defer unlock()

	rv := d.db.WithContext(ctx).Model(model).Where(query, conds...).Updates(values)
	return rv.RowsAffected, rv.Error
}

func (d *database) Delete(
	ctx context.Context,
	value any,
	conds ...any,
) (rowsAffected int64, err error) {
	ctx, unlock := d.lock(ctx)
	defer unlock()

	rv := d.db.WithContext(ctx).Delete(value, conds...)
	return rv.RowsAffected, rv.Error
}

// DBI defines the interface for database write operations, so they
// can be mocked in tests. [database] implements it for 'real' DB
// operations.
type DBI interface {
	DB() *gorm.DB
	Create(ctx context.Context, value any, omit ...string) (rowsAffected int64, err error)
	Upsert(
		ctx context.Context,
		value any,
		conflictColumns []string,
		updateColumns []string,
	) (rowsAffected int64, err error)
	Updates(ctx context.Context, model any, values any) (rowsAffected int64, err error)
	Delete(ctx context.Context, value any, conds ...any) (rowsAffected int64, err error)
	Transaction(
		ctx context.Context,
		fc func(tx *gorm.DB) error,
		opts ...*sql.TxOptions,
	) error
	Save(ctx context.Context, value any, omit ...string) (rowsAffected int64, err error)
	Update(ctx context.Context, model any, column string, value any) (
		rowsAffected int64,
		err error,
	)
	UpdatesWhere(
		ctx context.Context,
		model any,
		values map[string]any,
		query any,
		conds ...any,
	) (rowsAffected int64, err error)
}

// CreateDB opens the database and migrates every table.
//
// databaseType must be 'sqlite' or 'postgres'. database is the
// connection string, or the SQLite file path.
func CreateDB(ctx context.Context, databaseType string, database string) (*gorm.DB, error) {
	handler := tint.NewHandler(
		os.Stdout,
		&tint.Options{
			Level:     slog.LevelWarn,
			AddSource: true,
		},
	)

	gormLogger := newGORMLogger(handler, 500*time.Millisecond)
	dbLogger := slog.New(handler)

	dbLogger.InfoContext(
		ctx,
		"Initializing database",
		"database_type", databaseType,
		"database", database,
	)
	db, err := getDB(databaseType, database, gormLogger)
	if err != nil {
		return db, err
	}

	if err = migrate(ctx, db); err != nil {
		return db, err
	}
	return db, nil
}

// migrate runs AutoMigrate for allModels inside a transaction
func migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(
		func(tx *gorm.DB) error {
			return tx.Migrator().AutoMigrate(allModels()...)
		},
	)
}

// getDB opens a gorm connection for the given database type.
//
// databaseType must be 'sqlite' or 'postgres'. For sqlite, the parent
// directory of the database file is created if needed.
func getDB(
	databaseType string,
	database string,
	gormLogger *gormStructuredLogger,
) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
	switch databaseType {
	case dbTypeSQLite:
		parentDir := filepath.Dir(database)
		if parentDir != "" {
			if err := os.MkdirAll(parentDir, 0o755); err != nil {
				if !errors.Is(err, os.ErrExist) {
					return nil, err
				}
			}
		}
		return gorm.Open(sqlite.Open(database), cfg)
	case dbTypePostgres:
		return gorm.Open(postgres.Open(database), cfg)
	default:
		return nil, fmt.Errorf(
			"unsupported database type: %s (must be %q or %q)",
			databaseType, dbTypeSQLite, dbTypePostgres,
		)
	}
}

// DBNotifier notifies bot instances sharing a database of changes
// made by another instance.
type DBNotifier interface {
	StoreChannelName() string

	// ReloadStore tells bot instances to reload positions, users,
	// trainings and jobs from the database
	ReloadStore(context.Context) bool

	RuntimeConfigChannelName() string

	// ReloadRuntimeConfig tells bot instances to reload their runtime
	// configuration from the DB
	ReloadRuntimeConfig(context.Context) bool

	StopChannelName() string

	// Stop sends a shutdown signal to all bots
	Stop(context.Context) bool

	// ID returns the identifier for this notifier. Instances use it
	// to filter out their own notifications.
	ID() string
	Listen(ctx context.Context, channel string) error
}

func newDBNotifier(p *PartyBus) (DBNotifier, error) {
	notifyID, err := generateRandomHexString(16)
	if err != nil {
		return nil, err
	}
	log := p.logger.With(loggerNameKey, "db_notifier")
	switch p.config.DatabaseType {
	case dbTypeSQLite:
		return &sqliteNotifier{logger: log, p: p, sqliteNotifyID: notifyID}, nil
	case dbTypePostgres:
		return &postgresNotifier{logger: log, p: p, pgNotifyID: notifyID}, nil
	default:
		return nil, errors.New("invalid database type")
	}
}

// sqliteNotifier delivers notifications to the local instance only
type sqliteNotifier struct {
	logger         *slog.Logger
	p              *PartyBus
	sqliteNotifyID string
}

func (s *sqliteNotifier) Listen(_ context.Context, channel string) error {
	s.logger.Debug("listener called", "channel", channel)
	return nil
}

func (s *sqliteNotifier) ID() string {
	return s.sqliteNotifyID
}

func (sqliteNotifier) StopChannelName() string          { return "" }
func (sqliteNotifier) StoreChannelName() string         { return "" }
func (sqliteNotifier) RuntimeConfigChannelName() string { return "" }

func (s *sqliteNotifier) Stop(ctx context.Context) bool {
	s.logger.Info("notifying stop signal")
	return sendSignal(ctx, s.logger, s.p.signalStop, struct{}{})
}

func (s *sqliteNotifier) ReloadStore(ctx context.Context) bool {
	s.logger.Info("got store reload notification")
	return sendSignal(ctx, s.logger, s.p.triggerStoreReloadCh, true)
}

func (s *sqliteNotifier) ReloadRuntimeConfig(ctx context.Context) bool {
	s.logger.Info("got runtime config reload notification")
	return sendSignal(ctx, s.logger, s.p.triggerRuntimeConfigRefreshCh, true)
}

func sendSignal[T any](ctx context.Context, log *slog.Logger, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		log.Warn("timeout sending signal", tint.Err(ctx.Err()))
		return false
	}
}

// postgresNotifier uses LISTEN/NOTIFY so every instance connected to
// the same database hears about changes.
type postgresNotifier struct {
	p          *PartyBus
	logger     *slog.Logger
	pgNotifyID string
}

func (p *postgresNotifier) ID() string {
	return p.pgNotifyID
}

func (postgresNotifier) StoreChannelName() string {
	return postgresNotifyChannelReloadStore
}

func (postgresNotifier) RuntimeConfigChannelName() string {
	return postgresNotifyChannelRuntimeConfigUpdated
}

func (postgresNotifier) StopChannelName() string {
	return postgresNotifyChannelStop
}

func (p *postgresNotifier) notify(ctx context.Context, channel string) bool {
	err := p.p.writeDB.DB().WithContext(ctx).Exec(
		"SELECT pg_notify(?, ?)",
		channel,
		p.ID(),
	).Error
	if err != nil {
		p.logger.ErrorContext(
			ctx,
			"Error sending NOTIFY",
			"channel", channel,
			tint.Err(err),
		)
		return false
	}
	p.logger.InfoContext(ctx, "sent notification", "channel", channel, "pg_notify_id", p.ID())
	return true
}

func (p *postgresNotifier) Stop(ctx context.Context) bool {
	return p.notify(ctx, p.StopChannelName())
}

func (p *postgresNotifier) ReloadStore(ctx context.Context) bool {
	return p.notify(ctx, p.StoreChannelName())
}

func (p *postgresNotifier) ReloadRuntimeConfig(ctx context.Context) bool {
	return p.notify(ctx, p.RuntimeConfigChannelName())
}

func (p *postgresNotifier) Listen(ctx context.Context, channel string) error {
	p.logger.Info("starting db listener", "channel", channel)

	config, err := pgxpool.ParseConfig(p.p.config.Database)
	if err != nil {
		p.logger.ErrorContext(ctx, "Error parsing database config", tint.Err(err))
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		p.logger.ErrorContext(ctx, "Error creating connection pool", tint.Err(err))
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Error acquiring connection", tint.Err(err))
		return err
	}
	defer conn.Release()

	if _, err = conn.Exec(ctx, fmt.Sprintf("LISTEN %s", channel)); err != nil {
		p.logger.ErrorContext(ctx, "Error setting up listener", tint.Err(err))
		return err
	}
	logger := p.logger.With("channel", channel)
	logger.InfoContext(ctx, "Started listening on channel")

	for ctx.Err() == nil {
		notification, e := conn.Conn().WaitForNotification(ctx)
		if e != nil {
			if ctx.Err() != nil {
				break
			}
			logger.ErrorContext(ctx, "Error waiting for notification", tint.Err(e))
			time.Sleep(5 * time.Second)
			continue
		}
		if notification.Payload == p.ID() {
			logger.Debug("Received notification from self, ignoring")
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, dbNotifierSendTimeout)
		switch channel {
		case p.StoreChannelName():
			logger.InfoContext(ctx, "Received notification to reload store")
			sendSignal(sendCtx, logger, p.p.triggerStoreReloadCh, true)
		case p.RuntimeConfigChannelName():
			logger.InfoContext(ctx, "Received notification for runtime config update")
			sendSignal(sendCtx, logger, p.p.triggerRuntimeConfigRefreshCh, true)
		case p.StopChannelName():
			logger.InfoContext(ctx, "received stop signal via NOTIFY")
			sendSignal(sendCtx, logger, p.p.signalStop, struct{}{})
		default:
			logger.Warn("Received unknown notification", "channel", notification.Channel)
		}
		cancel()
	}

	return nil
}
