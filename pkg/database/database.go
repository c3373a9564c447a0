package database

import (
	"context"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kevinjam/farmkeeper-sub001/internal/model"
	"github.com/kevinjam/farmkeeper-sub001/pkg/config"
)

// OpenFunc establishes a database connection. It is injectable so the
// manager's concurrency behavior can be tested without a running database.
type OpenFunc func(cfg *config.DBConfig) (*gorm.DB, error)

// Manager is a single-slot lazy cache around the shared database handle.
// The first Acquire establishes the connection; while an establishment
// attempt is in flight every concurrent caller waits on it instead of
// dialing on its own. A failed attempt clears the slot so the next Acquire
// retries. An established handle is reused for the process lifetime and may
// be used concurrently without coordination.
type Manager struct {
	cfg  *config.DBConfig
	open OpenFunc

	mu      sync.Mutex
	db      *gorm.DB
	pending chan struct{} // non-nil while an establishment attempt is in flight
}

// NewManager creates a connection manager. A nil open uses the postgres
// opener.
func NewManager(cfg *config.DBConfig, open OpenFunc) *Manager {
	if open == nil {
		open = openPostgres
	}
	return &Manager{cfg: cfg, open: open}
}

// Acquire returns the shared database handle, establishing it if needed.
// Concurrent first callers result in exactly one establishment attempt.
func (m *Manager) Acquire(ctx context.Context) (*gorm.DB, error) {
	for {
		m.mu.Lock()
		if m.db != nil {
			db := m.db
			m.mu.Unlock()
			return db, nil
		}
		if m.pending != nil {
			// Another caller is connecting. Wait for it and re-check:
			// on success the slot is filled, on failure we retry.
			pending := m.pending
			m.mu.Unlock()
			select {
			case <-pending:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		pending := make(chan struct{})
		m.pending = pending
		m.mu.Unlock()

		db, err := m.open(m.cfg)

		m.mu.Lock()
		m.pending = nil
		if err == nil {
			m.db = db
		}
		m.mu.Unlock()
		close(pending)

		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

// openPostgres connects to PostgreSQL, configures the pool and migrates the
// schema.
func openPostgres(cfg *config.DBConfig) (*gorm.DB, error) {
	logLevel := cfg.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}

	// PreferSimpleProtocol disables implicit prepared statement usage to
	// prevent "prepared statement already exists" errors behind poolers.
	pgConfig := postgres.Config{
		DSN:                  cfg.GetDSN(),
		PreferSimpleProtocol: true,
	}

	db, err := gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Farm{},
		&model.EggRecord{},
		&model.Expense{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
