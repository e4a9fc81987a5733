// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package permission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store kinds accepted by OpenStore.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// ErrUnknownStore is returned by OpenStore for an unsupported store kind.
var ErrUnknownStore = errors.New("unknown permission store")

// MemoryStore keeps decisions for the lifetime of the process.
type MemoryStore struct {
	mu        sync.RWMutex
	decisions map[Scope]Decision
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decisions: make(map[Scope]Decision)}
}

// Load returns the decision for scope, or an undecided one if none was saved.
func (s *MemoryStore) Load(_ context.Context, scope Scope) (Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[scope]
	if !ok {
		return Decision{Scope: scope}, nil
	}
	return d, nil
}

// Save records the decision, replacing an earlier one for the same scope.
func (s *MemoryStore) Save(_ context.Context, decision Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[decision.Scope] = decision
	return nil
}

// Reset forgets all decisions.
func (s *MemoryStore) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.decisions)
	return nil
}

// decisionRecord is the database row of a Decision.
type decisionRecord struct {
	Scope        string `gorm:"primaryKey;size:16"`
	Granted      bool
	Denials      int
	DontAskAgain bool
	UpdatedAt    time.Time
}

func (decisionRecord) TableName() string {
	return "permission_decisions"
}

// DBStore keeps decisions in a SQLite or PostgreSQL database.
type DBStore struct {
	db *gorm.DB
}

// OpenStore returns the Store of the given kind. dsn is the SQLite file path or the
// PostgreSQL connection string and is ignored for the memory store.
func OpenStore(kind, dsn string) (Store, error) {
	switch kind {
	case StoreMemory, "":
		return NewMemoryStore(), nil
	case StoreSQLite:
		if dsn == "" {
			return nil, errors.New("sqlite permission store requires a database path")
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create permission database directory: %w", err)
		}
		return NewDBStore(sqlite.Open(dsn))
	case StorePostgres:
		if dsn == "" {
			return nil, errors.New("postgres permission store requires a DSN")
		}
		return NewDBStore(postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, kind)
	}
}

// NewDBStore opens the database using the given dialector and migrates the decision table.
func NewDBStore(dialector gorm.Dialector) (*DBStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open permission database: %w", err)
	}
	if err = db.AutoMigrate(&decisionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate permission database: %w", err)
	}
	return &DBStore{db: db}, nil
}

// Load returns the stored decision for scope, or an undecided one if no row exists.
func (s *DBStore) Load(ctx context.Context, scope Scope) (Decision, error) {
	var record decisionRecord
	err := s.db.WithContext(ctx).Where("scope = ?", string(scope)).First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Decision{Scope: scope}, nil
	case err != nil:
		return Decision{}, fmt.Errorf("failed to load permission decision: %w", err)
	}
	return Decision{
		Scope:        scope,
		Granted:      record.Granted,
		Denials:      record.Denials,
		DontAskAgain: record.DontAskAgain,
	}, nil
}

// Save upserts the decision row of its scope.
func (s *DBStore) Save(ctx context.Context, decision Decision) error {
	record := decisionRecord{
		Scope:        string(decision.Scope),
		Granted:      decision.Granted,
		Denials:      decision.Denials,
		DontAskAgain: decision.DontAskAgain,
	}
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return fmt.Errorf("failed to save permission decision: %w", err)
	}
	return nil
}

// Reset deletes all decision rows.
func (s *DBStore) Reset(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&decisionRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete permission decisions: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
