package cache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/halvor/sunmon/internal/errors"
	"codeberg.org/halvor/sunmon/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

// NewRepository opens (or creates) the durable energy store. Writes are
// synchronous: each successful energy fetch lands on disk before the tick
// completes.
func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Energy store initialized")

	return &sqliteRepository{db: db}, nil
}

func (r *sqliteRepository) SaveEnergy(ctx context.Context, deviceID string, rec EnergyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errFactory := errors.New()

	_, err := r.db.ExecContext(ctx, upsertEnergySQL,
		deviceID, rec.EnergyToday, rec.EnergyTotal, rec.UpdatedAt.Unix())
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) LoadEnergy(ctx context.Context, deviceID string) (EnergyRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	errFactory := errors.New()

	var rec EnergyRecord
	var updatedAt int64
	err := r.db.QueryRowContext(ctx, selectEnergySQL, deviceID).
		Scan(&rec.EnergyToday, &rec.EnergyTotal, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return EnergyRecord{}, false, nil
	}
	if err != nil {
		return EnergyRecord{}, false, errFactory.Wrap(ErrStorageAccess, err)
	}

	rec.UpdatedAt = time.Unix(updatedAt, 0)

	return rec, true, nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errFactory := errors.New()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}

// NoopRepository discards energy state; used when no durable storage is
// configured (counters then reset on restart).
type NoopRepository struct{}

func (NoopRepository) SaveEnergy(context.Context, string, EnergyRecord) error {
	return nil
}

func (NoopRepository) LoadEnergy(context.Context, string) (EnergyRecord, bool, error) {
	return EnergyRecord{}, false, nil
}

func (NoopRepository) Close() error {
	return nil
}
