package state

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/logger"
	"codeberg.org/mutker/unifanctl/internal/protocol"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	mu     sync.Mutex
}

func newRepository(cfg Config, log logger.Logger) (*repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
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

	dsn := cfg.DBPath + "?_journal=WAL&_busy_timeout=5000"
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

	if err := ValidateAndUpdateSchema(db, filepath.Join(dir, "backups"), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("State repository initialized")

	return &repository{
		db:     db,
		logger: log,
		cfg:    cfg,
	}, nil
}

func (r *repository) save(ctx context.Context, rec *ZoneState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var temp interface{}
	if rec.Temperature != nil {
		temp = *rec.Temperature
	}

	_, err := r.db.ExecContext(ctx, upsertStateSQL,
		int64(rec.Zone),
		int64(rec.Color.R),
		int64(rec.Color.G),
		int64(rec.Color.B),
		rec.Brightness,
		int64(rec.Speed),
		rec.Mode,
		temp,
		rec.AppliedAt.Unix(),
	)
	if err != nil {
		return errors.New().Wrap(ErrSaveFailed, err)
	}

	return nil
}

func (r *repository) load(ctx context.Context) ([]ZoneState, error) {
	errFactory := errors.New()

	rows, err := r.db.QueryContext(ctx, selectStateSQL)
	if err != nil {
		return nil, errFactory.Wrap(ErrLoadFailed, err)
	}
	defer rows.Close()

	var states []ZoneState
	for rows.Next() {
		var (
			zone, red, green, blue, speed, applied int64
			brightness                             float64
			mode                                   string
			temp                                   sql.NullFloat64
		)
		if err := rows.Scan(&zone, &red, &green, &blue, &brightness, &speed, &mode, &temp, &applied); err != nil {
			return nil, errFactory.Wrap(ErrLoadFailed, err)
		}

		st := ZoneState{
			Zone:       protocol.Zone(zone),
			Color:      protocol.Color{R: uint8(red), G: uint8(green), B: uint8(blue)},
			Brightness: brightness,
			Speed:      int(speed),
			Mode:       mode,
			AppliedAt:  time.Unix(applied, 0).UTC(),
		}
		if temp.Valid {
			t := temp.Float64
			st.Temperature = &t
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrLoadFailed, err)
	}

	return states, nil
}

func (r *repository) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Info().Msg("State repository closed")

	return nil
}
