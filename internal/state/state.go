// Package state persists the last target applied to each zone so the status
// command can report it without touching the device.
package state

import (
	"context"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/logger"
)

type service struct {
	repo *repository
}

type noopStore struct{}

// NewStore returns a sqlite backed store, or a no-op store when disabled.
func NewStore(cfg Config, log logger.Logger) (Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("State store disabled, using no-op store")
		return &noopStore{}, nil
	}

	repo, err := newRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Save(ctx context.Context, rec *ZoneState) error {
	errFactory := errors.New()

	if rec == nil || !rec.Zone.Valid() {
		return errFactory.New(errors.ErrInvalidArgument)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	return s.repo.save(ctx, rec)
}

func (s *service) Load(ctx context.Context) ([]ZoneState, error) {
	return s.repo.load(ctx)
}

func (s *service) Close() error {
	return s.repo.close()
}

func (*service) IsReadOnly() bool {
	return false
}

func (*noopStore) Save(_ context.Context, _ *ZoneState) error {
	return nil
}

func (*noopStore) Load(_ context.Context) ([]ZoneState, error) {
	return nil, nil
}

func (*noopStore) Close() error {
	return nil
}

func (*noopStore) IsReadOnly() bool {
	return true
}

// Noop returns a store that keeps nothing.
func Noop() Store {
	return &noopStore{}
}
