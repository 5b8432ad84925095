package state

import (
	"context"
	"time"

	"codeberg.org/mutker/unifanctl/internal/protocol"
)

// Store keeps the last target applied to each zone. It holds current state
// only: saving a zone replaces its previous row.
type Store interface {
	Save(ctx context.Context, rec *ZoneState) error
	Load(ctx context.Context) ([]ZoneState, error)
	Close() error
	IsReadOnly() bool
}

// ZoneState is the last target applied to one zone.
type ZoneState struct {
	Zone       protocol.Zone
	Color      protocol.Color
	Brightness float64
	Speed      int
	Mode       string
	// Temperature is nil in fixed mode.
	Temperature *float64
	AppliedAt   time.Time
}
