package state

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/logger"
	"codeberg.org/mutker/unifanctl/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(Config{DBPath: path, Enabled: true}, logger.Nop())
	require.NoError(t, err)

	return store, path
}

func TestDisabledStoreIsNoop(t *testing.T) {
	store, err := NewStore(DefaultConfig(), logger.Nop())
	require.NoError(t, err)
	assert.True(t, store.IsReadOnly())

	require.NoError(t, store.Save(context.Background(), &ZoneState{Zone: 1}))
	states, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, states)
	require.NoError(t, store.Close())
}

func TestEnabledWithoutPath(t *testing.T) {
	_, err := NewStore(Config{Enabled: true}, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidDBPath))
}

func TestSaveAndLoad(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	temp := 61.5
	applied := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, &ZoneState{
		Zone:        3,
		Color:       protocol.Color{R: 0, G: 255, B: 0},
		Brightness:  50,
		Speed:       1500,
		Mode:        "quietcpu",
		Temperature: &temp,
		AppliedAt:   applied,
	}))
	require.NoError(t, store.Save(ctx, &ZoneState{
		Zone:       1,
		Color:      protocol.Color{R: 255, G: 5, B: 5},
		Brightness: 100,
		Speed:      1350,
		Mode:       "fixed",
		AppliedAt:  applied,
	}))

	states, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, states, 2)

	assert.Equal(t, protocol.Zone(1), states[0].Zone)
	assert.Nil(t, states[0].Temperature)
	assert.Equal(t, "fixed", states[0].Mode)

	assert.Equal(t, protocol.Zone(3), states[1].Zone)
	assert.Equal(t, protocol.Color{R: 0, G: 255, B: 0}, states[1].Color)
	assert.InDelta(t, 50.0, states[1].Brightness, 0.001)
	assert.Equal(t, 1500, states[1].Speed)
	require.NotNil(t, states[1].Temperature)
	assert.InDelta(t, 61.5, *states[1].Temperature, 0.001)
	assert.True(t, applied.Equal(states[1].AppliedAt))
}

func TestSaveReplacesZoneRow(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	for _, speed := range []int{900, 1200, 1700} {
		require.NoError(t, store.Save(ctx, &ZoneState{Zone: 2, Speed: speed, Mode: "fixed", AppliedAt: time.Now()}))
	}

	states, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, 1700, states[0].Speed)
}

func TestSaveRejectsInvalidZone(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()

	err := store.Save(context.Background(), &ZoneState{Zone: 5})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestSaveCancelledContext(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Save(ctx, &ZoneState{Zone: 1})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}

func TestReopenKeepsState(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Save(context.Background(), &ZoneState{Zone: 4, Speed: 1000, Mode: "fixed", AppliedAt: time.Now()}))
	require.NoError(t, store.Close())

	store, err := NewStore(Config{DBPath: path, Enabled: true}, logger.Nop())
	require.NoError(t, err)
	defer store.Close()

	states, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, protocol.Zone(4), states[0].Zone)
}

func TestSchemaMismatchRecreatesWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions (version, applied_at) VALUES (99, datetime('now'));
		CREATE TABLE zone_state (zone INTEGER PRIMARY KEY, legacy TEXT);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := NewStore(Config{DBPath: path, Enabled: true}, logger.Nop())
	require.NoError(t, err)
	defer store.Close()

	backups, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "state_v99_")

	require.NoError(t, store.Save(context.Background(), &ZoneState{Zone: 1, Mode: "fixed", AppliedAt: time.Now()}))

	version, err := GetSchemaVersion(store.(*service).repo.db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}
