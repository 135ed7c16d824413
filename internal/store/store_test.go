package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crosswarped.com/lattice/pkg/primitives"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "lattice.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()

	run := &Run{
		Pattern:    "checkerboard",
		Radius:     1,
		Seed:       1,
		Steps:      12,
		Backtracks: 2,
		CreatedAt:  time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
		Cells: []primitives.Placement{
			{Position: primitives.Position{X: 1}, Value: 2},
			{Position: primitives.Position{}, Value: 1},
			{Position: primitives.Position{X: -1}, Value: 2},
		},
	}
	require.NoError(t, db.SaveRun(ctx, run))
	require.NotEqual(t, uuid.Nil, run.ID)

	got, err := db.LoadRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.Pattern, got.Pattern)
	assert.Equal(t, run.Radius, got.Radius)
	assert.Equal(t, run.Seed, got.Seed)
	assert.Equal(t, run.Steps, got.Steps)
	assert.Equal(t, run.Backtracks, got.Backtracks)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, []primitives.Placement{
		{Position: primitives.Position{X: -1}, Value: 2},
		{Position: primitives.Position{}, Value: 1},
		{Position: primitives.Position{X: 1}, Value: 2},
	}, got.Cells)
}

func TestLoadRun_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadRun(t.Context(), uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSaveRun_DuplicateID(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()

	run := &Run{Pattern: "a", Cells: []primitives.Placement{{Value: 1}}}
	require.NoError(t, db.SaveRun(ctx, run))

	again := &Run{ID: run.ID, Pattern: "b"}
	assert.Error(t, db.SaveRun(ctx, again))
}

func TestListRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()

	older := &Run{
		Pattern:   "older",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Cells:     []primitives.Placement{{Value: 1}, {Position: primitives.Position{Y: 1}, Value: 2}},
	}
	newer := &Run{
		Pattern:   "newer",
		CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.SaveRun(ctx, older))
	require.NoError(t, db.SaveRun(ctx, newer))

	runs, err := db.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "newer", runs[0].Pattern)
	assert.Equal(t, 0, runs[0].Cells)
	assert.Equal(t, "older", runs[1].Pattern)
	assert.Equal(t, 2, runs[1].Cells)
	assert.Equal(t, older.ID, runs[1].ID)
}
