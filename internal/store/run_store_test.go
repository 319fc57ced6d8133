package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendsight/internal/db"
	"trendsight/internal/domain"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, database.Close()) })
	return database
}

func testRun(id string) *domain.Run {
	return &domain.Run{
		ID:          id,
		Backend:     "gemini",
		Model:       "gemini-2.5-flash",
		Screenshots: 5,
		Skipped:     1,
		Trends:      7,
		Dropped:     1,
		ReportPath:  "/tmp/report.md",
	}
}

func TestRunStoreCreateAndGet(t *testing.T) {
	store := NewRunStore(testDB(t))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testRun("01ARZ3NDEKTSV4RRFFQ69G5FAV")))

	run, err := store.GetByID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "gemini", run.Backend)
	assert.Equal(t, "gemini-2.5-flash", run.Model)
	assert.Equal(t, 5, run.Screenshots)
	assert.Equal(t, 7, run.Trends)
	assert.Equal(t, "/tmp/report.md", run.ReportPath)
	assert.False(t, run.CreatedAt.IsZero())
}

func TestRunStoreGetMissing(t *testing.T) {
	store := NewRunStore(testDB(t))

	run, err := store.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestRunStoreDuplicateIDRejected(t *testing.T) {
	store := NewRunStore(testDB(t))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testRun("01ARZ3NDEKTSV4RRFFQ69G5FAV")))
	assert.Error(t, store.Create(ctx, testRun("01ARZ3NDEKTSV4RRFFQ69G5FAV")))
}

func TestRunStoreListRecent(t *testing.T) {
	store := NewRunStore(testDB(t))
	ctx := context.Background()

	// ULIDs sort lexicographically by creation time; the tie-break on id
	// keeps ordering stable within one timestamp.
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Create(ctx, testRun(fmt.Sprintf("01ARZ3NDEKTSV4RRFFQ69G5FA%d", i))))
	}

	runs, err := store.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FA4", runs[0].ID)
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FA3", runs[1].ID)
}
