package services

import (
	"context"
	"testing"
	"time"

	"course-assistant-platform/models"
	"course-assistant-platform/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileContextPutGet(t *testing.T) {
	store := NewMemoryFileContextStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "file-1", models.FileContextEntry{
		Context: "extracted text",
		OwnerID: "student",
	}))

	entry, err := store.Get(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, "extracted text", entry.Context)
	assert.Equal(t, "student", entry.OwnerID)
	assert.False(t, entry.Timestamp.IsZero(), "timestamp is defaulted on put")
}

func TestFileContextRejectsEmptyID(t *testing.T) {
	store := NewMemoryFileContextStore(time.Hour)

	err := store.Put(context.Background(), "", models.FileContextEntry{Context: "x"})
	assert.True(t, utils.IsKind(err, utils.KindInvalidInput))
}

func TestFileContextUnknownIDIsNotFound(t *testing.T) {
	store := NewMemoryFileContextStore(time.Hour)

	_, err := store.Get(context.Background(), "never-stored")
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
}

func TestFileContextExpiredEntryNotServed(t *testing.T) {
	store := NewMemoryFileContextStore(30 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "file-1", models.FileContextEntry{Context: "x"}))
	time.Sleep(50 * time.Millisecond)

	// Expired entries are invisible to readers even before a sweep runs.
	_, err := store.Get(ctx, "file-1")
	assert.True(t, utils.IsKind(err, utils.KindNotFound))
}

func TestFileContextSweep(t *testing.T) {
	store := NewMemoryFileContextStore(30 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "old", models.FileContextEntry{Context: "x"}))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, store.Put(ctx, "fresh", models.FileContextEntry{Context: "y"}))

	assert.Equal(t, 1, store.Sweep(ctx))
	assert.Equal(t, 0, store.Sweep(ctx))

	_, err := store.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestFileContextDelete(t *testing.T) {
	store := NewMemoryFileContextStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "file-1", models.FileContextEntry{Context: "x"}))
	require.NoError(t, store.Delete(ctx, "file-1"))

	_, err := store.Get(ctx, "file-1")
	assert.True(t, utils.IsKind(err, utils.KindNotFound))

	// Deleting a missing entry is not an error.
	assert.NoError(t, store.Delete(ctx, "file-1"))
}
