package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/repository"
)

func TestAIDecisionLookupAndStore(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewAIDecisionRepository(dbase)

	_, ok, err := repo.Lookup(ctx, "u1", "p1", "hash-a")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, repo.Store(ctx, "u1", "p1", "hash-a", true))

	hide, ok, err := repo.Lookup(ctx, "u1", "p1", "hash-a")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, hide)

	// a verdict cached under old feedback is a miss, not a stale hit
	_, ok, err = repo.Lookup(ctx, "u1", "p1", "hash-b")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestAIDecisionStoreOverwrites(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewAIDecisionRepository(dbase)

	_ = repo.Store(ctx, "u1", "p1", "hash-a", true)
	_ = repo.Store(ctx, "u1", "p1", "hash-b", false)

	var rows []db.AIDecision
	_ = dbase.Find(&rows).Error
	assert.Len(t, rows, 1)

	hide, ok, err := repo.Lookup(ctx, "u1", "p1", "hash-b")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, hide)
}

func TestAIDecisionInvalidateUser(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewAIDecisionRepository(dbase)

	_ = repo.Store(ctx, "u1", "p1", "hash-a", true)
	_ = repo.Store(ctx, "u1", "p2", "hash-a", false)
	_ = repo.Store(ctx, "u2", "p1", "hash-z", true)

	assert.NoError(t, repo.InvalidateUser(ctx, "u1"))

	_, ok, _ := repo.Lookup(ctx, "u1", "p1", "hash-a")
	assert.False(t, ok)
	_, ok, _ = repo.Lookup(ctx, "u1", "p2", "hash-a")
	assert.False(t, ok)

	// the other user's cache is untouched
	hide, ok, _ := repo.Lookup(ctx, "u2", "p1", "hash-z")
	assert.True(t, ok)
	assert.True(t, hide)
}
