package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avoss/projectwarden/internal/marketplace"
	"github.com/avoss/projectwarden/internal/repository"
)

func TestTopicUpsertSeen(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewTopicRepository(dbase)

	err := repo.UpsertSeen(ctx, []marketplace.Topic{
		{ID: "7", Name: "Finance"},
		{ID: "42", Name: "Health"},
		{ID: "7", Name: "Finance"}, // in-batch duplicate
		{ID: "", Name: "no id"},
	})
	assert.NoError(t, err)

	topics, err := repo.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, topics, 2)
	// ordered by name
	assert.Equal(t, "Finance", topics[0].Name)
	assert.Equal(t, "Health", topics[1].Name)

	// a rename on the marketplace side wins on the next sighting
	err = repo.UpsertSeen(ctx, []marketplace.Topic{{ID: "7", Name: "Finance & Banking"}})
	assert.NoError(t, err)

	topics, _ = repo.List(ctx)
	assert.Len(t, topics, 2)
	assert.Equal(t, "Finance & Banking", topics[0].Name)
}

func TestTopicUpsertSeenEmpty(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewTopicRepository(dbase)

	assert.NoError(t, repo.UpsertSeen(ctx, nil))
	assert.NoError(t, repo.UpsertSeen(ctx, []marketplace.Topic{{ID: "", Name: "ignored"}}))

	topics, err := repo.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, topics)
}
