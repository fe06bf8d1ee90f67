package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avoss/projectwarden/internal/marketplace"
	"github.com/avoss/projectwarden/internal/repository"
)

// fakeAPI satisfies marketplace.API; only FetchDetail is scripted here.
type fakeAPI struct {
	detail      marketplace.Project
	detailErr   error
	detailCalls int
}

func (f *fakeAPI) Search(_ context.Context, _ string, _, _ int, _ marketplace.DemographicFilters) ([]marketplace.Project, int, error) {
	return nil, 0, errors.New("not scripted")
}

func (f *fakeAPI) FetchDetail(_ context.Context, _ string) (marketplace.Project, error) {
	f.detailCalls++
	return f.detail, f.detailErr
}

func (f *fakeAPI) Hide(_ context.Context, _ string) error { return errors.New("not scripted") }

func (f *fakeAPI) Verify(_ context.Context) (marketplace.Identity, error) {
	return marketplace.Identity{}, errors.New("not scripted")
}

func (f *fakeAPI) FetchProfile(_ context.Context, _ string) (marketplace.DemographicFilters, error) {
	return marketplace.DemographicFilters{}, errors.New("not scripted")
}

func TestDetailCachePutAndGet(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewDetailCacheRepository(dbase)

	_, ok, err := repo.Get(ctx, "p1")
	assert.NoError(t, err)
	assert.False(t, ok)

	payload := []byte(`{"id":"p1","name":"Crypto traders study","respondentRemuneration":150,"timeMinutesRequired":45}`)
	assert.NoError(t, repo.Put(ctx, "p1", payload))

	detail, ok, err := repo.Get(ctx, "p1")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p1", detail.ID)
	assert.Equal(t, "Crypto traders study", detail.Title)
	assert.Equal(t, int64(150), detail.Reward)
	assert.Equal(t, 45, detail.TimeMinutes)

	// a newer payload replaces the old one
	assert.NoError(t, repo.Put(ctx, "p1", []byte(`{"id":"p1","name":"Renamed"}`)))
	detail, _, _ = repo.Get(ctx, "p1")
	assert.Equal(t, "Renamed", detail.Title)
}

func TestDetailCacheGetOrFetchMiss(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewDetailCacheRepository(dbase)

	api := &fakeAPI{detail: marketplace.Project{
		ID:    "p1",
		Title: "Remote UX interview",
		Raw:   []byte(`{"id":"p1","name":"Remote UX interview"}`),
	}}

	detail, err := repo.GetOrFetch(ctx, api, "p1")
	assert.NoError(t, err)
	assert.Equal(t, "Remote UX interview", detail.Title)
	assert.Equal(t, 1, api.detailCalls)

	// second call is served from the cache
	detail, err = repo.GetOrFetch(ctx, api, "p1")
	assert.NoError(t, err)
	assert.Equal(t, "Remote UX interview", detail.Title)
	assert.Equal(t, 1, api.detailCalls)
}

func TestDetailCacheGetOrFetchHitSkipsClient(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewDetailCacheRepository(dbase)

	_ = repo.Put(ctx, "p1", []byte(`{"id":"p1","name":"Cached"}`))
	api := &fakeAPI{detailErr: errors.New("should not be called")}

	detail, err := repo.GetOrFetch(ctx, api, "p1")
	assert.NoError(t, err)
	assert.Equal(t, "Cached", detail.Title)
	assert.Equal(t, 0, api.detailCalls)
}

func TestDetailCacheGetOrFetchFailure(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewDetailCacheRepository(dbase)

	api := &fakeAPI{detailErr: errors.New("upstream 502")}

	_, err := repo.GetOrFetch(ctx, api, "p1")
	assert.ErrorContains(t, err, "upstream 502")
	assert.Equal(t, 1, api.detailCalls)
}
