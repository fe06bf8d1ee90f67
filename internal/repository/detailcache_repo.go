package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/logger"
	"github.com/avoss/projectwarden/internal/marketplace"
)

// DetailCacheRepository stores per-project enrichment payloads. Entries have
// no TTL: detail data changes rarely, so it is corrected on the next
// successful fetch instead of expired.
type DetailCacheRepository struct {
	db *gorm.DB
}

// NewDetailCacheRepository creates a new repository bound to the given DB connection.
func NewDetailCacheRepository(database *gorm.DB) *DetailCacheRepository {
	return &DetailCacheRepository{db: database}
}

// Get returns the cached detail for a project. The second return is false
// when no entry exists.
func (r *DetailCacheRepository) Get(ctx context.Context, projectID string) (marketplace.Project, bool, error) {
	var entry db.ProjectDetail
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return marketplace.Project{}, false, nil
	}
	if err != nil {
		return marketplace.Project{}, false, err
	}
	return marketplace.DecodeProject(entry.Payload), true, nil
}

// Put stores a freshly fetched detail payload.
func (r *DetailCacheRepository) Put(ctx context.Context, projectID string, payload []byte) error {
	entry := db.ProjectDetail{
		ProjectID: projectID,
		Payload:   payload,
		CachedAt:  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "cached_at"}),
		}).
		Create(&entry).Error
}

// GetOrFetch returns the cached detail, fetching and storing it on a miss.
//
// Behavior:
//   - Cache hit returns immediately; no remote call.
//   - On a miss the detail is fetched via client and cached.
//   - When the fetch fails, the cache is consulted once more (a concurrent
//     sync may have filled it meanwhile) and any entry found is served,
//     however old: stale detail beats no detail. The fallback is logged.
func (r *DetailCacheRepository) GetOrFetch(ctx context.Context, client marketplace.API, projectID string) (marketplace.Project, error) {
	cached, ok, err := r.Get(ctx, projectID)
	if err != nil {
		return marketplace.Project{}, err
	}
	if ok {
		return cached, nil
	}

	detail, fetchErr := client.FetchDetail(ctx, projectID)
	if fetchErr != nil {
		if cached, ok, err := r.Get(ctx, projectID); err == nil && ok {
			logger.Warn("detail fetch failed, serving cached entry", "project_id", projectID, "err", fetchErr)
			return cached, nil
		}
		return marketplace.Project{}, fetchErr
	}

	if err := r.Put(ctx, projectID, detail.Raw); err != nil {
		logger.Warn("detail cache store failed", "project_id", projectID, "err", err)
	}
	return detail, nil
}
