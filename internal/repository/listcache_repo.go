package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/marketplace"
)

// ListCacheRepository stores each user's last-known visible project list.
// CachedAt moves only on a full refresh and drives freshness; LastUpdated
// moves on every mutation, including partial removals.
type ListCacheRepository struct {
	db *gorm.DB
}

// NewListCacheRepository creates a new repository bound to the given DB connection.
func NewListCacheRepository(database *gorm.DB) *ListCacheRepository {
	return &ListCacheRepository{db: database}
}

// CachedList is one user's decoded list-cache entry.
type CachedList struct {
	Projects    []marketplace.Project
	TotalCount  int
	CachedAt    time.Time
	LastUpdated time.Time
}

// ListStats is the observability view of a list-cache entry.
type ListStats struct {
	Exists      bool
	CachedAt    time.Time
	LastUpdated time.Time
	TotalCount  int
}

// IsFresh reports whether the user's cached list exists and is younger than
// maxAge. A missing entry is stale, not an error.
func (r *ListCacheRepository) IsFresh(ctx context.Context, userID string, maxAge time.Duration) (bool, error) {
	var entry db.ProjectList
	err := r.db.WithContext(ctx).
		Select("cached_at").
		Where("user_id = ?", userID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return time.Since(entry.CachedAt) < maxAge, nil
}

// Get returns the user's cached list. The second return is false when no
// entry exists.
func (r *ListCacheRepository) Get(ctx context.Context, userID string) (CachedList, bool, error) {
	var entry db.ProjectList
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CachedList{}, false, nil
	}
	if err != nil {
		return CachedList{}, false, err
	}

	var projects []marketplace.Project
	if len(entry.Projects) > 0 {
		if err := json.Unmarshal(entry.Projects, &projects); err != nil {
			return CachedList{}, false, fmt.Errorf("decode cached projects for %s: %w", userID, err)
		}
	}

	return CachedList{
		Projects:    projects,
		TotalCount:  entry.TotalCount,
		CachedAt:    entry.CachedAt,
		LastUpdated: entry.LastUpdated,
	}, true, nil
}

// Replace overwrites the user's cached list after a successful full refresh.
//
// Behavior:
//   - Both CachedAt and LastUpdated are set to now.
//   - TotalCount records the server-reported total, which may disagree with
//     len(projects); the server's number is kept as-is.
func (r *ListCacheRepository) Replace(ctx context.Context, userID string, projects []marketplace.Project, totalCount int) error {
	raw, err := json.Marshal(projects)
	if err != nil {
		return fmt.Errorf("encode projects for %s: %w", userID, err)
	}

	now := time.Now().UTC()
	entry := db.ProjectList{
		UserID:      userID,
		Projects:    raw,
		TotalCount:  totalCount,
		CachedAt:    now,
		LastUpdated: now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"projects", "total_count", "cached_at", "last_updated"}),
		}).
		Create(&entry).Error
}

// RemoveProjects drops the given IDs from the cached list so the view
// reflects a hide immediately, without waiting for the next full refresh.
//
// Behavior:
//   - TotalCount is recomputed as the number of remaining projects.
//   - Only LastUpdated moves; the entry's freshness is unchanged.
//   - No cache entry, or nothing to remove, is a no-op.
func (r *ListCacheRepository) RemoveProjects(ctx context.Context, userID string, projectIDs []string) error {
	if len(projectIDs) == 0 {
		return nil
	}

	cached, ok, err := r.Get(ctx, userID)
	if err != nil || !ok {
		return err
	}

	drop := make(map[string]struct{}, len(projectIDs))
	for _, id := range projectIDs {
		drop[id] = struct{}{}
	}

	remaining := make([]marketplace.Project, 0, len(cached.Projects))
	for _, p := range cached.Projects {
		if _, hidden := drop[p.ID]; !hidden {
			remaining = append(remaining, p)
		}
	}
	if len(remaining) == len(cached.Projects) {
		return nil
	}

	raw, err := json.Marshal(remaining)
	if err != nil {
		return fmt.Errorf("encode projects for %s: %w", userID, err)
	}

	return r.db.WithContext(ctx).
		Model(&db.ProjectList{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"projects":     raw,
			"total_count":  len(remaining),
			"last_updated": time.Now().UTC(),
		}).Error
}

// Stats returns the cache entry's metadata without decoding the project blob.
func (r *ListCacheRepository) Stats(ctx context.Context, userID string) (ListStats, error) {
	var entry db.ProjectList
	err := r.db.WithContext(ctx).
		Select("total_count", "cached_at", "last_updated").
		Where("user_id = ?", userID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ListStats{}, nil
	}
	if err != nil {
		return ListStats{}, err
	}
	return ListStats{
		Exists:      true,
		CachedAt:    entry.CachedAt,
		LastUpdated: entry.LastUpdated,
		TotalCount:  entry.TotalCount,
	}, nil
}
