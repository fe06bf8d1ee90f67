package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoss/projectwarden/internal/db"
)

// HiddenLogRepository provides data access for the hidden-project log, the
// at-most-once record of every hide confirmed against the marketplace.
type HiddenLogRepository struct {
	db *gorm.DB
}

// NewHiddenLogRepository creates a new repository bound to the given DB connection.
func NewHiddenLogRepository(database *gorm.DB) *HiddenLogRepository {
	return &HiddenLogRepository{db: database}
}

// HiddenStats summarizes a user's hidden log.
type HiddenStats struct {
	Total    int64
	ByMethod map[string]int64
	Recent   []db.HiddenProject
}

// TimelineBucket is one point in a hidden-per-period series.
type TimelineBucket struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// RecordHidden inserts or updates the log entry for (userID, projectID).
//
// Behavior:
//   - Composite PK ensures a single row per pair no matter how often the
//     same hide is confirmed or retried.
//   - Method and HiddenAt always take the latest values.
//   - FeedbackText and CategoryName are only overwritten when non-empty, so
//     a later plain re-hide does not erase the reason the user once gave.
//
// Example:
//
//	repo.RecordHidden(ctx, "u1", "p9", db.MethodManual, "too far away", "")
func (r *HiddenLogRepository) RecordHidden(
	ctx context.Context,
	userID, projectID, method string,
	feedbackText, categoryName string,
) error {
	now := time.Now().UTC()
	entry := db.HiddenProject{
		UserID:       userID,
		ProjectID:    projectID,
		Method:       method,
		FeedbackText: feedbackText,
		CategoryName: categoryName,
		HiddenAt:     now,
	}

	updated := []string{"method", "hidden_at", "updated_at"}
	if feedbackText != "" {
		updated = append(updated, "feedback_text")
	}
	if categoryName != "" {
		updated = append(updated, "category_name")
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "project_id"}},
			DoUpdates: clause.AssignmentColumns(updated),
		}).
		Create(&entry).Error
}

// IsHidden checks whether a specific project is hidden for a user.
func (r *HiddenLogRepository) IsHidden(ctx context.Context, userID, projectID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.HiddenProject{}).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Count(&count).Error
	return count > 0, err
}

// HiddenIDs returns every hidden project ID for a user.
func (r *HiddenLogRepository) HiddenIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.HiddenProject{}).
		Where("user_id = ?", userID).
		Order("hidden_at DESC").
		Pluck("project_id", &ids).Error
	return ids, err
}

// Count returns how many projects the user has hidden in total.
//
// Used in conjunction with the Redis counter (DB is fallback).
func (r *HiddenLogRepository) Count(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.HiddenProject{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// Stats returns the total, a per-method breakdown, and the ten most recent
// entries.
func (r *HiddenLogRepository) Stats(ctx context.Context, userID string) (HiddenStats, error) {
	stats := HiddenStats{ByMethod: make(map[string]int64)}

	total, err := r.Count(ctx, userID)
	if err != nil {
		return HiddenStats{}, err
	}
	stats.Total = total

	rows := []struct {
		Method string
		Count  int64
	}{}
	err = r.db.WithContext(ctx).
		Model(&db.HiddenProject{}).
		Select("method, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("method").
		Scan(&rows).Error
	if err != nil {
		return HiddenStats{}, err
	}
	for _, row := range rows {
		stats.ByMethod[row.Method] = row.Count
	}

	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("hidden_at DESC").
		Limit(10).
		Find(&stats.Recent).Error
	if err != nil {
		return HiddenStats{}, err
	}

	return stats, nil
}

// Timeline groups the user's hides into per-day, per-ISO-week, or per-month
// buckets between the optional bounds, sorted by bucket ascending.
//
// Example:
//
//	repo.Timeline(ctx, "u1", "week", nil, nil)
//	// -> [{2025-W14 3} {2025-W15 11}]
func (r *HiddenLogRepository) Timeline(
	ctx context.Context,
	userID, groupBy string,
	start, end *time.Time,
) ([]TimelineBucket, error) {
	query := r.db.WithContext(ctx).
		Model(&db.HiddenProject{}).
		Where("user_id = ?", userID)
	if start != nil {
		query = query.Where("hidden_at >= ?", *start)
	}
	if end != nil {
		query = query.Where("hidden_at <= ?", *end)
	}

	var entries []db.HiddenProject
	if err := query.Order("hidden_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	var order []string
	for _, e := range entries {
		key := bucketKey(e.HiddenAt, groupBy)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	timeline := make([]TimelineBucket, 0, len(order))
	for _, key := range order {
		timeline = append(timeline, TimelineBucket{Date: key, Count: counts[key]})
	}
	return timeline, nil
}

// bucketKey formats a timestamp into its timeline bucket. Unknown groupings
// fall back to daily.
func bucketKey(t time.Time, groupBy string) string {
	t = t.UTC()
	switch groupBy {
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
