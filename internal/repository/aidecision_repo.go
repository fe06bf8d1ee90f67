package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoss/projectwarden/internal/db"
)

// AIDecisionRepository persists classifier verdicts per (user, project),
// each stamped with the feedback hash it was computed under. It satisfies
// the decision engine's cache contract.
type AIDecisionRepository struct {
	db *gorm.DB
}

// NewAIDecisionRepository creates a new repository bound to the given DB connection.
func NewAIDecisionRepository(database *gorm.DB) *AIDecisionRepository {
	return &AIDecisionRepository{db: database}
}

// Lookup returns the cached verdict for (userID, projectID) when its stored
// hash equals feedbackHash. A missing row or a hash mismatch is a miss, not
// an error.
func (r *AIDecisionRepository) Lookup(ctx context.Context, userID, projectID, feedbackHash string) (bool, bool, error) {
	var entry db.AIDecision
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND project_id = ?", userID, projectID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	if entry.FeedbackHash != feedbackHash {
		return false, false, nil
	}
	return entry.ShouldHide, true, nil
}

// Store upserts a verdict under the current feedback hash.
func (r *AIDecisionRepository) Store(ctx context.Context, userID, projectID, feedbackHash string, shouldHide bool) error {
	entry := db.AIDecision{
		UserID:       userID,
		ProjectID:    projectID,
		FeedbackHash: feedbackHash,
		ShouldHide:   shouldHide,
		CachedAt:     time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "project_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"feedback_hash", "should_hide", "cached_at"}),
		}).
		Create(&entry).Error
}

// InvalidateUser drops every cached verdict for a user. Called whenever the
// feedback set changes: an edit can plausibly flip the classification of
// any project, so per-project invalidation is not attempted.
func (r *AIDecisionRepository) InvalidateUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&db.AIDecision{}).Error
}
