package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/engine"
	"github.com/avoss/projectwarden/internal/logger"
)

// PreferenceRepository stores everything the system learns about a user's
// taste: raw hide feedback, confirmed category hides, kept projects,
// question answers, and the exclusion patterns derived from "no" answers.
//
// Every feedback mutation also drops the user's cached classifier verdicts,
// since changed feedback can flip the classification of any project.
type PreferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a new repository bound to the given DB connection.
func NewPreferenceRepository(database *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: database}
}

// Category is a named hide pattern the user confirmed.
type Category struct {
	Name     string
	Pattern  engine.Pattern
	HiddenAt time.Time
}

// Preferences aggregates a user's learned-preference record.
type Preferences struct {
	HiddenProjects  []string
	KeptProjects    []string
	Categories      []Category
	Feedback        []engine.Feedback
	Exclusions      []engine.Pattern
	QuestionAnswers []db.QuestionAnswer
}

// StoreFeedback appends a feedback entry under a freshly generated stable ID
// and invalidates the user's classifier-verdict cache.
//
// Example:
//
//	entry, _ := repo.StoreFeedback(ctx, "u1", "p9", "too far away, I'm not in California")
func (r *PreferenceRepository) StoreFeedback(ctx context.Context, userID, projectID, text string) (db.FeedbackEntry, error) {
	entry := db.FeedbackEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Text:      text,
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return db.FeedbackEntry{}, err
	}
	return entry, r.invalidateDecisions(ctx, userID)
}

// UpdateFeedback rewrites an entry's text. Returns gorm.ErrRecordNotFound
// when the entry does not exist or belongs to another user.
func (r *PreferenceRepository) UpdateFeedback(ctx context.Context, userID, entryID, text string) error {
	res := r.db.WithContext(ctx).
		Model(&db.FeedbackEntry{}).
		Where("id = ? AND user_id = ?", entryID, userID).
		Update("text", text)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return r.invalidateDecisions(ctx, userID)
}

// DeleteFeedback removes an entry. Returns gorm.ErrRecordNotFound when the
// entry does not exist or belongs to another user.
func (r *PreferenceRepository) DeleteFeedback(ctx context.Context, userID, entryID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", entryID, userID).
		Delete(&db.FeedbackEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return r.invalidateDecisions(ctx, userID)
}

// ListFeedback returns the user's feedback entries, oldest first.
func (r *PreferenceRepository) ListFeedback(ctx context.Context, userID string) ([]db.FeedbackEntry, error) {
	var entries []db.FeedbackEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// StoreCategory records a confirmed category hide, deduplicated by name:
// re-hiding the same category refreshes its pattern and timestamp.
func (r *PreferenceRepository) StoreCategory(ctx context.Context, userID, name string, pattern engine.Pattern) error {
	raw, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("encode category pattern: %w", err)
	}
	entry := db.HiddenCategory{
		UserID:   userID,
		Name:     name,
		Pattern:  raw,
		HiddenAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"pattern", "hidden_at"}),
		}).
		Create(&entry).Error
}

// ListCategories returns the user's hidden categories. Entries whose stored
// pattern no longer parses are skipped with a warning.
func (r *PreferenceRepository) ListCategories(ctx context.Context, userID string) ([]Category, error) {
	var rows []db.HiddenCategory
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("hidden_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	categories := make([]Category, 0, len(rows))
	for _, row := range rows {
		var pat engine.Pattern
		if err := json.Unmarshal(row.Pattern, &pat); err != nil {
			logger.Warn("skipping unparseable category pattern", "user_id", userID, "category", row.Name, "err", err)
			continue
		}
		categories = append(categories, Category{Name: row.Name, Pattern: pat, HiddenAt: row.HiddenAt})
	}
	return categories, nil
}

// RecordKept marks a project as explicitly kept. Repeats are absorbed.
func (r *PreferenceRepository) RecordKept(ctx context.Context, userID, projectID string) error {
	entry := db.KeptProject{UserID: userID, ProjectID: projectID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "project_id"}},
			DoNothing: true,
		}).
		Create(&entry).Error
}

// StoreQuestionAnswer records the user's reply to a generated clarifying
// question.
//
// Behavior:
//   - The answer row always lands, keyed by a fresh UUID.
//   - A "no" additionally stores the question's pattern as a learned
//     exclusion, so similarity search stops proposing matches the user
//     already rejected.
func (r *PreferenceRepository) StoreQuestionAnswer(
	ctx context.Context,
	userID, projectID, question string,
	answer bool,
	pattern engine.Pattern,
) (string, error) {
	raw, err := json.Marshal(pattern)
	if err != nil {
		return "", fmt.Errorf("encode question pattern: %w", err)
	}

	qa := db.QuestionAnswer{
		ID:        uuid.NewString(),
		UserID:    userID,
		ProjectID: projectID,
		Question:  question,
		Answer:    answer,
		Pattern:   raw,
	}
	if err := r.db.WithContext(ctx).Create(&qa).Error; err != nil {
		return "", err
	}

	if !answer {
		exclusion := db.LearnedExclusion{
			ID:      uuid.NewString(),
			UserID:  userID,
			Pattern: raw,
		}
		if err := r.db.WithContext(ctx).Create(&exclusion).Error; err != nil {
			return "", err
		}
	}
	return qa.ID, nil
}

// Exclusions returns the patterns the user has rejected.
func (r *PreferenceRepository) Exclusions(ctx context.Context, userID string) ([]engine.Pattern, error) {
	var rows []db.LearnedExclusion
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	patterns := make([]engine.Pattern, 0, len(rows))
	for _, row := range rows {
		var pat engine.Pattern
		if err := json.Unmarshal(row.Pattern, &pat); err != nil {
			logger.Warn("skipping unparseable exclusion pattern", "user_id", userID, "err", err)
			continue
		}
		patterns = append(patterns, pat)
	}
	return patterns, nil
}

// GetPreferences assembles the full learned-preference record consumed by
// the decision and similarity paths.
func (r *PreferenceRepository) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	prefs := Preferences{}

	err := r.db.WithContext(ctx).
		Model(&db.HiddenProject{}).
		Where("user_id = ?", userID).
		Pluck("project_id", &prefs.HiddenProjects).Error
	if err != nil {
		return Preferences{}, err
	}

	err = r.db.WithContext(ctx).
		Model(&db.KeptProject{}).
		Where("user_id = ?", userID).
		Pluck("project_id", &prefs.KeptProjects).Error
	if err != nil {
		return Preferences{}, err
	}

	if prefs.Categories, err = r.ListCategories(ctx, userID); err != nil {
		return Preferences{}, err
	}

	entries, err := r.ListFeedback(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	prefs.Feedback = make([]engine.Feedback, 0, len(entries))
	for _, e := range entries {
		prefs.Feedback = append(prefs.Feedback, engine.Feedback{ID: e.ID, Text: e.Text})
	}

	if prefs.Exclusions, err = r.Exclusions(ctx, userID); err != nil {
		return Preferences{}, err
	}

	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&prefs.QuestionAnswers).Error
	if err != nil {
		return Preferences{}, err
	}

	return prefs, nil
}

// invalidateDecisions drops the user's cached classifier verdicts.
func (r *PreferenceRepository) invalidateDecisions(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&db.AIDecision{}).Error
}
