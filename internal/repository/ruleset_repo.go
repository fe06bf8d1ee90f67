package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/engine"
)

// RuleSetRepository persists each user's hide rules so scheduled refreshes
// can evaluate projects without an interactive caller.
type RuleSetRepository struct {
	db *gorm.DB
}

// NewRuleSetRepository creates a new repository bound to the given DB connection.
func NewRuleSetRepository(database *gorm.DB) *RuleSetRepository {
	return &RuleSetRepository{db: database}
}

// Save upserts the user's rules. Topic IDs are stored as a sorted JSON
// array.
func (r *RuleSetRepository) Save(ctx context.Context, userID string, rules engine.RuleSet) error {
	topicIDs := make([]string, 0, len(rules.Topics))
	for id := range rules.Topics {
		topicIDs = append(topicIDs, id)
	}
	sort.Strings(topicIDs)
	rawTopics, err := json.Marshal(topicIDs)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}

	entry := db.UserRuleSet{
		UserID:        userID,
		MinReward:     rules.MinReward,
		MinHourlyRate: rules.MinHourlyRate,
		RemoteOnly:    rules.RemoteOnly,
		Topics:        rawTopics,
		AIAssisted:    rules.AIAssisted,
		AutoHide:      rules.AutoHide,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"min_reward", "min_hourly_rate", "remote_only", "topics", "ai_assisted", "auto_hide", "updated_at",
			}),
		}).
		Create(&entry).Error
}

// Get returns the user's rules. A user with no saved rules gets the zero
// RuleSet, which hides nothing.
func (r *RuleSetRepository) Get(ctx context.Context, userID string) (engine.RuleSet, error) {
	var entry db.UserRuleSet
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.RuleSet{}, nil
	}
	if err != nil {
		return engine.RuleSet{}, err
	}

	rules := engine.RuleSet{
		MinReward:     entry.MinReward,
		MinHourlyRate: entry.MinHourlyRate,
		RemoteOnly:    entry.RemoteOnly,
		AIAssisted:    entry.AIAssisted,
		AutoHide:      entry.AutoHide,
	}
	if len(entry.Topics) > 0 {
		var topicIDs []string
		if err := json.Unmarshal(entry.Topics, &topicIDs); err != nil {
			return engine.RuleSet{}, fmt.Errorf("decode topics for %s: %w", userID, err)
		}
		if len(topicIDs) > 0 {
			rules.Topics = make(map[string]struct{}, len(topicIDs))
			for _, id := range topicIDs {
				rules.Topics[id] = struct{}{}
			}
		}
	}
	return rules, nil
}
