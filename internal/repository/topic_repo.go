package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/marketplace"
)

// TopicRepository keeps the catalog of topics observed on fetched projects,
// so the rule editor can offer real IDs instead of free text.
type TopicRepository struct {
	db *gorm.DB
}

// NewTopicRepository creates a new repository bound to the given DB connection.
func NewTopicRepository(database *gorm.DB) *TopicRepository {
	return &TopicRepository{db: database}
}

// UpsertSeen records that the given topics were observed now. Names are
// refreshed in case the marketplace renames one.
func (r *TopicRepository) UpsertSeen(ctx context.Context, topics []marketplace.Topic) error {
	if len(topics) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]db.Topic, 0, len(topics))
	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		if t.ID == "" {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		rows = append(rows, db.Topic{ID: t.ID, Name: t.Name, LastSeenAt: now})
	}
	if len(rows) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "last_seen_at"}),
		}).
		Create(&rows).Error
}

// List returns all known topics ordered by name.
func (r *TopicRepository) List(ctx context.Context) ([]db.Topic, error) {
	var topics []db.Topic
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&topics).Error
	return topics, err
}
