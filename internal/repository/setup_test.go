package repository_test

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/marketplace"
)

// setup in-memory DB with the full schema
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func sampleProjects() []marketplace.Project {
	return []marketplace.Project{
		{ID: "p1", Title: "Crypto traders study", Reward: 150, TimeMinutes: 45, Raw: []byte(`{"id":"p1"}`)},
		{ID: "p2", Title: "Gardening survey", Reward: 20, TimeMinutes: 10, Raw: []byte(`{"id":"p2"}`)},
		{ID: "p3", Title: "Remote UX interview", Reward: 90, TimeMinutes: 30, Raw: []byte(`{"id":"p3"}`)},
	}
}
