package db

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedTestData resets the database and populates it with a demo user's
// sync state.
//
// Behavior:
//  1. Clears every table the seed writes to.
//  2. Creates one enabled credential ("demo-user") with a saved rule set.
//  3. Generates ~60 hidden-log rows spread over the past 90 days with a
//     realistic method mix, plus feedback, a category, and kept projects.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	tables := []string{
		"hidden_projects", "project_lists", "project_details",
		"user_rule_sets", "feedback_entries", "hidden_categories",
		"kept_projects", "question_answers", "learned_exclusions",
		"ai_decisions", "credentials", "topics",
	}
	for _, table := range tables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	// --- Credential + rules ---
	cred := Credential{
		UserID:       "demo-user",
		SessionToken: "s:demo-session-token",
		ProfileID:    "demo-profile",
		FirstName:    "Demo",
		Enabled:      true,
	}
	if err := db.Create(&cred).Error; err != nil {
		return fmt.Errorf("failed to seed credential: %w", err)
	}

	minReward := int64(50)
	minRate := int64(40)
	topics, _ := json.Marshal([]string{"42"})
	rules := UserRuleSet{
		UserID:        "demo-user",
		MinReward:     &minReward,
		MinHourlyRate: &minRate,
		RemoteOnly:    true,
		Topics:        topics,
		AIAssisted:    true,
		AutoHide:      false,
	}
	if err := db.Create(&rules).Error; err != nil {
		return fmt.Errorf("failed to seed rule set: %w", err)
	}

	seen := []Topic{
		{ID: "42", Name: "Finance & Banking", LastSeenAt: time.Now().UTC()},
		{ID: "7", Name: "Healthcare", LastSeenAt: time.Now().UTC()},
		{ID: "13", Name: "Consumer Products", LastSeenAt: time.Now().UTC()},
	}
	if err := db.Create(&seen).Error; err != nil {
		return fmt.Errorf("failed to seed topics: %w", err)
	}
	log.Println("Seeded demo credential, rules and topics.")

	// --- Hidden log (~60 rows over 90 days) ---
	pattern, _ := json.Marshal(map[string][]string{"keywords": {"crypto", "bitcoin"}})
	category := HiddenCategory{
		UserID:   "demo-user",
		Name:     "Crypto",
		Pattern:  pattern,
		HiddenAt: time.Now().UTC().Add(-30 * 24 * time.Hour),
	}
	if err := db.Create(&category).Error; err != nil {
		return fmt.Errorf("failed to seed category: %w", err)
	}

	reasons := []string{
		"pays too little for the time required",
		"not in my region",
		"requires in-person attendance",
	}
	for i := 1; i <= 60; i++ {
		entry := HiddenProject{
			UserID:    "demo-user",
			ProjectID: fmt.Sprintf("proj-%04d", i),
			HiddenAt:  time.Now().UTC().Add(-time.Duration(r.Intn(90*24)) * time.Hour),
		}

		switch roll := r.Intn(100); {
		case roll < 40:
			entry.Method = MethodAuto
		case roll < 60:
			entry.Method = MethodManual
		case roll < 75:
			entry.Method = MethodFeedbackBased
			entry.FeedbackText = reasons[r.Intn(len(reasons))]
		case roll < 90:
			entry.Method = MethodCategory
			entry.CategoryName = "Crypto"
		default:
			entry.Method = MethodAutoSimilar
		}

		if err := db.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to seed hidden project: %w", err)
		}
	}
	log.Println("Seeded 60 hidden projects.")

	// --- Preferences ---
	for _, text := range reasons[:2] {
		entry := FeedbackEntry{
			ID:     uuid.NewString(),
			UserID: "demo-user",
			Text:   text,
		}
		if err := db.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to seed feedback: %w", err)
		}
	}
	kept := []KeptProject{
		{UserID: "demo-user", ProjectID: "proj-keep-1"},
		{UserID: "demo-user", ProjectID: "proj-keep-2"},
	}
	if err := db.Create(&kept).Error; err != nil {
		return fmt.Errorf("failed to seed kept projects: %w", err)
	}
	log.Println("Seeded feedback and kept projects.")

	return nil
}

// SeedMinimalTestData loads a handful of fixed rows, enough to exercise the
// stats and timeline queries by hand.
func SeedMinimalTestData(db *gorm.DB) error {
	// Clear
	for _, table := range []string{"hidden_projects", "user_rule_sets", "credentials"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return err
		}
	}

	// Credential + rules
	cred := Credential{
		UserID:       "demo-user",
		SessionToken: "s:demo-session-token",
		ProfileID:    "demo-profile",
		Enabled:      true,
	}
	if err := db.Create(&cred).Error; err != nil {
		return err
	}
	minReward := int64(50)
	rules := UserRuleSet{UserID: "demo-user", MinReward: &minReward, AutoHide: true}
	if err := db.Create(&rules).Error; err != nil {
		return err
	}

	// Hidden log
	now := time.Now().UTC()
	hidden := []HiddenProject{
		{UserID: "demo-user", ProjectID: "proj-0001", Method: MethodManual, HiddenAt: now.Add(-72 * time.Hour)},
		{UserID: "demo-user", ProjectID: "proj-0002", Method: MethodAuto, HiddenAt: now.Add(-48 * time.Hour)},
		{UserID: "demo-user", ProjectID: "proj-0003", Method: MethodFeedbackBased, FeedbackText: "not in my region", HiddenAt: now.Add(-24 * time.Hour)},
		{UserID: "demo-user", ProjectID: "proj-0004", Method: MethodCategory, CategoryName: "Crypto", HiddenAt: now},
	}
	if err := db.Create(&hidden).Error; err != nil {
		return err
	}

	return nil
}
