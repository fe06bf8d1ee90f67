package db

import (
	"time"
)

// Hiding methods recorded on HiddenProject rows. The taxonomy separates
// user-initiated hides from rule-driven batch hides for later reporting.
const (
	MethodManual        = "manual"
	MethodAuto          = "auto"
	MethodAutoSimilar   = "auto_similar"
	MethodCategory      = "category"
	MethodFeedbackBased = "feedback_based"
	MethodAIAuto        = "ai_auto"
	MethodApplied       = "applied"
)

// HiddenProject is the durable record of "this project is hidden for this user".
//
// Composite PK: (UserID, ProjectID)
//   - Ensures a single row per pair regardless of how often a hide is
//     confirmed or retried (overwrite guarantee).
//
// Indexes:
//   - idx_hidden_user_method(user_id, method)
//     Optimizes count-by-method stats aggregation.
//   - idx_hidden_user_at(user_id, hidden_at DESC)
//     Optimizes "recently hidden" and timeline queries.
//
// Fields:
//   - Method: how the hide happened (manual, auto, auto_similar, category,
//     feedback_based, ai_auto, applied).
//   - FeedbackText: optional free-text reason the user gave.
//   - CategoryName: set when the hide came from a category pattern.
//   - HiddenAt: refreshed on every confirmation.
//   - CreatedAt: set once, when the pair was first recorded.
type HiddenProject struct {
	UserID       string    `gorm:"primaryKey;size:64;index:idx_hidden_user_method,priority:1;index:idx_hidden_user_at,priority:1"`
	ProjectID    string    `gorm:"primaryKey;size:64"`
	Method       string    `gorm:"size:32;not null;index:idx_hidden_user_method,priority:2"`
	FeedbackText string    `gorm:"type:text"`
	CategoryName string    `gorm:"size:128"`
	HiddenAt     time.Time `gorm:"not null;index:idx_hidden_user_at,priority:2,sort:desc"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// ProjectList holds one user's last-known visible project list, serialized as
// JSON. CachedAt moves only on a full refresh; LastUpdated on every mutation.
type ProjectList struct {
	UserID      string    `gorm:"primaryKey;size:64"`
	Projects    []byte    `gorm:"type:longblob"`
	TotalCount  int       `gorm:"not null"`
	CachedAt    time.Time `gorm:"not null"`
	LastUpdated time.Time `gorm:"not null"`
}

// ProjectDetail caches one project's enrichment payload. No TTL; corrected on
// the next successful fetch rather than expired.
type ProjectDetail struct {
	ProjectID string    `gorm:"primaryKey;size:64"`
	Payload   []byte    `gorm:"type:longblob"`
	CachedAt  time.Time `gorm:"not null"`
}

// UserRuleSet persists a user's hide rules so scheduled refreshes can run
// without an interactive caller. RemoteOnly=false means "unset".
type UserRuleSet struct {
	UserID        string `gorm:"primaryKey;size:64"`
	MinReward     *int64
	MinHourlyRate *int64
	RemoteOnly    bool
	Topics        []byte `gorm:"type:text"`
	AIAssisted    bool
	AutoHide      bool
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// FeedbackEntry is one free-text hide reason. The UUID primary key is the
// stable handle used for edits and deletes.
type FeedbackEntry struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:64;not null;index:idx_feedback_user"`
	ProjectID string    `gorm:"size:64"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// HiddenCategory names a user-confirmed category hide with its matching
// pattern (JSON). Dedup by (UserID, Name).
type HiddenCategory struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"primaryKey;size:128"`
	Pattern   []byte    `gorm:"type:text;not null"`
	HiddenAt  time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// KeptProject marks a project the user explicitly chose to keep; negative
// signal for the learners.
type KeptProject struct {
	UserID    string    `gorm:"primaryKey;size:64"`
	ProjectID string    `gorm:"primaryKey;size:64"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// QuestionAnswer records the user's yes/no reply to a generated clarifying
// question together with the pattern the question was derived from.
type QuestionAnswer struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:64;not null;index:idx_question_user"`
	ProjectID string    `gorm:"size:64"`
	Question  string    `gorm:"type:text;not null"`
	Answer    bool      `gorm:"not null"`
	Pattern   []byte    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// LearnedExclusion is a pattern the user rejected ("no" answer); similarity
// search subtracts these.
type LearnedExclusion struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:64;not null;index:idx_exclusion_user"`
	Pattern   []byte    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// AIDecision caches one classifier verdict for (user, project), valid while
// the user's feedback hash is unchanged.
type AIDecision struct {
	UserID       string    `gorm:"primaryKey;size:64"`
	ProjectID    string    `gorm:"primaryKey;size:64"`
	FeedbackHash string    `gorm:"size:64;not null"`
	ShouldHide   bool      `gorm:"not null"`
	CachedAt     time.Time `gorm:"not null"`
}

// Credential is a user's stored marketplace session. Enabled credentials are
// picked up by the background refresh scheduler.
type Credential struct {
	UserID        string `gorm:"primaryKey;size:64"`
	SessionToken  string `gorm:"size:512;not null"`
	Authorization string `gorm:"size:512"`
	ProfileID     string `gorm:"size:64"`
	FirstName     string `gorm:"size:64"`
	Enabled       bool   `gorm:"not null"`
	LastSynced    *time.Time
	LastKeepAlive *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Topic is a marketplace topic observed on at least one fetched project.
type Topic struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Name       string    `gorm:"size:255;not null"`
	LastSeenAt time.Time `gorm:"not null"`
}
