package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avoss/projectwarden/internal/db"
)

// CredentialRepository stores marketplace sessions per user. The background
// refresher drives itself off ListEnabled.
type CredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new repository bound to the given DB connection.
func NewCredentialRepository(database *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: database}
}

// Save upserts a user's credential. A re-save after re-login overwrites the
// token and re-enables the account.
func (r *CredentialRepository) Save(ctx context.Context, cred db.Credential) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"session_token", "authorization", "profile_id", "first_name", "enabled", "updated_at",
			}),
		}).
		Create(&cred).Error
}

// Get returns one user's credential. Missing rows surface as
// gorm.ErrRecordNotFound for the error mapper.
func (r *CredentialRepository) Get(ctx context.Context, userID string) (db.Credential, error) {
	var cred db.Credential
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&cred).Error
	return cred, err
}

// ListEnabled returns every credential eligible for background refresh.
func (r *CredentialRepository) ListEnabled(ctx context.Context) ([]db.Credential, error) {
	var creds []db.Credential
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("user_id ASC").
		Find(&creds).Error
	return creds, err
}

// SetEnabled flips background refresh for a user. Disabling is how an
// expired session stops generating noise until the user logs in again.
func (r *CredentialRepository) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	return r.db.WithContext(ctx).
		Model(&db.Credential{}).
		Where("user_id = ?", userID).
		Update("enabled", enabled).Error
}

// TouchSynced stamps the last successful sync.
func (r *CredentialRepository) TouchSynced(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&db.Credential{}).
		Where("user_id = ?", userID).
		Update("last_synced", &now).Error
}

// TouchKeepAlive stamps the last successful session ping.
func (r *CredentialRepository) TouchKeepAlive(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&db.Credential{}).
		Where("user_id = ?", userID).
		Update("last_keep_alive", &now).Error
}
