package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avoss/projectwarden/internal/config"
)

// NewDB initializes the database connection from config.
//
// Driver "mysql" uses the assembled DSN; "sqlite" opens cfg.DB.Path (":memory:"
// allowed, handy for local runs). Schema is kept in sync via AutoMigrate.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DB.Path)
	case "mysql", "":
		dialector = mysql.Open(cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DB.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate ensures the schema matches the models.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&HiddenProject{},
		&ProjectList{},
		&ProjectDetail{},
		&UserRuleSet{},
		&FeedbackEntry{},
		&HiddenCategory{},
		&KeptProject{},
		&QuestionAnswer{},
		&LearnedExclusion{},
		&AIDecision{},
		&Credential{},
		&Topic{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
