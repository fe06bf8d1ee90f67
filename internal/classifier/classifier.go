package classifier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/avoss/projectwarden/internal/config"
	"github.com/avoss/projectwarden/internal/engine"
	"github.com/avoss/projectwarden/internal/logger"
	"github.com/avoss/projectwarden/internal/marketplace"
)

// ErrUnavailable is returned by the disabled classifier for operations that
// cannot degrade to a useful default. Callers log it and move on.
var ErrUnavailable = errors.New("classifier unavailable")

// CategorySuggestion is one AI-proposed hideable category. ProjectCount is
// filled in by the caller, which knows the user's current project list.
type CategorySuggestion struct {
	Name         string         `json:"category_name"`
	Description  string         `json:"description"`
	Pattern      engine.Pattern `json:"category_pattern"`
	ProjectCount int            `json:"project_count"`
}

// Classifier is the AI collaborator: it turns free text and project
// descriptions into hide verdicts and matching patterns.
type Classifier interface {
	// Classify reports whether the project matches the reasons in the
	// user's past feedback. Satisfies the decision engine's collaborator
	// contract.
	Classify(ctx context.Context, project marketplace.Project, feedbackTexts []string) (bool, error)

	// DerivePattern extracts a similarity pattern from one piece of hide
	// feedback about one project.
	DerivePattern(ctx context.Context, project marketplace.Project, feedbackText string) (engine.Pattern, error)

	// SuggestCategories proposes hideable categories from a sample of the
	// user's current projects.
	SuggestCategories(ctx context.Context, projects []marketplace.Project) ([]CategorySuggestion, error)
}

// New picks an implementation from config: the Grok-backed classifier when
// an API key is configured, otherwise the disabled stub.
func New(cfg config.AIConfig, log *slog.Logger) Classifier {
	if log == nil {
		log = logger.With("component", "classifier")
	}
	if cfg.APIKey == "" {
		log.Info("no AI api key configured, feedback-based hiding disabled")
		return Disabled{}
	}
	return NewGrok(cfg, log)
}

// Disabled is the classifier used when no API key is configured. Hide
// decisions come back as a definite "no" so the decision engine keeps
// working on deterministic rules alone.
type Disabled struct{}

func (Disabled) Classify(context.Context, marketplace.Project, []string) (bool, error) {
	return false, nil
}

func (Disabled) DerivePattern(context.Context, marketplace.Project, string) (engine.Pattern, error) {
	return engine.Pattern{}, ErrUnavailable
}

func (Disabled) SuggestCategories(context.Context, []marketplace.Project) ([]CategorySuggestion, error) {
	return nil, ErrUnavailable
}
