package engine

import (
	"context"
	"log/slog"

	"github.com/avoss/projectwarden/internal/logger"
	"github.com/avoss/projectwarden/internal/marketplace"
)

// Rule identifies which check decided a project's fate. Logged with every
// hide so batch runs can be audited afterwards.
type Rule string

const (
	RuleNone          Rule = ""
	RuleMinReward     Rule = "min_reward"
	RuleUndefinedRate Rule = "undefined_rate"
	RuleHourlyRate    Rule = "hourly_rate"
	RuleNotRemote     Rule = "not_remote"
	RuleTopic         Rule = "topic"
	RuleCategory      Rule = "category"
	RuleFeedback      Rule = "ai_feedback"
)

// RuleSet is one user's filter configuration. Nil thresholds mean "no
// opinion"; a nil Topics map and an empty one behave the same.
type RuleSet struct {
	MinReward     *int64
	MinHourlyRate *int64
	RemoteOnly    bool
	Topics        map[string]struct{}
	AIAssisted    bool
	AutoHide      bool
}

// Feedback is one raw feedback entry as the classifier and the feedback
// hash consume it.
type Feedback struct {
	ID   string
	Text string
}

// CategoryRule pairs a confirmed hidden category with its matching pattern.
type CategoryRule struct {
	Name    string
	Pattern Pattern
}

// Prefs carries the learned-preference inputs to a decision: the raw
// feedback the classifier consumes and the categories the user confirmed.
type Prefs struct {
	Feedback   []Feedback
	Categories []CategoryRule
}

// Verdict is the outcome of evaluating one project. Category is set when
// the category rule matched.
type Verdict struct {
	Hide     bool
	Rule     Rule
	Category string
}

// Classifier decides, from the user's accumulated feedback, whether a
// project matches the reasons they hid things before. Implementations may
// be remote and slow; the engine only consults one after every cheap check
// has passed.
type Classifier interface {
	Classify(ctx context.Context, project marketplace.Project, feedbackTexts []string) (bool, error)
}

// DecisionCache remembers classifier verdicts keyed by the feedback hash
// current at classification time. A lookup hit means the stored hash equals
// the supplied one.
type DecisionCache interface {
	Lookup(ctx context.Context, userID, projectID, feedbackHash string) (shouldHide bool, ok bool, err error)
	Store(ctx context.Context, userID, projectID, feedbackHash string, shouldHide bool) error
}

// EvaluateRules runs the deterministic checks in order and short-circuits
// on the first match.
//
// Behavior:
//  1. Reward below MinReward hides.
//  2. With MinHourlyRate set: zero required minutes hides (rate is
//     undefined); otherwise reward/minutes*60 below the threshold hides.
//  3. With RemoteOnly set: a known-false remote flag hides. An unknown
//     flag never does.
//  4. Any topic overlap with the suppressed set hides.
//
// Identical inputs always produce the identical verdict.
func EvaluateRules(p marketplace.Project, rules RuleSet) Verdict {
	if rules.MinReward != nil && p.Reward < *rules.MinReward {
		return Verdict{Hide: true, Rule: RuleMinReward}
	}

	if rules.MinHourlyRate != nil {
		if p.TimeMinutes <= 0 {
			return Verdict{Hide: true, Rule: RuleUndefinedRate}
		}
		rate := float64(p.Reward) / float64(p.TimeMinutes) * 60
		if rate < float64(*rules.MinHourlyRate) {
			return Verdict{Hide: true, Rule: RuleHourlyRate}
		}
	}

	if rules.RemoteOnly && p.Remote != nil && !*p.Remote {
		return Verdict{Hide: true, Rule: RuleNotRemote}
	}

	if len(rules.Topics) > 0 {
		for _, t := range p.Topics {
			if _, ok := rules.Topics[t.ID]; ok {
				return Verdict{Hide: true, Rule: RuleTopic}
			}
		}
	}

	return Verdict{}
}

// Engine layers the feedback-based classifier check on top of the
// deterministic rules, with a per-(user, project) verdict cache so the
// classifier runs at most once per feedback state.
type Engine struct {
	ai        Classifier
	decisions DecisionCache
	log       *slog.Logger
}

// New builds an engine. ai and decisions may be nil; the feedback check is
// skipped when either is absent and the engine degrades to EvaluateRules.
func New(ai Classifier, decisions DecisionCache, log *slog.Logger) *Engine {
	if log == nil {
		log = logger.With("component", "decision_engine")
	}
	return &Engine{ai: ai, decisions: decisions, log: log}
}

// ShouldHide evaluates one project against one user's rules and learned
// preferences.
//
// Behavior:
//   - Deterministic checks run first and short-circuit.
//   - A confirmed category whose pattern matches the project hides it under
//     that category's name, before any classifier call.
//   - The classifier is consulted only when AIAssisted is set and at least
//     one feedback entry exists.
//   - A cached verdict under the current feedback hash is returned without
//     calling the classifier.
//   - Classifier or cache failures degrade to "no match" and are logged,
//     never surfaced: one flaky classification must not sink a batch.
func (e *Engine) ShouldHide(ctx context.Context, userID string, p marketplace.Project, rules RuleSet, prefs Prefs) Verdict {
	if v := EvaluateRules(p, rules); v.Hide {
		return v
	}

	for _, cat := range prefs.Categories {
		if cat.Pattern.Matches(p) {
			return Verdict{Hide: true, Rule: RuleCategory, Category: cat.Name}
		}
	}

	if !rules.AIAssisted || len(prefs.Feedback) == 0 || e.ai == nil || p.ID == "" {
		return Verdict{}
	}

	hash := FeedbackHash(prefs.Feedback)

	if e.decisions != nil {
		hide, ok, err := e.decisions.Lookup(ctx, userID, p.ID, hash)
		if err != nil {
			e.log.Warn("decision cache lookup failed", "user_id", userID, "project_id", p.ID, "err", err)
		} else if ok {
			return feedbackVerdict(hide)
		}
	}

	texts := make([]string, 0, len(prefs.Feedback))
	for _, f := range prefs.Feedback {
		texts = append(texts, f.Text)
	}

	hide, err := e.ai.Classify(ctx, p, texts)
	if err != nil {
		e.log.Warn("classifier unavailable, skipping feedback check", "project_id", p.ID, "err", err)
		return Verdict{}
	}

	if e.decisions != nil {
		if err := e.decisions.Store(ctx, userID, p.ID, hash, hide); err != nil {
			e.log.Warn("decision cache store failed", "user_id", userID, "project_id", p.ID, "err", err)
		}
	}

	return feedbackVerdict(hide)
}

func feedbackVerdict(hide bool) Verdict {
	if hide {
		return Verdict{Hide: true, Rule: RuleFeedback}
	}
	return Verdict{}
}
