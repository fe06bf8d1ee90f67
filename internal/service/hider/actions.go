package hider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avoss/projectwarden/internal/classifier"
	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/engine"
	svcErr "github.com/avoss/projectwarden/internal/errors"
	"github.com/avoss/projectwarden/internal/marketplace"
	"github.com/avoss/projectwarden/internal/repository"
)

// Match pairs a project with the rule that flagged it. Category is set when
// a confirmed category's pattern matched.
type Match struct {
	Project  marketplace.Project `json:"project"`
	Rule     engine.Rule         `json:"rule"`
	Category string              `json:"category,omitempty"`
}

// Question is a clarifying follow-up offered after a feedback-driven hide.
// An empty Text means no question could be derived. SimilarCount reports how
// many currently-visible projects the pattern would also hide.
type Question struct {
	Text         string         `json:"text"`
	Pattern      engine.Pattern `json:"pattern"`
	SimilarCount int            `json:"similar_count"`
}

const maxRecommendations = 10

// Preview evaluates the rules against the user's current list without
// mutating anything upstream: the same decision path as a sync with the
// hide step skipped.
func (s *Service) Preview(ctx context.Context, userID string, rules engine.RuleSet) ([]Match, error) {
	cred, err := s.creds.Get(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	client := s.clientFor(cred)

	profileID := cred.ProfileID
	if profileID == "" {
		identity, err := client.Verify(ctx)
		if err != nil {
			return nil, svcErr.Unauthenticated("verify session", err)
		}
		profileID = identity.ProfileID
	}

	projects, _, err := s.collectProjects(ctx, client, cred, profileID, false)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	prefs := s.prefsFor(ctx, userID)
	var matches []Match
	for _, project := range projects {
		enriched := s.enrich(ctx, client, userID, project)
		if verdict := s.engine.ShouldHide(ctx, userID, enriched, rules, prefs); verdict.Hide {
			matches = append(matches, Match{Project: enriched, Rule: verdict.Rule, Category: verdict.Category})
		}
	}
	return matches, nil
}

// HideOne hides a single project right away: a batch of size one through
// the same cache and log operations as a sync.
//
// Behavior:
//   - With feedback the hide is recorded as feedback_based and the text is
//     stored for the learners; without it, as manual.
//   - When the classifier can derive a broader pattern from the feedback, a
//     clarifying question comes back for the user to confirm or reject.
//
// Example:
//
//	q, _ := svc.HideOne(ctx, "u1", "p9", "too far away, I'm not in California")
//	// q.Text == "Hide all future projects matching in-person, california?"
func (s *Service) HideOne(ctx context.Context, userID, projectID, feedback string) (Question, error) {
	if projectID == "" {
		return Question{}, svcErr.InvalidArgument("project id is required")
	}
	cred, err := s.creds.Get(ctx, userID)
	if err != nil {
		return Question{}, svcErr.Map(err)
	}
	client := s.clientFor(cred)

	if err := client.Hide(ctx, projectID); err != nil {
		if marketplace.IsAuthStatus(err) {
			return Question{}, svcErr.Unauthenticated("session rejected", err)
		}
		return Question{}, svcErr.Unavailable("hide project", err)
	}

	method := db.MethodManual
	if feedback != "" {
		method = db.MethodFeedbackBased
	}
	if err := s.hidden.RecordHidden(ctx, userID, projectID, method, feedback, ""); err != nil {
		return Question{}, svcErr.Map(err)
	}
	s.afterHide(ctx, userID, []string{projectID})

	if feedback == "" {
		return Question{}, nil
	}
	if _, err := s.prefs.StoreFeedback(ctx, userID, projectID, feedback); err != nil {
		s.log.Warn("feedback store failed", "user_id", userID, "project_id", projectID, "err", err)
	}
	return s.deriveQuestion(ctx, client, userID, projectID, feedback), nil
}

// deriveQuestion asks the classifier for the reusable pattern behind the
// feedback and phrases it as a yes/no follow-up. No classifier, no question.
// A pattern the user already rejected is not proposed again, and the count
// of visible projects it would also hide rides along for the caller's
// "also hide these" offer.
func (s *Service) deriveQuestion(ctx context.Context, client marketplace.API, userID, projectID, feedback string) Question {
	project, err := s.details.GetOrFetch(ctx, client, projectID)
	if err != nil {
		s.log.Warn("question skipped, detail unavailable",
			"user_id", userID, "project_id", projectID, "err", err)
		return Question{}
	}
	pattern, err := s.ai.DerivePattern(ctx, project, feedback)
	if err != nil {
		if !errors.Is(err, classifier.ErrUnavailable) {
			s.log.Warn("pattern derivation failed", "user_id", userID, "err", err)
		}
		return Question{}
	}
	if !pattern.Valid() {
		return Question{}
	}
	if s.patternExcluded(ctx, userID, pattern) {
		s.log.Debug("question suppressed by learned exclusion", "user_id", userID, "project_id", projectID)
		return Question{}
	}
	return Question{
		Text:         questionText(pattern),
		Pattern:      pattern,
		SimilarCount: s.similarCount(ctx, userID, pattern, projectID),
	}
}

// patternExcluded reports whether the pattern shares a term with one the
// user already answered "no" to. An exclusion load failure only disables
// the suppression.
func (s *Service) patternExcluded(ctx context.Context, userID string, pattern engine.Pattern) bool {
	exclusions, err := s.prefs.Exclusions(ctx, userID)
	if err != nil {
		s.log.Warn("exclusion load failed", "user_id", userID, "err", err)
		return false
	}
	for _, excluded := range exclusions {
		if pattern.Overlaps(excluded) {
			return true
		}
	}
	return false
}

// similarCount counts the cached visible projects the pattern matches,
// beyond the one that triggered it.
func (s *Service) similarCount(ctx context.Context, userID string, pattern engine.Pattern, excludeID string) int {
	cached, ok, err := s.lists.Get(ctx, userID)
	if err != nil {
		s.log.Warn("similar count skipped, list cache unavailable", "user_id", userID, "err", err)
		return 0
	}
	if !ok {
		return 0
	}
	return len(engine.MatchingProjects(cached.Projects, pattern, excludeID))
}

// questionText phrases a derived pattern as a yes/no question on its first
// few terms.
func questionText(pattern engine.Pattern) string {
	var terms []string
	terms = append(terms, pattern.Keywords...)
	terms = append(terms, pattern.Regions...)
	terms = append(terms, pattern.Professions...)
	terms = append(terms, pattern.Industries...)
	if len(terms) > 3 {
		terms = terms[:3]
	}
	return fmt.Sprintf("Hide all future projects matching %s?", strings.Join(terms, ", "))
}

// AnswerQuestion records the user's reply to a clarifying question. A "yes"
// immediately hides every cached project the pattern matches, skipping ones
// already hidden; a "no" stores the pattern as a learned exclusion so it
// stops being proposed. Returns the answer's stable ID and how many
// projects were hidden.
func (s *Service) AnswerQuestion(
	ctx context.Context,
	userID, projectID, question string,
	answer bool,
	pattern engine.Pattern,
) (string, int, error) {
	if question == "" {
		return "", 0, svcErr.InvalidArgument("question text is required")
	}
	qaID, err := s.prefs.StoreQuestionAnswer(ctx, userID, projectID, question, answer, pattern)
	if err != nil {
		return "", 0, svcErr.Map(err)
	}
	if !answer || !pattern.Valid() {
		return qaID, 0, nil
	}
	hiddenCount, err := s.hideMatchingCached(ctx, userID, pattern, projectID, db.MethodAutoSimilar, "")
	return qaID, hiddenCount, err
}

// HideCategory records a confirmed category and hides every cached project
// matching its pattern.
func (s *Service) HideCategory(ctx context.Context, userID, name string, pattern engine.Pattern) (int, error) {
	if name == "" {
		return 0, svcErr.InvalidArgument("category name is required")
	}
	if !pattern.Valid() {
		return 0, svcErr.InvalidArgument("category pattern needs at least one term")
	}
	if err := s.prefs.StoreCategory(ctx, userID, name, pattern); err != nil {
		return 0, svcErr.Map(err)
	}
	return s.hideMatchingCached(ctx, userID, pattern, "", db.MethodCategory, name)
}

// hideMatchingCached hides every not-yet-hidden cached project the pattern
// matches, recording each hide under method. Individual failures are logged
// and skipped; the count of confirmed hides is returned.
func (s *Service) hideMatchingCached(
	ctx context.Context,
	userID string,
	pattern engine.Pattern,
	excludeID, method, categoryName string,
) (int, error) {
	cred, err := s.creds.Get(ctx, userID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	client := s.clientFor(cred)

	cached, ok, err := s.lists.Get(ctx, userID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	if !ok {
		return 0, nil
	}

	alreadyHidden, err := s.hidden.HiddenIDs(ctx, userID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	hiddenSet := make(map[string]struct{}, len(alreadyHidden))
	for _, id := range alreadyHidden {
		hiddenSet[id] = struct{}{}
	}

	delay := s.appCtx.Cfg.Sync.HideDelay
	var hiddenIDs []string
	for _, project := range engine.MatchingProjects(cached.Projects, pattern, excludeID) {
		if _, done := hiddenSet[project.ID]; done {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if len(hiddenIDs) > 0 && delay > 0 && !sleepCtx(ctx, delay) {
			break
		}
		if err := client.Hide(ctx, project.ID); err != nil {
			s.log.Warn("hide failed", "user_id", userID, "project_id", project.ID, "err", err)
			continue
		}
		if err := s.hidden.RecordHidden(ctx, userID, project.ID, method, "", categoryName); err != nil {
			s.log.Warn("hidden log write failed", "user_id", userID, "project_id", project.ID, "err", err)
		}
		hiddenIDs = append(hiddenIDs, project.ID)
	}
	if len(hiddenIDs) > 0 {
		s.afterHide(ctx, userID, hiddenIDs)
	}
	return len(hiddenIDs), nil
}

// Recommendations samples the cached list and asks the classifier for hide
// category suggestions, keeping only ones that match at least one cached
// project and that the user has not already rejected, strongest first.
func (s *Service) Recommendations(ctx context.Context, userID string) ([]classifier.CategorySuggestion, error) {
	cached, ok, err := s.lists.Get(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !ok || len(cached.Projects) == 0 {
		return nil, svcErr.FailedPrecondition("no cached projects to analyze, run a sync first")
	}

	suggestions, err := s.ai.SuggestCategories(ctx, cached.Projects)
	if err != nil {
		if errors.Is(err, classifier.ErrUnavailable) {
			return nil, svcErr.FailedPrecondition("classifier is not configured")
		}
		return nil, svcErr.Unavailable("suggest categories", err)
	}

	kept := make([]classifier.CategorySuggestion, 0, len(suggestions))
	for _, suggestion := range suggestions {
		if s.patternExcluded(ctx, userID, suggestion.Pattern) {
			continue
		}
		count := len(engine.MatchingProjects(cached.Projects, suggestion.Pattern, ""))
		if count == 0 {
			continue
		}
		suggestion.ProjectCount = count
		kept = append(kept, suggestion)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].ProjectCount > kept[j].ProjectCount })
	if len(kept) > maxRecommendations {
		kept = kept[:maxRecommendations]
	}
	return kept, nil
}

// HiddenCount returns how many projects the user has hidden, served from
// Redis while the counter is warm and recomputed from the log on a miss.
func (s *Service) HiddenCount(ctx context.Context, userID string) (int64, error) {
	count, hit, err := s.appCtx.RedisCache.GetHiddenCount(ctx, userID)
	if err != nil {
		s.log.Warn("hidden count cache read failed", "user_id", userID, "err", err)
	} else if hit {
		return count, nil
	}

	count, err = s.hidden.Count(ctx, userID)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	if err := s.appCtx.RedisCache.UpdateHiddenCount(ctx, userID, count); err != nil {
		s.log.Warn("hidden count cache write failed", "user_id", userID, "err", err)
	}
	return count, nil
}

// Stats returns the user's hidden-log summary.
func (s *Service) Stats(ctx context.Context, userID string) (repository.HiddenStats, error) {
	return s.hidden.Stats(ctx, userID)
}

// Timeline returns the user's hides bucketed by day, week, or month.
func (s *Service) Timeline(ctx context.Context, userID, groupBy string, start, end *time.Time) ([]repository.TimelineBucket, error) {
	return s.hidden.Timeline(ctx, userID, groupBy, start, end)
}

// CacheStats reports the state of the user's list cache.
func (s *Service) CacheStats(ctx context.Context, userID string) (repository.ListStats, error) {
	return s.lists.Stats(ctx, userID)
}

// ListTopics returns every topic observed across fetched projects, for
// building the topic-suppression part of a rule set.
func (s *Service) ListTopics(ctx context.Context) ([]db.Topic, error) {
	topics, err := s.topics.List(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return topics, nil
}
