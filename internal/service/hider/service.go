package hider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avoss/projectwarden/internal/app"
	"github.com/avoss/projectwarden/internal/classifier"
	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/engine"
	svcErr "github.com/avoss/projectwarden/internal/errors"
	"github.com/avoss/projectwarden/internal/marketplace"
	"github.com/avoss/projectwarden/internal/repository"
	"github.com/avoss/projectwarden/internal/utils/pageiter"
)

// Service drives the sync pipeline end to end: fetch the user's visible
// projects, enrich them, evaluate the rule set, hide the matches upstream,
// and keep the caches and the hidden log consistent. The interactive paths
// (preview, single hide, category hide) run through the same cache and log
// operations so their effects compose with background runs.
type Service struct {
	appCtx  *app.AppContext
	log     *slog.Logger
	creds   *repository.CredentialRepository
	lists   *repository.ListCacheRepository
	details *repository.DetailCacheRepository
	hidden  *repository.HiddenLogRepository
	prefs   *repository.PreferenceRepository
	rules   *repository.RuleSetRepository
	topics  *repository.TopicRepository
	ai      classifier.Classifier
	engine  *engine.Engine
	tracker *Tracker
}

// NewService creates the sync service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, ai classifier.Classifier) *Service {
	log := appCtx.Logger.With("component", "hider")
	return &Service{
		appCtx:  appCtx,
		log:     log,
		creds:   repository.NewCredentialRepository(appCtx.DB),
		lists:   repository.NewListCacheRepository(appCtx.DB),
		details: repository.NewDetailCacheRepository(appCtx.DB),
		hidden:  repository.NewHiddenLogRepository(appCtx.DB),
		prefs:   repository.NewPreferenceRepository(appCtx.DB),
		rules:   repository.NewRuleSetRepository(appCtx.DB),
		topics:  repository.NewTopicRepository(appCtx.DB),
		ai:      ai,
		engine:  engine.New(ai, repository.NewAIDecisionRepository(appCtx.DB), log),
		tracker: NewTracker(appCtx.Cfg.Sync.ProgressGrace),
	}
}

// Sync starts a background run for the user and returns once it is claimed.
// A run already in flight for the same user is rejected with a
// failed-precondition error rather than run in parallel. Callers poll
// Progress for the outcome.
//
// The context governs the whole background run, so pass one that outlives
// the triggering request; cancelling it moves the run to the cancelled
// status between pages and between hide calls.
func (s *Service) Sync(ctx context.Context, userID string, rules engine.RuleSet, forceRefresh bool) error {
	if userID == "" {
		return svcErr.InvalidArgument("user id is required")
	}
	if !s.tracker.Begin(userID) {
		return svcErr.FailedPrecondition("a sync for this user is already running")
	}
	go s.run(ctx, userID, rules, forceRefresh)
	return nil
}

// SyncStored runs Sync with the user's saved rules. This is the entry point
// the scheduler uses.
func (s *Service) SyncStored(ctx context.Context, userID string, forceRefresh bool) error {
	rules, err := s.rules.Get(ctx, userID)
	if err != nil {
		return svcErr.Map(err)
	}
	return s.Sync(ctx, userID, rules, forceRefresh)
}

// Progress returns the pollable snapshot of the user's latest run.
func (s *Service) Progress(userID string) Progress {
	return s.tracker.Get(userID)
}

// run executes one sync to completion. It owns the user's progress record
// from Begin to Finish.
func (s *Service) run(ctx context.Context, userID string, rules engine.RuleSet, forceRefresh bool) {
	log := s.log.With("user_id", userID)

	cancelled := func() bool {
		if ctx.Err() == nil {
			return false
		}
		log.Info("sync cancelled")
		s.tracker.Finish(userID, StatusCancelled, "run cancelled")
		return true
	}
	fail := func(msg string, err error) {
		if cancelled() {
			return
		}
		log.Error("sync failed", "stage", msg, "err", err)
		s.tracker.Finish(userID, StatusError, fmt.Sprintf("%s: %v", msg, err))
	}

	cred, err := s.creds.Get(ctx, userID)
	if err != nil {
		fail("load credential", err)
		return
	}
	client := s.clientFor(cred)

	identity, err := client.Verify(ctx)
	if err != nil {
		if marketplace.IsAuthStatus(err) {
			if derr := s.creds.SetEnabled(ctx, userID, false); derr != nil {
				log.Warn("disable credential failed", "err", derr)
			} else {
				log.Warn("session rejected upstream, credential disabled")
			}
		}
		fail("verify session", err)
		return
	}
	profileID := identity.ProfileID
	if profileID == "" {
		profileID = cred.ProfileID
	}
	if profileID == "" {
		fail("resolve profile", errors.New("no profile id on session or stored credential"))
		return
	}

	projects, fetchErrs, err := s.collectProjects(ctx, client, cred, profileID, forceRefresh)
	if err != nil {
		fail("fetch projects", err)
		return
	}
	s.tracker.Update(userID, func(p *Progress) {
		p.Total = len(projects)
		p.Errors = append(p.Errors, fetchErrs...)
	})

	prefs := s.prefsFor(ctx, userID)

	var matches []Match
	var seenTopics []marketplace.Topic
	for _, project := range projects {
		if ctx.Err() != nil {
			break
		}
		enriched := s.enrich(ctx, client, userID, project)
		seenTopics = append(seenTopics, enriched.Topics...)
		verdict := s.engine.ShouldHide(ctx, userID, enriched, rules, prefs)
		s.tracker.Update(userID, func(p *Progress) {
			p.Current++
			if verdict.Hide {
				p.Matched++
			}
		})
		if verdict.Hide {
			matches = append(matches, Match{Project: enriched, Rule: verdict.Rule, Category: verdict.Category})
		}
	}
	if cancelled() {
		return
	}
	if err := s.topics.UpsertSeen(ctx, seenTopics); err != nil {
		log.Warn("topic catalog update failed", "err", err)
	}

	if rules.AutoHide && len(matches) > 0 {
		hiddenIDs := s.hideMatches(ctx, client, userID, matches)
		if ctx.Err() == nil && len(hiddenIDs) > 0 {
			s.afterHide(ctx, userID, hiddenIDs)
			s.reconcile(ctx, client, cred, profileID)
		}
	}
	if cancelled() {
		return
	}

	if err := s.creds.TouchSynced(ctx, userID); err != nil {
		log.Warn("stamp last sync failed", "err", err)
	}
	s.tracker.Finish(userID, StatusCompleted, "")
	log.Info("sync completed",
		"projects", len(projects), "matched", len(matches), "auto_hide", rules.AutoHide)
}

// collectProjects returns the list to evaluate, serving the cache while it
// is fresh and not bypassed. Page failures after the first page come back as
// warnings alongside the partial result. A refresh that fails outright falls
// back to a stale cached list when one exists; with no cache at all the
// failure is fatal to the run.
func (s *Service) collectProjects(
	ctx context.Context,
	client *marketplace.Client,
	cred db.Credential,
	profileID string,
	forceRefresh bool,
) ([]marketplace.Project, []string, error) {
	if !forceRefresh {
		fresh, err := s.lists.IsFresh(ctx, cred.UserID, s.appCtx.Cfg.Sync.CacheMaxAge)
		if err != nil {
			return nil, nil, err
		}
		if fresh {
			cached, ok, err := s.lists.Get(ctx, cred.UserID)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				s.log.Debug("serving cached project list",
					"user_id", cred.UserID, "projects", len(cached.Projects))
				return cached.Projects, nil, nil
			}
		}
	}

	projects, warnings, err := s.refreshList(ctx, client, cred, profileID)
	if err == nil {
		return projects, warnings, nil
	}
	if ctx.Err() != nil {
		return nil, nil, err
	}
	cached, ok, gerr := s.lists.Get(ctx, cred.UserID)
	if gerr != nil || !ok {
		return nil, nil, err
	}
	s.log.Warn("refresh failed, serving stale cached list",
		"user_id", cred.UserID, "cached_at", cached.CachedAt, "err", err)
	return cached.Projects, []string{fmt.Sprintf("refresh: %v", err)}, nil
}

// refreshList drives full pagination and replaces the user's list cache
// with whatever was accumulated, partial or not.
func (s *Service) refreshList(
	ctx context.Context,
	client *marketplace.Client,
	cred db.Credential,
	profileID string,
) ([]marketplace.Project, []string, error) {
	demo, err := client.FetchProfile(ctx, cred.UserID)
	if err != nil {
		s.log.Warn("profile fetch failed, searching without demographic filters",
			"user_id", cred.UserID, "err", err)
		demo = marketplace.DemographicFilters{}
	}

	pageSize := s.appCtx.Cfg.Marketplace.PageSize
	if pageSize <= 0 {
		pageSize = marketplace.DefaultPageSize
	}

	first, totalCount, err := client.Search(ctx, profileID, 1, pageSize, demo)
	if err != nil {
		return nil, nil, err
	}

	window := pageiter.Plan(totalCount, pageSize, marketplace.MaxPages)
	if window.Capped {
		s.log.Warn("pagination capped", "user_id", cred.UserID, "total_count", totalCount)
	}

	all := append([]marketplace.Project(nil), first...)
	var warnings []string
	for page := 2; window.HasPage(page); page++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		results, _, err := client.Search(ctx, profileID, page, pageSize, demo)
		if err != nil {
			s.log.Warn("page fetch failed, keeping partial list",
				"user_id", cred.UserID, "page", page, "err", err)
			warnings = append(warnings, fmt.Sprintf("page %d: %v", page, err))
			break
		}
		all = append(all, results...)
	}

	if err := s.lists.Replace(ctx, cred.UserID, all, totalCount); err != nil {
		return nil, nil, err
	}
	s.log.Info("project list refreshed",
		"user_id", cred.UserID, "projects", len(all), "total_count", totalCount)
	return all, warnings, nil
}

// enrich overlays cached or freshly fetched detail onto the listed project.
// A detail failure leaves the listed fields in place; the project is still
// evaluated.
func (s *Service) enrich(ctx context.Context, client marketplace.API, userID string, project marketplace.Project) marketplace.Project {
	if project.ID == "" {
		return project
	}
	detail, err := s.details.GetOrFetch(ctx, client, project.ID)
	if err != nil {
		s.log.Warn("detail fetch failed", "user_id", userID, "project_id", project.ID, "err", err)
		s.tracker.Update(userID, func(p *Progress) {
			p.Errors = append(p.Errors, fmt.Sprintf("detail %s: %v", project.ID, err))
		})
		return project
	}
	return marketplace.MergeDetail(project, detail)
}

// prefsFor loads the learned preferences a decision consumes: feedback for
// the classifier and the confirmed categories. Either load failing degrades
// to that input missing rather than failing the run.
func (s *Service) prefsFor(ctx context.Context, userID string) engine.Prefs {
	var prefs engine.Prefs

	entries, err := s.prefs.ListFeedback(ctx, userID)
	if err != nil {
		s.log.Warn("feedback load failed, skipping feedback preferences", "user_id", userID, "err", err)
	} else {
		prefs.Feedback = make([]engine.Feedback, 0, len(entries))
		for _, e := range entries {
			prefs.Feedback = append(prefs.Feedback, engine.Feedback{ID: e.ID, Text: e.Text})
		}
	}

	categories, err := s.prefs.ListCategories(ctx, userID)
	if err != nil {
		s.log.Warn("category load failed, skipping category preferences", "user_id", userID, "err", err)
	} else {
		prefs.Categories = make([]engine.CategoryRule, 0, len(categories))
		for _, c := range categories {
			prefs.Categories = append(prefs.Categories, engine.CategoryRule{Name: c.Name, Pattern: c.Pattern})
		}
	}

	return prefs
}

// hideMatches issues the hide mutation for each match, pacing calls with the
// configured delay. Individual failures are recorded in the progress errors
// and skipped. Only confirmed hides are returned and logged.
func (s *Service) hideMatches(ctx context.Context, client marketplace.API, userID string, matches []Match) []string {
	delay := s.appCtx.Cfg.Sync.HideDelay
	var hiddenIDs []string
	for i, match := range matches {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && delay > 0 && !sleepCtx(ctx, delay) {
			break
		}
		id := match.Project.ID
		if err := client.Hide(ctx, id); err != nil {
			s.log.Warn("hide failed", "user_id", userID, "project_id", id, "err", err)
			s.tracker.Update(userID, func(p *Progress) {
				p.Errors = append(p.Errors, fmt.Sprintf("hide %s: %v", id, err))
			})
			continue
		}
		method, category := db.MethodAuto, ""
		switch match.Rule {
		case engine.RuleFeedback:
			method = db.MethodAIAuto
		case engine.RuleCategory:
			method = db.MethodCategory
			category = match.Category
		}
		if err := s.hidden.RecordHidden(ctx, userID, id, method, "", category); err != nil {
			s.log.Warn("hidden log write failed", "user_id", userID, "project_id", id, "err", err)
		}
		hiddenIDs = append(hiddenIDs, id)
		s.tracker.Update(userID, func(p *Progress) { p.Hidden++ })
	}
	return hiddenIDs
}

// afterHide folds confirmed hides back into the cached view and counters.
func (s *Service) afterHide(ctx context.Context, userID string, hiddenIDs []string) {
	if err := s.lists.RemoveProjects(ctx, userID, hiddenIDs); err != nil {
		s.log.Warn("list cache removal failed", "user_id", userID, "err", err)
	}
	if err := s.appCtx.RedisCache.InvalidateHiddenCount(ctx, userID); err != nil {
		s.log.Warn("hidden count invalidation failed", "user_id", userID, "err", err)
	}
}

// reconcile re-fetches the visible list after a hide batch so the cache
// agrees with the server's view. Failure here never fails the run.
func (s *Service) reconcile(ctx context.Context, client *marketplace.Client, cred db.Credential, profileID string) {
	if _, _, err := s.refreshList(ctx, client, cred, profileID); err != nil {
		s.log.Warn("post-hide reconcile failed", "user_id", cred.UserID, "err", err)
	}
}

// KeepAlive pings the marketplace session and stamps the credential. An
// auth rejection disables the credential so the scheduler stops retrying a
// dead session.
func (s *Service) KeepAlive(ctx context.Context, userID string) error {
	cred, err := s.creds.Get(ctx, userID)
	if err != nil {
		return svcErr.Map(err)
	}
	client := s.clientFor(cred)
	if err := client.KeepAlive(ctx); err != nil {
		if marketplace.IsAuthStatus(err) {
			if derr := s.creds.SetEnabled(ctx, userID, false); derr != nil {
				s.log.Warn("disable credential failed", "user_id", userID, "err", derr)
			}
			return svcErr.Unauthenticated("session expired", err)
		}
		return svcErr.Unavailable("keep-alive ping", err)
	}
	return s.creds.TouchKeepAlive(ctx, userID)
}

// EnabledUsers lists the user IDs with an enabled stored credential.
func (s *Service) EnabledUsers(ctx context.Context) ([]string, error) {
	creds, err := s.creds.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(creds))
	for _, cred := range creds {
		ids = append(ids, cred.UserID)
	}
	return ids, nil
}

// UsersDueRefresh lists the enabled users whose cached list has gone stale.
// The scheduler syncs these and leaves everyone else alone until their cache
// ages out.
func (s *Service) UsersDueRefresh(ctx context.Context) ([]string, error) {
	users, err := s.EnabledUsers(ctx)
	if err != nil {
		return nil, err
	}
	due := make([]string, 0, len(users))
	for _, userID := range users {
		fresh, err := s.lists.IsFresh(ctx, userID, s.appCtx.Cfg.Sync.CacheMaxAge)
		if err != nil {
			return nil, err
		}
		if !fresh {
			due = append(due, userID)
		}
	}
	return due, nil
}

func (s *Service) clientFor(cred db.Credential) *marketplace.Client {
	return marketplace.NewClient(s.appCtx.Cfg.Marketplace, marketplace.Credential{
		SessionToken:  cred.SessionToken,
		Authorization: cred.Authorization,
	}, s.log)
}

// sleepCtx waits for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
