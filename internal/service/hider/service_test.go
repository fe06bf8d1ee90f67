package hider_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/avoss/projectwarden/internal/app"
	"github.com/avoss/projectwarden/internal/cache"
	"github.com/avoss/projectwarden/internal/classifier"
	"github.com/avoss/projectwarden/internal/config"
	"github.com/avoss/projectwarden/internal/db"
	"github.com/avoss/projectwarden/internal/engine"
	svcErr "github.com/avoss/projectwarden/internal/errors"
	"github.com/avoss/projectwarden/internal/marketplace"
	"github.com/avoss/projectwarden/internal/repository"
	"github.com/avoss/projectwarden/internal/service/hider"
)

//
// Test doubles
//

// fakeMarketplace is an in-process marketplace serving the endpoints the
// client talks to. Hidden projects drop out of search results, the same way
// the real marketplace behaves with showHiddenProjects=false.
type fakeMarketplace struct {
	mu          sync.Mutex
	order       []string
	projects    map[string]map[string]any
	hidden      map[string]bool
	failPages   map[int]bool
	hideFail    map[string]bool
	verifyCode  int
	hideCode    int
	searchDelay time.Duration
	searchCalls int
	hideCalls   int
}

func newFakeMarketplace() *fakeMarketplace {
	return &fakeMarketplace{
		projects:  make(map[string]map[string]any),
		hidden:    make(map[string]bool),
		failPages: make(map[int]bool),
		hideFail:  make(map[string]bool),
	}
}

func (f *fakeMarketplace) addProject(id, name string, reward, minutes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, id)
	f.projects[id] = map[string]any{
		"id":                     id,
		"name":                   name,
		"description":            "a study about " + name,
		"respondentRemuneration": reward,
		"timeMinutesRequired":    minutes,
	}
}

func (f *fakeMarketplace) hiddenIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.hidden {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (f *fakeMarketplace) searches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchCalls
}

func (f *fakeMarketplace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/v2/respondents/me":
		f.handleIdentity(w)
	case strings.HasPrefix(r.URL.Path, "/api/v4/profiles/user/"):
		writeJSON(w, map[string]any{"response": map[string]any{"data": map[string]any{
			"gender": "female", "country": "US",
		}}})
	case strings.HasPrefix(r.URL.Path, "/api/v4/matching/projects/search/profiles/"):
		f.handleSearch(w, r)
	case strings.HasPrefix(r.URL.Path, "/v2/profiles/project/") && strings.HasSuffix(r.URL.Path, "/hidden"):
		f.handleHide(w, r)
	case strings.HasPrefix(r.URL.Path, "/v2/projects/"):
		f.handleDetail(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeMarketplace) handleIdentity(w http.ResponseWriter) {
	f.mu.Lock()
	code := f.verifyCode
	f.mu.Unlock()
	if code != 0 {
		w.WriteHeader(code)
		return
	}
	writeJSON(w, map[string]any{"response": map[string]any{
		"id":        "u1",
		"firstName": "Alex",
		"profile":   map[string]any{"id": "prof-1"},
	}})
}

func (f *fakeMarketplace) handleSearch(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	f.mu.Lock()
	f.searchCalls++
	delay := f.searchDelay
	fail := f.failPages[page]
	var visible []map[string]any
	for _, id := range f.order {
		if !f.hidden[id] {
			visible = append(visible, f.projects[id])
		}
	}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(visible) {
		start = len(visible)
	}
	if end > len(visible) {
		end = len(visible)
	}
	writeJSON(w, map[string]any{
		"results":    visible[start:end],
		"totalCount": len(visible),
	})
}

func (f *fakeMarketplace) handleHide(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v2/profiles/project/"), "/hidden")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hideCalls++
	if f.hideCode != 0 {
		w.WriteHeader(f.hideCode)
		return
	}
	if f.hideFail[id] {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	f.hidden[id] = true
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeMarketplace) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v2/projects/")
	f.mu.Lock()
	project, ok := f.projects[id]
	f.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, project)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// stubAI is a scriptable classifier.
type stubAI struct {
	mu            sync.Mutex
	classifyHide  bool
	classifyErr   error
	classifyCalls int
	pattern       engine.Pattern
	patternErr    error
	suggestions   []classifier.CategorySuggestion
	suggestErr    error
}

func (a *stubAI) Classify(_ context.Context, _ marketplace.Project, _ []string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.classifyCalls++
	return a.classifyHide, a.classifyErr
}

func (a *stubAI) DerivePattern(_ context.Context, _ marketplace.Project, _ string) (engine.Pattern, error) {
	return a.pattern, a.patternErr
}

func (a *stubAI) SuggestCategories(_ context.Context, _ []marketplace.Project) ([]classifier.CategorySuggestion, error) {
	return a.suggestions, a.suggestErr
}

func (a *stubAI) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.classifyCalls
}

//
// Harness
//

type env struct {
	svc   *hider.Service
	dbase *gorm.DB
	mkt   *fakeMarketplace
	redis *cache.RedisCache
}

// setupService wires an isolated stack for one test: in-memory SQLite,
// miniredis, the fake marketplace behind httptest, and a seeded credential
// for user u1.
func setupService(t *testing.T, mkt *fakeMarketplace, ai classifier.Classifier) *env {
	t.Helper()

	srv := httptest.NewServer(mkt)
	t.Cleanup(srv.Close)

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(dbase))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := &config.Config{}
	cfg.Marketplace.BaseURL = srv.URL
	cfg.Marketplace.Timeout = 5 * time.Second
	cfg.Marketplace.ProfileTimeout = 5 * time.Second
	cfg.Marketplace.PageSize = 2
	cfg.Redis.Addr = mr.Addr()
	cfg.Sync.CacheMaxAge = 30 * time.Minute
	cfg.Sync.HideDelay = time.Millisecond

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // discard logs in tests

	appCtx := app.New(cfg, dbase, redisCache, logger)
	if ai == nil {
		ai = classifier.Disabled{}
	}
	svc := hider.NewService(appCtx, ai)

	creds := repository.NewCredentialRepository(dbase)
	require.NoError(t, creds.Save(context.Background(), db.Credential{
		UserID:       "u1",
		SessionToken: "s:test-token",
		ProfileID:    "prof-1",
		FirstName:    "Alex",
		Enabled:      true,
	}))

	return &env{svc: svc, dbase: dbase, mkt: mkt, redis: redisCache}
}

// waitForDone polls until the run reaches a terminal status.
func waitForDone(t *testing.T, svc *hider.Service, userID string) hider.Progress {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p := svc.Progress(userID)
		if p.Status.Terminal() {
			return p
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("sync did not reach a terminal status: %+v", svc.Progress(userID))
	return hider.Progress{}
}

//
// Sync tests
//

// TestSyncAutoHide runs the whole pipeline: paginated fetch, enrichment,
// rule evaluation, upstream hide, log and cache updates, reconcile.
func TestSyncAutoHide(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Cheap survey", 10, 30)
	mkt.addProject("p2", "Decent study", 100, 30)
	mkt.addProject("p3", "Great interview", 200, 30)
	e := setupService(t, mkt, nil)

	rules := engine.RuleSet{MinReward: int64Ptr(50), AutoHide: true}
	require.NoError(t, e.svc.Sync(ctx, "u1", rules, false))

	progress := waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Equal(t, 3, progress.Total)
	assert.Equal(t, 3, progress.Current)
	assert.Equal(t, 1, progress.Matched)
	assert.Equal(t, 1, progress.Hidden)
	assert.Empty(t, progress.Errors)

	// the marketplace saw the hide
	assert.Equal(t, []string{"p1"}, mkt.hiddenIDs())

	// the hidden log recorded it as a rule-driven hide
	var entry db.HiddenProject
	require.NoError(t, e.dbase.First(&entry, "project_id = ?", "p1").Error)
	assert.Equal(t, db.MethodAuto, entry.Method)

	// reconcile left the cache agreeing with the server
	lists := repository.NewListCacheRepository(e.dbase)
	cached, ok, err := lists.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached.Projects, 2)
	assert.Equal(t, 2, cached.TotalCount)

	// last sync stamped on the credential
	creds := repository.NewCredentialRepository(e.dbase)
	got, err := creds.Get(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, got.LastSynced)
}

// TestSyncPreviewOnly checks that matches are counted but nothing is hidden
// when auto-hide is off.
func TestSyncPreviewOnly(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Cheap survey", 10, 30)
	mkt.addProject("p2", "Decent study", 100, 30)
	e := setupService(t, mkt, nil)

	rules := engine.RuleSet{MinReward: int64Ptr(50)}
	require.NoError(t, e.svc.Sync(ctx, "u1", rules, false))

	progress := waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Equal(t, 1, progress.Matched)
	assert.Equal(t, 0, progress.Hidden)
	assert.Empty(t, mkt.hiddenIDs())
}

// TestSyncRejectsConcurrentRun verifies the per-user in-flight guard.
func TestSyncRejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Slow study", 100, 30)
	mkt.searchDelay = 150 * time.Millisecond
	e := setupService(t, mkt, nil)

	require.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{}, false))

	err := e.svc.Sync(ctx, "u1", engine.RuleSet{}, false)
	assert.True(t, svcErr.IsKind(err, svcErr.KindFailedPrecondition))

	waitForDone(t, e.svc, "u1")

	// a fresh run is accepted once the first finishes
	assert.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{}, false))
	waitForDone(t, e.svc, "u1")
}

// TestSyncAuthFailureFatal: a rejected session ends the run and disables the
// credential so the scheduler stops retrying it.
func TestSyncAuthFailureFatal(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.verifyCode = http.StatusUnauthorized
	e := setupService(t, mkt, nil)

	require.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{}, false))

	progress := waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusError, progress.Status)
	assert.Contains(t, progress.Message, "verify session")
	assert.Equal(t, 0, mkt.searches())

	creds := repository.NewCredentialRepository(e.dbase)
	got, err := creds.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
}

// TestSyncFirstPageFailureFatal: no partial state when page 1 never arrives.
func TestSyncFirstPageFailureFatal(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Study", 100, 30)
	mkt.failPages[1] = true
	e := setupService(t, mkt, nil)

	require.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{}, false))

	progress := waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusError, progress.Status)
	assert.Contains(t, progress.Message, "fetch projects")

	lists := repository.NewListCacheRepository(e.dbase)
	_, ok, err := lists.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestSyncLaterPageFailurePartial: losing page 2 keeps page 1's results and
// completes the run with a recorded warning.
func TestSyncLaterPageFailurePartial(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Study one", 100, 30)
	mkt.addProject("p2", "Study two", 100, 30)
	mkt.addProject("p3", "Study three", 100, 30)
	mkt.addProject("p4", "Study four", 100, 30)
	mkt.failPages[2] = true
	e := setupService(t, mkt, nil)

	require.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{}, false))

	progress := waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Equal(t, 2, progress.Total)
	require.Len(t, progress.Errors, 1)
	assert.Contains(t, progress.Errors[0], "page 2")

	// the partial list was cached with the server-reported total
	lists := repository.NewListCacheRepository(e.dbase)
	cached, ok, err := lists.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, cached.Projects, 2)
	assert.Equal(t, 4, cached.TotalCount)
}

// TestSyncServesFreshCache: a fresh list cache skips remote pagination.
func TestSyncServesFreshCache(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("c1", "Cached study", 100, 30)
	e := setupService(t, mkt, nil)

	lists := repository.NewListCacheRepository(e.dbase)
	require.NoError(t, lists.Replace(ctx, "u1", []marketplace.Project{
		{ID: "c1", Title: "Cached study", Reward: 100, TimeMinutes: 30},
	}, 1))

	require.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{}, false))

	progress := waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Equal(t, 1, progress.Total)
	assert.Equal(t, 0, mkt.searches())
}

// TestSyncForceRefreshBypassesCache: forceRefresh ignores freshness.
func TestSyncForceRefreshBypassesCache(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Live study", 100, 30)
	e := setupService(t, mkt, nil)

	lists := repository.NewListCacheRepository(e.dbase)
	require.NoError(t, lists.Replace(ctx, "u1", []marketplace.Project{
		{ID: "c1", Title: "Cached study", Reward: 100, TimeMinutes: 30},
	}, 1))

	require.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{}, true))

	progress := waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Greater(t, mkt.searches(), 0)

	cached, ok, err := lists.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached.Projects, 1)
	assert.Equal(t, "p1", cached.Projects[0].ID)
}

// TestSyncRefreshFailureServesStaleCache: when the refresh fails outright
// but an older list exists, the run degrades to the stale list instead of
// failing.
func TestSyncRefreshFailureServesStaleCache(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.failPages[1] = true
	e := setupService(t, mkt, nil)

	lists := repository.NewListCacheRepository(e.dbase)
	require.NoError(t, lists.Replace(ctx, "u1", []marketplace.Project{
		{ID: "c1", Title: "Cached study", Reward: 100, TimeMinutes: 30},
	}, 1))

	require.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{}, true))

	progress := waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Equal(t, 1, progress.Total)
	require.Len(t, progress.Errors, 1)
	assert.Contains(t, progress.Errors[0], "refresh:")
}

// TestUsersDueRefresh: only enabled users with a stale or missing cache are
// due.
func TestUsersDueRefresh(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	e := setupService(t, mkt, nil)

	creds := repository.NewCredentialRepository(e.dbase)
	require.NoError(t, creds.Save(ctx, db.Credential{UserID: "u2", SessionToken: "s:2", Enabled: true}))
	require.NoError(t, creds.Save(ctx, db.Credential{UserID: "u3", SessionToken: "s:3", Enabled: false}))

	// u2 has a fresh cache, u1 has none
	lists := repository.NewListCacheRepository(e.dbase)
	require.NoError(t, lists.Replace(ctx, "u2", []marketplace.Project{
		{ID: "c1", Title: "Cached study", Reward: 100, TimeMinutes: 30},
	}, 1))

	due, err := e.svc.UsersDueRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, due)
}

// TestSyncCancelled: cancelling the run's context lands on the cancelled
// status, not error or completed.
func TestSyncCancelled(t *testing.T) {
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Slow study", 100, 30)
	mkt.searchDelay = 100 * time.Millisecond
	e := setupService(t, mkt, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{}, false))
	cancel()

	progress := waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusCancelled, progress.Status)
}

// TestSyncAIVerdictCached: with unchanged feedback the classifier runs at
// most once per project across repeated syncs.
func TestSyncAIVerdictCached(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Crypto study", 100, 30)
	ai := &stubAI{classifyHide: false}
	e := setupService(t, mkt, ai)

	prefs := repository.NewPreferenceRepository(e.dbase)
	_, err := prefs.StoreFeedback(ctx, "u1", "p0", "no crypto projects please")
	require.NoError(t, err)

	rules := engine.RuleSet{AIAssisted: true, AutoHide: true}

	require.NoError(t, e.svc.Sync(ctx, "u1", rules, true))
	progress := waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Equal(t, 1, ai.calls())
	assert.Empty(t, mkt.hiddenIDs())

	// second run hits the decision cache
	require.NoError(t, e.svc.Sync(ctx, "u1", rules, true))
	progress = waitForDone(t, e.svc, "u1")
	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Equal(t, 1, ai.calls())
}

// TestSyncAIAutoHide: an AI verdict hides with the ai_auto method.
func TestSyncAIAutoHide(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Crypto study", 100, 30)
	ai := &stubAI{classifyHide: true}
	e := setupService(t, mkt, ai)

	prefs := repository.NewPreferenceRepository(e.dbase)
	_, err := prefs.StoreFeedback(ctx, "u1", "p0", "no crypto projects please")
	require.NoError(t, err)

	require.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{AIAssisted: true, AutoHide: true}, true))
	progress := waitForDone(t, e.svc, "u1")

	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Equal(t, []string{"p1"}, mkt.hiddenIDs())

	var entry db.HiddenProject
	require.NoError(t, e.dbase.First(&entry, "project_id = ?", "p1").Error)
	assert.Equal(t, db.MethodAIAuto, entry.Method)
}

// TestSyncCategoryAutoHide: a confirmed category keeps working on later
// refreshes, hiding new matches under its name.
func TestSyncCategoryAutoHide(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Crypto traders study", 150, 45)
	mkt.addProject("p2", "Gardening survey", 100, 30)
	e := setupService(t, mkt, nil)

	prefs := repository.NewPreferenceRepository(e.dbase)
	require.NoError(t, prefs.StoreCategory(ctx, "u1", "Crypto", engine.Pattern{Keywords: []string{"crypto"}}))

	require.NoError(t, e.svc.Sync(ctx, "u1", engine.RuleSet{AutoHide: true}, true))
	progress := waitForDone(t, e.svc, "u1")

	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Equal(t, 1, progress.Matched)
	assert.Equal(t, []string{"p1"}, mkt.hiddenIDs())

	var entry db.HiddenProject
	require.NoError(t, e.dbase.First(&entry, "project_id = ?", "p1").Error)
	assert.Equal(t, db.MethodCategory, entry.Method)
	assert.Equal(t, "Crypto", entry.CategoryName)
}

// TestSyncStoredUsesSavedRules: the scheduler entry point picks up rules
// persisted for the user.
func TestSyncStoredUsesSavedRules(t *testing.T) {
	ctx := context.Background()
	mkt := newFakeMarketplace()
	mkt.addProject("p1", "Cheap survey", 10, 30)
	e := setupService(t, mkt, nil)

	rulesRepo := repository.NewRuleSetRepository(e.dbase)
	require.NoError(t, rulesRepo.Save(ctx, "u1", engine.RuleSet{MinReward: int64Ptr(50), AutoHide: true}))

	require.NoError(t, e.svc.SyncStored(ctx, "u1", false))
	progress := waitForDone(t, e.svc, "u1")

	assert.Equal(t, hider.StatusCompleted, progress.Status)
	assert.Equal(t, []string{"p1"}, mkt.hiddenIDs())
}

func int64Ptr(v int64) *int64 { return &v }
