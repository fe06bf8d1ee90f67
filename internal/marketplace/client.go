package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avoss/projectwarden/internal/config"
	"github.com/avoss/projectwarden/internal/logger"
)

const (
	searchPathFmt  = "/api/v4/matching/projects/search/profiles/%s"
	detailPathFmt  = "/v2/projects/%s"
	hidePathFmt    = "/v2/profiles/project/%s/hidden"
	identityPath   = "/v2/respondents/me"
	profilePathFmt = "/api/v4/profiles/user/%s"

	// MaxPages bounds pagination when the reported total is inconsistent.
	MaxPages = 100

	// DefaultPageSize is used when config leaves page size unset.
	DefaultPageSize = 50

	maxBodyBytes   = 4 << 20
	excerptBytes   = 500
	defaultTimeout = 30 * time.Second
	profileTimeout = 10 * time.Second
)

// API is the marketplace surface the sync engine drives. *Client implements
// it; tests substitute fakes.
type API interface {
	Search(ctx context.Context, profileID string, page, pageSize int, demo DemographicFilters) ([]Project, int, error)
	FetchDetail(ctx context.Context, projectID string) (Project, error)
	Hide(ctx context.Context, projectID string) error
	Verify(ctx context.Context) (Identity, error)
	FetchProfile(ctx context.Context, userID string) (DemographicFilters, error)
}

// Identity is who the marketplace says the session belongs to.
type Identity struct {
	UserID    string
	ProfileID string
	FirstName string
}

// DemographicFilters narrow a search to the respondent's own demographics.
// Zero values are omitted from the query.
type DemographicFilters struct {
	Gender         string
	EducationLevel string
	Ethnicity      string
	DateOfBirth    string
	Country        string
}

func (f DemographicFilters) apply(q url.Values) {
	if f.Gender != "" {
		q.Set("gender", f.Gender)
	}
	if f.EducationLevel != "" {
		q.Set("educationLevel", f.EducationLevel)
	}
	if f.Ethnicity != "" {
		q.Set("ethnicity", f.Ethnicity)
	}
	if f.DateOfBirth != "" {
		q.Set("dateOfBirth", f.DateOfBirth)
	}
	if f.Country != "" {
		q.Set("country", f.Country)
	}
}

// IsZero reports whether no filter is set.
func (f DemographicFilters) IsZero() bool {
	return f == DemographicFilters{}
}

// StatusError is a non-2xx marketplace response, kept distinct from transport
// errors so callers can branch on the code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketplace returned %d: %s", e.Code, e.Body)
}

// IsAuthStatus reports whether err is a 401/403 marketplace response.
func IsAuthStatus(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden
}

// Client talks to the marketplace with one user's session credential.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	profileHTTP *http.Client
	cred        Credential
	log         *slog.Logger
}

// NewClient builds a client bound to cred. The profile endpoint gets its own
// shorter timeout because profile data is optional.
func NewClient(cfg config.MarketplaceConfig, cred Credential, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://app.respondent.io"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ProfileTimeout <= 0 {
		cfg.ProfileTimeout = profileTimeout
	}
	if log == nil {
		log = logger.L()
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		profileHTTP: &http.Client{Timeout: cfg.ProfileTimeout},
		cred:        cred,
		log:         log,
	}
}

type searchResponse struct {
	Results    []json.RawMessage `json:"results"`
	TotalCount *int              `json:"totalCount"`
	Count      *int              `json:"count"`
}

// Search fetches one page of matching projects.
//
// Behavior:
//   - Page 1's totalCount is the authority callers size the page loop with;
//     later pages may disagree and are ignored for that purpose.
//   - The totalCount field is preferred, falling back to count, falling back
//     to the page length.
func (c *Client) Search(ctx context.Context, profileID string, page, pageSize int, demo DemographicFilters) ([]Project, int, error) {
	q := url.Values{}
	q.Set("maxIncentive", "1000")
	q.Set("minIncentive", "5")
	q.Set("maxTimeMinutesRequired", "800")
	q.Set("minTimeMinutesRequired", "5")
	q.Set("sort", "respondentRemuneration")
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))
	q.Set("includeCount", "true")
	q.Set("showHiddenProjects", "false")
	q.Set("onlyShowMatched", "false")
	q.Set("showEligible", "true")
	demo.apply(q)

	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf(searchPathFmt, url.PathEscape(profileID)), q)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Sec-Fetch-Site", "same-origin")

	var resp searchResponse
	if err := c.do(req, c.httpClient, &resp); err != nil {
		return nil, 0, fmt.Errorf("search page %d: %w", page, err)
	}

	projects := make([]Project, 0, len(resp.Results))
	for _, raw := range resp.Results {
		projects = append(projects, DecodeProject(raw))
	}

	total := len(projects)
	switch {
	case resp.TotalCount != nil:
		total = *resp.TotalCount
	case resp.Count != nil:
		total = *resp.Count
	}
	return projects, total, nil
}

// FetchDetail fetches one project's full payload.
func (c *Client) FetchDetail(ctx context.Context, projectID string) (Project, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf(detailPathFmt, url.PathEscape(projectID)), nil)
	if err != nil {
		return Project{}, err
	}
	req.Header.Set("Sec-Fetch-Site", "same-origin")

	var raw json.RawMessage
	if err := c.do(req, c.httpClient, &raw); err != nil {
		return Project{}, fmt.Errorf("fetch detail %s: %w", projectID, err)
	}
	return DecodeProject(raw), nil
}

// Hide marks one project hidden on the marketplace. One-way; there is no
// unhide endpoint.
func (c *Client) Hide(ctx context.Context, projectID string) error {
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf(hidePathFmt, url.PathEscape(projectID)), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Sec-Fetch-Site", "same-origin")

	if err := c.do(req, c.httpClient, nil); err != nil {
		return fmt.Errorf("hide project %s: %w", projectID, err)
	}
	return nil
}

type identityResponse struct {
	Response struct {
		ID        any    `json:"id"`
		UserID    any    `json:"userId"`
		FirstName string `json:"firstName"`
		Profile   struct {
			ID     any `json:"id"`
			UserID any `json:"userId"`
		} `json:"profile"`
		User struct {
			ID any `json:"id"`
		} `json:"user"`
	} `json:"response"`
}

// Verify checks the session against the marketplace's identity endpoint.
//
// Behavior:
//   - 2xx with an extractable profile ID and first name → Identity.
//   - Anything else → error; 401/403 can be detected via IsAuthStatus.
//   - The user ID lives in different places depending on account age, so
//     several locations are probed.
func (c *Client) Verify(ctx context.Context) (Identity, error) {
	req, err := c.newRequest(ctx, http.MethodGet, identityPath, nil)
	if err != nil {
		return Identity{}, err
	}

	var resp identityResponse
	if err := c.do(req, c.httpClient, &resp); err != nil {
		return Identity{}, fmt.Errorf("verify session: %w", err)
	}

	id := Identity{
		ProfileID: coerceString(resp.Response.Profile.ID),
		FirstName: resp.Response.FirstName,
	}
	for _, candidate := range []any{
		resp.Response.ID,
		resp.Response.UserID,
		resp.Response.User.ID,
		resp.Response.Profile.UserID,
	} {
		if s := coerceString(candidate); s != "" {
			id.UserID = s
			break
		}
	}

	if id.ProfileID == "" || id.FirstName == "" {
		return Identity{}, fmt.Errorf("verify session: profile id or first name missing from response")
	}
	return id, nil
}

// FetchProfile fetches the respondent's own profile for demographic search
// filters. Optional data: callers treat failure as "search without filters".
func (c *Client) FetchProfile(ctx context.Context, userID string) (DemographicFilters, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf(profilePathFmt, url.PathEscape(userID)), nil)
	if err != nil {
		return DemographicFilters{}, err
	}
	req.Header.Set("Sec-Fetch-Site", "same-origin")

	var raw json.RawMessage
	if err := c.do(req, c.profileHTTP, &raw); err != nil {
		return DemographicFilters{}, fmt.Errorf("fetch profile %s: %w", userID, err)
	}
	return ExtractDemographics(raw), nil
}

// KeepAlive pings the identity endpoint so the session does not idle out.
func (c *Client) KeepAlive(ctx context.Context) error {
	_, err := c.Verify(ctx)
	return err
}

// ExtractDemographics pulls demographic search params out of a profile
// payload. The structure varies, so response.data, response.profile, and the
// root object are all tried, with per-field fallbacks.
func ExtractDemographics(raw json.RawMessage) DemographicFilters {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return DemographicFilters{}
	}

	data := m
	if resp, ok := m["response"].(map[string]any); ok {
		data = resp
		if inner, ok := resp["data"].(map[string]any); ok {
			data = inner
		} else if inner, ok := resp["profile"].(map[string]any); ok {
			data = inner
		}
	}

	var f DemographicFilters

	if v := stringField(data, "gender"); v != "" {
		f.Gender = v
	} else if v := stringField(data, "genderId"); v != "" {
		f.Gender = strings.ToLower(v)
	}

	if v := stringField(data, "educationLevel"); v != "" {
		f.EducationLevel = v
	} else if edu, ok := data["education"].(map[string]any); ok {
		f.EducationLevel = stringField(edu, "level")
	}

	if v := stringField(data, "ethnicity"); v != "" {
		f.Ethnicity = v
	} else if v := stringField(data, "ethnicityId"); v != "" {
		f.Ethnicity = strings.ToLower(v)
	}

	for _, key := range []string{"dateOfBirth", "dob", "birthDate"} {
		if v := stringField(data, key); v != "" {
			f.DateOfBirth = v
			break
		}
	}

	if v := stringField(data, "country"); v != "" {
		f.Country = v
	} else if v := stringField(data, "countryCode"); v != "" {
		f.Country = v
	} else if loc, ok := data["location"].(map[string]any); ok {
		if v := stringField(loc, "country"); v != "" {
			f.Country = v
		} else {
			f.Country = stringField(loc, "countryCode")
		}
	}

	return f
}

// --- request plumbing ---

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: c.cred.SessionToken})
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.cred.Authorization != "" {
		req.Header.Set("Authorization", c.cred.Authorization)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, hc *http.Client, out any) error {
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Path, err)
	}

	c.log.Debug("marketplace response",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: excerpt(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > excerptBytes {
		s = s[:excerptBytes]
	}
	return s
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatNumber(t)
	}
	return ""
}
