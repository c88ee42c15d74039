// Package source talks to the external timetable site. The client owns the
// transport only: rate-limited, timeout-bounded form posts that return a
// raw payload. Turning a payload into events is the Extractor's job; the
// markup-specific extractor is a collaborator injected by the caller.
//
// Two modes, mirroring deployments without network access to the source:
// online posts the filter form with a CSRF token scraped from the start
// page; offline reads fixture files from a directory.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// Ref describes the entity whose timetable is being fetched; descriptive
// attributes are only used to build the filter request.
type Ref struct {
	Kind      timetable.EntityKind
	ID        int64
	FacultyID int64
	Course    int
	ChairID   int64
}

// Extractor converts a raw source payload into event records. Must be a
// deterministic pure function of its input.
type Extractor interface {
	Extract(payload []byte, ref Ref) ([]timetable.Event, error)
}

// Client fetches timetables for subscriber entities.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	fixturesDir string
	limiter     *rate.Limiter
	extractor   Extractor
	logger      *slog.Logger
}

// NewClient creates a rate-limited source client. fixturesDir switches the
// client to offline mode when non-empty.
func NewClient(baseURL, fixturesDir string, requestsPerMinute int, timeout time.Duration, extractor Extractor, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	// The site pairs the CSRF token with a session cookie set on the start
	// page; the jar carries it from the GET to the filter POST.
	jar, _ := cookiejar.New(nil)
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient:  &http.Client{Timeout: timeout, Jar: jar},
		baseURL:     strings.TrimRight(baseURL, "/"),
		fixturesDir: fixturesDir,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		extractor:   extractor,
		logger:      logger,
	}
}

// FetchGroupEvents fetches and extracts the timetable of one student group.
func (c *Client) FetchGroupEvents(ctx context.Context, g *timetable.Group) ([]timetable.Event, error) {
	ref := Ref{Kind: timetable.KindGroup, ID: g.ID, FacultyID: g.FacultyID, Course: g.Course}
	form := url.Values{}
	if g.FacultyID != 0 {
		form.Set("TimeTableForm[facultyId]", strconv.FormatInt(g.FacultyID, 10))
	}
	if g.Course != 0 {
		form.Set("TimeTableForm[course]", strconv.Itoa(g.Course))
	}
	form.Set("TimeTableForm[groupId]", strconv.FormatInt(g.ID, 10))
	return c.fetchEvents(ctx, ref, form)
}

// FetchTeacherEvents fetches and extracts the timetable of one teacher.
func (c *Client) FetchTeacherEvents(ctx context.Context, t *timetable.Teacher) ([]timetable.Event, error) {
	ref := Ref{Kind: timetable.KindTeacher, ID: t.ID, ChairID: t.ChairID}
	form := url.Values{}
	if t.ChairID != 0 {
		form.Set("TimeTableForm[chairId]", strconv.FormatInt(t.ChairID, 10))
	}
	form.Set("TimeTableForm[teacherId]", strconv.FormatInt(t.ID, 10))
	return c.fetchEvents(ctx, ref, form)
}

func (c *Client) fetchEvents(ctx context.Context, ref Ref, form url.Values) ([]timetable.Event, error) {
	payload, srcURL, err := c.fetch(ctx, ref, form)
	if err != nil {
		return nil, err
	}
	events, err := c.extractor.Extract(payload, ref)
	if err != nil {
		return nil, fmt.Errorf("extract %s %d: %w", ref.Kind, ref.ID, err)
	}
	for i := range events {
		if events[i].SourceURL == "" {
			events[i].SourceURL = srcURL
		}
	}
	return events, nil
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

func (c *Client) fetch(ctx context.Context, ref Ref, form url.Values) ([]byte, string, error) {
	if c.fixturesDir != "" {
		payload, name, err := c.offlineRead(ref)
		if err != nil {
			return nil, "", err
		}
		return payload, "fixture:" + name, nil
	}

	entry := c.entryURL(ref.Kind)

	token, err := c.csrfToken(ctx, entry)
	if err != nil {
		return nil, "", err
	}
	if token != "" {
		form.Set("_csrf-frontend", token)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, entry, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("X-CSRF-Token", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("post filter %s %d: %w", ref.Kind, ref.ID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("source returned %d for %s %d", resp.StatusCode, ref.Kind, ref.ID)
	}
	return body, entry, nil
}

func (c *Client) entryURL(kind timetable.EntityKind) string {
	if kind == timetable.KindTeacher {
		return c.baseURL + "/time-table/teacher?type=1"
	}
	return c.baseURL + "/time-table/group?type=0"
}

var csrfRe = regexp.MustCompile(`<meta[^>]+name="csrf-token"[^>]+content="([^"]+)"`)

// csrfToken loads the entry page and pulls the csrf-token meta value the
// site requires on filter posts. Empty when the page carries none.
func (c *Client) csrfToken(ctx context.Context, entry string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("get start page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read start page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("start page returned %d", resp.StatusCode)
	}
	if m := csrfRe.FindSubmatch(body); m != nil {
		return string(m[1]), nil
	}
	return "", nil
}

// offlineRead looks for the most specific fixture first, then the shared
// "selected" page the original deployments used.
func (c *Client) offlineRead(ref Ref) ([]byte, string, error) {
	candidates := []string{
		fmt.Sprintf("%s_%d.json", ref.Kind, ref.ID),
		fmt.Sprintf("%s_%d.html", ref.Kind, ref.ID),
		fmt.Sprintf("selected_%s.json", ref.Kind),
		fmt.Sprintf("selected_%s.html", ref.Kind),
	}
	for _, name := range candidates {
		path := filepath.Join(c.fixturesDir, name)
		data, err := os.ReadFile(path)
		if err == nil {
			c.logger.Debug("Read offline fixture", "path", path)
			return data, name, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("read fixture %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no offline fixture for %s %d in %s", ref.Kind, ref.ID, c.fixturesDir)
}
