// Package footballdata provides a client for the football-data.org v4 API.
// It covers the endpoints the scan loop and the results updater need,
// upcoming fixtures and finished results per competition plus recent
// finished matches per team, and classifies HTTP failures into transient
// and fatal errors so callers can retry sensibly.
package footballdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/resilience"
)

const defaultBaseURL = "https://api.football-data.org/v4"

// defaultHistoryLimit is how many finished matches TeamMatches requests
// when the caller does not specify a limit.
const defaultHistoryLimit = 10

// Client is the interface for the football-data.org API.
type Client interface {
	// CompetitionMatches returns fixtures for a competition with kickoff
	// dates inside [from, to], inclusive on both ends.
	CompetitionMatches(ctx context.Context, competitionID int64, from, to time.Time) ([]model.Fixture, error)
	// TeamMatches returns a team's most recent finished matches, newest
	// first. A limit <= 0 requests defaultHistoryLimit matches.
	TeamMatches(ctx context.Context, teamID int64, limit int) ([]model.MatchRecord, error)
	// CompetitionResults returns a competition's finished matches with
	// full-time scores, kickoff dates inside [from, to] inclusive.
	CompetitionResults(ctx context.Context, competitionID int64, from, to time.Time) ([]model.MatchRecord, error)
}

// matchesResponse is the wire envelope for both matches endpoints.
type matchesResponse struct {
	Matches []matchDTO `json:"matches"`
}

type matchDTO struct {
	ID          int64          `json:"id"`
	UTCDate     time.Time      `json:"utcDate"`
	Status      string         `json:"status"`
	HomeTeam    teamDTO        `json:"homeTeam"`
	AwayTeam    teamDTO        `json:"awayTeam"`
	Score       scoreDTO       `json:"score"`
	Competition competitionDTO `json:"competition"`
}

type teamDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type scoreDTO struct {
	FullTime fullTimeDTO `json:"fullTime"`
}

// fullTimeDTO holds nullable goal counts. The API sends null for matches
// that have not been played.
type fullTimeDTO struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type competitionDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// APIError represents an error response from the football-data.org API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("footballdata: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL. Useful for testing.
func WithBaseURL(baseURL string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *httpClient) {
		c.client = client
	}
}

// WithRateLimit overrides the default request rate. The free tier allows
// 10 requests per minute, which is the default. A rate <= 0 disables
// client-side limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			burst := int(rps)
			if burst < 1 {
				burst = 1
			}
			c.limiter = NewPacer(rate.Limit(rps), burst)
		} else {
			c.limiter = nil
		}
	}
}

// WithRetryConfig overrides the retry policy for failed requests.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retryCfg = cfg
	}
}

// WithBreaker overrides the circuit breaker guarding the API.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	limiter  *Pacer
	breaker  *resilience.Breaker
	retryCfg resilience.RetryConfig
}

// NewClient creates a new football-data.org API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:  NewPacer(rate.Every(6*time.Second), 1),
		breaker:  resilience.NewBreaker(resilience.DefaultBreakerConfig()),
		retryCfg: resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompetitionMatches returns fixtures for a competition between two dates.
func (c *httpClient) CompetitionMatches(ctx context.Context, competitionID int64, from, to time.Time) ([]model.Fixture, error) {
	q := url.Values{}
	q.Set("dateFrom", from.UTC().Format("2006-01-02"))
	q.Set("dateTo", to.UTC().Format("2006-01-02"))
	path := fmt.Sprintf("/competitions/%d/matches?%s", competitionID, q.Encode())

	var resp matchesResponse
	if err := c.getJSON(ctx, "competition_matches", path, &resp); err != nil {
		return nil, err
	}

	fixtures := make([]model.Fixture, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		fixtures = append(fixtures, model.Fixture{
			ID:       m.ID,
			League:   m.Competition.Name,
			Status:   model.FixtureStatus(m.Status),
			Kickoff:  m.UTCDate,
			HomeTeam: model.TeamRef{ID: m.HomeTeam.ID, Name: m.HomeTeam.Name},
			AwayTeam: model.TeamRef{ID: m.AwayTeam.ID, Name: m.AwayTeam.Name},
		})
	}
	zap.L().Debug("fetched competition matches",
		zap.Int64("competition_id", competitionID),
		zap.Int("count", len(fixtures)),
	)
	return fixtures, nil
}

// TeamMatches returns a team's recent finished matches, newest first.
func (c *httpClient) TeamMatches(ctx context.Context, teamID int64, limit int) ([]model.MatchRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	q := url.Values{}
	q.Set("status", "FINISHED")
	q.Set("limit", strconv.Itoa(limit))
	path := fmt.Sprintf("/teams/%d/matches?%s", teamID, q.Encode())

	var resp matchesResponse
	if err := c.getJSON(ctx, "team_matches", path, &resp); err != nil {
		return nil, err
	}

	records := make([]model.MatchRecord, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		records = append(records, model.MatchRecord{
			ID:        m.ID,
			UTCDate:   m.UTCDate,
			HomeTeam:  model.TeamRef{ID: m.HomeTeam.ID, Name: m.HomeTeam.Name},
			AwayTeam:  model.TeamRef{ID: m.AwayTeam.ID, Name: m.AwayTeam.Name},
			HomeGoals: m.Score.FullTime.Home,
			AwayGoals: m.Score.FullTime.Away,
		})
	}
	// The API returns matches oldest first. Form windows read newest first.
	sort.Slice(records, func(i, j int) bool {
		return records[i].UTCDate.After(records[j].UTCDate)
	})
	zap.L().Debug("fetched team history",
		zap.Int64("team_id", teamID),
		zap.Int("count", len(records)),
	)
	return records, nil
}

// CompetitionResults returns a competition's finished matches between two
// dates with full-time scores.
func (c *httpClient) CompetitionResults(ctx context.Context, competitionID int64, from, to time.Time) ([]model.MatchRecord, error) {
	q := url.Values{}
	q.Set("status", "FINISHED")
	q.Set("dateFrom", from.UTC().Format("2006-01-02"))
	q.Set("dateTo", to.UTC().Format("2006-01-02"))
	path := fmt.Sprintf("/competitions/%d/matches?%s", competitionID, q.Encode())

	var resp matchesResponse
	if err := c.getJSON(ctx, "competition_results", path, &resp); err != nil {
		return nil, err
	}

	records := make([]model.MatchRecord, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		records = append(records, model.MatchRecord{
			ID:        m.ID,
			UTCDate:   m.UTCDate,
			HomeTeam:  model.TeamRef{ID: m.HomeTeam.ID, Name: m.HomeTeam.Name},
			AwayTeam:  model.TeamRef{ID: m.AwayTeam.ID, Name: m.AwayTeam.Name},
			HomeGoals: m.Score.FullTime.Home,
			AwayGoals: m.Score.FullTime.Away,
		})
	}
	zap.L().Debug("fetched competition results",
		zap.Int64("competition_id", competitionID),
		zap.Int("count", len(records)),
	)
	return records, nil
}

// getJSON fetches a path with retry and circuit breaking, then decodes the
// body into out. The breaker sits inside the retry loop so an open circuit
// fails fast instead of being retried.
func (c *httpClient) getJSON(ctx context.Context, op, path string, out any) error {
	cfg := c.retryCfg
	cfg.OnRetry = resilience.RetryLogger("football-data", op)
	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
			return c.fetch(ctx, path)
		})
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "footballdata: decoding %s response", op)
	}
	return nil
}

func (c *httpClient) fetch(ctx context.Context, path string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "footballdata: waiting for rate limiter")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "footballdata: creating request")
	}
	req.Header.Set("X-Auth-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "footballdata: executing request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "footballdata: reading response body"), resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.classifyStatus(resp, body)
	}
	if c.limiter != nil {
		c.limiter.OnSuccess()
	}
	return body, nil
}

// classifyStatus maps a non-2xx response to a typed error. 429 carries the
// Retry-After hint and slows the pacer, auth failures are fatal, server-side
// statuses are transient, everything else is a plain APIError.
func (c *httpClient) classifyStatus(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if c.limiter != nil {
			c.limiter.OnRateLimit()
		}
		return resilience.NewRateLimitError(apiErr, retryAfter(resp.Header))
	case resilience.IsFatalHTTPStatus(resp.StatusCode):
		return resilience.NewFatalError(apiErr)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(apiErr, resp.StatusCode)
	default:
		return apiErr
	}
}

// retryAfter parses a Retry-After header given as either delay seconds or
// an HTTP date. Returns 0 when absent or unparseable.
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
