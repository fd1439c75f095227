// Package histdata downloads season result archives from football-data.co.uk.
// Archive files are windows-1252 encoded CSV; the client transcodes to UTF-8
// and streams parsed rows so multi-season imports stay bounded in memory.
package histdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"

	"github.com/matchday-labs/goalscan/internal/model"
)

const defaultBaseURL = "https://www.football-data.co.uk"

// divisionLeagues maps the archive's division codes to league names.
var divisionLeagues = map[string]string{
	"E0":  "Premier League",
	"SP1": "La Liga",
	"I1":  "Serie A",
	"D1":  "Bundesliga",
	"F1":  "Ligue 1",
}

// dateLayouts covers the two formats the archive has used over the years.
var dateLayouts = []string{"02/01/2006", "02/01/06"}

// Divisions returns the supported division codes in sorted order.
func Divisions() []string {
	codes := make([]string, 0, len(divisionLeagues))
	for code := range divisionLeagues {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// LeagueForDivision returns the league name for a division code.
func LeagueForDivision(code string) (string, bool) {
	name, ok := divisionLeagues[code]
	return name, ok
}

// Client is the interface for the football-data.co.uk archive.
type Client interface {
	// SeasonMatches downloads and parses one division's season file.
	// Season is the archive's compact code, e.g. "2324" for 2023-24.
	SeasonMatches(ctx context.Context, season, division string) ([]model.ArchiveMatch, error)
	// StreamSeason streams parsed rows as they are read. The caller must
	// drain the row channel; both channels close when parsing completes.
	StreamSeason(ctx context.Context, season, division string) (<-chan model.ArchiveMatch, <-chan error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the archive base URL. Useful for testing.
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

type httpClient struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an archive client. The archive is public, no key needed.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SeasonMatches collects a full season into memory. A top-flight season is
// at most a few hundred rows, so this stays small.
func (c *httpClient) SeasonMatches(ctx context.Context, season, division string) ([]model.ArchiveMatch, error) {
	rowCh, errCh := c.StreamSeason(ctx, season, division)

	matches := make([]model.ArchiveMatch, 0, 380)
	for m := range rowCh {
		matches = append(matches, m)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return matches, nil
}

// StreamSeason downloads one season file and streams parsed rows.
func (c *httpClient) StreamSeason(ctx context.Context, season, division string) (<-chan model.ArchiveMatch, <-chan error) {
	rowCh := make(chan model.ArchiveMatch, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		league, ok := divisionLeagues[division]
		if !ok {
			errCh <- eris.Errorf("histdata: unknown division %q", division)
			return
		}

		u := fmt.Sprintf("%s/mmz4281/%s/%s.csv", c.baseURL, season, division)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			errCh <- eris.Wrap(err, "histdata: creating request")
			return
		}

		resp, err := c.client.Do(req)
		if err != nil {
			errCh <- eris.Wrap(err, "histdata: executing request")
			return
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			errCh <- eris.Errorf("histdata: HTTP %d fetching %s/%s", resp.StatusCode, season, division)
			return
		}

		decoded := charmap.Windows1252.NewDecoder().Reader(resp.Body)
		if err := parseSeason(ctx, decoded, league, season, rowCh); err != nil {
			errCh <- err
			return
		}
		zap.L().Debug("parsed season archive",
			zap.String("season", season),
			zap.String("division", division),
		)
	}()

	return rowCh, errCh
}

// parseSeason reads archive CSV rows and sends one ArchiveMatch per finished
// match. Rows without a final score are skipped, the archive leaves goals
// blank for abandoned fixtures.
func parseSeason(ctx context.Context, r io.Reader, league, season string, rowCh chan<- model.ArchiveMatch) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // archive rows vary in width across seasons

	header, err := reader.Read()
	if err == io.EOF {
		return eris.New("histdata: empty archive file")
	}
	if err != nil {
		return eris.Wrap(err, "histdata: reading header")
	}

	idx, err := columnIndex(header)
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "histdata: context cancelled")
		}

		rec, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "histdata: reading row")
		}

		m, ok, err := parseRow(rec, idx, league, season)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		select {
		case rowCh <- m:
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "histdata: context cancelled")
		}
	}
}

// archiveColumns are the header fields the parser needs. Files carry many
// more (odds, shots, referees) which are ignored.
var archiveColumns = []string{"Date", "HomeTeam", "AwayTeam", "FTHG", "FTAG"}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(archiveColumns))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range archiveColumns {
		if _, ok := idx[name]; !ok {
			return nil, eris.Errorf("histdata: archive header missing column %q", name)
		}
	}
	return idx, nil
}

func parseRow(rec []string, idx map[string]int, league, season string) (model.ArchiveMatch, bool, error) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	home := field("HomeTeam")
	away := field("AwayTeam")
	if home == "" || away == "" {
		// Archive files end with blank padding rows.
		return model.ArchiveMatch{}, false, nil
	}

	fthg := field("FTHG")
	ftag := field("FTAG")
	if fthg == "" || ftag == "" {
		return model.ArchiveMatch{}, false, nil
	}

	homeGoals, err := strconv.Atoi(fthg)
	if err != nil {
		return model.ArchiveMatch{}, false, eris.Wrapf(err, "histdata: bad FTHG for %s v %s", home, away)
	}
	awayGoals, err := strconv.Atoi(ftag)
	if err != nil {
		return model.ArchiveMatch{}, false, eris.Wrapf(err, "histdata: bad FTAG for %s v %s", home, away)
	}

	date, err := parseDate(field("Date"))
	if err != nil {
		return model.ArchiveMatch{}, false, err
	}

	return model.ArchiveMatch{
		League:    league,
		Season:    season,
		Date:      date,
		HomeTeam:  home,
		AwayTeam:  away,
		HomeGoals: homeGoals,
		AwayGoals: awayGoals,
	}, true, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("histdata: unparseable date %q", s)
}
