package histdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday-labs/goalscan/internal/model"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(WithBaseURL(srv.URL))
}

func collectMatches(t *testing.T, rowCh <-chan model.ArchiveMatch, errCh <-chan error) ([]model.ArchiveMatch, error) {
	t.Helper()
	var matches []model.ArchiveMatch
	for m := range rowCh {
		matches = append(matches, m)
	}
	for err := range errCh {
		if err != nil {
			return matches, err
		}
	}
	return matches, nil
}

// laLigaBody is a windows-1252 archive excerpt: \xe9 is the encoding's
// e-acute. The third row has no final score and the fourth is padding, the
// parser skips both.
const laLigaBody = "Div,Date,Time,HomeTeam,AwayTeam,FTHG,FTAG,FTR\n" +
	"SP1,11/08/2023,20:00,Atl\xe9tico Madrid,Granada,3,1,H\n" +
	"SP1,12/08/23,19:30,Sevilla,Valencia,1,2,A\n" +
	"SP1,13/08/23,,Betis,Girona,,,\n" +
	",,,,,,,\n"

func TestSeasonMatches(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/mmz4281/2324/SP1.csv", r.URL.Path)
		w.Write([]byte(laLigaBody))
	})

	matches, err := c.SeasonMatches(context.Background(), "2324", "SP1")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	m := matches[0]
	assert.Equal(t, "La Liga", m.League)
	assert.Equal(t, "2324", m.Season)
	assert.Equal(t, time.Date(2023, 8, 11, 0, 0, 0, 0, time.UTC), m.Date)
	assert.Equal(t, "Atlético Madrid", m.HomeTeam)
	assert.Equal(t, "Granada", m.AwayTeam)
	assert.Equal(t, 3, m.HomeGoals)
	assert.Equal(t, 1, m.AwayGoals)

	// Second row uses the two-digit year layout.
	assert.Equal(t, time.Date(2023, 8, 12, 0, 0, 0, 0, time.UTC), matches[1].Date)
	assert.Equal(t, "Sevilla", matches[1].HomeTeam)
}

func TestStreamSeason(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(laLigaBody))
	})

	rowCh, errCh := c.StreamSeason(context.Background(), "2324", "SP1")
	matches, err := collectMatches(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Atlético Madrid", matches[0].HomeTeam)
	assert.Equal(t, "Sevilla", matches[1].HomeTeam)
}

func TestSeasonMatches_UnknownDivision(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an unknown division")
	})

	_, err := c.SeasonMatches(context.Background(), "2324", "XX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown division")
}

func TestSeasonMatches_NotFound(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.SeasonMatches(context.Background(), "9999", "E0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestSeasonMatches_MissingColumns(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Div,Date,HomeTeam,AwayTeam\nE0,11/08/23,Arsenal,Chelsea\n"))
	})

	_, err := c.SeasonMatches(context.Background(), "2324", "E0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "FTHG"`)
}

func TestSeasonMatches_BadGoalsValue(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Date,HomeTeam,AwayTeam,FTHG,FTAG\n11/08/23,Arsenal,Chelsea,abc,1\n"))
	})

	_, err := c.SeasonMatches(context.Background(), "2324", "E0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad FTHG")
}

func TestSeasonMatches_BadDate(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Date,HomeTeam,AwayTeam,FTHG,FTAG\n2023-08-11,Arsenal,Chelsea,2,1\n"))
	})

	_, err := c.SeasonMatches(context.Background(), "2324", "E0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable date")
}

func TestSeasonMatches_EmptyFile(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(""))
	})

	_, err := c.SeasonMatches(context.Background(), "2324", "E0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty archive")
}

func TestStreamSeason_ContextCancelled(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(laLigaBody))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rowCh, errCh := c.StreamSeason(ctx, "2324", "SP1")
	_, err := collectMatches(t, rowCh, errCh)
	require.Error(t, err)
}

func TestDivisions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"D1", "E0", "F1", "I1", "SP1"}, Divisions())

	league, ok := LeagueForDivision("E0")
	require.True(t, ok)
	assert.Equal(t, "Premier League", league)

	_, ok = LeagueForDivision("XX")
	assert.False(t, ok)
}
