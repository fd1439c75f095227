// Package model defines the domain types shared across the scanner,
// scoring engine, and prediction ledger.
package model

import "time"

// FixtureStatus mirrors the upstream feed's match lifecycle states.
type FixtureStatus string

const (
	FixtureScheduled FixtureStatus = "SCHEDULED"
	FixtureTimed     FixtureStatus = "TIMED"
	FixtureInPlay    FixtureStatus = "IN_PLAY"
	FixturePaused    FixtureStatus = "PAUSED"
	FixtureFinished  FixtureStatus = "FINISHED"
	FixturePostponed FixtureStatus = "POSTPONED"
	FixtureSuspended FixtureStatus = "SUSPENDED"
	FixtureCancelled FixtureStatus = "CANCELLED"
)

// Scannable reports whether a fixture in this status is a candidate for
// prediction. Only not-yet-started fixtures qualify.
func (s FixtureStatus) Scannable() bool {
	return s == FixtureScheduled || s == FixtureTimed
}

// TeamRef identifies one side of a fixture or historical match.
type TeamRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Fixture is a scheduled match pulled from the upstream feed.
type Fixture struct {
	ID       int64         `json:"id"`
	League   string        `json:"league"`
	Status   FixtureStatus `json:"status"`
	Kickoff  time.Time     `json:"kickoff_utc"`
	HomeTeam TeamRef       `json:"home_team"`
	AwayTeam TeamRef       `json:"away_team"`
}

// MatchRecord is one historical match in a team's recent history.
// Histories are ordered most-recent-first. Goals are nil until a final
// score exists.
type MatchRecord struct {
	ID        int64     `json:"id,omitempty"`
	UTCDate   time.Time `json:"utc_date"`
	HomeTeam  TeamRef   `json:"home_team"`
	AwayTeam  TeamRef   `json:"away_team"`
	HomeGoals *int      `json:"home_goals,omitempty"`
	AwayGoals *int      `json:"away_goals,omitempty"`
}

// Played reports whether the match has a final score.
func (m MatchRecord) Played() bool {
	return m.HomeGoals != nil && m.AwayGoals != nil
}

// GoalsFor returns the goals scored by the named team. ok is false when the
// match has no final score or the team appears on neither side.
func (m MatchRecord) GoalsFor(team string) (int, bool) {
	if !m.Played() {
		return 0, false
	}
	switch team {
	case m.HomeTeam.Name:
		return *m.HomeGoals, true
	case m.AwayTeam.Name:
		return *m.AwayGoals, true
	}
	return 0, false
}

// GoalsAgainst returns the goals conceded by the named team. ok is false when
// the match has no final score or the team appears on neither side.
func (m MatchRecord) GoalsAgainst(team string) (int, bool) {
	if !m.Played() {
		return 0, false
	}
	switch team {
	case m.HomeTeam.Name:
		return *m.AwayGoals, true
	case m.AwayTeam.Name:
		return *m.HomeGoals, true
	}
	return 0, false
}

// TotalGoals returns the combined final score.
func (m MatchRecord) TotalGoals() (int, bool) {
	if !m.Played() {
		return 0, false
	}
	return *m.HomeGoals + *m.AwayGoals, true
}

// IsMeeting reports whether this match is a head-to-head meeting of the two
// named teams, in either venue orientation.
func (m MatchRecord) IsMeeting(teamA, teamB string) bool {
	return (m.HomeTeam.Name == teamA && m.AwayTeam.Name == teamB) ||
		(m.HomeTeam.Name == teamB && m.AwayTeam.Name == teamA)
}
