package model

import "time"

// ArchiveMatch is one finished match from the historical results archive.
// Season carries the archive's compact code, e.g. "2324" for 2023-24.
type ArchiveMatch struct {
	League    string    `json:"league"`
	Season    string    `json:"season"`
	Date      time.Time `json:"date"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	HomeGoals int       `json:"home_goals"`
	AwayGoals int       `json:"away_goals"`
}
