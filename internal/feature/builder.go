// Package feature derives the fixed 36-field numeric vector a fixture is
// scored on. Building is pure: no I/O, no mutation, total over any
// well-formed input including empty histories.
package feature

import (
	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/poisson"
)

const (
	// homeAdvantage is the constant context feature the model was trained
	// with; venue effects are otherwise carried by the strength features.
	homeAdvantage = 1.0

	// defaultRestDays is used because the scan feed does not expose squad
	// schedules; the trained model saw the same constant.
	defaultRestDays = 7.0

	// Head-to-head defaults when the teams have no prior meetings in the
	// combined history.
	defaultH2HGoalsAvg = 2.75
	defaultH2HBTTSRate = 0.5

	// overThreshold is the goal-total line for the threshold event.
	overThreshold = 2.5
)

// Builder derives feature vectors using a fixed league-average table.
// Safe for concurrent use.
type Builder struct {
	leagues LeagueAverages
}

// NewBuilder creates a Builder. A nil table falls back to the built-in
// league averages.
func NewBuilder(leagues LeagueAverages) *Builder {
	if leagues == nil {
		leagues = DefaultLeagueAverages()
	}
	return &Builder{leagues: leagues}
}

// Build derives the 36-field vector for a fixture. Histories are ordered
// most-recent-first; matches without a final score are excluded from every
// aggregate. Empty windows yield the documented neutral defaults, never an
// error or a non-finite value.
func (b *Builder) Build(homeTeam, awayTeam string, homeHistory, awayHistory []model.MatchRecord, league string) model.FeatureVector {
	leagueAvg := b.leagues.For(league)
	halfAvg := leagueAvg / 2

	var v model.FeatureVector

	// Form and momentum.
	v.HomeGoalsAvg5 = goalsAvg(window(homeHistory, 5), homeTeam)
	v.AwayGoalsAvg5 = goalsAvg(window(awayHistory, 5), awayTeam)
	v.HomeGoalsAvg10 = goalsAvg(window(homeHistory, 10), homeTeam)
	v.AwayGoalsAvg10 = goalsAvg(window(awayHistory, 10), awayTeam)
	v.HomePointsForm3 = pointsForm(window(homeHistory, 3), homeTeam)
	v.AwayPointsForm3 = pointsForm(window(awayHistory, 3), awayTeam)
	v.HomePointsForm5 = pointsForm(window(homeHistory, 5), homeTeam)

	// Attack and defense strength, normalized by half the league average.
	v.HomeAttackStrength = v.HomeGoalsAvg10 / halfAvg
	v.AwayAttackStrength = v.AwayGoalsAvg10 / halfAvg
	v.HomeDefenseStrength = concededAvg(window(homeHistory, 10), homeTeam) / halfAvg
	v.AwayDefenseStrength = concededAvg(window(awayHistory, 10), awayTeam) / halfAvg

	// Trailing-5 versus previous-5 trend deltas.
	v.HomeGoalsTrend = goalsAvg(window(homeHistory, 5), homeTeam) - goalsAvg(between(homeHistory, 5, 10), homeTeam)
	v.AwayGoalsTrend = goalsAvg(window(awayHistory, 5), awayTeam) - goalsAvg(between(awayHistory, 5, 10), awayTeam)
	v.HomeConcededTrend = concededAvg(window(homeHistory, 5), homeTeam) - concededAvg(between(homeHistory, 5, 10), homeTeam)
	v.AwayConcededTrend = concededAvg(window(awayHistory, 5), awayTeam) - concededAvg(between(awayHistory, 5, 10), awayTeam)

	// Match context.
	v.HomeAdvantage = homeAdvantage
	v.LeagueAvgGoals = leagueAvg
	v.HomeRestDays = defaultRestDays
	v.AwayRestDays = defaultRestDays

	combined := make([]model.MatchRecord, 0, len(homeHistory)+len(awayHistory))
	combined = append(combined, homeHistory...)
	combined = append(combined, awayHistory...)
	v.H2HGoalsAvg = h2hGoalsAvg(homeTeam, awayTeam, combined)
	v.H2HBTTSRate = h2hBTTSRate(homeTeam, awayTeam, combined)

	v.HomeGoalDiff = goalDifference(window(homeHistory, 10), homeTeam)
	v.AwayGoalDiff = goalDifference(window(awayHistory, 10), awayTeam)

	// Poisson parameters: expected goal rates from attack strength against
	// the opposing defense, rescaled back to goals by half the league average.
	v.LambdaHome = v.HomeAttackStrength * v.AwayDefenseStrength * halfAvg
	v.LambdaAway = v.AwayAttackStrength * v.HomeDefenseStrength * halfAvg
	v.ExpectedTotalGoals = v.LambdaHome + v.LambdaAway
	v.PoissonOver25 = poisson.OverProb(v.LambdaHome, v.LambdaAway, overThreshold)

	// Auxiliary rates over the trailing 10 played matches.
	v.HomeWinsPct = winRate(window(homeHistory, 10), homeTeam)
	v.AwayWinsPct = winRate(window(awayHistory, 10), awayTeam)
	v.HomeOver25Rate = overRate(window(homeHistory, 10), overThreshold)
	v.AwayOver25Rate = overRate(window(awayHistory, 10), overThreshold)
	v.HomeBTTSRate = bttsRate(window(homeHistory, 10))
	v.AwayBTTSRate = bttsRate(window(awayHistory, 10))
	v.HomeCleanSheetRate = cleanSheetRate(window(homeHistory, 10), homeTeam)
	v.AwayCleanSheetRate = cleanSheetRate(window(awayHistory, 10), awayTeam)
	v.CombinedForm = (v.HomePointsForm5 + v.AwayPointsForm3) / 2

	return v
}

// window returns the first n matches (the most recent n).
func window(history []model.MatchRecord, n int) []model.MatchRecord {
	if len(history) < n {
		return history
	}
	return history[:n]
}

// between returns matches from..to, the trend-comparison window.
func between(history []model.MatchRecord, from, to int) []model.MatchRecord {
	if len(history) <= from {
		return nil
	}
	if len(history) < to {
		to = len(history)
	}
	return history[from:to]
}

func goalsAvg(matches []model.MatchRecord, team string) float64 {
	var sum, n float64
	for _, m := range matches {
		if g, ok := m.GoalsFor(team); ok {
			sum += float64(g)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

func concededAvg(matches []model.MatchRecord, team string) float64 {
	var sum, n float64
	for _, m := range matches {
		if g, ok := m.GoalsAgainst(team); ok {
			sum += float64(g)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

// pointsForm sums 3/1/0 points over the window.
func pointsForm(matches []model.MatchRecord, team string) float64 {
	var points float64
	for _, m := range matches {
		gf, ok := m.GoalsFor(team)
		if !ok {
			continue
		}
		ga, _ := m.GoalsAgainst(team)
		switch {
		case gf > ga:
			points += 3
		case gf == ga:
			points++
		}
	}
	return points
}

func goalDifference(matches []model.MatchRecord, team string) float64 {
	var diff float64
	for _, m := range matches {
		gf, ok := m.GoalsFor(team)
		if !ok {
			continue
		}
		ga, _ := m.GoalsAgainst(team)
		diff += float64(gf - ga)
	}
	return diff
}

func h2hGoalsAvg(home, away string, matches []model.MatchRecord) float64 {
	var sum, n float64
	for _, m := range matches {
		if !m.IsMeeting(home, away) {
			continue
		}
		if total, ok := m.TotalGoals(); ok {
			sum += float64(total)
			n++
		}
	}
	if n == 0 {
		return defaultH2HGoalsAvg
	}
	return sum / n
}

func h2hBTTSRate(home, away string, matches []model.MatchRecord) float64 {
	var both, n float64
	for _, m := range matches {
		if !m.IsMeeting(home, away) || !m.Played() {
			continue
		}
		n++
		if *m.HomeGoals > 0 && *m.AwayGoals > 0 {
			both++
		}
	}
	if n == 0 {
		return defaultH2HBTTSRate
	}
	return both / n
}

func winRate(matches []model.MatchRecord, team string) float64 {
	var wins, n float64
	for _, m := range matches {
		gf, ok := m.GoalsFor(team)
		if !ok {
			continue
		}
		ga, _ := m.GoalsAgainst(team)
		n++
		if gf > ga {
			wins++
		}
	}
	if n == 0 {
		return 0
	}
	return wins / n
}

func overRate(matches []model.MatchRecord, threshold float64) float64 {
	var over, n float64
	for _, m := range matches {
		total, ok := m.TotalGoals()
		if !ok {
			continue
		}
		n++
		if float64(total) > threshold {
			over++
		}
	}
	if n == 0 {
		return 0
	}
	return over / n
}

func bttsRate(matches []model.MatchRecord) float64 {
	var both, n float64
	for _, m := range matches {
		if !m.Played() {
			continue
		}
		n++
		if *m.HomeGoals > 0 && *m.AwayGoals > 0 {
			both++
		}
	}
	if n == 0 {
		return 0
	}
	return both / n
}

func cleanSheetRate(matches []model.MatchRecord, team string) float64 {
	var clean, n float64
	for _, m := range matches {
		ga, ok := m.GoalsAgainst(team)
		if !ok {
			continue
		}
		n++
		if ga == 0 {
			clean++
		}
	}
	if n == 0 {
		return 0
	}
	return clean / n
}
