package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday-labs/goalscan/internal/model"
	"github.com/matchday-labs/goalscan/internal/poisson"
)

// played builds a finished match record; most tests only care about names
// and the score.
func played(home string, hg int, away string, ag int) model.MatchRecord {
	return model.MatchRecord{
		HomeTeam:  model.TeamRef{Name: home},
		AwayTeam:  model.TeamRef{Name: away},
		HomeGoals: &hg,
		AwayGoals: &ag,
	}
}

func scheduled(home, away string) model.MatchRecord {
	return model.MatchRecord{
		HomeTeam: model.TeamRef{Name: home},
		AwayTeam: model.TeamRef{Name: away},
	}
}

// Arsenal scored 2,1,3,0,2 across home and away fixtures, conceding 0,3,3,2,1.
func arsenalHistory() []model.MatchRecord {
	return []model.MatchRecord{
		played("Arsenal", 2, "Brighton", 0),
		played("Fulham", 3, "Arsenal", 1),
		played("Arsenal", 3, "Spurs", 3),
		played("Everton", 2, "Arsenal", 0),
		played("Arsenal", 2, "Wolves", 1),
	}
}

// Chelsea scored 0,1,1,2,0, conceding 2,2,1,0,3.
func chelseaHistory() []model.MatchRecord {
	return []model.MatchRecord{
		played("Chelsea", 0, "Villa", 2),
		played("Brentford", 2, "Chelsea", 1),
		played("Chelsea", 1, "Palace", 1),
		played("Leeds", 0, "Chelsea", 2),
		played("Chelsea", 0, "City", 3),
	}
}

func TestBuildGoalAverages(t *testing.T) {
	b := NewBuilder(nil)

	v := b.Build("Arsenal", "Chelsea", arsenalHistory(), chelseaHistory(), "Premier League")

	// (2+1+3+0+2)/5 = 1.6 and (0+1+1+2+0)/5 = 0.8.
	assert.InDelta(t, 1.6, v.HomeGoalsAvg5, 1e-9)
	assert.InDelta(t, 0.8, v.AwayGoalsAvg5, 1e-9)

	// Only five matches on record, so the 10-match window sees the same five.
	assert.InDelta(t, 1.6, v.HomeGoalsAvg10, 1e-9)
	assert.InDelta(t, 0.8, v.AwayGoalsAvg10, 1e-9)
}

func TestBuildStrengthsAndLambdas(t *testing.T) {
	b := NewBuilder(nil)

	v := b.Build("Arsenal", "Chelsea", arsenalHistory(), chelseaHistory(), "Premier League")

	half := 2.82 / 2
	// Arsenal: scored 1.6/match, conceded (0+3+3+2+1)/5 = 1.8.
	// Chelsea: scored 0.8/match, conceded (2+2+1+0+3)/5 = 1.6.
	assert.InDelta(t, 1.6/half, v.HomeAttackStrength, 1e-9)
	assert.InDelta(t, 0.8/half, v.AwayAttackStrength, 1e-9)
	assert.InDelta(t, 1.8/half, v.HomeDefenseStrength, 1e-9)
	assert.InDelta(t, 1.6/half, v.AwayDefenseStrength, 1e-9)

	// lambda_home = home_attack * away_defense * half = 1.6*1.6/1.41.
	assert.InDelta(t, 1.6*1.6/half, v.LambdaHome, 1e-9)
	// lambda_away = away_attack * home_defense * half = 0.8*1.8/1.41.
	assert.InDelta(t, 0.8*1.8/half, v.LambdaAway, 1e-9)
	assert.InDelta(t, v.LambdaHome+v.LambdaAway, v.ExpectedTotalGoals, 1e-9)

	// The Poisson feature must agree with the shared implementation.
	assert.InDelta(t, poisson.OverProb(v.LambdaHome, v.LambdaAway, 2.5), v.PoissonOver25, 1e-12)
}

func TestBuildPointsForm(t *testing.T) {
	b := NewBuilder(nil)

	v := b.Build("Arsenal", "Chelsea", arsenalHistory(), chelseaHistory(), "Premier League")

	// Arsenal last 5: W L D L W = 3+0+1+0+3 = 7; last 3: W L D = 4.
	assert.InDelta(t, 7.0, v.HomePointsForm5, 1e-9)
	assert.InDelta(t, 4.0, v.HomePointsForm3, 1e-9)
	// Chelsea last 3: L L D = 1.
	assert.InDelta(t, 1.0, v.AwayPointsForm3, 1e-9)
	// combined_form = (7 + 1) / 2.
	assert.InDelta(t, 4.0, v.CombinedForm, 1e-9)
}

func TestBuildRates(t *testing.T) {
	b := NewBuilder(nil)

	v := b.Build("Arsenal", "Chelsea", arsenalHistory(), chelseaHistory(), "Premier League")

	// Arsenal won 2 of 5; totals 2,4,6,2,3 put 3 of 5 over 2.5; both teams
	// scored in 3 of 5; one clean sheet.
	assert.InDelta(t, 0.4, v.HomeWinsPct, 1e-9)
	assert.InDelta(t, 0.6, v.HomeOver25Rate, 1e-9)
	assert.InDelta(t, 0.6, v.HomeBTTSRate, 1e-9)
	assert.InDelta(t, 0.2, v.HomeCleanSheetRate, 1e-9)

	// Chelsea won 1 of 5; totals 2,3,2,2,3 put 2 of 5 over 2.5; both teams
	// scored in 2 of 5; one clean sheet.
	assert.InDelta(t, 0.2, v.AwayWinsPct, 1e-9)
	assert.InDelta(t, 0.4, v.AwayOver25Rate, 1e-9)
	assert.InDelta(t, 0.4, v.AwayBTTSRate, 1e-9)
	assert.InDelta(t, 0.2, v.AwayCleanSheetRate, 1e-9)

	// Arsenal goal diff: (2-0)+(1-3)+(3-3)+(0-2)+(2-1) = 1.
	assert.InDelta(t, 1.0, v.HomeGoalDiff, 1e-9)
	// Chelsea: (0-2)+(1-2)+(1-1)+(2-0)+(0-3) = -4.
	assert.InDelta(t, -4.0, v.AwayGoalDiff, 1e-9)
}

func TestBuildTrendAgainstPriorWindow(t *testing.T) {
	b := NewBuilder(nil)

	// Ten matches: recent five at 2 goals each, prior five at 0.
	history := make([]model.MatchRecord, 0, 10)
	for i := 0; i < 5; i++ {
		history = append(history, played("Lyon", 2, "Opp", 1))
	}
	for i := 0; i < 5; i++ {
		history = append(history, played("Lyon", 0, "Opp", 3))
	}

	v := b.Build("Lyon", "Nice", history, nil, "Ligue 1")

	assert.InDelta(t, 2.0, v.HomeGoalsTrend, 1e-9)
	// Conceded 1/match recently versus 3/match before.
	assert.InDelta(t, -2.0, v.HomeConcededTrend, 1e-9)
}

func TestBuildHeadToHead(t *testing.T) {
	b := NewBuilder(nil)

	// Meetings appear in either team's history and either orientation.
	home := []model.MatchRecord{
		played("Milan", 2, "Inter", 1),
		played("Milan", 1, "Roma", 0),
	}
	away := []model.MatchRecord{
		played("Inter", 0, "Milan", 0),
		played("Inter", 3, "Napoli", 1),
	}

	v := b.Build("Milan", "Inter", home, away, "Serie A")

	// Two meetings with totals 3 and 0.
	assert.InDelta(t, 1.5, v.H2HGoalsAvg, 1e-9)
	// Both scored in one of the two.
	assert.InDelta(t, 0.5, v.H2HBTTSRate, 1e-9)
}

func TestBuildHeadToHeadDefaults(t *testing.T) {
	b := NewBuilder(nil)

	v := b.Build("Milan", "Inter", []model.MatchRecord{played("Milan", 1, "Roma", 0)}, nil, "Serie A")

	assert.InDelta(t, 2.75, v.H2HGoalsAvg, 1e-9)
	assert.InDelta(t, 0.5, v.H2HBTTSRate, 1e-9)
}

func TestBuildEmptyHistories(t *testing.T) {
	b := NewBuilder(nil)

	v := b.Build("Genk", "Brugge", nil, nil, "Pro League")

	require.NoError(t, v.Validate())

	assert.Zero(t, v.HomeGoalsAvg5)
	assert.Zero(t, v.AwayGoalsAvg10)
	assert.Zero(t, v.HomeAttackStrength)
	assert.Zero(t, v.LambdaHome)
	assert.Zero(t, v.LambdaAway)
	// With both rates at zero the threshold event cannot happen.
	assert.Zero(t, v.PoissonOver25)

	// Context features keep their documented defaults.
	assert.InDelta(t, 1.0, v.HomeAdvantage, 1e-9)
	assert.InDelta(t, DefaultLeagueAvgGoals, v.LeagueAvgGoals, 1e-9)
	assert.InDelta(t, 7.0, v.HomeRestDays, 1e-9)
	assert.InDelta(t, 7.0, v.AwayRestDays, 1e-9)
	assert.InDelta(t, 2.75, v.H2HGoalsAvg, 1e-9)
	assert.InDelta(t, 0.5, v.H2HBTTSRate, 1e-9)
}

func TestBuildSkipsUnplayedMatches(t *testing.T) {
	b := NewBuilder(nil)

	history := []model.MatchRecord{
		scheduled("Porto", "Braga"),
		played("Porto", 2, "Benfica", 2),
		scheduled("Sporting", "Porto"),
		played("Guimaraes", 0, "Porto", 1),
	}

	v := b.Build("Porto", "Boavista", history, nil, "Primeira Liga")

	// Only the two finished matches count: (2+1)/2.
	assert.InDelta(t, 1.5, v.HomeGoalsAvg5, 1e-9)
	// D W = 4 points.
	assert.InDelta(t, 4.0, v.HomePointsForm5, 1e-9)
	assert.InDelta(t, 0.5, v.HomeOver25Rate, 1e-9)
}

func TestBuildUsesLeagueAverage(t *testing.T) {
	b := NewBuilder(nil)

	history := []model.MatchRecord{played("Bayern", 3, "Koeln", 0)}

	v := b.Build("Bayern", "Dortmund", history, nil, "Bundesliga")

	assert.InDelta(t, 3.11, v.LeagueAvgGoals, 1e-9)
	assert.InDelta(t, 3.0/(3.11/2), v.HomeAttackStrength, 1e-9)

	// Unknown league falls back to the global default.
	v = b.Build("Bayern", "Dortmund", history, nil, "Regionalliga")
	assert.InDelta(t, DefaultLeagueAvgGoals, v.LeagueAvgGoals, 1e-9)
}

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder(nil)

	first := b.Build("Arsenal", "Chelsea", arsenalHistory(), chelseaHistory(), "Premier League")
	second := b.Build("Arsenal", "Chelsea", arsenalHistory(), chelseaHistory(), "Premier League")

	assert.Equal(t, first, second)
	assert.Len(t, first.Values(), model.NumFeatures)
}
