package model

import (
	"math"

	"github.com/rotisserie/eris"
)

// NumFeatures is the width of the model input vector.
const NumFeatures = 36

// FeatureNames lists the vector fields in canonical order. This order is the
// wire order consumed by the ensemble; changing it requires a new model
// artifact version.
var FeatureNames = []string{
	// Form and momentum.
	"home_goals_avg_5", "away_goals_avg_5",
	"home_goals_avg_10", "away_goals_avg_10",
	"home_points_form_3", "away_points_form_3", "home_points_form_5",
	// Attack and defense strength.
	"home_attack_strength", "away_attack_strength",
	"home_defense_strength", "away_defense_strength",
	"home_goals_trend", "away_goals_trend",
	"home_conceded_trend", "away_conceded_trend",
	// Match context.
	"home_advantage", "league_avg_goals",
	"home_rest_days", "away_rest_days",
	"h2h_goals_avg", "h2h_btts_rate",
	"home_goal_diff", "away_goal_diff",
	// Poisson parameters.
	"lambda_home", "lambda_away",
	"expected_total_goals", "poisson_over25",
	// Auxiliary rates.
	"home_wins_pct", "away_wins_pct",
	"home_over25_rate", "away_over25_rate",
	"home_btts_rate", "away_btts_rate",
	"home_clean_sheet_rate", "away_clean_sheet_rate",
	"combined_form",
}

// FeatureVector is the fixed 36-field numeric input to the scoring engine.
// Every field is a finite real number; builders substitute documented
// defaults when history is insufficient.
type FeatureVector struct {
	HomeGoalsAvg5   float64 `json:"home_goals_avg_5"`
	AwayGoalsAvg5   float64 `json:"away_goals_avg_5"`
	HomeGoalsAvg10  float64 `json:"home_goals_avg_10"`
	AwayGoalsAvg10  float64 `json:"away_goals_avg_10"`
	HomePointsForm3 float64 `json:"home_points_form_3"`
	AwayPointsForm3 float64 `json:"away_points_form_3"`
	HomePointsForm5 float64 `json:"home_points_form_5"`

	HomeAttackStrength  float64 `json:"home_attack_strength"`
	AwayAttackStrength  float64 `json:"away_attack_strength"`
	HomeDefenseStrength float64 `json:"home_defense_strength"`
	AwayDefenseStrength float64 `json:"away_defense_strength"`
	HomeGoalsTrend      float64 `json:"home_goals_trend"`
	AwayGoalsTrend      float64 `json:"away_goals_trend"`
	HomeConcededTrend   float64 `json:"home_conceded_trend"`
	AwayConcededTrend   float64 `json:"away_conceded_trend"`

	HomeAdvantage  float64 `json:"home_advantage"`
	LeagueAvgGoals float64 `json:"league_avg_goals"`
	HomeRestDays   float64 `json:"home_rest_days"`
	AwayRestDays   float64 `json:"away_rest_days"`
	H2HGoalsAvg    float64 `json:"h2h_goals_avg"`
	H2HBTTSRate    float64 `json:"h2h_btts_rate"`
	HomeGoalDiff   float64 `json:"home_goal_diff"`
	AwayGoalDiff   float64 `json:"away_goal_diff"`

	LambdaHome         float64 `json:"lambda_home"`
	LambdaAway         float64 `json:"lambda_away"`
	ExpectedTotalGoals float64 `json:"expected_total_goals"`
	PoissonOver25      float64 `json:"poisson_over25"`

	HomeWinsPct        float64 `json:"home_wins_pct"`
	AwayWinsPct        float64 `json:"away_wins_pct"`
	HomeOver25Rate     float64 `json:"home_over25_rate"`
	AwayOver25Rate     float64 `json:"away_over25_rate"`
	HomeBTTSRate       float64 `json:"home_btts_rate"`
	AwayBTTSRate       float64 `json:"away_btts_rate"`
	HomeCleanSheetRate float64 `json:"home_clean_sheet_rate"`
	AwayCleanSheetRate float64 `json:"away_clean_sheet_rate"`
	CombinedForm       float64 `json:"combined_form"`
}

// Values returns the vector in canonical order, parallel to FeatureNames.
func (v FeatureVector) Values() []float64 {
	return []float64{
		v.HomeGoalsAvg5, v.AwayGoalsAvg5,
		v.HomeGoalsAvg10, v.AwayGoalsAvg10,
		v.HomePointsForm3, v.AwayPointsForm3, v.HomePointsForm5,

		v.HomeAttackStrength, v.AwayAttackStrength,
		v.HomeDefenseStrength, v.AwayDefenseStrength,
		v.HomeGoalsTrend, v.AwayGoalsTrend,
		v.HomeConcededTrend, v.AwayConcededTrend,

		v.HomeAdvantage, v.LeagueAvgGoals,
		v.HomeRestDays, v.AwayRestDays,
		v.H2HGoalsAvg, v.H2HBTTSRate,
		v.HomeGoalDiff, v.AwayGoalDiff,

		v.LambdaHome, v.LambdaAway,
		v.ExpectedTotalGoals, v.PoissonOver25,

		v.HomeWinsPct, v.AwayWinsPct,
		v.HomeOver25Rate, v.AwayOver25Rate,
		v.HomeBTTSRate, v.AwayBTTSRate,
		v.HomeCleanSheetRate, v.AwayCleanSheetRate,
		v.CombinedForm,
	}
}

// Validate checks every field is finite, naming the first offender.
func (v FeatureVector) Validate() error {
	for i, val := range v.Values() {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return eris.Errorf("model: feature %s is not finite", FeatureNames[i])
		}
	}
	return nil
}
