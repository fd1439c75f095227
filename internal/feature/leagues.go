package feature

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// DefaultLeagueAvgGoals is the fallback season goal average for leagues
// without a configured constant.
const DefaultLeagueAvgGoals = 2.75

// defaultLeagueAverages holds the built-in per-league season goal averages
// used to normalize attack and defense strength.
var defaultLeagueAverages = map[string]float64{
	"Premier League": 2.82,
	"La Liga":        2.63,
	"Serie A":        2.89,
	"Bundesliga":     3.11,
	"Ligue 1":        2.71,
}

// LeagueAverages maps league names to their season goal averages.
type LeagueAverages map[string]float64

// DefaultLeagueAverages returns a copy of the built-in table.
func DefaultLeagueAverages() LeagueAverages {
	out := make(LeagueAverages, len(defaultLeagueAverages))
	for k, v := range defaultLeagueAverages {
		out[k] = v
	}
	return out
}

// For returns the goal average for a league, falling back to the default
// constant for unknown leagues.
func (l LeagueAverages) For(league string) float64 {
	if avg, ok := l[league]; ok && avg > 0 {
		return avg
	}
	return DefaultLeagueAvgGoals
}

// LoadLeagueAverages reads a per-league goal-average override from a YAML
// file. Entries merge over the built-in table, so a partial file only
// replaces the leagues it names.
func LoadLeagueAverages(path string) (LeagueAverages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "feature: read league averages %s", path)
	}

	var wrapper struct {
		Leagues map[string]float64 `yaml:"leagues"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "feature: parse league averages")
	}

	avgs := DefaultLeagueAverages()
	for name, avg := range wrapper.Leagues {
		if avg <= 0 {
			return nil, eris.Errorf("feature: league %q has non-positive goal average %.2f", name, avg)
		}
		avgs[name] = avg
	}
	return avgs, nil
}
