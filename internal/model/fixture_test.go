package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestFixtureStatus_Scannable(t *testing.T) {
	tests := []struct {
		status FixtureStatus
		want   bool
	}{
		{FixtureScheduled, true},
		{FixtureTimed, true},
		{FixtureInPlay, false},
		{FixtureFinished, false},
		{FixturePostponed, false},
		{FixtureCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Scannable())
		})
	}
}

func TestMatchRecord_GoalsFor_SideAttribution(t *testing.T) {
	m := MatchRecord{
		HomeTeam:  TeamRef{Name: "Arsenal"},
		AwayTeam:  TeamRef{Name: "Chelsea"},
		HomeGoals: intPtr(3),
		AwayGoals: intPtr(1),
	}

	got, ok := m.GoalsFor("Arsenal")
	assert.True(t, ok)
	assert.Equal(t, 3, got)

	got, ok = m.GoalsFor("Chelsea")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	// A team not involved in the match contributes nothing.
	_, ok = m.GoalsFor("Liverpool")
	assert.False(t, ok)
}

func TestMatchRecord_GoalsAgainst(t *testing.T) {
	m := MatchRecord{
		HomeTeam:  TeamRef{Name: "Arsenal"},
		AwayTeam:  TeamRef{Name: "Chelsea"},
		HomeGoals: intPtr(3),
		AwayGoals: intPtr(1),
	}

	got, ok := m.GoalsAgainst("Arsenal")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	got, ok = m.GoalsAgainst("Chelsea")
	assert.True(t, ok)
	assert.Equal(t, 3, got)
}

func TestMatchRecord_Unplayed(t *testing.T) {
	m := MatchRecord{
		HomeTeam: TeamRef{Name: "Arsenal"},
		AwayTeam: TeamRef{Name: "Chelsea"},
	}

	assert.False(t, m.Played())

	_, ok := m.GoalsFor("Arsenal")
	assert.False(t, ok)
	_, ok = m.GoalsAgainst("Chelsea")
	assert.False(t, ok)
	_, ok = m.TotalGoals()
	assert.False(t, ok)
}

func TestMatchRecord_IsMeeting_EitherOrientation(t *testing.T) {
	m := MatchRecord{
		HomeTeam: TeamRef{Name: "Arsenal"},
		AwayTeam: TeamRef{Name: "Chelsea"},
	}

	assert.True(t, m.IsMeeting("Arsenal", "Chelsea"))
	assert.True(t, m.IsMeeting("Chelsea", "Arsenal"))
	assert.False(t, m.IsMeeting("Arsenal", "Liverpool"))
}
