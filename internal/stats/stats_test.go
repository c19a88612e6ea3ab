package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/newcomer/internal/member"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func rec(id string, score int, updated time.Duration, sent, clicked bool) member.Record {
	r := member.New(id, id, now.Add(-48*time.Hour))
	r.RiskScore = score
	r.UpdatedAt = now.Add(-updated)
	r.OutreachSent = sent
	r.CTAEngaged = clicked
	return r
}

func fixtures() []member.Record {
	return []member.Record{
		rec("a", 100, time.Hour, true, true),
		rec("b", 70, 30*time.Hour, true, false),
		rec("c", 55, 2*time.Hour, false, false),
		rec("d", 39, 3*time.Hour, true, false),
		rec("e", 0, 25*time.Hour, true, true),
	}
}

func TestCompute(t *testing.T) {
	s := Compute(fixtures(), now, DefaultBands())

	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 4, s.OutreachSent)
	assert.Equal(t, 2, s.CTAEngaged)
	assert.Equal(t, 2, s.HighRisk)
	assert.Equal(t, 1, s.MediumRisk)
	assert.Equal(t, 2, s.LowRisk)
	assert.Equal(t, 3, s.Active24h)
	assert.InDelta(t, 50.0, s.ConversionRate, 0.001)
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil, now, DefaultBands())
	assert.Equal(t, Summary{}, s)
}

func TestHighRiskMembers(t *testing.T) {
	got := HighRiskMembers(fixtures(), DefaultBands(), 1)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Len(t, HighRiskMembers(fixtures(), DefaultBands(), 0), 2)
}

func TestHealthyMembers(t *testing.T) {
	got := HealthyMembers(fixtures(), DefaultBands(), 5)
	require.Len(t, got, 2)
	assert.Equal(t, "d", got[0].ID, "most recently updated first")
}

func TestRecentInteractions(t *testing.T) {
	records := fixtures()
	records[0].Interactions = []member.Interaction{
		{Action: member.ActionMessage, Timestamp: now.Add(-3 * time.Minute)},
		{Action: member.ActionReaction, Timestamp: now.Add(-time.Minute)},
	}
	records[2].Interactions = []member.Interaction{
		{Action: member.ActionVoiceJoin, Timestamp: now.Add(-2 * time.Minute)},
	}

	got := RecentInteractions(records, 2)
	require.Len(t, got, 2)
	assert.Equal(t, member.ActionReaction, got[0].Action)
	assert.Equal(t, "c", got[1].MemberID)
}
