// Package stats aggregates member records for dashboards. It never mutates.
package stats

import (
	"sort"
	"time"

	"github.com/lazypower/newcomer/internal/member"
)

// Bands are the risk thresholds used for grouping.
type Bands struct {
	High   int
	Medium int
}

// DefaultBands returns high at 70 and medium at 40.
func DefaultBands() Bands {
	return Bands{High: 70, Medium: 40}
}

// Summary is the dashboard headline.
type Summary struct {
	Total          int     `json:"total"`
	OutreachSent   int     `json:"outreach_sent"`
	CTAEngaged     int     `json:"cta_engaged"`
	HighRisk       int     `json:"high_risk"`
	MediumRisk     int     `json:"medium_risk"`
	LowRisk        int     `json:"low_risk"`
	Active24h      int     `json:"active_24h"`
	ConversionRate float64 `json:"conversion_rate"` // percent of contacted members who clicked
}

// Compute summarizes records as of now.
func Compute(records []member.Record, now time.Time, b Bands) Summary {
	var s Summary
	s.Total = len(records)
	for _, r := range records {
		if r.OutreachSent {
			s.OutreachSent++
		}
		if r.CTAEngaged {
			s.CTAEngaged++
		}
		switch member.BandFor(r.RiskScore, b.High, b.Medium) {
		case member.BandHigh:
			s.HighRisk++
		case member.BandMedium:
			s.MediumRisk++
		default:
			s.LowRisk++
		}
		if now.Sub(r.UpdatedAt) < 24*time.Hour {
			s.Active24h++
		}
	}
	if s.OutreachSent > 0 {
		s.ConversionRate = float64(s.CTAEngaged) / float64(s.OutreachSent) * 100
	}
	return s
}

// HighRiskMembers returns up to limit high-risk members, riskiest first.
func HighRiskMembers(records []member.Record, b Bands, limit int) []member.Record {
	var out []member.Record
	for _, r := range records {
		if r.RiskScore >= b.High {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RiskScore > out[j].RiskScore })
	return truncate(out, limit)
}

// HealthyMembers returns up to limit low-risk members, most recently updated first.
func HealthyMembers(records []member.Record, b Bands, limit int) []member.Record {
	var out []member.Record
	for _, r := range records {
		if r.RiskScore < b.Medium {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return truncate(out, limit)
}

// Activity is one interaction attributed to a member.
type Activity struct {
	MemberID  string    `json:"member_id"`
	Name      string    `json:"name"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// RecentInteractions returns up to limit interactions across all members, newest first.
func RecentInteractions(records []member.Record, limit int) []Activity {
	var out []Activity
	for _, r := range records {
		for _, i := range r.Interactions {
			out = append(out, Activity{MemberID: r.ID, Name: r.Name, Action: i.Action, Timestamp: i.Timestamp})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func truncate(r []member.Record, limit int) []member.Record {
	if limit > 0 && len(r) > limit {
		return r[:limit]
	}
	return r
}
