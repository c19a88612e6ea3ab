package engine

import (
	"fmt"
	"time"

	"github.com/lazypower/newcomer/internal/member"
)

// DefaultThreshold is the age past which an un-engaged member becomes a candidate.
const DefaultThreshold = 5 * time.Minute

// Kind classifies why a member should be re-engaged.
type Kind string

const (
	KindNone          Kind = "none"
	KindRetention     Kind = "retention"
	KindEncouragement Kind = "encouragement"
)

// Decision is the output of Evaluate. It is never persisted.
type Decision struct {
	Kind      Kind   `json:"kind"`
	Rationale string `json:"rationale"`
}

// Engage reports whether the decision calls for outreach.
func (d Decision) Engage() bool {
	return d.Kind == KindRetention || d.Kind == KindEncouragement
}

// Thresholds holds the ages that gate each decision. They are tuned
// independently even though both default to DefaultThreshold.
type Thresholds struct {
	Retention     time.Duration
	Encouragement time.Duration
}

// DefaultThresholds returns both thresholds at DefaultThreshold.
func DefaultThresholds() Thresholds {
	return Thresholds{Retention: DefaultThreshold, Encouragement: DefaultThreshold}
}

func (t Thresholds) floor() time.Duration {
	return min(t.Retention, t.Encouragement)
}

// Evaluate decides whether rec should be re-engaged at now. Rules are tried
// in order and the first match wins:
//
//  1. younger than both thresholds: none
//  2. older than the retention threshold with no interactions: retention
//  3. voice or reaction activity but no message, older than the
//     encouragement threshold: encouragement
//  4. otherwise: none
func Evaluate(rec member.Record, now time.Time, th Thresholds) Decision {
	age := now.Sub(rec.JoinedAt)

	if age < th.floor() {
		return Decision{Kind: KindNone, Rationale: "too new"}
	}

	if age > th.Retention && len(rec.Interactions) == 0 {
		return Decision{
			Kind:      KindRetention,
			Rationale: fmt.Sprintf("no interactions after %s", age.Truncate(time.Second)),
		}
	}

	passive := rec.HasInteraction(member.ActionVoiceJoin) || rec.HasInteraction(member.ActionReaction)
	if passive && !rec.HasInteraction(member.ActionMessage) && age > th.Encouragement {
		return Decision{Kind: KindEncouragement, Rationale: "active in voice or reactions but has not chatted"}
	}

	return Decision{Kind: KindNone, Rationale: "engaged"}
}
