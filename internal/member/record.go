package member

import (
	"strings"
	"time"
)

// Interaction action labels. A label may carry a ":detail" suffix
// (e.g. "button_click:show_tips"); Kind strips it.
const (
	ActionMessage     = "message"
	ActionReaction    = "reaction"
	ActionVoiceJoin   = "voice_join"
	ActionButtonClick = "button_click"
)

// Interaction is one entry of a member's append-only activity log.
type Interaction struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is the durable per-member state tracked by the engine.
type Record struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	JoinedAt        time.Time     `json:"joined_at"`
	VisitedChannels []string      `json:"visited_channels"`
	RiskScore       int           `json:"risk_score"`
	OutreachSent    bool          `json:"outreach_sent"`
	CTAEngaged      bool          `json:"cta_engaged"`
	Badge           *string       `json:"badge"`
	Interactions    []Interaction `json:"interactions"`
	StaffAlerts     []string      `json:"staff_alerts"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// New returns a freshly tracked member: maximum risk, nothing sent, empty logs.
func New(id, name string, now time.Time) Record {
	now = now.UTC()
	if name == "" {
		name = UnknownName
	}
	return Record{
		ID:              id,
		Name:            name,
		JoinedAt:        now,
		VisitedChannels: []string{},
		RiskScore:       InitialScore,
		Interactions:    []Interaction{},
		StaffAlerts:     []string{},
		UpdatedAt:       now,
	}
}

// Kind returns the action kind of an interaction label, without any ":detail" suffix.
func Kind(action string) string {
	kind, _, _ := strings.Cut(action, ":")
	return kind
}

// Clone returns a deep copy. Empty collections stay non-nil so they serialize as [].
func (r Record) Clone() Record {
	out := r
	out.VisitedChannels = cloneStrings(r.VisitedChannels)
	out.StaffAlerts = cloneStrings(r.StaffAlerts)
	out.Interactions = make([]Interaction, len(r.Interactions))
	copy(out.Interactions, r.Interactions)
	if r.Badge != nil {
		b := *r.Badge
		out.Badge = &b
	}
	return out
}

// HasVisited reports whether channel is already in the visited set.
func (r Record) HasVisited(channel string) bool {
	for _, c := range r.VisitedChannels {
		if c == channel {
			return true
		}
	}
	return false
}

// HasInteraction reports whether the log holds at least one interaction of the given kind.
func (r Record) HasInteraction(kind string) bool {
	for _, i := range r.Interactions {
		if Kind(i.Action) == kind {
			return true
		}
	}
	return false
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name            *string
	JoinedAt        *time.Time
	RiskScore       *int
	OutreachSent    *bool
	CTAEngaged      *bool
	Badge           *string
	ClearBadge      bool
	VisitedChannels *[]string
	StaffAlerts     *[]string
}

// Apply merges the patch onto a copy of r. The score is clamped and the
// channel set deduplicated so a patch can never break a record invariant.
func (p Patch) Apply(r Record) Record {
	out := r.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.JoinedAt != nil {
		out.JoinedAt = p.JoinedAt.UTC()
	}
	if p.RiskScore != nil {
		out.RiskScore = Clamp(*p.RiskScore)
	}
	if p.OutreachSent != nil {
		out.OutreachSent = *p.OutreachSent
	}
	if p.CTAEngaged != nil {
		out.CTAEngaged = *p.CTAEngaged
	}
	if p.ClearBadge {
		out.Badge = nil
	}
	if p.Badge != nil {
		b := *p.Badge
		out.Badge = &b
	}
	if p.VisitedChannels != nil {
		out.VisitedChannels = dedupe(*p.VisitedChannels)
	}
	if p.StaffAlerts != nil {
		out.StaffAlerts = cloneStrings(*p.StaffAlerts)
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
