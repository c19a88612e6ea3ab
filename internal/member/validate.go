package member

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Placeholders substituted when a stored record lacks them.
const (
	UnknownID   = "unknown_id"
	UnknownName = "Unknown User"
)

// timestampLayouts are tried in order when parsing persisted timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Result is the outcome of sanitizing one record.
// Valid is false only when the identity could not be recovered; Record is
// then still filled in (with UnknownID) so callers can log it.
type Result struct {
	Valid  bool
	Record Record
	Issues []string
}

// Decode parses a serialized record and sanitizes it. The error is reserved
// for input that is not a JSON object at all.
func Decode(data []byte, now time.Time) (Result, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Result{}, fmt.Errorf("decode member record: %w", err)
	}
	if raw == nil {
		return Result{}, fmt.Errorf("decode member record: not an object")
	}
	return Validate(raw, now), nil
}

// ValidateRecord re-checks an in-memory record by running it through the
// same path a record loaded from disk takes.
func ValidateRecord(r Record, now time.Time) Result {
	data, err := json.Marshal(r)
	if err != nil {
		return Result{Record: r, Issues: []string{fmt.Sprintf("marshal record: %v", err)}}
	}
	res, err := Decode(data, now)
	if err != nil {
		return Result{Record: r, Issues: []string{err.Error()}}
	}
	return res
}

// Validate normalizes an untyped record into a well-formed Record. Every
// auto-correction is reported in Issues; nothing is rejected except a lost identity.
func Validate(raw map[string]any, now time.Time) Result {
	now = now.UTC()
	v := &validator{raw: raw, now: now}

	rec := Record{}
	valid := true

	id, ok := raw["id"].(string)
	if !ok || id == "" {
		v.issue("missing or invalid id")
		id = UnknownID
		valid = false
	}
	rec.ID = id

	name, ok := raw["name"].(string)
	if !ok || name == "" {
		v.issue("name missing, defaulted to %q", UnknownName)
		name = UnknownName
	}
	rec.Name = name

	rec.JoinedAt = v.timestamp("joined_at")
	rec.VisitedChannels = v.stringSet("visited_channels")
	rec.RiskScore = v.score("risk_score")
	rec.OutreachSent = v.boolean("outreach_sent")
	rec.CTAEngaged = v.boolean("cta_engaged")
	rec.Badge = v.badge("badge")
	rec.Interactions = v.interactions("interactions")
	rec.StaffAlerts = v.stringList("staff_alerts")
	rec.UpdatedAt = v.timestamp("updated_at")

	issues := v.issues
	if issues == nil {
		issues = []string{}
	}
	return Result{Valid: valid, Record: rec, Issues: issues}
}

type validator struct {
	raw    map[string]any
	now    time.Time
	issues []string
}

func (v *validator) issue(format string, args ...any) {
	v.issues = append(v.issues, fmt.Sprintf(format, args...))
}

func (v *validator) timestamp(key string) time.Time {
	s, ok := v.raw[key].(string)
	if ok {
		if t, ok := parseTimestamp(s); ok {
			return t
		}
	}
	v.issue("%s missing or unparseable, reset to now", key)
	return v.now
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (v *validator) score(key string) int {
	f, ok := toFloat(v.raw[key])
	if !ok {
		v.issue("%s missing or not a number, reset to %d", key, InitialScore)
		return InitialScore
	}
	if f != math.Trunc(f) {
		v.issue("%s truncated to an integer", key)
		f = math.Trunc(f)
	}
	if f < MinScore || f > MaxScore {
		v.issue("%s clamped to %d-%d", key, MinScore, MaxScore)
		f = math.Max(MinScore, math.Min(MaxScore, f))
	}
	return int(f)
}

func toFloat(x any) (float64, bool) {
	switch n := x.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func (v *validator) boolean(key string) bool {
	b, ok := v.raw[key].(bool)
	if !ok {
		v.issue("%s missing or not a boolean, reset to false", key)
		return false
	}
	return b
}

func (v *validator) badge(key string) *string {
	x, present := v.raw[key]
	if !present || x == nil {
		return nil
	}
	s, ok := x.(string)
	if !ok || s == "" {
		v.issue("%s invalid, cleared", key)
		return nil
	}
	return &s
}

// items returns the raw array under key, reporting a non-array value.
func (v *validator) items(key string) ([]any, bool) {
	switch arr := v.raw[key].(type) {
	case []any:
		return arr, true
	case []string:
		out := make([]any, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out, true
	default:
		v.issue("%s fixed (was not an array)", key)
		return nil, false
	}
}

func (v *validator) stringList(key string) []string {
	out := []string{}
	arr, ok := v.items(key)
	if !ok {
		return out
	}
	dropped := 0
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			dropped++
			continue
		}
		out = append(out, s)
	}
	if dropped > 0 {
		v.issue("%s fixed (%d non-string entries dropped)", key, dropped)
	}
	return out
}

func (v *validator) stringSet(key string) []string {
	list := v.stringList(key)
	set := dedupe(list)
	if len(set) != len(list) {
		v.issue("%s fixed (duplicates removed)", key)
	}
	return set
}

func (v *validator) interactions(key string) []Interaction {
	out := []Interaction{}
	arr, ok := v.items(key)
	if !ok {
		return out
	}
	dropped := 0
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			dropped++
			continue
		}
		action, _ := m["action"].(string)
		ts, _ := m["timestamp"].(string)
		t, ok := parseTimestamp(ts)
		if action == "" || !ok {
			dropped++
			continue
		}
		out = append(out, Interaction{Action: action, Timestamp: t})
	}
	if dropped > 0 {
		v.issue("%s fixed (%d malformed entries dropped)", key, dropped)
	}
	return out
}
