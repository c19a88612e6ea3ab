package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lazypower/newcomer/internal/delivery"
	"github.com/lazypower/newcomer/internal/member"
	"github.com/lazypower/newcomer/internal/store"
)

var (
	// ErrJoinInFlight is returned when a join for the same member is already being handled.
	ErrJoinInFlight = errors.New("join already in flight")
	// ErrEmptyID is returned for events without a member id.
	ErrEmptyID = errors.New("empty member id")
	// ErrNotTracked is returned for activity from a member the store does not know.
	ErrNotTracked = errors.New("member not tracked")
)

// StaffNotifier posts notices to the staff log.
type StaffNotifier interface {
	NotifyStaff(ctx context.Context, n delivery.Notice) error
}

// JoinResult is what a join event did.
type JoinResult struct {
	Record  member.Record     `json:"record"`
	Outcome store.JoinOutcome `json:"outcome"`
}

// Tracker turns inbound platform events into store mutations.
type Tracker struct {
	store    *store.Store
	notifier StaffNotifier
	logger   *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewTracker creates a Tracker over s. notifier may be nil.
func NewTracker(s *store.Store, notifier StaffNotifier, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:    s,
		notifier: notifier,
		logger:   logger,
		inFlight: make(map[string]struct{}),
	}
}

func (t *Tracker) acquire(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.inFlight[id]; busy {
		return false
	}
	t.inFlight[id] = struct{}{}
	return true
}

func (t *Tracker) release(id string) {
	t.mu.Lock()
	delete(t.inFlight, id)
	t.mu.Unlock()
}

// Join handles a join event. While a join for id is being handled, further
// joins for the same id are dropped with ErrJoinInFlight. Staff are told
// about new and re-tracked members; a failed notice is logged and ignored.
func (t *Tracker) Join(ctx context.Context, id, name string) (JoinResult, error) {
	if id == "" {
		return JoinResult{}, ErrEmptyID
	}
	if !t.acquire(id) {
		joinsTotal.WithLabelValues("dropped").Inc()
		t.logger.Info("duplicate join ignored", "member_id", id)
		return JoinResult{}, ErrJoinInFlight
	}
	defer t.release(id)

	rec, outcome := t.store.HandleJoin(id, name)
	joinsTotal.WithLabelValues(string(outcome)).Inc()

	var kind delivery.NoticeKind
	switch outcome {
	case store.JoinNew:
		t.logger.Info("new member tracked", "member_id", id, "name", rec.Name)
		kind = delivery.NoticeNewMember
	case store.JoinReturningTracked:
		t.logger.Info("returning member flagged for engagement", "member_id", id, "score", rec.RiskScore)
		kind = delivery.NoticeReturningMember
	case store.JoinReturningIgnored:
		t.logger.Info("returning member already safe", "member_id", id, "score", rec.RiskScore)
		return JoinResult{Record: rec, Outcome: outcome}, nil
	}

	if t.notifier != nil {
		n := delivery.Notice{Kind: kind, MemberID: rec.ID, Name: rec.Name, Score: rec.RiskScore}
		if err := t.notifier.NotifyStaff(ctx, n); err != nil {
			t.logger.Warn("staff notice failed", "member_id", id, "error", err)
		}
	}
	return JoinResult{Record: rec, Outcome: outcome}, nil
}

// Message records a chat message in channel.
func (t *Tracker) Message(id, channel string) (member.Record, error) {
	return t.activity(id, member.ActionMessage, channel)
}

// Reaction records a reaction added in channel.
func (t *Tracker) Reaction(id, channel string) (member.Record, error) {
	return t.activity(id, member.ActionReaction, channel)
}

// VoiceJoin records the member entering a voice channel.
func (t *Tracker) VoiceJoin(id, channel string) (member.Record, error) {
	return t.activity(id, member.ActionVoiceJoin, channel)
}

// ButtonClick records a click on an outreach call-to-action.
func (t *Tracker) ButtonClick(id, action string) (member.Record, error) {
	if id == "" {
		return member.Record{}, ErrEmptyID
	}
	rec, ok := t.store.RecordClick(id, action)
	if !ok {
		return member.Record{}, ErrNotTracked
	}
	t.logger.Info("call to action engaged", "member_id", id, "action", action, "score", rec.RiskScore)
	return rec, nil
}

func (t *Tracker) activity(id, action, channel string) (member.Record, error) {
	if id == "" {
		return member.Record{}, ErrEmptyID
	}
	rec, ok := t.store.RecordActivity(id, action, channel)
	if !ok {
		return member.Record{}, ErrNotTracked
	}
	t.logger.Debug("activity recorded", "member_id", id, "action", action, "channel", channel, "score", rec.RiskScore)
	return rec, nil
}
