package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/newcomer/internal/delivery"
	"github.com/lazypower/newcomer/internal/member"
	"github.com/lazypower/newcomer/internal/store"
)

func testStore(t *testing.T, clock func() time.Time) *store.Store {
	t.Helper()
	opts := []store.Option{}
	if clock != nil {
		opts = append(opts, store.WithClock(clock))
	}
	s := store.New(t.TempDir(), opts...)
	s.Initialize()
	return s
}

// blockingNotifier holds every NotifyStaff call until release is closed.
type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (b *blockingNotifier) NotifyStaff(ctx context.Context, n delivery.Notice) error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func TestTracker_JoinNew(t *testing.T) {
	s := testStore(t, nil)
	mock := &delivery.Mock{}
	tr := NewTracker(s, mock, nil)

	res, err := tr.Join(context.Background(), "u1", "alice")
	require.NoError(t, err)
	assert.Equal(t, store.JoinNew, res.Outcome)
	assert.Equal(t, 100, res.Record.RiskScore)
	assert.False(t, res.Record.OutreachSent)
	assert.Equal(t, []delivery.NoticeKind{delivery.NoticeNewMember}, mock.NoticeKinds())
}

func TestTracker_JoinReturning(t *testing.T) {
	s := testStore(t, nil)
	mock := &delivery.Mock{}
	tr := NewTracker(s, mock, nil)

	tr.Join(context.Background(), "u1", "alice")
	res, err := tr.Join(context.Background(), "u1", "alice")
	require.NoError(t, err)
	assert.Equal(t, store.JoinReturningTracked, res.Outcome)

	low := 10
	s.Update("u1", member.Patch{RiskScore: &low})
	res, err = tr.Join(context.Background(), "u1", "alice")
	require.NoError(t, err)
	assert.Equal(t, store.JoinReturningIgnored, res.Outcome)

	assert.Equal(t, []delivery.NoticeKind{delivery.NoticeNewMember, delivery.NoticeReturningMember}, mock.NoticeKinds())
}

func TestTracker_DuplicateJoinDropped(t *testing.T) {
	s := testStore(t, nil)
	n := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	tr := NewTracker(s, n, nil)

	done := make(chan error, 1)
	go func() {
		_, err := tr.Join(context.Background(), "u1", "alice")
		done <- err
	}()

	<-n.entered // first join is inside the guard
	_, err := tr.Join(context.Background(), "u1", "alice")
	assert.ErrorIs(t, err, ErrJoinInFlight)

	close(n.release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, n.calls)

	// The guard is released once the first join completes.
	go func() { <-n.entered }()
	res, err := tr.Join(context.Background(), "u1", "alice")
	require.NoError(t, err)
	assert.Equal(t, store.JoinReturningTracked, res.Outcome)
}

func TestTracker_NotifierErrorSwallowed(t *testing.T) {
	s := testStore(t, nil)
	tr := NewTracker(s, &delivery.Mock{NotifyErr: errors.New("bridge down")}, nil)

	res, err := tr.Join(context.Background(), "u1", "alice")
	require.NoError(t, err)
	assert.Equal(t, store.JoinNew, res.Outcome)
}

func TestTracker_EmptyID(t *testing.T) {
	tr := NewTracker(testStore(t, nil), nil, nil)

	_, err := tr.Join(context.Background(), "", "x")
	assert.ErrorIs(t, err, ErrEmptyID)
	_, err = tr.Message("", "general")
	assert.ErrorIs(t, err, ErrEmptyID)
	_, err = tr.ButtonClick("", "show_tips")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestTracker_Activity(t *testing.T) {
	s := testStore(t, nil)
	tr := NewTracker(s, nil, nil)
	tr.Join(context.Background(), "u1", "alice")

	rec, err := tr.Message("u1", "general")
	require.NoError(t, err)
	assert.Equal(t, 95, rec.RiskScore)
	require.Len(t, rec.Interactions, 1)
	assert.Equal(t, member.ActionMessage, rec.Interactions[0].Action)

	rec, _ = tr.Reaction("u1", "memes")
	assert.Equal(t, 93, rec.RiskScore)
	rec, _ = tr.VoiceJoin("u1", "lounge")
	assert.Equal(t, 78, rec.RiskScore)
	assert.ElementsMatch(t, []string{"general", "memes", "lounge"}, rec.VisitedChannels)

	rec, err = tr.ButtonClick("u1", "show_tips")
	require.NoError(t, err)
	assert.Equal(t, 58, rec.RiskScore)
	assert.True(t, rec.CTAEngaged)

	_, err = tr.Message("ghost", "general")
	assert.ErrorIs(t, err, ErrNotTracked)
	assert.Equal(t, 1, s.Len())
}
