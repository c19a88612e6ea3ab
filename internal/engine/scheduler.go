package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/lazypower/newcomer/internal/content"
	"github.com/lazypower/newcomer/internal/delivery"
	"github.com/lazypower/newcomer/internal/member"
)

// Staff alert notes appended to a member after an outreach attempt.
const (
	NoteDelivered = "Engagement DM Sent"
	NoteFailed    = "Engagement Failed (DM not delivered)"
)

// Presenter renders the outreach message for a decision kind.
type Presenter interface {
	Render(rec member.Record, kind string) (content.Message, error)
}

// Deliverer sends outreach to a member.
type Deliverer interface {
	Deliver(ctx context.Context, rec member.Record, msg content.Message) error
	Announce(ctx context.Context, rec member.Record) error
}

// OutreachRecorder journals each delivery attempt.
type OutreachRecorder interface {
	RecordOutreach(cycleID, memberID, decision string, delivered bool, note string) error
}

// Members is the record source a Scheduler draws candidates from.
// *store.Store satisfies it.
type Members interface {
	List() []member.Record
	MarkOutreach(id, note string) (member.Record, bool)
}

// Gate lets an operator pause the scheduler without stopping it.
type Gate interface {
	Allows() bool
}

// SchedulerDeps are the collaborators of a Scheduler. Notifier, Recorder,
// Gate and Logger are optional.
type SchedulerDeps struct {
	Store     Members
	Presenter Presenter
	Deliverer Deliverer
	Notifier  StaffNotifier
	Recorder  OutreachRecorder
	Gate      Gate
	Logger    *slog.Logger
}

// SchedulerOptions tune a Scheduler.
type SchedulerOptions struct {
	Interval   time.Duration
	BatchSize  int
	Pacing     time.Duration
	Thresholds Thresholds
	Now        func() time.Time
}

// DefaultSchedulerOptions returns a one minute interval, batches of five
// and one second between engagements.
func DefaultSchedulerOptions() SchedulerOptions {
	return SchedulerOptions{
		Interval:   time.Minute,
		BatchSize:  5,
		Pacing:     time.Second,
		Thresholds: DefaultThresholds(),
	}
}

// CycleReport summarizes one scheduler cycle.
type CycleReport struct {
	CycleID    string        `json:"cycle_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Gated      bool          `json:"gated"`
	Candidates int           `json:"candidates"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Invalid    int           `json:"invalid"`
	Delivered  int           `json:"delivered"`
	Failed     int           `json:"failed"`
}

// Engaged is the number of candidates an attempt was made for.
func (r CycleReport) Engaged() int {
	return r.Delivered + r.Failed
}

// Scheduler periodically engages at-risk members. At most one cycle runs at
// a time; a tick that finds a cycle running is dropped. Batches rotate
// through the candidate list so members the rules skip cannot hold the
// front of every batch.
type Scheduler struct {
	deps    SchedulerDeps
	opts    SchedulerOptions
	logger  *slog.Logger
	guard   *semaphore.Weighted
	limiter *rate.Limiter

	// cursor is the last candidate handed to a batch. Guarded by guard.
	cursor    member.Record
	hasCursor bool

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	loopDone  chan struct{}
	cycles    sync.WaitGroup
}

// NewScheduler creates a Scheduler. Zero options fall back to the defaults.
func NewScheduler(deps SchedulerDeps, opts SchedulerOptions) *Scheduler {
	def := DefaultSchedulerOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Thresholds.Retention <= 0 {
		opts.Thresholds.Retention = def.Thresholds.Retention
	}
	if opts.Thresholds.Encouragement <= 0 {
		opts.Thresholds.Encouragement = def.Thresholds.Encouragement
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if opts.Pacing > 0 {
		limit = rate.Every(opts.Pacing)
	}

	return &Scheduler{
		deps:     deps,
		opts:     opts,
		logger:   logger,
		guard:    semaphore.NewWeighted(1),
		limiter:  rate.NewLimiter(limit, 1),
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Start runs one cycle immediately and then one per interval until Stop.
// Calling Start more than once has no effect.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("scheduler started", "interval", s.opts.Interval, "batch_size", s.opts.BatchSize)
		s.spawn()

		go func() {
			defer close(s.loopDone)
			ticker := time.NewTicker(s.opts.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					if !s.tick() {
						return
					}
				case <-s.stopCh:
					return
				}
			}
		}()
	})
}

// tick starts a cycle unless Stop has been called. select picks randomly
// among ready cases, so a tick can arrive together with the stop signal.
func (s *Scheduler) tick() bool {
	select {
	case <-s.stopCh:
		return false
	default:
	}
	s.spawn()
	return true
}

func (s *Scheduler) spawn() {
	s.cycles.Add(1)
	go func() {
		defer s.cycles.Done()
		s.RunCycle(context.Background())
	}()
}

// Stop cancels the timer and waits for an in-flight cycle to finish.
// A running batch is never interrupted.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		started := true
		s.startOnce.Do(func() { started = false })
		if started {
			<-s.loopDone
		}
		s.cycles.Wait()
		s.logger.Info("scheduler stopped")
	})
}

// RunCycle processes one batch of candidates. It returns false without doing
// anything when another cycle is already running.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, bool) {
	if !s.guard.TryAcquire(1) {
		cyclesTotal.WithLabelValues("busy").Inc()
		s.logger.Debug("scheduler cycle already running, skipping")
		return CycleReport{}, false
	}
	defer s.guard.Release(1)

	// Cancellation of the caller does not stop a batch midway.
	ctx = context.WithoutCancel(ctx)

	report := CycleReport{CycleID: uuid.NewString(), StartedAt: s.opts.Now().UTC()}
	logger := s.logger.With("cycle_id", report.CycleID)
	start := time.Now()

	if s.deps.Gate != nil && !s.deps.Gate.Allows() {
		report.Gated = true
		cyclesTotal.WithLabelValues("gated").Inc()
		logger.Debug("scheduler paused by panel")
		return report, true
	}

	var candidates []member.Record
	for _, rec := range s.deps.Store.List() {
		if !rec.OutreachSent {
			candidates = append(candidates, rec)
		}
	}
	report.Candidates = len(candidates)

	for _, rec := range s.nextBatch(candidates) {
		report.Processed++
		s.process(ctx, logger, report.CycleID, rec, &report)
	}

	report.Duration = time.Since(start)
	cyclesTotal.WithLabelValues("ran").Inc()
	cycleDuration.Observe(report.Duration.Seconds())
	if report.Engaged() > 0 || report.Invalid > 0 {
		logger.Info("scheduler cycle complete",
			"candidates", report.Candidates,
			"processed", report.Processed,
			"delivered", report.Delivered,
			"failed", report.Failed,
			"invalid", report.Invalid,
			"duration", report.Duration)
	}
	return report, true
}

// nextBatch picks up to BatchSize candidates, starting after the last one
// the previous batch took and wrapping at the end of the list.
func (s *Scheduler) nextBatch(candidates []member.Record) []member.Record {
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return joinedBefore(candidates[i], candidates[j])
	})

	start := 0
	if s.hasCursor {
		start = sort.Search(len(candidates), func(i int) bool {
			return joinedBefore(s.cursor, candidates[i])
		})
		if start == len(candidates) {
			start = 0
		}
	}

	n := min(s.opts.BatchSize, len(candidates))
	batch := make([]member.Record, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, candidates[(start+i)%len(candidates)])
	}
	s.cursor = batch[n-1]
	s.hasCursor = true
	return batch
}

// joinedBefore orders records by join time, then id.
func joinedBefore(a, b member.Record) bool {
	if !a.JoinedAt.Equal(b.JoinedAt) {
		return a.JoinedAt.Before(b.JoinedAt)
	}
	return a.ID < b.ID
}

// process handles one candidate. A panic is recovered so the rest of the
// batch still runs.
func (s *Scheduler) process(ctx context.Context, logger *slog.Logger, cycleID string, raw member.Record, report *CycleReport) {
	defer func() {
		if r := recover(); r != nil {
			report.Skipped++
			logger.Error("candidate panicked", "member_id", raw.ID, "panic", fmt.Sprint(r))
		}
	}()

	now := s.opts.Now().UTC()
	res := member.ValidateRecord(raw, now)
	if !res.Valid {
		report.Invalid++
		logger.Warn("candidate failed validation", "member_id", raw.ID, "issues", res.Issues)
		return
	}
	rec := res.Record

	d := Evaluate(rec, now, s.opts.Thresholds)
	decisionsTotal.WithLabelValues(string(d.Kind)).Inc()
	if !d.Engage() {
		report.Skipped++
		return
	}

	if err := s.limiter.Wait(ctx); err != nil {
		report.Skipped++
		logger.Warn("pacing wait failed", "member_id", rec.ID, "error", err)
		return
	}

	msg, err := s.deps.Presenter.Render(rec, string(d.Kind))
	if err != nil {
		report.Skipped++
		logger.Error("render outreach", "member_id", rec.ID, "decision", d.Kind, "error", err)
		return
	}

	delivered := true
	note := NoteDelivered
	if err := s.deps.Deliverer.Deliver(ctx, rec, msg); err != nil {
		delivered = false
		note = NoteFailed
		logger.Info("outreach not delivered", "member_id", rec.ID, "name", rec.Name, "error", err)
	}

	// Single attempt: the member is marked either way so they are never messaged twice.
	s.deps.Store.MarkOutreach(rec.ID, note)
	s.journal(logger, cycleID, rec.ID, d, delivered, note)

	if delivered {
		report.Delivered++
		deliveriesTotal.WithLabelValues("delivered").Inc()
		logger.Info("outreach delivered", "member_id", rec.ID, "decision", d.Kind, "rationale", d.Rationale)
		if err := s.deps.Deliverer.Announce(ctx, rec); err != nil {
			logger.Warn("public announce failed", "member_id", rec.ID, "error", err)
		}
		return
	}

	report.Failed++
	deliveriesTotal.WithLabelValues("failed").Inc()
	if s.deps.Notifier != nil {
		n := delivery.Notice{
			Kind:     delivery.NoticeEngagementFailed,
			MemberID: rec.ID,
			Name:     rec.Name,
			Score:    rec.RiskScore,
			Detail:   "direct messages probably closed",
		}
		if err := s.deps.Notifier.NotifyStaff(ctx, n); err != nil {
			logger.Warn("staff failure notice failed", "member_id", rec.ID, "error", err)
		}
	}
}

func (s *Scheduler) journal(logger *slog.Logger, cycleID, memberID string, d Decision, delivered bool, note string) {
	if s.deps.Recorder == nil {
		return
	}
	if err := s.deps.Recorder.RecordOutreach(cycleID, memberID, string(d.Kind), delivered, note); err != nil {
		logger.Warn("journal outreach", "member_id", memberID, "error", err)
	}
}
