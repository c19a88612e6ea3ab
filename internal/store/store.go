package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lazypower/newcomer/internal/member"
)

// JoinOutcome is what HandleJoin did with a join event.
type JoinOutcome string

const (
	JoinNew              JoinOutcome = "NEW"
	JoinReturningIgnored JoinOutcome = "RETURNING_IGNORED"
	JoinReturningTracked JoinOutcome = "RETURNING_TRACKED"
	// JoinRejected means the event carried no member id and nothing was stored.
	JoinRejected JoinOutcome = "REJECTED"
)

// DefaultMediumRisk is the score below which a returning member counts as already safe.
const DefaultMediumRisk = 40

const fileExt = ".json"

// Store is the authoritative, cache-first collection of member records.
// Every mutation is mirrored to one JSON file per member under dir. The
// cache wins: a failed durable write is logged and the in-memory update stands.
type Store struct {
	dir        string
	now        func() time.Time
	logger     *slog.Logger
	mediumRisk int

	mu          sync.RWMutex
	cache       map[string]member.Record
	initialized bool

	// writeMu serializes read-modify-write cycles together with their durable write.
	writeMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for load and write failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMediumRisk sets the threshold used by HandleJoin.
func WithMediumRisk(score int) Option {
	return func(s *Store) { s.mediumRisk = score }
}

// New creates a Store rooted at dir. Call Initialize to load persisted records.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:        dir,
		now:        time.Now,
		logger:     slog.Default(),
		mediumRisk: DefaultMediumRisk,
		cache:      make(map[string]member.Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the directory holding member files.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// Initialize loads every valid persisted record into the cache and returns
// how many were loaded. Runs once; later calls are no-ops. Unreadable or
// invalid files are logged and skipped, never fatal.
func (s *Store) Initialize() int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	done := s.initialized
	s.mu.RUnlock()
	if done {
		return 0
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.logger.Error("create member directory", "dir", s.dir, "error", err)
		return 0
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("read member directory", "dir", s.dir, "error", err)
		return 0
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		rec, ok := s.loadFile(filepath.Join(s.dir, e.Name()))
		if !ok {
			loadSkipped.Inc()
			continue
		}
		s.mu.Lock()
		if _, exists := s.cache[rec.ID]; !exists {
			s.cache[rec.ID] = rec
			loaded++
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	s.logger.Info("members loaded", "count", loaded, "dir", s.dir)
	return loaded
}

// loadFile reads and sanitizes one member file.
func (s *Store) loadFile(path string) (member.Record, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("read member file", "path", path, "error", err)
		}
		return member.Record{}, false
	}
	res, err := member.Decode(data, s.clock())
	if err != nil {
		s.logger.Warn("parse member file", "path", path, "error", err)
		return member.Record{}, false
	}
	if !res.Valid {
		s.logger.Warn("invalid member file skipped", "path", path, "issues", res.Issues)
		return member.Record{}, false
	}
	if len(res.Issues) > 0 {
		s.logger.Info("member file sanitized", "member_id", res.Record.ID, "issues", res.Issues)
	}
	return res.Record, true
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, url.PathEscape(id)+fileExt)
}

// Get returns a copy of the record for id. A cache miss falls back to a
// single load from disk so records written out-of-band are still found.
func (s *Store) Get(id string) (member.Record, bool) {
	rec, ok := s.get(id)
	if !ok {
		return member.Record{}, false
	}
	return rec.Clone(), true
}

func (s *Store) get(id string) (member.Record, bool) {
	if id == "" {
		return member.Record{}, false
	}
	s.mu.RLock()
	rec, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return rec, true
	}

	rec, ok = s.loadFile(s.path(id))
	if !ok || rec.ID != id {
		return member.Record{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cache[id]; ok {
		return existing, true
	}
	s.cache[id] = rec
	return rec, true
}

// Create builds a new record with default values and persists it.
// An empty id is logged and ignored, and the zero Record is returned.
func (s *Store) Create(id, name string) member.Record {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.save(member.New(id, name, s.clock()))
}

// Save stamps updated_at, replaces the cached record and writes it to disk.
// A record without an id is logged and ignored, and the zero Record is returned.
func (s *Store) Save(rec member.Record) member.Record {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.save(rec)
}

// save must be called with writeMu held.
func (s *Store) save(rec member.Record) member.Record {
	if rec.ID == "" {
		rejectedWrites.Inc()
		s.logger.Warn("refusing to store member without id", "name", rec.Name)
		return member.Record{}
	}
	rec = rec.Clone()
	if clamped := member.Clamp(rec.RiskScore); clamped != rec.RiskScore {
		s.logger.Warn("risk score clamped on save", "member_id", rec.ID, "from", rec.RiskScore, "to", clamped)
		rec.RiskScore = clamped
	}
	rec.UpdatedAt = s.clock()

	s.mu.Lock()
	s.cache[rec.ID] = rec
	s.mu.Unlock()

	if err := s.persist(rec); err != nil {
		writeFailures.Inc()
		s.logger.Error("persist member", "member_id", rec.ID, "error", err)
	}
	return rec.Clone()
}

// persist writes rec to a temp file in the same directory and renames it
// over the target, so a crash mid-write leaves the previous copy intact.
func (s *Store) persist(rec member.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, url.PathEscape(rec.ID)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(rec.ID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// mutate applies fn to the current record for id and saves the result.
// fn returns false to signal that nothing changed and no save is needed.
func (s *Store) mutate(id string, fn func(*member.Record) bool) (member.Record, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, ok := s.get(id)
	if !ok {
		return member.Record{}, false
	}
	rec := cur.Clone()
	if !fn(&rec) {
		return rec, true
	}
	return s.save(rec), true
}

// Update merges patch onto the record for id and saves it.
// The bool is false when id is not tracked.
func (s *Store) Update(id string, patch member.Patch) (member.Record, bool) {
	return s.mutate(id, func(r *member.Record) bool {
		if patch.RiskScore != nil && member.Clamp(*patch.RiskScore) != *patch.RiskScore {
			s.logger.Warn("risk score clamped on update", "member_id", id, "requested", *patch.RiskScore)
		}
		*r = patch.Apply(*r)
		return true
	})
}

// RecordInteraction appends action to the interaction log and lowers the risk score.
func (s *Store) RecordInteraction(id, action string) (member.Record, bool) {
	return s.mutate(id, func(r *member.Record) bool {
		s.appendInteraction(r, action)
		return true
	})
}

func (s *Store) appendInteraction(r *member.Record, action string) {
	r.Interactions = append(r.Interactions, member.Interaction{Action: action, Timestamp: s.clock()})
	r.RiskScore = member.ApplyInteraction(r.RiskScore, action)
}

// RecordChannelVisit adds channel to the visited set. A repeat visit changes
// nothing and does not touch updated_at.
func (s *Store) RecordChannelVisit(id, channel string) (member.Record, bool) {
	return s.mutate(id, func(r *member.Record) bool {
		if r.HasVisited(channel) {
			return false
		}
		r.VisitedChannels = append(r.VisitedChannels, channel)
		return true
	})
}

// RecordActivity records a channel visit and an interaction as one mutation.
// An empty channel records the interaction only.
func (s *Store) RecordActivity(id, action, channel string) (member.Record, bool) {
	return s.mutate(id, func(r *member.Record) bool {
		if channel != "" && !r.HasVisited(channel) {
			r.VisitedChannels = append(r.VisitedChannels, channel)
		}
		s.appendInteraction(r, action)
		return true
	})
}

// RecordClick flags the call-to-action as engaged and logs a
// button_click interaction carrying the button's action.
func (s *Store) RecordClick(id, action string) (member.Record, bool) {
	return s.mutate(id, func(r *member.Record) bool {
		r.CTAEngaged = true
		label := member.ActionButtonClick
		if action != "" {
			label += ":" + action
		}
		s.appendInteraction(r, label)
		return true
	})
}

// MarkOutreach flags the member as contacted and appends note to the staff alerts.
func (s *Store) MarkOutreach(id, note string) (member.Record, bool) {
	return s.mutate(id, func(r *member.Record) bool {
		r.OutreachSent = true
		r.StaffAlerts = append(r.StaffAlerts, note)
		return true
	})
}

// List returns a snapshot of every cached record, oldest join first.
// It initializes the store on first use.
func (s *Store) List() []member.Record {
	s.mu.RLock()
	done := s.initialized
	s.mu.RUnlock()
	if !done {
		s.Initialize()
	}

	s.mu.RLock()
	out := make([]member.Record, 0, len(s.cache))
	for _, rec := range s.cache {
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// HandleJoin is the join-event reducer. An unknown member is created; a
// returning member already below the medium-risk threshold is left alone;
// any other returning member has joined_at refreshed so tracking restarts.
func (s *Store) HandleJoin(id, name string) (member.Record, JoinOutcome) {
	if id == "" {
		rejectedWrites.Inc()
		s.logger.Warn("ignoring join without member id", "name", name)
		return member.Record{}, JoinRejected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, ok := s.get(id)
	if !ok {
		return s.save(member.New(id, name, s.clock())), JoinNew
	}
	if cur.RiskScore < s.mediumRisk {
		return cur.Clone(), JoinReturningIgnored
	}
	rec := cur.Clone()
	rec.JoinedAt = s.clock()
	return s.save(rec), JoinReturningTracked
}
