// Package panel keeps the operator control state in a single JSON file.
package panel

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Mode is the operating mode chosen by staff.
type Mode string

const (
	ModeManual   Mode = "manual"
	ModeSemiAuto Mode = "semi_auto"
	ModeOff      Mode = "off"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeManual, ModeSemiAuto, ModeOff:
		return true
	}
	return false
}

// Next returns the mode after m in the manual, semi_auto, off rotation.
func (m Mode) Next() Mode {
	switch m {
	case ModeManual:
		return ModeSemiAuto
	case ModeSemiAuto:
		return ModeOff
	default:
		return ModeManual
	}
}

// State is the persisted panel state.
type State struct {
	Active       bool      `json:"active"`
	Mode         Mode      `json:"mode"`
	LastCommand  *string   `json:"last_command"`
	LastExecutor *string   `json:"last_executor"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Allows reports whether the scheduler may run.
func (s State) Allows() bool {
	return s.Active && s.Mode != ModeOff
}

type file struct {
	Panel State `json:"panel"`
}

// Journal records every panel command.
type Journal interface {
	RecordPanelAction(action, executor string) error
}

// Patch is a partial panel update.
type Patch struct {
	Active *bool `json:"active,omitempty"`
	Mode   *Mode `json:"mode,omitempty"`
}

// Manager owns the panel state file.
type Manager struct {
	path    string
	journal Journal
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.RWMutex
	state State
}

// New creates a Manager for the file at path. journal and logger may be nil.
func New(path string, journal Journal, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		path:    path,
		journal: journal,
		logger:  logger,
		now:     time.Now,
		state:   defaultState(time.Now()),
	}
}

func defaultState(now time.Time) State {
	return State{Active: true, Mode: ModeManual, UpdatedAt: now.UTC()}
}

// Load reads the state file, writing the defaults when it does not exist.
// Fields missing from the file keep their defaults.
func (m *Manager) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		if err := m.persist(); err != nil {
			return m.state, err
		}
		return m.state, nil
	}
	if err != nil {
		return m.state, fmt.Errorf("read panel state: %w", err)
	}

	f := file{Panel: m.state}
	if err := json.Unmarshal(data, &f); err != nil {
		return m.state, fmt.Errorf("parse panel state: %w", err)
	}
	if !f.Panel.Mode.Valid() {
		m.logger.Warn("unknown panel mode, using manual", "mode", f.Panel.Mode)
		f.Panel.Mode = ModeManual
	}
	f.Panel.UpdatedAt = f.Panel.UpdatedAt.UTC()
	m.state = f.Panel
	return m.state, nil
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Allows reports whether the scheduler may run.
func (m *Manager) Allows() bool {
	return m.State().Allows()
}

// Update applies p, records action and executor as the last command,
// persists the file and journals the command.
func (m *Manager) Update(p Patch, action, executor string) (State, error) {
	if p.Mode != nil && !p.Mode.Valid() {
		return m.State(), fmt.Errorf("unknown mode %q", *p.Mode)
	}

	m.mu.Lock()
	if p.Active != nil {
		m.state.Active = *p.Active
	}
	if p.Mode != nil {
		m.state.Mode = *p.Mode
	}
	m.state.LastCommand = &action
	m.state.LastExecutor = &executor
	m.state.UpdatedAt = m.now().UTC()
	err := m.persist()
	st := m.state
	m.mu.Unlock()

	m.logger.Info("panel action", "action", action, "executor", executor, "active", st.Active, "mode", st.Mode)
	if m.journal != nil {
		if jerr := m.journal.RecordPanelAction(action, executor); jerr != nil {
			m.logger.Warn("journal panel action", "action", action, "error", jerr)
		}
	}
	return st, err
}

// Toggle flips the active flag.
func (m *Manager) Toggle(executor string) (State, error) {
	active := !m.State().Active
	action := "pause"
	if active {
		action = "resume"
	}
	return m.Update(Patch{Active: &active}, action, executor)
}

// CycleMode advances to the next operating mode.
func (m *Manager) CycleMode(executor string) (State, error) {
	next := m.State().Mode.Next()
	return m.Update(Patch{Mode: &next}, "mode:"+string(next), executor)
}

// persist must be called with mu held.
func (m *Manager) persist() error {
	data, err := json.MarshalIndent(file{Panel: m.state}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal panel state: %w", err)
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create panel dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".panel.*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write panel state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close panel state: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename panel state: %w", err)
	}
	return nil
}
