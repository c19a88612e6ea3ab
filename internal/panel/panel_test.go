package panel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/newcomer/internal/ledger"
)

func TestLoad_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "panel.json")
	m := New(path, nil, nil)

	st, err := m.Load()
	require.NoError(t, err)
	assert.True(t, st.Active)
	assert.Equal(t, ModeManual, st.Mode)
	assert.Nil(t, st.LastCommand)
	assert.FileExists(t, path)
	assert.True(t, m.Allows())
}

func TestLoad_ReadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"panel":{"active":false,"mode":"semi_auto"}}`), 0o644))

	st, err := New(path, nil, nil).Load()
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.Equal(t, ModeSemiAuto, st.Mode)
}

func TestLoad_UnknownModeFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"panel":{"active":true,"mode":"turbo"}}`), 0o644))

	st, err := New(path, nil, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, ModeManual, st.Mode)
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))

	st, err := New(path, nil, nil).Load()
	assert.Error(t, err)
	assert.True(t, st.Active, "defaults kept")
}

func TestToggleAndCycle(t *testing.T) {
	db, err := ledger.OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	path := filepath.Join(t.TempDir(), "panel.json")
	m := New(path, db, nil)
	_, err = m.Load()
	require.NoError(t, err)

	st, err := m.Toggle("staff-1")
	require.NoError(t, err)
	assert.False(t, st.Active)
	assert.False(t, m.Allows())
	require.NotNil(t, st.LastCommand)
	assert.Equal(t, "pause", *st.LastCommand)
	assert.Equal(t, "staff-1", *st.LastExecutor)

	m.Toggle("staff-1")
	st, _ = m.CycleMode("staff-2")
	assert.Equal(t, ModeSemiAuto, st.Mode)
	assert.True(t, m.Allows())
	st, _ = m.CycleMode("staff-2")
	assert.Equal(t, ModeOff, st.Mode)
	assert.False(t, m.Allows(), "off mode closes the gate")
	st, _ = m.CycleMode("staff-2")
	assert.Equal(t, ModeManual, st.Mode)

	// Survives a reload.
	reloaded, err := New(path, nil, nil).Load()
	require.NoError(t, err)
	assert.Equal(t, ModeManual, reloaded.Mode)
	assert.Equal(t, "staff-2", *reloaded.LastExecutor)

	actions, err := db.ListPanelActions(10)
	require.NoError(t, err)
	assert.Len(t, actions, 5)
}

func TestUpdate_RejectsUnknownMode(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "panel.json"), nil, nil)
	bad := Mode("turbo")
	_, err := m.Update(Patch{Mode: &bad}, "mode", "staff")
	assert.Error(t, err)
	assert.Equal(t, ModeManual, m.State().Mode)
}
