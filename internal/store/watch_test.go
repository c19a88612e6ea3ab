package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickUp(t *testing.T) {
	s, _ := newTestStore(t)
	path := filepath.Join(s.Dir(), "u7.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"u7","name":"dana"}`), 0o644))

	assert.True(t, s.pickUp(path))
	assert.False(t, s.pickUp(path), "already cached")
	assert.False(t, s.pickUp(filepath.Join(s.Dir(), ".u7.json")))
	assert.False(t, s.pickUp(filepath.Join(s.Dir(), "u7.123.tmp")))

	rec, ok := s.Get("u7")
	require.True(t, ok)
	assert.Equal(t, "dana", rec.Name)
}

func TestPickUp_IDMismatch(t *testing.T) {
	s, _ := newTestStore(t)
	path := filepath.Join(s.Dir(), "u8.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"someone-else"}`), 0o644))

	assert.False(t, s.pickUp(path))
	assert.Equal(t, 0, s.Len())
}

func TestPickUp_CacheStaysAuthoritative(t *testing.T) {
	s, _ := newTestStore(t)
	s.Create("u1", "alice")

	path := filepath.Join(s.Dir(), "u1.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"u1","name":"mallory","risk_score":0}`), 0o644))
	assert.False(t, s.pickUp(path))

	rec, _ := s.Get("u1")
	assert.Equal(t, "alice", rec.Name)
	assert.Equal(t, 100, rec.RiskScore)
}

func TestWatch(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx))

	data := []byte(`{"id":"dropped","name":"erin"}`)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "dropped.json"), data, 0o644))

	assert.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		_, ok := s.cache["dropped"]
		return ok
	}, 2*time.Second, 20*time.Millisecond)
}
