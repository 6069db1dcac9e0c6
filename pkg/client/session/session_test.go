package session_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/propvault/pkg/client/session"
)

func TestOpenMissingFile(t *testing.T) {
	s, err := session.Open(filepath.Join(t.TempDir(), "session.json"), time.Hour, clockwork.NewFakeClock())
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.Active())
	assert.True(t, s.ExpiresAt().IsZero())
}

func TestSetPersistsAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	clock := clockwork.NewFakeClock()

	s, err := session.Open(path, time.Hour, clock)
	require.NoError(t, err)
	require.NoError(t, s.Set("tok-1"))
	s.Close()

	clock.Advance(30 * time.Minute)

	reopened, err := session.Open(path, time.Hour, clock)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, "tok-1", reopened.Token())
	assert.True(t, clock.Now().Add(30*time.Minute).Equal(reopened.ExpiresAt()))
}

func TestOpenExpiredClearsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	clock := clockwork.NewFakeClock()

	s, err := session.Open(path, time.Hour, clock)
	require.NoError(t, err)
	require.NoError(t, s.Set("old"))
	s.Close()

	clock.Advance(2 * time.Hour)

	reopened, err := session.Open(path, time.Hour, clock)
	require.NoError(t, err)
	assert.False(t, reopened.Active())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestExpiryTeardown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	clock := clockwork.NewFakeClock()

	s, err := session.Open(path, time.Minute, clock)
	require.NoError(t, err)

	var expired atomic.Int32

	s.OnExpire(func() { expired.Add(1) })
	require.NoError(t, s.Set("tok"))

	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return expired.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, s.Token())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := session.Open(path, time.Hour, clockwork.NewFakeClock())
	require.NoError(t, err)
	require.NoError(t, s.Set("tok"))
	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	assert.False(t, s.Active())
}
