package finder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	st := NewStore(greeting, time.Minute)

	s := st.Create()
	require.NotEmpty(t, s.ID)
	require.Equal(t, 1, st.Len())

	got, ok := st.Get(s.ID)
	require.True(t, ok)
	require.Same(t, s, got)
	require.Equal(t, greeting, got.Transcript()[0].Content)

	other := st.Create()
	require.NotEqual(t, s.ID, other.ID)

	require.True(t, st.Delete(s.ID))
	require.False(t, st.Delete(s.ID))
	_, ok = st.Get(s.ID)
	require.False(t, ok)
	require.Equal(t, 1, st.Len())
}

func TestStoreSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := NewStore(greeting, 10*time.Minute)
	st.now = func() time.Time { return now }

	stale := st.Create()
	busy := st.Create()
	busy.mu.Lock()
	busy.phase = PhaseAwaitingCompletion
	busy.mu.Unlock()

	now = now.Add(5 * time.Minute)
	fresh := st.Create()

	now = now.Add(6 * time.Minute)
	require.Equal(t, 1, st.Sweep())

	_, ok := st.Get(stale.ID)
	require.False(t, ok)
	_, ok = st.Get(busy.ID)
	require.True(t, ok, "sessions with work in flight are kept")
	_, ok = st.Get(fresh.ID)
	require.True(t, ok)
}

func TestStoreSweepDisabled(t *testing.T) {
	st := NewStore(greeting, 0)
	st.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	st.Create()

	require.Zero(t, st.Sweep())
	require.Equal(t, 1, st.Len())
}

func TestStoreRunStopsOnCancel(t *testing.T) {
	st := NewStore(greeting, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- st.Run(ctx, 10*time.Millisecond) }()

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
