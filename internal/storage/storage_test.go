package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "store.json"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDefaultsOnFirstAccess(t *testing.T) {
	s := newTestStorage(t)

	record, err := s.GetGuildSettings("g1")
	require.NoError(t, err)
	assert.Equal(t, 100, record.Volume)
	assert.False(t, record.Repeat)
	assert.Empty(t, record.TrackHistory)
}

func TestVolumeAndRepeatRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SetGuildVolume("g1", 42))
	require.NoError(t, s.SetGuildRepeat("g1", true, false))

	record, err := s.GetGuildSettings("g1")
	require.NoError(t, err)
	assert.Equal(t, 42, record.Volume)
	assert.True(t, record.Repeat)
	assert.False(t, record.QueueRepeat)
}

func TestHistoryIsTrimmed(t *testing.T) {
	s := newTestStorage(t)

	for i := 0; i < trackHistoryLimit+5; i++ {
		require.NoError(t, s.AppendTrackToHistory("g1", PlayedTrack{
			Title:    fmt.Sprintf("track-%d", i),
			PlayedAt: time.Now(),
		}))
	}

	history, err := s.FetchTrackHistory("g1")
	require.NoError(t, err)
	require.Len(t, history, trackHistoryLimit)
	assert.Equal(t, "track-5", history[0].Title)
	assert.Equal(t, fmt.Sprintf("track-%d", trackHistoryLimit+4), history[len(history)-1].Title)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	s, err := New(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.SetGuildVolume("g1", 77))
	require.NoError(t, s.Close())

	reopened, err := New(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	record, err := reopened.GetGuildSettings("g1")
	require.NoError(t, err)
	assert.Equal(t, 77, record.Volume)
}
