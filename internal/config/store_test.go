package config

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	s, err := New(db, zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestDefaultsSeeded(t *testing.T) {
	s := newTestStore(t)

	require.Equal(t, "flac", s.String("preferred_quality", "mp3"))
	require.False(t, s.Bool("auto_download_enabled", true))
	require.Equal(t, 3, s.Int("max_concurrent_downloads", 0))
	require.Equal(t, 0.8, s.Float("auto_download_confidence_threshold", 0))
}

func TestBoolRecognizesTruthyStrings(t *testing.T) {
	s := newTestStore(t)

	for _, v := range []string{"true", "1", "yes", "TRUE", "Yes"} {
		require.NoError(t, s.Set("x", v, "test"))
		require.True(t, s.Bool("x", false), "value %q should be truthy", v)
	}
	for _, v := range []string{"false", "0", "no", "nonsense"} {
		require.NoError(t, s.Set("x", v, "test"))
		require.False(t, s.Bool("x", true), "value %q should be falsy", v)
	}
}

// TestSetIsImmediatelyVisible covers invariant 7: after a successful write,
// a read observes the new value without any reload step.
func TestSetIsImmediatelyVisible(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("prowlarr_url", "http://prowlarr:9696", "integrations"))
	got := s.String("prowlarr_url", "")
	require.Equal(t, "http://prowlarr:9696", got)
}

func TestOptionalAbsentIsFalse(t *testing.T) {
	s := newTestStore(t)

	_, ok := s.Optional("does_not_exist")
	if ok {
		t.Fatal("expected Optional to report absence for an unknown key")
	}

	_, ok = s.Optional("spotify_client_id")
	if ok {
		t.Fatal("expected Optional to report absence for an empty default")
	}
}

func TestSubscribeNotifiedOnSetAndInvalidate(t *testing.T) {
	s := newTestStore(t)
	ch := s.Subscribe("qbittorrent_url")

	require.NoError(t, s.Set("qbittorrent_url", "http://qbt:8080", "integrations"))
	select {
	case <-ch:
	default:
		t.Fatal("expected a signal after Set")
	}

	require.NoError(t, s.Invalidate("qbittorrent_url"))
	select {
	case <-ch:
	default:
		t.Fatal("expected a signal after Invalidate")
	}
}
