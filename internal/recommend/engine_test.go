package recommend

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/store"
)

type fakeArtistSearcher struct {
	available bool
	similar   []catalog.SimilarArtist
	releases  []catalog.AlbumResult
}

func (f *fakeArtistSearcher) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeArtistSearcher) SearchArtists(ctx context.Context, query string, limit int) []catalog.ArtistResult {
	return nil
}
func (f *fakeArtistSearcher) SearchAlbums(ctx context.Context, query string, limit int) []catalog.AlbumResult {
	return nil
}
func (f *fakeArtistSearcher) SearchTracks(ctx context.Context, query string, limit int) []catalog.TrackResult {
	return nil
}
func (f *fakeArtistSearcher) ArtistDetail(ctx context.Context, externalID string) (catalog.ArtistResult, bool) {
	return catalog.ArtistResult{}, false
}
func (f *fakeArtistSearcher) SimilarArtists(ctx context.Context, externalID string, limit int) []catalog.SimilarArtist {
	return f.similar
}
func (f *fakeArtistSearcher) NewReleases(ctx context.Context, artistExternalID string, sinceDays int) []catalog.AlbumResult {
	return f.releases
}

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, "file:"+t.Name()+"?mode=memory&cache=shared", zerolog.Nop())
	require.NoError(t, err)
	cfg, err := config.New(s.DB, zerolog.Nop())
	require.NoError(t, err)

	searcher := &fakeArtistSearcher{
		available: true,
		similar:   []catalog.SimilarArtist{{ArtistResult: catalog.ArtistResult{ExternalID: "sim-1", Name: "Discovered Artist", Genres: []string{"ambient"}}, Match: 0.7}},
	}
	e := New(s, cfg, []catalog.ArtistSearcher{searcher}, nil, nil, zerolog.Nop())
	return e, s
}

func TestGenerateRecommendationsPersistsWithCategoryExpiry(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	artist := &store.Artist{Name: "Boards of Canada", SpotifyID: "bocid", Genres: store.CommaList{"ambient"}, InLibrary: true}
	require.NoError(t, s.UpsertArtist(ctx, artist))

	aid := artist.ID
	require.NoError(t, s.RecordListeningEvent(ctx, &store.ListeningEvent{
		ArtistID: &aid, PlayedAt: time.Now(), CompletionPercent: 100, HourOfDay: 14, DayOfWeek: 2,
	}))

	require.NoError(t, e.GenerateRecommendations(ctx))

	active, err := s.ActiveRecommendations(ctx, store.CategorySimilarArtists)
	require.NoError(t, err)
	require.NotEmpty(t, active)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), active[0].ExpiresAt, time.Minute)
}

func TestGenerateRecommendationsSkippedWhenProfilingDisabled(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.settings.Set("ml_profiling_enabled", "false", "recommendations"))

	require.NoError(t, e.GenerateRecommendations(ctx))

	active, err := s.ActiveRecommendations(ctx, store.CategorySimilarArtists)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCheckNewReleasesUsesFixedConfidence(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, "file:"+t.Name()+"?mode=memory&cache=shared", zerolog.Nop())
	require.NoError(t, err)
	cfg, err := config.New(s.DB, zerolog.Nop())
	require.NoError(t, err)

	searcher := &fakeArtistSearcher{
		available: true,
		releases:  []catalog.AlbumResult{{ExternalID: "new-1", Title: "Fresh Album", ReleaseDate: "2026-07-20"}},
	}
	e := New(s, cfg, []catalog.ArtistSearcher{searcher}, nil, nil, zerolog.Nop())

	artist := &store.Artist{Name: "Tame Impala", SpotifyID: "ti", InLibrary: true}
	require.NoError(t, s.UpsertArtist(ctx, artist))

	require.NoError(t, e.CheckNewReleases(ctx))

	active, err := s.ActiveRecommendations(ctx, store.CategoryReleaseRadar)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 0.9, active[0].Confidence)
	assert.Equal(t, 1.0, active[0].Novelty)
}

func TestExpiryForUnknownCategoryDefaultsToSevenDays(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, expiryFor(store.RecommendationCategory("unknown")))
}
