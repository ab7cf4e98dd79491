package librarysync

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/store"
)

type fakePlex struct {
	available bool
	artists   []catalog.PlexArtist
	albums    []catalog.PlexAlbum
	tracks    map[string][]catalog.PlexTrack
	history   []catalog.PlexPlayEvent
}

func (f *fakePlex) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakePlex) Artists(ctx context.Context) []catalog.PlexArtist { return f.artists }
func (f *fakePlex) Albums(ctx context.Context) []catalog.PlexAlbum   { return f.albums }
func (f *fakePlex) Tracks(ctx context.Context, albumKey string) []catalog.PlexTrack {
	return f.tracks[albumKey]
}
func (f *fakePlex) HistorySince(ctx context.Context, sinceUnix int64) []catalog.PlexPlayEvent {
	return f.history
}
func (f *fakePlex) RecentlyAdded(ctx context.Context, limit int) []catalog.PlexAlbum { return nil }
func (f *fakePlex) RecentlyPlayed(ctx context.Context, limit int) []catalog.PlexPlayEvent {
	return nil
}
func (f *fakePlex) VerifyToken(ctx context.Context, token string) (bool, error) { return true, nil }

func newTestSyncer(t *testing.T, plex *fakePlex) (*Syncer, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, "file:"+t.Name()+"?mode=memory&cache=shared", zerolog.Nop())
	require.NoError(t, err)
	cfg, err := config.New(s.DB, zerolog.Nop())
	require.NoError(t, err)
	return New(s, cfg, plex, zerolog.Nop()), s
}

func TestSyncLibraryUpsertsArtistsAlbumsAndTracks(t *testing.T) {
	plex := &fakePlex{
		available: true,
		artists:   []catalog.PlexArtist{{RatingKey: "a1", Name: "Boards of Canada"}},
		albums:    []catalog.PlexAlbum{{RatingKey: "al1", Title: "Geogaddi", ArtistKey: "a1"}},
		tracks: map[string][]catalog.PlexTrack{
			"al1": {{RatingKey: "t1", Title: "Gyroscope", AlbumKey: "al1", Duration: 150000}},
		},
	}
	sy, s := newTestSyncer(t, plex)

	require.NoError(t, sy.SyncLibrary(context.Background()))

	artist, err := s.FindArtistByMediaServerKey(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Boards of Canada", artist.Name)
	assert.True(t, artist.InLibrary)

	albums, err := s.LibraryAlbums(context.Background())
	require.NoError(t, err)
	require.Len(t, albums, 1)
	assert.Equal(t, "Geogaddi", albums[0].Title)
}

func TestSyncLibrarySkipsWhenPlexUnavailable(t *testing.T) {
	sy, s := newTestSyncer(t, &fakePlex{available: false})
	require.NoError(t, sy.SyncLibrary(context.Background()))
	artists, err := s.LibraryArtists(context.Background())
	require.NoError(t, err)
	assert.Empty(t, artists)
}

func TestSyncHistoryResolvesArtistIDAndAdvancesCursor(t *testing.T) {
	plex := &fakePlex{
		available: true,
		history: []catalog.PlexPlayEvent{
			{ArtistRatingKey: "a1", AlbumRatingKey: "al1", TrackRatingKey: "t1", PlayedAtUnix: 1700000000, DurationMS: 140000, TrackDurationMS: 150000},
		},
	}
	sy, s := newTestSyncer(t, plex)
	require.NoError(t, s.UpsertArtist(context.Background(), &store.Artist{Name: "Boards of Canada", MediaServerKey: "a1"}))

	require.NoError(t, sy.SyncHistory(context.Background()))

	events, err := s.ListeningEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].ArtistID)
	assert.False(t, events[0].Skipped)

	cursorVal, ok := sy.settings.Optional(historyCursorKey)
	assert.True(t, ok)
	assert.NotEmpty(t, cursorVal)
}

func TestSyncHistorySkipsWhenPlexUnavailable(t *testing.T) {
	sy, s := newTestSyncer(t, &fakePlex{available: false})
	require.NoError(t, sy.SyncHistory(context.Background()))
	events, err := s.ListeningEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
