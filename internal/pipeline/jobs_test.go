package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/store"
)

type fakePlaylistResolver struct {
	canResolve bool
	tracks     []catalog.TrackResult
}

func (f *fakePlaylistResolver) CanResolve(url string) bool { return f.canResolve }
func (f *fakePlaylistResolver) ResolvePlaylist(ctx context.Context, url string) []catalog.TrackResult {
	return f.tracks
}

type fakeRuleFirer struct {
	fired []map[string]interface{}
}

func (f *fakeRuleFirer) Fire(ctx context.Context, trigger string, ruleCtx map[string]interface{}) error {
	f.fired = append(f.fired, ruleCtx)
	return nil
}

func TestProcessWishlistSearchesEveryWantedItem(t *testing.T) {
	indexer := &fakeIndexer{available: false}
	p, s, _, _ := newTestPipeline(t, indexer, &fakeTorrent{})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateWishlistItem(context.Background(), &store.WishlistItem{
			Type: store.WishlistItemAlbum, ArtistName: "Artist", AlbumTitle: "Album", Status: store.WishlistWanted,
		}))
	}

	require.NoError(t, p.ProcessWishlist(context.Background()))

	items, err := s.WishlistItemsByStatus(context.Background(), store.WishlistWanted)
	require.NoError(t, err)
	for _, it := range items {
		assert.Equal(t, 1, it.SearchCount)
	}
}

func TestCheckPlaylistURLsFiresRuleForUnseenTrack(t *testing.T) {
	p, s, _, _ := newTestPipeline(t, &fakeIndexer{}, &fakeTorrent{})
	resolver := &fakePlaylistResolver{canResolve: true, tracks: []catalog.TrackResult{
		{ArtistName: "New Artist", Title: "New Track", AlbumTitle: "New Album"},
	}}
	firer := &fakeRuleFirer{}
	p.SetPlaylistResolvers([]catalog.PlaylistResolver{resolver})
	p.SetRuleFirer(firer)

	require.NoError(t, s.CreateWishlistItem(context.Background(), &store.WishlistItem{
		Type: store.WishlistItemPlaylist, Notes: "https://example.com/playlist/1", Status: store.WishlistWanted,
	}))

	require.NoError(t, p.CheckPlaylistURLs(context.Background()))

	require.Len(t, firer.fired, 1)
	assert.Equal(t, "New Artist", firer.fired[0]["artist_name"])
}

func TestCheckPlaylistURLsSkipsTracksByKnownArtist(t *testing.T) {
	p, s, _, _ := newTestPipeline(t, &fakeIndexer{}, &fakeTorrent{})
	resolver := &fakePlaylistResolver{canResolve: true, tracks: []catalog.TrackResult{
		{ArtistName: "Known Artist", Title: "Track"},
	}}
	firer := &fakeRuleFirer{}
	p.SetPlaylistResolvers([]catalog.PlaylistResolver{resolver})
	p.SetRuleFirer(firer)

	require.NoError(t, s.UpsertArtist(context.Background(), &store.Artist{Name: "Known Artist"}))
	require.NoError(t, s.CreateWishlistItem(context.Background(), &store.WishlistItem{
		Type: store.WishlistItemPlaylist, Notes: "https://example.com/playlist/2", Status: store.WishlistWanted,
	}))

	require.NoError(t, p.CheckPlaylistURLs(context.Background()))

	assert.Empty(t, firer.fired)
}

func TestCheckPlaylistURLsNoOpWithoutWiring(t *testing.T) {
	p, s, _, _ := newTestPipeline(t, &fakeIndexer{}, &fakeTorrent{})
	require.NoError(t, s.CreateWishlistItem(context.Background(), &store.WishlistItem{
		Type: store.WishlistItemPlaylist, Notes: "https://example.com/x", Status: store.WishlistWanted,
	}))
	assert.NoError(t, p.CheckPlaylistURLs(context.Background()))
}
