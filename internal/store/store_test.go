package store

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "file::memory:?cache=shared", zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestOpenMigratesSchema(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.Ready())
	require.True(t, s.DB.Migrator().HasTable(&Artist{}))
	require.True(t, s.DB.Migrator().HasTable(&Download{}))
	require.True(t, s.DB.Migrator().HasTable(&AutomationRule{}))
}

func TestUpsertArtistDedupesByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := &Artist{Name: "Boards of Canada"}
	require.NoError(t, s.UpsertArtist(ctx, a))
	firstID := a.ID

	again := &Artist{Name: "Boards of Canada", Country: "GB"}
	require.NoError(t, s.UpsertArtist(ctx, again))
	require.Equal(t, firstID, again.ID)

	got, err := s.FindArtistByName(ctx, "Boards of Canada")
	require.NoError(t, err)
	require.Equal(t, "GB", got.Country)
}

func TestTransitionDownloadCouplesWishlistStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := &WishlistItem{Type: WishlistItemAlbum, ArtistName: "Tycho", AlbumTitle: "Dive", Status: WishlistSearching}
	require.NoError(t, s.CreateWishlistItem(ctx, w))

	d := &Download{WishlistItemID: &w.ID, Status: DownloadPending}
	require.NoError(t, s.CreateDownload(ctx, d))

	require.NoError(t, s.TransitionDownload(ctx, d.ID, DownloadDownloading, ""))
	reloadedWishlist, err := s.GetWishlistItem(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, WishlistDownloading, reloadedWishlist.Status)

	require.NoError(t, s.TransitionDownload(ctx, d.ID, DownloadCompleted, "imported"))
	reloadedWishlist, err = s.GetWishlistItem(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, WishlistDownloaded, reloadedWishlist.Status)

	reloadedDownload, err := s.GetDownload(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, reloadedDownload.CompletedAt)
}

func TestQualityProfileDefaultInvariant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &QualityProfile{Name: "Lossless", IsDefault: true}
	require.NoError(t, s.CreateQualityProfile(ctx, first))

	second := &QualityProfile{Name: "Lossy", IsDefault: true}
	require.NoError(t, s.CreateQualityProfile(ctx, second))

	def, err := s.DefaultQualityProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, "Lossy", def.Name)

	all, err := s.QualityProfiles(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, qp := range all {
		if qp.IsDefault {
			defaults++
		}
	}
	require.Equal(t, 1, defaults)
}

func TestTasteProfileVersionsAreAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTasteProfileVersion(ctx, &TasteProfile{UserID: 1}))
	require.NoError(t, s.CreateTasteProfileVersion(ctx, &TasteProfile{UserID: 1}))

	latest, err := s.LatestTasteProfile(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, latest.Version)

	history, err := s.TasteProfileHistory(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
}
