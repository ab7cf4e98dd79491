package pipeline

import (
	"context"

	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/store"
)

// RuleFirer lets the pipeline notify the rules engine without importing
// internal/rules directly, the same decoupling EventPublisher gives the
// fanout package.
type RuleFirer interface {
	Fire(ctx context.Context, trigger string, ruleCtx map[string]interface{}) error
}

// SetPlaylistResolvers and SetRuleFirer wire the two dependencies the
// playlist-watch job needs. They are optional: a Pipeline built without
// them simply treats CheckPlaylistURLs as a no-op, which is the correct
// behavior for a deployment with no playlist-type wishlist items.
func (p *Pipeline) SetPlaylistResolvers(resolvers []catalog.PlaylistResolver) { p.playlists = resolvers }
func (p *Pipeline) SetRuleFirer(f RuleFirer)                                 { p.rules = f }

// ProcessWishlist implements the process-wishlist job body (spec §4.D):
// run Search for every item still in status wanted, oldest-searched first.
func (p *Pipeline) ProcessWishlist(ctx context.Context) error {
	items, err := p.store.WishlistItemsByStatus(ctx, store.WishlistWanted)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := p.Search(ctx, item.ID, false); err != nil {
			p.log.Warn().Err(err).Uint("wishlist_item_id", item.ID).Msg("search failed")
		}
	}
	return nil
}

// CheckPlaylistURLs implements the check-playlist-urls job body: every
// playlist-type wishlist item holds its source URL in Notes (the only
// free-text field on the entity); resolve it and fan each track whose
// artist is not already in the store out as its own wishlist_item_added
// firing so automation rules decide what
// happens next, rather than hardcoding an add-to-wishlist here.
func (p *Pipeline) CheckPlaylistURLs(ctx context.Context) error {
	if len(p.playlists) == 0 || p.rules == nil {
		return nil
	}
	items, err := p.store.WishlistItemsByStatus(ctx, store.WishlistWanted, store.WishlistDownloading)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Type != store.WishlistItemPlaylist || item.Notes == "" {
			continue
		}
		p.checkOnePlaylist(ctx, item)
	}
	return nil
}

func (p *Pipeline) checkOnePlaylist(ctx context.Context, item store.WishlistItem) {
	var resolver catalog.PlaylistResolver
	for _, r := range p.playlists {
		if r.CanResolve(item.Notes) {
			resolver = r
			break
		}
	}
	if resolver == nil {
		return
	}

	for _, track := range resolver.ResolvePlaylist(ctx, item.Notes) {
		if _, err := p.store.FindArtistByName(ctx, track.ArtistName); err == nil {
			continue
		}
		ruleCtx := map[string]interface{}{
			"artist_name":  track.ArtistName,
			"track_title":  track.Title,
			"album_title":  track.AlbumTitle,
			"source":       "playlist",
			"playlist_url": item.Notes,
		}
		if err := p.rules.Fire(ctx, "wishlist_item_added", ruleCtx); err != nil {
			p.log.Warn().Err(err).Str("artist", track.ArtistName).Msg("rule firing for playlist track failed")
		}
	}
	_ = p.store.IncrementWishlistSearchCount(ctx, item.ID)
}
