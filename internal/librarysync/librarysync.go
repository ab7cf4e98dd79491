// Package librarysync pulls the Plex library and its listening history into
// the local store (spec §4.D "sync-plex-library" and
// "sync-listening-history" jobs). It is the one place that turns the media
// server's own identity scheme (rating keys) into catalog rows, so every
// other package can work with local IDs.
package librarysync

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/store"
)

const historyCursorKey = "plex_history_cursor_unix"

// Syncer owns the Plex-to-store ingestion jobs. The media server dependency
// is the narrow catalog.MediaServer interface so tests substitute a fake
// rather than a real Plex server.
type Syncer struct {
	store    *store.Store
	settings *config.Store
	plex     catalog.MediaServer
	log      zerolog.Logger
}

func New(s *store.Store, settings *config.Store, plex catalog.MediaServer, log zerolog.Logger) *Syncer {
	return &Syncer{store: s, settings: settings, plex: plex, log: log.With().Str("component", "librarysync").Logger()}
}

// SyncLibrary implements the sync-plex-library job body: upsert every
// artist, album, and track Plex reports, marking each in_library. Plex is
// the authority on what is actually on disk, so this runs on every fire
// regardless of how small the library is.
func (sy *Syncer) SyncLibrary(ctx context.Context) error {
	if !sy.plex.IsAvailable(ctx) {
		return nil
	}

	artistIDByKey := make(map[string]uint)
	for _, pa := range sy.plex.Artists(ctx) {
		a := &store.Artist{
			Name:           pa.Name,
			Genres:         store.CommaList(pa.Genres),
			InLibrary:      true,
			MediaServerKey: pa.RatingKey,
		}
		if err := sy.store.UpsertArtist(ctx, a); err != nil {
			sy.log.Warn().Err(err).Str("artist", pa.Name).Msg("failed to upsert artist")
			continue
		}
		artistIDByKey[pa.RatingKey] = a.ID
	}

	albumIDByKey := make(map[string]uint)
	for _, pb := range sy.plex.Albums(ctx) {
		artistID, ok := artistIDByKey[pb.ArtistKey]
		if !ok {
			continue
		}
		al := &store.Album{
			Title:     pb.Title,
			ArtistID:  artistID,
			InLibrary: true,
		}
		if err := sy.store.UpsertAlbum(ctx, al); err != nil {
			sy.log.Warn().Err(err).Str("album", pb.Title).Msg("failed to upsert album")
			continue
		}
		albumIDByKey[pb.RatingKey] = al.ID

		for _, pt := range sy.plex.Tracks(ctx, pb.RatingKey) {
			t := &store.Track{
				Title:      pt.Title,
				AlbumID:    al.ID,
				DurationMS: pt.Duration,
				InLibrary:  true,
			}
			if err := sy.store.UpsertTrack(ctx, t); err != nil {
				sy.log.Warn().Err(err).Str("track", pt.Title).Msg("failed to upsert track")
			}
		}
	}

	sy.log.Info().Int("artists", len(artistIDByKey)).Int("albums", len(albumIDByKey)).Msg("plex library sync complete")
	return nil
}

// SyncHistory implements the sync-listening-history job body: pull every
// play since the last cursor, persist it, and advance the cursor past the
// newest play seen. Only the artist side of a play resolves to a local ID
// reliably (Artist is the one entity that persists its Plex rating key);
// album and track stay keyed by their raw media-server IDs until a future
// library sync backfills the relationship.
func (sy *Syncer) SyncHistory(ctx context.Context) error {
	if !sy.plex.IsAvailable(ctx) {
		return nil
	}

	since := sy.cursor()
	events := sy.plex.HistorySince(ctx, since.Unix())
	if len(events) == 0 {
		return nil
	}

	newest := since
	for _, pe := range events {
		playedAt := time.Unix(pe.PlayedAtUnix, 0)
		if playedAt.After(newest) {
			newest = playedAt
		}

		completion := 0.0
		if pe.TrackDurationMS > 0 {
			completion = float64(pe.DurationMS) / float64(pe.TrackDurationMS) * 100
			if completion > 100 {
				completion = 100
			}
		}

		evt := &store.ListeningEvent{
			ArtistMediaServerKey: pe.ArtistRatingKey,
			AlbumMediaServerKey:  pe.AlbumRatingKey,
			TrackMediaServerKey:  pe.TrackRatingKey,
			PlayedAt:             playedAt,
			HourOfDay:            playedAt.Hour(),
			DayOfWeek:            int(playedAt.Weekday()),
			PlayDurationMS:       pe.DurationMS,
			TrackDurationMS:      pe.TrackDurationMS,
			CompletionPercent:    completion,
			Skipped:              completion < 30,
			Source:               "plex",
		}
		if artist, err := sy.store.FindArtistByMediaServerKey(ctx, pe.ArtistRatingKey); err == nil {
			evt.ArtistID = &artist.ID
		}

		if err := sy.store.RecordListeningEvent(ctx, evt); err != nil {
			sy.log.Warn().Err(err).Str("track_key", pe.TrackRatingKey).Msg("failed to record listening event")
		}
	}

	if newest.After(since) {
		sy.setCursor(newest)
	}
	sy.log.Info().Int("events", len(events)).Msg("plex history sync complete")
	return nil
}

func (sy *Syncer) cursor() time.Time {
	v, ok := sy.settings.Optional(historyCursorKey)
	if !ok {
		return time.Now().Add(-30 * 24 * time.Hour)
	}
	unix, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Now().Add(-30 * 24 * time.Hour)
	}
	return unix
}

func (sy *Syncer) setCursor(t time.Time) {
	_ = sy.settings.Set(historyCursorKey, t.Format(time.RFC3339), "sync")
}
