package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/vibarr/core/internal/vibarrerr"
)

// UpsertArtist inserts or updates an artist keyed by MusicBrainz ID when
// present, falling back to name equality. Integrations call this after
// every catalog lookup so the library reflects the richest data seen so
// far rather than overwriting good fields with a thinner response.
func (s *Store) UpsertArtist(ctx context.Context, a *Artist) error {
	q := s.DB.WithContext(ctx)
	var existing Artist
	found := false
	if a.MusicBrainzID != "" {
		if err := q.Where("music_brainz_id = ?", a.MusicBrainzID).First(&existing).Error; err == nil {
			found = true
		}
	}
	if !found && a.Name != "" {
		if err := q.Where("name = ?", a.Name).First(&existing).Error; err == nil {
			found = true
		}
	}
	if found {
		a.ID = existing.ID
		return q.Model(&Artist{}).Where("id = ?", existing.ID).Updates(a).Error
	}
	return q.Create(a).Error
}

func (s *Store) GetArtist(ctx context.Context, id uint) (*Artist, error) {
	var a Artist
	if err := s.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "artist not found")
	}
	return &a, nil
}

func (s *Store) FindArtistByName(ctx context.Context, name string) (*Artist, error) {
	var a Artist
	if err := s.DB.WithContext(ctx).Where("name = ?", name).First(&a).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "artist not found")
	}
	return &a, nil
}

// FindArtistByMediaServerKey looks up an artist by its Plex rating key, the
// only catalog entity whose media-server identity is persisted (spec §3
// Artist.media_server_key) — listening-history sync resolves an artist ID
// this way without re-querying Plex.
func (s *Store) FindArtistByMediaServerKey(ctx context.Context, key string) (*Artist, error) {
	var a Artist
	if err := s.DB.WithContext(ctx).Where("media_server_key = ?", key).First(&a).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "artist not found")
	}
	return &a, nil
}

func (s *Store) LibraryArtists(ctx context.Context) ([]Artist, error) {
	var out []Artist
	err := s.DB.WithContext(ctx).Where("in_library = ?", true).Find(&out).Error
	return out, err
}

func (s *Store) UpsertAlbum(ctx context.Context, al *Album) error {
	q := s.DB.WithContext(ctx)
	var existing Album
	found := false
	if al.MusicBrainzID != "" {
		if err := q.Where("music_brainz_id = ?", al.MusicBrainzID).First(&existing).Error; err == nil {
			found = true
		}
	}
	if !found && al.ArtistID != 0 && al.Title != "" {
		if err := q.Where("artist_id = ? AND title = ?", al.ArtistID, al.Title).First(&existing).Error; err == nil {
			found = true
		}
	}
	if found {
		al.ID = existing.ID
		return q.Model(&Album{}).Where("id = ?", existing.ID).Updates(al).Error
	}
	return q.Create(al).Error
}

func (s *Store) GetAlbum(ctx context.Context, id uint) (*Album, error) {
	var a Album
	if err := s.DB.WithContext(ctx).Preload("Artist").First(&a, id).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "album not found")
	}
	return &a, nil
}

func (s *Store) LibraryAlbums(ctx context.Context) ([]Album, error) {
	var out []Album
	err := s.DB.WithContext(ctx).Preload("Artist").Where("in_library = ?", true).Find(&out).Error
	return out, err
}

func (s *Store) UpsertTrack(ctx context.Context, t *Track) error {
	q := s.DB.WithContext(ctx)
	var existing Track
	found := false
	if t.MusicBrainzID != "" {
		if err := q.Where("music_brainz_id = ?", t.MusicBrainzID).First(&existing).Error; err == nil {
			found = true
		}
	}
	if !found && t.AlbumID != 0 && t.Title != "" {
		if err := q.Where("album_id = ? AND title = ?", t.AlbumID, t.Title).First(&existing).Error; err == nil {
			found = true
		}
	}
	if found {
		t.ID = existing.ID
		return q.Model(&Track{}).Where("id = ?", existing.ID).Updates(t).Error
	}
	return q.Create(t).Error
}

// ArtistsByIDs loads a set of artists keyed by ID, for callers (the
// recommendation engine's affinity analyzer) that need batch lookups
// against listening-event foreign keys without a round trip per event.
func (s *Store) ArtistsByIDs(ctx context.Context, ids []uint) (map[uint]Artist, error) {
	out := make(map[uint]Artist, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var artists []Artist
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&artists).Error; err != nil {
		return nil, err
	}
	for _, a := range artists {
		out[a.ID] = a
	}
	return out, nil
}

// TracksByIDs mirrors ArtistsByIDs for tracks, used to resolve the audio
// features behind a listening event's embedding contribution.
func (s *Store) TracksByIDs(ctx context.Context, ids []uint) (map[uint]Track, error) {
	out := make(map[uint]Track, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var tracks []Track
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&tracks).Error; err != nil {
		return nil, err
	}
	for _, t := range tracks {
		out[t.ID] = t
	}
	return out, nil
}

// LibraryTracksByAlbumIDs returns in-library tracks for a set of albums,
// grouped by AlbumID, for the deep-cuts candidate producer.
func (s *Store) LibraryTracksByAlbumIDs(ctx context.Context, albumIDs []uint) (map[uint][]Track, error) {
	out := make(map[uint][]Track)
	if len(albumIDs) == 0 {
		return out, nil
	}
	var tracks []Track
	if err := s.DB.WithContext(ctx).Where("album_id IN ?", albumIDs).Find(&tracks).Error; err != nil {
		return nil, err
	}
	for _, t := range tracks {
		out[t.AlbumID] = append(out[t.AlbumID], t)
	}
	return out, nil
}

// RecordListeningEvent inserts a play/skip event. HourOfDay and DayOfWeek
// are expected to already be populated by the caller (the Plex history sync
// in internal/librarysync derives them from PlayedAt at ingest time so the recommendation engine
// never recomputes a timezone conversion).
func (s *Store) RecordListeningEvent(ctx context.Context, e *ListeningEvent) error {
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(e).Error
}

// ListeningEvents returns events newest first, at most limit rows (limit
// <= 0 means all of them). Used by the affinity analyzer.
func (s *Store) ListeningEvents(ctx context.Context, limit int) ([]ListeningEvent, error) {
	var out []ListeningEvent
	q := s.DB.WithContext(ctx).Order("played_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ListeningEventsSince returns every event at or after since, newest
// first. The recommendation engine uses this to bound the embedding
// computation to a recent rolling window rather than the full history
// decayWeight already discounts.
func (s *Store) ListeningEventsSince(ctx context.Context, since time.Time) ([]ListeningEvent, error) {
	var out []ListeningEvent
	err := s.DB.WithContext(ctx).
		Where("played_at >= ?", since).
		Order("played_at desc").
		Find(&out).Error
	return out, err
}

// RecentlyPlayedArtistIDs returns distinct artist IDs played within the
// last `within` window, most recent first — the seed set for the
// history-based candidate producer.
func (s *Store) RecentlyPlayedArtistIDs(ctx context.Context, within time.Duration, limit int) ([]uint, error) {
	var ids []uint
	q := s.DB.WithContext(ctx).
		Model(&ListeningEvent{}).
		Where("played_at >= ? AND artist_id IS NOT NULL", time.Now().Add(-within)).
		Order("played_at desc").
		Distinct().
		Limit(limit)
	err := q.Pluck("artist_id", &ids).Error
	return ids, err
}
