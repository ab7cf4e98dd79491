// Package catalog defines the shared facade every music-catalog
// integration (Spotify, Last.fm, MusicBrainz, Deezer, YouTube Music,
// AudioDB) implements, plus the media-server and indexer/download-client
// facades. Per spec §4.C, every integration is non-throwing: failures
// become logged + empty/absent return values rather than propagated
// errors, so the interfaces below never return an error from a lookup —
// only from calls where the spec explicitly calls out a distinguishable
// failure (Plex token verification).
package catalog

import "context"

// ArtistResult is a search/lookup hit normalized to the entity-schema
// shape described in spec §3.
type ArtistResult struct {
	ExternalID string
	Name       string
	Genres     []string
	ImageURL   string
	Popularity int
	Listeners  int64
	PlayCount  int64
}

type AlbumResult struct {
	ExternalID  string
	Title       string
	ArtistName  string
	ReleaseDate string
	TotalTracks int
	CoverURL    string
}

type TrackResult struct {
	ExternalID string
	Title      string
	ArtistName string
	AlbumTitle string
	DurationMS int64
	Popularity int
}

// SimilarArtist is an artist-similarity edge, with an external match score
// in [0,1] when the source provides one (spec §4.F scoring factor
// "external similarity").
type SimilarArtist struct {
	ArtistResult
	Match float64
}

// ArtistSearcher is implemented by every music-catalog client.
type ArtistSearcher interface {
	// IsAvailable reports whether the client has the configuration it
	// needs to make requests; it never blocks on network I/O.
	IsAvailable(ctx context.Context) bool
	SearchArtists(ctx context.Context, query string, limit int) []ArtistResult
	SearchAlbums(ctx context.Context, query string, limit int) []AlbumResult
	SearchTracks(ctx context.Context, query string, limit int) []TrackResult
	// ArtistDetail returns the absent zero value (ok=false) on any error
	// or miss, never an error.
	ArtistDetail(ctx context.Context, externalID string) (ArtistResult, bool)
	SimilarArtists(ctx context.Context, externalID string, limit int) []SimilarArtist
	NewReleases(ctx context.Context, artistExternalID string, sinceDays int) []AlbumResult
}

// GenreExplorer is implemented by catalogs that expose a canonical
// genre→artists lookup (spec §4.F candidate producer 2, grounded on
// Deezer's genre-artists endpoint).
type GenreExplorer interface {
	ArtistsByGenre(ctx context.Context, genre string, limit int) []ArtistResult
}

// MoodExplorer is implemented by catalogs that can be queried by a mood
// keyword set (spec §4.F candidate producer 4).
type MoodExplorer interface {
	TracksByMood(ctx context.Context, mood string, limit int) []TrackResult
}

// PlaylistResolver resolves a playlist URL (Deezer or YouTube Music) into
// its member tracks, for the rules engine's import_playlist_url action.
type PlaylistResolver interface {
	CanResolve(url string) bool
	ResolvePlaylist(ctx context.Context, url string) []TrackResult
}

// PlexArtist/Album/Track mirror the entity shapes returned by the media
// server, keyed by the server's own stable rating_key identity field.
type PlexArtist struct {
	RatingKey string
	Name      string
	Genres    []string
}

type PlexAlbum struct {
	RatingKey  string
	Title      string
	ArtistKey  string
	ArtistName string
}

type PlexTrack struct {
	RatingKey string
	Title     string
	AlbumKey  string
	Duration  int64
}

// PlexPlayEvent is one entry from the listening-history endpoint.
type PlexPlayEvent struct {
	TrackRatingKey  string
	AlbumRatingKey  string
	ArtistRatingKey string
	PlayedAtUnix    int64
	DurationMS      int64
	TrackDurationMS int64
}

// MediaServer is the Plex facade (spec §4.C "Media server (Plex)").
type MediaServer interface {
	IsAvailable(ctx context.Context) bool
	Artists(ctx context.Context) []PlexArtist
	Albums(ctx context.Context) []PlexAlbum
	Tracks(ctx context.Context, albumKey string) []PlexTrack
	// HistorySince returns plays at or after sinceUnix.
	HistorySince(ctx context.Context, sinceUnix int64) []PlexPlayEvent
	RecentlyAdded(ctx context.Context, limit int) []PlexAlbum
	RecentlyPlayed(ctx context.Context, limit int) []PlexPlayEvent
	// VerifyToken distinguishes "no access" from "unavailable", per spec
	// §4.C's stated exception to the non-throwing rule.
	VerifyToken(ctx context.Context, token string) (hasAccess bool, err error)
}

// ReleaseRecord is a normalized Prowlarr search hit (spec §4.C).
type ReleaseRecord struct {
	GUID        string
	IndexerID   int
	IndexerName string
	Title       string
	SizeBytes   int64
	Seeders     int
	Leechers    int
	Protocol    string // "torrent" | "usenet"
	DownloadURL string
	InfoURL     string
	PublishDate string
	Categories  []int

	// Populated only by SearchAlbum.
	Score               float64
	PassesTextRelevance bool
}

// GrabResult is the outcome of a Prowlarr grab call.
type GrabResult struct {
	Success    bool
	DownloadID string
}

// IndexerAggregator is the Prowlarr facade.
type IndexerAggregator interface {
	IsAvailable(ctx context.Context) bool
	Search(ctx context.Context, query string, categories []int) []ReleaseRecord
	SearchAlbum(ctx context.Context, artist, album, preferredFormat string) []ReleaseRecord
	Grab(ctx context.Context, guid string, indexerID int) GrabResult
}

// TorrentInfo mirrors the subset of a qBittorrent torrent object the
// pipeline consumes.
type TorrentInfo struct {
	Hash         string
	Name         string
	Progress     float64
	DownloadSpeedBps int64
	ETASeconds   int64
	ContentPath  string
	SavePath     string
	State        string // qBittorrent state string; "error"/"missingFiles" map to failure
}

// TorrentClient is the qBittorrent facade.
type TorrentClient interface {
	IsAvailable(ctx context.Context) bool
	AddTorrentURL(ctx context.Context, url, category, savePath string, tags []string) bool
	GetTorrents(ctx context.Context, category, filter string) []TorrentInfo
	GetTorrent(ctx context.Context, hash string) (TorrentInfo, bool)
	Pause(ctx context.Context, hash string) bool
	Resume(ctx context.Context, hash string) bool
	Delete(ctx context.Context, hash string, deleteFiles bool) bool
	// FindTorrentHash polls until a torrent whose normalized name matches
	// expectedTitle appears, or timeout elapses.
	FindTorrentHash(ctx context.Context, expectedTitle string, timeoutSeconds int) (hash string, ok bool)
	EnsureCategory(ctx context.Context, category string) bool
}

// UsenetInfo mirrors the subset of a SABnzbd queue/history entry the
// pipeline consumes.
type UsenetInfo struct {
	NzoID        string
	Name         string
	Progress     float64
	DownloadSpeedBps int64
	ETASeconds   int64
	Status       string // "Downloading"|"Completed"|"Failed"|...
	StoragePath  string
}

// UsenetClient is the SABnzbd facade.
type UsenetClient interface {
	IsAvailable(ctx context.Context) bool
	AddNZBURL(ctx context.Context, url, category, name string) (nzoID string, ok bool)
	Queue(ctx context.Context) []UsenetInfo
	History(ctx context.Context) []UsenetInfo
	Pause(ctx context.Context, nzoID string) bool
	Resume(ctx context.Context, nzoID string) bool
	Delete(ctx context.Context, nzoID string, deleteFiles bool) bool
	// RemoveFromHistory deletes a completed entry from SABnzbd's history,
	// used after a successful beets import (spec §4.E Import).
	RemoveFromHistory(ctx context.Context, nzoID string, deleteFiles bool) bool
}

// ImportResult is the structured outcome of a beets import.
type ImportResult struct {
	Success        bool
	FinalPath      string
	AlbumsImported int
	TracksImported int
	Error          string
}

// PostProcessor is the beets facade.
type PostProcessor interface {
	IsAvailable(ctx context.Context) bool
	ImportDirectory(ctx context.Context, path, artistHint, albumHint string, move bool) ImportResult
	ListLibrary(ctx context.Context, query string, limit int) []TrackResult
}
