// Package store implements the entity store described in spec §3/§4.B: a
// repository over artists, albums, tracks, listening history, wishlist
// items, downloads, recommendations, taste profiles, preferences, quality
// profiles, automation rules, and users, backed by GORM. The teacher repo
// has no persistence layer of this shape (it downloads files, it doesn't
// run a pipeline over a catalog), so the schema here is grounded directly
// on spec §3's data model; the migration/readiness idiom is grounded on the
// `amaumene-gomenarr` and `poiley-nebularr-operator` manifests, which use
// `cenkalti/backoff` in front of a GORM/sqlite store the same way.
package store

import (
	"time"
)

// AlbumType enumerates the spec §3 Album.album_type values.
type AlbumType string

const (
	AlbumTypeAlbum      AlbumType = "album"
	AlbumTypeSingle     AlbumType = "single"
	AlbumTypeEP         AlbumType = "ep"
	AlbumTypeCompilation AlbumType = "compilation"
)

// ReleaseType enumerates the spec §3 Album.release_type values.
type ReleaseType string

const (
	ReleaseTypeStudio    ReleaseType = "studio"
	ReleaseTypeLive      ReleaseType = "live"
	ReleaseTypeRemix     ReleaseType = "remix"
	ReleaseTypeSoundtrack ReleaseType = "soundtrack"
)

// WishlistStatus is the spec §3 WishlistStatus enum.
type WishlistStatus string

const (
	WishlistWanted     WishlistStatus = "wanted"
	WishlistSearching  WishlistStatus = "searching"
	WishlistFound      WishlistStatus = "found"
	WishlistDownloading WishlistStatus = "downloading"
	WishlistImporting  WishlistStatus = "importing"
	WishlistDownloaded WishlistStatus = "downloaded"
	WishlistFailed     WishlistStatus = "failed"
)

// DownloadStatus is the spec §3 DownloadStatus enum.
type DownloadStatus string

const (
	DownloadPending     DownloadStatus = "pending"
	DownloadSearching   DownloadStatus = "searching"
	DownloadFound       DownloadStatus = "found"
	DownloadQueued      DownloadStatus = "queued"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadImporting   DownloadStatus = "importing"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
	DownloadCancelled   DownloadStatus = "cancelled"
)

// WishlistItemType is the spec §3 WishlistItem.type enum.
type WishlistItemType string

const (
	WishlistItemArtist   WishlistItemType = "artist"
	WishlistItemAlbum    WishlistItemType = "album"
	WishlistItemTrack    WishlistItemType = "track"
	WishlistItemPlaylist WishlistItemType = "playlist"
)

// Priority is the spec §3 WishlistItem.priority enum.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// WishlistSource is the spec §3 WishlistItem.source enum.
type WishlistSource string

const (
	SourceManual         WishlistSource = "manual"
	SourceRecommendation WishlistSource = "recommendation"
	SourceAutomation     WishlistSource = "automation"
	SourceReleaseRadar   WishlistSource = "release_radar"
)

// DownloadSource is the spec §3 Download.source enum.
type DownloadSource string

const (
	DownloadSourceManual     DownloadSource = "manual"
	DownloadSourceAuto       DownloadSource = "auto"
	DownloadSourceWishlist   DownloadSource = "wishlist"
	DownloadSourceAutomation DownloadSource = "automation"
)

// RecommendationType is the spec §3 Recommendation.type enum.
type RecommendationType string

const (
	RecommendationArtist RecommendationType = "artist"
	RecommendationAlbum  RecommendationType = "album"
	RecommendationTrack  RecommendationType = "track"
)

// RecommendationCategory is the spec §3 Recommendation.category enum.
type RecommendationCategory string

const (
	CategoryDiscoverWeekly  RecommendationCategory = "discover_weekly"
	CategoryReleaseRadar    RecommendationCategory = "release_radar"
	CategorySimilarArtists  RecommendationCategory = "similar_artists"
	CategoryDeepCuts        RecommendationCategory = "deep_cuts"
	CategoryGenreExplore    RecommendationCategory = "genre_explore"
	CategoryMoodBased       RecommendationCategory = "mood_based"
)

// AudioFeatures is the shared full audio-feature vector used by Track and
// by aggregate means on Artist/Album.
type AudioFeatures struct {
	Danceability     float64
	Energy           float64
	Key              int
	Loudness         float64
	Mode             int
	Speechiness      float64
	Acousticness     float64
	Instrumentalness float64
	Liveness         float64
	Valence          float64
	Tempo            float64
	TimeSignature    int
}

// ExternalIDs captures the cross-catalog identifiers an entity may carry.
type ExternalIDs struct {
	MusicBrainzID string
	SpotifyID     string
	DiscogsID     string
	LastFMURL     string
	ISRC          string
}

// Artist is the spec §3 Artist entity.
type Artist struct {
	ID             uint `gorm:"primaryKey"`
	Name           string `gorm:"index"`
	SortName       string
	Disambiguation string

	ExternalIDs

	Biography     string
	Country       string
	FormedYear    int
	DisbandedYear int
	Genres        CommaList
	Tags          CommaList

	MeanDanceability float64
	MeanEnergy       float64
	MeanValence      float64
	MeanTempo        float64

	SpotifyPopularity int
	LastFMListeners   int64
	LastFMPlayCount   int64

	InLibrary      bool `gorm:"index"`
	MediaServerKey string

	ImageURLs CommaList

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Album is the spec §3 Album entity.
type Album struct {
	ID       uint `gorm:"primaryKey"`
	Title    string `gorm:"index"`
	ArtistID uint   `gorm:"index"`
	Artist   *Artist

	AlbumType   AlbumType
	ReleaseType ReleaseType

	ExternalIDs
	ReleaseGroupMBID string

	ReleaseDate string
	ReleaseYear int
	Label       string
	CatalogNumber string
	Country     string

	TotalTracks int
	TotalDiscs  int
	DurationMS  int64

	AudioFeatures

	SpotifyPopularity int
	LastFMListeners   int64

	InLibrary  bool `gorm:"index"`
	Format     string
	BitrateKbps int
	SampleRateHz int
	BitDepth    int

	CoverURLs CommaList

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Track is the spec §3 Track entity.
type Track struct {
	ID      uint `gorm:"primaryKey"`
	Title   string `gorm:"index"`
	AlbumID uint   `gorm:"index"`
	Album   *Album

	DiscNumber  int
	TrackNumber int

	ExternalIDs
	DurationMS int64

	AudioFeatures

	Popularity int
	InLibrary  bool `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListeningEvent is the spec §3 ListeningEvent entity. References are weak
// (no foreign-key enforcement) per the ownership rules in §3: the target
// may vanish when a library is cleared.
type ListeningEvent struct {
	ID       uint `gorm:"primaryKey"`
	TrackID  *uint `gorm:"index"`
	AlbumID  *uint `gorm:"index"`
	ArtistID *uint `gorm:"index"`

	TrackMediaServerKey  string
	AlbumMediaServerKey  string
	ArtistMediaServerKey string

	PlayedAt           time.Time `gorm:"index"`
	PlayDurationMS     int64
	TrackDurationMS    int64
	CompletionPercent  float64
	Skipped            bool

	Source string
	Device string
	Player string

	HourOfDay int // 0-23, derived from PlayedAt at write time
	DayOfWeek int // 0-6, derived from PlayedAt at write time

	CreatedAt time.Time
}

// WishlistItem is the spec §3 WishlistItem entity.
type WishlistItem struct {
	ID       uint `gorm:"primaryKey"`
	Type     WishlistItemType
	ArtistID *uint
	AlbumID  *uint

	ArtistName string
	AlbumTitle string

	ExternalIDs

	Status         WishlistStatus `gorm:"index"`
	Priority       Priority
	Source         WishlistSource
	Confidence     *float64
	PreferredFormat string
	AutoDownload   bool

	LastSearchedAt *time.Time
	SearchCount    int

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Download is the spec §3 Download entity. WishlistItemID is a weak
// reference: deleting the wishlist item detaches but never cascades.
type Download struct {
	ID             uint `gorm:"primaryKey"`
	WishlistItemID *uint `gorm:"index"`

	ArtistName string
	AlbumTitle string

	Status        DownloadStatus `gorm:"index"`
	StatusMessage string

	ReleaseTitle string
	SizeBytes    int64
	Format       string
	Quality      string
	Seeders      int
	Leechers     int
	IndexerID    int
	IndexerGUID  string
	Protocol     string // torrent | usenet
	Score        float64

	DownloadClient string // qbittorrent | sabnzbd
	DownloadID     string // torrent hash / nzo id

	Progress        float64
	DownloadSpeedBps int64
	ETASeconds      int64
	DownloadPath    string

	BeetsImported bool
	FinalPath     string

	Source DownloadSource

	StartedAt   *time.Time
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recommendation is the spec §3 Recommendation entity.
type Recommendation struct {
	ID       uint `gorm:"primaryKey"`
	Type     RecommendationType
	ArtistID *uint
	AlbumID  *uint
	TrackID  *uint

	Category      RecommendationCategory `gorm:"index"`
	Reason        string
	ReasonBullets CommaList

	BasisArtistID *uint `gorm:"index"`
	BasisAlbumID  *uint

	Confidence float64
	Relevance  float64
	Novelty    float64

	ScoreFactors JSONMap

	Shown          bool
	ShownAt        *time.Time
	Clicked        bool
	ClickedAt      *time.Time
	Dismissed      bool `gorm:"index"`
	DismissedAt    *time.Time
	AddedToWishlist bool
	AddedAt        *time.Time

	PlaylistGroup string

	ExpiresAt time.Time `gorm:"index"`

	CreatedAt time.Time
}

// TasteEvolutionSnapshot is one monthly entry in a TasteProfile's bounded
// (<=12) evolution history.
type TasteEvolutionSnapshot struct {
	Period     string    `json:"period"` // "YYYY-MM"
	Embedding  [8]float64 `json:"embedding"`
	SampleSize int        `json:"sample_size"`
}

// TasteProfile is the spec §3 TasteProfile entity. Versioned and
// monotonically increasing per user (invariant 5).
type TasteProfile struct {
	ID      uint `gorm:"primaryKey"`
	UserID  uint `gorm:"index"`
	Version int

	TopGenres      JSONMap // genre -> weight
	PreferredDecades JSONMap // decade (as string) -> weight

	MeanAudioFeatures AudioFeatures

	TotalPlays   int64
	TotalArtists int64
	TotalAlbums  int64
	TotalTracks  int64

	PeakHours JSONIntSlice
	PeakDays  JSONIntSlice

	NoveltyPreference float64

	Embedding       [8]float64 `gorm:"serializer:json"`
	EvolutionHistory []TasteEvolutionSnapshot `gorm:"serializer:json"`

	Cluster           string
	ClusterConfidence float64

	CreatedAt time.Time
}

// PreferenceKind is the spec §3 UserPreference.kind closed set.
type PreferenceKind string

const (
	PreferenceGenre        PreferenceKind = "genre_affinity"
	PreferenceDecade       PreferenceKind = "decade_affinity"
	PreferenceAudioFeature PreferenceKind = "audio_feature_target"
	PreferenceArtist       PreferenceKind = "artist_affinity"
	PreferenceTimeWindow   PreferenceKind = "time_window"
)

// UserPreference is a sparse typed preference row (spec §3, supplemented
// per SPEC_FULL.md §3.I from original_source/).
type UserPreference struct {
	ID         uint `gorm:"primaryKey"`
	UserID     uint `gorm:"index"`
	Kind       PreferenceKind
	Key        string // e.g. genre name, artist id, feature name
	Weight     float64
	Confidence float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// QualityProfile is the spec §3 QualityProfile entity.
type QualityProfile struct {
	ID                uint `gorm:"primaryKey"`
	Name              string `gorm:"uniqueIndex"`
	PreferredFormats  CommaList
	MinQuality        string
	MaxSizeMB         *int
	MinSeeders        int
	ReleaseTypePreference CommaList
	FormatMatchWeight float64
	SeederWeight      float64
	IsDefault         bool `gorm:"index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AutomationRule is the spec §3/§4.G AutomationRule entity. Conditions and
// actions are stored as JSON but validated at load time via the rules
// package's closed tagged-union types — see internal/rules.
type AutomationRule struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	Trigger  string
	Conditions JSONRaw
	Actions    JSONRaw
	Priority int `gorm:"index"`
	Enabled  bool `gorm:"index"`

	LastTriggeredAt *time.Time
	TriggerCount    int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleExecutionLog persists one firing of a rule (spec §4.G + SPEC_FULL.md
// §3.I: recovered from original_source/ rather than kept purely in-memory).
type RuleExecutionLog struct {
	ID          uint `gorm:"primaryKey"`
	RuleID      uint `gorm:"index"`
	Success     bool
	Context     JSONRaw
	ActionLog   JSONRaw
	Error       string
	ExecutedAt  time.Time `gorm:"index"`
}

// User is the spec §3 User entity.
type User struct {
	ID           uint `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex"`
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string
	IsAdmin      bool

	MediaServerUsername string
	MediaServerToken    string

	PrivacyOptOutHistory bool
	PrivacyOptOutSharing bool

	TasteCluster       string
	TasteTags          CommaList
	CompatibilityVector [8]float64 `gorm:"serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllModels lists every model AutoMigrate must know about. Keeping this in
// one place means adding an entity is a one-line change at the call site.
func AllModels() []interface{} {
	return []interface{}{
		&Artist{}, &Album{}, &Track{},
		&ListeningEvent{},
		&WishlistItem{}, &Download{},
		&Recommendation{},
		&TasteProfile{}, &UserPreference{},
		&QualityProfile{},
		&AutomationRule{}, &RuleExecutionLog{},
		&User{},
	}
}
