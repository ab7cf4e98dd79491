package scheduler

import (
	"context"

	"golang.org/x/time/rate"
)

// Cron schedules for the nine built-in jobs (spec §4.D table, plus
// generate-release-radar). Expressed as 5-field (minute hour dom month
// dow) expressions; Register prefixes the literal seconds field.
const (
	ScheduleSyncPlexLibrary         = "0 */6 * * *"
	ScheduleSyncListeningHistory    = "15 */2 * * *"
	ScheduleCheckNewReleases        = "30 */6 * * *"
	ScheduleGenerateRecommendations = "0 3 * * *"
	ScheduleGenerateReleaseRadar    = "30 3 * * *"
	ScheduleUpdateTasteProfile      = "0 4 * * 0"
	ScheduleProcessWishlist         = "0 * * * *"
	ScheduleCheckDownloadStatus     = "*/5 * * * *"
	ScheduleCheckPlaylistURLs       = "*/5 * * * *"
)

const (
	JobSyncPlexLibrary         = "sync-plex-library"
	JobSyncListeningHistory    = "sync-listening-history"
	JobCheckNewReleases        = "check-new-releases"
	JobGenerateRecommendations = "generate-daily-recommendations"
	JobGenerateReleaseRadar    = "generate-release-radar"
	JobUpdateTasteProfile      = "update-taste-profile"
	JobProcessWishlist         = "process-wishlist"
	JobCheckDownloadStatus     = "check-download-status"
	JobCheckPlaylistURLs       = "check-playlist-urls"
)

// Handlers bundles the job bodies supplied by the caller (cmd/vibarrd's
// wiring), keeping this package free of dependencies on
// internal/{pipeline,recommend,rules,integrations}.
type Handlers struct {
	SyncPlexLibrary         func(ctx context.Context) error
	SyncListeningHistory    func(ctx context.Context) error
	CheckNewReleases        func(ctx context.Context) error
	GenerateRecommendations func(ctx context.Context) error
	GenerateReleaseRadar    func(ctx context.Context) error
	UpdateTasteProfile      func(ctx context.Context) error
	ProcessWishlist         func(ctx context.Context) error
	CheckDownloadStatus     func(ctx context.Context) error
	CheckPlaylistURLs       func(ctx context.Context) error

	// MusicBrainzLimiter and SpotifyLastFMLimiter are shared across every
	// job that touches those catalogs, so the scheduler-level throttle
	// reflects real aggregate call volume rather than one allowance per
	// job (spec §4.D: "Rate limits: enforced at dispatch time for flagged
	// tasks (MusicBrainz 1/s, Spotify/Last.fm 10/min)").
	MusicBrainzLimiter    *rate.Limiter
	SpotifyLastFMLimiter  *rate.Limiter
}

// RegisterBuiltins wires the nine named jobs onto s: the eight from spec
// §4.D plus generate-release-radar.
func RegisterBuiltins(s *Scheduler, h Handlers) error {
	jobs := []Job{
		{Name: JobSyncPlexLibrary, Schedule: ScheduleSyncPlexLibrary, Run: h.SyncPlexLibrary},
		{Name: JobSyncListeningHistory, Schedule: ScheduleSyncListeningHistory, Run: h.SyncListeningHistory},
		{Name: JobCheckNewReleases, Schedule: ScheduleCheckNewReleases, Run: h.CheckNewReleases, RateLimit: h.MusicBrainzLimiter},
		{Name: JobGenerateRecommendations, Schedule: ScheduleGenerateRecommendations, Run: h.GenerateRecommendations, RateLimit: h.SpotifyLastFMLimiter},
		{Name: JobGenerateReleaseRadar, Schedule: ScheduleGenerateReleaseRadar, Run: h.GenerateReleaseRadar, RateLimit: h.MusicBrainzLimiter},
		{Name: JobUpdateTasteProfile, Schedule: ScheduleUpdateTasteProfile, Run: h.UpdateTasteProfile, RateLimit: h.SpotifyLastFMLimiter},
		{Name: JobProcessWishlist, Schedule: ScheduleProcessWishlist, Run: h.ProcessWishlist},
		{Name: JobCheckDownloadStatus, Schedule: ScheduleCheckDownloadStatus, Run: h.CheckDownloadStatus},
		{Name: JobCheckPlaylistURLs, Schedule: ScheduleCheckPlaylistURLs, Run: h.CheckPlaylistURLs},
	}
	for _, j := range jobs {
		if j.Run == nil {
			continue
		}
		if err := s.Register(j); err != nil {
			return err
		}
	}
	return nil
}
