// Package integrations wires together every external-service client into
// a single injected registry, replacing the module-level singleton
// pattern flagged in spec §9 ("Singleton integrations → injected
// clients"). Clients are constructed once at startup; an explicit
// Invalidate(keys) call — wired to the settings store's Subscribe
// mechanism — drops cached availability results so the next Available
// check re-evaluates current configuration; the clients themselves read
// settings live on every call.
package integrations

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/audiodb"
	"github.com/vibarr/core/internal/integrations/beets"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/deezer"
	"github.com/vibarr/core/internal/integrations/lastfm"
	"github.com/vibarr/core/internal/integrations/musicbrainz"
	"github.com/vibarr/core/internal/integrations/plex"
	"github.com/vibarr/core/internal/integrations/prowlarr"
	"github.com/vibarr/core/internal/integrations/qbittorrent"
	"github.com/vibarr/core/internal/integrations/sabnzbd"
	"github.com/vibarr/core/internal/integrations/spotify"
	"github.com/vibarr/core/internal/integrations/ytmusic"
)

// Registry holds one long-lived instance of every integration client.
type Registry struct {
	Spotify     *spotify.Client
	LastFM      *lastfm.Client
	MusicBrainz *musicbrainz.Client
	Deezer      *deezer.Client
	YTMusic     *ytmusic.Client
	AudioDB     *audiodb.Client
	Plex        *plex.Client
	Prowlarr    *prowlarr.Client
	QBittorrent *qbittorrent.Client
	SABnzbd     *sabnzbd.Client
	Beets       *beets.Client

	// CatalogClients lists every ArtistSearcher in priority order, used by
	// callers that want to fan a lookup out across catalogs (e.g. the
	// recommendation engine's candidate producers).
	CatalogClients []catalog.ArtistSearcher
	Genres         []catalog.GenreExplorer
	Moods          []catalog.MoodExplorer
	Playlists      []catalog.PlaylistResolver

	settings *config.Store
	log      zerolog.Logger

	mu      sync.RWMutex
	availCache *lru.Cache[string, bool]
}

// New constructs every integration client against the shared settings
// store and subscribes to store changes so IsAvailable results never go
// stale for more than one settings write.
func New(settings *config.Store, log zerolog.Logger) *Registry {
	availCache, _ := lru.New[string, bool](64)

	ytKey, _ := settings.Optional("ytmusic_api_key")

	r := &Registry{
		Spotify:     spotify.New(settings, log),
		LastFM:      lastfm.New(settings, log),
		MusicBrainz: musicbrainz.New(log),
		Deezer:      deezer.New(log),
		YTMusic:     ytmusic.New(ytKey, log),
		AudioDB:     audiodb.New(log),
		Plex:        plex.New(settings, log),
		Prowlarr:    prowlarr.New(settings, log),
		QBittorrent: qbittorrent.New(settings, log),
		SABnzbd:     sabnzbd.New(settings, log),
		Beets:       beets.New(settings, log),

		settings:   settings,
		log:        log.With().Str("component", "integrations").Logger(),
		availCache: availCache,
	}

	r.CatalogClients = []catalog.ArtistSearcher{r.Spotify, r.LastFM, r.MusicBrainz, r.Deezer, r.YTMusic, r.AudioDB}
	r.Genres = []catalog.GenreExplorer{r.Deezer}
	r.Moods = []catalog.MoodExplorer{r.YTMusic}
	r.Playlists = []catalog.PlaylistResolver{r.Deezer, r.YTMusic}

	go r.watchSettings()
	return r
}

func (r *Registry) watchSettings() {
	ch := r.settings.Subscribe() // wildcard: any setting change invalidates the availability cache
	for range ch {
		r.Invalidate()
	}
}

// Invalidate drops cached availability state for the given client names
// (or all of them, if none given). Client structs themselves read
// settings live on every call, so invalidation here only concerns the
// availability memoization layer, not credentials in flight.
func (r *Registry) Invalidate(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(names) == 0 {
		r.availCache.Purge()
		return
	}
	for _, n := range names {
		r.availCache.Remove(n)
	}
}

// Available memoizes a client's IsAvailable check for the lifetime of the
// current settings generation, so a hot job loop (e.g. check-download-status
// running every 5 minutes over dozens of items) doesn't re-evaluate
// configuration presence on every item.
func (r *Registry) Available(ctx context.Context, name string, check func(context.Context) bool) bool {
	r.mu.RLock()
	if v, ok := r.availCache.Get(name); ok {
		r.mu.RUnlock()
		return v
	}
	r.mu.RUnlock()

	v := check(ctx)
	r.mu.Lock()
	r.availCache.Add(name, v)
	r.mu.Unlock()
	return v
}

// ActiveDownloadClients returns the download-client facades currently
// configured, keyed by the store's download_client column convention.
func (r *Registry) ActiveDownloadClients(ctx context.Context) map[string]catalog.TorrentClient {
	clients := map[string]catalog.TorrentClient{}
	if r.Available(ctx, "qbittorrent", r.QBittorrent.IsAvailable) {
		clients["qbittorrent"] = r.QBittorrent
	}
	return clients
}
