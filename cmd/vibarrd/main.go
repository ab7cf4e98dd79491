// Command vibarrd is the Vibarr daemon: it owns the database, every
// external integration, the wishlist/download pipeline, the
// recommendation engine, the rules engine, the cron scheduler, and the
// HTTP/WebSocket surface the CLI and any browser client talk to.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/fanout"
	"github.com/vibarr/core/internal/integrations"
	"github.com/vibarr/core/internal/librarysync"
	"github.com/vibarr/core/internal/pipeline"
	"github.com/vibarr/core/internal/recommend"
	"github.com/vibarr/core/internal/rules"
	"github.com/vibarr/core/internal/scheduler"
	"github.com/vibarr/core/internal/store"
)

func main() {
	dbPath := flag.String("db", "vibarr.db", "path to the SQLite database file")
	addr := flag.String("addr", ":8420", "HTTP listen address")
	redisAddr := flag.String("redis", "127.0.0.1:6379", "Redis address for the live-update fan-out bridge")
	logLevel := flag.String("log-level", "info", "zerolog level (debug, info, warn, error)")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	if err := run(*dbPath, *addr, *redisAddr, log); err != nil {
		log.Fatal().Err(err).Msg("vibarrd exited")
	}
}

func run(dbPath, addr, redisAddr string, log zerolog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	entityStore, err := store.Open(ctx, dbPath, log)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	settings, err := config.New(entityStore.DB, log)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	registry := integrations.New(settings, log)

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	hub := fanout.NewHub(log)
	bridge := fanout.NewRedisBridge(redisClient, hub, log)
	go func() {
		if err := bridge.Run(ctx, "download_updates"); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("redis bridge stopped")
		}
	}()
	go func() {
		if err := bridge.Run(ctx, notificationsChannel); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("redis bridge stopped")
		}
	}()

	pl := pipeline.New(entityStore, settings, registry.Prowlarr, registry.QBittorrent, registry.SABnzbd, registry.Beets, bridge, log)
	pl.SetPlaylistResolvers(registry.Playlists)

	recEngine := recommend.New(entityStore, settings, registry.CatalogClients, registry.Genres, registry.Moods, log)

	sync := librarysync.New(entityStore, settings, registry.Plex, log)

	rulesEngine := rules.NewEngine(entityStore, log)
	registerActionHandlers(rulesEngine, pl, entityStore, bridge, log)
	pl.SetRuleFirer(ruleFirerAdapter{rulesEngine})

	sched := scheduler.New(log)
	handlers := scheduler.Handlers{
		SyncPlexLibrary:         sync.SyncLibrary,
		SyncListeningHistory:    sync.SyncHistory,
		CheckNewReleases:        recEngine.CheckNewReleases,
		GenerateRecommendations: recEngine.GenerateRecommendations,
		GenerateReleaseRadar:    recEngine.CheckNewReleases,
		UpdateTasteProfile:      recEngine.UpdateTasteProfile,
		ProcessWishlist:         pl.ProcessWishlist,
		CheckDownloadStatus:     pl.PollActiveDownloads,
		CheckPlaylistURLs:       pl.CheckPlaylistURLs,
		MusicBrainzLimiter:      rate.NewLimiter(rate.Every(time.Second), 1),
		SpotifyLastFMLimiter:    rate.NewLimiter(rate.Every(6*time.Second), 10),
	}
	if err := scheduler.RegisterBuiltins(sched, handlers); err != nil {
		return fmt.Errorf("registering jobs: %w", err)
	}
	sched.Start()
	defer sched.Shutdown(context.Background())

	jobsByName := map[string]scheduler.Job{
		scheduler.JobSyncPlexLibrary:         {Name: scheduler.JobSyncPlexLibrary, Run: handlers.SyncPlexLibrary},
		scheduler.JobSyncListeningHistory:    {Name: scheduler.JobSyncListeningHistory, Run: handlers.SyncListeningHistory},
		scheduler.JobCheckNewReleases:        {Name: scheduler.JobCheckNewReleases, Run: handlers.CheckNewReleases, RateLimit: handlers.MusicBrainzLimiter},
		scheduler.JobGenerateRecommendations: {Name: scheduler.JobGenerateRecommendations, Run: handlers.GenerateRecommendations, RateLimit: handlers.SpotifyLastFMLimiter},
		scheduler.JobGenerateReleaseRadar:    {Name: scheduler.JobGenerateReleaseRadar, Run: handlers.GenerateReleaseRadar, RateLimit: handlers.MusicBrainzLimiter},
		scheduler.JobUpdateTasteProfile:      {Name: scheduler.JobUpdateTasteProfile, Run: handlers.UpdateTasteProfile, RateLimit: handlers.SpotifyLastFMLimiter},
		scheduler.JobProcessWishlist:         {Name: scheduler.JobProcessWishlist, Run: handlers.ProcessWishlist},
		scheduler.JobCheckDownloadStatus:     {Name: scheduler.JobCheckDownloadStatus, Run: handlers.CheckDownloadStatus},
		scheduler.JobCheckPlaylistURLs:       {Name: scheduler.JobCheckPlaylistURLs, Run: handlers.CheckPlaylistURLs},
	}

	a := &api{store: entityStore, settings: settings, pipeline: pl, rules: rulesEngine, scheduler: sched, jobs: jobsByName, log: log}
	ready := func() bool {
		return entityStore.Ready() && redisClient.Ping(context.Background()).Err() == nil
	}
	mux := newMux(a, ready)
	mux.Handle("/ws", hub)

	srv := &http.Server{
		Addr:    addr,
		Handler: withTimeout(corsMiddleware(requireAuth(settings)(mux))),
	}

	go func() {
		log.Info().Str("addr", addr).Msg("vibarrd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown error")
	}
	return redisClient.Close()
}

// ruleFirerAdapter lets *rules.Engine satisfy pipeline.RuleFirer, whose
// signature uses plain string/map types so internal/pipeline never imports
// internal/rules.
type ruleFirerAdapter struct{ engine *rules.Engine }

func (r ruleFirerAdapter) Fire(ctx context.Context, trigger string, ruleCtx map[string]interface{}) error {
	return r.engine.Fire(ctx, rules.Trigger(trigger), rules.Context(ruleCtx))
}
