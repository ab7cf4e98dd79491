package recommend

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/store"
)

// defaultUserID is the implicit single-listener account every taste
// profile and recommendation batch is generated for. Vibarr is a
// personal automation service (spec §1); the User table exists for
// media-server auth, not multi-tenant taste isolation.
const defaultUserID = 1

var categoryExpiry = map[store.RecommendationCategory]time.Duration{
	store.CategorySimilarArtists: 7 * 24 * time.Hour,
	store.CategoryGenreExplore:   7 * 24 * time.Hour,
	store.CategoryDiscoverWeekly: 7 * 24 * time.Hour,
	store.CategoryDeepCuts:       14 * 24 * time.Hour,
	store.CategoryReleaseRadar:   14 * 24 * time.Hour,
	store.CategoryMoodBased:      3 * 24 * time.Hour,
}

func expiryFor(c store.RecommendationCategory) time.Duration {
	if d, ok := categoryExpiry[c]; ok {
		return d
	}
	return 7 * 24 * time.Hour
}

// Engine generates taste profiles and recommendation batches (spec
// §4.F). It depends only on the narrow catalog interfaces so it never
// imports internal/integrations directly — the daemon wires a
// Registry's CatalogClients/Genres/Moods slices in at startup.
type Engine struct {
	store    *store.Store
	settings *config.Store
	clients  []catalog.ArtistSearcher
	genres   []catalog.GenreExplorer
	moods    []catalog.MoodExplorer
	log      zerolog.Logger
}

func New(s *store.Store, settings *config.Store, clients []catalog.ArtistSearcher, genres []catalog.GenreExplorer, moods []catalog.MoodExplorer, log zerolog.Logger) *Engine {
	return &Engine{
		store: s, settings: settings, clients: clients, genres: genres, moods: moods,
		log: log.With().Str("component", "recommend").Logger(),
	}
}

// embeddingHalfLife returns the configured taste_embedding_half_life_days
// (default halfLifeEmbeddingDays). The event window is the fixed
// embeddingWindowDays and does not depend on it.
func (e *Engine) embeddingHalfLife() float64 {
	return e.settings.Float("taste_embedding_half_life_days", halfLifeEmbeddingDays)
}

// UpdateTasteProfile implements the weekly update-taste-profile job (spec
// §4.F(a)/(c)): recompute affinity and the embedding/cluster/evolution
// state, and persist a new TasteProfile version.
func (e *Engine) UpdateTasteProfile(ctx context.Context) error {
	if !e.settings.Bool("ml_profiling_enabled", true) {
		return nil
	}
	now := time.Now()

	events, err := e.store.ListeningEvents(ctx, 0)
	if err != nil {
		return err
	}
	artistIDs := collectArtistIDs(events)
	artistsByID, err := e.store.ArtistsByIDs(ctx, artistIDs)
	if err != nil {
		return err
	}
	genreOverrides, err := e.genreOverrides(ctx)
	if err != nil {
		return err
	}
	affinity := analyzeAffinity(events, artistsByID, now, genreOverrides)

	windowStart := now.Add(-embeddingWindowDays * 24 * time.Hour)
	recentEvents, err := e.store.ListeningEventsSince(ctx, windowStart)
	if err != nil {
		return err
	}
	trackIDs := collectTrackIDs(recentEvents)
	tracksByID, err := e.store.TracksByIDs(ctx, trackIDs)
	if err != nil {
		return err
	}
	embedding := buildEmbedding(recentEvents, tracksByID, now, e.embeddingHalfLife())
	cluster, confidence := classifyCluster(embedding)

	prev, err := e.store.LatestTasteProfile(ctx, defaultUserID)
	var history []store.TasteEvolutionSnapshot
	if err == nil {
		history = prev.EvolutionHistory
	}
	history = appendEvolutionSnapshot(history, now.Format("2006-01"), embedding, len(recentEvents))

	topGenres := make(store.JSONMap, 8)
	for _, g := range topNStrKeysByWeight(affinity.GenreByName, 8) {
		topGenres[g] = affinity.GenreByName[g]
	}

	decades := preferredDecades(ctx, e.store, artistsByID)
	decadeOverrides, err := e.decadeOverrides(ctx)
	if err != nil {
		return err
	}
	for decade, weight := range decadeOverrides {
		decades[decade] = weight
	}

	profile := &store.TasteProfile{
		UserID:            defaultUserID,
		TopGenres:         topGenres,
		PreferredDecades:  decades,
		MeanAudioFeatures: meanAudioFeatures(tracksByID),
		TotalPlays:        affinity.TotalPlays,
		TotalArtists:      affinity.TotalArtists,
		TotalAlbums:       affinity.TotalAlbums,
		TotalTracks:       affinity.TotalTracks,
		PeakHours:         store.JSONIntSlice(affinity.PeakHours),
		PeakDays:          store.JSONIntSlice(affinity.PeakDays),
		NoveltyPreference: affinity.NoveltyPreference,
		Embedding:         embedding,
		EvolutionHistory:  history,
		Cluster:           cluster,
		ClusterConfidence: confidence,
	}
	if err := e.store.CreateTasteProfileVersion(ctx, profile); err != nil {
		return err
	}
	e.log.Info().Str("cluster", cluster).Float64("confidence", confidence).Str("trend", evolutionTrend(history)).Msg("taste profile updated")
	return nil
}

// genreOverrides implements spec §3.I: explicit genre_affinity
// UserPreference rows take priority over the value analyzeAffinity would
// otherwise derive from listening history.
func (e *Engine) genreOverrides(ctx context.Context) (map[string]float64, error) {
	prefs, err := e.store.PreferencesByKind(ctx, defaultUserID, store.PreferenceGenre)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(prefs))
	for _, p := range prefs {
		out[p.Key] = p.Weight
	}
	return out, nil
}

// decadeOverrides mirrors genreOverrides for spec §3.I's decade_affinity
// preference kind; keys are decade strings ("1990") matching
// preferredDecades' own key format.
func (e *Engine) decadeOverrides(ctx context.Context) (map[string]float64, error) {
	prefs, err := e.store.PreferencesByKind(ctx, defaultUserID, store.PreferenceDecade)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(prefs))
	for _, p := range prefs {
		out[p.Key] = p.Weight
	}
	return out, nil
}

func collectArtistIDs(events []store.ListeningEvent) []uint {
	seen := make(map[uint]bool)
	var out []uint
	for _, e := range events {
		if e.ArtistID == nil || seen[*e.ArtistID] {
			continue
		}
		seen[*e.ArtistID] = true
		out = append(out, *e.ArtistID)
	}
	return out
}

func collectTrackIDs(events []store.ListeningEvent) []uint {
	seen := make(map[uint]bool)
	var out []uint
	for _, e := range events {
		if e.TrackID == nil || seen[*e.TrackID] {
			continue
		}
		seen[*e.TrackID] = true
		out = append(out, *e.TrackID)
	}
	return out
}

// preferredDecades buckets every in-library album with a known release
// year by release decade, as a share of all such albums; artistsByID is
// not consulted.
func preferredDecades(ctx context.Context, s *store.Store, artistsByID map[uint]store.Artist) store.JSONMap {
	albums, err := s.LibraryAlbums(ctx)
	if err != nil {
		return store.JSONMap{}
	}
	counts := make(map[int]int)
	for _, a := range albums {
		if a.ReleaseYear == 0 {
			continue
		}
		counts[decadeOf(a.ReleaseYear)]++
	}
	var total int
	for _, c := range counts {
		total += c
	}
	out := make(store.JSONMap, len(counts))
	if total == 0 {
		return out
	}
	for decade, c := range counts {
		out[strconv.Itoa(decade)] = float64(c) / float64(total)
	}
	return out
}

func meanAudioFeatures(tracksByID map[uint]store.Track) store.AudioFeatures {
	var sum store.AudioFeatures
	n := float64(len(tracksByID))
	if n == 0 {
		return sum
	}
	for _, t := range tracksByID {
		sum.Danceability += t.Danceability
		sum.Energy += t.Energy
		sum.Valence += t.Valence
		sum.Acousticness += t.Acousticness
		sum.Instrumentalness += t.Instrumentalness
		sum.Liveness += t.Liveness
		sum.Speechiness += t.Speechiness
		sum.Tempo += t.Tempo
	}
	sum.Danceability /= n
	sum.Energy /= n
	sum.Valence /= n
	sum.Acousticness /= n
	sum.Instrumentalness /= n
	sum.Liveness /= n
	sum.Speechiness /= n
	sum.Tempo /= n
	return sum
}

// GenerateRecommendations implements the daily generate-recommendations
// job (spec §4.F(b)-(e)): produce candidates from all five producers,
// score, diversify, purge what's expired, and persist the survivors.
func (e *Engine) GenerateRecommendations(ctx context.Context) error {
	if !e.settings.Bool("ml_profiling_enabled", true) {
		return nil
	}
	now := time.Now()

	events, err := e.store.ListeningEvents(ctx, 0)
	if err != nil {
		return err
	}
	artistIDs := collectArtistIDs(events)
	artistsByID, err := e.store.ArtistsByIDs(ctx, artistIDs)
	if err != nil {
		return err
	}
	genreOverrides, err := e.genreOverrides(ctx)
	if err != nil {
		return err
	}
	affinity := analyzeAffinity(events, artistsByID, now, genreOverrides)

	libraryAlbums, err := e.store.LibraryAlbums(ctx)
	if err != nil {
		return err
	}
	albumIDs := make([]uint, 0, len(libraryAlbums))
	for _, a := range libraryAlbums {
		albumIDs = append(albumIDs, a.ID)
	}
	tracksByAlbum, err := e.store.LibraryTracksByAlbumIDs(ctx, albumIDs)
	if err != nil {
		return err
	}
	playedTrackIDs := make(map[uint]bool, len(events))
	for _, ev := range events {
		if ev.TrackID != nil {
			playedTrackIDs[*ev.TrackID] = true
		}
	}

	recentArtistIDs, err := e.store.RecentlyPlayedArtistIDs(ctx, 30*24*time.Hour, 10)
	if err != nil {
		return err
	}

	// Only library artists carry external IDs the catalog clients can
	// look up by; widen artistsByID beyond the listening-event set so the
	// history-based producer's recently-played artists always resolve.
	for _, id := range recentArtistIDs {
		if _, ok := artistsByID[id]; ok {
			continue
		}
		if a, err := e.store.GetArtist(ctx, id); err == nil {
			artistsByID[id] = *a
		}
	}

	in := producerInputs{
		affinity:      affinity,
		artistsByID:   artistsByID,
		libraryAlbums: libraryAlbums,
		clients:       e.clients,
		genreClients:  e.genres,
		moodClients:   e.moods,
	}

	var candidates []Candidate
	candidates = append(candidates, similarArtistCandidates(ctx, in)...)
	candidates = append(candidates, genreExploreCandidates(ctx, in)...)
	candidates = append(candidates, deepCutCandidates(ctx, in, playedTrackIDs, tracksByAlbum)...)
	candidates = append(candidates, moodBasedCandidates(ctx, in)...)
	candidates = append(candidates, historyBasedCandidates(ctx, in, recentArtistIDs)...)

	profile, err := e.store.LatestTasteProfile(ctx, defaultUserID)
	hasMean := err == nil
	var meanEmbedding [embeddingDims]float64
	if hasMean {
		meanEmbedding = profile.Embedding
	}

	feedbackRows, err := e.store.CategoryFeedbackStats(ctx, 90*24*time.Hour)
	if err != nil {
		return err
	}
	feedbackByCategory := make(map[store.RecommendationCategory]FeedbackStats, len(feedbackRows))
	for _, r := range feedbackRows {
		feedbackByCategory[r.Category] = FeedbackStats{Shown: r.Shown, Clicked: r.Clicked, Dismissed: r.Dismissed, AddedToWishlist: r.AddedToWishlist}
	}

	scored := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		confidence, factors := scoreCandidate(c, affinity, meanEmbedding, hasMean, feedbackByCategory)
		if confidence <= 0 {
			continue
		}
		scored = append(scored, scoredCandidate{Candidate: c, Confidence: confidence, Factors: factors})
	}
	scored = dedupe(scored)
	scored = diversify(scored)

	if _, err := e.store.PurgeExpiredRecommendations(ctx); err != nil {
		return err
	}

	recs := make([]store.Recommendation, 0, len(scored))
	for _, sc := range scored {
		factors := make(store.JSONMap, len(sc.Factors))
		for k, v := range sc.Factors {
			factors[k] = v
		}
		recs = append(recs, store.Recommendation{
			Type:          sc.Type,
			Category:      sc.Category,
			Reason:        sc.Reason,
			BasisArtistID: sc.BasisArtistID,
			Confidence:    sc.Confidence,
			Relevance:     sc.Confidence,
			Novelty:       sc.Factors["novelty"],
			ScoreFactors:  factors,
			ExpiresAt:     now.Add(expiryFor(sc.Category)),
		})
	}
	if err := e.store.CreateRecommendations(ctx, recs); err != nil {
		return err
	}
	e.log.Info().Int("generated", len(recs)).Int("candidates", len(candidates)).Msg("recommendations generated")
	return nil
}

// CheckNewReleases implements the release-radar job (spec §4.F(b)
// producer note): scan every in-library artist's catalog for releases in
// the last 30 days and recommend them at fixed high confidence — this is
// a freshness signal, not an affinity judgment, so it bypasses scoring.
func (e *Engine) CheckNewReleases(ctx context.Context) error {
	artists, err := e.store.LibraryArtists(ctx)
	if err != nil {
		return err
	}

	var recs []store.Recommendation
	now := time.Now()
	for _, artist := range artists {
		externalID := artist.SpotifyID
		if externalID == "" {
			externalID = artist.MusicBrainzID
		}
		if externalID == "" {
			continue
		}
		for _, client := range e.clients {
			if !client.IsAvailable(ctx) {
				continue
			}
			for _, rel := range client.NewReleases(ctx, externalID, 30) {
				aid := artist.ID
				recs = append(recs, store.Recommendation{
					Type:          store.RecommendationAlbum,
					Category:      store.CategoryReleaseRadar,
					Reason:        "New release from " + artist.Name,
					BasisArtistID: &aid,
					Confidence:    0.9,
					Relevance:     0.9,
					Novelty:       1.0,
					ScoreFactors:  store.JSONMap{"freshness": 1.0},
					ExpiresAt:     now.Add(expiryFor(store.CategoryReleaseRadar)),
				})
			}
		}
	}
	if len(recs) == 0 {
		return nil
	}
	if err := e.store.CreateRecommendations(ctx, recs); err != nil {
		return err
	}
	e.log.Info().Int("found", len(recs)).Msg("release radar scan complete")
	return nil
}
