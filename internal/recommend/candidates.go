package recommend

import (
	"context"
	"fmt"

	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/store"
)

// Candidate is a not-yet-scored recommendation produced by one of the
// five producers in generateCandidates (spec §4.F(b)). Only the fields a
// given producer can populate are set; score.go treats an absent field
// (zero ExternalSimilarity, empty Genres, zero AudioFeatures) as a
// missing factor rather than a zero score.
type Candidate struct {
	Category store.RecommendationCategory
	Type      store.RecommendationType

	ArtistExternalID string
	ArtistName       string
	AlbumTitle       string
	AlbumExternalID  string
	TrackTitle       string
	ReleaseDate      string

	BasisArtistID   *uint
	BasisArtistName string

	ExternalSimilarity float64 // [0,1], set when the source catalog supplied a match score
	Genres             []string
	AudioFeatures      *store.AudioFeatures

	Reason string
}

func (c Candidate) key() string {
	return fmt.Sprintf("%s|%s|%s|%s", c.Category, c.ArtistExternalID, c.AlbumTitle, c.TrackTitle)
}

// producerInputs bundles everything a candidate producer might need, so
// each producer function has a uniform signature regardless of which
// parts of the affinity analysis it actually consumes.
type producerInputs struct {
	affinity     Affinity
	artistsByID  map[uint]store.Artist
	libraryAlbums []store.Album
	clients      []catalog.ArtistSearcher
	genreClients []catalog.GenreExplorer
	moodClients  []catalog.MoodExplorer
}

const candidatesPerProducer = 20

// similarArtistCandidates fans the user's top-affinity library artists out
// to every catalog's similarity endpoint (spec §4.F(b) producer 1).
func similarArtistCandidates(ctx context.Context, in producerInputs) []Candidate {
	top := topNUintKeysByWeight(in.affinity.ArtistByID, 8)
	var out []Candidate
	for _, artistID := range top {
		artist, ok := in.artistsByID[artistID]
		if !ok || artist.SpotifyID == "" && artist.LastFMURL == "" && artist.MusicBrainzID == "" {
			continue
		}
		for _, client := range in.clients {
			if !client.IsAvailable(ctx) {
				continue
			}
			externalID := artist.SpotifyID
			if externalID == "" {
				externalID = artist.MusicBrainzID
			}
			if externalID == "" {
				continue
			}
			for _, sim := range client.SimilarArtists(ctx, externalID, 10) {
				aid := artistID
				out = append(out, Candidate{
					Category:           store.CategorySimilarArtists,
					Type:               store.RecommendationArtist,
					ArtistExternalID:   sim.ExternalID,
					ArtistName:         sim.Name,
					Genres:             sim.Genres,
					BasisArtistID:      &aid,
					BasisArtistName:    artist.Name,
					ExternalSimilarity: sim.Match,
					Reason:             fmt.Sprintf("Because you listen to %s", artist.Name),
				})
			}
			if len(out) >= candidatesPerProducer {
				return out
			}
		}
	}
	return out
}

// genreExploreCandidates queries genre-capable catalogs for artists in
// the user's top-affinity genres (spec §4.F(b) producer 2).
func genreExploreCandidates(ctx context.Context, in producerInputs) []Candidate {
	genres := topNStrKeysByWeight(in.affinity.GenreByName, 5)
	var out []Candidate
	for _, genre := range genres {
		for _, client := range in.genreClients {
			for _, a := range client.ArtistsByGenre(ctx, genre, 10) {
				out = append(out, Candidate{
					Category:         store.CategoryGenreExplore,
					Type:             store.RecommendationArtist,
					ArtistExternalID: a.ExternalID,
					ArtistName:       a.Name,
					Genres:           append([]string{genre}, a.Genres...),
					Reason:           fmt.Sprintf("Popular in %s, a genre you listen to", genre),
				})
			}
		}
	}
	if len(out) > candidatesPerProducer {
		out = out[:candidatesPerProducer]
	}
	return out
}

// deepCutCandidates surfaces in-library tracks by favored artists that
// carry little or no listening history — the "you already own this but
// never played it" case (spec §4.F(b) producer 3).
func deepCutCandidates(_ context.Context, in producerInputs, playedTrackIDs map[uint]bool, tracksByAlbum map[uint][]store.Track) []Candidate {
	top := topNUintKeysByWeight(in.affinity.ArtistByID, 10)
	topSet := make(map[uint]bool, len(top))
	for _, id := range top {
		topSet[id] = true
	}

	var out []Candidate
	for _, album := range in.libraryAlbums {
		if !topSet[album.ArtistID] {
			continue
		}
		artist := in.artistsByID[album.ArtistID]
		for _, t := range tracksByAlbum[album.ID] {
			if playedTrackIDs[t.ID] {
				continue
			}
			af := t.AudioFeatures
			aid := album.ArtistID
			out = append(out, Candidate{
				Category:         store.CategoryDeepCuts,
				Type:             store.RecommendationTrack,
				ArtistExternalID: artist.SpotifyID,
				ArtistName:       artist.Name,
				AlbumTitle:       album.Title,
				TrackTitle:       t.Title,
				BasisArtistID:    &aid,
				BasisArtistName:  artist.Name,
				AudioFeatures:    &af,
				Reason:           fmt.Sprintf("A deep cut from %s you haven't played", artist.Name),
			})
			if len(out) >= candidatesPerProducer {
				return out
			}
		}
	}
	return out
}

// moodFromPeakHours maps the user's current affinity peak listening hours
// to one of the catalog's mood keywords, a coarse heuristic grounded on
// the same peak-hour statistics the TasteProfile already tracks.
func moodFromPeakHours(hours []int) string {
	if len(hours) == 0 {
		return "chill"
	}
	h := hours[0]
	switch {
	case h >= 5 && h < 11:
		return "energetic"
	case h >= 11 && h < 17:
		return "focus"
	case h >= 17 && h < 22:
		return "upbeat"
	default:
		return "chill"
	}
}

// moodBasedCandidates queries mood-capable catalogs using a mood inferred
// from the user's peak listening hours (spec §4.F(b) producer 4).
func moodBasedCandidates(ctx context.Context, in producerInputs) []Candidate {
	mood := moodFromPeakHours(in.affinity.PeakHours)
	var out []Candidate
	for _, client := range in.moodClients {
		for _, t := range client.TracksByMood(ctx, mood, candidatesPerProducer) {
			out = append(out, Candidate{
				Category:   store.CategoryMoodBased,
				Type:       store.RecommendationTrack,
				ArtistName: t.ArtistName,
				AlbumTitle: t.AlbumTitle,
				TrackTitle: t.Title,
				Reason:     fmt.Sprintf("Matches your %s listening mood", mood),
			})
		}
	}
	return out
}

// historyBasedCandidates looks for new releases from artists the user has
// most recently engaged with, covering the "more from artists you just
// discovered" case distinct from the long-horizon similar_artists producer
// (spec §4.F(b) producer 5).
func historyBasedCandidates(ctx context.Context, in producerInputs, recentArtistIDs []uint) []Candidate {
	var out []Candidate
	for _, artistID := range recentArtistIDs {
		artist, ok := in.artistsByID[artistID]
		if !ok {
			continue
		}
		externalID := artist.SpotifyID
		if externalID == "" {
			externalID = artist.MusicBrainzID
		}
		if externalID == "" {
			continue
		}
		for _, client := range in.clients {
			if !client.IsAvailable(ctx) {
				continue
			}
			for _, rel := range client.NewReleases(ctx, externalID, 90) {
				aid := artistID
				out = append(out, Candidate{
					Category:         store.CategoryDiscoverWeekly,
					Type:             store.RecommendationAlbum,
					ArtistExternalID: externalID,
					ArtistName:       artist.Name,
					AlbumTitle:       rel.Title,
					AlbumExternalID:  rel.ExternalID,
					ReleaseDate:      rel.ReleaseDate,
					BasisArtistID:    &aid,
					BasisArtistName:  artist.Name,
					Reason:           fmt.Sprintf("New from %s, an artist you recently discovered", artist.Name),
				})
			}
			if len(out) >= candidatesPerProducer {
				return out
			}
		}
	}
	return out
}
