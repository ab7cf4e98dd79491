// Package recommend implements the recommendation engine (spec §4.F): a
// five-stage pipeline — affinity analysis, candidate generation, scoring,
// diversification, and persistence — run fresh on every
// generate-daily-recommendations firing, plus a separate release-radar
// job and a weekly taste-profile/embedding recompute.
package recommend

import (
	"math"
	"time"

	"github.com/vibarr/core/internal/store"
)

const (
	halfLifeArtistDays   = 14.0
	halfLifeGenreDays    = 21.0
	halfLifeEmbeddingDays = 21.0

	skippedWeightMultiplier = 0.3
	embeddingSkipRepulsion  = -0.2

	embeddingWindowDays = 180
)

// decayWeight applies the spec §4.F time-decay formula: a play aged d
// days with half-life H contributes w = exp(-ln2 * d / H).
func decayWeight(ageDays, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 0
	}
	return math.Exp(-math.Ln2 * ageDays / halfLifeDays)
}

// eventWeight is the full per-event weight used by the artist/genre
// affinity sums: decay * completion fraction, attenuated for skips.
func eventWeight(e store.ListeningEvent, now time.Time, halfLifeDays float64) float64 {
	ageDays := now.Sub(e.PlayedAt).Hours() / 24
	w := decayWeight(ageDays, halfLifeDays)
	completion := e.CompletionPercent / 100
	if completion > 1 {
		completion = 1
	}
	if completion < 0 {
		completion = 0
	}
	w *= completion
	if e.Skipped {
		w *= skippedWeightMultiplier
	}
	return w
}

// Affinity holds the normalized-to-[0,1] per-key weight maps produced by
// analyzeAffinity, plus the raw library context later stages need.
type Affinity struct {
	ArtistByID map[uint]float64
	GenreByName map[string]float64

	TotalPlays   int64
	TotalArtists int64
	TotalAlbums  int64
	TotalTracks  int64

	PeakHours []int
	PeakDays  []int

	NoveltyPreference float64
}

// analyzeAffinity implements spec §4.F(a): artist/genre affinity plus the
// aggregate TasteProfile statistics, computed from weighted listening
// events and the artist/album/track catalogs they reference.
//
// genreOverrides carries spec §3.I explicit UserPreference rows
// (kind=genre_affinity): a genre the listener has explicitly weighted
// replaces its derived affinity outright rather than blending with it,
// since the override exists precisely to correct what listening history
// alone would infer.
func analyzeAffinity(events []store.ListeningEvent, artistsByID map[uint]store.Artist, now time.Time, genreOverrides map[string]float64) Affinity {
	artistRaw := make(map[uint]float64)
	genreRaw := make(map[string]float64)
	uniqueArtists := make(map[uint]bool)
	uniqueAlbums := make(map[uint]bool)
	uniqueTracks := make(map[uint]bool)
	hourCounts := make(map[int]int)
	dayCounts := make(map[int]int)

	var totalPlays int64
	for _, e := range events {
		totalPlays++
		hourCounts[e.HourOfDay]++
		dayCounts[e.DayOfWeek]++

		if e.TrackID != nil {
			uniqueTracks[*e.TrackID] = true
		}
		if e.AlbumID != nil {
			uniqueAlbums[*e.AlbumID] = true
		}
		if e.ArtistID == nil {
			continue
		}
		uniqueArtists[*e.ArtistID] = true

		artistW := eventWeight(e, now, halfLifeArtistDays)
		artistRaw[*e.ArtistID] += artistW

		genreW := eventWeight(e, now, halfLifeGenreDays)
		if artist, ok := artistsByID[*e.ArtistID]; ok {
			for _, g := range artist.Genres {
				genreRaw[g] += genreW
			}
		}
	}

	genreByName := normalizeStr(genreRaw)
	for genre, weight := range genreOverrides {
		genreByName[genre] = weight
	}

	return Affinity{
		ArtistByID:        normalize(artistRaw),
		GenreByName:       genreByName,
		TotalPlays:        totalPlays,
		TotalArtists:      int64(len(uniqueArtists)),
		TotalAlbums:       int64(len(uniqueAlbums)),
		TotalTracks:       int64(len(uniqueTracks)),
		PeakHours:         topNIntKeys(hourCounts, 3),
		PeakDays:          topNIntKeys(dayCounts, 3),
		NoveltyPreference: noveltyPreference(int64(len(uniqueArtists)), totalPlays),
	}
}

// noveltyPreference is spec §4.F(a): min(unique_artists / (total_plays*0.1 + 1), 1).
func noveltyPreference(uniqueArtists, totalPlays int64) float64 {
	v := float64(uniqueArtists) / (float64(totalPlays)*0.1 + 1)
	if v > 1 {
		v = 1
	}
	return v
}

func normalize(raw map[uint]float64) map[uint]float64 {
	max := 0.0
	for _, v := range raw {
		if v > max {
			max = v
		}
	}
	out := make(map[uint]float64, len(raw))
	if max == 0 {
		for k := range raw {
			out[k] = 0
		}
		return out
	}
	for k, v := range raw {
		out[k] = v / max
	}
	return out
}

func normalizeStr(raw map[string]float64) map[string]float64 {
	max := 0.0
	for _, v := range raw {
		if v > max {
			max = v
		}
	}
	out := make(map[string]float64, len(raw))
	if max == 0 {
		for k := range raw {
			out[k] = 0
		}
		return out
	}
	for k, v := range raw {
		out[k] = v / max
	}
	return out
}

func topNIntKeys(counts map[int]int, n int) []int {
	type kv struct {
		k int
		v int
	}
	kvs := make([]kv, 0, len(counts))
	for k, v := range counts {
		kvs = append(kvs, kv{k, v})
	}
	for i := 1; i < len(kvs); i++ {
		j := i
		for j > 0 && kvs[j-1].v < kvs[j].v {
			kvs[j-1], kvs[j] = kvs[j], kvs[j-1]
			j--
		}
	}
	if len(kvs) > n {
		kvs = kvs[:n]
	}
	out := make([]int, len(kvs))
	for i, e := range kvs {
		out[i] = e.k
	}
	return out
}

// topNStrKeysByWeight returns the n keys with the highest weight, ties
// broken by key for determinism.
func topNStrKeysByWeight(weights map[string]float64, n int) []string {
	type kv struct {
		k string
		v float64
	}
	kvs := make([]kv, 0, len(weights))
	for k, v := range weights {
		kvs = append(kvs, kv{k, v})
	}
	for i := 1; i < len(kvs); i++ {
		j := i
		for j > 0 && (kvs[j-1].v < kvs[j].v || (kvs[j-1].v == kvs[j].v && kvs[j-1].k > kvs[j].k)) {
			kvs[j-1], kvs[j] = kvs[j], kvs[j-1]
			j--
		}
	}
	if len(kvs) > n {
		kvs = kvs[:n]
	}
	out := make([]string, len(kvs))
	for i, e := range kvs {
		out[i] = e.k
	}
	return out
}

// topNUintKeysByWeight mirrors topNStrKeysByWeight for artist-id-keyed maps.
func topNUintKeysByWeight(weights map[uint]float64, n int) []uint {
	type kv struct {
		k uint
		v float64
	}
	kvs := make([]kv, 0, len(weights))
	for k, v := range weights {
		kvs = append(kvs, kv{k, v})
	}
	for i := 1; i < len(kvs); i++ {
		j := i
		for j > 0 && (kvs[j-1].v < kvs[j].v || (kvs[j-1].v == kvs[j].v && kvs[j-1].k > kvs[j].k)) {
			kvs[j-1], kvs[j] = kvs[j], kvs[j-1]
			j--
		}
	}
	if len(kvs) > n {
		kvs = kvs[:n]
	}
	out := make([]uint, len(kvs))
	for i, e := range kvs {
		out[i] = e.k
	}
	return out
}

func decadeOf(year int) int {
	return (year / 10) * 10
}
