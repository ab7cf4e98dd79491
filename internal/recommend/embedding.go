package recommend

import (
	"math"
	"time"

	"github.com/vibarr/core/internal/store"
)

// embeddingDims is the fixed feature order used throughout this package:
// danceability, energy, valence, acousticness, instrumentalness,
// liveness, speechiness, normalized tempo.
const embeddingDims = 8

// clusterCentroid names one of the eight predefined taste clusters with
// its centroid in the same 8-dim space as buildEmbedding's output.
type clusterCentroid struct {
	name     string
	centroid [embeddingDims]float64
}

// clusterCentroids are fixed archetypes in
// [danceability, energy, valence, acousticness, instrumentalness, liveness, speechiness, tempo] space.
var clusterCentroids = []clusterCentroid{
	{"energetic_explorer", [8]float64{0.85, 0.85, 0.70, 0.05, 0.10, 0.15, 0.08, 0.75}},
	{"melancholy_romantic", [8]float64{0.35, 0.35, 0.20, 0.55, 0.15, 0.15, 0.05, 0.35}},
	{"chill_curator", [8]float64{0.40, 0.25, 0.55, 0.80, 0.05, 0.15, 0.05, 0.30}},
	{"instrumental_voyager", [8]float64{0.25, 0.20, 0.40, 0.70, 0.75, 0.10, 0.03, 0.25}},
	{"rhythm_devotee", [8]float64{0.45, 0.90, 0.40, 0.05, 0.05, 0.30, 0.10, 0.65}},
	{"indie_tastemaker", [8]float64{0.75, 0.70, 0.75, 0.15, 0.02, 0.15, 0.07, 0.60}},
	{"eclectic_audiophile", [8]float64{0.65, 0.55, 0.30, 0.10, 0.45, 0.12, 0.06, 0.55}},
	{"high_fidelity_purist", [8]float64{0.50, 0.45, 0.55, 0.40, 0.10, 0.55, 0.06, 0.45}},
}

// normalizeTempo maps a BPM value to [0,1] against the spec's fixed
// 60-200bpm window, clipping outliers at either end.
func normalizeTempo(bpm float64) float64 {
	v := (bpm - 60) / 140
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func featureVector(f store.AudioFeatures) [embeddingDims]float64 {
	return [embeddingDims]float64{
		f.Danceability,
		f.Energy,
		f.Valence,
		f.Acousticness,
		f.Instrumentalness,
		f.Liveness,
		f.Speechiness,
		normalizeTempo(f.Tempo),
	}
}

// buildEmbedding implements spec §4.F(c): a weighted centroid of every
// recent listening event's track features, decayed by recency and
// attenuated (or repelled) for skips, over the embeddingWindowDays window.
func buildEmbedding(events []store.ListeningEvent, tracksByID map[uint]store.Track, now time.Time, halfLifeDays float64) [embeddingDims]float64 {
	var sum [embeddingDims]float64
	var totalWeight float64

	for _, e := range events {
		if e.TrackID == nil {
			continue
		}
		track, ok := tracksByID[*e.TrackID]
		if !ok {
			continue
		}
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
			w *= embeddingSkipRepulsion
		}
		if w == 0 {
			continue
		}
		vec := featureVector(track.AudioFeatures)
		for i := range vec {
			sum[i] += vec[i] * w
		}
		totalWeight += w
	}

	if totalWeight == 0 {
		return [embeddingDims]float64{}
	}
	var out [embeddingDims]float64
	for i := range sum {
		out[i] = sum[i] / totalWeight
	}
	return out
}

func euclideanDistance(a, b [embeddingDims]float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// classifyCluster implements spec §4.F(c) nearest-centroid classification:
// confidence = 1 - distance/sqrt(D), floored at 0.
func classifyCluster(embedding [embeddingDims]float64) (name string, confidence float64) {
	best := ""
	bestDist := math.MaxFloat64
	for _, c := range clusterCentroids {
		d := euclideanDistance(embedding, c.centroid)
		if d < bestDist {
			bestDist = d
			best = c.name
		}
	}
	conf := 1 - bestDist/math.Sqrt(float64(embeddingDims))
	if conf < 0 {
		conf = 0
	}
	return best, conf
}

// evolutionTrend classifies the average drift between consecutive
// snapshots in an evolution history (spec §4.F(c)).
func evolutionTrend(history []store.TasteEvolutionSnapshot) string {
	if len(history) < 2 {
		return "stable"
	}
	var totalDrift float64
	for i := 1; i < len(history); i++ {
		totalDrift += euclideanDistance(history[i-1].Embedding, history[i].Embedding)
	}
	avg := totalDrift / float64(len(history)-1)
	switch {
	case avg < 0.05:
		return "stable"
	case avg < 0.15:
		return "evolving"
	default:
		return "shifting"
	}
}

// appendEvolutionSnapshot records the current period's embedding in a
// profile's evolution history, keeping at most the most recent 12 entries
// (spec §4.F(c)). UpdateTasteProfile runs weekly, so a period ("YYYY-MM")
// can recur several times before it's over; an existing entry for the
// current period is overwritten in place rather than appended again, so
// the 12-entry cap holds roughly a year of distinct months rather than a
// few months of weekly runs.
func appendEvolutionSnapshot(history []store.TasteEvolutionSnapshot, period string, embedding [embeddingDims]float64, sampleSize int) []store.TasteEvolutionSnapshot {
	snapshot := store.TasteEvolutionSnapshot{
		Period:     period,
		Embedding:  embedding,
		SampleSize: sampleSize,
	}
	for i := range history {
		if history[i].Period == period {
			history[i] = snapshot
			return history
		}
	}
	out := append(history, snapshot)
	if len(out) > 12 {
		out = out[len(out)-12:]
	}
	return out
}
