package recommend

import (
	"math"

	"github.com/vibarr/core/internal/store"
)

// factorWeights is the spec §4.F(d) six-factor weighted scoring model.
var factorWeights = map[string]float64{
	"genre_affinity":          0.25,
	"source_artist_affinity":  0.20,
	"external_similarity":     0.20,
	"audio_feature_similarity": 0.15,
	"novelty":                 0.10,
	"feedback":                0.10,
}

// factorValue pairs a computed [0,1] factor score with whether the
// candidate actually carried data for it; absent factors are dropped and
// the remaining weights are redistributed proportionally (spec §4.F(d)).
type factorValue struct {
	value  float64
	present bool
}

// FeedbackStats is the per-category historical engagement rate consumed
// by the feedback scoring factor.
type FeedbackStats struct {
	Shown          int64
	Clicked        int64
	Dismissed      int64
	AddedToWishlist int64
}

// acceptRate implements spec §4.F(c)'s feedback weighting: wishlist adds
// count double a click, and the denominator is the total of engaged
// outcomes rather than everything shown, so items never clicked on or
// dismissed don't dilute the rate.
func (f FeedbackStats) acceptRate() (float64, bool) {
	if f.Shown < 5 {
		return 0, false
	}
	denom := f.Clicked + f.Dismissed + f.AddedToWishlist
	if denom == 0 {
		return 0, false
	}
	numer := f.Clicked + 2*f.AddedToWishlist
	return float64(numer) / float64(denom), true
}

func genreAffinityFactor(c Candidate, affinity Affinity) factorValue {
	if len(c.Genres) == 0 {
		return factorValue{}
	}
	var sum float64
	var n int
	for _, g := range c.Genres {
		if w, ok := affinity.GenreByName[g]; ok {
			sum += w
			n++
		}
	}
	if n == 0 {
		return factorValue{}
	}
	return factorValue{value: sum / float64(n), present: true}
}

func sourceArtistAffinityFactor(c Candidate, affinity Affinity) factorValue {
	if c.BasisArtistID == nil {
		return factorValue{}
	}
	w, ok := affinity.ArtistByID[*c.BasisArtistID]
	if !ok {
		return factorValue{}
	}
	return factorValue{value: w, present: true}
}

func externalSimilarityFactor(c Candidate) factorValue {
	if c.ExternalSimilarity <= 0 {
		return factorValue{}
	}
	return factorValue{value: c.ExternalSimilarity, present: true}
}

func audioFeatureSimilarityFactor(c Candidate, meanEmbedding [embeddingDims]float64, hasMean bool) factorValue {
	if c.AudioFeatures == nil || !hasMean {
		return factorValue{}
	}
	vec := featureVector(*c.AudioFeatures)
	dist := euclideanDistance(vec, meanEmbedding)
	sim := 1 - dist/sqrtEmbeddingDims
	if sim < 0 {
		sim = 0
	}
	return factorValue{value: sim, present: true}
}

var sqrtEmbeddingDims = math.Sqrt(float64(embeddingDims))

// noveltyFactor scores unfamiliar artists/categories higher, weighted by
// the listener's own NoveltyPreference so highly-exploratory users see
// more unfamiliar candidates surface near the top.
func noveltyFactor(c Candidate, affinity Affinity) factorValue {
	familiarity := 0.0
	if c.BasisArtistID != nil {
		familiarity = affinity.ArtistByID[*c.BasisArtistID]
	}
	base := 1 - familiarity
	weighted := base*affinity.NoveltyPreference + base*0.3*(1-affinity.NoveltyPreference)
	return factorValue{value: weighted, present: true}
}

func feedbackFactor(c Candidate, stats map[store.RecommendationCategory]FeedbackStats) factorValue {
	s, ok := stats[c.Category]
	if !ok {
		return factorValue{}
	}
	rate, ok := s.acceptRate()
	if !ok {
		return factorValue{}
	}
	return factorValue{value: rate, present: true}
}

// scoreCandidate implements spec §4.F(d): weight each present factor,
// redistribute the weight of any absent factor across the present ones,
// and return the resulting confidence plus the per-factor breakdown for
// persistence in Recommendation.ScoreFactors.
func scoreCandidate(c Candidate, affinity Affinity, meanEmbedding [embeddingDims]float64, hasMean bool, stats map[store.RecommendationCategory]FeedbackStats) (confidence float64, breakdown map[string]float64) {
	factors := map[string]factorValue{
		"genre_affinity":           genreAffinityFactor(c, affinity),
		"source_artist_affinity":   sourceArtistAffinityFactor(c, affinity),
		"external_similarity":      externalSimilarityFactor(c),
		"audio_feature_similarity": audioFeatureSimilarityFactor(c, meanEmbedding, hasMean),
		"novelty":                  noveltyFactor(c, affinity),
		"feedback":                 feedbackFactor(c, stats),
	}

	var presentWeight float64
	for name, fv := range factors {
		if fv.present {
			presentWeight += factorWeights[name]
		}
	}
	if presentWeight == 0 {
		return 0, map[string]float64{}
	}

	breakdown = make(map[string]float64, len(factors))
	var total float64
	for name, fv := range factors {
		if !fv.present {
			continue
		}
		redistributed := factorWeights[name] / presentWeight
		contribution := fv.value * redistributed
		breakdown[name] = fv.value
		total += contribution
	}
	if total > 1 {
		total = 1
	}
	return total, breakdown
}
