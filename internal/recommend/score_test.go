package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vibarr/core/internal/store"
)

func TestScoreCandidateRedistributesAbsentFactorWeight(t *testing.T) {
	c := Candidate{ExternalSimilarity: 1.0}
	affinity := Affinity{ArtistByID: map[uint]float64{}, GenreByName: map[string]float64{}, NoveltyPreference: 0.5}

	confidence, factors := scoreCandidate(c, affinity, [embeddingDims]float64{}, false, nil)

	assert.Greater(t, confidence, 0.0)
	assert.Contains(t, factors, "external_similarity")
	assert.NotContains(t, factors, "genre_affinity")
	assert.NotContains(t, factors, "audio_feature_similarity")
}

func TestScoreCandidateNoveltyOnlyWhenNoOtherFactorsPresent(t *testing.T) {
	c := Candidate{}
	affinity := Affinity{ArtistByID: map[uint]float64{}, GenreByName: map[string]float64{}, NoveltyPreference: 0}

	confidence, factors := scoreCandidate(c, affinity, [embeddingDims]float64{}, false, nil)

	// novelty is always present (it has a sensible default), so some
	// signal survives even with every other factor absent.
	assert.GreaterOrEqual(t, confidence, 0.0)
	assert.Contains(t, factors, "novelty")
}

func TestGenreAffinityFactorAveragesKnownGenres(t *testing.T) {
	c := Candidate{Genres: []string{"ambient", "unknown-genre"}}
	affinity := Affinity{GenreByName: map[string]float64{"ambient": 0.8}}

	fv := genreAffinityFactor(c, affinity)

	assert.True(t, fv.present)
	assert.InDelta(t, 0.8, fv.value, 0.001)
}

func TestSourceArtistAffinityFactorAbsentWithoutBasis(t *testing.T) {
	fv := sourceArtistAffinityFactor(Candidate{}, Affinity{})
	assert.False(t, fv.present)
}

func TestFeedbackFactorRequiresMinimumSampleSize(t *testing.T) {
	stats := map[store.RecommendationCategory]FeedbackStats{
		store.CategorySimilarArtists: {Shown: 2, Clicked: 2},
	}
	fv := feedbackFactor(Candidate{Category: store.CategorySimilarArtists}, stats)
	assert.False(t, fv.present, "fewer than 5 shown recommendations shouldn't produce a feedback signal yet")
}

func TestFeedbackFactorComputesAcceptRate(t *testing.T) {
	// (clicks + 2*wishlisted) / (clicks + dismissals + wishlisted)
	// = (3 + 2*2) / (3 + 1 + 2) = 7/6
	stats := map[store.RecommendationCategory]FeedbackStats{
		store.CategorySimilarArtists: {Shown: 10, Clicked: 3, Dismissed: 1, AddedToWishlist: 2},
	}
	fv := feedbackFactor(Candidate{Category: store.CategorySimilarArtists}, stats)
	assert.True(t, fv.present)
	assert.InDelta(t, 7.0/6.0, fv.value, 0.001)
}

func TestNoveltyFactorHigherForUnfamiliarArtist(t *testing.T) {
	basisID := uint(1)
	affinity := Affinity{ArtistByID: map[uint]float64{1: 0.9}, NoveltyPreference: 0.5}

	familiar := noveltyFactor(Candidate{BasisArtistID: &basisID}, affinity)
	unfamiliar := noveltyFactor(Candidate{}, affinity)

	assert.Less(t, familiar.value, unfamiliar.value)
}
