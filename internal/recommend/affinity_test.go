package recommend

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vibarr/core/internal/store"
)

func TestDecayWeightHalvesAtHalfLife(t *testing.T) {
	w := decayWeight(14, 14)
	assert.InDelta(t, 0.5, w, 0.001)
}

func TestDecayWeightApproachesOneForFreshPlay(t *testing.T) {
	w := decayWeight(0, 14)
	assert.InDelta(t, 1.0, w, 0.001)
}

func TestEventWeightAttenuatesSkippedPlays(t *testing.T) {
	now := time.Now()
	played := store.ListeningEvent{PlayedAt: now, CompletionPercent: 100}
	skipped := store.ListeningEvent{PlayedAt: now, CompletionPercent: 100, Skipped: true}

	full := eventWeight(played, now, halfLifeArtistDays)
	reduced := eventWeight(skipped, now, halfLifeArtistDays)

	assert.InDelta(t, full*skippedWeightMultiplier, reduced, 0.0001)
}

func TestEventWeightClampsCompletionAboveFull(t *testing.T) {
	now := time.Now()
	e := store.ListeningEvent{PlayedAt: now, CompletionPercent: 150}
	w := eventWeight(e, now, halfLifeArtistDays)
	assert.InDelta(t, 1.0, w, 0.001)
}

func TestAnalyzeAffinityNormalizesToUnitRange(t *testing.T) {
	now := time.Now()
	artistA, artistB := uint(1), uint(2)
	events := []store.ListeningEvent{
		{ArtistID: &artistA, PlayedAt: now, CompletionPercent: 100},
		{ArtistID: &artistA, PlayedAt: now, CompletionPercent: 100},
		{ArtistID: &artistB, PlayedAt: now, CompletionPercent: 100},
	}
	artistsByID := map[uint]store.Artist{
		1: {ID: 1, Genres: store.CommaList{"ambient"}},
		2: {ID: 2, Genres: store.CommaList{"rock"}},
	}

	a := analyzeAffinity(events, artistsByID, now, nil)

	assert.InDelta(t, 1.0, a.ArtistByID[1], 0.001, "most-played artist should normalize to 1.0")
	assert.Less(t, a.ArtistByID[2], a.ArtistByID[1])
	assert.Equal(t, int64(3), a.TotalPlays)
	assert.Equal(t, int64(2), a.TotalArtists)
}

func TestAnalyzeAffinityGenreOverrideWinsOverDerivedValue(t *testing.T) {
	now := time.Now()
	artistA := uint(1)
	events := []store.ListeningEvent{
		{ArtistID: &artistA, PlayedAt: now, CompletionPercent: 100},
	}
	artistsByID := map[uint]store.Artist{
		1: {ID: 1, Genres: store.CommaList{"ambient"}},
	}

	a := analyzeAffinity(events, artistsByID, now, map[string]float64{"ambient": 0.1, "jazz": 0.9})

	assert.Equal(t, 0.1, a.GenreByName["ambient"])
	assert.Equal(t, 0.9, a.GenreByName["jazz"])
}

func TestNoveltyPreferenceBoundedAtOne(t *testing.T) {
	v := noveltyPreference(1000, 1)
	assert.LessOrEqual(t, v, 1.0)
}

func TestNoveltyPreferenceLowForRepeatListening(t *testing.T) {
	v := noveltyPreference(1, 1000)
	assert.Less(t, v, 0.05)
}

func TestTopNStrKeysByWeightOrdersDescending(t *testing.T) {
	weights := map[string]float64{"a": 0.1, "b": 0.9, "c": 0.5}
	top := topNStrKeysByWeight(weights, 2)
	assert.Equal(t, []string{"b", "c"}, top)
}

func TestDecadeOfFloorsToTens(t *testing.T) {
	assert.Equal(t, 1990, decadeOf(1994))
	assert.Equal(t, 2020, decadeOf(2023))
}

func TestDecayWeightNonPositiveHalfLife(t *testing.T) {
	assert.Equal(t, 0.0, decayWeight(5, 0))
}

func TestDecayWeightIsMonotonicDecreasing(t *testing.T) {
	earlier := decayWeight(1, 14)
	later := decayWeight(30, 14)
	assert.True(t, earlier > later)
	assert.False(t, math.IsNaN(later))
}
