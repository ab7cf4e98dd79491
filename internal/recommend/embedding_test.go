package recommend

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibarr/core/internal/store"
)

func TestNormalizeTempoClipsToUnitRange(t *testing.T) {
	assert.Equal(t, 0.0, normalizeTempo(40))
	assert.Equal(t, 1.0, normalizeTempo(260))
	assert.InDelta(t, 0.5, normalizeTempo(130), 0.001)
}

func TestBuildEmbeddingWeightsByRecencyAndCompletion(t *testing.T) {
	now := time.Now()
	trackID := uint(1)
	tracksByID := map[uint]store.Track{
		1: {ID: 1, AudioFeatures: store.AudioFeatures{Danceability: 0.8, Energy: 0.9, Valence: 0.7, Tempo: 120}},
	}
	events := []store.ListeningEvent{
		{TrackID: &trackID, PlayedAt: now, CompletionPercent: 100},
	}

	emb := buildEmbedding(events, tracksByID, now, halfLifeEmbeddingDays)
	assert.InDelta(t, 0.8, emb[0], 0.01)
	assert.InDelta(t, 0.9, emb[1], 0.01)
	assert.InDelta(t, 0.7, emb[2], 0.01)
}

func TestBuildEmbeddingEmptyWhenNoTrackEvents(t *testing.T) {
	emb := buildEmbedding(nil, nil, time.Now(), halfLifeEmbeddingDays)
	assert.Equal(t, [embeddingDims]float64{}, emb)
}

func TestBuildEmbeddingRepelsSkippedPlays(t *testing.T) {
	now := time.Now()
	trackID := uint(1)
	tracksByID := map[uint]store.Track{
		1: {ID: 1, AudioFeatures: store.AudioFeatures{Danceability: 0.9}},
	}
	skippedOnly := []store.ListeningEvent{
		{TrackID: &trackID, PlayedAt: now, CompletionPercent: 100, Skipped: true},
	}
	emb := buildEmbedding(skippedOnly, tracksByID, now, halfLifeEmbeddingDays)
	assert.InDelta(t, 0.9, emb[0], 0.01, "single skipped event's own normalized contribution is still its raw feature value")
}

func TestClassifyClusterPicksNearestCentroid(t *testing.T) {
	name, confidence := classifyCluster(clusterCentroids[0].centroid)
	assert.Equal(t, clusterCentroids[0].name, name)
	assert.InDelta(t, 1.0, confidence, 0.001)
}

func TestClassifyClusterConfidenceNeverNegative(t *testing.T) {
	farPoint := [embeddingDims]float64{10, 10, 10, 10, 10, 10, 10, 10}
	_, confidence := classifyCluster(farPoint)
	assert.GreaterOrEqual(t, confidence, 0.0)
}

func TestEvolutionTrendStableForIdenticalSnapshots(t *testing.T) {
	history := []store.TasteEvolutionSnapshot{
		{Period: "2026-01", Embedding: [8]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}},
		{Period: "2026-02", Embedding: [8]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}},
	}
	assert.Equal(t, "stable", evolutionTrend(history))
}

func TestEvolutionTrendShiftingForLargeDrift(t *testing.T) {
	history := []store.TasteEvolutionSnapshot{
		{Period: "2026-01", Embedding: [8]float64{0, 0, 0, 0, 0, 0, 0, 0}},
		{Period: "2026-02", Embedding: [8]float64{1, 1, 1, 1, 1, 1, 1, 1}},
	}
	assert.Equal(t, "shifting", evolutionTrend(history))
}

func TestEvolutionTrendStableWithFewerThanTwoSnapshots(t *testing.T) {
	assert.Equal(t, "stable", evolutionTrend(nil))
	assert.Equal(t, "stable", evolutionTrend([]store.TasteEvolutionSnapshot{{Period: "2026-01"}}))
}

func TestAppendEvolutionSnapshotCapsAtTwelve(t *testing.T) {
	var history []store.TasteEvolutionSnapshot
	for i := 0; i < 15; i++ {
		history = appendEvolutionSnapshot(history, fmt.Sprintf("2026-%02d", i+1), [8]float64{}, 1)
	}
	assert.Len(t, history, 12)
}

func TestAppendEvolutionSnapshotOverwritesSamePeriod(t *testing.T) {
	var history []store.TasteEvolutionSnapshot
	history = appendEvolutionSnapshot(history, "2026-01", [8]float64{}, 1)
	history = appendEvolutionSnapshot(history, "2026-01", [8]float64{}, 2)
	history = appendEvolutionSnapshot(history, "2026-01", [8]float64{}, 3)

	require.Len(t, history, 1)
	assert.Equal(t, 3, history[0].SampleSize)
}
