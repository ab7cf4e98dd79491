package prowlarr

import (
	"testing"

	"github.com/vibarr/core/internal/integrations/catalog"
)

func TestScoreRelease_SearchRelevanceGateOrdering(t *testing.T) {
	wrongAlbum := catalog.ReleaseRecord{Title: "Loose Sampler FLAC", Seeders: 200, SizeBytes: 600 << 20}
	rightAlbum := catalog.ReleaseRecord{Title: "The Weeknd - Dawn FM 320", Seeders: 30, SizeBytes: 120 << 20}

	wrongAlbum.Score, wrongAlbum.PassesTextRelevance = ScoreRelease(wrongAlbum, "The Weeknd", "Dawn FM", "flac", 0.6)
	rightAlbum.Score, rightAlbum.PassesTextRelevance = ScoreRelease(rightAlbum, "The Weeknd", "Dawn FM", "flac", 0.6)

	releases := []catalog.ReleaseRecord{wrongAlbum, rightAlbum}
	sortReleases(releases)

	if releases[0].Title != rightAlbum.Title {
		t.Fatalf("expected relevant release to rank first despite fewer seeders, got %q first", releases[0].Title)
	}
	if !releases[0].PassesTextRelevance || releases[1].PassesTextRelevance {
		t.Fatalf("unexpected relevance flags: %+v", releases)
	}
}

func TestScoreRelease_MoreSeedersNeverDecreasesScore(t *testing.T) {
	base := catalog.ReleaseRecord{Title: "The Weeknd - Dawn FM FLAC", Seeders: 3, SizeBytes: 500 << 20}
	moreSeeders := catalog.ReleaseRecord{Title: "The Weeknd - Dawn FM FLAC", Seeders: 150, SizeBytes: 500 << 20}

	baseScore, _ := ScoreRelease(base, "The Weeknd", "Dawn FM", "flac", 0.6)
	moreScore, _ := ScoreRelease(moreSeeders, "The Weeknd", "Dawn FM", "flac", 0.6)

	if moreScore < baseScore {
		t.Fatalf("increasing seeders decreased score: %v -> %v", baseScore, moreScore)
	}
}

func TestScoreRelease_EditionSuffixDoesNotChangeRelevance(t *testing.T) {
	base := catalog.ReleaseRecord{Title: "The Weeknd - Dawn FM FLAC"}
	deluxe := catalog.ReleaseRecord{Title: "The Weeknd - Dawn FM (Deluxe Edition) FLAC"}

	_, basePasses := ScoreRelease(base, "The Weeknd", "Dawn FM", "flac", 0.6)
	_, deluxePasses := ScoreRelease(deluxe, "The Weeknd", "Dawn FM", "flac", 0.6)

	if basePasses != deluxePasses {
		t.Fatalf("edition suffix changed passes_text_relevance: base=%v deluxe=%v", basePasses, deluxePasses)
	}
}
