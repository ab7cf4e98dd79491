package textmatch

import "testing"

func TestNormalizeStripsEditionWordsAndPunctuation(t *testing.T) {
	got := Normalize("The Weeknd & Friends - Dawn FM (Deluxe Edition)")
	if want := "the weeknd and friends dawn fm"; got != want {
		t.Fatalf("Normalize() = %q, want %q", got, want)
	}
}

func TestScoreEditionSuffixDoesNotChangeRelevance(t *testing.T) {
	base := Score("The Weeknd - Dawn FM 320", "The Weeknd", "Dawn FM", 0.6)
	withEdition := Score("The Weeknd - Dawn FM (Deluxe Edition) 320", "The Weeknd", "Dawn FM", 0.6)

	if base.PassesTextRelevance != withEdition.PassesTextRelevance {
		t.Fatalf("edition suffix changed passes_text_relevance: base=%v withEdition=%v", base.PassesTextRelevance, withEdition.PassesTextRelevance)
	}
}

func TestScoreRejectsWrongAlbumDespiteHighSeedTitle(t *testing.T) {
	wrongAlbum := Score("Loose Sampler FLAC", "The Weeknd", "Dawn FM", 0.6)
	rightAlbum := Score("The Weeknd - Dawn FM 320", "The Weeknd", "Dawn FM", 0.6)

	if wrongAlbum.PassesTextRelevance {
		t.Fatalf("expected wrong-album title to fail relevance gate, coverage=%+v", wrongAlbum)
	}
	if !rightAlbum.PassesTextRelevance {
		t.Fatalf("expected matching title to pass relevance gate, coverage=%+v", rightAlbum)
	}
}

func TestQualityFromTitleRecognizesClosedVocabulary(t *testing.T) {
	cases := map[string]string{
		"Artist - Album [FLAC-24]": "flac-24",
		"Artist - Album [FLAC]":    "flac",
		"Artist - Album 320":       "320",
		"Artist - Album V0":        "v0",
		"Artist - Album [MP3]":     "mp3",
		"Artist - Album":           "",
	}
	for title, want := range cases {
		if got := QualityFromTitle(title); got != want {
			t.Errorf("QualityFromTitle(%q) = %q, want %q", title, got, want)
		}
	}
}

func TestMatchesReleaseTitleToleratesMinorDrift(t *testing.T) {
	if !MatchesReleaseTitle("The.Weeknd.Dawn.FM.FLAC", "The Weeknd - Dawn FM FLAC") {
		t.Fatal("expected punctuation drift to still match")
	}
	if MatchesReleaseTitle("Taylor Swift - 1989", "The Weeknd - Dawn FM") {
		t.Fatal("expected unrelated titles not to match")
	}
}
