// Package textmatch implements the release-title normalization and
// relevance scoring shared by the Prowlarr search path and the
// qBittorrent hash-identity bridge (spec §4.E Search, design note
// "Hash-vs-title coupling"). Keeping this in one place is the whole point:
// if Prowlarr and qBittorrent normalize titles differently, the identity
// bridge between a guid and a torrent hash silently breaks.
package textmatch

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	connectorRe = regexp.MustCompile(`\s*(&|\+)\s*|\s+and\s+`)
	punctRe     = regexp.MustCompile(`[^\w\s]`)
	spaceRe     = regexp.MustCompile(`\s+`)

	editionWords = []string{
		"deluxe", "expanded", "anniversary", "collector's", "collectors",
		"special", "super-deluxe", "super deluxe", "remaster", "remastered",
		"reissue", "bonus track", "bonus tracks", "edition",
	}
)

// Normalize applies the spec §4.E normalization: lowercase, connector
// folding, edition-word stripping, punctuation removal, whitespace
// collapse.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = connectorRe.ReplaceAllString(s, " and ")
	for _, w := range editionWords {
		s = strings.ReplaceAll(s, w, " ")
	}
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func tokenize(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Coverage is the token-overlap breakdown between a candidate release
// title and a search target (artist/album string).
type Coverage struct {
	ArtistCoverage      float64
	AlbumCoverage       float64
	OverlapRatio        float64
	PassesTextRelevance bool
}

// RelevanceThresholdDefault is the spec §4.E default for
// passes_text_relevance, overridable via prowlarr_min_title_match_score.
const RelevanceThresholdDefault = 0.6

// Score computes token coverage of candidateTitle against the artist and
// album target strings and derives passes_text_relevance at threshold.
func Score(candidateTitle, artist, album string, threshold float64) Coverage {
	candidateTokens := tokenSet(tokenize(candidateTitle))
	artistTokens := tokenize(artist)
	albumTokens := tokenize(album)
	targetTokens := append(append([]string{}, artistTokens...), albumTokens...)

	if len(targetTokens) == 0 {
		return Coverage{}
	}

	overlap := 0
	targetSet := tokenSet(targetTokens)
	for t := range targetSet {
		if _, ok := candidateTokens[t]; ok {
			overlap++
		}
	}

	var artistCoverage float64
	if len(artistTokens) > 0 {
		artistHit := 0
		for _, t := range artistTokens {
			if _, ok := candidateTokens[t]; ok {
				artistHit++
			}
		}
		artistCoverage = float64(artistHit) / float64(len(artistTokens))
	}

	var albumCoverage float64
	if len(albumTokens) > 0 {
		albumHit := 0
		for _, t := range albumTokens {
			if _, ok := candidateTokens[t]; ok {
				albumHit++
			}
		}
		albumCoverage = float64(albumHit) / float64(len(albumTokens))
	}

	overlapRatio := float64(overlap) / float64(len(targetSet))
	if threshold <= 0 {
		threshold = RelevanceThresholdDefault
	}

	return Coverage{
		ArtistCoverage:      artistCoverage,
		AlbumCoverage:       albumCoverage,
		OverlapRatio:        overlapRatio,
		PassesTextRelevance: overlapRatio >= threshold,
	}
}

// MatchesReleaseTitle reports whether candidateName identifies the same
// release as expectedTitle, used by qBittorrent's find_torrent_hash to
// bridge a Prowlarr guid to an actual torrent hash. Exact normalized
// equality is tried first; a Levenshtein ratio guards against the minor
// punctuation/whitespace drift some torrent clients introduce when they
// sanitize a name for the filesystem.
func MatchesReleaseTitle(candidateName, expectedTitle string) bool {
	a, b := Normalize(candidateName), Normalize(expectedTitle)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	dist := levenshtein.ComputeDistance(a, b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return false
	}
	similarity := 1 - float64(dist)/float64(longest)
	return similarity >= 0.85
}

// QualityFromTitle extracts a coarse detected format/quality token from a
// release title, recognizing the spec's closed vocabulary. Returns "" if
// none is recognized.
func QualityFromTitle(title string) string {
	lower := strings.ToLower(title)
	ordered := []string{"flac-24", "flac", "320", "v0", "256", "192", "mp3", "aac", "ogg", "opus"}
	for _, q := range ordered {
		if strings.Contains(lower, q) {
			return q
		}
	}
	return ""
}
