// Package prowlarr implements the indexer-aggregator facade (spec §4.C).
// SearchAlbum layers the shared textmatch scoring on top of a plain
// Search call, producing the {score, passes_text_relevance} fields the
// download pipeline's Search step sorts on.
package prowlarr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/rpc"
	"github.com/vibarr/core/internal/textmatch"
)

// MusicCategories are the Prowlarr/Newznab category ids for music
// releases (spec §4.C: `categories={3000,3010,3040}`).
var MusicCategories = []int{3000, 3010, 3040}

type Client struct {
	settings *config.Store
	rpc      *rpc.Client
	log      zerolog.Logger
}

func New(settings *config.Store, log zerolog.Logger) *Client {
	return &Client{
		settings: settings,
		rpc:      rpc.NewClient("prowlarr", 5.0, 30*time.Second),
		log:      log.With().Str("integration", "prowlarr").Logger(),
	}
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	_, urlOK := c.settings.Optional("prowlarr_url")
	_, keyOK := c.settings.Optional("prowlarr_api_key")
	return urlOK && keyOK
}

type prowlarrResult struct {
	GUID        string `json:"guid"`
	IndexerID   int    `json:"indexerId"`
	Indexer     string `json:"indexer"`
	Title       string `json:"title"`
	Size        int64  `json:"size"`
	Seeders     int    `json:"seeders"`
	Leechers    int    `json:"leechers"`
	Protocol    string `json:"protocol"`
	DownloadURL string `json:"downloadUrl"`
	InfoURL     string `json:"infoUrl"`
	PublishDate string `json:"publishDate"`
	Categories  []struct {
		ID int `json:"id"`
	} `json:"categories"`
}

func (c *Client) Search(ctx context.Context, query string, categories []int) []catalog.ReleaseRecord {
	base, ok := c.settings.Optional("prowlarr_url")
	if !ok {
		return nil
	}
	apiKey, ok := c.settings.Optional("prowlarr_api_key")
	if !ok {
		return nil
	}

	catStrs := make([]string, len(categories))
	for i, cat := range categories {
		catStrs[i] = strconv.Itoa(cat)
	}
	q := url.Values{
		"query":      {query},
		"categories": {strings.Join(catStrs, ",")},
		"type":       {"search"},
	}
	req, err := http.NewRequest(http.MethodGet, base+"/api/v1/search?"+q.Encode(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := c.rpc.Do(ctx, req)
	if err != nil {
		c.log.Debug().Err(err).Str("query", query).Msg("search failed")
		return nil
	}
	defer resp.Body.Close()

	var results []prowlarrResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		c.log.Debug().Err(err).Msg("decode failed")
		return nil
	}

	out := make([]catalog.ReleaseRecord, 0, len(results))
	for _, r := range results {
		cats := make([]int, 0, len(r.Categories))
		for _, cc := range r.Categories {
			cats = append(cats, cc.ID)
		}
		out = append(out, catalog.ReleaseRecord{
			GUID: r.GUID, IndexerID: r.IndexerID, IndexerName: r.Indexer, Title: r.Title,
			SizeBytes: r.Size, Seeders: r.Seeders, Leechers: r.Leechers,
			Protocol: strings.ToLower(r.Protocol), DownloadURL: r.DownloadURL,
			InfoURL: r.InfoURL, PublishDate: r.PublishDate, Categories: cats,
		})
	}
	return out
}

// SearchAlbum runs Search with the music categories and the "{artist}
// {album}" query, then scores and ranks per spec §4.E Search.
func (c *Client) SearchAlbum(ctx context.Context, artist, album, preferredFormat string) []catalog.ReleaseRecord {
	query := strings.TrimSpace(artist + " " + album)
	results := c.Search(ctx, query, MusicCategories)

	threshold := c.settings.Float("prowlarr_min_title_match_score", textmatch.RelevanceThresholdDefault)
	for i := range results {
		results[i].Score, results[i].PassesTextRelevance = ScoreRelease(results[i], artist, album, preferredFormat, threshold)
	}

	sortReleases(results)
	return results
}

// ScoreRelease implements the spec §4.E additive scoring model. It is
// exported so the pipeline package (and tests) can reconstruct scores
// from raw release records without another network round trip.
func ScoreRelease(r catalog.ReleaseRecord, artist, album, preferredFormat string, threshold float64) (score float64, passes bool) {
	cov := textmatch.Score(r.Title, artist, album, threshold)
	passes = cov.PassesTextRelevance

	titleScore := cov.ArtistCoverage*24 + cov.AlbumCoverage*26
	if titleScore > 50 {
		titleScore = 50
	}
	if cov.OverlapRatio < 0.55 {
		titleScore -= 10
	}
	if cov.ArtistCoverage < 0.45 {
		titleScore -= 8
	}
	if cov.AlbumCoverage < 0.45 {
		titleScore -= 8
	}
	if titleScore < 0 {
		titleScore = 0
	}
	score += titleScore

	detected := textmatch.QualityFromTitle(r.Title)
	score += formatScore(detected, preferredFormat)
	score += seederScore(r.Seeders)

	const fiftyMB = 50 * 1024 * 1024
	const twoGB = 2 * 1024 * 1024 * 1024
	if r.SizeBytes > fiftyMB && r.SizeBytes < twoGB {
		score += 5
	}

	return score, passes
}

func formatScore(detected, preferred string) float64 {
	if preferred == "" {
		preferred = "flac"
	}
	switch {
	case detected == preferred:
		return 30
	case strings.HasPrefix(detected, "flac") && strings.HasPrefix(preferred, "flac"):
		return 27
	case detected == "":
		return 22
	default:
		return 24
	}
}

func seederScore(seeders int) float64 {
	switch {
	case seeders > 100:
		return 15
	case seeders > 50:
		return 12
	case seeders > 20:
		return 8
	case seeders > 5:
		return 5
	case seeders > 0:
		return 3
	default:
		return 0
	}
}

// sortReleases orders by (passes_text_relevance DESC, score DESC), the
// ordering Testable Property 1 requires.
func sortReleases(releases []catalog.ReleaseRecord) {
	for i := 1; i < len(releases); i++ {
		for j := i; j > 0 && less(releases[j], releases[j-1]); j-- {
			releases[j], releases[j-1] = releases[j-1], releases[j]
		}
	}
}

func less(a, b catalog.ReleaseRecord) bool {
	if a.PassesTextRelevance != b.PassesTextRelevance {
		return a.PassesTextRelevance
	}
	return a.Score > b.Score
}

func (c *Client) Grab(ctx context.Context, guid string, indexerID int) catalog.GrabResult {
	base, ok := c.settings.Optional("prowlarr_url")
	if !ok {
		return catalog.GrabResult{}
	}
	apiKey, ok := c.settings.Optional("prowlarr_api_key")
	if !ok {
		return catalog.GrabResult{}
	}

	payload, _ := json.Marshal(map[string]interface{}{"guid": guid, "indexerId": indexerID})
	req, err := http.NewRequest(http.MethodPost, base+"/api/v1/search", strings.NewReader(string(payload)))
	if err != nil {
		return catalog.GrabResult{}
	}
	req.Header.Set("X-Api-Key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.rpc.Do(ctx, req)
	if err != nil {
		c.log.Debug().Err(err).Str("guid", guid).Msg("grab failed")
		return catalog.GrabResult{}
	}
	defer resp.Body.Close()

	var out struct {
		DownloadID string `json:"downloadClientId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return catalog.GrabResult{Success: true}
	}
	return catalog.GrabResult{Success: true, DownloadID: out.DownloadID}
}

var _ catalog.IndexerAggregator = (*Client)(nil)
