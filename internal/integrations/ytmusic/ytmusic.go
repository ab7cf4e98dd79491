// Package ytmusic implements a YouTube Music catalog client (spec §4.C)
// against YouTube's public Data API search endpoint (music category),
// plus mood-keyword search (spec §4.F candidate producer 4) and playlist
// URL resolution for the rules engine's import_playlist_url action.
// Requires a Data API key configured the same way as any other
// integration; unlike the other catalog clients no settings key is
// reserved for it in spec §6, so it is treated as permanently available
// and simply returns empty results without a key configured, consistent
// with §4.C's "errors become empty/absent" contract.
package ytmusic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/rpc"
)

const searchURL = "https://www.googleapis.com/youtube/v3/search"

var moodQueries = map[string]string{
	"energetic": "energetic workout mix",
	"chill":     "chill lofi mix",
	"focus":     "deep focus instrumental mix",
}

type Client struct {
	apiKey string
	rpc    *rpc.Client
	log    zerolog.Logger
}

func New(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		rpc:    rpc.NewClient("ytmusic", 5.0, 10*time.Second),
		log:    log.With().Str("integration", "ytmusic").Logger(),
	}
}

func (c *Client) IsAvailable(ctx context.Context) bool { return true }

type ytSearchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"snippet"`
}

func (c *Client) search(ctx context.Context, q url.Values) []ytSearchItem {
	if c.apiKey == "" {
		return nil
	}
	q.Set("key", c.apiKey)
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("videoCategoryId", "10") // Music

	req, err := http.NewRequest(http.MethodGet, searchURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil
	}
	resp, err := c.rpc.Do(ctx, req)
	if err != nil {
		c.log.Debug().Err(err).Msg("search failed")
		return nil
	}
	defer resp.Body.Close()

	var out struct {
		Items []ytSearchItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil
	}
	return out.Items
}

func (c *Client) SearchTracks(ctx context.Context, query string, limit int) []catalog.TrackResult {
	items := c.search(ctx, url.Values{"q": {query}, "maxResults": {clamp(limit)}})
	out := make([]catalog.TrackResult, 0, len(items))
	for _, it := range items {
		out = append(out, catalog.TrackResult{ExternalID: it.ID.VideoID, Title: it.Snippet.Title, ArtistName: it.Snippet.ChannelTitle})
	}
	return out
}

func (c *Client) SearchArtists(ctx context.Context, query string, limit int) []catalog.ArtistResult {
	items := c.search(ctx, url.Values{"q": {query}, "maxResults": {clamp(limit)}})
	seen := map[string]bool{}
	out := make([]catalog.ArtistResult, 0, len(items))
	for _, it := range items {
		name := it.Snippet.ChannelTitle
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, catalog.ArtistResult{Name: name})
	}
	return out
}

func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) []catalog.AlbumResult { return nil }

func (c *Client) ArtistDetail(ctx context.Context, externalID string) (catalog.ArtistResult, bool) {
	return catalog.ArtistResult{}, false
}

func (c *Client) SimilarArtists(ctx context.Context, externalID string, limit int) []catalog.SimilarArtist {
	return nil
}

func (c *Client) NewReleases(ctx context.Context, artistExternalID string, sinceDays int) []catalog.AlbumResult {
	return nil
}

// TracksByMood implements catalog.MoodExplorer.
func (c *Client) TracksByMood(ctx context.Context, mood string, limit int) []catalog.TrackResult {
	q, ok := moodQueries[mood]
	if !ok {
		q = mood
	}
	return c.SearchTracks(ctx, q, limit)
}

var ytPlaylistRe = regexp.MustCompile(`[?&]list=([A-Za-z0-9_-]+)`)

// CanResolve implements catalog.PlaylistResolver.
func (c *Client) CanResolve(playlistURL string) bool { return ytPlaylistRe.MatchString(playlistURL) }

func (c *Client) ResolvePlaylist(ctx context.Context, playlistURL string) []catalog.TrackResult {
	m := ytPlaylistRe.FindStringSubmatch(playlistURL)
	if m == nil || c.apiKey == "" {
		return nil
	}
	req, err := http.NewRequest(http.MethodGet,
		"https://www.googleapis.com/youtube/v3/playlistItems?part=snippet&maxResults=50&playlistId="+m[1]+"&key="+c.apiKey, nil)
	if err != nil {
		return nil
	}
	resp, err := c.rpc.Do(ctx, req)
	if err != nil {
		c.log.Debug().Err(err).Msg("resolve playlist failed")
		return nil
	}
	defer resp.Body.Close()

	var out struct {
		Items []struct {
			Snippet struct {
				Title   string `json:"title"`
				VideoOwnerChannelTitle string `json:"videoOwnerChannelTitle"`
				ResourceID struct {
					VideoID string `json:"videoId"`
				} `json:"resourceId"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil
	}
	tracks := make([]catalog.TrackResult, 0, len(out.Items))
	for _, it := range out.Items {
		tracks = append(tracks, catalog.TrackResult{
			ExternalID: it.Snippet.ResourceID.VideoID,
			Title:      it.Snippet.Title,
			ArtistName: it.Snippet.VideoOwnerChannelTitle,
		})
	}
	return tracks
}

func clamp(n int) string {
	if n <= 0 || n > 50 {
		n = 25
	}
	return strconv.Itoa(n)
}

var (
	_ catalog.ArtistSearcher   = (*Client)(nil)
	_ catalog.MoodExplorer     = (*Client)(nil)
	_ catalog.PlaylistResolver = (*Client)(nil)
)
