// Package lastfm implements the Last.fm catalog client (spec §4.C),
// rate-limited to ≤10 req/min. Last.fm's `artist.getSimilar` is the
// canonical source for the scoring model's "external similarity" factor
// (spec §4.F), so its match score is threaded straight through.
//
// SimilarArtists runs through a bounded blocking pool (design note "Async
// boundaries for blocking SDKs"). SearchArtists and ArtistDetail call the
// API through the rpc client on the caller's goroutine and do not use the
// pool.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/rpc"
)

const apiURL = "https://ws.audioscrobbler.com/2.0/"

type Client struct {
	settings *config.Store
	rpc      *rpc.Client
	pool     *rpc.BlockingPool
	log      zerolog.Logger
}

func New(settings *config.Store, log zerolog.Logger) *Client {
	return &Client{
		settings: settings,
		rpc:      rpc.NewClient("lastfm", 10.0/60.0, 10*time.Second),
		pool:     rpc.NewBlockingPool(4),
		log:      log.With().Str("integration", "lastfm").Logger(),
	}
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	_, ok := c.settings.Optional("lastfm_api_key")
	return ok
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out interface{}) error {
	key, ok := c.settings.Optional("lastfm_api_key")
	if !ok {
		return fmt.Errorf("lastfm: not configured")
	}
	params.Set("method", method)
	params.Set("api_key", key)
	params.Set("format", "json")

	req, err := http.NewRequest(http.MethodGet, apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.rpc.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) SearchArtists(ctx context.Context, query string, limit int) []catalog.ArtistResult {
	var resp struct {
		Results struct {
			ArtistMatches struct {
				Artist []struct {
					Name      string `json:"name"`
					MBID      string `json:"mbid"`
					Listeners string `json:"listeners"`
					Image     []struct {
						Text string `json:"#text"`
					} `json:"image"`
				} `json:"artist"`
			} `json:"artistmatches"`
		} `json:"results"`
	}
	params := url.Values{"artist": {query}, "limit": {fmt.Sprint(limit)}}
	if err := c.call(ctx, "artist.search", params, &resp); err != nil {
		c.log.Debug().Err(err).Msg("search artists failed")
		return nil
	}
	out := make([]catalog.ArtistResult, 0, len(resp.Results.ArtistMatches.Artist))
	for _, a := range resp.Results.ArtistMatches.Artist {
		var listeners int64
		fmt.Sscanf(a.Listeners, "%d", &listeners)
		img := ""
		if len(a.Image) > 0 {
			img = a.Image[len(a.Image)-1].Text
		}
		out = append(out, catalog.ArtistResult{ExternalID: a.MBID, Name: a.Name, Listeners: listeners, ImageURL: img})
	}
	return out
}

// SearchAlbums and SearchTracks are not meaningfully distinct from artist
// search in Last.fm's API for this integration's purposes; MusicBrainz and
// Spotify are the catalogs the pipeline relies on for album/track search.
func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) []catalog.AlbumResult { return nil }
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) []catalog.TrackResult { return nil }

func (c *Client) ArtistDetail(ctx context.Context, externalID string) (catalog.ArtistResult, bool) {
	var resp struct {
		Artist struct {
			Name  string `json:"name"`
			MBID  string `json:"mbid"`
			Stats struct {
				Listeners string `json:"listeners"`
				Playcount string `json:"playcount"`
			} `json:"stats"`
			Tags struct {
				Tag []struct {
					Name string `json:"name"`
				} `json:"tag"`
			} `json:"tags"`
		} `json:"artist"`
	}
	params := url.Values{"mbid": {externalID}}
	if err := c.call(ctx, "artist.getInfo", params, &resp); err != nil {
		return catalog.ArtistResult{}, false
	}
	if resp.Artist.Name == "" {
		return catalog.ArtistResult{}, false
	}
	var listeners, playcount int64
	fmt.Sscanf(resp.Artist.Stats.Listeners, "%d", &listeners)
	fmt.Sscanf(resp.Artist.Stats.Playcount, "%d", &playcount)
	genres := make([]string, 0, len(resp.Artist.Tags.Tag))
	for _, t := range resp.Artist.Tags.Tag {
		genres = append(genres, t.Name)
	}
	return catalog.ArtistResult{
		ExternalID: resp.Artist.MBID, Name: resp.Artist.Name, Genres: genres,
		Listeners: listeners, PlayCount: playcount,
	}, true
}

func (c *Client) SimilarArtists(ctx context.Context, externalID string, limit int) []catalog.SimilarArtist {
	result, ok := rpc.Run(ctx, c.pool, func() []catalog.SimilarArtist {
		var resp struct {
			SimilarArtists struct {
				Artist []struct {
					Name  string `json:"name"`
					MBID  string `json:"mbid"`
					Match string `json:"match"`
					Image []struct {
						Text string `json:"#text"`
					} `json:"image"`
				} `json:"artist"`
			} `json:"similarartists"`
		}
		params := url.Values{"mbid": {externalID}, "limit": {fmt.Sprint(limit)}}
		if err := c.call(ctx, "artist.getSimilar", params, &resp); err != nil {
			c.log.Debug().Err(err).Msg("similar artists failed")
			return nil
		}
		out := make([]catalog.SimilarArtist, 0, len(resp.SimilarArtists.Artist))
		for _, a := range resp.SimilarArtists.Artist {
			var match float64
			fmt.Sscanf(a.Match, "%f", &match)
			img := ""
			if len(a.Image) > 0 {
				img = a.Image[len(a.Image)-1].Text
			}
			out = append(out, catalog.SimilarArtist{
				ArtistResult: catalog.ArtistResult{ExternalID: a.MBID, Name: a.Name, ImageURL: img},
				Match:        match,
			})
		}
		return out
	})
	if !ok {
		return nil
	}
	return result
}

// NewReleases is not exposed by Last.fm in a usable form; release
// discovery is delegated to Spotify/Deezer.
func (c *Client) NewReleases(ctx context.Context, artistExternalID string, sinceDays int) []catalog.AlbumResult {
	return nil
}

var _ catalog.ArtistSearcher = (*Client)(nil)
