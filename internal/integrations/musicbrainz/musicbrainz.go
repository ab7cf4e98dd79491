// Package musicbrainz implements the MusicBrainz catalog client (spec
// §4.C), rate-limited to the service's documented ≤1 req/s ceiling. No
// API key is required, so IsAvailable is always true — MusicBrainz is the
// catalog of last resort when Spotify/Last.fm credentials are absent.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/rpc"
)

const baseURL = "https://musicbrainz.org/ws/2"

type Client struct {
	rpc *rpc.Client
	log zerolog.Logger
}

func New(log zerolog.Logger) *Client {
	return &Client{
		rpc: rpc.NewClient("musicbrainz", 1.0, 10*time.Second),
		log: log.With().Str("integration", "musicbrainz").Logger(),
	}
}

func (c *Client) IsAvailable(ctx context.Context) bool { return true }

type mbArtistSearchResponse struct {
	Artists []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Tags     []struct {
			Name string `json:"name"`
		} `json:"tags"`
	} `json:"artists"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	query.Set("fmt", "json")
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/%s?%s", baseURL, path, query.Encode()), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "vibarr/1.0 (+https://github.com/vibarr/core)")

	resp, err := c.rpc.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) SearchArtists(ctx context.Context, query string, limit int) []catalog.ArtistResult {
	var resp mbArtistSearchResponse
	q := url.Values{"query": {query}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "artist", q, &resp); err != nil {
		c.log.Debug().Err(err).Str("query", query).Msg("search artists failed")
		return nil
	}
	out := make([]catalog.ArtistResult, 0, len(resp.Artists))
	for _, a := range resp.Artists {
		genres := make([]string, 0, len(a.Tags))
		for _, t := range a.Tags {
			genres = append(genres, t.Name)
		}
		out = append(out, catalog.ArtistResult{ExternalID: a.ID, Name: a.Name, Genres: genres})
	}
	return out
}

func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) []catalog.AlbumResult {
	type releaseGroupSearch struct {
		ReleaseGroups []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
			ArtistCredit []struct {
				Name string `json:"name"`
			} `json:"artist-credit"`
			FirstReleaseDate string `json:"first-release-date"`
		} `json:"release-groups"`
	}
	var resp releaseGroupSearch
	q := url.Values{"query": {query}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "release-group", q, &resp); err != nil {
		c.log.Debug().Err(err).Str("query", query).Msg("search albums failed")
		return nil
	}
	out := make([]catalog.AlbumResult, 0, len(resp.ReleaseGroups))
	for _, rg := range resp.ReleaseGroups {
		artist := ""
		if len(rg.ArtistCredit) > 0 {
			artist = rg.ArtistCredit[0].Name
		}
		out = append(out, catalog.AlbumResult{
			ExternalID: rg.ID, Title: rg.Title, ArtistName: artist, ReleaseDate: rg.FirstReleaseDate,
		})
	}
	return out
}

func (c *Client) SearchTracks(ctx context.Context, query string, limit int) []catalog.TrackResult {
	type recordingSearch struct {
		Recordings []struct {
			ID           string `json:"id"`
			Title        string `json:"title"`
			Length       int64  `json:"length"`
			ArtistCredit []struct {
				Name string `json:"name"`
			} `json:"artist-credit"`
		} `json:"recordings"`
	}
	var resp recordingSearch
	q := url.Values{"query": {query}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "recording", q, &resp); err != nil {
		c.log.Debug().Err(err).Str("query", query).Msg("search tracks failed")
		return nil
	}
	out := make([]catalog.TrackResult, 0, len(resp.Recordings))
	for _, r := range resp.Recordings {
		artist := ""
		if len(r.ArtistCredit) > 0 {
			artist = r.ArtistCredit[0].Name
		}
		out = append(out, catalog.TrackResult{ExternalID: r.ID, Title: r.Title, ArtistName: artist, DurationMS: r.Length})
	}
	return out
}

func (c *Client) ArtistDetail(ctx context.Context, externalID string) (catalog.ArtistResult, bool) {
	var a struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Tags []struct {
			Name string `json:"name"`
		} `json:"tags"`
		Area struct {
			Name string `json:"name"`
		} `json:"area"`
	}
	if err := c.get(ctx, "artist/"+externalID, url.Values{"inc": {"tags"}}, &a); err != nil {
		return catalog.ArtistResult{}, false
	}
	genres := make([]string, 0, len(a.Tags))
	for _, t := range a.Tags {
		genres = append(genres, t.Name)
	}
	return catalog.ArtistResult{ExternalID: a.ID, Name: a.Name, Genres: genres}, true
}

// SimilarArtists and NewReleases are not part of MusicBrainz's open API in
// any directly queryable form; MusicBrainz participates in search and
// detail lookups only, falling through to Spotify/Last.fm/Deezer for
// similarity and to Spotify/Deezer for release discovery.
func (c *Client) SimilarArtists(ctx context.Context, externalID string, limit int) []catalog.SimilarArtist {
	return nil
}

func (c *Client) NewReleases(ctx context.Context, artistExternalID string, sinceDays int) []catalog.AlbumResult {
	return nil
}

var _ catalog.ArtistSearcher = (*Client)(nil)
