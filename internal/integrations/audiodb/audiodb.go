// Package audiodb implements TheAudioDB catalog client (spec §4.C). It
// always uses the free tier's public test key ("2"), fixed in baseURL; no
// setting changes it, so this client is always considered available and
// simply degrades to empty results on rate-limit rejection like every
// other catalog client.
package audiodb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/rpc"
)

const baseURL = "https://www.theaudiodb.com/api/v1/json/2"

type Client struct {
	rpc *rpc.Client
	log zerolog.Logger
}

func New(log zerolog.Logger) *Client {
	return &Client{
		rpc: rpc.NewClient("audiodb", 2.0, 10*time.Second),
		log: log.With().Str("integration", "audiodb").Logger(),
	}
}

func (c *Client) IsAvailable(ctx context.Context) bool { return true }

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, baseURL+path, nil)
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

type adbArtist struct {
	ID            string `json:"idArtist"`
	Name          string `json:"strArtist"`
	Genre         string `json:"strGenre"`
	ImageThumb    string `json:"strArtistThumb"`
	FormedYear    string `json:"intFormedYear"`
}

func (c *Client) SearchArtists(ctx context.Context, query string, limit int) []catalog.ArtistResult {
	var resp struct {
		Artists []adbArtist `json:"artists"`
	}
	if err := c.get(ctx, "/search.php?s="+url.QueryEscape(query), &resp); err != nil {
		c.log.Debug().Err(err).Msg("search artists failed")
		return nil
	}
	out := make([]catalog.ArtistResult, 0, len(resp.Artists))
	for i, a := range resp.Artists {
		if limit > 0 && i >= limit {
			break
		}
		genres := []string{}
		if a.Genre != "" {
			genres = []string{a.Genre}
		}
		out = append(out, catalog.ArtistResult{ExternalID: a.ID, Name: a.Name, Genres: genres, ImageURL: a.ImageThumb})
	}
	return out
}

// SearchAlbums, SearchTracks, SimilarArtists and NewReleases: TheAudioDB's
// free tier exposes rich artist metadata but weak album/track search and
// no similarity graph, so this client is used primarily as a biography and
// genre-tag supplement rather than a primary search source.
func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) []catalog.AlbumResult { return nil }
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) []catalog.TrackResult { return nil }

func (c *Client) ArtistDetail(ctx context.Context, externalID string) (catalog.ArtistResult, bool) {
	var resp struct {
		Artists []adbArtist `json:"artists"`
	}
	if err := c.get(ctx, "/artist.php?i="+externalID, &resp); err != nil || len(resp.Artists) == 0 {
		return catalog.ArtistResult{}, false
	}
	a := resp.Artists[0]
	genres := []string{}
	if a.Genre != "" {
		genres = []string{a.Genre}
	}
	return catalog.ArtistResult{ExternalID: a.ID, Name: a.Name, Genres: genres, ImageURL: a.ImageThumb}, true
}

func (c *Client) SimilarArtists(ctx context.Context, externalID string, limit int) []catalog.SimilarArtist {
	return nil
}

func (c *Client) NewReleases(ctx context.Context, artistExternalID string, sinceDays int) []catalog.AlbumResult {
	return nil
}

var _ catalog.ArtistSearcher = (*Client)(nil)
