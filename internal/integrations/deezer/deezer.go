// Package deezer implements the Deezer catalog client (spec §4.C) and the
// genre-explore candidate producer's canonical genre→artists lookup (spec
// §4.F producer 2). Deezer's public search API requires no key, so
// IsAvailable is always true. Adapted from the teacher's
// backend/deezer.go, which already speaks Deezer's JSON shapes for
// download purposes; here the same API is used for catalog search instead
// of resolving a download URL.
package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/rpc"
)

const baseURL = "https://api.deezer.com"

type Client struct {
	rpc *rpc.Client
	log zerolog.Logger
}

func New(log zerolog.Logger) *Client {
	return &Client{
		rpc: rpc.NewClient("deezer", 5.0, 10*time.Second),
		log: log.With().Str("integration", "deezer").Logger(),
	}
}

func (c *Client) IsAvailable(ctx context.Context) bool { return true }

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	full := baseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, full, nil)
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

type dzArtist struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Picture string `json:"picture_medium"`
	NbFan   int    `json:"nb_fan"`
}

func toArtistResult(a dzArtist) catalog.ArtistResult {
	return catalog.ArtistResult{ExternalID: fmt.Sprint(a.ID), Name: a.Name, ImageURL: a.Picture, Listeners: int64(a.NbFan)}
}

func (c *Client) SearchArtists(ctx context.Context, query string, limit int) []catalog.ArtistResult {
	var resp struct {
		Data []dzArtist `json:"data"`
	}
	q := url.Values{"q": {query}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "/search/artist", q, &resp); err != nil {
		c.log.Debug().Err(err).Msg("search artists failed")
		return nil
	}
	out := make([]catalog.ArtistResult, 0, len(resp.Data))
	for _, a := range resp.Data {
		out = append(out, toArtistResult(a))
	}
	return out
}

func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) []catalog.AlbumResult {
	var resp struct {
		Data []struct {
			ID          int64  `json:"id"`
			Title       string `json:"title"`
			CoverMedium string `json:"cover_medium"`
			NbTracks    int    `json:"nb_tracks"`
			ReleaseDate string `json:"release_date"`
			Artist      dzArtist `json:"artist"`
		} `json:"data"`
	}
	q := url.Values{"q": {query}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "/search/album", q, &resp); err != nil {
		c.log.Debug().Err(err).Msg("search albums failed")
		return nil
	}
	out := make([]catalog.AlbumResult, 0, len(resp.Data))
	for _, al := range resp.Data {
		out = append(out, catalog.AlbumResult{
			ExternalID: fmt.Sprint(al.ID), Title: al.Title, ArtistName: al.Artist.Name,
			ReleaseDate: al.ReleaseDate, TotalTracks: al.NbTracks, CoverURL: al.CoverMedium,
		})
	}
	return out
}

func (c *Client) SearchTracks(ctx context.Context, query string, limit int) []catalog.TrackResult {
	var resp struct {
		Data []struct {
			ID       int64    `json:"id"`
			Title    string   `json:"title"`
			Duration int64    `json:"duration"`
			Rank     int      `json:"rank"`
			Artist   dzArtist `json:"artist"`
			Album    struct {
				Title string `json:"title"`
			} `json:"album"`
		} `json:"data"`
	}
	q := url.Values{"q": {query}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "/search/track", q, &resp); err != nil {
		c.log.Debug().Err(err).Msg("search tracks failed")
		return nil
	}
	out := make([]catalog.TrackResult, 0, len(resp.Data))
	for _, t := range resp.Data {
		out = append(out, catalog.TrackResult{
			ExternalID: fmt.Sprint(t.ID), Title: t.Title, ArtistName: t.Artist.Name,
			AlbumTitle: t.Album.Title, DurationMS: t.Duration * 1000,
		})
	}
	return out
}

func (c *Client) ArtistDetail(ctx context.Context, externalID string) (catalog.ArtistResult, bool) {
	var a dzArtist
	if err := c.get(ctx, "/artist/"+externalID, nil, &a); err != nil || a.ID == 0 {
		return catalog.ArtistResult{}, false
	}
	return toArtistResult(a), true
}

func (c *Client) SimilarArtists(ctx context.Context, externalID string, limit int) []catalog.SimilarArtist {
	var resp struct {
		Data []dzArtist `json:"data"`
	}
	if err := c.get(ctx, "/artist/"+externalID+"/related", url.Values{"limit": {fmt.Sprint(limit)}}, &resp); err != nil {
		c.log.Debug().Err(err).Msg("similar artists failed")
		return nil
	}
	out := make([]catalog.SimilarArtist, 0, len(resp.Data))
	for i, a := range resp.Data {
		// Deezer doesn't return a numeric similarity score; approximate
		// with rank-based decay so nearer entries score higher.
		match := 1.0 - float64(i)*0.08
		if match < 0.1 {
			match = 0.1
		}
		out = append(out, catalog.SimilarArtist{ArtistResult: toArtistResult(a), Match: match})
	}
	return out
}

func (c *Client) NewReleases(ctx context.Context, artistExternalID string, sinceDays int) []catalog.AlbumResult {
	var resp struct {
		Data []struct {
			ID          int64  `json:"id"`
			Title       string `json:"title"`
			CoverMedium string `json:"cover_medium"`
			NbTracks    int    `json:"nb_tracks"`
			ReleaseDate string `json:"release_date"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/artist/"+artistExternalID+"/albums", url.Values{"limit": {"25"}}, &resp); err != nil {
		c.log.Debug().Err(err).Msg("new releases failed")
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -sinceDays)
	out := make([]catalog.AlbumResult, 0)
	for _, al := range resp.Data {
		released, err := time.Parse("2006-01-02", al.ReleaseDate)
		if err != nil || released.Before(cutoff) {
			continue
		}
		out = append(out, catalog.AlbumResult{
			ExternalID: fmt.Sprint(al.ID), Title: al.Title, ReleaseDate: al.ReleaseDate,
			TotalTracks: al.NbTracks, CoverURL: al.CoverMedium,
		})
	}
	return out
}

// ArtistsByGenre implements catalog.GenreExplorer using Deezer's genre
// artists endpoint (/genre/{id}/artists) for the genre id resolved via a
// name search over Deezer's genre list.
func (c *Client) ArtistsByGenre(ctx context.Context, genre string, limit int) []catalog.ArtistResult {
	var genres struct {
		Data []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/genre", nil, &genres); err != nil {
		c.log.Debug().Err(err).Msg("genre list failed")
		return nil
	}
	var genreID int64
	for _, g := range genres.Data {
		if strings.EqualFold(g.Name, genre) {
			genreID = g.ID
			break
		}
	}
	if genreID == 0 {
		return nil
	}
	var artists struct {
		Data []dzArtist `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/genre/%d/artists", genreID), url.Values{"limit": {fmt.Sprint(limit)}}, &artists); err != nil {
		c.log.Debug().Err(err).Msg("genre artists failed")
		return nil
	}
	out := make([]catalog.ArtistResult, 0, len(artists.Data))
	for _, a := range artists.Data {
		out = append(out, toArtistResult(a))
	}
	return out
}

var deezerPlaylistRe = regexp.MustCompile(`deezer\.com/(?:[a-z]+/)?playlist/(\d+)`)

// CanResolve implements catalog.PlaylistResolver.
func (c *Client) CanResolve(playlistURL string) bool { return deezerPlaylistRe.MatchString(playlistURL) }

func (c *Client) ResolvePlaylist(ctx context.Context, playlistURL string) []catalog.TrackResult {
	m := deezerPlaylistRe.FindStringSubmatch(playlistURL)
	if m == nil {
		return nil
	}
	var resp struct {
		Tracks struct {
			Data []struct {
				ID       int64    `json:"id"`
				Title    string   `json:"title"`
				Duration int64    `json:"duration"`
				Artist   dzArtist `json:"artist"`
				Album    struct {
					Title string `json:"title"`
				} `json:"album"`
			} `json:"data"`
		} `json:"tracks"`
	}
	if err := c.get(ctx, "/playlist/"+m[1], nil, &resp); err != nil {
		c.log.Debug().Err(err).Msg("resolve playlist failed")
		return nil
	}
	out := make([]catalog.TrackResult, 0, len(resp.Tracks.Data))
	for _, t := range resp.Tracks.Data {
		out = append(out, catalog.TrackResult{
			ExternalID: fmt.Sprint(t.ID), Title: t.Title, ArtistName: t.Artist.Name,
			AlbumTitle: t.Album.Title, DurationMS: t.Duration * 1000,
		})
	}
	return out
}

var (
	_ catalog.ArtistSearcher   = (*Client)(nil)
	_ catalog.GenreExplorer    = (*Client)(nil)
	_ catalog.PlaylistResolver = (*Client)(nil)
)
