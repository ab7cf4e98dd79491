// Package spotify implements the Spotify catalog client (spec §4.C),
// rate-limited to ≤10 req/min. Availability is derived purely from
// configuration presence (client id/secret); the client-credentials token
// is fetched lazily and cached until it expires.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/rpc"
)

const (
	accountsURL = "https://accounts.spotify.com/api/token"
	apiURL      = "https://api.spotify.com/v1"
)

type Client struct {
	settings *config.Store
	rpc      *rpc.Client
	log      zerolog.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func New(settings *config.Store, log zerolog.Logger) *Client {
	return &Client{
		settings: settings,
		rpc:      rpc.NewClient("spotify", 10.0/60.0, 10*time.Second),
		log:      log.With().Str("integration", "spotify").Logger(),
	}
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	_, idOK := c.settings.Optional("spotify_client_id")
	_, secretOK := c.settings.Optional("spotify_client_secret")
	return idOK && secretOK
}

func (c *Client) token(ctx context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, true
	}

	id, idOK := c.settings.Optional("spotify_client_id")
	secret, secretOK := c.settings.Optional("spotify_client_secret")
	if !idOK || !secretOK {
		return "", false
	}

	body := strings.NewReader(url.Values{"grant_type": {"client_credentials"}}.Encode())
	req, err := http.NewRequest(http.MethodPost, accountsURL, body)
	if err != nil {
		return "", false
	}
	req.SetBasicAuth(id, secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.rpc.Do(ctx, req)
	if err != nil {
		c.log.Debug().Err(err).Msg("token request failed")
		return "", false
	}
	defer resp.Body.Close()

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", false
	}
	c.accessToken = tok.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn-30) * time.Second)
	return c.accessToken, true
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	tok, ok := c.token(ctx)
	if !ok {
		return fmt.Errorf("spotify: no token available")
	}
	full := apiURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, full, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.rpc.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

type spotifyArtist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Images     []struct {
		URL string `json:"url"`
	} `json:"images"`
}

func toArtistResult(a spotifyArtist) catalog.ArtistResult {
	img := ""
	if len(a.Images) > 0 {
		img = a.Images[0].URL
	}
	return catalog.ArtistResult{ExternalID: a.ID, Name: a.Name, Genres: a.Genres, Popularity: a.Popularity, ImageURL: img}
}

func (c *Client) SearchArtists(ctx context.Context, query string, limit int) []catalog.ArtistResult {
	var resp struct {
		Artists struct {
			Items []spotifyArtist `json:"items"`
		} `json:"artists"`
	}
	q := url.Values{"q": {query}, "type": {"artist"}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "/search", q, &resp); err != nil {
		c.log.Debug().Err(err).Msg("search artists failed")
		return nil
	}
	out := make([]catalog.ArtistResult, 0, len(resp.Artists.Items))
	for _, a := range resp.Artists.Items {
		out = append(out, toArtistResult(a))
	}
	return out
}

func (c *Client) SearchAlbums(ctx context.Context, query string, limit int) []catalog.AlbumResult {
	var resp struct {
		Albums struct {
			Items []struct {
				ID          string `json:"id"`
				Name        string `json:"name"`
				ReleaseDate string `json:"release_date"`
				TotalTracks int    `json:"total_tracks"`
				Artists     []struct {
					Name string `json:"name"`
				} `json:"artists"`
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"items"`
		} `json:"albums"`
	}
	q := url.Values{"q": {query}, "type": {"album"}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "/search", q, &resp); err != nil {
		c.log.Debug().Err(err).Msg("search albums failed")
		return nil
	}
	out := make([]catalog.AlbumResult, 0, len(resp.Albums.Items))
	for _, al := range resp.Albums.Items {
		artist := ""
		if len(al.Artists) > 0 {
			artist = al.Artists[0].Name
		}
		cover := ""
		if len(al.Images) > 0 {
			cover = al.Images[0].URL
		}
		out = append(out, catalog.AlbumResult{
			ExternalID: al.ID, Title: al.Name, ArtistName: artist,
			ReleaseDate: al.ReleaseDate, TotalTracks: al.TotalTracks, CoverURL: cover,
		})
	}
	return out
}

func (c *Client) SearchTracks(ctx context.Context, query string, limit int) []catalog.TrackResult {
	var resp struct {
		Tracks struct {
			Items []struct {
				ID         string `json:"id"`
				Name       string `json:"name"`
				DurationMS int64  `json:"duration_ms"`
				Popularity int    `json:"popularity"`
				Artists    []struct {
					Name string `json:"name"`
				} `json:"artists"`
				Album struct {
					Name string `json:"name"`
				} `json:"album"`
			} `json:"items"`
		} `json:"tracks"`
	}
	q := url.Values{"q": {query}, "type": {"track"}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "/search", q, &resp); err != nil {
		c.log.Debug().Err(err).Msg("search tracks failed")
		return nil
	}
	out := make([]catalog.TrackResult, 0, len(resp.Tracks.Items))
	for _, t := range resp.Tracks.Items {
		artist := ""
		if len(t.Artists) > 0 {
			artist = t.Artists[0].Name
		}
		out = append(out, catalog.TrackResult{
			ExternalID: t.ID, Title: t.Name, ArtistName: artist, AlbumTitle: t.Album.Name,
			DurationMS: t.DurationMS, Popularity: t.Popularity,
		})
	}
	return out
}

func (c *Client) ArtistDetail(ctx context.Context, externalID string) (catalog.ArtistResult, bool) {
	var a spotifyArtist
	if err := c.get(ctx, "/artists/"+externalID, nil, &a); err != nil {
		return catalog.ArtistResult{}, false
	}
	return toArtistResult(a), true
}

// SimilarArtists uses Spotify's recommendation seeds as a similarity
// proxy: the Related Artists endpoint this used to call has been retired
// for most integrations, so recommendations seeded on the artist are used
// instead, treating the returned artists' relative popularity rank as the
// match signal.
func (c *Client) SimilarArtists(ctx context.Context, externalID string, limit int) []catalog.SimilarArtist {
	var resp struct {
		Tracks []struct {
			Artists []spotifyArtist `json:"artists"`
		} `json:"tracks"`
	}
	q := url.Values{"seed_artists": {externalID}, "limit": {fmt.Sprint(limit)}}
	if err := c.get(ctx, "/recommendations", q, &resp); err != nil {
		c.log.Debug().Err(err).Msg("similar artists failed")
		return nil
	}
	seen := map[string]bool{externalID: true}
	out := make([]catalog.SimilarArtist, 0, limit)
	for _, tr := range resp.Tracks {
		for _, a := range tr.Artists {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			out = append(out, catalog.SimilarArtist{ArtistResult: toArtistResult(a), Match: float64(a.Popularity) / 100})
		}
	}
	return out
}

func (c *Client) NewReleases(ctx context.Context, artistExternalID string, sinceDays int) []catalog.AlbumResult {
	var resp struct {
		Items []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			ReleaseDate string `json:"release_date"`
			TotalTracks int    `json:"total_tracks"`
			Images      []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"items"`
	}
	q := url.Values{"include_groups": {"album,single"}, "limit": {"20"}}
	if err := c.get(ctx, "/artists/"+artistExternalID+"/albums", q, &resp); err != nil {
		c.log.Debug().Err(err).Msg("new releases failed")
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -sinceDays)
	out := make([]catalog.AlbumResult, 0)
	for _, al := range resp.Items {
		released, err := time.Parse("2006-01-02", al.ReleaseDate)
		if err != nil || released.Before(cutoff) {
			continue
		}
		cover := ""
		if len(al.Images) > 0 {
			cover = al.Images[0].URL
		}
		out = append(out, catalog.AlbumResult{ExternalID: al.ID, Title: al.Name, ReleaseDate: al.ReleaseDate, TotalTracks: al.TotalTracks, CoverURL: cover})
	}
	return out
}

var _ catalog.ArtistSearcher = (*Client)(nil)
