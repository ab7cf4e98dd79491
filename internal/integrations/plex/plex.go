// Package plex implements the media-server facade (spec §4.C) against the
// Plex Media Server HTTP API. Token verification is the one call the spec
// requires to distinguish "no access" from "unavailable" rather than
// collapsing both into an empty result.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/rpc"
	"github.com/vibarr/core/internal/vibarrerr"
)

type Client struct {
	settings *config.Store
	rpc      *rpc.Client
	log      zerolog.Logger
}

func New(settings *config.Store, log zerolog.Logger) *Client {
	return &Client{
		settings: settings,
		rpc:      rpc.NewClient("plex", 10.0, 15*time.Second),
		log:      log.With().Str("integration", "plex").Logger(),
	}
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	_, urlOK := c.settings.Optional("plex_url")
	_, tokenOK := c.settings.Optional("plex_token")
	return urlOK && tokenOK
}

func (c *Client) request(ctx context.Context, path string) (*http.Response, error) {
	base, ok := c.settings.Optional("plex_url")
	if !ok {
		return nil, vibarrerr.New(vibarrerr.ConfigMissing, "plex_url not configured")
	}
	token, ok := c.settings.Optional("plex_token")
	if !ok {
		return nil, vibarrerr.New(vibarrerr.ConfigMissing, "plex_token not configured")
	}
	req, err := http.NewRequest(http.MethodGet, base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Plex-Token", token)
	req.Header.Set("Accept", "application/json")
	return c.rpc.Do(ctx, req)
}

type plexMediaContainer struct {
	Metadata []plexMetadata `json:"Metadata"`
}

type plexMetadata struct {
	RatingKey      string  `json:"ratingKey"`
	ParentRatingKey string `json:"parentRatingKey"`
	GrandparentRatingKey string `json:"grandparentRatingKey"`
	Title          string  `json:"title"`
	ParentTitle    string  `json:"parentTitle"`
	GrandparentTitle string `json:"grandparentTitle"`
	Duration       int64   `json:"duration"`
	ViewOffset     int64   `json:"viewOffset"`
	ViewedAt       int64   `json:"viewedAt"`
	Genre          []struct {
		Tag string `json:"tag"`
	} `json:"Genre"`
}

func (c *Client) list(ctx context.Context, path string) []plexMetadata {
	resp, err := c.request(ctx, path)
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("request failed")
		return nil
	}
	defer resp.Body.Close()

	var out struct {
		MediaContainer plexMediaContainer `json:"MediaContainer"`
	}
	if err := jsonDecode(resp, &out); err != nil {
		c.log.Debug().Err(err).Msg("decode failed")
		return nil
	}
	return out.MediaContainer.Metadata
}

func (c *Client) Artists(ctx context.Context) []catalog.PlexArtist {
	items := c.list(ctx, "/library/sections/music/all?type=8")
	out := make([]catalog.PlexArtist, 0, len(items))
	for _, m := range items {
		genres := make([]string, 0, len(m.Genre))
		for _, g := range m.Genre {
			genres = append(genres, g.Tag)
		}
		out = append(out, catalog.PlexArtist{RatingKey: m.RatingKey, Name: m.Title, Genres: genres})
	}
	return out
}

func (c *Client) Albums(ctx context.Context) []catalog.PlexAlbum {
	items := c.list(ctx, "/library/sections/music/all?type=9")
	out := make([]catalog.PlexAlbum, 0, len(items))
	for _, m := range items {
		out = append(out, catalog.PlexAlbum{RatingKey: m.RatingKey, Title: m.Title, ArtistKey: m.ParentRatingKey, ArtistName: m.ParentTitle})
	}
	return out
}

func (c *Client) Tracks(ctx context.Context, albumKey string) []catalog.PlexTrack {
	items := c.list(ctx, "/library/metadata/"+albumKey+"/children")
	out := make([]catalog.PlexTrack, 0, len(items))
	for _, m := range items {
		out = append(out, catalog.PlexTrack{RatingKey: m.RatingKey, Title: m.Title, AlbumKey: albumKey, Duration: m.Duration})
	}
	return out
}

func (c *Client) HistorySince(ctx context.Context, sinceUnix int64) []catalog.PlexPlayEvent {
	items := c.list(ctx, fmt.Sprintf("/status/sessions/history/all?viewedAt>=%d", sinceUnix))
	out := make([]catalog.PlexPlayEvent, 0, len(items))
	for _, m := range items {
		if m.ViewedAt < sinceUnix {
			continue
		}
		out = append(out, catalog.PlexPlayEvent{
			TrackRatingKey: m.RatingKey, AlbumRatingKey: m.ParentRatingKey, ArtistRatingKey: m.GrandparentRatingKey,
			PlayedAtUnix: m.ViewedAt, DurationMS: m.ViewOffset, TrackDurationMS: m.Duration,
		})
	}
	return out
}

func (c *Client) RecentlyAdded(ctx context.Context, limit int) []catalog.PlexAlbum {
	items := c.list(ctx, fmt.Sprintf("/library/sections/music/recentlyAdded?X-Plex-Container-Size=%d", limit))
	out := make([]catalog.PlexAlbum, 0, len(items))
	for _, m := range items {
		out = append(out, catalog.PlexAlbum{RatingKey: m.RatingKey, Title: m.Title, ArtistKey: m.ParentRatingKey, ArtistName: m.ParentTitle})
	}
	return out
}

func (c *Client) RecentlyPlayed(ctx context.Context, limit int) []catalog.PlexPlayEvent {
	items := c.list(ctx, fmt.Sprintf("/status/sessions/history/all?sort=viewedAt:desc&X-Plex-Container-Size=%d", limit))
	out := make([]catalog.PlexPlayEvent, 0, len(items))
	for _, m := range items {
		out = append(out, catalog.PlexPlayEvent{
			TrackRatingKey: m.RatingKey, AlbumRatingKey: m.ParentRatingKey, ArtistRatingKey: m.GrandparentRatingKey,
			PlayedAtUnix: m.ViewedAt, TrackDurationMS: m.Duration,
		})
	}
	return out
}

// VerifyToken checks the given token grants access to a "music" library
// section on the configured server, returning a real error (rather than a
// false "no access") when the server itself cannot be reached — the one
// exception to the non-throwing integration contract (spec §4.C).
func (c *Client) VerifyToken(ctx context.Context, token string) (bool, error) {
	base, ok := c.settings.Optional("plex_url")
	if !ok {
		return false, vibarrerr.New(vibarrerr.ConfigMissing, "plex_url not configured")
	}
	req, err := http.NewRequest(http.MethodGet, base+"/library/sections", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("X-Plex-Token", token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.rpc.Do(ctx, req)
	if err != nil {
		return false, vibarrerr.Wrap(vibarrerr.ExternalUnavailable, err, "plex server unreachable")
	}
	defer resp.Body.Close()

	var out struct {
		MediaContainer struct {
			Directory []struct {
				Type string `json:"type"`
			} `json:"Directory"`
		} `json:"MediaContainer"`
	}
	if err := jsonDecode(resp, &out); err != nil {
		return false, vibarrerr.Wrap(vibarrerr.ExternalUnavailable, err, "plex response malformed")
	}
	for _, d := range out.MediaContainer.Directory {
		if d.Type == "artist" {
			return true, nil
		}
	}
	return false, nil
}

func jsonDecode(resp *http.Response, out interface{}) error {
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ catalog.MediaServer = (*Client)(nil)
