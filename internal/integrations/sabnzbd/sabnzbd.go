// Package sabnzbd implements the usenet download-client facade (spec
// §4.C) against SABnzbd's JSON API.
package sabnzbd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/rpc"
)

type Client struct {
	settings *config.Store
	rpc      *rpc.Client
	log      zerolog.Logger
}

func New(settings *config.Store, log zerolog.Logger) *Client {
	return &Client{
		settings: settings,
		rpc:      rpc.NewClient("sabnzbd", 10.0, 15*time.Second),
		log:      log.With().Str("integration", "sabnzbd").Logger(),
	}
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	if !c.settings.Bool("sabnzbd_enabled", false) {
		return false
	}
	_, urlOK := c.settings.Optional("sabnzbd_url")
	_, keyOK := c.settings.Optional("sabnzbd_api_key")
	return urlOK && keyOK
}

func (c *Client) call(ctx context.Context, params url.Values, out interface{}) bool {
	base, urlOK := c.settings.Optional("sabnzbd_url")
	apiKey, keyOK := c.settings.Optional("sabnzbd_api_key")
	if !urlOK || !keyOK {
		return false
	}
	params.Set("apikey", apiKey)
	params.Set("output", "json")

	req, err := http.NewRequest(http.MethodGet, base+"/sabnzbd/api?"+params.Encode(), nil)
	if err != nil {
		return false
	}
	resp, err := c.rpc.Do(ctx, req)
	if err != nil {
		c.log.Debug().Err(err).Msg("request failed")
		return false
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out) == nil
}

func (c *Client) AddNZBURL(ctx context.Context, nzbURL, category, name string) (string, bool) {
	if !c.IsAvailable(ctx) {
		return "", false
	}
	params := url.Values{"mode": {"addurl"}, "name": {nzbURL}}
	if category != "" {
		params.Set("cat", category)
	}
	if name != "" {
		params.Set("nzbname", name)
	}
	var resp struct {
		Status bool     `json:"status"`
		NzoIDs []string `json:"nzo_ids"`
	}
	if !c.call(ctx, params, &resp) || !resp.Status || len(resp.NzoIDs) == 0 {
		return "", false
	}
	return resp.NzoIDs[0], true
}

type sabSlot struct {
	NzoID       string `json:"nzo_id"`
	Filename    string `json:"filename"`
	Percentage  string `json:"percentage"`
	Status      string `json:"status"`
	TimeLeft    string `json:"timeleft"`
	Storage     string `json:"storage"`
}

func (c *Client) Queue(ctx context.Context) []catalog.UsenetInfo {
	var resp struct {
		Queue struct {
			Slots     []sabSlot `json:"slots"`
			KbPerSec  string    `json:"kbpersec"`
		} `json:"queue"`
	}
	if !c.call(ctx, url.Values{"mode": {"queue"}}, &resp) {
		return nil
	}
	speed, _ := strconv.ParseFloat(resp.Queue.KbPerSec, 64)
	out := make([]catalog.UsenetInfo, 0, len(resp.Queue.Slots))
	for _, s := range resp.Queue.Slots {
		pct, _ := strconv.ParseFloat(s.Percentage, 64)
		out = append(out, catalog.UsenetInfo{
			NzoID: s.NzoID, Name: s.Filename, Progress: pct, Status: s.Status,
			DownloadSpeedBps: int64(speed * 1024), StoragePath: s.Storage,
		})
	}
	return out
}

func (c *Client) History(ctx context.Context) []catalog.UsenetInfo {
	var resp struct {
		History struct {
			Slots []sabSlot `json:"slots"`
		} `json:"history"`
	}
	if !c.call(ctx, url.Values{"mode": {"history"}}, &resp) {
		return nil
	}
	out := make([]catalog.UsenetInfo, 0, len(resp.History.Slots))
	for _, s := range resp.History.Slots {
		out = append(out, catalog.UsenetInfo{NzoID: s.NzoID, Name: s.Filename, Progress: 100, Status: s.Status, StoragePath: s.Storage})
	}
	return out
}

func (c *Client) Pause(ctx context.Context, nzoID string) bool {
	var resp struct {
		Status bool `json:"status"`
	}
	return c.call(ctx, url.Values{"mode": {"queue"}, "name": {"pause"}, "value": {nzoID}}, &resp) && resp.Status
}

func (c *Client) Resume(ctx context.Context, nzoID string) bool {
	var resp struct {
		Status bool `json:"status"`
	}
	return c.call(ctx, url.Values{"mode": {"queue"}, "name": {"resume"}, "value": {nzoID}}, &resp) && resp.Status
}

func (c *Client) Delete(ctx context.Context, nzoID string, deleteFiles bool) bool {
	params := url.Values{"mode": {"queue"}, "name": {"delete"}, "value": {nzoID}}
	if deleteFiles {
		params.Set("del_files", "1")
	}
	var resp struct {
		Status bool `json:"status"`
	}
	return c.call(ctx, params, &resp) && resp.Status
}

// RemoveFromHistory deletes a completed download from SABnzbd's history,
// optionally deleting files on disk too. Used after a successful beets
// import of a SAB download (spec §4.E Import: "optionally remove from SAB
// history with del_files=True").
func (c *Client) RemoveFromHistory(ctx context.Context, nzoID string, deleteFiles bool) bool {
	params := url.Values{"mode": {"history"}, "name": {"delete"}, "value": {nzoID}}
	if deleteFiles {
		params.Set("del_files", "1")
	}
	var resp struct {
		Status bool `json:"status"`
	}
	return c.call(ctx, params, &resp) && resp.Status
}

var _ catalog.UsenetClient = (*Client)(nil)
