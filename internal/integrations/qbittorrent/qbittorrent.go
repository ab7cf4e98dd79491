// Package qbittorrent implements the torrent-client facade (spec §4.C)
// against qBittorrent's Web API: cookie-session login, category
// management, torrent add/query/pause/resume/delete, and the
// title-to-hash identity bridge used after a Prowlarr grab returns no
// download-client id.
package qbittorrent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/integrations/rpc"
	"github.com/vibarr/core/internal/textmatch"
)

type Client struct {
	settings *config.Store
	rpc      *rpc.Client
	httpc    *http.Client
	log      zerolog.Logger

	mu         sync.Mutex
	loggedIn   bool
	loggedHost string
}

func New(settings *config.Store, log zerolog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		settings: settings,
		rpc:      rpc.NewClient("qbittorrent", 10.0, 15*time.Second),
		httpc:    &http.Client{Jar: jar, Timeout: 15 * time.Second},
		log:      log.With().Str("integration", "qbittorrent").Logger(),
	}
}

func (c *Client) IsAvailable(ctx context.Context) bool {
	_, urlOK := c.settings.Optional("qbittorrent_url")
	return urlOK
}

// login performs a cookie-session authentication if not already done for
// the currently configured host. qBittorrent's login endpoint returns
// "Ok." (exactly) in the body on success.
func (c *Client) login(ctx context.Context) (string, bool) {
	base, ok := c.settings.Optional("qbittorrent_url")
	if !ok {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn && c.loggedHost == base {
		return base, true
	}

	username := c.settings.String("qbittorrent_username", "")
	password := c.settings.String("qbittorrent_password", "")

	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequest(http.MethodPost, base+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", base)

	resp, err := c.httpc.Do(req.WithContext(ctx))
	if err != nil {
		c.log.Debug().Err(err).Msg("login request failed")
		return "", false
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if strings.TrimSpace(strings.ToLower(string(body))) != "ok." {
		c.log.Debug().Msg("login rejected")
		return "", false
	}
	c.loggedIn = true
	c.loggedHost = base
	return base, true
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) (*http.Response, bool) {
	base, ok := c.login(ctx)
	if !ok {
		return nil, false
	}
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, base+path, body)
	if err != nil {
		return nil, false
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Referer", base)

	if err := c.rpc.Wait(ctx); err != nil {
		return nil, false
	}
	resp, err := c.httpc.Do(req.WithContext(ctx))
	if err != nil {
		c.log.Debug().Err(err).Str("path", path).Msg("request failed")
		c.mu.Lock()
		c.loggedIn = false
		c.mu.Unlock()
		return nil, false
	}
	if resp.StatusCode == http.StatusForbidden {
		c.mu.Lock()
		c.loggedIn = false
		c.mu.Unlock()
		resp.Body.Close()
		return nil, false
	}
	return resp, true
}

// EnsureCategory creates category if missing. qBittorrent returns 409 when
// the category already exists; the spec treats both 200 and 409 as
// success.
func (c *Client) EnsureCategory(ctx context.Context, category string) bool {
	resp, ok := c.do(ctx, http.MethodPost, "/api/v2/torrents/createCategory",
		url.Values{"category": {category}, "savePath": {""}})
	if !ok {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusConflict
}

func (c *Client) AddTorrentURL(ctx context.Context, torrentURL, category, savePath string, tags []string) bool {
	form := url.Values{"urls": {torrentURL}}
	if category != "" {
		form.Set("category", category)
	}
	if savePath != "" {
		form.Set("savepath", savePath)
	}
	if len(tags) > 0 {
		form.Set("tags", strings.Join(tags, ","))
	}
	resp, ok := c.do(ctx, http.MethodPost, "/api/v2/torrents/add", form)
	if !ok {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type qbTorrent struct {
	Hash        string  `json:"hash"`
	Name        string  `json:"name"`
	Progress    float64 `json:"progress"`
	DlSpeed     int64   `json:"dlspeed"`
	ETA         int64   `json:"eta"`
	ContentPath string  `json:"content_path"`
	SavePath    string  `json:"save_path"`
	State       string  `json:"state"`
}

func toTorrentInfo(t qbTorrent) catalog.TorrentInfo {
	return catalog.TorrentInfo{
		Hash: t.Hash, Name: t.Name, Progress: t.Progress * 100,
		DownloadSpeedBps: t.DlSpeed, ETASeconds: t.ETA,
		ContentPath: t.ContentPath, SavePath: t.SavePath, State: t.State,
	}
}

func (c *Client) GetTorrents(ctx context.Context, category, filter string) []catalog.TorrentInfo {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	if filter != "" {
		q.Set("filter", filter)
	}
	resp, ok := c.do(ctx, http.MethodGet, "/api/v2/torrents/info?"+q.Encode(), nil)
	if !ok {
		return nil
	}
	defer resp.Body.Close()

	var torrents []qbTorrent
	if err := json.NewDecoder(resp.Body).Decode(&torrents); err != nil {
		return nil
	}
	out := make([]catalog.TorrentInfo, 0, len(torrents))
	for _, t := range torrents {
		out = append(out, toTorrentInfo(t))
	}
	return out
}

func (c *Client) GetTorrent(ctx context.Context, hash string) (catalog.TorrentInfo, bool) {
	torrents := c.GetTorrents(ctx, "", "")
	for _, t := range torrents {
		if strings.EqualFold(t.Hash, hash) {
			return t, true
		}
	}
	return catalog.TorrentInfo{}, false
}

func (c *Client) Pause(ctx context.Context, hash string) bool {
	resp, ok := c.do(ctx, http.MethodPost, "/api/v2/torrents/pause", url.Values{"hashes": {hash}})
	if !ok {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) Resume(ctx context.Context, hash string) bool {
	resp, ok := c.do(ctx, http.MethodPost, "/api/v2/torrents/resume", url.Values{"hashes": {hash}})
	if !ok {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) Delete(ctx context.Context, hash string, deleteFiles bool) bool {
	resp, ok := c.do(ctx, http.MethodPost, "/api/v2/torrents/delete",
		url.Values{"hashes": {hash}, "deleteFiles": {strconv.FormatBool(deleteFiles)}})
	if !ok {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// FindTorrentHash polls qBittorrent's torrent list until one whose
// normalized name matches expectedTitle appears (the Prowlarr guid → hash
// identity bridge, spec §4.E Grab / design note "Hash-vs-title coupling").
func (c *Client) FindTorrentHash(ctx context.Context, expectedTitle string, timeoutSeconds int) (string, bool) {
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	const interval = 500 * time.Millisecond

	for {
		for _, t := range c.GetTorrents(ctx, "", "") {
			if textmatch.MatchesReleaseTitle(t.Name, expectedTitle) {
				return t.Hash, true
			}
		}
		if time.Now().After(deadline) {
			return "", false
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(interval):
		}
	}
}

var _ catalog.TorrentClient = (*Client)(nil)
