// Package pipeline implements the wishlist→search→grab→download→import
// state machine (spec §4.E). It is driven by three callers: the
// process-wishlist job (Search, then the auto-grab gate), user-initiated
// single-item search (Search with the gate bypassed), and the
// check-download-status job (Poll, then Import).
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vibarr/core/internal/config"
	"github.com/vibarr/core/internal/integrations/catalog"
	"github.com/vibarr/core/internal/store"
)

// EventPublisher is the fan-out boundary: every pipeline state transition
// publishes a JSON event here (spec §4.E Observability), and
// internal/fanout subscribes to forward it to connected clients. Defined
// here rather than imported from internal/fanout to avoid a dependency
// cycle (fanout's Redis subscriber also needs to know nothing about the
// pipeline).
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

const updatesChannel = "download_updates"

// Event is the JSON shape published on the download_updates channel.
type Event struct {
	Type           string    `json:"type"`
	DownloadID     uint      `json:"download_id"`
	WishlistItemID *uint     `json:"wishlist_item_id,omitempty"`
	Status         string    `json:"status"`
	Message        string    `json:"message,omitempty"`
	Progress       float64   `json:"progress,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

const (
	hashResolveWindowGrab    = 2 * time.Second
	hashResolveWindowFallback = 15 * time.Second
	hashTimeoutAfter         = 3 * time.Minute
)

// Pipeline wires the entity store to the indexer and download-client
// integrations. Every client dependency is the narrow catalog interface,
// never the concrete package, so tests can substitute fakes.
type Pipeline struct {
	store    *store.Store
	settings *config.Store
	indexer  catalog.IndexerAggregator
	torrent  catalog.TorrentClient
	usenet   catalog.UsenetClient
	importer catalog.PostProcessor
	events   EventPublisher
	log      zerolog.Logger

	playlists []catalog.PlaylistResolver
	rules     RuleFirer
}

func New(s *store.Store, settings *config.Store, indexer catalog.IndexerAggregator, torrent catalog.TorrentClient, usenet catalog.UsenetClient, importer catalog.PostProcessor, events EventPublisher, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store: s, settings: settings, indexer: indexer, torrent: torrent,
		usenet: usenet, importer: importer, events: events,
		log: log.With().Str("component", "pipeline").Logger(),
	}
}

func (p *Pipeline) publish(ctx context.Context, evt Event) {
	evt.Timestamp = time.Now()
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := p.events.Publish(ctx, updatesChannel, payload); err != nil {
		p.log.Debug().Err(err).Msg("failed to publish pipeline event")
	}
}

func searchQuery(artist, album string) string {
	switch {
	case artist != "" && album != "":
		return artist + " " + album
	case album != "":
		return album
	default:
		return artist
	}
}

// Search runs the spec §4.E Search sequence for one wishlist item. When
// userInitiated is false (the process-wishlist job's own call), the
// auto-grab gate decides whether to proceed to Grab; a user-initiated
// single-item search always grabs its top hit.
func (p *Pipeline) Search(ctx context.Context, wishlistItemID uint, userInitiated bool) error {
	item, err := p.store.GetWishlistItem(ctx, wishlistItemID)
	if err != nil {
		return err
	}

	if err := p.store.TransitionWishlistItem(ctx, item.ID, store.WishlistSearching); err != nil {
		return err
	}
	if err := p.store.IncrementWishlistSearchCount(ctx, item.ID); err != nil {
		return err
	}

	if !p.indexer.IsAvailable(ctx) {
		return p.store.TransitionWishlistItem(ctx, item.ID, store.WishlistWanted)
	}

	preferredFormat := item.PreferredFormat
	if preferredFormat == "" {
		preferredFormat = p.settings.String("preferred_quality", "flac")
	}

	results := p.indexer.SearchAlbum(ctx, item.ArtistName, item.AlbumTitle, preferredFormat)
	if len(results) == 0 || !results[0].PassesTextRelevance {
		return p.store.TransitionWishlistItem(ctx, item.ID, store.WishlistWanted)
	}
	top := results[0]

	download := &store.Download{
		WishlistItemID: &item.ID,
		ArtistName:     item.ArtistName,
		AlbumTitle:     item.AlbumTitle,
		Status:         store.DownloadFound,
		ReleaseTitle:   top.Title,
		SizeBytes:      top.SizeBytes,
		Format:         preferredFormat,
		Seeders:        top.Seeders,
		Leechers:       top.Leechers,
		IndexerID:      top.IndexerID,
		IndexerGUID:    top.GUID,
		Protocol:       top.Protocol,
		Score:          top.Score,
	}
	if err := p.store.CreateDownload(ctx, download); err != nil {
		return err
	}
	if err := p.store.TransitionWishlistItem(ctx, item.ID, store.WishlistFound); err != nil {
		return err
	}
	p.publish(ctx, Event{Type: "found", DownloadID: download.ID, WishlistItemID: &item.ID, Status: string(store.DownloadFound)})

	if !p.shouldGrab(ctx, userInitiated, top.Score) {
		return nil
	}
	return p.Grab(ctx, download.ID, top.DownloadURL, top.Title)
}

// shouldGrab applies the auto-grab gate (spec §4.E step 6). User-initiated
// single-item search always grabs.
func (p *Pipeline) shouldGrab(ctx context.Context, userInitiated bool, score float64) bool {
	if userInitiated {
		return true
	}
	if !p.settings.Bool("auto_download_enabled", false) {
		return false
	}
	threshold := p.settings.Float("auto_download_confidence_threshold", 0.8) * 100
	if score < threshold {
		return false
	}
	active, err := p.store.ActiveDownloads(ctx)
	if err != nil {
		return false
	}
	maxConcurrent := p.settings.Int("max_concurrent_downloads", 3)
	return len(active) < maxConcurrent
}

// Grab routes a found Download to the correct download client by
// protocol (spec §4.E Grab).
func (p *Pipeline) Grab(ctx context.Context, downloadID uint, downloadURL, releaseTitle string) error {
	d, err := p.store.GetDownload(ctx, downloadID)
	if err != nil {
		return err
	}
	if releaseTitle == "" {
		releaseTitle = d.ReleaseTitle
	}

	var grabErr error
	switch d.Protocol {
	case "usenet":
		grabErr = p.grabUsenet(ctx, d, downloadURL)
	default:
		grabErr = p.grabTorrent(ctx, d, downloadURL, releaseTitle)
	}

	if grabErr != nil {
		msg := grabErr.Error()
		if err := p.store.TransitionDownload(ctx, d.ID, store.DownloadFailed, msg); err != nil {
			return err
		}
		p.publish(ctx, Event{Type: "grab_failed", DownloadID: d.ID, WishlistItemID: d.WishlistItemID, Status: string(store.DownloadFailed), Message: msg})
		return nil
	}
	return nil
}

func (p *Pipeline) grabUsenet(ctx context.Context, d *store.Download, downloadURL string) error {
	if p.usenet == nil || !p.usenet.IsAvailable(ctx) {
		return fmt.Errorf("sabnzbd not enabled or configured")
	}
	category := p.settings.String("sabnzbd_category", "vibarr")
	nzoID, ok := p.usenet.AddNZBURL(ctx, downloadURL, category, d.ReleaseTitle)
	if !ok {
		return fmt.Errorf("sabnzbd rejected add_nzb_url")
	}
	return p.completeGrab(ctx, d.ID, "sabnzbd", nzoID, store.DownloadDownloading)
}

func (p *Pipeline) grabTorrent(ctx context.Context, d *store.Download, downloadURL, releaseTitle string) error {
	if p.torrent == nil || !p.torrent.IsAvailable(ctx) {
		return fmt.Errorf("qbittorrent not configured")
	}
	category := p.settings.String("qbittorrent_category", "vibarr")
	p.torrent.EnsureCategory(ctx, category)

	if hash, ok := p.tryProwlarrGrab(ctx, d, releaseTitle, category); ok {
		status := store.DownloadDownloading
		if hash == "" {
			status = store.DownloadQueued
		}
		return p.completeGrab(ctx, d.ID, "qbittorrent", hash, status)
	}

	if downloadURL == "" {
		return fmt.Errorf("no direct download url available for torrent fallback")
	}
	if !p.torrent.AddTorrentURL(ctx, downloadURL, category, "", nil) {
		return fmt.Errorf("qbittorrent rejected add_torrent_url")
	}
	hash, ok := p.torrent.FindTorrentHash(ctx, releaseTitle, int(hashResolveWindowFallback.Seconds()))
	status := store.DownloadDownloading
	if !ok {
		status = store.DownloadQueued
	}
	return p.completeGrab(ctx, d.ID, "qbittorrent", hash, status)
}

// tryProwlarrGrab attempts the indexer's own grab call, then a short
// identity-resolution poll. ok=false means the caller should fall back to
// add_torrent_url.
func (p *Pipeline) tryProwlarrGrab(ctx context.Context, d *store.Download, releaseTitle, category string) (hash string, ok bool) {
	if p.indexer == nil || !p.indexer.IsAvailable(ctx) {
		return "", false
	}
	result := p.indexer.Grab(ctx, d.IndexerGUID, d.IndexerID)
	if !result.Success {
		return "", false
	}
	if result.DownloadID != "" {
		return result.DownloadID, true
	}
	resolved, found := p.torrent.FindTorrentHash(ctx, releaseTitle, int(hashResolveWindowGrab.Seconds()))
	if !found {
		return "", false
	}
	return resolved, true
}

func (p *Pipeline) completeGrab(ctx context.Context, downloadID uint, client, clientDownloadID string, status store.DownloadStatus) error {
	if err := p.store.SetDownloadClient(ctx, downloadID, client, clientDownloadID); err != nil {
		return err
	}
	if err := p.store.TransitionDownload(ctx, downloadID, status, ""); err != nil {
		return err
	}
	d, _ := p.store.GetDownload(ctx, downloadID)
	var wid *uint
	if d != nil {
		wid = d.WishlistItemID
	}
	p.publish(ctx, Event{Type: "grabbed", DownloadID: downloadID, WishlistItemID: wid, Status: string(status)})
	return nil
}

func preferContentPath(contentPath, savePath string) string {
	if strings.TrimSpace(contentPath) != "" {
		return contentPath
	}
	return savePath
}
