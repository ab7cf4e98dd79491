package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/vibarr/core/internal/store"
)

var failedTorrentStates = map[string]bool{
	"error":        true,
	"missingFiles": true,
}

// PollActiveDownloads implements the check-download-status job body (spec
// §4.E Poll): refresh progress for every downloading/queued Download,
// resolve still-missing torrent hashes, and advance completed or failed
// items.
func (p *Pipeline) PollActiveDownloads(ctx context.Context) error {
	downloads, err := p.store.ActiveDownloads(ctx)
	if err != nil {
		return err
	}
	for _, d := range downloads {
		d := d
		switch d.DownloadClient {
		case "qbittorrent":
			p.pollTorrent(ctx, &d)
		case "sabnzbd":
			p.pollUsenet(ctx, &d)
		}
	}
	return nil
}

func (p *Pipeline) pollTorrent(ctx context.Context, d *store.Download) {
	if d.Status == store.DownloadQueued && d.DownloadID == "" {
		hash, ok := p.torrent.FindTorrentHash(ctx, d.ReleaseTitle, int(hashResolveWindowGrab.Seconds()))
		if ok {
			if err := p.store.SetDownloadClient(ctx, d.ID, "qbittorrent", hash); err != nil {
				p.log.Warn().Err(err).Uint("download_id", d.ID).Msg("failed to record resolved hash")
				return
			}
			d.DownloadID = hash
			if err := p.store.TransitionDownload(ctx, d.ID, store.DownloadDownloading, ""); err != nil {
				p.log.Warn().Err(err).Uint("download_id", d.ID).Msg("failed to transition to downloading")
			}
		} else if d.StartedAt != nil && time.Since(*d.StartedAt) > hashTimeoutAfter {
			p.fail(ctx, d, "hash resolution timed out")
		}
		return
	}

	info, found := p.torrent.GetTorrent(ctx, d.DownloadID)
	if !found {
		return
	}
	if failedTorrentStates[info.State] {
		p.fail(ctx, d, "torrent entered error state: "+info.State)
		return
	}

	path := preferContentPath(info.ContentPath, info.SavePath)
	if path != "" && path != d.DownloadPath {
		_ = p.store.UpdateDownloadPath(ctx, d.ID, path)
	}
	_ = p.store.UpdateDownloadProgress(ctx, d.ID, info.Progress, info.DownloadSpeedBps, info.ETASeconds)
	p.publish(ctx, Event{Type: "progress", DownloadID: d.ID, WishlistItemID: d.WishlistItemID, Status: string(d.Status), Progress: info.Progress})

	if torrentIsComplete(info.Progress, info.State) {
		p.completeDownload(ctx, d, path)
		if p.settings.Bool("qbittorrent_remove_completed", false) {
			p.torrent.Delete(ctx, d.DownloadID, false)
		}
	}
}

// torrentIsComplete reports whether a qBittorrent state represents a
// finished download: either full progress or one of the post-download
// seeding states (state names containing "UP").
func torrentIsComplete(progress float64, state string) bool {
	return progress >= 99.9 || strings.Contains(strings.ToLower(state), "up")
}

func (p *Pipeline) pollUsenet(ctx context.Context, d *store.Download) {
	for _, h := range p.usenet.History(ctx) {
		if h.NzoID != d.DownloadID {
			continue
		}
		switch {
		case strings.EqualFold(h.Status, "Failed"):
			p.fail(ctx, d, "sabnzbd reported failure")
		case strings.EqualFold(h.Status, "Completed"):
			p.completeDownload(ctx, d, h.StoragePath)
		}
		return
	}

	for _, q := range p.usenet.Queue(ctx) {
		if q.NzoID != d.DownloadID {
			continue
		}
		_ = p.store.UpdateDownloadProgress(ctx, d.ID, q.Progress, q.DownloadSpeedBps, q.ETASeconds)
		p.publish(ctx, Event{Type: "progress", DownloadID: d.ID, WishlistItemID: d.WishlistItemID, Status: string(d.Status), Progress: q.Progress})
		return
	}
}

func (p *Pipeline) fail(ctx context.Context, d *store.Download, reason string) {
	if err := p.store.TransitionDownload(ctx, d.ID, store.DownloadFailed, reason); err != nil {
		p.log.Warn().Err(err).Uint("download_id", d.ID).Msg("failed to record download failure")
		return
	}
	p.publish(ctx, Event{Type: "failed", DownloadID: d.ID, WishlistItemID: d.WishlistItemID, Status: string(store.DownloadFailed), Message: reason})
}

// completeDownload advances a finished download to importing (if beets is
// configured to auto-import) or straight to completed.
func (p *Pipeline) completeDownload(ctx context.Context, d *store.Download, path string) {
	if path != "" {
		_ = p.store.UpdateDownloadPath(ctx, d.ID, path)
	}
	if p.importer != nil && p.importer.IsAvailable(ctx) && p.settings.Bool("beets_auto_import", true) {
		if err := p.store.TransitionDownload(ctx, d.ID, store.DownloadImporting, ""); err != nil {
			p.log.Warn().Err(err).Uint("download_id", d.ID).Msg("failed to transition to importing")
			return
		}
		p.publish(ctx, Event{Type: "importing", DownloadID: d.ID, WishlistItemID: d.WishlistItemID, Status: string(store.DownloadImporting)})
		// The import itself can take up to 10 minutes (beets' own hard
		// timeout); run it off the poll cycle so check-download-status
		// keeps its 5-minute cadence for every other active download.
		go func(id uint) {
			if err := p.ImportDownload(context.Background(), id); err != nil {
				p.log.Warn().Err(err).Uint("download_id", id).Msg("import task failed")
			}
		}(d.ID)
		return
	}
	if err := p.store.TransitionDownload(ctx, d.ID, store.DownloadCompleted, ""); err != nil {
		p.log.Warn().Err(err).Uint("download_id", d.ID).Msg("failed to transition to completed")
		return
	}
	p.publish(ctx, Event{Type: "completed", DownloadID: d.ID, WishlistItemID: d.WishlistItemID, Status: string(store.DownloadCompleted)})
}
