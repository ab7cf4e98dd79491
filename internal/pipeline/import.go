package pipeline

import (
	"context"
	"fmt"

	"github.com/vibarr/core/internal/store"
)

// ImportDownload runs the spec §4.E Import step against a Download in
// status importing: hand its download_path to beets, then advance to
// completed or failed based on the result.
func (p *Pipeline) ImportDownload(ctx context.Context, downloadID uint) error {
	d, err := p.store.GetDownload(ctx, downloadID)
	if err != nil {
		return err
	}
	if d.Status != store.DownloadImporting {
		return fmt.Errorf("download %d is not in importing state (status=%s)", downloadID, d.Status)
	}

	move := p.settings.Bool("beets_move_files", true)
	result := p.importer.ImportDirectory(ctx, d.DownloadPath, d.ArtistName, d.AlbumTitle, move)

	if !result.Success {
		p.fail(ctx, d, "beets import failed: "+result.Error)
		return nil
	}

	if err := p.store.MarkBeetsImported(ctx, d.ID, result.FinalPath); err != nil {
		return err
	}
	if err := p.store.TransitionDownload(ctx, d.ID, store.DownloadCompleted, ""); err != nil {
		return err
	}
	p.publish(ctx, Event{Type: "completed", DownloadID: d.ID, WishlistItemID: d.WishlistItemID, Status: string(store.DownloadCompleted)})

	if d.DownloadClient == "sabnzbd" && p.usenet != nil {
		p.usenet.RemoveFromHistory(ctx, d.DownloadID, true)
	}
	return nil
}
