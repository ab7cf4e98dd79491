package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vibarr/core/internal/vibarrerr"
)

func (s *Store) CreateDownload(ctx context.Context, d *Download) error {
	return s.DB.WithContext(ctx).Create(d).Error
}

func (s *Store) GetDownload(ctx context.Context, id uint) (*Download, error) {
	var d Download
	if err := s.DB.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "download not found")
	}
	return &d, nil
}

func (s *Store) GetDownloadByClientID(ctx context.Context, client, downloadID string) (*Download, error) {
	var d Download
	err := s.DB.WithContext(ctx).
		Where("download_client = ? AND download_id = ?", client, downloadID).
		First(&d).Error
	if err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "download not found for client id")
	}
	return &d, nil
}

func (s *Store) ActiveDownloads(ctx context.Context) ([]Download, error) {
	var out []Download
	err := s.DB.WithContext(ctx).
		Where("status IN ?", []DownloadStatus{DownloadQueued, DownloadDownloading}).
		Find(&out).Error
	return out, err
}

// TransitionDownload moves a download to a new status and, when paired
// with a wishlist item, advances the wishlist item's status in the same
// transaction. This is the core of the pipeline's state-coupling invariant
// (spec §4.E: a WishlistItem in "downloading" always has exactly one
// Download that is not yet completed/failed/cancelled).
func (s *Store) TransitionDownload(ctx context.Context, id uint, status DownloadStatus, message string) error {
	return s.WithTx(ctx, func(tx *gorm.DB) error {
		var d Download
		if err := tx.First(&d, id).Error; err != nil {
			return vibarrerr.Wrap(vibarrerr.NotFound, err, "download not found")
		}

		updates := map[string]interface{}{"status": status}
		if message != "" {
			updates["status_message"] = message
		}
		now := time.Now()
		switch status {
		case DownloadDownloading:
			if d.StartedAt == nil {
				updates["started_at"] = now
			}
		case DownloadCompleted, DownloadFailed, DownloadCancelled:
			updates["completed_at"] = now
		}
		if err := tx.Model(&Download{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		if d.WishlistItemID == nil {
			return nil
		}
		wishlistStatus := wishlistStatusFor(status)
		if wishlistStatus == "" {
			return nil
		}
		return tx.Model(&WishlistItem{}).
			Where("id = ?", *d.WishlistItemID).
			Update("status", wishlistStatus).Error
	})
}

// wishlistStatusFor maps a DownloadStatus onto the coupled WishlistStatus,
// per the spec §3 state diagram. Download statuses with no wishlist
// equivalent (pending, searching, found) are left to the search/grab jobs
// to set directly.
func wishlistStatusFor(ds DownloadStatus) WishlistStatus {
	switch ds {
	case DownloadQueued, DownloadDownloading:
		return WishlistDownloading
	case DownloadImporting:
		return WishlistImporting
	case DownloadCompleted:
		return WishlistDownloaded
	case DownloadFailed, DownloadCancelled:
		return WishlistFailed
	default:
		return ""
	}
}

func (s *Store) UpdateDownloadProgress(ctx context.Context, id uint, progress float64, speedBps, etaSeconds int64) error {
	return s.DB.WithContext(ctx).Model(&Download{}).Where("id = ?", id).Updates(map[string]interface{}{
		"progress":           progress,
		"download_speed_bps": speedBps,
		"eta_seconds":        etaSeconds,
	}).Error
}

// SetDownloadClient records which download client picked up a grabbed
// release and its client-side identifier (torrent hash or nzo id), which
// may be empty when identity resolution hasn't completed yet.
func (s *Store) SetDownloadClient(ctx context.Context, id uint, client, downloadID string) error {
	return s.DB.WithContext(ctx).Model(&Download{}).Where("id = ?", id).Updates(map[string]interface{}{
		"download_client": client,
		"download_id":     downloadID,
	}).Error
}

// UpdateDownloadPath records the resolved content path once a download
// client reports one (spec §4.E Poll: "prefer content_path over
// save_path").
func (s *Store) UpdateDownloadPath(ctx context.Context, id uint, path string) error {
	return s.DB.WithContext(ctx).Model(&Download{}).Where("id = ?", id).
		UpdateColumn("download_path", path).Error
}

// MarkBeetsImported records a successful beets import result.
func (s *Store) MarkBeetsImported(ctx context.Context, id uint, finalPath string) error {
	return s.DB.WithContext(ctx).Model(&Download{}).Where("id = ?", id).Updates(map[string]interface{}{
		"beets_imported": true,
		"final_path":     finalPath,
	}).Error
}
