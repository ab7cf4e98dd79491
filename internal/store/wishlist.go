package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vibarr/core/internal/vibarrerr"
)

func (s *Store) CreateWishlistItem(ctx context.Context, w *WishlistItem) error {
	return s.DB.WithContext(ctx).Create(w).Error
}

func (s *Store) GetWishlistItem(ctx context.Context, id uint) (*WishlistItem, error) {
	var w WishlistItem
	if err := s.DB.WithContext(ctx).First(&w, id).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "wishlist item not found")
	}
	return &w, nil
}

// WishlistItemsByStatus returns items in the given statuses, oldest
// last-searched first so the search job round-robins fairly across a
// backlog (spec §4.D "search-wishlist" job).
func (s *Store) WishlistItemsByStatus(ctx context.Context, statuses ...WishlistStatus) ([]WishlistItem, error) {
	var out []WishlistItem
	err := s.DB.WithContext(ctx).
		Where("status IN ?", statuses).
		Order("last_searched_at IS NOT NULL, last_searched_at asc, created_at asc").
		Find(&out).Error
	return out, err
}

// TransitionWishlistItem atomically moves an item to a new status, bumping
// search bookkeeping when the new status is "searching". It is a single
// standalone update outside any transaction; the wishlist updates that are
// coupled to a Download row change happen inside TransitionDownload.
func (s *Store) TransitionWishlistItem(ctx context.Context, id uint, status WishlistStatus) error {
	updates := map[string]interface{}{"status": status}
	if status == WishlistSearching {
		updates["last_searched_at"] = time.Now()
	}
	return s.DB.WithContext(ctx).Model(&WishlistItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Store) IncrementWishlistSearchCount(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Model(&WishlistItem{}).
		Where("id = ?", id).
		UpdateColumn("search_count", gorm.Expr("search_count + 1")).Error
}

// UpdateWishlistItemFields applies an arbitrary column update, for the
// rules engine's tag_item/set_quality_profile actions where the set of
// touched columns depends on which action fired.
func (s *Store) UpdateWishlistItemFields(ctx context.Context, id uint, updates map[string]interface{}) error {
	return s.DB.WithContext(ctx).Model(&WishlistItem{}).Where("id = ?", id).Updates(updates).Error
}

func (s *Store) DeleteWishlistItem(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Delete(&WishlistItem{}, id).Error
}
