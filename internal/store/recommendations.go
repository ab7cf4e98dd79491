package store

import (
	"context"
	"time"
)

func (s *Store) CreateRecommendations(ctx context.Context, recs []Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Create(&recs).Error
}

// ActiveRecommendations returns unexpired, undismissed recommendations for
// a category, newest first.
func (s *Store) ActiveRecommendations(ctx context.Context, category RecommendationCategory) ([]Recommendation, error) {
	var out []Recommendation
	err := s.DB.WithContext(ctx).
		Where("category = ? AND dismissed = ? AND expires_at > ?", category, false, time.Now()).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

func (s *Store) MarkRecommendationShown(ctx context.Context, id uint) error {
	now := time.Now()
	return s.DB.WithContext(ctx).Model(&Recommendation{}).Where("id = ? AND shown = ?", id, false).
		Updates(map[string]interface{}{"shown": true, "shown_at": now}).Error
}

func (s *Store) MarkRecommendationClicked(ctx context.Context, id uint) error {
	now := time.Now()
	return s.DB.WithContext(ctx).Model(&Recommendation{}).Where("id = ?", id).
		Updates(map[string]interface{}{"clicked": true, "clicked_at": now}).Error
}

func (s *Store) DismissRecommendation(ctx context.Context, id uint) error {
	now := time.Now()
	return s.DB.WithContext(ctx).Model(&Recommendation{}).Where("id = ?", id).
		Updates(map[string]interface{}{"dismissed": true, "dismissed_at": now}).Error
}

func (s *Store) MarkRecommendationAddedToWishlist(ctx context.Context, id uint) error {
	now := time.Now()
	return s.DB.WithContext(ctx).Model(&Recommendation{}).Where("id = ?", id).
		Updates(map[string]interface{}{"added_to_wishlist": true, "added_at": now}).Error
}

// PurgeExpiredRecommendations deletes every recommendation past its
// expiry, regardless of shown state (spec §4.F persistence: "Delete
// expired recommendations first").
func (s *Store) PurgeExpiredRecommendations(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("expires_at <= ?", time.Now()).
		Delete(&Recommendation{})
	return res.RowsAffected, res.Error
}

// CategoryFeedbackStats aggregates shown/clicked/dismissed/wishlisted
// counts per category over the last `within` window, feeding the
// recommendation engine's feedback scoring factor.
type CategoryFeedbackStats struct {
	Category        RecommendationCategory
	Shown           int64
	Clicked         int64
	Dismissed       int64
	AddedToWishlist int64
}

func (s *Store) CategoryFeedbackStats(ctx context.Context, within time.Duration) ([]CategoryFeedbackStats, error) {
	var out []CategoryFeedbackStats
	err := s.DB.WithContext(ctx).
		Model(&Recommendation{}).
		Select("category, "+
			"SUM(CASE WHEN shown THEN 1 ELSE 0 END) as shown, "+
			"SUM(CASE WHEN clicked THEN 1 ELSE 0 END) as clicked, "+
			"SUM(CASE WHEN dismissed THEN 1 ELSE 0 END) as dismissed, "+
			"SUM(CASE WHEN added_to_wishlist THEN 1 ELSE 0 END) as added_to_wishlist").
		Where("created_at >= ?", time.Now().Add(-within)).
		Group("category").
		Find(&out).Error
	return out, err
}

// RecentBasisArtistIDs returns distinct BasisArtistID values used in the
// last `within` window. No caller uses it; the diversification step caps
// seed-artist repetition within a single batch only.
func (s *Store) RecentBasisArtistIDs(ctx context.Context, within time.Duration) ([]uint, error) {
	var ids []uint
	err := s.DB.WithContext(ctx).
		Model(&Recommendation{}).
		Where("created_at > ? AND basis_artist_id IS NOT NULL", time.Now().Add(-within)).
		Distinct().
		Pluck("basis_artist_id", &ids).Error
	return ids, err
}
