package store

import (
	"context"

	"github.com/vibarr/core/internal/vibarrerr"
)

// LatestTasteProfile returns the highest-Version profile for a user, or
// NotFound if none exist yet (a new user has no listening history).
func (s *Store) LatestTasteProfile(ctx context.Context, userID uint) (*TasteProfile, error) {
	var tp TasteProfile
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("version desc").
		First(&tp).Error
	if err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "no taste profile for user")
	}
	return &tp, nil
}

// CreateTasteProfileVersion inserts a new profile row with Version set one
// past the user's current latest, never mutating a prior version in place
// (spec §3 invariant 5: taste profiles are append-only history).
func (s *Store) CreateTasteProfileVersion(ctx context.Context, tp *TasteProfile) error {
	prev, err := s.LatestTasteProfile(ctx, tp.UserID)
	if err == nil {
		tp.Version = prev.Version + 1
	} else {
		tp.Version = 1
	}
	return s.DB.WithContext(ctx).Create(tp).Error
}

func (s *Store) TasteProfileHistory(ctx context.Context, userID uint, limit int) ([]TasteProfile, error) {
	var out []TasteProfile
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("version desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (s *Store) UpsertPreference(ctx context.Context, p *UserPreference) error {
	var existing UserPreference
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND key = ?", p.UserID, p.Kind, p.Key).
		First(&existing).Error
	if err == nil {
		p.ID = existing.ID
		return s.DB.WithContext(ctx).Model(&UserPreference{}).Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"weight": p.Weight, "confidence": p.Confidence}).Error
	}
	return s.DB.WithContext(ctx).Create(p).Error
}

func (s *Store) PreferencesByKind(ctx context.Context, userID uint, kind PreferenceKind) ([]UserPreference, error) {
	var out []UserPreference
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		Order("weight desc").
		Find(&out).Error
	return out, err
}
