package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/vibarr/core/internal/vibarrerr"
)

// DefaultQualityProfile returns the single profile flagged IsDefault.
// Invariant (spec §3.I supplement): exactly one profile carries IsDefault
// at any time; SetDefaultQualityProfile enforces it transactionally.
func (s *Store) DefaultQualityProfile(ctx context.Context) (*QualityProfile, error) {
	var qp QualityProfile
	if err := s.DB.WithContext(ctx).Where("is_default = ?", true).First(&qp).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "no default quality profile configured")
	}
	return &qp, nil
}

// FindQualityProfileByName looks up a profile by its unique name, for the
// rules engine's set_quality_profile action (spec §4.G).
func (s *Store) FindQualityProfileByName(ctx context.Context, name string) (*QualityProfile, error) {
	var qp QualityProfile
	if err := s.DB.WithContext(ctx).Where("name = ?", name).First(&qp).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "quality profile not found")
	}
	return &qp, nil
}

func (s *Store) QualityProfiles(ctx context.Context) ([]QualityProfile, error) {
	var out []QualityProfile
	err := s.DB.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (s *Store) CreateQualityProfile(ctx context.Context, qp *QualityProfile) error {
	if qp.IsDefault {
		return s.SetDefaultQualityProfile(ctx, func(tx *gorm.DB) error {
			return tx.Create(qp).Error
		})
	}
	return s.DB.WithContext(ctx).Create(qp).Error
}

// SetDefaultQualityProfile clears IsDefault on every other profile and runs
// create within the same transaction, so a reader never observes either
// zero or two default profiles.
func (s *Store) SetDefaultQualityProfile(ctx context.Context, create func(tx *gorm.DB) error) error {
	return s.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&QualityProfile{}).Where("is_default = ?", true).Update("is_default", false).Error; err != nil {
			return err
		}
		return create(tx)
	})
}

// MakeDefaultQualityProfile promotes an existing profile to default,
// demoting whichever profile currently holds it.
func (s *Store) MakeDefaultQualityProfile(ctx context.Context, id uint) error {
	return s.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&QualityProfile{}).Where("is_default = ?", true).Update("is_default", false).Error; err != nil {
			return err
		}
		res := tx.Model(&QualityProfile{}).Where("id = ?", id).Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return vibarrerr.New(vibarrerr.NotFound, "quality profile not found")
		}
		return nil
	})
}
