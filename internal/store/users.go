package store

import (
	"context"

	"github.com/vibarr/core/internal/vibarrerr"
)

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	return s.DB.WithContext(ctx).Create(u).Error
}

func (s *Store) GetUser(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := s.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "user not found")
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, vibarrerr.Wrap(vibarrerr.NotFound, err, "user not found")
	}
	return &u, nil
}

func (s *Store) UserCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&User{}).Count(&n).Error
	return n, err
}

func (s *Store) UpdateTasteCluster(ctx context.Context, userID uint, cluster string, vector [8]float64) error {
	return s.DB.WithContext(ctx).Model(&User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"taste_cluster":        cluster,
			"compatibility_vector": vector,
		}).Error
}
