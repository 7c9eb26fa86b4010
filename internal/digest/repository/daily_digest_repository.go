package repository

import (
	"context"
	"errors"
	"time"

	"golang-stock-digest/internal/entity"

	"gorm.io/gorm"
)

// ErrDigestNotFound is returned when no digest exists for the requested day.
var ErrDigestNotFound = errors.New("digest not found")

// DailyDigestRepository stores generated digests, one row per user per day.
type DailyDigestRepository interface {
	FindByUserAndDate(ctx context.Context, userID uint, date time.Time) (*entity.DailyDigest, error)
	FindHistory(ctx context.Context, userID uint, limit int) ([]entity.DailyDigest, error)
	Create(ctx context.Context, digest *entity.DailyDigest) error
	Update(ctx context.Context, digest *entity.DailyDigest) error
}

type dailyDigestRepository struct {
	db *gorm.DB
}

// NewDailyDigestRepository creates a new DailyDigestRepository.
func NewDailyDigestRepository(db *gorm.DB) DailyDigestRepository {
	return &dailyDigestRepository{db: db}
}

func (r *dailyDigestRepository) FindByUserAndDate(ctx context.Context, userID uint, date time.Time) (*entity.DailyDigest, error) {
	var digest entity.DailyDigest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date.Format("2006-01-02")).
		First(&digest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDigestNotFound
		}
		return nil, err
	}
	return &digest, nil
}

func (r *dailyDigestRepository) FindHistory(ctx context.Context, userID uint, limit int) ([]entity.DailyDigest, error) {
	var digests []entity.DailyDigest
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date DESC").
		Limit(limit).
		Find(&digests).Error
	if err != nil {
		return nil, err
	}
	return digests, nil
}

func (r *dailyDigestRepository) Create(ctx context.Context, digest *entity.DailyDigest) error {
	return r.db.WithContext(ctx).Create(digest).Error
}

func (r *dailyDigestRepository) Update(ctx context.Context, digest *entity.DailyDigest) error {
	return r.db.WithContext(ctx).Save(digest).Error
}
