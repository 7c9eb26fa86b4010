package repository

import (
	"context"

	"golang-stock-digest/internal/entity"

	"gorm.io/gorm"
)

// UserRepository provides read access to digest recipients.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.User, error)
	GetAll(ctx context.Context) ([]entity.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetAll(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
