package repository

import (
	"context"

	"golang-stock-digest/internal/entity"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CompanyRepository provides access to companies and follow lists.
type CompanyRepository interface {
	FindFollowedByUser(ctx context.Context, userID uint) ([]entity.Company, error)
	UpdateSubIndustries(ctx context.Context, companyID uint, subIndustries []string) error
}

type companyRepository struct {
	db *gorm.DB
}

// NewCompanyRepository creates a new CompanyRepository.
func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) FindFollowedByUser(ctx context.Context, userID uint) ([]entity.Company, error) {
	var follows []entity.UserCompany
	err := r.db.WithContext(ctx).
		Preload("Company").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&follows).Error
	if err != nil {
		return nil, err
	}

	companies := make([]entity.Company, 0, len(follows))
	for _, f := range follows {
		companies = append(companies, f.Company)
	}
	return companies, nil
}

func (r *companyRepository) UpdateSubIndustries(ctx context.Context, companyID uint, subIndustries []string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Company{}).
		Where("id = ?", companyID).
		Update("sub_industries", pq.StringArray(subIndustries)).Error
}
