package entity

import (
	"time"

	"github.com/lib/pq"
)

// Company represents a followable listed company.
type Company struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Ticker        string         `gorm:"unique;not null" json:"ticker"`
	Name          string         `gorm:"not null" json:"name"`
	MainIndustry  string         `json:"main_industry"`
	SubIndustries pq.StringArray `gorm:"type:text[]" json:"sub_industries"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Company model.
func (Company) TableName() string {
	return "companies"
}

// UserCompany links a user to a followed company.
type UserCompany struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	CompanyID uint      `gorm:"not null" json:"company_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Company Company `gorm:"foreignKey:CompanyID" json:"company"`
}

// TableName specifies the table name for the UserCompany model.
func (UserCompany) TableName() string {
	return "user_companies"
}
