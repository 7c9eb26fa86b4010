package entity

import "time"

// User represents a registered digest recipient. Account management (signup,
// login) lives outside this service; rows are read-only collaborators here.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"unique;not null" json:"email"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}
