package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a merchant user in the system
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	FirebaseUID string `gorm:"type:varchar(128);uniqueIndex" json:"-"`
	Email       string `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	AccountID   *uint  `json:"account_id"`

	// Relationships
	Account *Account `gorm:"foreignKey:AccountID" json:"account"`
}
