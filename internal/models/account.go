package models

import (
	"time"

	"gorm.io/gorm"
)

// Account holds a merchant's gateway credentials and collection preferences.
// It is created during gateway-credential onboarding and never deleted.
type Account struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	AccessKey string `gorm:"type:varchar(255);not null" json:"-"`
	SecretKey string `gorm:"type:varchar(255);not null" json:"-"`
	Sandbox   bool   `gorm:"default:false" json:"sandbox"`

	PaymentMethodsCategories []string `gorm:"serializer:json" json:"payment_methods_categories"`
	DefaultCurrency          string   `gorm:"type:varchar(10)" json:"default_currency"`
	AllowTips                bool     `gorm:"default:false" json:"allow_tips"`
}
