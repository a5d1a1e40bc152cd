package services

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/elbourki/paymentkit/internal/models"
)

// ErrPaymentNotFound is returned when no payment exists for an id or slug.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentService creates and reads payment requests.
type PaymentService struct {
	db *gorm.DB
}

// NewPaymentService creates a PaymentService
func NewPaymentService(db *gorm.DB) *PaymentService {
	return &PaymentService{db: db}
}

// NewShortID generates a public payment slug.
func NewShortID() string {
	return strings.ToLower(ulid.Make().String())
}

// Create stores a new payment request with a freshly issued short id.
// Amount and currency are immutable from here on.
func (s *PaymentService) Create(ctx context.Context, accountID uint, amount float64, currency, description string, items []models.PaymentItem) (*models.Payment, error) {
	payment := models.Payment{
		ShortID:     NewShortID(),
		AccountID:   accountID,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		Status:      models.PaymentStatusUnpaid,
		Items:       items,
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// List returns an account's payment requests, newest first.
func (s *PaymentService) List(ctx context.Context, accountID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("account_id = ?", accountID).
		Order("created_at desc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// ByShortID fetches a payment by its public slug.
func (s *PaymentService) ByShortID(ctx context.Context, shortID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("short_id = ?", shortID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}
