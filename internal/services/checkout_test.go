package services

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/elbourki/paymentkit/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// a pooled in-memory sqlite would hand each connection its own database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(db))
	return db
}

type checkoutFixture struct {
	db      *gorm.DB
	service *CheckoutService
	gateway *fakeGateway
	account *models.Account
	payment *models.Payment
}

func setupCheckout(t *testing.T) *checkoutFixture {
	t.Helper()
	db := testDB(t)

	account := &models.Account{
		AccessKey:       "ak",
		SecretKey:       "sk",
		Sandbox:         true,
		DefaultCurrency: "USD",
		AllowTips:       true,
	}
	require.NoError(t, db.Create(account).Error)

	accounts := NewAccountService(db, nil)
	payments := NewPaymentService(db)

	payment, err := payments.Create(context.Background(), account.ID, 1000, "USD", "Invoice #42", nil)
	require.NoError(t, err)

	gateway := &fakeGateway{}
	service := NewCheckoutService(db, accounts, payments, "https://pay.example.com")
	service.gateway = func(account *models.Account) Gateway { return gateway }

	return &checkoutFixture{db: db, service: service, gateway: gateway, account: account, payment: payment}
}

func (f *checkoutFixture) reload(t *testing.T) *models.Payment {
	t.Helper()
	var payment models.Payment
	require.NoError(t, f.db.First(&payment, f.payment.ID).Error)
	return &payment
}

func TestTipAmount(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		tipPercent float64
		want       float64
	}{
		{"fifteen percent", 1000, 15, 150},
		{"rounds down", 999, 15, 149},
		{"full amount", 1000, 100, 1000},
		{"zero percent", 1000, 0, 0},
		{"negative percent", 1000, -5, 0},
		{"over one hundred", 1000, 150, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TipAmount(tt.amount, tt.tipPercent))
		})
	}
}

func TestCreateCheckout(t *testing.T) {
	f := setupCheckout(t)
	f.gateway.checkout = &Checkout{ID: "checkout_abc"}

	session, err := f.service.CreateCheckout(context.Background(), f.payment.ShortID, "US", "USD", "bank_transfer", 15)
	require.NoError(t, err)

	assert.Equal(t, "checkout_abc", session.ID)
	assert.True(t, session.Sandbox)

	req := f.gateway.createdCheckout
	require.NotNil(t, req)
	assert.Equal(t, "US", req.Country)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, float64(1150), req.Amount, "the charged amount includes the tip")
	assert.Equal(t, []string{"bank_transfer"}, req.PaymentMethodTypeCategories)
	assert.Equal(t, f.payment.ShortID, req.Metadata["payment_id"])
	assert.Equal(t, float64(150), req.Metadata["tip_amount"])
	assert.Equal(t, "https://pay.example.com/pay/"+f.payment.ShortID, req.CompleteCheckoutURL)
	assert.Equal(t, req.CompleteCheckoutURL, req.CancelCheckoutURL)

	// same currency as the payment, so no conversion is requested
	assert.Empty(t, req.FixedSide)
	assert.Empty(t, req.RequestedCurrency)
}

func TestCreateCheckoutCurrencyConversion(t *testing.T) {
	f := setupCheckout(t)
	f.gateway.checkout = &Checkout{ID: "checkout_abc"}

	_, err := f.service.CreateCheckout(context.Background(), f.payment.ShortID, "FR", "EUR", CategoryCard, 0)
	require.NoError(t, err)

	req := f.gateway.createdCheckout
	require.NotNil(t, req)
	assert.Equal(t, "USD", req.Currency, "the payment's native currency is always charged")
	assert.Equal(t, "buy", req.FixedSide)
	assert.Equal(t, "EUR", req.RequestedCurrency)
	assert.Equal(t, float64(1000), req.Amount)
}

func TestCreateCheckoutUnknownPayment(t *testing.T) {
	f := setupCheckout(t)

	_, err := f.service.CreateCheckout(context.Background(), "missing", "US", "USD", CategoryCard, 0)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func closedCheckout(shortID string, tip float64) *Checkout {
	return &Checkout{
		ID: "checkout_abc",
		Payment: CheckoutPaymentInfo{
			Status:                    "CLO",
			PaymentMethodTypeCategory: "bank_transfer",
			Metadata: map[string]interface{}{
				"payment_id": shortID,
				"tip_amount": tip,
			},
		},
	}
}

func TestVerifyCheckoutPaid(t *testing.T) {
	f := setupCheckout(t)
	f.gateway.getCheckout = closedCheckout(f.payment.ShortID, 150)

	result, err := f.service.VerifyCheckout(context.Background(), f.payment.ShortID, "checkout_abc", false)
	require.NoError(t, err)

	assert.Equal(t, "checkout_abc", f.gateway.fetched)
	assert.Equal(t, models.PaymentStatusPaid, result.Status)
	assert.Empty(t, result.CompletePaymentURL)

	stored := f.reload(t)
	assert.Equal(t, models.PaymentStatusPaid, stored.Status)
	assert.Equal(t, "bank_transfer", stored.PaidVia)
	assert.Equal(t, float64(150), stored.TipAmount)
}

func TestVerifyCheckoutPending(t *testing.T) {
	f := setupCheckout(t)
	checkout := closedCheckout(f.payment.ShortID, 0)
	checkout.Payment.Status = "ACT"
	checkout.Payment.CompletePaymentURL = "https://bank.example.com/confirm"
	f.gateway.getCheckout = checkout

	result, err := f.service.VerifyCheckout(context.Background(), f.payment.ShortID, "checkout_abc", false)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPending, result.Status)
	assert.Equal(t, "https://bank.example.com/confirm", result.CompletePaymentURL)
	assert.Equal(t, models.PaymentStatusPending, f.reload(t).Status)
}

func TestVerifyCheckoutManualCard(t *testing.T) {
	f := setupCheckout(t)
	checkout := closedCheckout(f.payment.ShortID, 0)
	checkout.Payment.PaymentMethodTypeCategory = CategoryCard
	f.gateway.getCheckout = checkout

	_, err := f.service.VerifyCheckout(context.Background(), f.payment.ShortID, "checkout_abc", true)
	require.NoError(t, err)

	assert.Equal(t, PaidViaManual, f.reload(t).PaidVia)
}

func TestVerifyCheckoutRejectsForeignCheckout(t *testing.T) {
	f := setupCheckout(t)
	f.gateway.getCheckout = closedCheckout("someone-elses-payment", 0)

	_, err := f.service.VerifyCheckout(context.Background(), f.payment.ShortID, "checkout_abc", false)
	assert.ErrorIs(t, err, ErrVerificationRejected)

	stored := f.reload(t)
	assert.Equal(t, models.PaymentStatusUnpaid, stored.Status, "a rejected verification must not touch the payment")
	assert.Empty(t, stored.PaidVia)
}

func TestVerifyCheckoutRejectsUnprocessedStatus(t *testing.T) {
	f := setupCheckout(t)
	checkout := closedCheckout(f.payment.ShortID, 0)
	checkout.Payment.Status = "NEW"
	f.gateway.getCheckout = checkout

	_, err := f.service.VerifyCheckout(context.Background(), f.payment.ShortID, "checkout_abc", false)
	assert.ErrorIs(t, err, ErrVerificationRejected)
	assert.Equal(t, models.PaymentStatusUnpaid, f.reload(t).Status)
}

func TestVerifyCheckoutIdempotent(t *testing.T) {
	f := setupCheckout(t)
	f.gateway.getCheckout = closedCheckout(f.payment.ShortID, 150)

	for i := 0; i < 2; i++ {
		result, err := f.service.VerifyCheckout(context.Background(), f.payment.ShortID, "checkout_abc", false)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentStatusPaid, result.Status)
	}

	stored := f.reload(t)
	assert.Equal(t, models.PaymentStatusPaid, stored.Status)
	assert.Equal(t, float64(150), stored.TipAmount)
}
