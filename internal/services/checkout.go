package services

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"

	"github.com/elbourki/paymentkit/internal/models"
)

// Gateway payment status codes treated as effectively processed.
const (
	rapydStatusClosed = "CLO" // settled
	rapydStatusActive = "ACT" // accepted, completion pending out-of-band
)

// PaidViaManual is recorded when the merchant charges a card manually.
const PaidViaManual = "manual"

// ErrVerificationRejected is returned when a checkout does not belong to the
// payment being verified or its gateway status is not an accepted code.
// No state is written in that case.
var ErrVerificationRejected = errors.New("checkout verification rejected")

// CheckoutService creates gateway checkout sessions for payment requests and
// verifies them afterwards. The gateway factory is swappable for tests.
type CheckoutService struct {
	db       *gorm.DB
	accounts *AccountService
	payments *PaymentService
	appURL   string
	gateway  func(account *models.Account) Gateway
}

// NewCheckoutService creates a CheckoutService
func NewCheckoutService(db *gorm.DB, accounts *AccountService, payments *PaymentService, appURL string) *CheckoutService {
	return &CheckoutService{
		db:       db,
		accounts: accounts,
		payments: payments,
		appURL:   appURL,
		gateway: func(account *models.Account) Gateway {
			return ClientForAccount(account)
		},
	}
}

// CheckoutSession is the result of creating a checkout at the gateway. The id
// is held only in browser memory for the lifetime of the checkout widget.
type CheckoutSession struct {
	ID      string `json:"id"`
	Sandbox bool   `json:"sandbox"`
}

// TipAmount derives the tip for a payment at checkout-creation time. It is
// never recomputed later; verification trusts the value echoed back in the
// gateway metadata.
func TipAmount(amount, tipPercent float64) float64 {
	if tipPercent <= 0 || tipPercent > 100 {
		return 0
	}
	return math.Floor(tipPercent / 100 * amount)
}

// CreateCheckout creates a gateway checkout session for the payment behind
// shortID. The session always charges the payment's native currency; when the
// payer picked a different display currency the gateway converts with
// fixed_side=buy so the merchant still receives the native amount.
func (s *CheckoutService) CreateCheckout(ctx context.Context, shortID, country, currency, category string, tipPercent float64) (*CheckoutSession, error) {
	payment, err := s.payments.ByShortID(ctx, shortID)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.Get(ctx, payment.AccountID)
	if err != nil {
		return nil, err
	}

	tipAmount := TipAmount(payment.Amount, tipPercent)
	payURL := s.appURL + "/pay/" + payment.ShortID

	req := &CheckoutRequest{
		Country:                     country,
		Currency:                    payment.Currency,
		Amount:                      payment.Amount + tipAmount,
		Description:                 payment.Description,
		PaymentMethodTypeCategories: []string{category},
		Metadata: map[string]interface{}{
			"payment_id": payment.ShortID,
			"tip_amount": tipAmount,
		},
		CompleteCheckoutURL: payURL,
		CancelCheckoutURL:   payURL,
	}
	if currency != "" && currency != payment.Currency {
		req.FixedSide = "buy"
		req.RequestedCurrency = currency
	}

	checkout, err := s.gateway(account).CreateCheckout(ctx, req)
	if err != nil {
		return nil, err
	}

	return &CheckoutSession{ID: checkout.ID, Sandbox: account.Sandbox}, nil
}

// VerificationResult reports the stored status after verifying a checkout.
// CompletePaymentURL is set when the payer still has to finish an
// out-of-band step such as a bank redirect.
type VerificationResult struct {
	Status             models.PaymentStatus `json:"status"`
	CompletePaymentURL string               `json:"complete_payment_url,omitempty"`
}

// VerifyCheckout fetches a checkout from the gateway and finalizes the
// payment it references. The checkout must carry the payment's own slug in
// its metadata and report an accepted gateway status, otherwise the
// verification is rejected without touching the store. The write is
// idempotent given identical gateway state.
func (s *CheckoutService) VerifyCheckout(ctx context.Context, shortID, checkoutID string, cardOnly bool) (*VerificationResult, error) {
	payment, err := s.payments.ByShortID(ctx, shortID)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.Get(ctx, payment.AccountID)
	if err != nil {
		return nil, err
	}

	checkout, err := s.gateway(account).GetCheckout(ctx, checkoutID)
	if err != nil {
		return nil, err
	}

	metaID, _ := checkout.Payment.Metadata["payment_id"].(string)
	gatewayStatus := checkout.Payment.Status
	if metaID != payment.ShortID || (gatewayStatus != rapydStatusClosed && gatewayStatus != rapydStatusActive) {
		return nil, ErrVerificationRejected
	}

	status := models.PaymentStatusPending
	if gatewayStatus == rapydStatusClosed {
		status = models.PaymentStatusPaid
	}

	paidVia := checkout.Payment.PaymentMethodTypeCategory
	if cardOnly {
		paidVia = PaidViaManual
	}

	// Trusts the tip echoed back by the gateway rather than recomputing it
	// from stored state; see the design notes.
	tipAmount, _ := checkout.Payment.Metadata["tip_amount"].(float64)

	err = s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]interface{}{
			"status":     status,
			"paid_via":   paidVia,
			"tip_amount": tipAmount,
		}).Error
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{Status: status}
	if status == models.PaymentStatusPending {
		result.CompletePaymentURL = checkout.Payment.CompletePaymentURL
	}
	return result, nil
}
