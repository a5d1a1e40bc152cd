package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/elbourki/paymentkit/internal/models"
	"github.com/elbourki/paymentkit/internal/services"
)

// PaymentHandler handles payment requests and the payer-facing checkout flow.
type PaymentHandler struct {
	payments *services.PaymentService
	checkout *services.CheckoutService
	accounts *services.AccountService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *services.PaymentService, checkout *services.CheckoutService, accounts *services.AccountService) *PaymentHandler {
	return &PaymentHandler{payments: payments, checkout: checkout, accounts: accounts}
}

type createPaymentRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	Items       []struct {
		Name     string  `json:"name"`
		Image    string  `json:"image"`
		Amount   float64 `json:"amount"`
		Quantity int     `json:"quantity"`
	} `json:"items"`
}

// CreatePayment stores a new payment request for the merchant's account and
// returns its public slug.
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if req.Amount <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Amount must be positive")
	}
	if req.Currency == "" {
		req.Currency = account.DefaultCurrency
	}
	if req.Currency == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Currency is required")
	}

	items := make([]models.PaymentItem, 0, len(req.Items))
	for _, item := range req.Items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		items = append(items, models.PaymentItem{
			Name:     item.Name,
			Image:    item.Image,
			Amount:   item.Amount,
			Quantity: quantity,
		})
	}

	payment, err := h.payments.Create(c.Request().Context(), account.ID, req.Amount, req.Currency, req.Description, items)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create payment")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":       payment.ID,
		"short_id": payment.ShortID,
	})
}

// ListPayments returns the merchant's payment requests, newest first.
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	payments, err := h.payments.List(c.Request().Context(), account.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch payments")
	}
	return c.JSON(http.StatusOK, payments)
}

// ShowPayment returns the payer-facing view of a payment, looked up by its
// public slug. Only fields the pay page needs are exposed.
func (h *PaymentHandler) ShowPayment(c echo.Context) error {
	payment, err := h.payments.ByShortID(c.Request().Context(), c.Param("short_id"))
	if err != nil {
		if errors.Is(err, services.ErrPaymentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Payment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch payment")
	}

	account, err := h.accounts.Get(c.Request().Context(), payment.AccountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch payment")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"short_id":    payment.ShortID,
		"amount":      payment.Amount,
		"currency":    payment.Currency,
		"description": payment.Description,
		"status":      payment.Status,
		"items":       payment.Items,
		"sandbox":     account.Sandbox,
		"allow_tips":  account.AllowTips,
	})
}

type optionsRequest struct {
	ID      string `json:"id"`
	Country string `json:"country"`
	Card    bool   `json:"card"`
}

// Options resolves the (currency, category) combinations a payer can use in
// a country, honoring the merchant's allowed categories.
func (h *PaymentHandler) Options(c echo.Context) error {
	var req optionsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if req.ID == "" || req.Country == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Payment id and country are required")
	}

	ctx := c.Request().Context()
	payment, err := h.payments.ByShortID(ctx, req.ID)
	if err != nil {
		if errors.Is(err, services.ErrPaymentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Payment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch payment")
	}

	account, err := h.accounts.Get(ctx, payment.AccountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch payment")
	}
	client, err := h.accounts.RapydClient(ctx, payment.AccountID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to reach the payment gateway")
	}

	options, err := services.ResolvePaymentOptions(ctx, client, req.Country, req.Card, account.PaymentMethodsCategories)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to fetch payment options")
	}
	return c.JSON(http.StatusOK, options)
}

type checkoutRequest struct {
	ID              string  `json:"id"`
	Country         string  `json:"country"`
	Currency        string  `json:"currency"`
	PaymentCategory string  `json:"payment_category"`
	Card            bool    `json:"card"`
	Tip             float64 `json:"tip"`
}

// CreateCheckout creates a gateway checkout session for a payment. The
// manual card-entry flow always charges through the card category.
func (h *PaymentHandler) CreateCheckout(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if req.ID == "" || req.Country == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Payment id and country are required")
	}

	category := req.PaymentCategory
	if req.Card {
		category = services.CategoryCard
	}
	if category == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Payment category is required")
	}

	session, err := h.checkout.CreateCheckout(c.Request().Context(), req.ID, req.Country, req.Currency, category, req.Tip)
	if err != nil {
		if errors.Is(err, services.ErrPaymentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Payment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create checkout")
	}
	return c.JSON(http.StatusOK, session)
}

type verifyRequest struct {
	ID         string `json:"id"`
	CheckoutID string `json:"checkout_id"`
	Card       bool   `json:"card"`
}

// VerifyCheckout finalizes a payment after the checkout widget reports
// success. A mismatched or unprocessed checkout is rejected with 400 and no
// state change.
func (h *PaymentHandler) VerifyCheckout(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if req.ID == "" || req.CheckoutID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Payment id and checkout id are required")
	}

	result, err := h.checkout.VerifyCheckout(c.Request().Context(), req.ID, req.CheckoutID, req.Card)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Payment not found")
		case errors.Is(err, services.ErrVerificationRejected):
			return echo.NewHTTPError(http.StatusBadRequest, "The checkout could not be verified")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to verify payment")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":                   req.ID,
		"status":               result.Status,
		"complete_payment_url": result.CompletePaymentURL,
	})
}
