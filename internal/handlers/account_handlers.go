package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/elbourki/paymentkit/internal/services"
)

// AccountHandler handles gateway onboarding and account settings.
type AccountHandler struct {
	accounts *services.AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type connectRequest struct {
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Sandbox   bool   `json:"sandbox"`
}

// ConnectRapyd onboards the session user with a gateway key pair. The pair
// is validated against the gateway before anything is stored.
func (h *AccountHandler) ConnectRapyd(c echo.Context) error {
	user := currentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Please log in to continue")
	}
	if user.Account != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "An account is already connected")
	}

	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if req.AccessKey == "" || req.SecretKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Access key and secret key are required")
	}

	_, err := h.accounts.Connect(c.Request().Context(), user, req.AccessKey, req.SecretKey, req.Sandbox)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusBadRequest, "Please check your credentials and try again")
		case errors.Is(err, services.ErrGatewayUnavailable):
			return echo.NewHTTPError(http.StatusBadGateway, "Failed to reach the payment gateway")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to connect account")
		}
	}

	return c.JSON(http.StatusOK, user)
}

// UpdateSettings persists the merchant's collection preferences.
func (h *AccountHandler) UpdateSettings(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	var settings services.AccountSettings
	if err := c.Bind(&settings); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	updated, err := h.accounts.UpdateSettings(c.Request().Context(), account.ID, settings)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update settings")
	}
	return c.JSON(http.StatusOK, updated)
}

// Currencies returns the gateway's supported currencies for the merchant's
// account. Backs the currency pickers in the payment and settings forms.
func (h *AccountHandler) Currencies(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	currencies, err := h.accounts.Currencies(c.Request().Context(), account.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to fetch currencies")
	}
	return c.JSON(http.StatusOK, currencies)
}

// Countries returns the gateway's supported countries for the merchant's
// account.
func (h *AccountHandler) Countries(c echo.Context) error {
	account, err := currentAccount(c)
	if err != nil {
		return err
	}

	countries, err := h.accounts.Countries(c.Request().Context(), account.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to fetch countries")
	}
	return c.JSON(http.StatusOK, countries)
}
