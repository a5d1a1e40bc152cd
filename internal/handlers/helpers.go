package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/elbourki/paymentkit/internal/middleware"
	"github.com/elbourki/paymentkit/internal/models"
)

// currentUser returns the user resolved by the auth middleware, or nil.
func currentUser(c echo.Context) *models.User {
	user, _ := c.Get(middleware.UserContextKey).(*models.User)
	return user
}

// currentAccount returns the onboarded account of the session user, failing
// with 401 when the user has not connected gateway credentials yet.
func currentAccount(c echo.Context) (*models.Account, error) {
	user := currentUser(c)
	if user == nil || user.Account == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Connect your payment gateway account first")
	}
	return user.Account, nil
}
