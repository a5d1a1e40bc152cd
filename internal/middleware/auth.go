package middleware

import (
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/elbourki/paymentkit/internal/models"
)

// UserContextKey is where RequireAuth stores the resolved user.
const UserContextKey = "user"

// RequireAuth returns a middleware that verifies the Firebase session cookie
// and loads the matching user (with account) into the request context.
// API routes get a 401 JSON response rather than a redirect.
func RequireAuth(authClient *auth.Client, db *gorm.DB) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authClient == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication is not configured")
			}

			cookie, err := c.Cookie("session")
			if err != nil || cookie.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Please log in to continue")
			}

			decodedToken, err := authClient.VerifySessionCookie(c.Request().Context(), cookie.Value)
			if err != nil {
				// Invalid session, clear the cookie
				clearCookie := &http.Cookie{
					Name:     "session",
					Value:    "",
					MaxAge:   -1,
					HttpOnly: true,
					Path:     "/",
				}
				c.SetCookie(clearCookie)
				return echo.NewHTTPError(http.StatusUnauthorized, "Please log in to continue")
			}

			var user models.User
			if err := db.Preload("Account").Where("firebase_uid = ?", decodedToken.UID).First(&user).Error; err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Please log in to continue")
			}

			c.Set(UserContextKey, &user)
			return next(c)
		}
	}
}
