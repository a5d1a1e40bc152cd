package handlers

import (
	"net/http"
	"os"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/elbourki/paymentkit/internal/models"
)

const sessionDuration = time.Hour * 24 * 5

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authClient *auth.Client
	db         *gorm.DB
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authClient *auth.Client, db *gorm.DB) *AuthHandler {
	return &AuthHandler{authClient: authClient, db: db}
}

// HandleLogin verifies the passwordless provider's ID token, upserts the
// local user row and mints a session cookie.
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	if h.authClient == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authentication is not configured")
	}

	authHeader := c.Request().Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if authHeader == "" || tokenString == authHeader {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing or malformed authorization header")
	}

	decodedToken, err := h.authClient.VerifyIDToken(c.Request().Context(), tokenString)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}
	email, _ := decodedToken.Claims["email"].(string)

	user := models.User{
		FirebaseUID: decodedToken.UID,
		Email:       email,
	}
	err = h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "firebase_uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"email"}),
	}).Create(&user).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create user")
	}
	if err := h.db.Preload("Account").Where("firebase_uid = ?", decodedToken.UID).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load user")
	}

	cookieValue, err := h.authClient.SessionCookie(c.Request().Context(), tokenString, sessionDuration)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}

	c.SetCookie(&http.Cookie{
		Name:     "session",
		Value:    cookieValue,
		MaxAge:   int(sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   os.Getenv("ENV") == "production",
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	return c.JSON(http.StatusOK, user)
}

// HandleLogout clears the session cookie
func (h *AuthHandler) HandleLogout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     "session",
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Path:     "/",
	})
	return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}

// CurrentUser returns the logged-in user, or an empty object when the
// session is missing or stale. The browser client uses this to decide
// between the app and the login screen.
func (h *AuthHandler) CurrentUser(c echo.Context) error {
	if h.authClient == nil {
		return c.JSON(http.StatusOK, map[string]string{})
	}

	cookie, err := c.Cookie("session")
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusOK, map[string]string{})
	}

	decodedToken, err := h.authClient.VerifySessionCookie(c.Request().Context(), cookie.Value)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]string{})
	}

	var user models.User
	if err := h.db.Preload("Account").Where("firebase_uid = ?", decodedToken.UID).First(&user).Error; err != nil {
		return c.JSON(http.StatusOK, map[string]string{})
	}
	return c.JSON(http.StatusOK, user)
}
