package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSONErrorHandler is the central error handler for the API. Every failure,
// gateway or data-store alike, is recovered here into a {"message": string}
// body; nothing is retried on the server's behalf.
func JSONErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := ""

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			message = msg
		}
	}

	if message == "" {
		switch code {
		case http.StatusNotFound:
			message = "The resource you're looking for doesn't exist."
		case http.StatusUnauthorized:
			message = "Please log in to continue."
		case http.StatusForbidden:
			message = "You don't have permission to access this resource."
		case http.StatusBadRequest:
			message = "The request could not be processed."
		default:
			message = "Something went wrong. Please try again later."
		}
	}

	c.Logger().Error(err)

	if c.Response().Committed {
		return
	}
	if err := c.JSON(code, map[string]string{"message": message}); err != nil {
		c.Logger().Error(err)
	}
}
