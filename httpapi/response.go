package httpapi

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/MrEthical07/authkit"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, Response{Success: status < http.StatusBadRequest, Message: msg})
}

func invalid(c echo.Context, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return c.JSON(http.StatusBadRequest, Response{Message: "Validation failed", Data: verrs})
	}
	return message(c, http.StatusBadRequest, "Invalid request payload")
}

// errorStatus maps engine errors to a status code and a client-safe message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, authkit.ErrBadCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, authkit.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, authkit.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, authkit.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, authkit.ErrAlreadyExists):
		return http.StatusConflict, "Email already registered"
	case errors.Is(err, authkit.ErrNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, authkit.ErrInvalidInput),
		errors.Is(err, authkit.ErrInvalidRole),
		errors.Is(err, authkit.ErrPasswordPolicy):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, authkit.ErrRegistrationDisabled),
		errors.Is(err, authkit.ErrPasswordResetDisabled):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, authkit.ErrLoginRateLimited),
		errors.Is(err, authkit.ErrRefreshRateLimited),
		errors.Is(err, authkit.ErrRegisterRateLimited),
		errors.Is(err, authkit.ErrPasswordResetRateLimited):
		return http.StatusTooManyRequests, "Too many requests"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
