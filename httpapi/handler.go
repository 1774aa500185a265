package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/authkit"
	"github.com/MrEthical07/authkit/middleware"
)

// Handler serves the authentication endpoints on top of an Engine.
type Handler struct {
	engine *authkit.Engine
	logger zerolog.Logger
}

func NewHandler(engine *authkit.Engine, logger zerolog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindValid(c, &req); err != nil {
		return invalid(c, err)
	}
	sess, err := h.engine.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, sess)
}

// Register always creates a USER account; elevated roles are granted
// programmatically.
func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindValid(c, &req); err != nil {
		return invalid(c, err)
	}
	sess, err := h.engine.Register(requestContext(c), authkit.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      authkit.RoleUser,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, sess)
}

func (h *Handler) RefreshToken(c echo.Context) error {
	var req refreshTokenRequest
	if err := bindValid(c, &req); err != nil {
		return invalid(c, err)
	}
	sess, err := h.engine.Refresh(requestContext(c), req.RefreshToken)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, sess)
}

func (h *Handler) Logout(c echo.Context) error {
	var req refreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return invalid(c, err)
	}
	if err := h.engine.Logout(requestContext(c), req.RefreshToken); err != nil {
		return h.fail(c, err)
	}
	return message(c, http.StatusOK, "Logged out successfully")
}

func (h *Handler) RequestPasswordReset(c echo.Context) error {
	var req passwordResetRequest
	if err := bindValid(c, &req); err != nil {
		return invalid(c, err)
	}
	if err := h.engine.InitiatePasswordReset(requestContext(c), req.Email); err != nil {
		return h.fail(c, err)
	}
	return message(c, http.StatusOK, "Password reset request has been sent to your email")
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req passwordResetConfirmRequest
	if err := bindValid(c, &req); err != nil {
		return invalid(c, err)
	}
	if req.Password != req.ConfirmPassword {
		return message(c, http.StatusBadRequest, "Passwords do not match")
	}
	if err := h.engine.CompletePasswordReset(requestContext(c), c.Param("token"), req.Password); err != nil {
		return h.fail(c, err)
	}
	return message(c, http.StatusOK, "Password has been reset successfully")
}

func (h *Handler) CurrentUser(c echo.Context) error {
	id, found := middleware.IdentityFromContext(c.Request().Context())
	if !found {
		return h.fail(c, authkit.ErrUnauthenticated)
	}
	view, err := h.engine.CurrentUser(requestContext(c), id.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, view)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, found := middleware.IdentityFromContext(c.Request().Context())
	if !found {
		return h.fail(c, authkit.ErrUnauthenticated)
	}
	var req updateUserRequest
	if err := bindValid(c, &req); err != nil {
		return invalid(c, err)
	}
	view, err := h.engine.UpdateProfile(requestContext(c), id.UserID, authkit.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, view)
}

func (h *Handler) GetUser(c echo.Context) error {
	userID, err := pathUserID(c)
	if err != nil {
		return invalid(c, err)
	}
	view, err := h.engine.CurrentUser(requestContext(c), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, view)
}

func (h *Handler) SetAccountStatus(c echo.Context) error {
	userID, err := pathUserID(c)
	if err != nil {
		return invalid(c, err)
	}
	var req accountStatusRequest
	if err := bindValid(c, &req); err != nil {
		return invalid(c, err)
	}
	view, err := h.engine.SetAccountStatus(requestContext(c), userID, authkit.AccountStatus{
		Enabled: *req.Enabled,
		Locked:  *req.Locked,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, view)
}

func (h *Handler) RevokeTokens(c echo.Context) error {
	userID, err := pathUserID(c)
	if err != nil {
		return invalid(c, err)
	}
	n, err := h.engine.RevokeAllTokens(requestContext(c), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, map[string]int{"revoked": n})
}

func (h *Handler) PurgeTokens(c echo.Context) error {
	userID, err := pathUserID(c)
	if err != nil {
		return invalid(c, err)
	}
	n, err := h.engine.PurgeTokens(requestContext(c), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return ok(c, map[string]int{"deleted": n})
}

func (h *Handler) fail(c echo.Context, err error) error {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).
			Str("path", c.Path()).
			Str("request_id", requestID(c)).
			Msg("request failed")
	}
	return message(c, status, msg)
}

type validatable interface {
	Validate() error
}

func bindValid(c echo.Context, req validatable) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return req.Validate()
}

func pathUserID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// requestContext carries the client address into the engine for throttling
// and audit.
func requestContext(c echo.Context) context.Context {
	return authkit.WithClientIP(c.Request().Context(), c.RealIP())
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}
