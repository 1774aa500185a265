package natsapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/authkit"
)

// Error codes carried in VerifyResponse.Error.
const (
	ErrCodeInvalidPayload  = "invalid_payload"
	ErrCodeUnauthenticated = "unauthenticated"
	ErrCodeUnavailable     = "unavailable"
)

// Authenticator resolves a bearer token. *authkit.Engine satisfies it.
type Authenticator interface {
	AuthenticateRequest(ctx context.Context, bearer string) (*authkit.Identity, error)
}

type VerifyRequest struct {
	Token string `json:"token"`
}

type VerifyResponse struct {
	OK     bool   `json:"ok"`
	UserID int64  `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Error  string `json:"error,omitempty"`
}

// VerifyHandler answers token verification requests from other services.
type VerifyHandler struct {
	auth      Authenticator
	timeout   time.Duration
	logger    zerolog.Logger
	respondFn func(msg *nats.Msg, resp VerifyResponse)
}

// NewVerifyHandler returns a handler that checks tokens with auth. Each
// request is bounded by a three second timeout.
func NewVerifyHandler(auth Authenticator, logger zerolog.Logger) *VerifyHandler {
	return &VerifyHandler{
		auth:      auth,
		timeout:   3 * time.Second,
		logger:    logger,
		respondFn: respond,
	}
}

// Subscribe joins queue on subject so replicas share the load.
func (h *VerifyHandler) Subscribe(conn *nats.Conn, subject, queue string) (*nats.Subscription, error) {
	if conn == nil {
		return nil, errors.New("nats connection is nil")
	}
	return conn.QueueSubscribe(subject, queue, h.Handle)
}

func (h *VerifyHandler) Handle(msg *nats.Msg) {
	var req VerifyRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Token == "" {
		h.respondFn(msg, VerifyResponse{Error: ErrCodeInvalidPayload})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	id, err := h.auth.AuthenticateRequest(ctx, req.Token)
	if err != nil {
		if errors.Is(err, authkit.ErrUnauthenticated) {
			h.respondFn(msg, VerifyResponse{Error: ErrCodeUnauthenticated})
			return
		}
		h.logger.Warn().Err(err).Msg("token verification failed")
		h.respondFn(msg, VerifyResponse{Error: ErrCodeUnavailable})
		return
	}

	h.respondFn(msg, VerifyResponse{
		OK:     true,
		UserID: id.UserID,
		Email:  id.Email,
		Role:   string(id.Role),
	})
}

func respond(msg *nats.Msg, resp VerifyResponse) {
	data, _ := json.Marshal(resp)
	_ = msg.Respond(data)
}
