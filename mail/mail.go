package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// ResetSubject is the subject line of password reset messages.
const ResetSubject = "Password Reset Request"

// ErrNoConnection is returned by a NATSSender built without a connection.
var ErrNoConnection = errors.New("mail: nats connection is nil")

// ResetURL builds the link a user follows to choose a new password.
func ResetURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

// LogSender writes reset links to a logger instead of delivering them.
// It is meant for local development.
type LogSender struct {
	logger  zerolog.Logger
	baseURL string
}

func NewLogSender(logger zerolog.Logger, baseURL string) *LogSender {
	return &LogSender{logger: logger, baseURL: baseURL}
}

func (s *LogSender) SendResetLink(_ context.Context, email, token string) error {
	s.logger.Info().
		Str("to", email).
		Str("subject", ResetSubject).
		Str("reset_url", ResetURL(s.baseURL, token)).
		Msg("password reset link")
	return nil
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the payload NATSSender publishes for an external mailer.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	ResetURL string `json:"reset_url"`
}

// NATSSender hands reset links to a mailer service over NATS.
type NATSSender struct {
	pub     publisher
	subject string
	baseURL string
}

func NewNATSSender(conn *nats.Conn, subject, baseURL string) *NATSSender {
	s := &NATSSender{subject: subject, baseURL: baseURL}
	if conn != nil {
		s.pub = conn
	}
	return s
}

func (s *NATSSender) SendResetLink(ctx context.Context, email, token string) error {
	if s.pub == nil {
		return ErrNoConnection
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(Message{
		To:       email,
		Subject:  ResetSubject,
		ResetURL: ResetURL(s.baseURL, token),
	})
	if err != nil {
		return err
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		return fmt.Errorf("mail: publish %s: %w", s.subject, err)
	}
	return nil
}
