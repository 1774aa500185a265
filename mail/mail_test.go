package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestResetURL(t *testing.T) {
	assert.Equal(t, "https://app.example.com/reset-password?token=abc", ResetURL("https://app.example.com", "abc"))
	assert.Equal(t, "https://app.example.com/reset-password?token=a%2Bb%2Fc%3D", ResetURL("https://app.example.com/", "a+b/c="))
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf), "http://localhost:3000")

	require.NoError(t, s.SendResetLink(context.Background(), "user@example.com", "tok"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "user@example.com", line["to"])
	assert.Equal(t, "http://localhost:3000/reset-password?token=tok", line["reset_url"])
}

func TestNATSSenderPublishes(t *testing.T) {
	pub := &fakePublisher{}
	s := &NATSSender{pub: pub, subject: "mail.password-reset", baseURL: "https://app.example.com"}

	require.NoError(t, s.SendResetLink(context.Background(), "user@example.com", "tok"))
	assert.Equal(t, "mail.password-reset", pub.subject)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.data, &msg))
	assert.Equal(t, Message{
		To:       "user@example.com",
		Subject:  ResetSubject,
		ResetURL: "https://app.example.com/reset-password?token=tok",
	}, msg)
}

func TestNATSSenderErrors(t *testing.T) {
	s := NewNATSSender(nil, "mail.password-reset", "https://app.example.com")
	assert.ErrorIs(t, s.SendResetLink(context.Background(), "user@example.com", "tok"), ErrNoConnection)

	boom := errors.New("boom")
	s = &NATSSender{pub: &fakePublisher{err: boom}, subject: "mail.password-reset"}
	assert.ErrorIs(t, s.SendResetLink(context.Background(), "user@example.com", "tok"), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s = &NATSSender{pub: &fakePublisher{}, subject: "mail.password-reset"}
	assert.ErrorIs(t, s.SendResetLink(ctx, "user@example.com", "tok"), context.Canceled)
}
