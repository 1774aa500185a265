package reset

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authkit/store"
)

// ErrNotFound is returned by Validate for absent, used and expired tokens alike.
var ErrNotFound = errors.New("reset token not found")

// Config holds the immutable settings of a [Manager].
type Config struct {
	// TTL defaults to [DefaultTTL].
	TTL      time.Duration
	Generate func() (string, error)
	Clock    func() time.Time
}

// Manager creates, validates and consumes reset tokens. It is safe for
// concurrent use.
type Manager struct {
	tokens store.Collection[Token]
	config Config
}

// NewManager validates cfg and returns a Manager over tokens.
func NewManager(tokens store.Collection[Token], cfg Config) (*Manager, error) {
	if tokens == nil {
		return nil, errors.New("reset: token collection required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, errors.New("reset: TTL must be > 0")
	}
	if cfg.Generate == nil {
		return nil, errors.New("reset: token generator required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Manager{tokens: tokens, config: cfg}, nil
}

// CreateToken deletes every reset token of userID, stores a fresh unused one
// and returns its raw value.
func (m *Manager) CreateToken(ctx context.Context, userID int64) (string, error) {
	if _, err := m.tokens.DeleteAllByIndex(ctx, IndexUserID, strconv.FormatInt(userID, 10)); err != nil {
		return "", err
	}

	value, err := m.config.Generate()
	if err != nil {
		return "", err
	}
	id, err := m.tokens.NextID(ctx)
	if err != nil {
		return "", err
	}

	now := m.config.Clock().UTC()
	tok := Token{
		ID:        id,
		Hash:      HashToken(value),
		UserID:    userID,
		ExpiresAt: now.Add(m.config.TTL),
		CreatedAt: now,
	}
	if err := m.tokens.Put(ctx, tok); err != nil {
		return "", err
	}

	return value, nil
}

// Validate returns the record for token when it is unused and unexpired.
// Any other outcome, including a missing record, is [ErrNotFound]. Store
// failures are returned as they are.
func (m *Manager) Validate(ctx context.Context, token string) (Token, error) {
	if token == "" {
		return Token{}, ErrNotFound
	}

	tok, err := m.tokens.Get(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Token{}, ErrNotFound
		}
		return Token{}, err
	}
	if tok.Used || !tok.ExpiresAt.After(m.config.Clock()) {
		return Token{}, ErrNotFound
	}

	return tok, nil
}

// MarkUsed flips the used flag of token. Unknown or already used tokens are a
// no-op. Call it only after the password change it authorised is durable.
func (m *Manager) MarkUsed(ctx context.Context, token string) error {
	tok, err := m.tokens.Get(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if tok.Used {
		return nil
	}

	tok.Used = true
	return m.tokens.Put(ctx, tok)
}
