package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authkit/store"
)

// Config holds the immutable settings of a [Manager].
type Config struct {
	// TTL is the lifetime of a newly issued token.
	TTL time.Duration
	// Generate returns a fresh opaque token string.
	Generate func() (string, error)
	// Clock overrides time.Now.
	Clock func() time.Time
}

// Manager issues, looks up, revokes and purges refresh tokens.
//
// Manager holds no mutable state of its own and is safe for concurrent use.
type Manager struct {
	tokens store.Collection[Token]
	config Config
}

// NewManager validates cfg and returns a Manager over tokens.
func NewManager(tokens store.Collection[Token], cfg Config) (*Manager, error) {
	if tokens == nil {
		return nil, errors.New("refresh: token collection required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("refresh: TTL must be > 0")
	}
	if cfg.Generate == nil {
		return nil, errors.New("refresh: token generator required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Manager{tokens: tokens, config: cfg}, nil
}

// TTL reports the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue revokes every existing token of userID and then stores a new one that
// expires TTL from now. The revoke step always completes before the insert.
func (m *Manager) Issue(ctx context.Context, userID int64) (Token, error) {
	if _, err := m.RevokeAll(ctx, userID); err != nil {
		return Token{}, err
	}

	value, err := m.config.Generate()
	if err != nil {
		return Token{}, err
	}
	id, err := m.tokens.NextID(ctx)
	if err != nil {
		return Token{}, err
	}

	now := m.config.Clock().UTC()
	tok := Token{
		ID:        id,
		Token:     value,
		Hash:      HashToken(value),
		UserID:    userID,
		ExpiresAt: now.Add(m.config.TTL),
		CreatedAt: now,
	}
	if err := m.tokens.Put(ctx, tok); err != nil {
		return Token{}, err
	}

	return tok, nil
}

// Lookup fetches the record for token without judging it. ok is false
// when no such token exists; callers apply [Manager.IsUsable] themselves.
func (m *Manager) Lookup(ctx context.Context, token string) (Token, bool, error) {
	if token == "" {
		return Token{}, false, nil
	}

	tok, err := m.tokens.Get(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Token{}, false, nil
		}
		return Token{}, false, err
	}
	return tok, true, nil
}

// IsUsable reports whether tok is neither revoked nor expired.
func (m *Manager) IsUsable(tok Token) bool {
	return !tok.Revoked && tok.ExpiresAt.After(m.config.Clock())
}

// RevokeByToken marks a single token revoked. Unknown and already revoked
// tokens are a silent no-op.
func (m *Manager) RevokeByToken(ctx context.Context, token string) error {
	tok, ok, err := m.Lookup(ctx, token)
	if err != nil || !ok || tok.Revoked {
		return err
	}

	tok.Revoked = true
	return m.tokens.Put(ctx, tok)
}

// RevokeAll marks every token of userID revoked and reports how many records
// changed. Records are kept; see [Manager.PurgeAll] for hard deletion.
func (m *Manager) RevokeAll(ctx context.Context, userID int64) (int, error) {
	tokens, err := m.tokens.FindByIndex(ctx, IndexUserID, userKey(userID))
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, tok := range tokens {
		if tok.Revoked {
			continue
		}
		tok.Revoked = true
		if err := m.tokens.Put(ctx, tok); err != nil {
			return revoked, err
		}
		revoked++
	}

	return revoked, nil
}

// PurgeAll hard-deletes every token of userID.
func (m *Manager) PurgeAll(ctx context.Context, userID int64) (int, error) {
	return m.tokens.DeleteAllByIndex(ctx, IndexUserID, userKey(userID))
}

// Active returns the usable tokens of userID. Outside of a racing Issue there
// is at most one.
func (m *Manager) Active(ctx context.Context, userID int64) ([]Token, error) {
	tokens, err := m.tokens.FindByIndex(ctx, IndexUserID, userKey(userID))
	if err != nil {
		return nil, err
	}

	var out []Token
	for _, tok := range tokens {
		if m.IsUsable(tok) {
			out = append(out, tok)
		}
	}
	return out, nil
}
