package reset

import (
	"strconv"
	"time"

	"github.com/MrEthical07/authkit/internal"
	"github.com/MrEthical07/authkit/store"
)

// IndexUserID is the secondary index linking reset tokens to their owner.
const IndexUserID = "user_id"

// DefaultTTL is the lifetime of a reset token when none is configured.
const DefaultTTL = 86400000 * time.Millisecond

// Token is one password reset credential. The raw value is handed out once
// by [Manager.CreateToken]; the store only sees its hash.
type Token struct {
	ID        int64     `json:"id"`
	Hash      string    `json:"hash"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

// Schema returns the store layout of reset tokens.
func Schema() store.Schema[Token] {
	return store.Schema[Token]{
		Name: "reset_tokens",
		Key:  func(t Token) string { return t.Hash },
		Indexes: func(t Token) []store.Index {
			return []store.Index{{Field: IndexUserID, Value: strconv.FormatInt(t.UserID, 10)}}
		},
	}
}

// HashToken returns the store key of a raw reset token.
func HashToken(token string) string {
	return internal.HashSecret(token)
}
