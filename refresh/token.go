package refresh

import (
	"strconv"
	"time"

	"github.com/MrEthical07/authkit/internal"
	"github.com/MrEthical07/authkit/store"
)

// IndexUserID is the secondary index linking tokens to their owner.
const IndexUserID = "user_id"

// Token is one issued refresh credential. Only Hash is persisted; Token holds
// the raw value on the record returned by [Manager.Issue] and is empty on
// records read back from the store.
type Token struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"`
	Hash      string    `json:"hash"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// Schema returns the store layout of refresh tokens. Records are keyed by the
// SHA-256 of the opaque token, never the token itself.
func Schema() store.Schema[Token] {
	return store.Schema[Token]{
		Name: "refresh_tokens",
		Key:  func(t Token) string { return t.Hash },
		Indexes: func(t Token) []store.Index {
			return []store.Index{{Field: IndexUserID, Value: userKey(t.UserID)}}
		},
	}
}

// HashToken returns the store key of a raw refresh token.
func HashToken(token string) string {
	return internal.HashSecret(token)
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
