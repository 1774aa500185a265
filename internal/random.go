package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

// OpaqueFormat selects the shape of opaque refresh and reset tokens.
type OpaqueFormat int

const (
	// OpaqueRandom is 32 random bytes, base64url without padding.
	OpaqueRandom OpaqueFormat = iota
	// OpaqueUUID is a random (version 4) UUID in canonical form.
	OpaqueUUID
)

const opaqueRandomSize = 32

// NewOpaqueToken returns a fresh, unpredictable token string. Opaque tokens
// are not signed: they are only meaningful as keys into the credential store.
func NewOpaqueToken(format OpaqueFormat) (string, error) {
	switch format {
	case OpaqueRandom:
		var raw [opaqueRandomSize]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return "", err
		}
		// base64url, no padding, compact
		return base64.RawURLEncoding.EncodeToString(raw[:]), nil
	case OpaqueUUID:
		id, err := uuid.NewRandom()
		if err != nil {
			return "", err
		}
		return id.String(), nil
	default:
		return "", errors.New("unsupported opaque token format")
	}
}

// OpaqueGenerator binds format into a generator func for the token managers.
func OpaqueGenerator(format OpaqueFormat) func() (string, error) {
	return func() (string, error) {
		return NewOpaqueToken(format)
	}
}

// WellFormedOpaque reports whether token could have been produced by
// NewOpaqueToken in format. It lets callers reject garbage before a store
// round trip.
func WellFormedOpaque(format OpaqueFormat, token string) bool {
	switch format {
	case OpaqueRandom:
		raw, err := base64.RawURLEncoding.DecodeString(token)
		return err == nil && len(raw) == opaqueRandomSize
	case OpaqueUUID:
		_, err := uuid.Parse(token)
		return err == nil && len(token) == 36
	default:
		return false
	}
}
