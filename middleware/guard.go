package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authkit"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Guard.
func IdentityFromContext(ctx context.Context) (*authkit.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*authkit.Identity)
	return id, ok && id != nil
}

// WithIdentity stores id in ctx the way Guard does.
func WithIdentity(ctx context.Context, id *authkit.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IPExtractor derives the client address used for throttling. It has the
// shape of echo.IPExtractor.
type IPExtractor func(*http.Request) string

// Option configures Guard.
type Option func(*guardOptions)

type guardOptions struct {
	clientIP IPExtractor
}

// WithIPExtractor replaces the default DirectIP. Use it to honour forwarding
// headers set by proxies you trust.
func WithIPExtractor(fn IPExtractor) Option {
	return func(o *guardOptions) {
		if fn != nil {
			o.clientIP = fn
		}
	}
}

// Guard authenticates the bearer token of every request with
// Engine.AuthenticateRequest and stores the resulting identity in the request
// context. Requests without a usable token get a 401 envelope; store
// failures get a 500.
func Guard(engine *authkit.Engine, opts ...Option) func(http.Handler) http.Handler {
	o := guardOptions{clientIP: DirectIP}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := authkit.WithClientIP(r.Context(), o.clientIP(r))
			id, err := engine.AuthenticateRequest(ctx, token)
			if errors.Is(err, authkit.ErrUnauthenticated) {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
		})
	}
}

// RequireRole admits only identities holding role. It must run behind Guard.
func RequireRole(role authkit.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if id.Role != role {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

// DirectIP returns the address of the connected peer. Forwarding headers
// are ignored since any client can set them.
func DirectIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}
