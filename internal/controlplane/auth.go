// Package controlplane exposes the order-entry surface (submit, cancel)
// as an HTTP API gated by a JWT bearer token, and implements the
// ControlPlane interface the rest of the engine depends on rather than
// importing usecase.Submitter directly.
package controlplane

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the operator-identity shape carried by the broker's own
// dashboard tokens: who is acting, and under what role, matters more to
// an execution engine's audit trail than anything else in the token.
type Claims struct {
	UserID string `json:"user_id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// ClaimsFromContext returns the Claims attached by JWTAuth, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// JWTAuth returns middleware validating an HS256-signed bearer token
// against secret. An empty secret disables auth entirely — the same
// escape hatch newthinker-atlas's APIKeyAuth gives an empty apiKey —
// so a local/paper deployment never needs a key to boot.
func JWTAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims := &Claims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid {
				writeError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IssueToken signs a short-lived token for an operator — used by tests and
// by whatever admin tooling mints tokens for dashboard sessions.
func IssueToken(secret []byte, userID, role string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer: "execengine",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
