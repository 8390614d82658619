package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/expertmarket/bookingengine/libs/httpx"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the caller. Role is "provider" for experts managing their calendar and
// "requester" for members booking time.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	Role   string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

func SignHS256(sub, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// Middleware resolves the caller identity. With a secret it requires a valid HS256 bearer
// token; without one it trusts the X-User-Id / X-Role headers set by the edge gateway.
// Requests without an identity pass through unauthenticated; handlers decide what needs one.
func Middleware(secret string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
				if userID != "" {
					r = r.WithContext(WithIdentity(r.Context(), Identity{
						UserID: userID,
						Role:   strings.TrimSpace(r.Header.Get("X-Role")),
					}))
				}
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(header, "Bearer ") {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid Authorization header")
				return
			}
			claims, err := ParseAndVerifyHS256(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")), secret)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			r = r.WithContext(WithIdentity(r.Context(), Identity{UserID: claims.Subject, Role: claims.Role}))
			next.ServeHTTP(w, r)
		})
	}
}
