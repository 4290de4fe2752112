package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/watchx/internal/shared"
	"github.com/golang-jwt/jwt/v4"
)

// DefaultTokenTTL is the lifetime of tokens issued by `watchx user create`.
const DefaultTokenTTL = 90 * 24 * time.Hour

// Claims identify the user a bearer token was issued to.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for userID. A zero ttl issues a token without expiry.
func SignToken(secret []byte, userID, name string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: server secret is empty", shared.ErrInvalidConfig)
	}

	now := time.Now()
	claims := Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseToken validates tokenStr and returns its claims.
func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.UserID == "" {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

type claimsKey struct{}

// ClaimsFromContext returns the claims stored by [AuthMiddleware].
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware rejects requests without a valid bearer token with 401.
func AuthMiddleware(secret []byte) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, shared.ErrAuthRequired)
				return
			}

			claims, err := ParseToken(secret, token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// OwnerMiddleware answers 403 unless the {userId} path segment matches the token's user.
// It must run inside [AuthMiddleware].
func OwnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, shared.ErrAuthRequired)
			return
		}
		if r.PathValue("userId") != claims.UserID {
			writeError(w, http.StatusForbidden, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
