package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/identity"
)

// Middleware validates bearer session tokens and injects the Identity into
// the request context for downstream handlers.
type Middleware struct{ secret []byte }

// NewMiddleware creates the auth middleware with the signing secret.
func NewMiddleware(secret []byte) *Middleware { return &Middleware{secret: secret} }

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		tenantID, err := uuid.Parse(claims.TenantID)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		operatorID, err := uuid.Parse(claims.Subject)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := identity.WithIdentity(r.Context(), identity.Identity{TenantID: tenantID, OperatorID: operatorID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
