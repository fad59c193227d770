package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hartfield/leadflow/internal/messages"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller extracted from a verified token.
type Principal struct {
	UserID string
	Role   messages.Role
}

// RoleClaims are the JWT claims the engine issues and accepts.
type RoleClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// RoleJWT enforces an HMAC-signed JWT carrying a role claim. Requests
// without a valid token proceed as anonymous clients rather than being
// rejected: role checks happen at the filtering layer, never by hiding
// routes.
func RoleJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := Principal{Role: messages.RoleClient}
			if secret != "" {
				if p, ok := verifyBearer(r, secret); ok {
					principal = p
				}
			}
			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireElevated rejects callers whose role does not grant access to
// internal material. Mount after RoleJWT.
func RequireElevated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || !p.Role.Elevated() {
			http.Error(w, "insufficient role", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func verifyBearer(r *http.Request, secret string) (Principal, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return Principal{}, false
	}
	tokenString := strings.TrimPrefix(auth, "Bearer ")
	claims := RoleClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, false
	}
	role, ok := messages.ParseRole(claims.Role)
	if !ok {
		return Principal{}, false
	}
	return Principal{UserID: claims.Subject, Role: role}, true
}

// PrincipalFromContext returns the authenticated principal if present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
