package middleware

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mfscpayload-690/commons-depicts-analyzer/internal/api/response"
)

// Admin guards destructive endpoints with a bcrypt-hashed token.
type Admin struct {
	tokenHash string
}

// NewAdmin creates the admin middleware. An empty hash disables the guarded
// endpoints entirely.
func NewAdmin(tokenHash string) *Admin {
	return &Admin{tokenHash: tokenHash}
}

// Require validates the Bearer token against the configured hash.
func (a *Admin) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.tokenHash == "" {
			response.Error(w, http.StatusForbidden,
				"ADMIN_DISABLED", "Admin endpoints are not configured", nil)
			return
		}

		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(a.tokenHash), []byte(token)) != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid admin token", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
