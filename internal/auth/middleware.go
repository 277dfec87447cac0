package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/atoll-quote/internal/common"
)

// Headers read by the middleware.
const (
	APIKeyHeader       = "X-API-Key"
	ConsultantIDHeader = "X-Consultant-ID"
)

// ServicePrincipal is the consultant id recorded for API-key calls that do
// not act on behalf of a consultant.
const ServicePrincipal = "service"

var errNoToken = errors.New("auth: token missing")

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Verifier *Verifier
}

// RequireAuth enforces that a valid bearer token or service API key is
// present before executing the next handler.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				status := appErr.HTTPStatus
				if status == 0 {
					status = http.StatusUnauthorized
				}
				common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid credentials", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	if m.Verifier == nil {
		return r.Context(), errors.New("auth: verifier not configured")
	}
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		if !m.Verifier.APIKeysEnabled() {
			return r.Context(), common.NewAppError("UNAUTHORIZED", "api keys are not accepted", http.StatusUnauthorized, nil)
		}
		if err := m.Verifier.VerifyAPIKey(key); err != nil {
			return r.Context(), common.NewAppError("UNAUTHORIZED", "invalid api key", http.StatusUnauthorized, err)
		}
		principal := strings.TrimSpace(r.Header.Get(ConsultantIDHeader))
		if principal == "" {
			principal = ServicePrincipal
		}
		return common.WithConsultantID(r.Context(), principal, common.AuthMethodAPIKey), nil
	}
	token := extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	consultantID, err := m.Verifier.ParseAccessToken(token)
	if err != nil {
		return r.Context(), err
	}
	return common.WithConsultantID(r.Context(), consultantID, common.AuthMethodBearer), nil
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
