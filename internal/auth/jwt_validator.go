package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ScopeClaim is the private claim listing space-separated token scopes.
const ScopeClaim = "scope"

// TokenValidator validates structural and contextual properties of JWT tokens.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
	// Scope, when set, must appear in the token's scope claim.
	Scope string
}

// Validate ensures the supplied token satisfies issuer, audience, expiry,
// subject, scope and algorithm requirements.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}

	if algorithm == "" {
		return errors.New("auth: token missing algorithm")
	}
	if v.Algorithm != "" && algorithm != v.Algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}

	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.SubjectKey),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		options = append(options, jwt.WithAudience(v.Audience))
	}
	if v.Scope != "" {
		options = append(options, jwt.WithValidator(jwt.ValidatorFunc(func(_ context.Context, t jwt.Token) jwt.ValidationError {
			if !HasScope(t, v.Scope) {
				return jwt.NewValidationError(fmt.Errorf("auth: token lacks scope %q", v.Scope))
			}
			return nil
		})))
	}

	return jwt.Validate(tok, options...)
}

// HasScope reports whether the token's scope claim contains scope.
func HasScope(tok jwt.Token, scope string) bool {
	raw, ok := tok.Get(ScopeClaim)
	if !ok {
		return false
	}
	var scopes []string
	switch v := raw.(type) {
	case string:
		scopes = strings.Fields(v)
	case []any:
		for _, s := range v {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
	case []string:
		scopes = v
	}
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
