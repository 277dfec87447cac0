package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/atoll-quote/internal/common"
)

// QuotesScope is the scope a consultant token needs for the quote API.
const QuotesScope = "quotes"

const defaultTokenTTL = 8 * time.Hour

// ErrInvalidAPIKey is returned when a service API key does not match the configured hash.
var ErrInvalidAPIKey = errors.New("auth: invalid api key")

// Verifier authenticates consultants by bearer token and internal services by API key.
type Verifier struct {
	secret     []byte
	apiKeyHash string
	validator  TokenValidator
	issuer     string
	audience   string
	now        func() time.Time
}

// Config configures the verifier.
type Config struct {
	Secret     string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
	APIKeyHash string
}

// NewVerifier constructs a Verifier. Tokens are HS256 with the quotes scope.
func NewVerifier(cfg Config) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "atoll-quote"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "atoll-consultants"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Verifier{
		secret:     []byte(secret),
		apiKeyHash: strings.TrimSpace(cfg.APIKeyHash),
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
			Scope:     QuotesScope,
		},
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}, nil
}

// WithNow allows tests to override the time provider.
func (v *Verifier) WithNow(now func() time.Time) {
	if now != nil {
		v.now = now
	}
}

// APIKeysEnabled reports whether a service API key hash is configured.
func (v *Verifier) APIKeysEnabled() bool { return v.apiKeyHash != "" }

// ParseAccessToken validates a consultant token and returns the subject (consultant ID).
func (v *Verifier) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if v.validator.Algorithm != "" && algorithm != v.validator.Algorithm {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.secret), jwt.WithValidate(false))
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := v.validator.Validate(parsed, algorithm, v.now()); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return "", common.NewAppError("TOKEN_EXPIRED", "token expired", http.StatusUnauthorized, err)
		}
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	return parsed.Subject(), nil
}

// VerifyAPIKey compares key against the configured argon2id hash.
func (v *Verifier) VerifyAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if v.apiKeyHash == "" || key == "" {
		return ErrInvalidAPIKey
	}
	match, err := argon2id.ComparePasswordAndHash(key, v.apiKeyHash)
	if err != nil {
		return fmt.Errorf("auth: compare api key: %w", err)
	}
	if !match {
		return ErrInvalidAPIKey
	}
	return nil
}

// IssueToken signs a consultant token carrying the quotes scope.
func (v *Verifier) IssueToken(consultantID string, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(consultantID) == "" {
		return "", time.Time{}, errors.New("auth: consultant id is required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	now := v.now()
	expiresAt := now.Add(ttl)
	token, err := jwt.NewBuilder().
		Subject(consultantID).
		Issuer(v.issuer).
		Audience([]string{v.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-v.validator.ClockSkew)).
		Expiration(expiresAt).
		Claim(ScopeClaim, QuotesScope).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, v.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// HashAPIKey derives the argon2id hash stored in SERVICE_API_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("auth: api key is required")
	}
	return argon2id.CreateHash(key, argon2id.DefaultParams)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", fmt.Errorf("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}
