package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/playerhub/internal/dependencies/clock"
	"github.com/mcoot/playerhub/internal/model"
)

// Auth failure codes
const (
	CodeInvalidToken   = "INVALID_TOKEN"
	CodeExpiredToken   = "EXPIRED_TOKEN"
	CodeIssuerMismatch = "ISSUER_MISMATCH"
	CodeMissingSubject = "MISSING_SUBJECT"
	CodeNotConfigured  = "PROVIDER_NOT_CONFIGURED"
)

// TokenVerifier checks a provider access token and returns the provider-side subject
type TokenVerifier interface {
	Verify(ctx context.Context, accessToken string) (subject string, err error)
}

// Verifiers maps each provider kind to its verifier
type Verifiers map[model.ProviderKind]TokenVerifier

// JWTVerifier accepts HS256 tokens signed with a shared secret
type JWTVerifier struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

// NewJWTVerifier creates a verifier. An empty issuer accepts any issuer.
func NewJWTVerifier(secret []byte, issuer string, clk clock.Clock) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer, clock: clk}
}

// Verify validates the signature, issuer and expiry and returns the sub claim
func (v *JWTVerifier) Verify(ctx context.Context, accessToken string) (string, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return "", &model.AuthFailure{Code: CodeInvalidToken, Message: "access token is required"}
	}
	if len(v.secret) == 0 {
		return "", &model.AuthFailure{Code: CodeNotConfigured, Message: "provider is not configured"}
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(accessToken, &claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return "", mapJWTError(err)
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return "", &model.AuthFailure{Code: CodeIssuerMismatch, Message: "access token issuer mismatch"}
	}
	if claims.ExpiresAt == nil {
		return "", &model.AuthFailure{Code: CodeInvalidToken, Message: "access token exp is required"}
	}
	if !claims.ExpiresAt.Time.After(v.clock.Now()) {
		return "", &model.AuthFailure{Code: CodeExpiredToken, Message: "access token is expired"}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", &model.AuthFailure{Code: CodeMissingSubject, Message: "access token sub is required"}
	}
	return claims.Subject, nil
}

// mapJWTError translates jwt library errors to auth failures
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return &model.AuthFailure{Code: CodeInvalidToken, Message: "access token signature is invalid"}
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return &model.AuthFailure{Code: CodeInvalidToken, Message: "access token alg is invalid"}
	}
	return &model.AuthFailure{Code: CodeInvalidToken, Message: "access token is invalid"}
}

// IssueProviderToken mints an access token the JWTVerifier with the same secret accepts.
// It stands in for the external provider in tests and development tooling.
func IssueProviderToken(secret []byte, issuer, subject string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
