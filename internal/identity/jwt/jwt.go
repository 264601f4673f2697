// Package jwt validates bearer tokens issued by the campus identity service.
package jwt

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/lionsgeek-toasts/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingClaim = errors.New("missing token claim")
	ErrUnknownRole  = errors.New("unknown role")
)

// Config contains token validation settings.
type Config struct {
	SecretKey string
	Issuer    string
}

// Claims are the token claims toastd reads. The subject is the user id and
// keys the toast session.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Validator validates HS256 tokens.
type Validator struct {
	secret []byte
	parser *jwt.Parser
}

// NewValidator creates a new token validator.
func NewValidator(cfg Config) *Validator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Validator{
		secret: []byte(cfg.SecretKey),
		parser: jwt.NewParser(opts...),
	}
}

// ValidateToken implements httputil.TokenValidator.
func (v *Validator) ValidateToken(_ context.Context, tokenString string) (string, domain.Role, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	role := domain.Role(claims.Role)
	if !role.IsValid() {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}

	return claims.Subject, role, nil
}
