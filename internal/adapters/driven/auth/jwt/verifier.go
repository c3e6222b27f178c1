// Package jwt verifies bearer tokens and maps them to owner identities.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/core/ports/driven"
)

// Ensure Verifier implements the interface.
var _ driven.OwnerVerifier = (*Verifier)(nil)

// Issuer is the iss claim of tokens minted by Issue.
const Issuer = "studyrag"

// Verifier checks HS256 tokens. The subject claim is the owner ID.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier creates a verifier for secret.
func NewVerifier(secret string) (*Verifier, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("%w: jwt secret must be at least 16 bytes", domain.ErrInvalidInput)
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify returns the owner ID carried by credential.
func (v *Verifier) Verify(_ context.Context, credential string) (string, error) {
	if credential == "" {
		return "", fmt.Errorf("%w: missing token", domain.ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	return claims.Subject, nil
}

// Issue mints a token for ownerID valid for ttl.
func (v *Verifier) Issue(ownerID string, ttl time.Duration) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("%w: owner is required", domain.ErrInvalidInput)
	}
	now := v.now()
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
