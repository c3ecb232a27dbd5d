// Package auth implements the token verifier used to authenticate socket
// control operations. Tokens are HS256 JWTs whose subject claim carries the
// user id, matching the tokens the API layer issues at login.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Ph4tZ4/social-main/internal/domain"
)

const issuer = "social-main"

// Verifier validates credentials and extracts the subject user id.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier with the given signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyToken implements domain.TokenVerifier. Any parse, signature or
// expiry failure maps to ErrInvalidToken.
func (v *Verifier) VerifyToken(credential string) (string, error) {
	token, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject claim", domain.ErrInvalidToken)
	}
	return subject, nil
}

// IssueToken signs a token for the given user id. Used by the API layer at
// login and by tests.
func (v *Verifier) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
