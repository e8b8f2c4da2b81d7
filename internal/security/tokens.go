// Package security issues session access tokens and hashes one-time codes.
package security

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed or fails validation.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims holds the JWT claims of an access token issued for a fully
// authenticated session.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID  string `json:"session_id"`
	AuthMethod string `json:"auth_method"` // "asl" or "otp_fallback"
}

// TokenProvider issues and validates access tokens with RS256 or ES256.
// Tokens are issued only when a session reaches AUTHENTICATED.
type TokenProvider struct {
	keys     *SigningKeys
	issuer   string
	audience string
	ttl      time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given keys.
func NewTokenProvider(keys *SigningKeys, issuer, audience string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{keys: keys, issuer: issuer, audience: audience, ttl: ttl}
}

// Issue signs an access token for the authenticated session. authMethod
// records which flow completed ("asl" or "otp_fallback").
func (p *TokenProvider) Issue(sessionID, userID, authMethod string) (token string, expiresAt time.Time, err error) {
	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        hex.EncodeToString(jti),
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID:  sessionID,
		AuthMethod: authMethod,
	}
	var method jwt.SigningMethod
	switch p.keys.Public.(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", time.Time{}, ErrInvalidKey
	}
	token, err = jwt.NewWithClaims(method, claims).SignedString(p.keys.Private)
	return token, expiresAt, err
}

// Validate parses an access token and returns its claims after checking
// signature, expiry, issuer, and audience.
func (p *TokenProvider) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.keys.Public, nil
		default:
			return nil, ErrInvalidToken
		}
	}, jwt.WithIssuer(p.issuer), jwt.WithAudience(p.audience))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
