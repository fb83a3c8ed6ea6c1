// Package security signs and verifies access tokens and hashes mentor secrets.
package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/call-service/internal/domain"

	"github.com/golang-jwt/jwt"
)

var (
	ErrTokenExpired   = errors.New("token expired")
	ErrInvalidIssuer  = errors.New("invalid token issuer")
	ErrInvalidSubject = errors.New("invalid token subject")
)

// TokenSigner issues HS256 tokens with a shared secret.
type TokenSigner struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	clockSkew time.Duration
	now       func() time.Time
}

func NewTokenSigner(secret, issuer string, ttl, clockSkew time.Duration) *TokenSigner {
	return &TokenSigner{
		secret:    []byte(secret),
		issuer:    issuer,
		ttl:       ttl,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}

type AccessClaims struct {
	jwt.StandardClaims
	Name string      `json:"name,omitempty"`
	Role domain.Role `json:"role,omitempty"`
}

// Sign issues a token with sub=identity.ID; the expiry is returned alongside.
func (s *TokenSigner) Sign(identity domain.Identity) (string, time.Time, error) {
	if identity.ID == "" {
		return "", time.Time{}, ErrInvalidSubject
	}

	now := s.now()
	exp := now.Add(s.ttl)
	claims := AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   identity.ID,
			Issuer:    s.issuer,
			IssuedAt:  now.Unix(),
			NotBefore: now.Add(-s.clockSkew).Unix(),
			ExpiresAt: exp.Unix(),
		},
		Name: identity.Name,
		Role: identity.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// Parse verifies signature, issuer and time claims and returns the identity the token carries.
// Every failure wraps domain.ErrInvalidToken.
func (s *TokenSigner) Parse(tokenStr string) (domain.Identity, error) {
	claims := &AccessClaims{}
	parser := jwt.Parser{SkipClaimsValidation: true} // time claims are checked below with skew

	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected alg %q", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !token.Valid {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	if !claims.VerifyIssuer(s.issuer, true) {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, ErrInvalidIssuer)
	}

	now := s.now()
	nbf := time.Unix(claims.NotBefore, 0).Add(-s.clockSkew)
	exp := time.Unix(claims.ExpiresAt, 0).Add(s.clockSkew)
	if now.Before(nbf) || now.After(exp) {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, ErrTokenExpired)
	}
	if claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, ErrInvalidSubject)
	}

	return domain.Identity{
		ID:   claims.Subject,
		Name: claims.Name,
		Role: domain.ParseRole(string(claims.Role)),
	}, nil
}
