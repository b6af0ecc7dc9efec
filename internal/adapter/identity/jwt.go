package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/plantpulse/internal/domain"
)

// Claims is the token payload. The subject carries the actor id; the rest
// is what the issuer believed at signing time and is superseded by the
// actor store when the session is resolved.
type Claims struct {
	Name        string              `json:"name,omitempty"`
	Role        domain.Role         `json:"role,omitempty"`
	Permissions []domain.Permission `json:"permissions,omitempty"`
	Department  string              `json:"department,omitempty"`
	Shift       string              `json:"shift,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 bearer tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
	clock  clockwork.Clock
}

var _ domain.CredentialVerifier = (*JWTVerifier)(nil)

func NewJWTVerifier(secret, issuer string, clock clockwork.Clock) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), issuer: issuer, clock: clock}
}

func (v *JWTVerifier) Verify(_ context.Context, credential string) (domain.Actor, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(v.issuer),
	)

	token, err := parser.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return domain.Actor{}, classify(err)
	}
	if !token.Valid {
		return domain.Actor{}, domain.ErrUnknownCredential
	}
	if claims.Subject == "" {
		return domain.Actor{}, fmt.Errorf("%w: token has no subject", domain.ErrMalformedCredential)
	}

	return domain.Actor{
		ID:          claims.Subject,
		Name:        claims.Name,
		Role:        claims.Role,
		Permissions: claims.Permissions,
		Department:  claims.Department,
		Shift:       claims.Shift,
	}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", domain.ErrExpiredCredential, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", domain.ErrMalformedCredential, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrUnknownCredential, err)
	}
}

// Issue signs a token for actor valid for ttl. Used by the token CLI and tests.
func (v *JWTVerifier) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := v.clock.Now()
	claims := Claims{
		Name:        actor.Name,
		Role:        actor.Role,
		Permissions: actor.Permissions,
		Department:  actor.Department,
		Shift:       actor.Shift,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
