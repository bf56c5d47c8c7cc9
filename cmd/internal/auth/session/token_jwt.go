package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the credential payload: registered claims plus the identity
// attributes API consumers render without a user lookup.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"unique_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// TokenCodec signs and verifies self-contained credentials.
type TokenCodec interface {
	// Sign produces a serialized token for the principal with the given expiry.
	Sign(p Principal, now, expiresAt time.Time) (string, error)
	// Verify checks the signature, issuer, audience and expiry and returns the
	// embedded claims. Any failure maps to ErrTokenInvalid.
	Verify(tokenValue string, now time.Time) (Claims, error)
}

type hs256Codec struct {
	issuer   string
	audience string
	key      []byte
}

// NewHS256Codec builds a TokenCodec signing with HMAC-SHA256.
//
// The signature covers every embedded claim, so tampering with any of them
// invalidates the token. Keys shorter than 32 bytes are rejected by config
// loading before this constructor runs.
func NewHS256Codec(cfg Config) (TokenCodec, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrConfig
	}
	return &hs256Codec{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		key:      cfg.SigningKey,
	}, nil
}

func (c *hs256Codec) Sign(p Principal, now, expiresAt time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: p.Username,
		Email:    p.Email,
		Role:     p.Role,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
}

func (c *hs256Codec) Verify(tokenValue string, now time.Time) (Claims, error) {
	claims := Claims{}

	tok, err := jwt.ParseWithClaims(tokenValue, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrTokenInvalid
			}
			return c.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !tok.Valid || claims.Subject == "" {
		return Claims{}, ErrTokenInvalid
	}

	return claims, nil
}
