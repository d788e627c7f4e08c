package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinKeyLength is the shortest HS256 signing key the codec accepts.
const MinKeyLength = 32

// Config configures a [Codec].
//
// SigningKey is copied at construction; later mutation of the caller's slice has no effect.
type Config struct {
	SigningKey []byte
	Issuer     string
	KeyID      string
	// Now overrides the clock used for iat/exp and expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Codec signs and verifies goSession tokens with a symmetric key.
//
// A Codec is immutable after construction and safe for concurrent use.
type Codec struct {
	key    []byte
	issuer string
	keyID  string
	now    func() time.Time
}

// NewCodec validates cfg and returns a ready [Codec].
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.SigningKey) < MinKeyLength {
		return nil, fmt.Errorf("signing key must be at least %d bytes", MinKeyLength)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)

	return &Codec{
		key:    key,
		issuer: strings.TrimSpace(cfg.Issuer),
		keyID:  strings.TrimSpace(cfg.KeyID),
		now:    now,
	}, nil
}

// Encode mints a token for subject with the given purpose and lifetime.
//
// Each call draws a fresh random UUID as the token id. Timestamps are whole seconds, so the
// effective lifetime may be up to one second shorter than ttl.
func (c *Codec) Encode(subject string, purpose Purpose, ttl time.Duration) (Token, error) {
	if subject == "" {
		return Token{}, errors.New("subject must not be empty")
	}
	if !purpose.Valid() {
		return Token{}, fmt.Errorf("unknown token purpose %q", purpose)
	}
	if ttl < time.Second {
		return Token{}, errors.New("token ttl must be at least one second")
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return Token{}, fmt.Errorf("generate token id: %w", err)
	}

	now := c.now()
	issuedAt := jwt.NewNumericDate(now)
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if c.keyID != "" {
		token.Header["kid"] = c.keyID
	}

	signed, err := token.SignedString(c.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{
		Value:     signed,
		ID:        claims.ID,
		Subject:   subject,
		Purpose:   purpose,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Decode verifies tokenStr and returns its claims when it was minted for expected.
//
// Checks run in order: structure, algorithm and signature, expiry, claim completeness,
// purpose. The first failing check decides the returned sentinel.
func (c *Codec) Decode(tokenStr string, expected Purpose) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if c.keyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != c.keyID {
				return nil, errors.New("unknown kid")
			}
		}
		return c.key, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ID == "" || claims.IssuedAt == nil {
		return nil, ErrMalformed
	}
	if !claims.ExpiresAt.Time.After(claims.IssuedAt.Time) {
		return nil, ErrMalformed
	}
	if !claims.Purpose.Valid() {
		return nil, ErrMalformed
	}
	if claims.Purpose != expected {
		return nil, ErrWrongPurpose
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
