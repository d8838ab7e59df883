package fieldauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/transportops/field-service-api/internal/domain"
	"github.com/transportops/field-service-api/internal/ports/out/kvstore"
)

var (
	// ErrInvalidBearerToken covers absent, expired and malformed bearer
	// tokens alike; the cache lookup cannot tell those apart and callers do
	// not need to.
	ErrInvalidBearerToken = errors.New("bearer token expired or invalid")
)

// FieldTokenTTL bounds how long an exchanged bearer token stays usable.
// Reuse within the TTL is allowed; there is no explicit revocation.
const FieldTokenTTL = 30 * time.Minute

// cacheKeyPrefix namespaces bearer claims in the shared cache.
const cacheKeyPrefix = "transport_field_token:"

// QRVerifier is the signed-token dependency of the exchange. Satisfied by
// qrtoken.Signer.
type QRVerifier interface {
	Verify(token string) (customer string, err error)
}

// Claims is what the cache holds per bearer token.
type Claims struct {
	Customer domain.CustomerID `json:"customer"`
}

// FieldToken is the exchange result handed to the field device.
type FieldToken struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
	Customer    domain.CustomerID
}

// Service exchanges signed QR tokens for short-lived opaque bearer tokens and
// resolves bearer tokens back to their cached claims.
type Service struct {
	verifier QRVerifier
	cache    kvstore.Store
	ttl      time.Duration
}

func NewService(verifier QRVerifier, cache kvstore.Store) *Service {
	return NewServiceWithTTL(verifier, cache, FieldTokenTTL)
}

// NewServiceWithTTL overrides the bearer-token lifetime; deployments tune it
// via FIELD_TOKEN_TTL.
func NewServiceWithTTL(verifier QRVerifier, cache kvstore.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = FieldTokenTTL
	}
	return &Service{verifier: verifier, cache: cache, ttl: ttl}
}

// ExchangeQRToken verifies the signed token and mints a bearer token whose
// claims live in the cache for the configured TTL. The QR token itself is
// never stored.
func (s *Service) ExchangeQRToken(ctx context.Context, qrToken string) (FieldToken, error) {
	customer, err := s.verifier.Verify(qrToken)
	if err != nil {
		return FieldToken{}, err
	}

	token, err := newOpaqueToken()
	if err != nil {
		return FieldToken{}, fmt.Errorf("mint field token: %w", err)
	}

	claims, err := json.Marshal(Claims{Customer: domain.CustomerID(customer)})
	if err != nil {
		return FieldToken{}, err
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+token, string(claims), s.ttl); err != nil {
		return FieldToken{}, fmt.Errorf("store field token claims: %w", err)
	}

	return FieldToken{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.ttl / time.Second),
		Customer:    domain.CustomerID(customer),
	}, nil
}

// ResolveBearer returns the claims cached for token, or ErrInvalidBearerToken
// when the token is unknown or its TTL has lapsed.
func (s *Service) ResolveBearer(ctx context.Context, token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidBearerToken
	}
	raw, ok, err := s.cache.Get(ctx, cacheKeyPrefix+token)
	if err != nil {
		return Claims{}, fmt.Errorf("load field token claims: %w", err)
	}
	if !ok {
		return Claims{}, ErrInvalidBearerToken
	}
	var c Claims
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Claims{}, ErrInvalidBearerToken
	}
	if c.Customer == "" {
		return Claims{}, ErrInvalidBearerToken
	}
	return c, nil
}

// newOpaqueToken returns 32 random bytes as unpadded base64url, mirroring the
// entropy of the tokens field devices already carry.
func newOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
