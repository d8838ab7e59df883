package qrtoken

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidToken is the base class for every verification failure.
	// Callers treat all sub-reasons as an authorization failure; the
	// sub-reasons exist for logs and tests, not for partial trust.
	ErrInvalidToken = errors.New("invalid token")

	ErrMalformed        = fmt.Errorf("%w: malformed encoding", ErrInvalidToken)
	ErrBadVersion       = fmt.Errorf("%w: unsupported version", ErrInvalidToken)
	ErrMissingSubject   = fmt.Errorf("%w: missing customer", ErrInvalidToken)
	ErrExpired          = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrMissingSignature = fmt.Errorf("%w: missing signature", ErrInvalidToken)
	ErrBadSignature     = fmt.Errorf("%w: bad signature", ErrInvalidToken)
)

// tokenVersion is baked into every payload; bump it only together with a
// change to the canonical serialization below.
const tokenVersion = 1

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Signer mints and verifies HMAC-SHA256-signed customer tokens.
//
// Tokens are self-contained: base64url (no padding) of a compact JSON object
// with keys serialized in sorted order. The signature covers the canonical
// serialization of {customer, exp, v}; any change to field order, separators
// or escaping breaks verification of previously issued tokens.
type Signer struct {
	secret []byte
	clock  Clock
}

func New(secret string) (*Signer, error) {
	return NewWithClock(secret, nil)
}

func NewWithClock(secret string, clock Clock) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("qrtoken: empty HMAC secret")
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Signer{secret: []byte(secret), clock: clock}, nil
}

// unsignedPayload and signedPayload declare fields in sorted key order so the
// serialized form is canonical (encoding/json emits struct fields in
// declaration order).
type unsignedPayload struct {
	Customer string `json:"customer"`
	Exp      int64  `json:"exp"`
	V        int    `json:"v"`
}

type signedPayload struct {
	Customer string `json:"customer"`
	Exp      int64  `json:"exp"`
	Sig      string `json:"sig"`
	V        int    `json:"v"`
}

// Mint issues a token bound to customer, expiring ttl from now.
func (s *Signer) Mint(customer string, ttl time.Duration) (string, error) {
	if customer == "" {
		return "", errors.New("qrtoken: empty customer")
	}
	exp := s.clock.Now().Add(ttl).Unix()

	raw, err := canonicalJSON(unsignedPayload{Customer: customer, Exp: exp, V: tokenVersion})
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(raw)
	sig := b64urlEncode(mac.Sum(nil))

	payload, err := canonicalJSON(signedPayload{Customer: customer, Exp: exp, Sig: sig, V: tokenVersion})
	if err != nil {
		return "", err
	}
	return b64urlEncode(payload), nil
}

// Verify checks integrity and expiry and returns the bound customer.
func (s *Signer) Verify(token string) (string, error) {
	raw, err := b64urlDecode(token)
	if err != nil {
		return "", ErrMalformed
	}
	var p signedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", ErrMalformed
	}

	if p.V != tokenVersion {
		return "", ErrBadVersion
	}
	if p.Customer == "" {
		return "", ErrMissingSubject
	}
	if p.Exp != 0 && s.clock.Now().Unix() > p.Exp {
		return "", ErrExpired
	}
	if p.Sig == "" {
		return "", ErrMissingSignature
	}

	sig, err := b64urlDecode(p.Sig)
	if err != nil {
		return "", ErrBadSignature
	}
	unsigned, err := canonicalJSON(unsignedPayload{Customer: p.Customer, Exp: p.Exp, V: tokenVersion})
	if err != nil {
		return "", ErrInvalidToken
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(unsigned)
	if !hmac.Equal(mac.Sum(nil), sig) {
		return "", ErrBadSignature
	}
	return p.Customer, nil
}

// canonicalJSON serializes with compact separators and without HTML escaping,
// matching the wire format tokens are verified against.
func canonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
