package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Decode errors.
var (
	ErrEmpty     = errors.New("token: empty")
	ErrMalformed = errors.New("token: malformed")
	ErrNoExpiry  = errors.New("token: no expiry claim")
)

// Claims holds the registered claims the client cares about.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var parser = jwt.NewParser()

// Decode reads the registered claims of a JWT without verifying its signature.
// Only the payload segment is decoded; the header, including alg, is ignored.
func Decode(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrEmpty
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: want 3 segments, got %d", ErrMalformed, len(parts))
	}
	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}

	var rc jwt.RegisteredClaims
	if err := json.Unmarshal(payload, &rc); err != nil {
		return Claims{}, fmt.Errorf("%w: claims: %v", ErrMalformed, err)
	}

	c := Claims{Subject: rc.Subject}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt == nil {
		return c, ErrNoExpiry
	}
	c.ExpiresAt = rc.ExpiresAt.Time
	return c, nil
}

// ExpiryOf returns the token's embedded expiry.
// The boolean is false for malformed tokens and tokens without exp.
func ExpiryOf(raw string) (time.Time, bool) {
	c, err := Decode(raw)
	if err != nil {
		return time.Time{}, false
	}
	return c.ExpiresAt, true
}

// Check reports why a token is unusable at now, or nil when its expiry
// is strictly in the future.
func Check(raw string, now time.Time) (time.Time, error) {
	c, err := Decode(raw)
	if err != nil {
		return time.Time{}, err
	}
	if !c.ExpiresAt.After(now) {
		return c.ExpiresAt, ErrExpired
	}
	return c.ExpiresAt, nil
}

// ErrExpired is returned by Check when the expiry is at or before now.
var ErrExpired = errors.New("token: expired")
