// Package domain defines the core domain models for crmdesk.
//
// Domain models are pure value objects without any IO dependencies
// or framework coupling.
package domain

import (
	"maps"
	"strings"
	"time"
	"unicode"
)

// Durable storage keys holding the persisted session.
const (
	KeyToken           = "token"
	KeySubjectUniqueID = "cust_uniq_id"
	KeySubjectID       = "customerId"

	// KeyDeviceID holds the device identifier sent with backend requests.
	// It is not part of the session and survives logout.
	KeyDeviceID = "deviceId"
)

// SessionKeys lists every key owned by the session, in read order.
var SessionKeys = []string{KeyToken, KeySubjectUniqueID, KeySubjectID}

// Profile constraints.
const (
	MaxIdentifierLength = 128
	MaxExtraFields      = 16
	MaxExtraValueLength = 256
)

// Profile identifies the logged-in account.
//
// SubjectID maps to the backend's cust_id and SubjectUniqueID to cust_uniq_id.
type Profile struct {
	SubjectID       string            `json:"cust_id" yaml:"cust_id"`
	SubjectUniqueID string            `json:"cust_uniq_id" yaml:"cust_uniq_id"`
	Extra           map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Validate checks the profile at the login boundary.
// Returns ErrProfileValidation with the list of violations.
func (p Profile) Validate() error {
	var violations []string

	check := func(name, v string) {
		switch {
		case v == "":
			violations = append(violations, name+" is required")
		case len(v) > MaxIdentifierLength:
			violations = append(violations, name+" exceeds 128 characters")
		case strings.IndexFunc(v, unicode.IsControl) >= 0:
			violations = append(violations, name+" contains control characters")
		}
	}
	check("cust_id", p.SubjectID)
	check("cust_uniq_id", p.SubjectUniqueID)

	if len(p.Extra) > MaxExtraFields {
		violations = append(violations, "too many extra fields")
	}
	for k, v := range p.Extra {
		if len(v) > MaxExtraValueLength {
			violations = append(violations, "extra."+k+" exceeds 256 characters")
		}
	}

	if len(violations) > 0 {
		return ErrProfileValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	p.Extra = maps.Clone(p.Extra)
	return p
}

// Session is an immutable snapshot of the authentication state.
//
// A Session is never modified after it is published; every transition
// builds a new value.
type Session struct {
	// Token is the bearer token, empty when unauthenticated.
	Token string `json:"-" yaml:"-"`

	// Profile is the logged-in account, zero when unauthenticated.
	Profile Profile `json:"user" yaml:"user"`

	// ExpiresAt is the token's embedded expiry, zero when unknown.
	ExpiresAt time.Time `json:"expires_at,omitzero" yaml:"expires_at,omitempty"`

	IsAuthenticated bool `json:"is_authenticated" yaml:"is_authenticated"`

	// IsLoading is true only during the initial restore or an explicit refresh.
	IsLoading bool `json:"is_loading" yaml:"is_loading"`

	// LastError is informational and never gates behavior.
	LastError string `json:"last_error,omitempty" yaml:"last_error,omitempty"`

	// CheckedAt is when validity was last evaluated.
	CheckedAt time.Time `json:"checked_at,omitzero" yaml:"checked_at,omitempty"`
}

// LoadingSession is the state before the first restore completes.
func LoadingSession() *Session {
	return &Session{IsLoading: true}
}

// Unauthenticated builds a logged-out snapshot carrying an optional error.
func Unauthenticated(lastError string, now time.Time) *Session {
	return &Session{LastError: lastError, CheckedAt: now}
}

// Authenticated builds a logged-in snapshot.
func Authenticated(token string, profile Profile, expiresAt, now time.Time) *Session {
	return &Session{
		Token:           token,
		Profile:         profile.Clone(),
		ExpiresAt:       expiresAt,
		IsAuthenticated: true,
		CheckedAt:       now,
	}
}

// WithLoading returns a copy of the session with the loading flag set.
func (s *Session) WithLoading() *Session {
	clone := *s
	clone.Profile = s.Profile.Clone()
	clone.IsLoading = true
	return &clone
}

// TTL returns the remaining token lifetime relative to now.
// Returns 0 if expired or unknown.
func (s *Session) TTL(now time.Time) time.Duration {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SubjectID is shorthand for Profile.SubjectID.
func (s *Session) SubjectID() string {
	return s.Profile.SubjectID
}

// Equal reports whether two snapshots describe the same state.
func (s *Session) Equal(o *Session) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Token == o.Token &&
		s.Profile.SubjectID == o.Profile.SubjectID &&
		s.Profile.SubjectUniqueID == o.Profile.SubjectUniqueID &&
		maps.Equal(s.Profile.Extra, o.Profile.Extra) &&
		s.ExpiresAt.Equal(o.ExpiresAt) &&
		s.IsAuthenticated == o.IsAuthenticated &&
		s.IsLoading == o.IsLoading &&
		s.LastError == o.LastError
}

// Credentials are what the user types on the login screen.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that both fields are present.
func (c Credentials) Validate() error {
	switch {
	case strings.TrimSpace(c.Email) == "":
		return ErrMissingArgument.WithDetails("email is required")
	case c.Password == "":
		return ErrMissingArgument.WithDetails("password is required")
	}
	return nil
}

// LoginGrant is what the backend returns for accepted credentials.
type LoginGrant struct {
	Token   string
	Profile Profile
}
