// Package identity validates third-party identity assertions (currently
// Google ID tokens) and normalizes them into the account attributes the
// engine stores.
package identity

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

// Validation errors, one per claim check. Callers compare with errors.Is.
var (
	ErrIssuer           = errors.New("identity: unrecognized token issuer")
	ErrAudience         = errors.New("identity: token audience does not match the configured client id")
	ErrSubject          = errors.New("identity: subject is empty or too long")
	ErrExpired          = errors.New("identity: token is expired")
	ErrEmailNotVerified = errors.New("identity: email address is not verified")
	ErrEmail            = errors.New("identity: email address is malformed")
	ErrNameMissing      = errors.New("identity: name claim is missing")
)

// ErrClientID marks a misconfigured validator, as opposed to bad claims.
var ErrClientID = errors.New("identity: google client id is missing or malformed")

var (
	clientIDPattern    = regexp.MustCompile(`^[0-9]+-[0-9a-z]+\.apps\.googleusercontent\.com$`)
	displayNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 .'-]*$`)
)

// googleIssuers lists the issuer strings Google signs ID tokens with.
var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// Claims is a decoded ID-token claim set. EmailVerified carries the raw
// string form of the claim; anything but the literal "true" fails
// validation, including a JSON boolean. HasName distinguishes an absent
// name claim from an empty one, which is allowed.
type Claims struct {
	Issuer        string
	Audience      string
	Subject       string
	Expiry        int64
	EmailVerified string
	Email         string
	Name          string
	HasName       bool
}

// Identity is the validated, normalized result of a sign-in assertion.
type Identity struct {
	Email       string
	DisplayName string
}

// Validator checks Google ID-token claims against a configured client id.
type Validator struct {
	clientID string
	now      func() time.Time
}

// NewValidator returns a Validator for the given Google OAuth client id.
// A missing or malformed client id is a configuration fault and reported
// as ErrClientID, never as a claims error.
func NewValidator(clientID string, now func() time.Time) (*Validator, error) {
	if !clientIDPattern.MatchString(clientID) {
		return nil, fmt.Errorf("%w: %q", ErrClientID, clientID)
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{clientID: clientID, now: now}, nil
}

// Validate runs the claim checks in a fixed order and, on success, returns
// the normalized identity. The first failing check decides the error.
func (v *Validator) Validate(claims Claims) (Identity, error) {
	if !recognizedIssuer(claims.Issuer) {
		return Identity{}, fmt.Errorf("%w: %q", ErrIssuer, claims.Issuer)
	}
	if claims.Audience != v.clientID {
		return Identity{}, fmt.Errorf("%w: %q", ErrAudience, claims.Audience)
	}
	if claims.Subject == "" || len(claims.Subject) > 255 {
		return Identity{}, ErrSubject
	}
	if claims.Expiry <= v.now().Unix() {
		return Identity{}, ErrExpired
	}
	if claims.EmailVerified != "true" {
		return Identity{}, ErrEmailNotVerified
	}
	if !validEmail(claims.Email) {
		return Identity{}, fmt.Errorf("%w: %q", ErrEmail, claims.Email)
	}
	if !claims.HasName {
		return Identity{}, ErrNameMissing
	}

	return Identity{
		Email:       claims.Email,
		DisplayName: NormalizeDisplayName(claims.Name, claims.Email, claims.Subject),
	}, nil
}

func recognizedIssuer(issuer string) bool {
	for _, known := range googleIssuers {
		if issuer == known {
			return true
		}
	}
	return false
}

func validEmail(address string) bool {
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}

// ValidDisplayName reports whether name satisfies the display-name pattern:
// a letter or digit first, then letters, digits, spaces, dots, hyphens, or
// apostrophes.
func ValidDisplayName(name string) bool {
	return displayNamePattern.MatchString(name)
}

// NormalizeDisplayName picks a display name from the assertion, first match
// wins: the trimmed name claim, the local part of the email, or a synthetic
// User_<subject> fallback.
func NormalizeDisplayName(name, email, subject string) string {
	trimmed := strings.TrimSpace(name)
	if displayNamePattern.MatchString(trimmed) {
		return trimmed
	}

	if local, _, found := strings.Cut(email, "@"); found && displayNamePattern.MatchString(local) {
		return local
	}

	return "User_" + subject
}
