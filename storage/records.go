// Package storage defines the durable records owned by the authentication
// subsystem and the repository contracts the engine uses to reach them. Two
// backends are provided: Postgres (database/sql over the pgx driver, with
// embedded goose migrations) and an in-process store for tests.
//
// All timestamps are Unix seconds.
package storage

// Account is a registered, activated user. PasswordHash is the empty string
// for accounts created through Google sign-in that never set a password.
type Account struct {
	ID            int64
	Email         string
	PasswordHash  string
	DisplayName   string
	TimeActivated int64
	TimeLastLogin *int64
}

// PendingAccount is an unconfirmed registration awaiting email activation.
type PendingAccount struct {
	ID             int64
	Email          string
	PasswordHash   string
	DisplayName    string
	ActivationCode string
	TimeRegistered int64
}

// PasswordReset is the single outstanding reset request for an account.
// SendPasswordReset reuses the existing row per account rather than
// accumulating one row per request.
type PasswordReset struct {
	ID            int64
	AccountID     int64
	ResetCode     string
	TimeRequested int64
}

// PersistentLogin is a remember-me credential. The row is unique per
// (AccountID, ClientSignature); rotation reuses the row with fresh secret
// material. TokenHash is a password-grade hash of the cookie token, never
// the token itself.
type PersistentLogin struct {
	ID              int64
	AccountID       int64
	ClientSignature string
	LookupKey       string
	TokenHash       string
	TimeExpires     int64
}
