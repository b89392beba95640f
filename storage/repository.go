package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Find* methods when no row matches.
var ErrNotFound = errors.New("record not found")

// AccountRepo provides access to activated accounts.
type AccountRepo interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id int64) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	UpdateDisplayName(ctx context.Context, id int64, displayName string) error
	UpdateLastLogin(ctx context.Context, id int64, timeLastLogin int64) error
	Delete(ctx context.Context, id int64) error
}

// PendingAccountRepo provides access to registrations awaiting activation.
type PendingAccountRepo interface {
	Create(ctx context.Context, pending *PendingAccount) error
	FindByEmail(ctx context.Context, email string) (*PendingAccount, error)
	FindByActivationCode(ctx context.Context, code string) (*PendingAccount, error)
	Delete(ctx context.Context, id int64) error
}

// PasswordResetRepo provides access to outstanding password reset requests.
type PasswordResetRepo interface {
	// Save inserts the row, or replaces the code and request time of the
	// existing row for the same account. At most one live row per account.
	Save(ctx context.Context, reset *PasswordReset) error
	FindByAccountID(ctx context.Context, accountID int64) (*PasswordReset, error)
	FindByResetCode(ctx context.Context, code string) (*PasswordReset, error)
	Delete(ctx context.Context, id int64) error
	DeleteByAccountID(ctx context.Context, accountID int64) error
}

// PersistentLoginRepo provides access to remember-me credentials.
type PersistentLoginRepo interface {
	// Save inserts the row, or replaces the secret material of the existing
	// row for the same (AccountID, ClientSignature) pair.
	Save(ctx context.Context, login *PersistentLogin) error
	FindByLookupKey(ctx context.Context, lookupKey string) (*PersistentLogin, error)
	FindByAccountAndSignature(ctx context.Context, accountID int64, signature string) (*PersistentLogin, error)
	Delete(ctx context.Context, id int64) error
	DeleteByAccountID(ctx context.Context, accountID int64) error
}

// Repos bundles the four repositories over one database handle, either the
// root handle or an open transaction.
type Repos interface {
	Accounts() AccountRepo
	PendingAccounts() PendingAccountRepo
	PasswordResets() PasswordResetRepo
	PersistentLogins() PersistentLoginRepo
}

// Tx is an explicit transactional scope. Callers acquire it with
// Store.Begin, run the mutating body against its repositories, and finish
// with Commit; a deferred Rollback after a successful Commit is a no-op.
type Tx interface {
	Repos
	Commit() error
	Rollback() error
}

// Store is the durable storage contract the engine is built on.
// Repositories reached directly from the Store execute outside any
// transaction; flows wrap their mutating phase in Begin/Commit.
type Store interface {
	Repos
	Begin(ctx context.Context) (Tx, error)
}
