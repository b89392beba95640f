package accountauth

import (
	"context"

	"github.com/veldtec/accountauth/cookie"
	"github.com/veldtec/accountauth/session"
)

// Role is an account's authorization level. It lives in the session, not on
// the account record, and is absent for sessions created before a role was
// assigned.
type Role int

// AccountView is the engine's read model of the authenticated account,
// returned by [Engine.LoggedInAccount].
//
// AccountView instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AccountView struct {
	ID            int64
	Email         string
	DisplayName   string
	TimeActivated int64
	TimeLastLogin *int64
	Role          *Role
}

// DeletionHook runs before an account row is removed so dependent
// subsystems can drop their own data first. A hook error aborts the
// deletion and the account row survives.
type DeletionHook interface {
	OnAccountDeletion(ctx context.Context, accountID int64) error
}

// DeletionHookFunc adapts a plain function to the DeletionHook interface.
type DeletionHookFunc func(ctx context.Context, accountID int64) error

// OnAccountDeletion describes the onaccountdeletion operation and its observable behavior.
func (f DeletionHookFunc) OnAccountDeletion(ctx context.Context, accountID int64) error {
	return f(ctx, accountID)
}

// RequestEnv carries the per-request collaborators the engine cannot own
// itself: the browser's cookie jar, its session store, and the client
// identity persistent logins are bound to. Attach it with [WithRequestEnv].
type RequestEnv struct {
	Cookies       cookie.Jar
	Session       session.Store
	ClientAddress string
	UserAgent     string
}
