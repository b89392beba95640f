package accountauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/veldtec/accountauth/storage"
)

// LoggedInAccount describes the loggedinaccount operation and its observable behavior.
//
// LoggedInAccount resolves the requesting browser to an account: session
// first, persistent login as fallback. A nil view with nil error means
// anonymous; resolution itself never fails.
func (e *Engine) LoggedInAccount(ctx context.Context) (*AccountView, error) {
	env, ok := requestEnvFromContext(ctx)
	if !ok {
		return nil, ErrNoRequestEnv
	}
	return e.authorityFor(env).resolveAccount(ctx), nil
}

// RegisterDeletionHook appends a hook consulted by DeleteAccount. The
// registry is append-only and ordered; there is no dedup or removal.
func (e *Engine) RegisterDeletionHook(hook DeletionHook) {
	if hook == nil {
		return
	}
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.hooks = append(e.hooks, hook)
}

// DeletionHooks returns the registered hooks in registration order.
func (e *Engine) DeletionHooks() []DeletionHook {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	out := make([]DeletionHook, len(e.hooks))
	copy(out, e.hooks)
	return out
}

// DeleteAccount describes the deleteaccount operation and its observable behavior.
//
// DeleteAccount may return an error when input validation, dependency calls, or security checks fail.
// The current password is required unless the account was created by
// Google sign-in and has no password. Every registered deletion hook runs
// before the account row is removed; the first hook error aborts the whole
// deletion and the account survives. Internal failures are masked as
// "Account deletion failed."
func (e *Engine) DeleteAccount(ctx context.Context, currentPassword string) error {
	env, ok := requestEnvFromContext(ctx)
	if !ok {
		return ErrNoRequestEnv
	}
	auth := e.authorityFor(env)

	view := auth.resolveAccount(ctx)
	if view == nil {
		return unauthorized(MsgNotLoggedIn)
	}

	account, err := e.store.Accounts().FindByID(ctx, view.ID)
	if err != nil {
		e.logInternal("delete_account", err)
		return internalError(msgAccountDeletionFailed, err)
	}
	if account.PasswordHash != "" && !e.hasher.Verify(currentPassword, account.PasswordHash) {
		return forbidden(MsgIncorrectPassword)
	}

	err = e.withTx(ctx, func(tx storage.Tx) error {
		for _, hook := range e.DeletionHooks() {
			if err := hook.OnAccountDeletion(ctx, account.ID); err != nil {
				return fmt.Errorf("deletion hook: %w", err)
			}
		}

		if err := tx.PersistentLogins().DeleteByAccountID(ctx, account.ID); err != nil {
			return fmt.Errorf("delete persistent logins: %w", err)
		}
		if err := tx.PasswordResets().DeleteByAccountID(ctx, account.ID); err != nil {
			return fmt.Errorf("delete password resets: %w", err)
		}
		if err := tx.Accounts().Delete(ctx, account.ID); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}

		return auth.teardownSession(ctx, tx.PersistentLogins())
	})
	if err != nil {
		e.logInternal("delete_account", err)
		e.emitAudit(ctx, auditEventAccountDeleteFailed, false, account.ID, account.Email, err, nil)
		return internalError(msgAccountDeletionFailed, err)
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, account.ID, account.Email, nil, nil)
	return nil
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// Accounts without a password (Google-only) cannot change one here; they
// get Forbidden, as does a wrong current password. Internal failures are
// masked as "Password change failed."
func (e *Engine) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	env, ok := requestEnvFromContext(ctx)
	if !ok {
		return ErrNoRequestEnv
	}
	auth := e.authorityFor(env)

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	view := auth.resolveAccount(ctx)
	if view == nil {
		return unauthorized(MsgNotLoggedIn)
	}

	account, err := e.store.Accounts().FindByID(ctx, view.ID)
	if err != nil {
		e.logInternal("change_password", err)
		return internalError(msgPasswordChangeFailed, err)
	}
	if account.PasswordHash == "" {
		return forbidden("This account has no password to change.")
	}
	if !e.hasher.Verify(currentPassword, account.PasswordHash) {
		return forbidden(MsgIncorrectPassword)
	}

	err = e.withTx(ctx, func(tx storage.Tx) error {
		passwordHash, err := e.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		return tx.Accounts().UpdatePasswordHash(ctx, account.ID, passwordHash)
	})
	if err != nil {
		e.logInternal("change_password", err)
		return internalError(msgPasswordChangeFailed, err)
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, auditEventPasswordChanged, true, account.ID, account.Email, nil, nil)
	return nil
}

// ChangeDisplayName describes the changedisplayname operation and its observable behavior.
//
// ChangeDisplayName may return an error when input validation, dependency calls, or security checks fail.
func (e *Engine) ChangeDisplayName(ctx context.Context, displayName string) error {
	env, ok := requestEnvFromContext(ctx)
	if !ok {
		return ErrNoRequestEnv
	}
	auth := e.authorityFor(env)

	if err := validateDisplayName(displayName); err != nil {
		return err
	}
	displayName = strings.TrimSpace(displayName)

	view := auth.resolveAccount(ctx)
	if view == nil {
		return unauthorized(MsgNotLoggedIn)
	}

	err := e.withTx(ctx, func(tx storage.Tx) error {
		return tx.Accounts().UpdateDisplayName(ctx, view.ID, displayName)
	})
	if err != nil {
		e.logInternal("change_display_name", err)
		return internalError(msgDisplayNameChangeFailed, err)
	}

	e.emitAudit(ctx, auditEventDisplayNameChanged, true, view.ID, view.Email, nil, nil)
	return nil
}
