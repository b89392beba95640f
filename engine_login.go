package accountauth

import (
	"context"
	"errors"

	"github.com/veldtec/accountauth/storage"
)

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Unknown email and wrong password collapse to the same Unauthorized
// message; any failure inside the transactional phase tears down whatever
// partial session state exists and is masked as "Login failed."
func (e *Engine) Login(ctx context.Context, email, password string, rememberMe bool) (*AccountView, error) {
	env, ok := requestEnvFromContext(ctx)
	if !ok {
		return nil, ErrNoRequestEnv
	}
	auth := e.authorityFor(env)

	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, badRequest("Please enter your password.")
	}

	if view := auth.resolveAccount(ctx); view != nil {
		return nil, conflict(MsgAlreadyLoggedIn)
	}

	account, err := e.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, 0, email, nil, func() map[string]string {
				return map[string]string{"reason": "unknown_email"}
			})
			return nil, unauthorized(MsgIncorrectCredentials)
		}
		e.logInternal("login", err)
		return nil, internalError(msgLoginFailed, err)
	}

	// Accounts created by Google sign-in carry an empty hash and cannot be
	// entered with a password; the refusal must look like any bad credential.
	if account.PasswordHash == "" || !e.hasher.Verify(password, account.PasswordHash) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, email, nil, func() map[string]string {
			return map[string]string{"reason": "password_mismatch"}
		})
		return nil, unauthorized(MsgIncorrectCredentials)
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, upErr := e.hasher.NeedsUpgrade(account.PasswordHash); upErr == nil && needsUpgrade {
			if upgraded, hashErr := e.hasher.Hash(password); hashErr == nil {
				// Best effort; a failed upgrade must not block the login.
				if updErr := e.store.Accounts().UpdatePasswordHash(ctx, account.ID, upgraded); updErr != nil {
					e.logger.Warn().Err(updErr).Msg("password hash upgrade failed")
				}
			}
		}
	}
	password = ""

	loginTime := e.now().Unix()
	err = e.withTx(ctx, func(tx storage.Tx) error {
		if err := tx.Accounts().UpdateLastLogin(ctx, account.ID, loginTime); err != nil {
			return err
		}
		if err := auth.establishSession(ctx, account.ID, nil, false); err != nil {
			return err
		}
		if rememberMe && e.config.PersistentLogin.Enabled {
			if err := auth.createPersistentLogin(ctx, tx.PersistentLogins(), account.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// A half-established login must not leave residual session or
		// cookie state behind.
		_ = auth.teardownSession(ctx, e.store.PersistentLogins())
		e.logInternal("login", err)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, email, err, nil)
		return nil, internalError(msgLoginFailed, err)
	}

	account.TimeLastLogin = &loginTime

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, email, nil, nil)

	return viewOf(account), nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Teardown is best effort and idempotent; it is safe to call without a
// session. Internal failures are masked as "Logout failed."
func (e *Engine) Logout(ctx context.Context) error {
	env, ok := requestEnvFromContext(ctx)
	if !ok {
		return ErrNoRequestEnv
	}
	auth := e.authorityFor(env)

	err := e.withTx(ctx, func(tx storage.Tx) error {
		return auth.teardownSession(ctx, tx.PersistentLogins())
	})
	if err != nil {
		e.logInternal("logout", err)
		return internalError(msgLogoutFailed, err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, 0, "", nil, nil)
	return nil
}

// withTx runs fn inside one transaction: commit on nil, rollback otherwise.
// Rollback after a successful commit is a no-op by the storage contract.
func (e *Engine) withTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
