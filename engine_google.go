package accountauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/veldtec/accountauth/identity"
	"github.com/veldtec/accountauth/storage"
)

// SignInWithGoogle describes the signinwithgoogle operation and its observable behavior.
//
// SignInWithGoogle may return an error when input validation, dependency calls, or security checks fail.
// Claims that fail validation are Unauthorized. The account is created on
// first sign-in with an empty password hash; a pending registration for the
// same email is superseded and removed in the same transaction. Failures
// after partial session establishment tear the session down and are masked
// as "Google sign-in failed."
func (e *Engine) SignInWithGoogle(ctx context.Context, idToken string, rememberMe bool) (*AccountView, error) {
	env, ok := requestEnvFromContext(ctx)
	if !ok {
		return nil, ErrNoRequestEnv
	}
	auth := e.authorityFor(env)

	if e.google == nil {
		err := errors.New("google sign-in not configured")
		e.logInternal("google_sign_in", err)
		return nil, internalError(msgGoogleSignInFailed, err)
	}
	if idToken == "" {
		return nil, badRequest("Missing Google ID token.")
	}

	if view := auth.resolveAccount(ctx); view != nil {
		return nil, conflict(MsgAlreadyLoggedIn)
	}

	claims, err := identity.ParseIDToken(idToken, nil)
	if err != nil {
		e.metricInc(MetricGoogleSignInFailure)
		e.emitAudit(ctx, auditEventGoogleSignInFailure, false, 0, "", err, nil)
		return nil, unauthorized(msgGoogleSignInFailed)
	}
	assertion, err := e.google.Validate(claims)
	if err != nil {
		e.metricInc(MetricGoogleSignInFailure)
		e.emitAudit(ctx, auditEventGoogleSignInFailure, false, 0, claims.Email, err, nil)
		return nil, unauthorized(msgGoogleSignInFailed)
	}

	loginTime := e.now().Unix()
	var account *storage.Account
	err = e.withTx(ctx, func(tx storage.Tx) error {
		existing, err := tx.Accounts().FindByEmail(ctx, assertion.Email)
		switch {
		case err == nil:
			account = existing
			if err := tx.Accounts().UpdateLastLogin(ctx, account.ID, loginTime); err != nil {
				return fmt.Errorf("update last login: %w", err)
			}
			account.TimeLastLogin = &loginTime
		case errors.Is(err, storage.ErrNotFound):
			// A pending password registration for the same address is
			// superseded by the verified Google identity.
			if pending, pErr := tx.PendingAccounts().FindByEmail(ctx, assertion.Email); pErr == nil {
				if err := tx.PendingAccounts().Delete(ctx, pending.ID); err != nil {
					return fmt.Errorf("delete superseded pending account: %w", err)
				}
			} else if !errors.Is(pErr, storage.ErrNotFound) {
				return fmt.Errorf("find pending account: %w", pErr)
			}

			account = &storage.Account{
				Email:         assertion.Email,
				PasswordHash:  "",
				DisplayName:   assertion.DisplayName,
				TimeActivated: loginTime,
				TimeLastLogin: &loginTime,
			}
			if err := tx.Accounts().Create(ctx, account); err != nil {
				return fmt.Errorf("create account: %w", err)
			}
		default:
			return fmt.Errorf("find account: %w", err)
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
		_ = auth.teardownSession(ctx, e.store.PersistentLogins())
		e.logInternal("google_sign_in", err)
		e.metricInc(MetricGoogleSignInFailure)
		e.emitAudit(ctx, auditEventGoogleSignInFailure, false, 0, assertion.Email, err, nil)
		return nil, internalError(msgGoogleSignInFailed, err)
	}

	e.metricInc(MetricGoogleSignInSuccess)
	e.emitAudit(ctx, auditEventGoogleSignIn, true, account.ID, account.Email, nil, nil)

	return viewOf(account), nil
}
