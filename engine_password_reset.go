package accountauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/veldtec/accountauth/crypto"
	"github.com/veldtec/accountauth/mail"
	"github.com/veldtec/accountauth/storage"
)

// SendPasswordReset describes the sendpasswordreset operation and its observable behavior.
//
// SendPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// An unknown email is a silent no-op so the flow cannot be used to probe
// which addresses are registered. At most one reset record lives per
// account; a repeated request replaces the code rather than adding a row.
// Failures inside the transactional phase are masked as "Password reset
// failed."
func (e *Engine) SendPasswordReset(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	account, err := e.store.Accounts().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		e.logInternal("send_password_reset", err)
		return internalError(msgPasswordResetFailed, err)
	}

	err = e.withTx(ctx, func(tx storage.Tx) error {
		resetCode, err := crypto.GenerateToken(crypto.TokenBytes)
		if err != nil {
			return fmt.Errorf("generate reset code: %w", err)
		}

		reset := &storage.PasswordReset{
			AccountID:     account.ID,
			ResetCode:     resetCode,
			TimeRequested: e.now().Unix(),
		}
		if err := tx.PasswordResets().Save(ctx, reset); err != nil {
			return fmt.Errorf("save password reset: %w", err)
		}

		msg := mail.Message{
			To:          account.Email,
			DisplayName: account.DisplayName,
			Subject:     e.config.Mail.ResetSubject,
			Intro:       "Follow the link below to choose a new password.",
			ActionURL:   e.config.resetURL(resetCode),
		}
		if err := e.mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("send reset mail: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logInternal("send_password_reset", err)
		e.emitAudit(ctx, auditEventResetFailure, false, account.ID, email, err, nil)
		return internalError(msgPasswordResetFailed, err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventResetRequested, true, account.ID, email, nil, nil)
	return nil
}

// ResetPassword describes the resetpassword operation and its observable behavior.
//
// ResetPassword may return an error when input validation, dependency calls, or security checks fail.
// A successful reset replaces the password hash, consumes the reset record,
// and revokes every persistent login for the account, since any of them
// could be held by whoever forced the reset. Failures inside the
// transactional phase are masked as "Password reset failed."
func (e *Engine) ResetPassword(ctx context.Context, resetCode, newPassword string) error {
	if err := validateCode(resetCode); err != nil {
		return err
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	reset, err := e.store.PasswordResets().FindByResetCode(ctx, resetCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.metricInc(MetricPasswordResetFailure)
			return notFound(MsgNoResetRequested)
		}
		e.logInternal("reset_password", err)
		return internalError(msgPasswordResetFailed, err)
	}

	err = e.withTx(ctx, func(tx storage.Tx) error {
		passwordHash, err := e.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := tx.Accounts().UpdatePasswordHash(ctx, reset.AccountID, passwordHash); err != nil {
			return fmt.Errorf("update password hash: %w", err)
		}
		if err := tx.PasswordResets().Delete(ctx, reset.ID); err != nil {
			return fmt.Errorf("delete password reset: %w", err)
		}
		if err := tx.PersistentLogins().DeleteByAccountID(ctx, reset.AccountID); err != nil {
			return fmt.Errorf("revoke persistent logins: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logInternal("reset_password", err)
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventResetFailure, false, reset.AccountID, "", err, nil)
		return internalError(msgPasswordResetFailed, err)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventResetSuccess, true, reset.AccountID, "", nil, nil)
	return nil
}
