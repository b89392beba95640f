package accountauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/veldtec/accountauth/crypto"
	"github.com/veldtec/accountauth/mail"
	"github.com/veldtec/accountauth/storage"
)

// Register describes the register operation and its observable behavior.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// A successful registration creates a PendingAccount and emails the
// activation link; the caller shows MsgActivationLinkSent. A pending or
// registered record for the same email is a Conflict. Failures inside the
// transactional phase are masked as "Registration failed."
func (e *Engine) Register(ctx context.Context, email, password, displayName string) error {
	env, ok := requestEnvFromContext(ctx)
	if !ok {
		return ErrNoRequestEnv
	}
	auth := e.authorityFor(env)

	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	if err := validateDisplayName(displayName); err != nil {
		return err
	}
	displayName = strings.TrimSpace(displayName)

	if view := auth.resolveAccount(ctx); view != nil {
		return conflict(MsgAlreadyLoggedIn)
	}

	// Account and PendingAccount are mutually exclusive per email; both are
	// checked so each state maps to its own message.
	if _, err := e.store.Accounts().FindByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		return conflict(MsgEmailAlreadyRegistered)
	} else if !errors.Is(err, storage.ErrNotFound) {
		e.logInternal("register", err)
		return internalError(msgRegistrationFailed, err)
	}
	if _, err := e.store.PendingAccounts().FindByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		return conflict(MsgAlreadyAwaitingActivation)
	} else if !errors.Is(err, storage.ErrNotFound) {
		e.logInternal("register", err)
		return internalError(msgRegistrationFailed, err)
	}

	err := e.withTx(ctx, func(tx storage.Tx) error {
		passwordHash, err := e.hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		activationCode, err := crypto.GenerateToken(crypto.TokenBytes)
		if err != nil {
			return fmt.Errorf("generate activation code: %w", err)
		}

		pending := &storage.PendingAccount{
			Email:          email,
			PasswordHash:   passwordHash,
			DisplayName:    displayName,
			ActivationCode: activationCode,
			TimeRegistered: e.now().Unix(),
		}
		if err := tx.PendingAccounts().Create(ctx, pending); err != nil {
			return fmt.Errorf("create pending account: %w", err)
		}

		// The mail send sits inside the transaction on purpose: a
		// registration whose activation link was never delivered must not
		// leave a pending record behind.
		msg := mail.Message{
			To:          email,
			DisplayName: displayName,
			Subject:     e.config.Mail.ActivationSubject,
			Intro:       "Follow the link below to activate your account.",
			ActionURL:   e.config.activationURL(activationCode),
		}
		if err := e.mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("send activation mail: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logInternal("register", err)
		e.emitAudit(ctx, auditEventRegisterFailure, false, 0, email, err, nil)
		return internalError(msgRegistrationFailed, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, 0, email, nil, nil)
	return nil
}

// ActivateAccount describes the activateaccount operation and its observable behavior.
//
// ActivateAccount may return an error when input validation, dependency calls, or security checks fail.
// The pending record is converted into an Account in one transaction.
// Failures inside it are masked as "Account activation failed."
func (e *Engine) ActivateAccount(ctx context.Context, activationCode string) error {
	if err := validateCode(activationCode); err != nil {
		return err
	}

	pending, err := e.store.PendingAccounts().FindByActivationCode(ctx, activationCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.metricInc(MetricActivationFailure)
			return notFound(MsgNoAccountAwaitingActivation)
		}
		e.logInternal("activate_account", err)
		return internalError(msgActivationFailed, err)
	}

	if _, err := e.store.Accounts().FindByEmail(ctx, pending.Email); err == nil {
		e.metricInc(MetricActivationFailure)
		return conflict(MsgEmailAlreadyRegistered)
	} else if !errors.Is(err, storage.ErrNotFound) {
		e.logInternal("activate_account", err)
		return internalError(msgActivationFailed, err)
	}

	var accountID int64
	err = e.withTx(ctx, func(tx storage.Tx) error {
		account := &storage.Account{
			Email:         pending.Email,
			PasswordHash:  pending.PasswordHash,
			DisplayName:   pending.DisplayName,
			TimeActivated: e.now().Unix(),
		}
		if err := tx.Accounts().Create(ctx, account); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		if err := tx.PendingAccounts().Delete(ctx, pending.ID); err != nil {
			return fmt.Errorf("delete pending account: %w", err)
		}
		accountID = account.ID
		return nil
	})
	if err != nil {
		e.logInternal("activate_account", err)
		e.metricInc(MetricActivationFailure)
		e.emitAudit(ctx, auditEventActivationFailure, false, 0, pending.Email, err, nil)
		return internalError(msgActivationFailed, err)
	}

	e.metricInc(MetricActivationSuccess)
	e.emitAudit(ctx, auditEventActivationSuccess, true, accountID, pending.Email, nil, nil)
	return nil
}
