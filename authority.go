package accountauth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/veldtec/accountauth/crypto"
	"github.com/veldtec/accountauth/persistent"
	"github.com/veldtec/accountauth/storage"
)

// Session keys owned by the engine.
const (
	sessionKeyBindingToken = "binding_token"
	sessionKeyAccountID    = "account_id"
	sessionKeyAccountRole  = "account_role"
	sessionKeyRotateNeeded = "pl_rotate_needed"
)

// authority is the per-request session authority: it establishes, verifies,
// and tears down the authenticated state for one browser. Built fresh from
// the RequestEnv on every call, it holds no cross-request state.
type authority struct {
	engine *Engine
	env    RequestEnv
	logins *persistent.Store
}

func (e *Engine) authorityFor(env RequestEnv) *authority {
	return &authority{
		engine: e,
		env:    env,
		logins: persistent.New(
			env.Cookies,
			e.hasher,
			e.config.persistentCookieName(),
			persistent.Client{Address: env.ClientAddress, UserAgent: env.UserAgent},
			e.now,
		),
	}
}

// establishSession performs the session-integrity step as one unit: CSRF
// pair generation, session start/clear/renew, key writes, session close,
// and the binding cookie write. Any sub-step failure is reported to the
// caller, which decides whether to compensate; nothing here masks errors.
func (a *authority) establishSession(ctx context.Context, accountID int64, role *Role, rotatePending bool) error {
	token, cookieValue, err := crypto.GenerateCSRFPair()
	if err != nil {
		return fmt.Errorf("generate binding pair: %w", err)
	}

	sess := a.env.Session
	if err := sess.Start(); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	sess.Clear()
	if err := sess.RenewID(); err != nil {
		_ = sess.Destroy()
		return fmt.Errorf("renew session id: %w", err)
	}
	sess.Set(sessionKeyBindingToken, token)
	sess.Set(sessionKeyAccountID, strconv.FormatInt(accountID, 10))
	if role != nil {
		sess.Set(sessionKeyAccountRole, strconv.Itoa(int(*role)))
	}
	if rotatePending {
		sess.Set(sessionKeyRotateNeeded, "1")
	}
	if err := sess.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}

	if err := a.env.Cookies.Set(a.engine.config.bindingCookieName(), cookieValue, time.Time{}); err != nil {
		return fmt.Errorf("write binding cookie: %w", err)
	}

	a.engine.metricInc(MetricSessionCreated)
	return nil
}

// createPersistentLogin issues the remember-me cookie inside the caller's
// transaction scope.
func (a *authority) createPersistentLogin(ctx context.Context, repo storage.PersistentLoginRepo, accountID int64) error {
	return a.logins.Create(ctx, repo, accountID)
}

// teardownSession is Logout's core: destroy the session, remove the
// persistent login, and clear the binding cookie. Each step runs even when
// an earlier one fails; the first error is reported.
func (a *authority) teardownSession(ctx context.Context, repo storage.PersistentLoginRepo) error {
	var firstErr error

	if err := a.env.Session.Destroy(); err != nil {
		firstErr = fmt.Errorf("destroy session: %w", err)
	}
	if err := a.logins.Delete(ctx, repo); err != nil && firstErr == nil {
		firstErr = err
	}
	a.env.Cookies.Delete(a.engine.config.bindingCookieName())

	if firstErr == nil {
		a.engine.metricInc(MetricSessionDestroyed)
	}
	return firstErr
}

// resolveAccount walks the per-request state machine: a session whose
// binding survives the double-submit check wins; an invalid session is
// destroyed; with no session, a valid persistent login bootstraps a new
// session flagged for rotation. Every failure path degrades to anonymous
// (nil view) and never raises.
func (a *authority) resolveAccount(ctx context.Context) *AccountView {
	e := a.engine

	sess := a.env.Session
	if err := sess.Start(); err != nil {
		e.logger.Warn().Err(err).Msg("session start failed during resolution")
		return nil
	}

	if sess.Has(sessionKeyBindingToken) && sess.Has(sessionKeyAccountID) {
		if view := a.resolveFromSession(ctx); view != nil {
			return view
		}
		// Auth keys present but unverifiable: drop the whole session and
		// stay anonymous. The remember-me fallback only applies when no
		// session exists, so it waits for the next request.
		_ = sess.Destroy()
		e.metricInc(MetricSessionDestroyed)
		return nil
	}

	return a.resolveFromPersistent(ctx)
}

// resolveFromSession verifies the double-submit binding and loads the
// account. A nil return means the session did not prove an identity.
func (a *authority) resolveFromSession(ctx context.Context) *AccountView {
	e := a.engine
	sess := a.env.Session

	token, _ := sess.Get(sessionKeyBindingToken)
	cookieValue, ok := a.env.Cookies.Get(e.config.bindingCookieName())
	if !ok || !crypto.VerifyCSRFPair(token, cookieValue) {
		return nil
	}

	rawID, _ := sess.Get(sessionKeyAccountID)
	accountID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || accountID <= 0 {
		return nil
	}

	account, err := e.store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn().Err(err).Int64("account_id", accountID).Msg("account lookup failed during resolution")
		}
		return nil
	}

	view := viewOf(account)
	if rawRole, ok := sess.Get(sessionKeyAccountRole); ok {
		if parsed, err := strconv.Atoi(rawRole); err == nil {
			role := Role(parsed)
			view.Role = &role
		}
	}

	if sess.Has(sessionKeyRotateNeeded) {
		a.rotateDeferred(ctx, accountID)
	}

	if err := sess.Close(); err != nil {
		e.logger.Warn().Err(err).Msg("session close failed during resolution")
	}
	return view
}

// rotateDeferred replaces the persistent-login token in its own short
// transaction. On failure the marker stays in the session so the next
// request retries. When there is nothing to rotate (no cookie, or the
// login was revoked since the marker was set) the marker is cleared
// without signalling a rotation.
func (a *authority) rotateDeferred(ctx context.Context, accountID int64) {
	e := a.engine

	tx, err := e.store.Begin(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("persistent login rotation skipped")
		return
	}
	defer func() { _ = tx.Rollback() }()

	rotated, err := a.logins.Rotate(ctx, tx.PersistentLogins(), accountID)
	if err != nil {
		e.logger.Warn().Err(err).Int64("account_id", accountID).Msg("persistent login rotation failed")
		return
	}
	if err := tx.Commit(); err != nil {
		e.logger.Warn().Err(err).Msg("persistent login rotation commit failed")
		return
	}

	a.env.Session.Remove(sessionKeyRotateNeeded)
	if !rotated {
		return
	}
	e.metricInc(MetricPersistentLoginRotated)
	e.emitAudit(ctx, auditEventSessionRotated, true, accountID, "", nil, nil)
}

// resolveFromPersistent falls back to the remember-me cookie when the
// started session carries no auth keys.
func (a *authority) resolveFromPersistent(ctx context.Context) *AccountView {
	e := a.engine

	accountID, ok := a.logins.Resolve(ctx, e.store.PersistentLogins())
	if !ok {
		// Leave an unauthenticated session untouched; it may carry
		// non-auth state such as a language preference.
		if err := a.env.Session.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("session close failed during resolution")
		}
		return nil
	}

	account, err := e.store.Accounts().FindByID(ctx, accountID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn().Err(err).Int64("account_id", accountID).Msg("account lookup failed during resolution")
		}
		_ = a.env.Session.Close()
		return nil
	}

	// Bootstrap a fresh session from the persistent login. Rotation is
	// deferred to the next resolved request so this read path stays free
	// of same-request cookie races.
	if err := a.establishSession(ctx, accountID, nil, true); err != nil {
		e.logger.Warn().Err(err).Int64("account_id", accountID).Msg("session bootstrap from persistent login failed")
		_ = a.env.Session.Destroy()
		return nil
	}

	e.metricInc(MetricPersistentLoginResolved)
	return viewOf(account)
}

func viewOf(account *storage.Account) *AccountView {
	view := &AccountView{
		ID:            account.ID,
		Email:         account.Email,
		DisplayName:   account.DisplayName,
		TimeActivated: account.TimeActivated,
	}
	if account.TimeLastLogin != nil {
		t := *account.TimeLastLogin
		view.TimeLastLogin = &t
	}
	return view
}
