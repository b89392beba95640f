package accountauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/veldtec/accountauth/cookie"
	"github.com/veldtec/accountauth/mail"
	"github.com/veldtec/accountauth/session"
	"github.com/veldtec/accountauth/storage"
)

const (
	testEmail       = "john@example.com"
	testPassword    = "pass1234"
	testDisplayName = "John"
)

// testHarness wires an Engine to in-process fakes.
type testHarness struct {
	engine *Engine
	store  *storage.Memory
	mailer *mail.Memory
	now    time.Time
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.App.Name = "Example App"
	cfg.App.BaseURL = "https://app.example.com"
	// Smallest parameters the hasher accepts, to keep tests fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	cfg.Audit.Enabled = false
	return cfg
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	return newTestHarnessWithConfig(t, testConfig())
}

func newTestHarnessWithConfig(t *testing.T, cfg Config) *testHarness {
	t.Helper()
	return newTestHarnessWithOptions(t, cfg, nil)
}

func newTestHarnessWithOptions(t *testing.T, cfg Config, customize func(*Builder)) *testHarness {
	t.Helper()

	h := &testHarness{
		store:  storage.NewMemory(),
		mailer: mail.NewMemory(),
		now:    time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}

	builder := New().
		WithConfig(cfg).
		WithStore(h.store).
		WithMailer(h.mailer).
		WithClock(func() time.Time { return h.now })
	if customize != nil {
		customize(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	h.engine = engine
	return h
}

func (h *testHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// browser models one client: a cookie jar and a session store that survive
// across requests.
type browser struct {
	jar  *cookie.Memory
	sess *session.Memory
}

func newBrowser() *browser {
	return &browser{
		jar:  cookie.NewMemory(),
		sess: session.NewMemory(),
	}
}

func (b *browser) ctx() context.Context {
	return WithRequestEnv(context.Background(), RequestEnv{
		Cookies:       b.jar,
		Session:       b.sess,
		ClientAddress: "203.0.113.7",
		UserAgent:     "Mozilla/5.0",
	})
}

// registerAndActivate drives the two flows and returns the account id.
func (h *testHarness) registerAndActivate(t *testing.T, b *browser) int64 {
	t.Helper()
	ctx := b.ctx()

	if err := h.engine.Register(ctx, testEmail, testPassword, testDisplayName); err != nil {
		t.Fatalf("Register: %v", err)
	}
	pending, err := h.store.PendingAccounts().FindByEmail(ctx, testEmail)
	if err != nil {
		t.Fatalf("pending account missing: %v", err)
	}
	if err := h.engine.ActivateAccount(ctx, pending.ActivationCode); err != nil {
		t.Fatalf("ActivateAccount: %v", err)
	}

	account, err := h.store.Accounts().FindByEmail(ctx, testEmail)
	if err != nil {
		t.Fatalf("account missing after activation: %v", err)
	}
	return account.ID
}

// forceSession establishes a session for accountID without going through a
// login flow. Used for accounts that have no password.
func (h *testHarness) forceSession(t *testing.T, b *browser, accountID int64) {
	t.Helper()
	ctx := b.ctx()
	env, ok := requestEnvFromContext(ctx)
	if !ok {
		t.Fatal("request env missing")
	}
	if err := h.engine.authorityFor(env).establishSession(ctx, accountID, nil, false); err != nil {
		t.Fatalf("establishSession: %v", err)
	}
}

func (h *testHarness) login(t *testing.T, b *browser, rememberMe bool) *AccountView {
	t.Helper()
	view, err := h.engine.Login(b.ctx(), testEmail, testPassword, rememberMe)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return view
}

func assertFlowError(t *testing.T, err error, kind Kind, message string) {
	t.Helper()

	var flowErr *FlowError
	if !errors.As(err, &flowErr) {
		t.Fatalf("error %v (%T) is not a FlowError", err, err)
	}
	if flowErr.Kind != kind {
		t.Errorf("Kind = %v, want %v", flowErr.Kind, kind)
	}
	if flowErr.Message != message {
		t.Errorf("Message = %q, want %q", flowErr.Message, message)
	}
}

func assertMasked(t *testing.T, err error, message string) {
	t.Helper()

	assertFlowError(t, err, KindInternal, message)
	if errors.Unwrap(err) == nil {
		t.Error("masked error lost its internal cause")
	}
	if cause := errors.Unwrap(err); cause != nil && strings.Contains(message, cause.Error()) {
		t.Error("internal cause leaked into the user-facing message")
	}
}
