package persistent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/veldtec/accountauth/cookie"
	"github.com/veldtec/accountauth/crypto"
	"github.com/veldtec/accountauth/storage"
)

const testCookieName = "app_persistent"

// plainHasher is a deterministic TokenHasher for tests.
type plainHasher struct {
	hashErr error
}

func (h *plainHasher) Hash(plain string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + plain, nil
}

func (h *plainHasher) Verify(plain, encodedHash string) bool {
	return encodedHash == "hashed:"+plain
}

type fixture struct {
	store   *Store
	jar     *cookie.Memory
	logins  storage.PersistentLoginRepo
	backend *storage.Memory
	now     *time.Time
}

func newFixture(t *testing.T, client Client) *fixture {
	t.Helper()

	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	jar := cookie.NewMemory()
	backend := storage.NewMemory()
	f := &fixture{
		jar:     jar,
		logins:  backend.PersistentLogins(),
		backend: backend,
		now:     &now,
	}
	f.store = New(jar, &plainHasher{}, testCookieName, client, func() time.Time { return *f.now })
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func TestCreateThenResolve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	if err := f.store.Create(ctx, f.logins, 42); err != nil {
		t.Fatalf("Create: %v", err)
	}

	value, ok := f.jar.Get(testCookieName)
	if !ok {
		t.Fatal("persistent cookie not written")
	}
	lookupKey, token, found := strings.Cut(value, ".")
	if !found {
		t.Fatalf("cookie value %q lacks separator", value)
	}
	if !crypto.IsHexToken(lookupKey, crypto.LookupKeyBytes) {
		t.Errorf("lookup key %q is not %d hex chars", lookupKey, 2*crypto.LookupKeyBytes)
	}
	if !crypto.IsHexToken(token, crypto.TokenBytes) {
		t.Errorf("token %q is not %d hex chars", token, 2*crypto.TokenBytes)
	}

	row, err := f.logins.FindByLookupKey(ctx, lookupKey)
	if err != nil {
		t.Fatalf("FindByLookupKey: %v", err)
	}
	if row.TokenHash == token {
		t.Error("stored token hash equals the plain token")
	}
	wantExpires := f.now.AddDate(0, 1, 0)
	if row.TimeExpires != wantExpires.Unix() {
		t.Errorf("TimeExpires = %d, want %d", row.TimeExpires, wantExpires.Unix())
	}
	if expiry, _ := f.jar.Expiry(testCookieName); !expiry.Equal(wantExpires) {
		t.Errorf("cookie expiry = %v, want %v", expiry, wantExpires)
	}

	accountID, ok := f.store.Resolve(ctx, f.logins)
	if !ok || accountID != 42 {
		t.Fatalf("Resolve = (%d, %v), want (42, true)", accountID, ok)
	}
}

func TestResolveWithoutCookie(t *testing.T) {
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	if _, ok := f.store.Resolve(context.Background(), f.logins); ok {
		t.Error("Resolve succeeded without a cookie")
	}
}

func TestResolveRejectsMalformedCookie(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	cases := []string{
		"",
		"noseparator",
		"shortkey." + strings.Repeat("a", 64),
		strings.Repeat("a", 16) + ".shorttoken",
		strings.Repeat("G", 16) + "." + strings.Repeat("a", 64),
		strings.Repeat("a", 16) + "." + strings.Repeat("Z", 64),
	}
	for _, value := range cases {
		if err := f.jar.Set(testCookieName, value, time.Time{}); err != nil {
			t.Fatalf("seed cookie: %v", err)
		}
		if _, ok := f.store.Resolve(ctx, f.logins); ok {
			t.Errorf("Resolve accepted malformed cookie %q", value)
		}
	}
}

func TestResolveRejectsDifferentClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	if err := f.store.Create(ctx, f.logins, 42); err != nil {
		t.Fatalf("Create: %v", err)
	}

	other := New(f.jar, &plainHasher{}, testCookieName,
		Client{Address: "203.0.113.7", UserAgent: "curl/8.0"},
		func() time.Time { return *f.now })
	if _, ok := other.Resolve(ctx, f.logins); ok {
		t.Error("Resolve accepted a cookie bound to a different user agent")
	}

	other = New(f.jar, &plainHasher{}, testCookieName,
		Client{Address: "198.51.100.1", UserAgent: "Mozilla/5.0"},
		func() time.Time { return *f.now })
	if _, ok := other.Resolve(ctx, f.logins); ok {
		t.Error("Resolve accepted a cookie bound to a different address")
	}
}

func TestResolveExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	if err := f.store.Create(ctx, f.logins, 42); err != nil {
		t.Fatalf("Create: %v", err)
	}
	expires := f.now.AddDate(0, 1, 0)

	f.advance(expires.Sub(*f.now) - time.Second)
	if _, ok := f.store.Resolve(ctx, f.logins); !ok {
		t.Error("Resolve rejected a cookie one second before expiry")
	}

	f.advance(time.Second)
	if _, ok := f.store.Resolve(ctx, f.logins); ok {
		t.Error("Resolve accepted a cookie at its expiry instant")
	}
}

func TestResolveRejectsTamperedToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	if err := f.store.Create(ctx, f.logins, 42); err != nil {
		t.Fatalf("Create: %v", err)
	}

	value, _ := f.jar.Get(testCookieName)
	lookupKey, token, _ := strings.Cut(value, ".")
	flipped := []byte(token)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	if err := f.jar.Set(testCookieName, lookupKey+"."+string(flipped), time.Time{}); err != nil {
		t.Fatalf("seed cookie: %v", err)
	}

	if _, ok := f.store.Resolve(ctx, f.logins); ok {
		t.Error("Resolve accepted a tampered token")
	}
}

func TestRotateInvalidatesOldCookie(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	if err := f.store.Create(ctx, f.logins, 42); err != nil {
		t.Fatalf("Create: %v", err)
	}
	oldValue, _ := f.jar.Get(testCookieName)

	rotated, err := f.store.Rotate(ctx, f.logins, 42)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if !rotated {
		t.Error("Rotate did not report a rotation")
	}
	newValue, _ := f.jar.Get(testCookieName)
	if newValue == oldValue {
		t.Fatal("Rotate did not change the cookie value")
	}

	if accountID, ok := f.store.Resolve(ctx, f.logins); !ok || accountID != 42 {
		t.Fatalf("Resolve after rotate = (%d, %v), want (42, true)", accountID, ok)
	}

	// The pre-rotation cookie must be dead even though it was never expired.
	if err := f.jar.Set(testCookieName, oldValue, time.Time{}); err != nil {
		t.Fatalf("seed cookie: %v", err)
	}
	if _, ok := f.store.Resolve(ctx, f.logins); ok {
		t.Error("Resolve accepted the pre-rotation cookie")
	}
}

func TestRotateWithoutCookieIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	rotated, err := f.store.Rotate(ctx, f.logins, 42)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated {
		t.Error("Rotate reported a rotation with nothing to rotate")
	}
	if f.jar.Has(testCookieName) {
		t.Error("Rotate wrote a cookie for a session-only login")
	}
	if _, err := f.logins.FindByAccountAndSignature(ctx, 42, f.store.Signature()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Rotate created a login row, err = %v", err)
	}
}

func TestRotateAfterRevocationIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	if err := f.store.Create(ctx, f.logins, 42); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Revoked server-side (password reset, account security action); the
	// browser still holds the cookie.
	if err := f.logins.DeleteByAccountID(ctx, 42); err != nil {
		t.Fatalf("DeleteByAccountID: %v", err)
	}

	rotated, err := f.store.Rotate(ctx, f.logins, 42)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated {
		t.Error("Rotate reported a rotation of a revoked login")
	}
	if _, err := f.logins.FindByAccountAndSignature(ctx, 42, f.store.Signature()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Rotate re-created a revoked login, err = %v", err)
	}
	if _, ok := f.store.Resolve(ctx, f.logins); ok {
		t.Error("revoked login still resolves after Rotate")
	}
}

func TestDeleteRemovesCookieAndRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	if err := f.store.Create(ctx, f.logins, 42); err != nil {
		t.Fatalf("Create: %v", err)
	}
	value, _ := f.jar.Get(testCookieName)
	lookupKey, _, _ := strings.Cut(value, ".")

	if err := f.store.Delete(ctx, f.logins); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.jar.Has(testCookieName) {
		t.Error("Delete left the cookie in place")
	}
	if _, err := f.logins.FindByLookupKey(ctx, lookupKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete left the login row, err = %v", err)
	}

	// A second delete with nothing left must still succeed.
	if err := f.store.Delete(ctx, f.logins); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestDeleteClearsMalformedCookie(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	if err := f.jar.Set(testCookieName, "not-a-valid-value", time.Time{}); err != nil {
		t.Fatalf("seed cookie: %v", err)
	}
	if err := f.store.Delete(ctx, f.logins); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.jar.Has(testCookieName) {
		t.Error("Delete left a malformed cookie in place")
	}
}

func TestDeleteReportsRowDeleteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	if err := f.store.Create(ctx, f.logins, 42); err != nil {
		t.Fatalf("Create: %v", err)
	}

	boom := errors.New("backend down")
	f.backend.PersistentDeleteErr = boom
	err := f.store.Delete(ctx, f.logins)
	if !errors.Is(err, boom) {
		t.Fatalf("Delete error = %v, want wrapped %v", err, boom)
	}
	if f.jar.Has(testCookieName) {
		t.Error("cookie survived a failed row delete")
	}
}

func TestCreateReportsSaveFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Client{Address: "203.0.113.7", UserAgent: "Mozilla/5.0"})

	boom := errors.New("backend down")
	f.backend.PersistentSaveErr = boom
	err := f.store.Create(ctx, f.logins, 42)
	if !errors.Is(err, boom) {
		t.Fatalf("Create error = %v, want wrapped %v", err, boom)
	}
	if f.jar.Has(testCookieName) {
		t.Error("cookie written despite save failure")
	}
}

func TestClientSignatureSeparatesFields(t *testing.T) {
	// "ab" + "c" and "a" + "bc" must not collide.
	if ClientSignature("ab", "c") == ClientSignature("a", "bc") {
		t.Error("signatures collide across the address/user-agent boundary")
	}
	if ClientSignature("203.0.113.7", "Mozilla") != ClientSignature("203.0.113.7", "Mozilla") {
		t.Error("signature is not deterministic")
	}
}
