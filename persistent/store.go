// Package persistent issues and resolves long-lived login cookies backed by
// hashed tokens in storage. A cookie carries `<lookupKey>.<token>`; only the
// token's hash is stored, so a leaked table cannot forge cookies.
package persistent

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/veldtec/accountauth/cookie"
	"github.com/veldtec/accountauth/crypto"
	"github.com/veldtec/accountauth/storage"
)

// TokenHasher hashes persistent-login tokens before they reach storage and
// verifies presented tokens against stored hashes.
type TokenHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encodedHash string) bool
}

// Client identifies the browser a persistent login is bound to.
type Client struct {
	Address   string
	UserAgent string
}

// Store manages the persistent-login cookie for a single request. Repository
// access is passed per call so flows can run writes inside their own
// transaction scope.
type Store struct {
	cookies    cookie.Jar
	hasher     TokenHasher
	cookieName string
	client     Client
	now        func() time.Time
}

// New binds a Store to the request's cookie jar and client identity.
func New(cookies cookie.Jar, hasher TokenHasher, cookieName string, client Client, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		cookies:    cookies,
		hasher:     hasher,
		cookieName: cookieName,
		client:     client,
		now:        now,
	}
}

// Signature returns the client signature the Store binds logins to.
func (s *Store) Signature() string {
	return ClientSignature(s.client.Address, s.client.UserAgent)
}

// ClientSignature derives the storage-side fingerprint of a client from its
// network address and user agent.
func ClientSignature(address, userAgent string) string {
	sum := sha256.Sum256([]byte(address + "\x00" + userAgent))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

// Create issues a fresh persistent login for accountID: a new token and
// lookup key, an upserted row keyed by (account, client signature), and the
// cookie holding the plain token. Valid for one month from now.
func (s *Store) Create(ctx context.Context, logins storage.PersistentLoginRepo, accountID int64) error {
	return s.issue(ctx, logins, accountID)
}

// Rotate replaces the stored persistent login for accountID with a fresh
// token and reports whether it did. Without a persistent cookie on the
// request there is nothing to rotate, so session-only logins never gain one.
// Without a stored row for this client the login was revoked; rotation must
// not re-mint it.
func (s *Store) Rotate(ctx context.Context, logins storage.PersistentLoginRepo, accountID int64) (bool, error) {
	if !s.cookies.Has(s.cookieName) {
		return false, nil
	}
	if _, err := logins.FindByAccountAndSignature(ctx, accountID, s.Signature()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("persistent: find login: %w", err)
	}
	if err := s.issue(ctx, logins, accountID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) issue(ctx context.Context, logins storage.PersistentLoginRepo, accountID int64) error {
	token, err := crypto.GenerateToken(crypto.TokenBytes)
	if err != nil {
		return fmt.Errorf("persistent: generate token: %w", err)
	}
	lookupKey, err := crypto.GenerateToken(crypto.LookupKeyBytes)
	if err != nil {
		return fmt.Errorf("persistent: generate lookup key: %w", err)
	}
	tokenHash, err := s.hasher.Hash(token)
	if err != nil {
		return fmt.Errorf("persistent: hash token: %w", err)
	}

	expires := s.now().AddDate(0, 1, 0)
	login := &storage.PersistentLogin{
		AccountID:       accountID,
		ClientSignature: s.Signature(),
		LookupKey:       lookupKey,
		TokenHash:       tokenHash,
		TimeExpires:     expires.Unix(),
	}
	if err := logins.Save(ctx, login); err != nil {
		return fmt.Errorf("persistent: save login: %w", err)
	}

	if err := s.cookies.Set(s.cookieName, lookupKey+"."+token, expires); err != nil {
		return fmt.Errorf("persistent: write cookie: %w", err)
	}
	return nil
}

// Resolve checks the persistent cookie against storage and returns the bound
// account id. It reports false on any mismatch, expiry, or storage trouble
// and never returns an error, so session resolution stays infallible.
func (s *Store) Resolve(ctx context.Context, logins storage.PersistentLoginRepo) (int64, bool) {
	value, ok := s.cookies.Get(s.cookieName)
	if !ok {
		return 0, false
	}

	lookupKey, token, ok := splitCookie(value)
	if !ok {
		return 0, false
	}

	login, err := logins.FindByLookupKey(ctx, lookupKey)
	if err != nil {
		return 0, false
	}
	if login.ClientSignature != s.Signature() {
		return 0, false
	}
	if !s.hasher.Verify(token, login.TokenHash) {
		return 0, false
	}
	if s.now().Unix() >= login.TimeExpires {
		return 0, false
	}
	return login.AccountID, true
}

// Delete removes the persistent cookie and, when the cookie referenced a
// stored login, the backing row. The cookie is cleared even when the value is
// malformed or the row is already gone.
func (s *Store) Delete(ctx context.Context, logins storage.PersistentLoginRepo) error {
	value, ok := s.cookies.Get(s.cookieName)
	s.cookies.Delete(s.cookieName)
	if !ok {
		return nil
	}

	lookupKey, _, ok := splitCookie(value)
	if !ok {
		return nil
	}

	login, err := logins.FindByLookupKey(ctx, lookupKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("persistent: find login: %w", err)
	}
	if err := logins.Delete(ctx, login.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("persistent: delete login: %w", err)
	}
	return nil
}

// splitCookie separates `<lookupKey>.<token>` and validates both halves as
// lowercase hex of the expected widths.
func splitCookie(value string) (lookupKey, token string, ok bool) {
	lookupKey, token, found := strings.Cut(value, ".")
	if !found {
		return "", "", false
	}
	if !crypto.IsHexToken(lookupKey, crypto.LookupKeyBytes) {
		return "", "", false
	}
	if !crypto.IsHexToken(token, crypto.TokenBytes) {
		return "", "", false
	}
	return lookupKey, token, true
}
