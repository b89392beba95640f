package crypto

import (
	"strings"
	"testing"
)

func testArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	}
}

func newTestHasher(t *testing.T) *Argon2 {
	t.Helper()

	hasher, err := NewArgon2(testArgon2Config())
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return hasher
}

func TestHashAndVerify(t *testing.T) {
	hasher := newTestHasher(t)

	hash, err := hasher.Hash("pass1234")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected PHC format hash, got %q", hash)
	}

	if !hasher.Verify("pass1234", hash) {
		t.Fatal("expected verification of correct password to succeed")
	}
	if hasher.Verify("pass12345", hash) {
		t.Fatal("expected verification of wrong password to fail")
	}
}

func TestHashIsSalted(t *testing.T) {
	hasher := newTestHasher(t)

	first, err := hasher.Hash("pass1234")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	second, err := hasher.Hash("pass1234")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if first == second {
		t.Fatal("expected two hashes of the same password to differ")
	}
}

func TestVerifyMalformedHashNeverPanics(t *testing.T) {
	hasher := newTestHasher(t)

	malformed := []string{
		"",
		"plaintext",
		"$argon2id$",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$aGFzaA",
	}

	for _, hash := range malformed {
		if hasher.Verify("pass1234", hash) {
			t.Fatalf("expected verification against malformed hash %q to fail", hash)
		}
	}
}

func TestVerifyTamperedHash(t *testing.T) {
	hasher := newTestHasher(t)

	hash, err := hasher.Hash("pass1234")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	tampered := []byte(hash)
	tampered[len(tampered)-1] ^= 0x01
	if hasher.Verify("pass1234", string(tampered)) {
		t.Fatal("expected verification against tampered hash to fail")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := testArgon2Config()
	weakHasher, err := NewArgon2(weak)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	hash, err := weakHasher.Hash("pass1234")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	strong := weak
	strong.Time = 2
	strongHasher, err := NewArgon2(strong)
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}

	upgrade, err := strongHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if !upgrade {
		t.Fatal("expected hash with weaker time cost to need upgrade")
	}

	upgrade, err = weakHasher.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("NeedsUpgrade failed: %v", err)
	}
	if upgrade {
		t.Fatal("expected hash with current parameters to not need upgrade")
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	cfg := testArgon2Config()
	cfg.Memory = 1024

	if _, err := NewArgon2(cfg); err == nil {
		t.Fatal("expected config below minimum memory to be rejected")
	}
}
