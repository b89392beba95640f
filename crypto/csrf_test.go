package crypto

import "testing"

func TestGenerateCSRFPair(t *testing.T) {
	token, cookieValue, err := GenerateCSRFPair()
	if err != nil {
		t.Fatalf("GenerateCSRFPair failed: %v", err)
	}

	if !IsHexToken(token, csrfTokenBytes) {
		t.Fatalf("expected %d-char hex token, got %q", 2*csrfTokenBytes, token)
	}
	if cookieValue == "" || cookieValue == token {
		t.Fatalf("expected obfuscated cookie value distinct from token, got %q", cookieValue)
	}

	if !VerifyCSRFPair(token, cookieValue) {
		t.Fatal("expected freshly generated pair to verify")
	}
}

func TestVerifyCSRFPairRejectsBitFlips(t *testing.T) {
	token, cookieValue, err := GenerateCSRFPair()
	if err != nil {
		t.Fatalf("GenerateCSRFPair failed: %v", err)
	}

	for i := 0; i < len(token); i++ {
		mutated := []byte(token)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		if string(mutated) == token {
			continue
		}
		if VerifyCSRFPair(string(mutated), cookieValue) {
			t.Fatalf("expected mutated token at index %d to fail verification", i)
		}
	}

	for i := 0; i < len(cookieValue); i++ {
		mutated := []byte(cookieValue)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		if string(mutated) == cookieValue {
			continue
		}
		if VerifyCSRFPair(token, string(mutated)) {
			t.Fatalf("expected mutated cookie value at index %d to fail verification", i)
		}
	}
}

func TestVerifyCSRFPairRejectsMalformedInput(t *testing.T) {
	token, cookieValue, err := GenerateCSRFPair()
	if err != nil {
		t.Fatalf("GenerateCSRFPair failed: %v", err)
	}

	cases := []struct {
		name   string
		token  string
		cookie string
	}{
		{"empty token", "", cookieValue},
		{"empty cookie", token, ""},
		{"both empty", "", ""},
		{"swapped", cookieValue, token},
		{"garbage cookie", token, "not-base64-!!!"},
	}

	for _, tc := range cases {
		if VerifyCSRFPair(tc.token, tc.cookie) {
			t.Fatalf("%s: expected verification to fail", tc.name)
		}
	}
}

func TestCSRFPairsAreIndependent(t *testing.T) {
	token1, cookie1, err := GenerateCSRFPair()
	if err != nil {
		t.Fatalf("GenerateCSRFPair failed: %v", err)
	}
	token2, cookie2, err := GenerateCSRFPair()
	if err != nil {
		t.Fatalf("GenerateCSRFPair failed: %v", err)
	}

	if token1 == token2 {
		t.Fatal("expected distinct tokens across generations")
	}
	if VerifyCSRFPair(token1, cookie2) || VerifyCSRFPair(token2, cookie1) {
		t.Fatal("expected cross-pair verification to fail")
	}
}
