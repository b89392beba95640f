package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

const csrfTokenBytes = 32

// GenerateCSRFPair returns a fresh double-submit pair. token is a random hex
// string held server-side; cookieValue is an obfuscated encoding of a one-way
// hash of token, safe to hand to the client. cookieValue alone does not
// reveal token; VerifyCSRFPair recomputes the relationship from token.
func GenerateCSRFPair() (token string, cookieValue string, err error) {
	token, err = GenerateToken(csrfTokenBytes)
	if err != nil {
		return "", "", err
	}

	return token, obfuscateCSRFToken(token), nil
}

// VerifyCSRFPair reports whether cookieValue was derived from token. Any
// mismatch or malformed input yields false; VerifyCSRFPair never fails with
// an error, so a forged or corrupted cookie degrades to "not authenticated"
// rather than an application fault.
func VerifyCSRFPair(token string, cookieValue string) bool {
	if token == "" || cookieValue == "" {
		return false
	}

	expected := obfuscateCSRFToken(token)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(cookieValue)) == 1
}

func obfuscateCSRFToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
