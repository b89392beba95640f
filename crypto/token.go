package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
)

const (
	// TokenBytes is the byte length of one-time codes and persistent-login
	// secrets; the hex encoding is twice as long.
	TokenBytes = 32

	// LookupKeyBytes is the byte length of a persistent-login lookup key.
	LookupKeyBytes = 8
)

// GenerateToken returns byteLength cryptographically secure random bytes
// encoded as a lowercase hex string of length 2*byteLength.
func GenerateToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", errors.New("token byte length must be positive")
	}

	raw := make([]byte, byteLength)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}

	return hex.EncodeToString(raw), nil
}

// IsHexToken reports whether value is a lowercase hex string of exactly
// 2*byteLength characters, i.e. a well-formed output of GenerateToken.
func IsHexToken(value string, byteLength int) bool {
	if len(value) != 2*byteLength {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
