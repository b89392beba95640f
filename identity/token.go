package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrToken marks an ID token that could not be decoded at all.
var ErrToken = errors.New("identity: malformed id token")

// ParseIDToken decodes a raw Google ID token into a Claims value. With a
// keyfunc the signature is verified; with nil the payload is decoded
// unverified, for deployments that terminate verification upstream.
// Claim typing is preserved: a boolean email_verified stays distinct from
// the string "true" and fails validation later.
func ParseIDToken(raw string, keyfunc jwt.Keyfunc) (Claims, error) {
	mapClaims := jwt.MapClaims{}

	var err error
	if keyfunc != nil {
		_, err = jwt.ParseWithClaims(raw, mapClaims, keyfunc)
	} else {
		_, _, err = jwt.NewParser().ParseUnverified(raw, mapClaims)
	}
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrToken, err)
	}

	return claimsFromMap(mapClaims), nil
}

func claimsFromMap(mapClaims jwt.MapClaims) Claims {
	claims := Claims{}

	if issuer, ok := mapClaims["iss"].(string); ok {
		claims.Issuer = issuer
	}
	switch audience := mapClaims["aud"].(type) {
	case string:
		claims.Audience = audience
	case []any:
		if len(audience) > 0 {
			if first, ok := audience[0].(string); ok {
				claims.Audience = first
			}
		}
	}
	if subject, ok := mapClaims["sub"].(string); ok {
		claims.Subject = subject
	}
	switch expiry := mapClaims["exp"].(type) {
	case float64:
		claims.Expiry = int64(expiry)
	case int64:
		claims.Expiry = expiry
	}
	if verified, ok := mapClaims["email_verified"].(string); ok {
		claims.EmailVerified = verified
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
		claims.HasName = true
	}

	return claims
}
