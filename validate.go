package accountauth

import (
	"net/mail"
	"strings"

	"github.com/veldtec/accountauth/crypto"
	"github.com/veldtec/accountauth/identity"
)

// User-facing messages. Flows return these verbatim; they are deliberately
// non-enumerating where credentials are involved.
const (
	// MsgIncorrectCredentials is an exported constant or variable used by the authentication engine.
	MsgIncorrectCredentials = "Incorrect email address or password."
	// MsgActivationLinkSent is an exported constant or variable used by the authentication engine.
	MsgActivationLinkSent = "An account activation link has been sent to your email address."
	// MsgAlreadyAwaitingActivation is an exported constant or variable used by the authentication engine.
	MsgAlreadyAwaitingActivation = "This account is already awaiting activation."
	// MsgEmailAlreadyRegistered is an exported constant or variable used by the authentication engine.
	MsgEmailAlreadyRegistered = "This email address is already registered."
	// MsgNoAccountAwaitingActivation is an exported constant or variable used by the authentication engine.
	MsgNoAccountAwaitingActivation = "No account is awaiting activation for the given code."
	// MsgNoResetRequested is an exported constant or variable used by the authentication engine.
	MsgNoResetRequested = "No password reset was requested for the given code."
	// MsgAlreadyLoggedIn is an exported constant or variable used by the authentication engine.
	MsgAlreadyLoggedIn = "You are already logged in."
	// MsgNotLoggedIn is an exported constant or variable used by the authentication engine.
	MsgNotLoggedIn = "You are not logged in."
	// MsgIncorrectPassword is an exported constant or variable used by the authentication engine.
	MsgIncorrectPassword = "Incorrect password."
)

// Fixed masked messages, one per flow. The internal cause never reaches the
// caller through these.
const (
	msgLoginFailed             = "Login failed."
	msgLogoutFailed            = "Logout failed."
	msgRegistrationFailed      = "Registration failed."
	msgActivationFailed        = "Account activation failed."
	msgPasswordResetFailed     = "Password reset failed."
	msgGoogleSignInFailed      = "Google sign-in failed."
	msgAccountDeletionFailed   = "Account deletion failed."
	msgPasswordChangeFailed    = "Password change failed."
	msgDisplayNameChangeFailed = "Display name change failed."
)

const minPasswordLength = 8

func validateEmail(email string) *FlowError {
	if email == "" {
		return badRequest("Please enter your email address.")
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return badRequest("Please enter a valid email address.")
	}
	return nil
}

func validatePassword(password string) *FlowError {
	if password == "" {
		return badRequest("Please enter a password.")
	}
	if len(password) < minPasswordLength {
		return badRequest("The password must be at least 8 characters long.")
	}
	return nil
}

func validateDisplayName(displayName string) *FlowError {
	trimmed := strings.TrimSpace(displayName)
	if trimmed == "" {
		return badRequest("Please enter a display name.")
	}
	if !identity.ValidDisplayName(trimmed) {
		return badRequest("Please enter a valid display name.")
	}
	return nil
}

func validateCode(code string) *FlowError {
	if !crypto.IsHexToken(code, crypto.TokenBytes) {
		return badRequest("The given code is malformed.")
	}
	return nil
}
