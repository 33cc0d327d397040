package auth

import "errors"

// Error codes reported by account operations. Clients map them to fixed messages.
const (
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeWeakPassword      = "auth/weak-password"
	CodePasswordMismatch  = "auth/password-mismatch"
	CodeInvalidCredential = "auth/invalid-credential"
)

// Error is an account failure carrying a stable code.
type Error struct {
	Code string
}

func (e *Error) Error() string {
	return e.Code
}

var messages = map[string]string{
	CodeEmailInUse:        "Email is already in use. Please use a different email.",
	CodeInvalidEmail:      "Invalid email format. Please check your email.",
	CodeWeakPassword:      "Password is too weak. Please choose a stronger password.",
	CodePasswordMismatch:  "Passwords do not match.",
	CodeInvalidCredential: "Login failed. Please check your credentials.",
}

// GenericMessage is reported for failures without a mapped code.
const GenericMessage = "Error registering user. Please try again."

// Message returns the user-facing message for code, falling back to GenericMessage.
func Message(code string) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return GenericMessage
}

// CodeOf extracts the code from err, or returns "" when err is not an *Error.
func CodeOf(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}
