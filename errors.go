package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes surfaced alongside structured errors.
const (
	TextCodeDuplicateAccount   = "DUPLICATE_ACCOUNT"
	TextCodeWeakPassword       = "WEAK_PASSWORD"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodePopupDismissed     = "POPUP_DISMISSED"
	TextCodeExchangeFailed     = "TOKEN_EXCHANGE_FAILED"
	TextCodeRoleResolution     = "ROLE_RESOLUTION_FAILED"
	TextCodeUnauthorized       = "UNAUTHORIZED_RESPONSE"
	TextCodeDirectoryWrite     = "DIRECTORY_WRITE_FAILED"
	TextCodeIdentityUnverified = "IDENTITY_UNVERIFIED"
)

// ErrDuplicateAccount is returned when registration hits an email that is
// already in use at the identity backend.
var ErrDuplicateAccount = errors.New("an account with that email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(errors.CodeConflict)

// ErrWeakPassword is returned when the identity backend rejects a password
// under its strength policy.
var ErrWeakPassword = errors.New("the password does not meet the strength policy", errors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCredentials covers bad email/password pairs.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrPopupDismissed is returned when the interactive broker flow is cancelled
// or the consent listener cannot be opened.
var ErrPopupDismissed = errors.New("the federated sign-in flow was cancelled", errors.CategoryAuth).
	WithTextCode(TextCodePopupDismissed).
	WithCode(errors.CodeUnauthorized)

// ErrExchangeFailed is returned when the backend token mint endpoint is
// unreachable or rejects the email. The controller logs and swallows it.
var ErrExchangeFailed = errors.New("backend token exchange failed", errors.CategoryOperation).
	WithTextCode(TextCodeExchangeFailed)

// ErrRoleResolution is never surfaced past the role service; it exists so
// activity sinks and logs carry a stable code for the fallback path.
var ErrRoleResolution = errors.New("role resolution failed", errors.CategoryOperation).
	WithTextCode(TextCodeRoleResolution)

// ErrUnauthorizedResponse is returned by the backend client whenever any call
// comes back 401. Receiving it means the stored token was already cleared.
var ErrUnauthorizedResponse = errors.New("the backend rejected the bearer token", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrDirectoryWrite is returned when the user-directory mirror write fails
// after a successful registration. The created identity is not rolled back.
var ErrDirectoryWrite = errors.New("failed to record the account in the user directory", errors.CategoryOperation).
	WithTextCode(TextCodeDirectoryWrite)

func hasTextCode(err error, code string) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

// IsDuplicateAccountError checks for an email already in use.
func IsDuplicateAccountError(err error) bool {
	return hasTextCode(err, TextCodeDuplicateAccount)
}

// IsWeakPasswordError checks for a password rejected by the strength policy.
func IsWeakPasswordError(err error) bool {
	return hasTextCode(err, TextCodeWeakPassword)
}

// IsPopupDismissedError checks for a cancelled federated sign-in flow.
func IsPopupDismissedError(err error) bool {
	return hasTextCode(err, TextCodePopupDismissed)
}

// IsRegistrationError reports whether err belongs to the registration
// taxonomy (duplicate account, weak password).
func IsRegistrationError(err error) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == TextCodeDuplicateAccount || rich.TextCode == TextCodeWeakPassword
}

// IsAuthenticationError reports whether err is a credential or popup failure.
func IsAuthenticationError(err error) bool {
	var rich *errors.Error
	if !errors.As(err, &rich) {
		return false
	}
	return rich.TextCode == TextCodeInvalidCreds || rich.TextCode == TextCodePopupDismissed
}

// IsUnauthorizedError will check for ambient 401 responses
func IsUnauthorizedError(err error) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == TextCodeUnauthorized || rich.Code == errors.CodeUnauthorized
	}
	return strings.Contains(err.Error(), "401")
}
