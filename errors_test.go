package auth_test

import (
	"testing"

	"github.com/goliatone/go-errors"
	auth "github.com/mahirsiam2004/Lumora-Client"
	"github.com/stretchr/testify/assert"
)

func TestRegistrationErrorTaxonomy(t *testing.T) {
	assert.True(t, auth.IsRegistrationError(auth.ErrDuplicateAccount))
	assert.True(t, auth.IsRegistrationError(auth.ErrWeakPassword))
	assert.False(t, auth.IsRegistrationError(auth.ErrInvalidCredentials))
	assert.False(t, auth.IsRegistrationError(nil))

	assert.True(t, auth.IsDuplicateAccountError(auth.ErrDuplicateAccount))
	assert.False(t, auth.IsDuplicateAccountError(auth.ErrWeakPassword))
	assert.True(t, auth.IsWeakPasswordError(auth.ErrWeakPassword))
}

func TestAuthenticationErrorTaxonomy(t *testing.T) {
	assert.True(t, auth.IsAuthenticationError(auth.ErrInvalidCredentials))
	assert.True(t, auth.IsAuthenticationError(auth.ErrPopupDismissed))
	assert.False(t, auth.IsAuthenticationError(auth.ErrDuplicateAccount))

	assert.True(t, auth.IsPopupDismissedError(auth.ErrPopupDismissed))
	assert.False(t, auth.IsPopupDismissedError(auth.ErrInvalidCredentials))
}

func TestErrorsSurviveWrapping(t *testing.T) {
	wrapped := errors.Wrap(auth.ErrDuplicateAccount, errors.CategoryConflict, "registration failed").
		WithTextCode(auth.TextCodeDuplicateAccount)

	assert.True(t, auth.IsDuplicateAccountError(wrapped))
	assert.True(t, auth.IsRegistrationError(wrapped))
}

func TestIsUnauthorizedError(t *testing.T) {
	assert.True(t, auth.IsUnauthorizedError(auth.ErrUnauthorizedResponse))
	assert.True(t, auth.IsUnauthorizedError(auth.ErrInvalidCredentials), "any 401-coded error counts")
	assert.False(t, auth.IsUnauthorizedError(auth.ErrExchangeFailed))
	assert.False(t, auth.IsUnauthorizedError(nil))
}
