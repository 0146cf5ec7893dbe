package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "marketchat/errors"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", time.Hour)

	token, err := manager.Generate("user-123")
	req.NoError(err)
	req.NotEmpty(token)

	userID, err := manager.Validate(token)
	req.NoError(err)
	req.Equal("user-123", userID)
}

func TestTokenManager_RejectsBadTokens(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", time.Hour)

	_, err := manager.Validate("")
	req.ErrorIs(err, apperrors.ErrUnauthenticated)

	_, err = manager.Validate("not.a.jwt")
	req.ErrorIs(err, apperrors.ErrUnauthenticated)

	// Signed with a different secret.
	other, err := NewTokenManager("other-secret", time.Hour).Generate("user-123")
	req.NoError(err)
	_, err = manager.Validate(other)
	req.ErrorIs(err, apperrors.ErrUnauthenticated)
}

func TestTokenManager_RejectsExpiredTokens(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", -time.Minute)

	token, err := manager.Generate("user-123")
	req.NoError(err)

	_, err = manager.Validate(token)
	req.ErrorIs(err, apperrors.ErrUnauthenticated)
}
