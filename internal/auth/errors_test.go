package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMatchesByKind(t *testing.T) {
	err := Errorf(KindConflict, "email already in use")
	require.ErrorIs(t, err, ErrConflict)
	require.NotErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, "email already in use", err.Error())

	wrapped := fmt.Errorf("save user: %w", err)
	require.ErrorIs(t, wrapped, ErrConflict)
	require.Equal(t, KindConflict, KindOf(wrapped))
}

func TestKindOfUntagged(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	require.Equal(t, KindUnknown, KindOf(nil))
}

func TestIsTokenError(t *testing.T) {
	require.True(t, IsTokenError(ErrTokenExpired))
	require.True(t, IsTokenError(fmt.Errorf("verify: %w", ErrTokenSignatureInvalid)))
	require.False(t, IsTokenError(ErrUserNotFound))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "access_denied", KindAccessDenied.String())
	require.Equal(t, "resource_not_found", KindResourceNotFound.String())
	require.Equal(t, "unknown", Kind(200).String())
}
