package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeStoreError, "feed lookup failed", cause)

	require.True(t, IsCode(err, CodeStoreError))
	require.False(t, IsCode(err, CodeInvalidInput))
	require.ErrorIs(t, err, cause)
	require.Equal(t, "feed lookup failed: connection refused", err.Error())
}

func TestIsCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", Invalid("siteId must be positive"))
	require.True(t, IsCode(err, CodeInvalidInput))
	require.Equal(t, "handler: siteId must be positive", err.Error())
}
