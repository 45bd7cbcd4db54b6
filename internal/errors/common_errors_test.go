package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewConfigError("bad settings", nil),
			expected: "[CONFIG] bad settings",
		},
		{
			name:     "with cause",
			err:      NewNetworkError("request failed", fmt.Errorf("connection refused")),
			expected: "[NETWORK] request failed: connection refused",
		},
		{
			name:     "storage error",
			err:      NewStorageError("upload failed", nil),
			expected: "[STORAGE] upload failed",
		},
		{
			name:     "parsing error",
			err:      NewParsingError("bad row", nil),
			expected: "[PARSING] bad row",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewNetworkError("wrapped", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	err := &AppError{Type: ErrTypeConfig, Message: "m"}
	err.WithContext("key", "value").WithContext("n", 3)

	require.NotNil(t, err.Context)
	assert.Equal(t, "value", err.Context["key"])
	assert.Equal(t, 3, err.Context["n"])
}
