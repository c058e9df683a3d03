package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewEmptyInputError("no cleaned jobs"),
			expected: "NO_DATA: no cleaned jobs",
		},
		{
			name:     "with cause",
			err:      NewSourceUnavailableError(ErrCodeSourceStatus, "page skipped", fmt.Errorf("status 503")),
			expected: "SOURCE_BAD_STATUS: page skipped (caused by: status 503)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
			assert.NotEmpty(t, tt.err.StackTrace())
		})
	}
}

func TestIsType(t *testing.T) {
	inner := NewMissingCredentialsError("adzuna app id not set")
	wrapped := fmt.Errorf("fetch stage: %w", inner)
	nested := NewInternalError("STAGE_FAILED", "fetch failed", inner)

	assert.True(t, IsType(inner, ErrorTypeMissingCredentials))
	assert.True(t, IsType(wrapped, ErrorTypeMissingCredentials))
	assert.True(t, IsType(nested, ErrorTypeMissingCredentials))
	assert.False(t, IsType(wrapped, ErrorTypeFitFailure))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeInternal))
	assert.False(t, IsType(nil, ErrorTypeInternal))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeFitFailure, TypeOf(NewFitFailureError("flat series", nil)))
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("plain")))
}

func TestWithContext(t *testing.T) {
	err := NewSourceUnavailableError(ErrCodeSourceRequest, "timeout", nil).
		WithContext("country", "gb").
		WithContext("page", 2)

	assert.Equal(t, "gb", err.Context["country"])
	assert.Equal(t, 2, err.Context["page"])
}

func TestLogErrorFlattensAppError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithHandler(slog.NewJSONHandler(&buf, nil))

	err := NewSourceUnavailableError(ErrCodeSourceStatus, "bad status", nil).WithContext("role", "data analyst")
	logger.LogError(err, "Fetch page failed", "page", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Fetch page failed", entry["msg"])
	assert.Equal(t, "source_unavailable", entry["error_type"])
	assert.Equal(t, ErrCodeSourceStatus, entry["error_code"])
	assert.Equal(t, "data analyst", entry["role"])
	assert.EqualValues(t, 1, entry["page"])
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := New(level)
		require.NoError(t, err)
		require.NotNil(t, logger)
	}

	_, err := New("verbose")
	assert.Error(t, err)
}
