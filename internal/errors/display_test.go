package errors

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestDisplayError(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name: "S3 credentials",
			err:  S3CredentialsError(fmt.Errorf("no EC2 IMDS role found")),
			contains: []string{
				"S3 credentials not found",
				"no EC2 IMDS role found",
				"aws sts get-caller-identity",
			},
		},
		{
			name: "Network Error",
			err: NetworkError(BackendGCS, "storage endpoint unreachable").
				WithCause("Connection timeout after 30s"),
			contains: []string{
				"storage endpoint unreachable",
				"Connection timeout",
				"Check network connectivity",
			},
		},
		{
			name: "Configuration Error",
			err:  ConfigError("storage.primary.bucket", "bucket is required for s3 backends"),
			contains: []string{
				"invalid configuration: storage.primary.bucket",
				"bucket is required",
				"APIDRIFT_STORAGE_PRIMARY_BUCKET",
			},
		},
		{
			name:     "Plain error",
			err:      fmt.Errorf("boom"),
			contains: []string{"Error: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			DisplayError(&buf, tt.err)

			for _, expected := range tt.contains {
				assert.Contains(t, buf.String(), expected)
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "Authentication Error",
			err:      GCSCredentialsError(nil),
			expected: 77,
		},
		{
			name:     "Configuration Error",
			err:      ConfigError("storage.primary.type", "unknown backend type"),
			expected: 78,
		},
		{
			name:     "Network Error",
			err:      NetworkError(BackendS3, "Connection failed"),
			expected: 69,
		},
		{
			name:     "Wrapped configuration error",
			err:      fmt.Errorf("load: %w", BackendConfigError(BackendAzure, "archive", "account_name is required")),
			expected: 78,
		},
		{
			name:     "Generic Error",
			err:      fmt.Errorf("some generic error"),
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetExitCode(tt.err))
		})
	}
}

func TestFormatErrorWithContext(t *testing.T) {
	err := AzureCredentialsError(fmt.Errorf("AuthenticationFailed")).
		WithSolutions("Rotate the account key")

	output := FormatErrorWithContext(err, map[string]string{
		"Container": "api-snapshots",
		"Account":   "acmeci",
	})

	assert.Contains(t, output, "Azure Blob credentials rejected")
	assert.Contains(t, output, "Type: Authentication/Azure")
	assert.Contains(t, output, "Context:")
	assert.Contains(t, output, "Account: acmeci")
	assert.Contains(t, output, "3. Rotate the account key")
}

func TestAPIDriftError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := FileSystemError("/tmp/packages.json", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsUserError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsUserError(cause))
	assert.Equal(t, fmt.Sprintf("%+v", err), "[FileSystem/Unknown] cannot access /tmp/packages.json: root cause")
}
