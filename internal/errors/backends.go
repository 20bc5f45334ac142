package errors

import (
	"fmt"
	"strings"
)

// S3CredentialsError creates an S3 authentication error with guidance
func S3CredentialsError(originalErr error) *APIDriftError {
	err := New(ErrorTypeAuthentication, BackendS3, "S3 credentials not found").WithErr(originalErr)

	if originalErr != nil && strings.Contains(originalErr.Error(), "ExpiredToken") {
		err.Message = "S3 credentials expired"
		err.WithCause("Security token has expired")
		err.WithSolutions(
			"Refresh AWS credentials",
			"aws sso login (if using SSO)",
		)
	} else if err.Environment == "CI/CD detected" {
		err.WithSolutions(
			"Configure an IAM role for the CI job with s3:PutObject, s3:GetObject, s3:ListBucket, s3:DeleteObject",
			"Set storage.primary.access_key_id and storage.primary.secret_access_key",
		)
	} else {
		err.WithSolutions(
			"aws configure",
			"export AWS_ACCESS_KEY_ID=your-key AWS_SECRET_ACCESS_KEY=your-secret",
		)
	}

	err.WithVerify("aws sts get-caller-identity")
	err.WithHelp("apidrift health")

	return err
}

// GCSCredentialsError creates a GCS authentication error with guidance
func GCSCredentialsError(originalErr error) *APIDriftError {
	err := New(ErrorTypeAuthentication, BackendGCS, "GCS authentication failed").WithErr(originalErr)

	if originalErr != nil && strings.Contains(originalErr.Error(), "could not find default credentials") {
		err.WithCause("Application default credentials not found")
	}

	if err.Environment == "CI/CD detected" {
		err.WithSolutions(
			`export GOOGLE_APPLICATION_CREDENTIALS="service-account.json"`,
			"Set credentials_file on the gcs backend",
		)
	} else {
		err.WithSolutions(`gcloud auth application-default login`)
	}

	err.WithVerify("gcloud auth list")
	err.WithHelp("apidrift health")

	return err
}

// AzureCredentialsError creates an Azure Blob authentication error with guidance
func AzureCredentialsError(originalErr error) *APIDriftError {
	err := New(ErrorTypeAuthentication, BackendAzure, "Azure Blob credentials rejected").WithErr(originalErr)

	err.WithSolutions(
		"Set account_name and account_key on the azure backend",
		"Or provide a container SAS token with read, write, delete and list permissions",
	)
	err.WithVerify("az storage container show --name <container> --account-name <account>")
	err.WithHelp("apidrift health")

	return err
}

// ConfigError creates a configuration error for one setting
func ConfigError(field, message string) *APIDriftError {
	err := New(ErrorTypeConfiguration, BackendUnknown, fmt.Sprintf("invalid configuration: %s", field))
	err.WithCause(message)
	err.WithSolutions(
		fmt.Sprintf("Set %s in apidrift.yaml", field),
		fmt.Sprintf("Or export APIDRIFT_%s", strings.ToUpper(strings.ReplaceAll(field, ".", "_"))),
	)
	err.WithHelp("apidrift --help")
	return err
}

// BackendConfigError creates a configuration error scoped to a backend
func BackendConfigError(backend Backend, name, message string) *APIDriftError {
	err := New(ErrorTypeConfiguration, backend, fmt.Sprintf("invalid %s backend %q", backend, name))
	err.WithCause(message)
	err.WithHelp("apidrift health")
	return err
}

// NetworkError creates a network connectivity error
func NetworkError(backend Backend, message string) *APIDriftError {
	err := New(ErrorTypeNetwork, backend, message)
	err.WithSolutions(
		"Check network connectivity from the CI runner",
		"Verify the backend endpoint configuration",
	)
	return err
}

// FileSystemError creates a file system error
func FileSystemError(path string, originalErr error) *APIDriftError {
	err := New(ErrorTypeFileSystem, BackendUnknown, fmt.Sprintf("cannot access %s", path)).WithErr(originalErr)
	err.WithSolutions("Check that the file exists and is readable")
	return err
}
