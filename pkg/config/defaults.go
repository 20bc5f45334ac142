package config

import (
	"os"
	"path/filepath"
)

// DefaultsManager derives defaults from the working directory and the
// credentials available on the machine
type DefaultsManager struct {
	workingDir string
	homeDir    string
	getenv     func(string) string
}

// NewDefaultsManager creates a new defaults manager
func NewDefaultsManager() *DefaultsManager {
	wd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	return &DefaultsManager{
		workingDir: wd,
		homeDir:    home,
		getenv:     os.Getenv,
	}
}

// DefaultCachePath returns the local snapshot cache location. Inside a
// project checkout the cache lives next to the sources, otherwise under
// the user's home directory.
func (dm *DefaultsManager) DefaultCachePath() string {
	projectMarkers := []string{".git", "package.json", "pnpm-workspace.yaml", "go.mod"}

	for _, marker := range projectMarkers {
		if _, err := os.Stat(filepath.Join(dm.workingDir, marker)); err == nil {
			return filepath.Join(dm.workingDir, ".apidrift", "cache")
		}
	}

	if dm.homeDir == "" {
		return filepath.Join(".", ".apidrift", "cache")
	}

	return filepath.Join(dm.homeDir, ".apidrift", "cache")
}

// AvailableCredentials reports which cloud backend types have ambient
// credentials configured
func (dm *DefaultsManager) AvailableCredentials() map[string]bool {
	return map[string]bool{
		BackendS3:    dm.hasAWSCredentials(),
		BackendGCS:   dm.hasGCSCredentials(),
		BackendAzure: dm.getenv("AZURE_STORAGE_ACCOUNT") != "" && (dm.getenv("AZURE_STORAGE_KEY") != "" || dm.getenv("AZURE_STORAGE_SAS_TOKEN") != ""),
	}
}

func (dm *DefaultsManager) hasAWSCredentials() bool {
	if dm.getenv("AWS_ACCESS_KEY_ID") != "" && dm.getenv("AWS_SECRET_ACCESS_KEY") != "" {
		return true
	}
	if dm.getenv("AWS_WEB_IDENTITY_TOKEN_FILE") != "" || dm.getenv("AWS_PROFILE") != "" {
		return true
	}
	if dm.homeDir == "" {
		return false
	}
	for _, path := range []string{
		filepath.Join(dm.homeDir, ".aws", "credentials"),
		filepath.Join(dm.homeDir, ".aws", "config"),
	} {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

func (dm *DefaultsManager) hasGCSCredentials() bool {
	if path := dm.getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	if dm.homeDir == "" {
		return false
	}
	adc := filepath.Join(dm.homeDir, ".config", "gcloud", "application_default_credentials.json")
	_, err := os.Stat(adc)
	return err == nil
}
