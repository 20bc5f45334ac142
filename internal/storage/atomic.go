package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const tempMarker = ".tmp."

// AtomicWriter writes files through a temp file and rename so readers
// never observe a partial snapshot
type AtomicWriter struct {
	locks   map[string]*sync.RWMutex // per-file locks
	locksMu sync.Mutex               // protects the locks map
}

// NewAtomicWriter creates a new atomic writer
func NewAtomicWriter() *AtomicWriter {
	return &AtomicWriter{
		locks: make(map[string]*sync.RWMutex),
	}
}

// WriteFile writes data to a file atomically
func (w *AtomicWriter) WriteFile(filename string, data []byte, perm os.FileMode) error {
	fileLock := w.getFileLock(filename)
	fileLock.Lock()
	defer fileLock.Unlock()

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := filename + tempMarker + generateTempSuffix()

	if err := os.WriteFile(tempFile, data, perm); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := verifyFileIntegrity(tempFile, data); err != nil {
		os.Remove(tempFile)
		return err
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ReadFile reads a file under its read lock
func (w *AtomicWriter) ReadFile(filename string) ([]byte, error) {
	fileLock := w.getFileLock(filename)
	fileLock.RLock()
	defer fileLock.RUnlock()

	return os.ReadFile(filename)
}

// Remove deletes a file under its write lock; missing files are ignored
func (w *AtomicWriter) Remove(filename string) error {
	fileLock := w.getFileLock(filename)
	fileLock.Lock()
	defer fileLock.Unlock()

	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// getFileLock gets or creates a lock for a specific file
func (w *AtomicWriter) getFileLock(filename string) *sync.RWMutex {
	w.locksMu.Lock()
	defer w.locksMu.Unlock()

	if lock, exists := w.locks[filename]; exists {
		return lock
	}

	lock := &sync.RWMutex{}
	w.locks[filename] = lock
	return lock
}

// verifyFileIntegrity verifies that written data matches expected data
func verifyFileIntegrity(filename string, expectedData []byte) error {
	actualData, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	if sha256.Sum256(expectedData) != sha256.Sum256(actualData) {
		return fmt.Errorf("file integrity check failed: hash mismatch")
	}

	return nil
}

// generateTempSuffix generates a unique suffix for temporary files
func generateTempSuffix() string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid())))
	return hex.EncodeToString(hash[:4])
}

func isTempFile(name string) bool {
	return strings.Contains(filepath.Base(name), tempMarker)
}
