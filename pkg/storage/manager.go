package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Manager writes report artifacts into the output directory
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager, creating outputDir if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{outputDir: outputDir}, nil
}

// Path returns the absolute location of name inside the output directory
func (m *Manager) Path(name string) string {
	p := filepath.Join(m.outputDir, filepath.Base(name))
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// Exists reports whether an artifact called name is already on disk
func (m *Manager) Exists(name string) bool {
	_, err := os.Stat(m.Path(name))
	return err == nil
}

// Save writes the contents of r to name atomically, replacing any earlier file
// of the same name, and returns the final path.
func (m *Manager) Save(name string, r io.Reader) (string, error) {
	filename := m.Path(name)

	// Create temporary file first
	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	// Atomic rename
	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return filename, nil
}

// SaveBytes is Save for an in-memory payload
func (m *Manager) SaveBytes(name string, data []byte) (string, error) {
	return m.Save(name, bytes.NewReader(data))
}
