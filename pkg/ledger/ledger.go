package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"igmonitor/pkg/logger"
	"igmonitor/pkg/models"
)

const currentVersion = 1

// Ledger remembers which post URLs earlier runs already reported
type Ledger struct {
	Seen      map[string]time.Time `json:"seen"` // url -> first reported
	UpdatedAt time.Time            `json:"updated_at"`
	Version   int                  `json:"version"`
}

// Manager loads and persists the ledger file
type Manager struct {
	path   string
	logger logger.Logger

	mu     sync.Mutex
	ledger *Ledger
}

// DefaultPath returns seen.json inside the per-user data directory
func DefaultPath() (string, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return "", fmt.Errorf("failed to get data directory: %w", err)
	}
	return filepath.Join(dataDir, "seen.json"), nil
}

// NewManager creates a ledger manager. An empty path selects DefaultPath.
func NewManager(path string, log logger.Logger) (*Manager, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if log == nil {
		log = logger.GetLogger()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	return &Manager{path: path, logger: log}, nil
}

// Path returns the ledger file location
func (m *Manager) Path() string {
	return m.path
}

// Load reads the ledger from disk; a missing file yields an empty ledger
func (m *Manager) Load() (*Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *Manager) loadLocked() (*Ledger, error) {
	if m.ledger != nil {
		return m.ledger, nil
	}

	l := &Ledger{Seen: make(map[string]time.Time), Version: currentVersion}

	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.ledger = l
			return l, nil
		}
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(l); err != nil {
		return nil, fmt.Errorf("failed to decode ledger: %w", err)
	}
	if l.Seen == nil {
		l.Seen = make(map[string]time.Time)
	}

	m.logger.DebugWithFields("Ledger loaded", map[string]interface{}{
		"path":       m.path,
		"seen":       len(l.Seen),
		"updated_at": l.UpdatedAt,
	})

	m.ledger = l
	return l, nil
}

// Unseen returns the posts whose URL is not in the ledger, preserving order
func (m *Manager) Unseen(posts []models.Post) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.loadLocked()
	if err != nil {
		return nil, err
	}

	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if _, ok := l.Seen[p.URL]; !ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Record marks posts as reported at the given time and saves the ledger.
// Entries older than retain are dropped; a non-positive retain keeps everything.
func (m *Manager) Record(posts []models.Post, at time.Time, retain time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.loadLocked()
	if err != nil {
		return err
	}

	for _, p := range posts {
		if _, ok := l.Seen[p.URL]; !ok {
			l.Seen[p.URL] = at
		}
	}

	if retain > 0 {
		cutoff := at.Add(-retain)
		for url, first := range l.Seen {
			if first.Before(cutoff) {
				delete(l.Seen, url)
			}
		}
	}

	l.UpdatedAt = at
	return m.saveLocked(l)
}

// saveLocked writes the ledger to disk atomically
func (m *Manager) saveLocked(l *Ledger) error {
	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(l); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync ledger file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close ledger file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}

	m.logger.DebugWithFields("Ledger saved", map[string]interface{}{
		"path": m.path,
		"seen": len(l.Seen),
	})

	return nil
}

// Reset deletes the ledger file
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete ledger: %w", err)
	}
	m.ledger = nil

	m.logger.Info("Ledger reset")
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "igmonitor")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "igmonitor")
	default:
		// XDG_DATA_HOME or ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "igmonitor")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "igmonitor")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
