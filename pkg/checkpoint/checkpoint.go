package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"cityharvest/pkg/logger"
)

const currentVersion = 1

// Checkpoint represents the tile progress of a location harvest for one city
type Checkpoint struct {
	CityID         int64                `json:"city_id"`
	CityName       string               `json:"city_name"`
	RunID          string               `json:"run_id"`
	TotalTiles     int                  `json:"total_tiles"`
	CompletedTiles map[string]time.Time `json:"completed_tiles"` // tile key -> completion time
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	Version        int                  `json:"version"`
}

// Manager handles checkpoint operations. It is safe for concurrent use by
// the workers of one run.
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	mu             sync.Mutex
}

// NewManager creates a checkpoint manager for cityID. An empty dir selects the
// platform data directory.
func NewManager(dir string, cityID int64) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("city-%d.checkpoint.json", cityID)),
		logger:         logger.GetLogger(),
	}, nil
}

// WithLogger replaces the manager's logger
func (m *Manager) WithLogger(log logger.Logger) *Manager {
	if log != nil {
		m.logger = log
	}
	return m
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a new checkpoint
func (m *Manager) Create(cityID int64, cityName, runID string, totalTiles int) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		CityID:         cityID,
		CityName:       cityName,
		RunID:          runID,
		TotalTiles:     totalTiles,
		CompletedTiles: make(map[string]time.Time),
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        currentVersion,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"city_id": cityID,
		"path":    m.checkpointPath,
	})

	return cp, nil
}

// Load loads an existing checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != currentVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}
	if cp.CompletedTiles == nil {
		cp.CompletedTiles = make(map[string]time.Time)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"city_id":         cp.CityID,
		"completed_tiles": len(cp.CompletedTiles),
		"total_tiles":     cp.TotalTiles,
		"updated_at":      cp.UpdatedAt,
	})

	return &cp, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(cp)
}

func (m *Manager) save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	// Atomically replace the old checkpoint file
	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"city_id":         cp.CityID,
		"completed_tiles": len(cp.CompletedTiles),
	})

	return nil
}

// RecordTile marks a tile as searched and saves the checkpoint
func (m *Manager) RecordTile(cp *Checkpoint, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp.CompletedTiles[key] = time.Now().UTC()
	return m.save(cp)
}

// IsTileDone checks if a tile was already searched. It must not race with
// RecordTile on the same checkpoint.
func (cp *Checkpoint) IsTileDone(key string) bool {
	_, ok := cp.CompletedTiles[key]
	return ok
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "cityharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "cityharvest")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "cityharvest")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "cityharvest")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return dataDir, nil
}
