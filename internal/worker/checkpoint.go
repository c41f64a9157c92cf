package worker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/akrishnanDG/ct1-migrate/internal/models"
)

// CheckpointManager persists the site report between batches
type CheckpointManager struct {
	path string
	mu   sync.Mutex
}

// NewCheckpointManager creates a new checkpoint manager
func NewCheckpointManager(path string) *CheckpointManager {
	return &CheckpointManager{
		path: path,
	}
}

// Path returns the checkpoint file path
func (c *CheckpointManager) Path() string {
	return c.path
}

// Load loads the site report from disk
func (c *CheckpointManager) Load() (*models.SiteReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}

	var report models.SiteReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", c.path, err)
	}

	// Initialize maps if nil
	if report.EventReports == nil {
		report.EventReports = make(map[int64]*models.EventReport)
	}

	return &report, nil
}

// Save saves the site report to disk. The file is replaced atomically so a
// crash never leaves a truncated checkpoint.
func (c *CheckpointManager) Save(report *models.SiteReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

// Exists checks if a checkpoint file exists
func (c *CheckpointManager) Exists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

// Delete removes the checkpoint file
func (c *CheckpointManager) Delete() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.Exists() {
		return nil
	}
	return os.Remove(c.path)
}
