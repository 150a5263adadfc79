package protocol

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelarena/arena/internal/models"
)

// StatusFilePath returns the status file path for an agent within the
// session's agents directory.
func StatusFilePath(agentsDir, safeID string) string {
	return filepath.Join(agentsDir, safeID+".json")
}

// ReadStatusFile reads an agent's self-reported status file. A missing file
// means the agent has not written yet; that is reported as (nil, nil), not an
// error.
func ReadStatusFile(agentsDir, safeID string) (*models.StatusFile, error) {
	data, err := os.ReadFile(StatusFilePath(agentsDir, safeID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read status file for %s: %w", safeID, err)
	}

	var sf models.StatusFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse status file for %s: %w", safeID, err)
	}
	return &sf, nil
}

// WriteStatusFile writes an agent status file. The orchestrator never calls
// this in steady state; it exists for the agent side of the protocol and for
// test harnesses.
func WriteStatusFile(agentsDir, safeID string, sf *models.StatusFile) error {
	if err := os.MkdirAll(agentsDir, 0o755); err != nil {
		return fmt.Errorf("create agents dir: %w", err)
	}
	data, err := json.Marshal(sf)
	if err != nil {
		return fmt.Errorf("encode status file: %w", err)
	}
	return os.WriteFile(StatusFilePath(agentsDir, safeID), data, 0o644)
}
