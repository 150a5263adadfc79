package protocol

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelarena/arena/internal/models"
)

// ControlFilePath returns the control signal path for an agent within the
// session's control directory.
func ControlFilePath(controlDir, safeID string) string {
	return filepath.Join(controlDir, safeID+".json")
}

// WriteControlSignal writes a control signal file for an agent. The agent
// reads and deletes the file the next time it checks; delivery is advisory,
// not guaranteed.
func WriteControlSignal(controlDir, safeID, signalType, reason string) error {
	if err := os.MkdirAll(controlDir, 0o755); err != nil {
		return fmt.Errorf("create control dir: %w", err)
	}

	sig := models.ControlSignal{
		Type:      signalType,
		Reason:    reason,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode control signal: %w", err)
	}
	if err := os.WriteFile(ControlFilePath(controlDir, safeID), data, 0o644); err != nil {
		return fmt.Errorf("write control signal for %s: %w", safeID, err)
	}
	return nil
}

// ConsumeControlSignal reads and deletes a pending control signal, if any.
// This is the agent side of the exchange; it also lets tests verify the
// read-then-delete convention.
func ConsumeControlSignal(controlDir, safeID string) (*models.ControlSignal, error) {
	path := ControlFilePath(controlDir, safeID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read control signal for %s: %w", safeID, err)
	}

	var sig models.ControlSignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, fmt.Errorf("parse control signal for %s: %w", safeID, err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &sig, fmt.Errorf("delete control signal for %s: %w", safeID, err)
	}
	return &sig, nil
}
