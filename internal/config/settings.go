package config

import (
	"github.com/modelarena/arena/internal/models"
)

// LoadSettings loads the global settings, returning defaults when the file
// does not exist.
func LoadSettings() (*models.Settings, error) {
	path, err := GlobalSettingsFile()
	if err != nil {
		return nil, err
	}
	return LoadYAMLOrDefault(path, models.NewSettings)
}

// SaveSettings persists the global settings.
func SaveSettings(s *models.Settings) error {
	path, err := GlobalSettingsFile()
	if err != nil {
		return err
	}
	return SaveYAML(path, s)
}
