package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/pdmnode/internal/gateware"
)

// Profile represents a named capture configuration.
type Profile struct {
	ID      string `toml:"id" json:"id"`
	Name    string `toml:"name" json:"name"`
	Enabled bool   `toml:"enabled" json:"enabled"`

	// Pipeline settings
	RefClockHz   int    `toml:"ref_clock_hz,omitempty" json:"ref_clock_hz,omitempty"`
	SampleRateHz int    `toml:"sample_rate_hz,omitempty" json:"sample_rate_hz,omitempty"`
	Channels     int    `toml:"channels,omitempty" json:"channels,omitempty"`
	FIFODepth    int    `toml:"fifo_depth,omitempty" json:"fifo_depth,omitempty"`
	Source       string `toml:"source,omitempty" json:"source,omitempty"` // noise, square, constant

	// Output settings
	OutputDir      string `toml:"output_dir,omitempty" json:"output_dir,omitempty"`
	FlushThreshold int    `toml:"flush_threshold,omitempty" json:"flush_threshold,omitempty"`

	// Metadata
	CreatedAt time.Time `toml:"created_at" json:"created_at"`
	UpdatedAt time.Time `toml:"updated_at" json:"updated_at"`
}

// ProfilesConfig represents the complete capture profiles file.
type ProfilesConfig struct {
	Version  int                `toml:"version" json:"version"`
	Profiles map[string]Profile `toml:"profiles" json:"profiles"`
}

// ProfileManager manages persisted capture profiles.
type ProfileManager struct {
	configPath string
	config     *ProfilesConfig
}

// NewProfileManager creates a new profile manager.
func NewProfileManager(configPath string) *ProfileManager {
	if configPath == "" {
		configPath = "profiles.toml"
	}

	return &ProfileManager{
		configPath: configPath,
		config: &ProfilesConfig{
			Version:  1,
			Profiles: make(map[string]Profile),
		},
	}
}

// Load loads the profiles configuration from file.
func (pm *ProfileManager) Load() error {
	// Missing file means an empty profile set
	if _, err := os.Stat(pm.configPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(pm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read profiles config: %w", err)
	}

	if err := toml.Unmarshal(data, pm.config); err != nil {
		return fmt.Errorf("failed to parse profiles config: %w", err)
	}

	if pm.config.Profiles == nil {
		pm.config.Profiles = make(map[string]Profile)
	}

	if pm.config.Version == 0 {
		pm.config.Version = 1
	}

	return nil
}

// Save saves the profiles configuration to file.
func (pm *ProfileManager) Save() error {
	dir := filepath.Dir(pm.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(pm.config)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles config: %w", err)
	}

	if err := os.WriteFile(pm.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write profiles config: %w", err)
	}

	return nil
}

// AddProfile adds a new capture profile.
func (pm *ProfileManager) AddProfile(profile Profile) error {
	if profile.ID == "" {
		return fmt.Errorf("profile ID cannot be empty")
	}

	if profile.Name == "" {
		profile.Name = profile.ID
	}

	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	pm.config.Profiles[profile.ID] = profile
	return pm.Save()
}

// UpdateProfile updates an existing capture profile.
func (pm *ProfileManager) UpdateProfile(id string, updates Profile) error {
	existing, exists := pm.config.Profiles[id]
	if !exists {
		return fmt.Errorf("profile %s not found", id)
	}

	// Preserve creation time and ID
	updates.ID = existing.ID
	updates.CreatedAt = existing.CreatedAt
	updates.UpdatedAt = time.Now()

	if updates.Name == "" {
		updates.Name = existing.Name
	}

	pm.config.Profiles[id] = updates
	return pm.Save()
}

// RemoveProfile removes a capture profile.
func (pm *ProfileManager) RemoveProfile(id string) error {
	if _, exists := pm.config.Profiles[id]; !exists {
		return fmt.Errorf("profile %s not found", id)
	}

	delete(pm.config.Profiles, id)
	return pm.Save()
}

// GetProfile retrieves a profile by ID.
func (pm *ProfileManager) GetProfile(id string) (Profile, bool) {
	profile, exists := pm.config.Profiles[id]
	return profile, exists
}

// GetProfiles returns all profiles.
func (pm *ProfileManager) GetProfiles() map[string]Profile {
	return pm.config.Profiles
}

// GetEnabledProfiles returns only enabled profiles.
func (pm *ProfileManager) GetEnabledProfiles() map[string]Profile {
	enabled := make(map[string]Profile)
	for id, profile := range pm.config.Profiles {
		if profile.Enabled {
			enabled[id] = profile
		}
	}
	return enabled
}

// ToEngineConfig converts a profile to a pipeline configuration,
// filling unset fields from the defaults.
func (p Profile) ToEngineConfig() gateware.Config {
	cfg := gateware.DefaultConfig()

	if p.RefClockHz > 0 {
		cfg.RefClockHz = float64(p.RefClockHz)
	}
	if p.SampleRateHz > 0 {
		cfg.SampleRateHz = float64(p.SampleRateHz)
	}
	if p.Channels > 0 {
		cfg.Channels = p.Channels
	}
	if p.FIFODepth > 0 {
		cfg.FIFODepth = p.FIFODepth
	}

	return cfg
}

// EnableProfile enables a profile.
func (pm *ProfileManager) EnableProfile(id string) error {
	profile, exists := pm.config.Profiles[id]
	if !exists {
		return fmt.Errorf("profile %s not found", id)
	}

	profile.Enabled = true
	profile.UpdatedAt = time.Now()
	pm.config.Profiles[id] = profile
	return pm.Save()
}

// DisableProfile disables a profile.
func (pm *ProfileManager) DisableProfile(id string) error {
	profile, exists := pm.config.Profiles[id]
	if !exists {
		return fmt.Errorf("profile %s not found", id)
	}

	profile.Enabled = false
	profile.UpdatedAt = time.Now()
	pm.config.Profiles[id] = profile
	return pm.Save()
}
