package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/uuid"

	"general-display/pkg/globals"
)

// Defaults for keys missing from config.json
var defaults = map[string]any{
	"hostname":          "ESP32",
	"fallbackName":      "ESP_Config",
	"fallbackPassword":  "EspWiFiDisplay",
	"slideshowPeriodMs": 3000,
	"maxImages":         64,
	"maxPathLen":        32,
	"connectAttempts":   10,
	"connectDelayMs":    2000,
	"interface":         "wlan0",
	"httpPort":          80,
	"displayBus":        "",
	"displayWidth":      128,
	"displayHeight":     64,
}

type Config struct {
	mu   sync.RWMutex
	path string
	data map[string]any
}

var instance *Config
var once sync.Once

// Init loads globals.ConfigPath, creating it on first boot
func Init() error {
	var err error
	once.Do(func() {
		instance, err = Load(globals.ConfigPath)
	})
	return err
}

// Get returns the singleton config instance
func Get() *Config {
	if instance == nil {
		panic("config not initialized - call Init() first")
	}
	return instance
}

// Load reads the config file at path, creating it if it doesn't exist
func Load(path string) (*Config, error) {
	c := &Config{path: path, data: make(map[string]any)}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c, c.createInitialConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, &c.data); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return c, nil
}

func (c *Config) createInitialConfig() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("failed to generate device ID: %w", err)
	}

	c.data = map[string]any{
		"id":               id.String(),
		"firmware_version": globals.FirmwareVersion,
	}

	return c.save()
}

func (c *Config) save() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// SetKey sets a config value and persists to disk
// Pass nil to delete the key
func (c *Config) SetKey(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value == nil {
		delete(c.data, key)
	} else {
		c.data[key] = value
	}

	return c.save()
}

// GetKey retrieves a config value, falling back to the built-in default
// Returns the value and a boolean indicating if the key exists
func (c *Config) GetKey(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if value, exists := c.data[key]; exists {
		return value, true
	}
	value, exists := defaults[key]
	return value, exists
}

// GetString returns key as a string, or the default when absent or mistyped
func (c *Config) GetString(key string) string {
	if v, ok := c.GetKey(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	s, _ := defaults[key].(string)
	return s
}

// GetInt returns key as an int; JSON numbers arrive as float64
func (c *Config) GetInt(key string) int {
	v, _ := c.GetKey(key)
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	n, _ := defaults[key].(int)
	return n
}

// StampFirmware records version under "firmware_version" and reports the
// previously stored one when it changed
func (c *Config) StampFirmware(version string) (previous string, changed bool, err error) {
	previous = c.GetString("firmware_version")
	if previous == version {
		return previous, false, nil
	}
	if err := c.SetKey("firmware_version", version); err != nil {
		return previous, false, err
	}
	return previous, true, nil
}
