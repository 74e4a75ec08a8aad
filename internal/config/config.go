// Package config loads verdant settings and the dashboard card block.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds application settings.
type Config struct {
	Hass           HassConfig
	HTTP           HTTPConfig
	DataDir        string
	LogLevel       string
	ResyncInterval time.Duration
	Card           Card
}

// HassConfig holds the Home Assistant connection.
type HassConfig struct {
	URL               string
	Token             string
	RequestsPerSecond float64
}

// HTTPConfig holds the headless server settings.
type HTTPConfig struct {
	Addr string
}

// DefaultDataDir is ~/.verdant.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".verdant")
}

// Load reads configuration from path (or ~/.verdant/config.yaml when empty)
// and the environment. Env var overrides use prefix VERDANT_, e.g.
// VERDANT_HASS_TOKEN. The card comes from the inline "card" block or from
// the YAML file named by card_file; it is validated before Load returns.
// A card error still returns the application settings.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("hass.url", "http://homeassistant.local:8123")
	v.SetDefault("hass.token", "")
	v.SetDefault("hass.requests_per_second", 20)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("resync_interval", 5*time.Minute)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDataDir())
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("VERDANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine; an explicit path must exist.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	c := Config{
		Hass: HassConfig{
			URL:               v.GetString("hass.url"),
			Token:             v.GetString("hass.token"),
			RequestsPerSecond: v.GetFloat64("hass.requests_per_second"),
		},
		HTTP:           HTTPConfig{Addr: v.GetString("http.addr")},
		DataDir:        v.GetString("data_dir"),
		LogLevel:       v.GetString("log_level"),
		ResyncInterval: v.GetDuration("resync_interval"),
	}

	card, err := loadCard(v)
	if err != nil {
		// Settings stay usable for commands that never touch the card.
		return c, err
	}
	c.Card = card
	return c, nil
}

// loadCard prefers the inline block. It is re-encoded as YAML so both
// sources go through the same parser and defaults.
func loadCard(v *viper.Viper) (Card, error) {
	if inline := v.Get("card"); inline != nil {
		data, err := yaml.Marshal(inline)
		if err != nil {
			return Card{}, fmt.Errorf("encode inline card: %w", err)
		}
		return ParseCard(data)
	}

	if file := v.GetString("card_file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return Card{}, fmt.Errorf("read card file: %w", err)
		}
		return ParseCard(data)
	}

	return Card{}, ErrNoSelection
}
