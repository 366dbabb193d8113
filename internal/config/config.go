// Package config holds the bot configuration: the shared core sections plus
// database, image API and generation catalog settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/sdbot/core/config"
	"github.com/m3rciful/sdbot/core/database"
	"github.com/m3rciful/sdbot/internal/params"
	"github.com/m3rciful/sdbot/internal/sdapi"
)

// StableDiffusionConfig points at the txt2img API. An empty URL leaves
// generation unconfigured; the menus keep working.
type StableDiffusionConfig struct {
	URL            string `yaml:"url" envconfig:"GRADIO_API_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"SD_TIMEOUT_SECONDS"`
}

// Enabled reports whether an API URL is set.
func (c StableDiffusionConfig) Enabled() bool {
	return c.URL != ""
}

// Timeout returns the per-request timeout.
func (c StableDiffusionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database        database.Config       `yaml:"database"`
	StableDiffusion StableDiffusionConfig `yaml:"stable_diffusion"`
	Generation      params.Catalog        `yaml:"generation"`
}

// CoreConfig exposes the embedded core section.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads path (optional) and the environment, then validates.
func Load(path string) (*Config, error) {
	cfg := &Config{Generation: params.DefaultCatalog()}
	if err := coreconfig.Load(path, cfg); err != nil {
		return nil, err
	}
	if err := Normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize validates every section and fills defaults.
func Normalize(cfg *Config) error {
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return err
	}

	sd := &cfg.StableDiffusion
	sd.URL = strings.TrimRight(strings.TrimSpace(sd.URL), "/")
	if sd.TimeoutSeconds < 0 {
		return fmt.Errorf("stable_diffusion.timeout_seconds must be >= 0")
	}
	if sd.TimeoutSeconds == 0 {
		sd.TimeoutSeconds = int(sdapi.DefaultTimeout / time.Second)
	}

	if err := cfg.Generation.Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	return nil
}
