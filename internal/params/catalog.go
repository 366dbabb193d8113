package params

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Defaults are the values a fresh Set starts from.
type Defaults struct {
	NegativePrompt string  `yaml:"negative_prompt" envconfig:"SD_DEFAULT_NEGATIVE_PROMPT"`
	Steps          int     `yaml:"steps" envconfig:"SD_DEFAULT_STEPS"`
	CFGScale       float64 `yaml:"cfg_scale" envconfig:"SD_DEFAULT_CFG_SCALE"`
	Width          int     `yaml:"width" envconfig:"SD_DEFAULT_WIDTH"`
	Height         int     `yaml:"height" envconfig:"SD_DEFAULT_HEIGHT"`
	Sampler        string  `yaml:"sampler" envconfig:"SD_DEFAULT_SAMPLER"`
	Scheduler      string  `yaml:"scheduler" envconfig:"SD_DEFAULT_SCHEDULER"`
	BatchSize      int     `yaml:"batch_size" envconfig:"SD_DEFAULT_BATCH_SIZE"`
}

// SizePreset is a named width/height pair.
type SizePreset struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// QualityPreset is a named steps/cfg pair.
type QualityPreset struct {
	Name     string  `yaml:"name"`
	Steps    int     `yaml:"steps"`
	CFGScale float64 `yaml:"cfg_scale"`
}

// Updates returns the preset as bulk updates.
func (p QualityPreset) Updates() []Update {
	return []Update{
		{Field: FieldSteps, Value: p.Steps},
		{Field: FieldCFGScale, Value: p.CFGScale},
	}
}

// Updates returns the preset as bulk updates.
func (p SizePreset) Updates() []Update {
	return []Update{
		{Field: FieldWidth, Value: p.Width},
		{Field: FieldHeight, Value: p.Height},
	}
}

// Catalog is the fixed, ordered set of choices offered by the menus.
type Catalog struct {
	Defaults   Defaults        `yaml:"defaults"`
	Samplers   []string        `yaml:"samplers"`
	Schedulers []string        `yaml:"schedulers"`
	Sizes      []SizePreset    `yaml:"size_presets"`
	Qualities  []QualityPreset `yaml:"quality_presets"`
}

// DefaultDefaults returns the stock parameter defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		NegativePrompt: "ugly, blurry, low quality, distorted",
		Steps:          20,
		CFGScale:       7.0,
		Width:          512,
		Height:         512,
		Sampler:        "Euler a",
		Scheduler:      "Automatic",
		BatchSize:      1,
	}
}

// DefaultCatalog returns the stock menus.
func DefaultCatalog() Catalog {
	return Catalog{
		Defaults: DefaultDefaults(),
		Samplers: []string{
			"Euler a", "Euler", "DPM++ 2M Karras", "DPM++ 2M",
			"DPM++ SDE Karras", "DPM++ SDE", "DPM++ 2M SDE Karras",
			"DPM++ 2M SDE", "DPM++ 3M SDE Karras", "DPM++ 3M SDE",
			"DPM2 Karras", "DPM2", "DPM2 a Karras", "DPM2 a",
			"Heun", "LMS", "LMS Karras", "DDIM", "PLMS",
			"UniPC", "DPM fast", "DPM adaptive",
		},
		Schedulers: []string{
			"Automatic", "Karras", "Exponential", "Polyexponential",
			"SGM Uniform", "Simple", "Normal", "DDIM", "Beta",
		},
		Sizes: []SizePreset{
			{Name: "Square 512x512", Width: 512, Height: 512},
			{Name: "Square 768x768", Width: 768, Height: 768},
			{Name: "Portrait 512x768", Width: 512, Height: 768},
			{Name: "Landscape 768x512", Width: 768, Height: 512},
			{Name: "HD 1024x768", Width: 1024, Height: 768},
		},
		Qualities: []QualityPreset{
			{Name: "Fast (10 steps)", Steps: 10, CFGScale: 7.0},
			{Name: "Balanced (20 steps)", Steps: 20, CFGScale: 7.0},
			{Name: "Quality (30 steps)", Steps: 30, CFGScale: 7.5},
			{Name: "High Detail (50 steps)", Steps: 50, CFGScale: 8.0},
		},
	}
}

// Quality looks up a quality preset by name.
func (c Catalog) Quality(name string) (QualityPreset, bool) {
	for _, p := range c.Qualities {
		if p.Name == name {
			return p, true
		}
	}
	return QualityPreset{}, false
}

// Size looks up a size preset by name.
func (c Catalog) Size(name string) (SizePreset, bool) {
	for _, p := range c.Sizes {
		if p.Name == name {
			return p, true
		}
	}
	return SizePreset{}, false
}

// HasSampler reports whether name is an offered sampler.
func (c Catalog) HasSampler(name string) bool {
	return slices.Contains(c.Samplers, name)
}

// HasScheduler reports whether name is an offered scheduler.
func (c Catalog) HasScheduler(name string) bool {
	return slices.Contains(c.Schedulers, name)
}

// Validate checks that presets and defaults fit the parameter domains and
// that every name fits in a callback token.
func (c Catalog) Validate() error {
	var errs []error
	d := c.Defaults
	if !StepsRange.Contains(float64(d.Steps)) {
		errs = append(errs, fmt.Errorf("defaults.steps %d out of range", d.Steps))
	}
	if !CFGRange.Contains(d.CFGScale) {
		errs = append(errs, fmt.Errorf("defaults.cfg_scale %v out of range", d.CFGScale))
	}
	if !SizeRange.Contains(float64(d.Width)) || !SizeRange.Contains(float64(d.Height)) {
		errs = append(errs, fmt.Errorf("defaults size %dx%d out of range", d.Width, d.Height))
	}
	if d.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("defaults.batch_size must be >= 1"))
	}
	if len(c.Samplers) == 0 {
		errs = append(errs, errors.New("samplers must not be empty"))
	} else if !c.HasSampler(d.Sampler) {
		errs = append(errs, fmt.Errorf("defaults.sampler %q is not in samplers", d.Sampler))
	}
	if len(c.Schedulers) == 0 {
		errs = append(errs, errors.New("schedulers must not be empty"))
	} else if !c.HasScheduler(d.Scheduler) {
		errs = append(errs, fmt.Errorf("defaults.scheduler %q is not in schedulers", d.Scheduler))
	}
	for _, p := range c.Qualities {
		if !StepsRange.Contains(float64(p.Steps)) || !CFGRange.Contains(p.CFGScale) {
			errs = append(errs, fmt.Errorf("quality preset %q out of range", p.Name))
		}
	}
	for _, p := range c.Sizes {
		if !SizeRange.Contains(float64(p.Width)) || !SizeRange.Contains(float64(p.Height)) {
			errs = append(errs, fmt.Errorf("size preset %q out of range", p.Name))
		}
	}
	for _, name := range c.names() {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("catalog names must not be empty"))
			break
		}
		if len(name) > MaxNameBytes {
			errs = append(errs, fmt.Errorf("catalog name %q exceeds %d bytes", name, MaxNameBytes))
		}
	}
	return errors.Join(errs...)
}

// MaxNameBytes keeps "category:name" tokens inside Telegram's 64 byte
// callback data limit together with the transport prefix.
const MaxNameBytes = 40

func (c Catalog) names() []string {
	out := make([]string, 0, len(c.Samplers)+len(c.Schedulers)+len(c.Sizes)+len(c.Qualities))
	out = append(out, c.Samplers...)
	out = append(out, c.Schedulers...)
	for _, p := range c.Sizes {
		out = append(out, p.Name)
	}
	for _, p := range c.Qualities {
		out = append(out, p.Name)
	}
	return out
}
