// Package sdapi talks to an Automatic1111 compatible txt2img endpoint.
package sdapi

import "github.com/m3rciful/sdbot/internal/params"

// Request is the txt2img JSON body.
type Request struct {
	Prompt           string  `json:"prompt"`
	NegativePrompt   string  `json:"negative_prompt"`
	Steps            int     `json:"steps"`
	CFGScale         float64 `json:"cfg_scale"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	SamplerName      string  `json:"sampler_name"`
	SamplerIndex     string  `json:"sampler_index"`
	Scheduler        string  `json:"scheduler"`
	Seed             int64   `json:"seed"`
	Subseed          int64   `json:"subseed"`
	SubseedStrength  float64 `json:"subseed_strength"`
	SeedResizeFromH  int     `json:"seed_resize_from_h"`
	SeedResizeFromW  int     `json:"seed_resize_from_w"`
	BatchSize        int     `json:"batch_size"`
	NIter            int     `json:"n_iter"`
	RestoreFaces     bool    `json:"restore_faces"`
	Tiling           bool    `json:"tiling"`
	DoNotSaveSamples bool    `json:"do_not_save_samples"`
	DoNotSaveGrid    bool    `json:"do_not_save_grid"`
	SaveImages       bool    `json:"save_images"`
}

// Build maps a parameter snapshot onto the request body.
func Build(p params.Set) Request {
	return Request{
		Prompt:           p.Prompt,
		NegativePrompt:   p.NegativePrompt,
		Steps:            p.Steps,
		CFGScale:         p.CFGScale,
		Width:            p.Width,
		Height:           p.Height,
		SamplerName:      p.Sampler,
		SamplerIndex:     p.Sampler,
		Scheduler:        p.Scheduler,
		Seed:             p.Seed,
		Subseed:          p.Subseed,
		SubseedStrength:  p.SubseedStrength,
		SeedResizeFromH:  -1,
		SeedResizeFromW:  -1,
		BatchSize:        p.BatchSize,
		NIter:            1,
		RestoreFaces:     p.RestoreFaces,
		Tiling:           p.Tiling,
		DoNotSaveSamples: true,
		DoNotSaveGrid:    true,
		SaveImages:       false,
	}
}
