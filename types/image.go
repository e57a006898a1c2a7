package types

import (
	"fmt"
	"math"
)

// EncodedImage is base64 image data with no data-URI prefix. A valid value is never empty.
type EncodedImage string

// String returns the raw base64 text.
func (e EncodedImage) String() string { return string(e) }

// Generation parameter limits
const (
	DefaultSteps    = 9
	DefaultGuidance = 0.0
	DefaultSize     = 512
	DefaultSeed     = int64(-1)

	MinSize     = 1
	MaxSize     = 2048
	MinSteps    = 1
	MaxSteps    = 200
	MinGuidance = 0.0
	MaxGuidance = 50.0
	MinSeed     = int64(-1)
)

// Upscale parameter limits
const (
	DefaultUpscaleFactor = 2.0
	MinUpscaleFactor     = 2.0
	MaxUpscaleFactor     = 5.0
)

// GenerationParams holds the stored defaults merged into every generation request.
// The prompt itself is supplied per job.
type GenerationParams struct {
	NegativePrompt string  `json:"negative_prompt" yaml:"negative_prompt" env:"NEGATIVE_PROMPT"`
	Steps          int     `json:"steps" yaml:"steps" env:"STEPS"`
	Guidance       float64 `json:"guidance" yaml:"guidance" env:"GUIDANCE"`
	Width          int     `json:"width" yaml:"width" env:"WIDTH"`
	Height         int     `json:"height" yaml:"height" env:"HEIGHT"`
	// Seed < 0 means random; it is only sent upstream when >= 0.
	Seed int64 `json:"seed" yaml:"seed" env:"SEED"`
}

// DefaultGenerationParams returns the factory generation defaults.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Steps:    DefaultSteps,
		Guidance: DefaultGuidance,
		Width:    DefaultSize,
		Height:   DefaultSize,
		Seed:     DefaultSeed,
	}
}

// Validate checks the ranges accepted for stored generation defaults.
func (p GenerationParams) Validate() error {
	if p.Width < MinSize || p.Width > MaxSize || p.Height < MinSize || p.Height > MaxSize {
		return NewError(ErrInvalidSetting,
			fmt.Sprintf("size must be between %d and %d, got %dx%d", MinSize, MaxSize, p.Width, p.Height))
	}
	if p.Steps < MinSteps || p.Steps > MaxSteps {
		return NewError(ErrInvalidSetting,
			fmt.Sprintf("steps must be between %d and %d, got %d", MinSteps, MaxSteps, p.Steps))
	}
	if math.IsNaN(p.Guidance) || p.Guidance < MinGuidance || p.Guidance > MaxGuidance {
		return NewError(ErrInvalidSetting,
			fmt.Sprintf("guidance must be between %g and %g, got %g", MinGuidance, MaxGuidance, p.Guidance))
	}
	if p.Seed < MinSeed {
		return NewError(ErrInvalidSetting, fmt.Sprintf("seed must be >= -1, got %d", p.Seed))
	}
	return nil
}

// UpscaleParams controls the optional second stage.
type UpscaleParams struct {
	Enabled bool    `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Scale   float64 `json:"scale" yaml:"scale" env:"SCALE"`
}

// DefaultUpscaleParams returns upscale disabled at 2x.
func DefaultUpscaleParams() UpscaleParams {
	return UpscaleParams{Scale: DefaultUpscaleFactor}
}

// Validate checks the scale range.
func (u UpscaleParams) Validate() error {
	if math.IsNaN(u.Scale) || u.Scale < MinUpscaleFactor || u.Scale > MaxUpscaleFactor {
		return NewError(ErrInvalidSetting,
			fmt.Sprintf("upscale factor must be between %.1f and %.1f, got %g", MinUpscaleFactor, MaxUpscaleFactor, u.Scale))
	}
	return nil
}
