package settings

import (
	"fmt"
	"strings"

	"github.com/BaSui01/zigen/types"
)

// Mutation changes one aspect of the settings, rejecting out-of-range input.
type Mutation func(*Settings) error

// Apply chains mutations; the first rejection stops the chain.
func Apply(mutations ...Mutation) Mutation {
	return func(s *Settings) error {
		for _, m := range mutations {
			if err := m(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// SetServiceURL sets the generation endpoint. It must start with http:// or https://.
func SetServiceURL(u string) Mutation {
	return func(s *Settings) error {
		u = strings.TrimSpace(u)
		if err := validateServiceURL(u); err != nil {
			return err
		}
		s.ServiceURL = u
		return nil
	}
}

// SetSize sets the default width and height (1–2048 each).
func SetSize(width, height int) Mutation {
	return func(s *Settings) error {
		if width < types.MinSize || height < types.MinSize || width > types.MaxSize || height > types.MaxSize {
			return types.NewError(types.ErrInvalidSetting,
				fmt.Sprintf("width and height must be between %d and %d", types.MinSize, types.MaxSize))
		}
		s.Defaults.Width = width
		s.Defaults.Height = height
		return nil
	}
}

// SetSteps sets the default sampling steps (1–200).
func SetSteps(steps int) Mutation {
	return func(s *Settings) error {
		if steps < types.MinSteps || steps > types.MaxSteps {
			return types.NewError(types.ErrInvalidSetting,
				fmt.Sprintf("steps must be between %d and %d", types.MinSteps, types.MaxSteps))
		}
		s.Defaults.Steps = steps
		return nil
	}
}

// SetGuidance sets the default guidance (0–50).
func SetGuidance(guidance float64) Mutation {
	return func(s *Settings) error {
		if guidance < types.MinGuidance || guidance > types.MaxGuidance {
			return types.NewError(types.ErrInvalidSetting,
				fmt.Sprintf("guidance must be between %g and %g", types.MinGuidance, types.MaxGuidance))
		}
		s.Defaults.Guidance = guidance
		return nil
	}
}

// SetSeed sets a fixed seed; -1 means random.
func SetSeed(seed int64) Mutation {
	return func(s *Settings) error {
		if seed < types.MinSeed {
			return types.NewError(types.ErrInvalidSetting, "seed must be greater than or equal to -1")
		}
		s.Defaults.Seed = seed
		return nil
	}
}

// SetNegativePrompt sets the default negative prompt; blank clears it.
func SetNegativePrompt(text string) Mutation {
	return func(s *Settings) error {
		s.Defaults.NegativePrompt = strings.TrimSpace(text)
		return nil
	}
}

// SetUpscale toggles the upscale stage and sets its factor (2.0–5.0).
func SetUpscale(enabled bool, scale float64) Mutation {
	return func(s *Settings) error {
		next := types.UpscaleParams{Enabled: enabled, Scale: scale}
		if err := next.Validate(); err != nil {
			return err
		}
		s.Upscale = next
		return nil
	}
}

// SetVerbose toggles progress messages to the user.
func SetVerbose(verbose bool) Mutation {
	return func(s *Settings) error {
		s.Verbose = verbose
		return nil
	}
}
