package settings

import (
	"context"
	"strings"

	"github.com/BaSui01/zigen/types"
)

// DefaultServiceURL is used until an administrator sets the generation endpoint.
const DefaultServiceURL = "http://127.0.0.1:8000/generate"

// Settings is the mutable configuration read once per job.
// Values are copied into each job; the pipeline never writes them back.
type Settings struct {
	ServiceURL string                 `json:"service_url"`
	Verbose    bool                   `json:"verbose"`
	Defaults   types.GenerationParams `json:"defaults"`
	Upscale    types.UpscaleParams    `json:"upscale"`
}

// DefaultSettings returns the factory settings.
func DefaultSettings() Settings {
	return Settings{
		ServiceURL: DefaultServiceURL,
		Verbose:    true,
		Defaults:   types.DefaultGenerationParams(),
		Upscale:    types.DefaultUpscaleParams(),
	}
}

// Validate checks every field against the accepted ranges.
func (s Settings) Validate() error {
	if err := validateServiceURL(s.ServiceURL); err != nil {
		return err
	}
	if err := s.Defaults.Validate(); err != nil {
		return err
	}
	return s.Upscale.Validate()
}

func validateServiceURL(u string) error {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return types.NewError(types.ErrInvalidSetting, "service URL must start with http:// or https://")
	}
	return nil
}

// Store owns the persisted settings.
type Store interface {
	// Snapshot returns a copy of the current settings.
	Snapshot(ctx context.Context) (Settings, error)
	// Update applies fn to a copy of the current settings and stores the result if it validates.
	Update(ctx context.Context, fn Mutation) (Settings, error)
	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
	Close() error
}
