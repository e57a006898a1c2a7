package settings

import (
	"fmt"
	"strings"
)

// Render formats settings as the human-readable listing shown to administrators.
func Render(s Settings) string {
	seed := "random"
	if s.Defaults.Seed >= 0 {
		seed = fmt.Sprintf("%d", s.Defaults.Seed)
	}
	negative := strings.TrimSpace(s.Defaults.NegativePrompt)
	if negative == "" {
		negative = "not set"
	}
	upscale := "off"
	if s.Upscale.Enabled {
		upscale = fmt.Sprintf("on (%gx)", s.Upscale.Scale)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- Service URL: %s\n", s.ServiceURL)
	fmt.Fprintf(&b, "- Size: %dx%d\n", s.Defaults.Width, s.Defaults.Height)
	fmt.Fprintf(&b, "- Steps: %d\n", s.Defaults.Steps)
	fmt.Fprintf(&b, "- Guidance: %g\n", s.Defaults.Guidance)
	fmt.Fprintf(&b, "- Seed: %s\n", seed)
	fmt.Fprintf(&b, "- Negative prompt: %s\n", negative)
	fmt.Fprintf(&b, "- Upscale: %s\n", upscale)
	fmt.Fprintf(&b, "- Verbose: %s", onOff(s.Verbose))
	return b.String()
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
