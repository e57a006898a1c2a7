package image

import (
	"strings"

	"github.com/BaSui01/zigen/types"
)

// Payload is the JSON body sent to the generation endpoint.
type Payload struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Steps          int     `json:"steps"`
	Guidance       float64 `json:"guidance"`
	Height         int     `json:"height"`
	Width          int     `json:"width"`
	Seed           *int64  `json:"seed,omitempty"`
}

// BuildPayload merges a prompt with the stored generation defaults.
func BuildPayload(prompt string, params types.GenerationParams) (*Payload, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, types.NewError(types.ErrEmptyPrompt, "a prompt is required")
	}

	p := &Payload{
		Prompt:         prompt,
		NegativePrompt: strings.TrimSpace(params.NegativePrompt),
		Steps:          params.Steps,
		Guidance:       params.Guidance,
		Height:         params.Height,
		Width:          params.Width,
	}
	if params.Seed >= 0 {
		seed := params.Seed
		p.Seed = &seed
	}
	return p, nil
}

// upscaleRequest is the JSON body sent once per image to the upscale endpoint.
type upscaleRequest struct {
	Image string  `json:"image"`
	Scale float64 `json:"scale"`
}
