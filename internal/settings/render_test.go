package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_Defaults(t *testing.T) {
	got := Render(DefaultSettings())
	want := "- Service URL: http://127.0.0.1:8000/generate\n" +
		"- Size: 512x512\n" +
		"- Steps: 9\n" +
		"- Guidance: 0\n" +
		"- Seed: random\n" +
		"- Negative prompt: not set\n" +
		"- Upscale: off\n" +
		"- Verbose: on"
	assert.Equal(t, want, got)
}

func TestRender_CustomValues(t *testing.T) {
	s := DefaultSettings()
	s.Defaults.Seed = 42
	s.Defaults.Guidance = 3.5
	s.Defaults.NegativePrompt = "blurry"
	s.Upscale.Enabled = true
	s.Upscale.Scale = 2.5
	s.Verbose = false

	got := Render(s)
	assert.Contains(t, got, "- Seed: 42\n")
	assert.Contains(t, got, "- Guidance: 3.5\n")
	assert.Contains(t, got, "- Negative prompt: blurry\n")
	assert.Contains(t, got, "- Upscale: on (2.5x)\n")
	assert.Contains(t, got, "- Verbose: off")
}
