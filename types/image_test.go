package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultGenerationParams(t *testing.T) {
	t.Parallel()

	p := DefaultGenerationParams()
	assert.Equal(t, 9, p.Steps)
	assert.Equal(t, 0.0, p.Guidance)
	assert.Equal(t, 512, p.Width)
	assert.Equal(t, 512, p.Height)
	assert.Equal(t, int64(-1), p.Seed)
	assert.Empty(t, p.NegativePrompt)
	assert.NoError(t, p.Validate())
}

func TestGenerationParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*GenerationParams)
		ok     bool
	}{
		{"max size", func(p *GenerationParams) { p.Width, p.Height = 2048, 2048 }, true},
		{"min size", func(p *GenerationParams) { p.Width, p.Height = 1, 1 }, true},
		{"width too large", func(p *GenerationParams) { p.Width = 2049 }, false},
		{"height zero", func(p *GenerationParams) { p.Height = 0 }, false},
		{"steps zero", func(p *GenerationParams) { p.Steps = 0 }, false},
		{"steps too many", func(p *GenerationParams) { p.Steps = 201 }, false},
		{"negative guidance", func(p *GenerationParams) { p.Guidance = -0.5 }, false},
		{"guidance too high", func(p *GenerationParams) { p.Guidance = 50.1 }, false},
		{"guidance NaN", func(p *GenerationParams) { p.Guidance = math.NaN() }, false},
		{"seed fixed", func(p *GenerationParams) { p.Seed = 42 }, true},
		{"seed below -1", func(p *GenerationParams) { p.Seed = -2 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultGenerationParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, HasCode(err, ErrInvalidSetting))
		})
	}
}

func TestUpscaleParams_Validate(t *testing.T) {
	t.Parallel()

	u := DefaultUpscaleParams()
	assert.False(t, u.Enabled)
	assert.Equal(t, 2.0, u.Scale)
	assert.NoError(t, u.Validate())

	assert.NoError(t, UpscaleParams{Scale: 5.0}.Validate())
	assert.True(t, HasCode(UpscaleParams{Scale: 1.5}.Validate(), ErrInvalidSetting))
	assert.True(t, HasCode(UpscaleParams{Scale: 5.5}.Validate(), ErrInvalidSetting))
	assert.True(t, HasCode(UpscaleParams{Scale: math.NaN()}.Validate(), ErrInvalidSetting))
}
