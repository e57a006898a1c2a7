package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/zigen/internal/settings"
)

func applyPatch(t *testing.T, raw string) (settings.Settings, error) {
	t.Helper()
	var p SettingsPatch
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	s := settings.DefaultSettings()
	err := settings.Apply(p.Mutations()...)(&s)
	return s, err
}

func TestSettingsPatch_Empty(t *testing.T) {
	var p SettingsPatch
	assert.True(t, p.Empty())

	require.NoError(t, json.Unmarshal([]byte(`{"verbose":false}`), &p))
	assert.False(t, p.Empty())
}

func TestSettingsPatch_PartialSize(t *testing.T) {
	s, err := applyPatch(t, `{"height":512}`)
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultSettings().Defaults.Width, s.Defaults.Width)
	assert.Equal(t, 512, s.Defaults.Height)
}

func TestSettingsPatch_ScaleWithoutToggle(t *testing.T) {
	s, err := applyPatch(t, `{"upscale_scale":4}`)
	require.NoError(t, err)
	assert.False(t, s.Upscale.Enabled)
	assert.Equal(t, 4.0, s.Upscale.Scale)
}

func TestSettingsPatch_ZeroValuesAreApplied(t *testing.T) {
	s, err := applyPatch(t, `{"guidance":0,"seed":0,"negative_prompt":"","verbose":false}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Defaults.Guidance)
	assert.Equal(t, int64(0), s.Defaults.Seed)
	assert.Empty(t, s.Defaults.NegativePrompt)
	assert.False(t, s.Verbose)
}

func TestSettingsPatch_Rejects(t *testing.T) {
	_, err := applyPatch(t, `{"service_url":"localhost:8000"}`)
	assert.Error(t, err)
}
