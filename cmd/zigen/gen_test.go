package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/zigen/config"
	"github.com/BaSui01/zigen/testutil"
	"github.com/BaSui01/zigen/types"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func genConfig(up *testutil.FakeUpstream) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Service.URL = up.GenerateURL()
	cfg.Service.Verbose = true
	cfg.Upscale.Enabled = false
	return cfg
}

func TestGenerateToDir(t *testing.T) {
	up := testutil.NewFakeUpstream(t)
	encoded := base64.StdEncoding.EncodeToString(pngHeader)
	up.OnGenerate(testutil.JSONResponse(http.StatusOK, map[string]any{
		"images": []string{"data:image/png;base64," + encoded, encoded},
	}))

	dir := filepath.Join(t.TempDir(), "out")
	var out, status bytes.Buffer
	paths, err := generateToDir(context.Background(), genConfig(up), "a red fox", dir, &out, &status, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for i, p := range paths {
		assert.Equal(t, ".png", filepath.Ext(p))
		assert.True(t, strings.HasSuffix(p, fmt.Sprintf("-%d.png", i+1)), p)
		raw, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, pngHeader, raw)
	}
	assert.Equal(t, strings.Join(paths, "\n")+"\n", out.String())

	msgs := config.DefaultConfig().Messages
	assert.Contains(t, status.String(), msgs.Working)
	assert.Contains(t, status.String(), msgs.Done)

	reqs := up.Requests("/generate")
	require.Len(t, reqs, 1)
	assert.Equal(t, "a red fox", reqs[0].Body["prompt"])
}

func TestGenerateToDir_Failure(t *testing.T) {
	up := testutil.NewFakeUpstream(t)
	up.OnGenerate(testutil.RawResponse(http.StatusInternalServerError, "text/plain", []byte("CUDA out of memory")))

	dir := t.TempDir()
	var out, status bytes.Buffer
	_, err := generateToDir(context.Background(), genConfig(up), "a red fox", dir, &out, &status, zap.NewNop())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrUpstreamError))

	assert.Empty(t, out.String())
	assert.Contains(t, status.String(), config.DefaultConfig().Messages.Failure)
	assert.NotContains(t, status.String(), "CUDA")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateToDir_EmptyPrompt(t *testing.T) {
	up := testutil.NewFakeUpstream(t)

	var out, status bytes.Buffer
	_, err := generateToDir(context.Background(), genConfig(up), "   ", t.TempDir(), &out, &status, zap.NewNop())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrEmptyPrompt))
	assert.Contains(t, status.String(), config.DefaultConfig().Messages.EmptyPrompt)
	assert.Empty(t, up.Requests("/generate"))
}

func TestDecodeImage(t *testing.T) {
	raw, err := decodeImage(types.EncodedImage(base64.RawStdEncoding.EncodeToString([]byte("abcd"))))
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), raw)

	_, err = decodeImage("")
	assert.Error(t, err)

	_, err = decodeImage("!!not base64!!")
	assert.Error(t, err)
}

func TestImageExt(t *testing.T) {
	assert.Equal(t, ".png", imageExt(pngHeader))
	assert.Equal(t, ".jpg", imageExt([]byte("\xff\xd8\xff\xe0\x00\x10JFIF")))
	assert.Equal(t, ".webp", imageExt([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))
	assert.Equal(t, ".bin", imageExt([]byte("hello")))
}
