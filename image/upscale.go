package image

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/zigen/types"
)

const (
	generatePath = "/generate"
	upscalePath  = "/upscale"
)

// UpscaleEndpoint derives the upscale URL by replacing the first "/generate" in the path with "/upscale".
// The host and query are left alone; unparsable input falls back to a plain substring replace.
func UpscaleEndpoint(serviceURL string) string {
	u, err := url.Parse(serviceURL)
	if err != nil || u.Host == "" {
		return strings.Replace(serviceURL, generatePath, upscalePath, 1)
	}
	u.Path = strings.Replace(u.Path, generatePath, upscalePath, 1)
	u.RawPath = ""
	return u.String()
}

// Upscaler sends each image to the upscale endpoint.
type Upscaler struct {
	client      *Client
	parallelism int
	logger      *zap.Logger
}

// NewUpscaler creates an Upscaler. parallelism <= 1 upscales one image at a time.
func NewUpscaler(client *Client, parallelism int, logger *zap.Logger) *Upscaler {
	if parallelism < 1 {
		parallelism = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Upscaler{
		client:      client,
		parallelism: parallelism,
		logger:      logger.With(zap.String("component", "upscaler")),
	}
}

// Upscale returns one upscaled image per input, in input order.
// The first failing image aborts the batch; no partial list is returned.
func (u *Upscaler) Upscale(ctx context.Context, serviceURL string, images []types.EncodedImage, scale float64) ([]types.EncodedImage, error) {
	endpoint := UpscaleEndpoint(serviceURL)
	out := make([]types.EncodedImage, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.parallelism)
	for i, img := range images {
		g.Go(func() error {
			// 前一张失败后不再发起新请求
			if err := gctx.Err(); err != nil {
				return err
			}
			up, err := u.upscaleOne(gctx, endpoint, img, scale)
			if err != nil {
				return fmt.Errorf("upscale image %d: %w", i, err)
			}
			out[i] = up
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	u.logger.Debug("upscale finished", zap.Int("images", len(out)), zap.Float64("scale", scale))
	return out, nil
}

func (u *Upscaler) upscaleOne(ctx context.Context, endpoint string, img types.EncodedImage, scale float64) (types.EncodedImage, error) {
	resp, err := u.client.PostJSON(ctx, StageUpscale, endpoint, upscaleRequest{Image: string(img), Scale: scale})
	if err != nil {
		return "", err
	}

	if !resp.IsJSON() {
		up, err := passthrough(resp.Body)
		return up, withStage(err, StageUpscale)
	}

	var doc any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return "", types.NewError(types.ErrInvalidResponseShape, "response body is not valid JSON").
			WithCause(err).WithStage(StageUpscale)
	}
	up, err := Normalize(doc)
	return up, withStage(err, StageUpscale)
}
