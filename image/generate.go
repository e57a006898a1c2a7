package image

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/zigen/types"
)

// Generator calls the generation endpoint and normalizes its answer.
type Generator struct {
	client *Client
	logger *zap.Logger
}

// NewGenerator creates a Generator on top of a shared Client.
func NewGenerator(client *Client, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client: client,
		logger: logger.With(zap.String("component", "generator")),
	}
}

// Generate posts payload to serviceURL and returns the produced images in upstream order.
//
// JSON answers are read by key precedence: a singular "image" means exactly one
// image; otherwise "images", then "data", each either a list or a single item.
// Any other content type is treated as raw image bytes.
func (g *Generator) Generate(ctx context.Context, serviceURL string, payload *Payload) ([]types.EncodedImage, error) {
	resp, err := g.client.PostJSON(ctx, StageGenerate, serviceURL, payload)
	if err != nil {
		return nil, err
	}

	if !resp.IsJSON() {
		img, err := passthrough(resp.Body)
		if err != nil {
			return nil, withStage(err, StageGenerate)
		}
		return []types.EncodedImage{img}, nil
	}

	obj, err := decodeObject(resp.Body)
	if err != nil {
		return nil, withStage(err, StageGenerate)
	}

	if v, ok := field(obj, "image"); ok {
		img, err := Normalize(v)
		if err != nil {
			return nil, withStage(err, StageGenerate)
		}
		return []types.EncodedImage{img}, nil
	}

	v, ok := firstField(obj, "images", "data")
	if !ok {
		return nil, types.NewError(types.ErrMissingImageField,
			"response has none of the fields image, images, data").WithStage(StageGenerate)
	}

	images, err := normalizeAll(v)
	if err != nil {
		return nil, withStage(err, StageGenerate)
	}
	g.logger.Debug("generation finished", zap.Int("images", len(images)))
	return images, nil
}

// normalizeAll normalizes a list element-wise, or a single item as a one-element list.
func normalizeAll(v any) ([]types.EncodedImage, error) {
	list, ok := v.([]any)
	if !ok {
		img, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		return []types.EncodedImage{img}, nil
	}

	images := make([]types.EncodedImage, 0, len(list))
	for i, item := range list {
		img, err := Normalize(item)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, types.NewError(types.ErrInvalidResponseShape, "response body is not valid JSON").WithCause(err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, types.NewError(types.ErrInvalidResponseShape,
			fmt.Sprintf("response must be a JSON object, got %T", doc))
	}
	return obj, nil
}

// passthrough re-encodes a raw binary body; it skips the data-URI and field logic.
func passthrough(body []byte) (types.EncodedImage, error) {
	if len(body) == 0 {
		return "", types.NewError(types.ErrEmptyImageData, "binary response body is empty")
	}
	return types.EncodedImage(base64.StdEncoding.EncodeToString(body)), nil
}

func withStage(err error, stage string) error {
	if e, ok := types.AsError(err); ok && e.Stage == "" {
		e.Stage = stage
	}
	return err
}
