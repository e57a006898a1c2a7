package image

import (
	"fmt"
	"strings"

	"github.com/BaSui01/zigen/types"
)

const dataImagePrefix = "data:image"

// imageKeys is the lookup order for object-shaped image items.
var imageKeys = []string{"image", "data", "base64"}

// StripDataPrefix removes a leading "data:image/...;base64," header.
// Input without the prefix is returned unchanged; a prefix with no comma yields "".
func StripDataPrefix(s string) string {
	if !strings.HasPrefix(s, dataImagePrefix) {
		return s
	}
	_, payload, found := strings.Cut(s, ",")
	if !found {
		return ""
	}
	return payload
}

// Normalize turns one response item into an EncodedImage.
//
// item is either a string or a decoded JSON object. Objects are resolved by
// the first present key among image, data and base64.
func Normalize(item any) (types.EncodedImage, error) {
	if obj, ok := item.(map[string]any); ok {
		v, found := firstField(obj, imageKeys...)
		if !found {
			return "", types.NewError(types.ErrInvalidResponseShape,
				"image object has none of the fields image, data, base64")
		}
		item = v
	}

	s, ok := item.(string)
	if !ok {
		return "", types.NewError(types.ErrInvalidResponseShape,
			fmt.Sprintf("image item must be a string, got %T", item))
	}

	clean := StripDataPrefix(s)
	if clean == "" {
		return "", types.NewError(types.ErrEmptyImageData, "image data is empty")
	}
	return types.EncodedImage(clean), nil
}

// field returns obj[key] unless it is missing, null or an empty list.
func field(obj map[string]any, key string) (any, bool) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, false
	}
	if list, isList := v.([]any); isList && len(list) == 0 {
		return nil, false
	}
	return v, true
}

func firstField(obj map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := field(obj, key); ok {
			return v, true
		}
	}
	return nil, false
}
