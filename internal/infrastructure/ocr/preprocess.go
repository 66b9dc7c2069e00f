package ocr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
)

// NormalizePayload strips any data-URL prefix and, when the photo exceeds
// maxDimension on either side, downscales it before it travels to the
// engines. Returns the payload unchanged if it cannot be decoded as an image;
// the engines produce the authoritative error in that case.
func NormalizePayload(imageBase64 string, maxDimension int) (string, error) {
	if idx := strings.Index(imageBase64, ","); idx >= 0 && strings.HasPrefix(imageBase64, "data:") {
		imageBase64 = imageBase64[idx+1:]
	}
	imageBase64 = strings.TrimSpace(imageBase64)
	if imageBase64 == "" {
		return "", fmt.Errorf("empty image payload")
	}
	if maxDimension <= 0 {
		return imageBase64, nil
	}

	raw, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", fmt.Errorf("decode base64 image: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return imageBase64, nil
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxDimension && bounds.Dy() <= maxDimension {
		return imageBase64, nil
	}

	resized := imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return "", fmt.Errorf("encode resized image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
