package moderation

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// Longest image dimension fed to local inference. Larger images are scaled
// down, preserving aspect ratio.
const maxImageDim = 1024

// decodeImagePayload decodes a base64 image payload into an RGBA image
// bounded to maxImageDim on its longer side. Any failure here means the
// payload is unprocessable.
func decodeImagePayload(imageB64 string) (image.Image, error) {
	raw, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 payload: %w", err)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	return normalizeImage(src), nil
}

// normalizeImage converts to RGBA and scales down so the longer dimension is
// at most maxImageDim, using Catmull-Rom resampling.
func normalizeImage(src image.Image) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	longest := w
	if h > longest {
		longest = h
	}

	outW, outH := w, h
	if longest > maxImageDim {
		ratio := float64(maxImageDim) / float64(longest)
		outW = int(float64(w) * ratio)
		outH = int(float64(h) * ratio)
	}

	if outW == w && outH == h {
		if rgba, ok := src.(*image.RGBA); ok {
			return rgba
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}
