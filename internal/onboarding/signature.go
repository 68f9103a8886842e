package onboarding

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strings"

	"github.com/medimart/platform/pkg/types"
)

// Signature capture accepts two inputs: a drawn signature exported as a PNG
// data URI from the capture pad, or an uploaded image file. Both paths end in
// FileAttach so the signature slot's size ceiling and image-only allow-list
// apply uniformly.

// DecodeSignatureDataURI parses a "data:image/png;base64," payload from the
// drawing pad into an attachment. A canvas with no visible ink is rejected so
// an untouched pad cannot satisfy the signature requirement.
func DecodeSignatureDataURI(dataURI string) (*types.Attachment, error) {
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURI, prefix) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"Signature must be a base64-encoded PNG data URI", nil)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, prefix))
	if err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"Signature payload is not valid base64", nil)
	}

	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"Signature payload is not a valid PNG image", nil)
	}
	if blankCanvas(img) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"Signature is empty, please sign before saving", nil)
	}

	return &types.Attachment{
		FileName:    "signature.png",
		ContentType: "image/png",
		Size:        int64(len(raw)),
		Data:        raw,
	}, nil
}

// blankCanvas reports whether every pixel is fully transparent.
func blankCanvas(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0 {
				return false
			}
		}
	}
	return true
}
