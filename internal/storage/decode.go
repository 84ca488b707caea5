package storage

import (
	"bytes"
	"fmt"
	"image"
	"io"
)

// Decode reads a PNG, JPEG or GIF image
func Decode(data []byte) (image.Image, error) {
	return DecodeReader(bytes.NewReader(data))
}

// DecodeReader is Decode for streams
func DecodeReader(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return img, nil
}
