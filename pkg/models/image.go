package models

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// Canonical size every image is normalized to before it reaches the model panel
const (
	CanonicalWidth  = 224
	CanonicalHeight = 224
)

// RawImage is a decoded, caller-owned pixel buffer. Samples are interleaved
// per pixel: gray, gray+alpha, RGB or RGBA depending on Channels.
type RawImage struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Channels int     `json:"channels"`
	Pix      []uint8 `json:"-"`
}

// Validate checks the buffer invariants: positive dimensions, a supported
// channel count and a buffer of exactly Width*Height*Channels samples.
func (r RawImage) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("image has zero area (%dx%d)", r.Width, r.Height)
	}
	if r.Channels < 1 || r.Channels > 4 {
		return fmt.Errorf("unsupported channel count %d", r.Channels)
	}
	if want := r.Width * r.Height * r.Channels; len(r.Pix) != want {
		return fmt.Errorf("pixel buffer holds %d samples, expected %d", len(r.Pix), want)
	}
	return nil
}

// Image exposes the buffer as a non-premultiplied RGBA image. Gray inputs are
// expanded across the three color channels; missing alpha is opaque.
func (r RawImage) Image() (*image.NRGBA, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	out := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	n := r.Width * r.Height
	for i := 0; i < n; i++ {
		src := r.Pix[i*r.Channels : (i+1)*r.Channels]
		dst := out.Pix[i*4 : i*4+4]
		switch r.Channels {
		case 1:
			dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], 255
		case 2:
			dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], src[1]
		case 3:
			dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], 255
		case 4:
			copy(dst, src)
		}
	}
	return out, nil
}

// RawImageFromImage copies any decoded image into a four channel RawImage.
func RawImageFromImage(img image.Image) (RawImage, error) {
	if img == nil {
		return RawImage{}, errors.New("nil image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return RawImage{}, fmt.Errorf("image has zero area (%dx%d)", b.Dx(), b.Dy())
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) || nrgba.Stride != 4*b.Dx() {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	pix := make([]uint8, len(nrgba.Pix))
	copy(pix, nrgba.Pix)
	return RawImage{Width: b.Dx(), Height: b.Dy(), Channels: 4, Pix: pix}, nil
}

// NormalizedImage is the canonical single-channel form handed to the model
// panel. It is never mutated after the normalizer returns it.
type NormalizedImage struct {
	Width  int
	Height int
	Gray   []uint8
	Alpha  []uint8
}

// Intensity returns the equalized intensity at (x, y).
func (n *NormalizedImage) Intensity(x, y int) uint8 {
	return n.Gray[y*n.Width+x]
}

// Image renders the gray channel replicated across R, G and B with the
// original alpha, which is how the image is shown to users.
func (n *NormalizedImage) Image() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, n.Width, n.Height))
	for i, v := range n.Gray {
		a := uint8(255)
		if len(n.Alpha) == len(n.Gray) {
			a = n.Alpha[i]
		}
		out.Pix[i*4] = v
		out.Pix[i*4+1] = v
		out.Pix[i*4+2] = v
		out.Pix[i*4+3] = a
	}
	return out
}

// GrayImage returns the intensity plane as an *image.Gray.
func (n *NormalizedImage) GrayImage() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, n.Width, n.Height))
	copy(g.Pix, n.Gray)
	return g
}

// PNG encodes the display form of the image.
func (n *NormalizedImage) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, n.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode normalized image: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL returns the PNG encoding as a data: URL.
func (n *NormalizedImage) DataURL() (string, error) {
	data, err := n.PNG()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
