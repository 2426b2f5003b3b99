package renderer

import (
	"image"
	"image/draw"
)

// Texture is the payload of a texture cache entry.
type Texture struct {
	Name     string
	Source   string // URL the pixels were decoded from, empty for in-memory images
	Width    int
	Height   int
	Pixels   *image.RGBA
	GPU      uint32 // device texture id, 0 when not uploaded
	Revision int    // bumped whenever the pixels are swapped
}

// ToRGBA converts img to a tightly packed *image.RGBA with its origin at 0,0.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == rgba.Rect.Dx()*4 {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// NewTexture wraps img without uploading it.
func NewTexture(name, source string, img image.Image) *Texture {
	rgba := ToRGBA(img)
	return &Texture{
		Name:   name,
		Source: source,
		Width:  rgba.Rect.Dx(),
		Height: rgba.Rect.Dy(),
		Pixels: rgba,
	}
}
