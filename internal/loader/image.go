package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"GopherScene/internal/logger"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go.uber.org/zap"
)

// ImageDecoder decodes any registered image format. Images with a side longer
// than maxSize are scaled down preserving aspect; maxSize 0 keeps them as is.
func ImageDecoder(maxSize int) TextureDecoder {
	return func(ctx context.Context, src Source) (image.Image, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, format, err := image.Decode(bytes.NewReader(src.Data))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", src.URL, err)
		}

		b := img.Bounds()
		if maxSize <= 0 || (b.Dx() <= maxSize && b.Dy() <= maxSize) {
			return img, nil
		}

		w, h := b.Dx(), b.Dy()
		if w >= h {
			h = max(1, h*maxSize/w)
			w = maxSize
		} else {
			w = max(1, w*maxSize/h)
			h = maxSize
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

		logger.Log.Debug("Texture downscaled",
			zap.String("url", src.URL),
			zap.String("format", format),
			zap.Int("fromWidth", b.Dx()),
			zap.Int("fromHeight", b.Dy()),
			zap.Int("width", w),
			zap.Int("height", h))
		return dst, nil
	}
}
