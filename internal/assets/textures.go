package assets

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"path"
	"strconv"
	"strings"

	"GopherScene/internal/loader"
	"GopherScene/internal/logger"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// LoadTexture returns the texture decoded from url, loading and uploading it
// on first use. Each call takes one reference.
func (l *Library) LoadTexture(ctx context.Context, url string) (resource.Handle, error) {
	if err := l.requireDevice(); err != nil {
		return "", err
	}
	return l.loadTexture(ctx, url, l.gen.Token())
}

// LoadTextureAsync loads url on the library's worker pool.
func (l *Library) LoadTextureAsync(ctx context.Context, url string) Pending {
	tok := l.gen.Token()
	return l.submit(func() (resource.Handle, error) {
		if err := l.requireDevice(); err != nil {
			return "", err
		}
		return l.loadTexture(ctx, url, tok)
	})
}

func (l *Library) loadTexture(ctx context.Context, url string, tok resource.Token) (resource.Handle, error) {
	return l.textures.Load(ctx, url, func(ctx context.Context) (*renderer.Texture, error) {
		return l.decodeTexture(ctx, url)
	}, resource.WithName(path.Base(url)), resource.WithToken(tok))
}

func (l *Library) decodeTexture(ctx context.Context, url string) (*renderer.Texture, error) {
	src, err := loader.ReadSource(ctx, l.fetcher, url)
	if err != nil {
		return nil, err
	}
	dec, err := l.registry.Texture(src.Kind)
	if err != nil {
		return nil, err
	}
	img, err := dec(ctx, src)
	if err != nil {
		return nil, err
	}
	tex := renderer.NewTexture(path.Base(url), url, img)
	if err := l.upload(tex); err != nil {
		return nil, err
	}
	return tex, nil
}

func (l *Library) upload(tex *renderer.Texture) error {
	id, err := l.device.UploadTexture(tex.Pixels)
	if err != nil {
		return fmt.Errorf("upload texture %q: %w", tex.Name, err)
	}
	tex.GPU = id
	return nil
}

// RegisterImage stores an in-memory image. Identical pixels share one entry.
func (l *Library) RegisterImage(name string, img image.Image) (resource.Handle, error) {
	if err := l.requireDevice(); err != nil {
		return "", err
	}
	tex := renderer.NewTexture(name, "", img)
	key := imageKey(tex.Pixels)
	if h, ok := l.textures.HandleFor(key); ok {
		if err := l.textures.Acquire(h); err == nil {
			return h, nil
		}
	}
	if err := l.upload(tex); err != nil {
		return "", err
	}
	h, existing := l.textures.Register(key, name, tex)
	logger.Log.Debug("Image registered",
		zap.String("name", name),
		zap.String("handle", string(h)),
		zap.Bool("existing", existing))
	return h, nil
}

// rekeyContent keeps a registered image's content key in step with its
// pixels. If other content already holds the new key, h leaves deduplication.
func (l *Library) rekeyContent(h resource.Handle, tex *renderer.Texture) {
	info, ok := l.textures.Lookup(h)
	if !ok || !strings.HasPrefix(info.Key, imageKeyPrefix) {
		return
	}
	if err := l.textures.Rekey(h, imageKey(tex.Pixels)); err != nil {
		_ = l.textures.Rekey(h, "")
	}
}

const imageKeyPrefix = "image:"

func imageKey(rgba *image.RGBA) string {
	d := xxhash.New()
	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[0:], uint32(rgba.Rect.Dx()))
	binary.LittleEndian.PutUint32(dims[4:], uint32(rgba.Rect.Dy()))
	_, _ = d.Write(dims[:])
	_, _ = d.Write(rgba.Pix)
	return imageKeyPrefix + strconv.FormatUint(d.Sum64(), 16)
}

// GetTexture acquires a reference to h.
func (l *Library) GetTexture(h resource.Handle) (*renderer.Texture, error) {
	return l.textures.Get(h)
}

func (l *Library) PeekTexture(h resource.Handle) (*renderer.Texture, bool) {
	return l.textures.Peek(h)
}

func (l *Library) TextureInfo(h resource.Handle) (resource.Info, bool) {
	return l.textures.Lookup(h)
}

func (l *Library) ReleaseTexture(h resource.Handle) error {
	return l.textures.Release(h)
}

func (l *Library) RenameTexture(h resource.Handle, name string) error {
	err := l.textures.Update(h, func(t *renderer.Texture) (*renderer.Texture, error) {
		cp := *t
		cp.Name = name
		return &cp, nil
	})
	if err != nil {
		return err
	}
	return l.textures.Rename(h, name)
}

// UpdateTexture swaps the pixels of h and rebinds every material sampling it.
// The handle and its references are unchanged. It returns how many materials
// were updated.
func (l *Library) UpdateTexture(h resource.Handle, img image.Image) (int, error) {
	if err := l.requireDevice(); err != nil {
		return 0, err
	}
	old, ok := l.textures.Peek(h)
	if !ok {
		return 0, fmt.Errorf("%s %s: %w", resource.KindTexture, h, resource.ErrNotFound)
	}

	next := renderer.NewTexture(old.Name, old.Source, img)
	if err := l.upload(next); err != nil {
		return 0, err
	}

	var replaced uint32
	err := l.textures.Update(h, func(cur *renderer.Texture) (*renderer.Texture, error) {
		replaced = cur.GPU
		next.Name = cur.Name
		next.Revision = cur.Revision + 1
		return next, nil
	})
	if err != nil {
		l.device.DeleteTexture(next.GPU)
		return 0, err
	}
	if replaced != 0 {
		l.device.DeleteTexture(replaced)
	}
	l.rekeyContent(h, next)

	n := l.UpdateMaterialsUsingTexture(h)
	logger.Log.Info("Texture updated",
		zap.String("handle", string(h)),
		zap.Int("revision", next.Revision),
		zap.Int("materials", n))
	return n, nil
}

// ReloadTexture decodes the source of h again and swaps it in.
func (l *Library) ReloadTexture(ctx context.Context, h resource.Handle) (int, error) {
	if err := l.requireDevice(); err != nil {
		return 0, err
	}
	tex, ok := l.textures.Peek(h)
	if !ok {
		return 0, fmt.Errorf("%s %s: %w", resource.KindTexture, h, resource.ErrNotFound)
	}
	if tex.Source == "" {
		return 0, fmt.Errorf("texture %s has no source to reload", h)
	}

	src, err := loader.ReadSource(ctx, l.fetcher, tex.Source)
	if err != nil {
		return 0, fmt.Errorf("reload %s: %w: %w", tex.Source, resource.ErrLoadFailure, err)
	}
	dec, err := l.registry.Texture(src.Kind)
	if err != nil {
		return 0, err
	}
	img, err := dec(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("reload %s: %w: %w", tex.Source, resource.ErrLoadFailure, err)
	}
	return l.UpdateTexture(h, img)
}

// TexturesFromSource lists the live textures decoded from url.
func (l *Library) TexturesFromSource(url string) []resource.Handle {
	return l.textures.Find(func(_ resource.Handle, t *renderer.Texture) bool {
		return t.Source == url
	})
}
