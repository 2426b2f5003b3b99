package assets

import (
	"fmt"

	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"github.com/jinzhu/copier"
)

// RegisterGeometry uploads g and stores it under key with one reference. If
// key is already cached the existing entry is returned and g is discarded.
func (l *Library) RegisterGeometry(key string, g *renderer.Geometry) (resource.Handle, error) {
	if err := l.requireDevice(); err != nil {
		return "", err
	}
	if key != "" {
		if h, ok := l.geometries.HandleFor(key); ok {
			if err := l.geometries.Acquire(h); err == nil {
				return h, nil
			}
		}
	}
	if g.BoundsRadius == 0 {
		g.CalculateBoundingSphere()
	}
	id, err := l.device.UploadGeometry(g)
	if err != nil {
		return "", fmt.Errorf("upload geometry %q: %w", g.Name, err)
	}
	g.GPU = id
	h, _ := l.geometries.Register(key, g.Name, g)
	return h, nil
}

// CloneGeometry copies the vertex data of h into a new, separately uploaded
// entry with one reference.
func (l *Library) CloneGeometry(h resource.Handle, name string) (resource.Handle, error) {
	if err := l.requireDevice(); err != nil {
		return "", err
	}
	src, ok := l.geometries.Peek(h)
	if !ok {
		return "", fmt.Errorf("%s %s: %w", resource.KindGeometry, h, resource.ErrNotFound)
	}
	cp := &renderer.Geometry{}
	if err := copier.CopyWithOption(cp, src, copier.Option{DeepCopy: true}); err != nil {
		return "", fmt.Errorf("copy geometry %q: %w", src.Name, err)
	}
	if name != "" {
		cp.Name = name
	}
	id, err := l.device.UploadGeometry(cp)
	if err != nil {
		return "", fmt.Errorf("upload geometry %q: %w", cp.Name, err)
	}
	cp.GPU = id
	h, _ = l.geometries.Register("", cp.Name, cp)
	return h, nil
}

// GetGeometry acquires a reference to h.
func (l *Library) GetGeometry(h resource.Handle) (*renderer.Geometry, error) {
	return l.geometries.Get(h)
}

func (l *Library) PeekGeometry(h resource.Handle) (*renderer.Geometry, bool) {
	return l.geometries.Peek(h)
}

func (l *Library) GeometryInfo(h resource.Handle) (resource.Info, bool) {
	return l.geometries.Lookup(h)
}

func (l *Library) ReleaseGeometry(h resource.Handle) error {
	return l.geometries.Release(h)
}
