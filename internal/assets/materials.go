package assets

import (
	"fmt"

	"GopherScene/internal/logger"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// CreateMaterial stores a copy of params under a name that does not collide
// with an existing material. The new entry has one reference.
func (l *Library) CreateMaterial(name string, params renderer.Material) (resource.Handle, error) {
	m, err := copyMaterial(&params)
	if err != nil {
		return "", err
	}
	m.Name = l.uniqueMaterialName(name)
	h, _ := l.materials.Register("", m.Name, m)
	return h, nil
}

func (l *Library) uniqueMaterialName(base string) string {
	names := make(map[string]bool)
	for _, e := range l.materials.Snapshot().Entries {
		names[e.Name] = true
	}
	return l.names.Unique(base, func(n string) bool { return names[n] })
}

// CloneMaterial deep copies h into a new entry with one reference. Texture
// bindings are copied; the textures themselves are shared.
func (l *Library) CloneMaterial(h resource.Handle, name string) (resource.Handle, error) {
	src, ok := l.materials.Peek(h)
	if !ok {
		return "", fmt.Errorf("%s %s: %w", resource.KindMaterial, h, resource.ErrNotFound)
	}
	if name == "" {
		name = src.Name
	}
	name = l.uniqueMaterialName(name)
	return l.materials.Clone(h, name, func(m *renderer.Material) (*renderer.Material, error) {
		cp, err := copyMaterial(m)
		if err != nil {
			return nil, err
		}
		cp.Name = name
		cp.MarkDirty()
		return cp, nil
	})
}

func copyMaterial(m *renderer.Material) (*renderer.Material, error) {
	cp := &renderer.Material{}
	if err := copier.CopyWithOption(cp, m, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("copy material %q: %w", m.Name, err)
	}
	return cp, nil
}

// GetMaterial acquires a reference to h.
func (l *Library) GetMaterial(h resource.Handle) (*renderer.Material, error) {
	return l.materials.Get(h)
}

func (l *Library) PeekMaterial(h resource.Handle) (*renderer.Material, bool) {
	return l.materials.Peek(h)
}

func (l *Library) MaterialInfo(h resource.Handle) (resource.Info, bool) {
	return l.materials.Lookup(h)
}

func (l *Library) ReleaseMaterial(h resource.Handle) error {
	return l.materials.Release(h)
}

func (l *Library) RenameMaterial(h resource.Handle, name string) error {
	err := l.UpdateMaterial(h, func(m *renderer.Material) error {
		m.Name = name
		return nil
	})
	if err != nil {
		return err
	}
	return l.materials.Rename(h, name)
}

// UpdateMaterial applies fn to a copy of h and stores the copy, so readers
// holding the previous value never observe a partial change.
func (l *Library) UpdateMaterial(h resource.Handle, fn func(*renderer.Material) error) error {
	return l.materials.Update(h, func(cur *renderer.Material) (*renderer.Material, error) {
		next, err := copyMaterial(cur)
		if err != nil {
			return nil, err
		}
		if err := fn(next); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// SetMaterialTexture binds tex to slot of material h. The material does not
// take a reference; the texture must be kept alive by its owner.
func (l *Library) SetMaterialTexture(h resource.Handle, slot renderer.TextureSlot, tex resource.Handle) error {
	t, ok := l.textures.Peek(tex)
	if !ok {
		return fmt.Errorf("%s %s: %w", resource.KindTexture, tex, resource.ErrNotFound)
	}
	err := l.UpdateMaterial(h, func(m *renderer.Material) error {
		m.Bind(slot, tex, t.GPU)
		return nil
	})
	if err != nil {
		return err
	}
	logger.Log.Debug("Material texture bound",
		zap.String("material", string(h)),
		zap.String("slot", string(slot)),
		zap.String("texture", string(tex)))
	return nil
}

func (l *Library) ClearMaterialTexture(h resource.Handle, slot renderer.TextureSlot) error {
	return l.UpdateMaterial(h, func(m *renderer.Material) error {
		m.Unbind(slot)
		return nil
	})
}
