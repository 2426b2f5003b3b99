package assets

import (
	"fmt"

	"GopherScene/internal/logger"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"go.uber.org/zap"
)

// FindMaterialsUsingTexture returns every material with a slot bound to tex.
// It scans all materials.
func (l *Library) FindMaterialsUsingTexture(tex resource.Handle) []resource.Handle {
	return l.materials.Find(func(_ resource.Handle, m *renderer.Material) bool {
		return m.UsesTexture(tex)
	})
}

// UpdateMaterialsUsingTexture refreshes the device id cached in every binding
// of tex and marks those materials dirty. It returns how many were touched.
func (l *Library) UpdateMaterialsUsingTexture(tex resource.Handle) int {
	t, ok := l.textures.Peek(tex)
	if !ok {
		return 0
	}
	changed := l.materials.UpdateWhere(func(_ resource.Handle, m *renderer.Material) (*renderer.Material, bool) {
		return rebind(m, tex, tex, t.GPU)
	})
	if len(changed) > 0 {
		logger.Log.Debug("Materials rebound",
			zap.String("texture", string(tex)),
			zap.Int("count", len(changed)))
	}
	return len(changed)
}

// ReplaceTexture points every binding of from at to instead. Neither texture's
// reference count changes.
func (l *Library) ReplaceTexture(from, to resource.Handle) ([]resource.Handle, error) {
	if _, ok := l.textures.Peek(from); !ok {
		return nil, fmt.Errorf("%s %s: %w", resource.KindTexture, from, resource.ErrNotFound)
	}
	t, ok := l.textures.Peek(to)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", resource.KindTexture, to, resource.ErrNotFound)
	}
	changed := l.materials.UpdateWhere(func(_ resource.Handle, m *renderer.Material) (*renderer.Material, bool) {
		return rebind(m, from, to, t.GPU)
	})
	logger.Log.Info("Texture replaced in materials",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("count", len(changed)))
	return changed, nil
}

// rebind returns a dirty copy of m with the slots bound to from now bound to
// to, or false when m does not use from.
func rebind(m *renderer.Material, from, to resource.Handle, gpu uint32) (*renderer.Material, bool) {
	slots := m.SlotsUsing(from)
	if len(slots) == 0 {
		return nil, false
	}
	next, err := copyMaterial(m)
	if err != nil {
		logger.Log.Error("Failed to copy material for rebind",
			zap.String("material", m.Name),
			zap.Error(err))
		return nil, false
	}
	for _, slot := range slots {
		next.Slots[slot] = renderer.TextureBinding{Texture: to, GPU: gpu}
	}
	next.MarkDirty()
	return next, true
}
