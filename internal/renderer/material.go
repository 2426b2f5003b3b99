package renderer

import (
	"sort"

	"GopherScene/internal/resource"
)

// TextureSlot names the role a texture plays in a material.
type TextureSlot string

const (
	SlotDiffuse   TextureSlot = "diffuse"
	SlotNormal    TextureSlot = "normal"
	SlotRoughness TextureSlot = "roughness"
	SlotMetalness TextureSlot = "metalness"
	SlotEmissive  TextureSlot = "emissive"
)

// Side selects which faces a material renders.
type Side int

const (
	FrontSide Side = iota
	BackSide
	DoubleSide
)

func (s Side) String() string {
	switch s {
	case BackSide:
		return "back"
	case DoubleSide:
		return "double"
	default:
		return "front"
	}
}

// TextureBinding refers to a texture cache entry. The material does not own
// the texture; GPU mirrors the texture's device id at bind time.
type TextureBinding struct {
	Texture resource.Handle
	GPU     uint32
}

// Material is the payload of a material cache entry.
type Material struct {
	Name          string
	DiffuseColor  [3]float32
	SpecularColor [3]float32
	Shininess     float32
	Metallic      float32
	Roughness     float32
	Exposure      float32
	Alpha         float32
	Transparent   bool
	Side          Side
	Slots         map[TextureSlot]TextureBinding

	// Dirty is set when the material must be uploaded again before drawing.
	Dirty    bool
	Revision int
}

// DefaultMaterial returns the fallback material used for parts without one.
func DefaultMaterial() *Material {
	return &Material{
		Name:          "default",
		DiffuseColor:  [3]float32{1.0, 1.0, 1.0},
		SpecularColor: [3]float32{1.0, 1.0, 1.0},
		Shininess:     32.0,
		Metallic:      0.0,
		Roughness:     0.5,
		Exposure:      1.0,
		Alpha:         1.0,
	}
}

func (m *Material) Bind(slot TextureSlot, tex resource.Handle, gpu uint32) {
	if m.Slots == nil {
		m.Slots = make(map[TextureSlot]TextureBinding)
	}
	m.Slots[slot] = TextureBinding{Texture: tex, GPU: gpu}
	m.MarkDirty()
}

func (m *Material) Unbind(slot TextureSlot) bool {
	if _, ok := m.Slots[slot]; !ok {
		return false
	}
	delete(m.Slots, slot)
	m.MarkDirty()
	return true
}

// SlotsUsing returns the slots bound to tex, sorted.
func (m *Material) SlotsUsing(tex resource.Handle) []TextureSlot {
	var out []TextureSlot
	for slot, b := range m.Slots {
		if b.Texture == tex {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Material) UsesTexture(tex resource.Handle) bool {
	for _, b := range m.Slots {
		if b.Texture == tex {
			return true
		}
	}
	return false
}

func (m *Material) MarkDirty() {
	m.Dirty = true
	m.Revision++
}
