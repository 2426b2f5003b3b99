package loader

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"

	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"github.com/go-gl/mathgl/mgl32"
)

// MaterialDesc is a material found in a model file. Textures holds the URL of
// the image bound to each slot, resolved against the model's location.
type MaterialDesc struct {
	Params   renderer.Material
	Textures map[renderer.TextureSlot]string
}

// Part places one geometry with one material under the model root.
// Material is -1 for the default material.
type Part struct {
	Name     string
	Geometry int
	Material int
	Position mgl32.Vec3
}

// DecodedModel is what a model decoder discovered in a file. Sub-resources
// are plain data; the asset library turns them into cache entries.
type DecodedModel struct {
	Name       string
	Geometries []*renderer.Geometry
	Materials  []MaterialDesc
	Parts      []Part
	Clips      []renderer.Clip
}

type ModelDecoder func(ctx context.Context, src Source) (*DecodedModel, error)

type TextureDecoder func(ctx context.Context, src Source) (image.Image, error)

// Registry maps kinds to decoders. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	models   map[Kind]ModelDecoder
	textures map[Kind]TextureDecoder
}

func NewRegistry() *Registry {
	return &Registry{
		models:   make(map[Kind]ModelDecoder),
		textures: make(map[Kind]TextureDecoder),
	}
}

// DefaultRegistry registers the OBJ, image and terrain decoders.
// Textures larger than maxTextureSize are scaled down; 0 disables scaling.
func DefaultRegistry(maxTextureSize int) *Registry {
	r := NewRegistry()
	r.RegisterModel(KindOBJ, DecodeOBJ)
	r.RegisterModel(KindTerrain, DecodeTerrain)
	img := ImageDecoder(maxTextureSize)
	for _, k := range []Kind{KindPNG, KindJPEG, KindGIF, KindBMP, KindTIFF, KindWebP} {
		r.RegisterTexture(k, img)
	}
	return r
}

func (r *Registry) RegisterModel(kind Kind, dec ModelDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[kind] = dec
}

func (r *Registry) RegisterTexture(kind Kind, dec TextureDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textures[kind] = dec
}

func (r *Registry) Model(kind Kind) (ModelDecoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if dec, ok := r.models[kind]; ok {
		return dec, nil
	}
	return nil, fmt.Errorf("model kind %q: %w", kind, resource.ErrUnsupportedKind)
}

func (r *Registry) Texture(kind Kind) (TextureDecoder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if dec, ok := r.textures[kind]; ok {
		return dec, nil
	}
	return nil, fmt.Errorf("texture kind %q: %w", kind, resource.ErrUnsupportedKind)
}

// Kinds lists the registered model and texture kinds, sorted.
func (r *Registry) Kinds() (models, textures []Kind) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k := range r.models {
		models = append(models, k)
	}
	for k := range r.textures {
		textures = append(textures, k)
	}
	sort.Slice(models, func(i, j int) bool { return models[i] < models[j] })
	sort.Slice(textures, func(i, j int) bool { return textures[i] < textures[j] })
	return models, textures
}
