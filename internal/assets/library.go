package assets

import (
	"fmt"

	"GopherScene/internal/config"
	"GopherScene/internal/loader"
	"GopherScene/internal/logger"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Library owns the texture, material, geometry and model caches and the
// references between them. All methods are safe for concurrent use.
type Library struct {
	device   renderer.Device
	fetcher  loader.Fetcher
	registry *loader.Registry
	names    resource.NameGenerator
	cfg      config.Cache
	gen      resource.Generation
	pool     pond.ResultPool[resource.Handle]

	textures   *resource.Cache[*renderer.Texture]
	materials  *resource.Cache[*renderer.Material]
	geometries *resource.Cache[*renderer.Geometry]
	models     *resource.Cache[*Model]
}

type Option func(*Library)

func WithRegistry(r *loader.Registry) Option {
	return func(l *Library) { l.registry = r }
}

func WithNames(n resource.NameGenerator) Option {
	return func(l *Library) { l.names = n }
}

func WithCacheConfig(c config.Cache) Option {
	return func(l *Library) { l.cfg = c }
}

// New creates a library that uploads to dev and reads files through fetcher.
// Either may be nil; operations that need them fail with
// resource.ErrInvalidEnvironment.
func New(dev renderer.Device, fetcher loader.Fetcher, opts ...Option) *Library {
	l := &Library{
		device:  dev,
		fetcher: fetcher,
		names:   resource.SequentialNames{},
		cfg:     config.Default().Cache,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.registry == nil {
		l.registry = loader.DefaultRegistry(l.cfg.MaxTextureSize)
	}

	modelPolicy := resource.RetainAtZero
	if !l.cfg.RetainModels {
		modelPolicy = resource.DisposeEager
	}

	l.textures = resource.NewCache(resource.KindTexture, resource.DisposeEager, l.freeTexture)
	l.materials = resource.NewCache[*renderer.Material](resource.KindMaterial, resource.DisposeEager, nil)
	l.geometries = resource.NewCache(resource.KindGeometry, resource.DisposeEager, l.freeGeometry)
	l.models = resource.NewCache(resource.KindModel, modelPolicy, l.releaseOwned)
	l.pool = pond.NewResultPool[resource.Handle](max(1, l.cfg.LoadWorkers))

	logger.Log.Info("Asset library created",
		zap.Int("loadWorkers", max(1, l.cfg.LoadWorkers)),
		zap.Int("maxTextureSize", l.cfg.MaxTextureSize),
		zap.Bool("retainModels", l.cfg.RetainModels))
	return l
}

func (l *Library) Registry() *loader.Registry {
	return l.registry
}

func (l *Library) Device() renderer.Device {
	return l.device
}

// Token captures the current scene generation for a load.
func (l *Library) Token() resource.Token {
	return l.gen.Token()
}

// Clear ends the current scene generation. Loads still in flight discard
// their results and release what they acquired.
func (l *Library) Clear() {
	gen := l.gen.Advance()
	logger.Log.Info("Asset generation advanced", zap.Uint64("generation", gen))
}

func (l *Library) requireDevice() error {
	if l.device == nil || !l.device.Ready() {
		return resource.ErrInvalidEnvironment
	}
	return nil
}

// Acquire takes another counted reference for ref.
func (l *Library) Acquire(ref resource.Ref) error {
	switch ref.Kind {
	case resource.KindTexture:
		return l.textures.Acquire(ref.Handle)
	case resource.KindMaterial:
		return l.materials.Acquire(ref.Handle)
	case resource.KindGeometry:
		return l.geometries.Acquire(ref.Handle)
	case resource.KindModel:
		return l.models.Acquire(ref.Handle)
	}
	return fmt.Errorf("acquire %s: %w", ref.Kind, resource.ErrUnsupportedKind)
}

// Release gives back a counted reference. Model references never force
// disposal here.
func (l *Library) Release(ref resource.Ref) error {
	switch ref.Kind {
	case resource.KindTexture:
		return l.textures.Release(ref.Handle)
	case resource.KindMaterial:
		return l.materials.Release(ref.Handle)
	case resource.KindGeometry:
		return l.geometries.Release(ref.Handle)
	case resource.KindModel:
		return l.models.Release(ref.Handle)
	}
	return fmt.Errorf("release %s: %w", ref.Kind, resource.ErrUnsupportedKind)
}

// Subscribe registers fn for the change stream of one cache.
func (l *Library) Subscribe(kind resource.Kind, fn func(resource.Snapshot)) (func(), error) {
	switch kind {
	case resource.KindTexture:
		return l.textures.Subscribe(fn), nil
	case resource.KindMaterial:
		return l.materials.Subscribe(fn), nil
	case resource.KindGeometry:
		return l.geometries.Subscribe(fn), nil
	case resource.KindModel:
		return l.models.Subscribe(fn), nil
	}
	return nil, fmt.Errorf("subscribe %s: %w", kind, resource.ErrUnsupportedKind)
}

// Snapshot returns the current state of one cache.
func (l *Library) Snapshot(kind resource.Kind) (resource.Snapshot, error) {
	switch kind {
	case resource.KindTexture:
		return l.textures.Snapshot(), nil
	case resource.KindMaterial:
		return l.materials.Snapshot(), nil
	case resource.KindGeometry:
		return l.geometries.Snapshot(), nil
	case resource.KindModel:
		return l.models.Snapshot(), nil
	}
	return resource.Snapshot{}, fmt.Errorf("snapshot %s: %w", kind, resource.ErrUnsupportedKind)
}

func (l *Library) Stats() map[resource.Kind]resource.Stats {
	return map[resource.Kind]resource.Stats{
		resource.KindTexture:  l.textures.Stats(),
		resource.KindMaterial: l.materials.Stats(),
		resource.KindGeometry: l.geometries.Stats(),
		resource.KindModel:    l.models.Stats(),
	}
}

// LogStats logs current statistics for every cache.
func (l *Library) LogStats() {
	l.textures.LogStats()
	l.materials.LogStats()
	l.geometries.LogStats()
	l.models.LogStats()
}

// Bounds resolves the local bounding sphere of the geometry drawn by n.
func (l *Library) Bounds(n *renderer.Node) (mgl32.Vec3, float32, bool) {
	if n.Mesh != nil {
		return n.Mesh.BoundsCenter, n.Mesh.BoundsRadius, true
	}
	if n.Geometry.IsZero() {
		return mgl32.Vec3{}, 0, false
	}
	g, ok := l.geometries.Peek(n.Geometry)
	if !ok {
		return mgl32.Vec3{}, 0, false
	}
	return g.BoundsCenter, g.BoundsRadius, true
}

// DisposeAll frees every cached resource. Models go first so their cascade
// finds the entries they own still present.
func (l *Library) DisposeAll() {
	l.models.DisposeAll()
	l.materials.DisposeAll()
	l.geometries.DisposeAll()
	l.textures.DisposeAll()
}

// Close waits for pending asynchronous loads and frees everything.
func (l *Library) Close() {
	l.Clear()
	l.pool.StopAndWait()
	l.DisposeAll()
}

// Pending is an asynchronous load.
type Pending struct {
	result pond.Result[resource.Handle]
}

func (p Pending) Done() <-chan struct{} {
	return p.result.Done()
}

func (p Pending) Wait() (resource.Handle, error) {
	return p.result.Wait()
}

func (l *Library) submit(fn func() (resource.Handle, error)) Pending {
	return Pending{result: l.pool.SubmitErr(fn)}
}

func (l *Library) freeTexture(t *renderer.Texture) {
	if t == nil || t.GPU == 0 || l.device == nil {
		return
	}
	l.device.DeleteTexture(t.GPU)
}

func (l *Library) freeGeometry(g *renderer.Geometry) {
	if g == nil || g.GPU == 0 || l.device == nil {
		return
	}
	l.device.DeleteGeometry(g.GPU)
}
