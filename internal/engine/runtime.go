package engine

import (
	"errors"
	"fmt"
	"sync"

	"GopherScene/internal/assets"
	"GopherScene/internal/behaviour"
	"GopherScene/internal/config"
	"GopherScene/internal/logger"
	"GopherScene/internal/physics"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"go.uber.org/zap"
)

var (
	ErrAlreadyInScene   = errors.New("entity already in scene")
	ErrNotInScene       = fmt.Errorf("entity not in scene: %w", resource.ErrNotFound)
	ErrParentNotInScene = fmt.Errorf("parent not in scene: %w", resource.ErrNotFound)
	ErrNoScene          = fmt.Errorf("no scene: %w", resource.ErrInvalidEnvironment)
	ErrNothingToUndo    = errors.New("nothing to undo")
)

// Runtime owns the scene root, the physics world and the authoritative list
// of entities. All methods except the completion of async loads must be
// called from the frame loop goroutine.
type Runtime struct {
	cfg     config.Engine
	lib     *assets.Library
	device  renderer.Device
	world   *physics.World
	factory physics.BodyFactory
	objects *behaviour.ComponentManager
	history *History

	root   *renderer.Node
	camera *renderer.Camera

	bodies   map[uint64]*behaviour.GameObject
	contacts []physics.Contact
	frame    uint64

	postMu sync.Mutex
	posted []func()
}

type Option func(*Runtime)

// WithBodyFactory replaces the factory used by NewBody.
func WithBodyFactory(f physics.BodyFactory) Option {
	return func(r *Runtime) { r.factory = f }
}

// New builds a runtime without a scene. Call NewScene before adding
// entities.
func New(cfg config.Engine, lib *assets.Library, opts ...Option) *Runtime {
	r := &Runtime{
		cfg:     cfg,
		lib:     lib,
		world:   physics.NewWorld(cfg.Physics),
		factory: physics.DefaultFactory{},
		objects: behaviour.NewComponentManager(),
		bodies:  make(map[uint64]*behaviour.GameObject),
	}
	if lib != nil {
		r.device = lib.Device()
	}
	r.history = &History{rt: r}
	r.world.OnContact = func(c physics.Contact) {
		r.contacts = append(r.contacts, c)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewScene creates the scene root and the main camera. An existing scene is
// cleared first.
func (r *Runtime) NewScene() {
	if r.root != nil {
		r.ClearScene()
	}
	r.root = renderer.NewNode("Scene")
	vp := r.cfg.Viewport
	r.camera = renderer.NewCamera(r.cfg.Camera.FOV, r.cfg.Camera.Near, r.cfg.Camera.Far, vp.Width, vp.Height)
	if r.device != nil && vp.Width > 0 && vp.Height > 0 {
		r.device.SetViewport(vp.Width, vp.Height)
	}
	logger.Log.Info("Scene created",
		zap.Int32("width", vp.Width),
		zap.Int32("height", vp.Height))
}

func (r *Runtime) HasScene() bool {
	return r.root != nil
}

func (r *Runtime) Root() *renderer.Node {
	return r.root
}

func (r *Runtime) Camera() *renderer.Camera {
	return r.camera
}

func (r *Runtime) World() *physics.World {
	return r.world
}

func (r *Runtime) Library() *assets.Library {
	return r.lib
}

func (r *Runtime) History() *History {
	return r.history
}

// Frame is the number of ticks run so far.
func (r *Runtime) Frame() uint64 {
	return r.frame
}

// NewBody creates a physics body with the runtime's factory. The body joins
// the world when its entity enters the scene.
func (r *Runtime) NewBody(desc physics.BodyDesc) *physics.Body {
	return r.factory.NewBody(desc)
}

// Entities returns the entities in the scene in the order they were added.
func (r *Runtime) Entities() []*behaviour.GameObject {
	return r.objects.GetAllGameObjects()
}

func (r *Runtime) FindEntityByName(name string) (*behaviour.GameObject, error) {
	if obj := r.objects.FindGameObject(name); obj != nil {
		return obj, nil
	}
	return nil, fmt.Errorf("entity %q: %w", name, resource.ErrNotFound)
}

func (r *Runtime) FindEntityByID(id uint64) (*behaviour.GameObject, error) {
	if obj, ok := r.objects.Lookup(id); ok {
		return obj, nil
	}
	return nil, fmt.Errorf("entity %d: %w", id, resource.ErrNotFound)
}

func (r *Runtime) FindEntitiesWithTag(tag string) []*behaviour.GameObject {
	return r.objects.FindGameObjectsWithTag(tag)
}

// Parent resolves the parent of obj, or nil for a root entity.
func (r *Runtime) Parent(obj *behaviour.GameObject) *behaviour.GameObject {
	return r.objects.Parent(obj)
}

// Post queues fn to run on the frame loop at the start of the next Tick. It
// is safe to call from any goroutine.
func (r *Runtime) Post(fn func()) {
	r.postMu.Lock()
	r.posted = append(r.posted, fn)
	r.postMu.Unlock()
}

func (r *Runtime) runPosted() int {
	r.postMu.Lock()
	posted := r.posted
	r.posted = nil
	r.postMu.Unlock()
	for _, fn := range posted {
		fn()
	}
	return len(posted)
}

// Tick advances one frame: posted completions, logic update, physics, late
// update, animation, then render transforms.
func (r *Runtime) Tick(dt float32) {
	r.runPosted()
	if r.root == nil {
		return
	}

	r.objects.UpdateAll(dt)

	r.pushKinematic()
	r.contacts = r.contacts[:0]
	r.world.Step(dt)
	r.pullBodies()
	r.dispatchContacts()

	r.objects.LateUpdateAll(dt)

	for _, obj := range r.objects.GetAllGameObjects() {
		if obj.Active && obj.InScene() && obj.Mixer != nil {
			obj.Mixer.Update(dt)
		}
	}

	r.syncNodes()
	r.frame++
}

func (r *Runtime) pushKinematic() {
	for _, obj := range r.bodies {
		if obj.Body.Kinematic {
			obj.Body.Position = obj.Transform.Position
			obj.Body.Rotation = obj.Transform.Rotation
		}
	}
}

func (r *Runtime) pullBodies() {
	for _, obj := range r.bodies {
		if !obj.Body.Kinematic {
			obj.Transform.Position = obj.Body.Position
			obj.Transform.Rotation = obj.Body.Rotation
		}
	}
}

func (r *Runtime) dispatchContacts() {
	for _, c := range r.contacts {
		a, b := r.bodies[c.A.ID], r.bodies[c.B.ID]
		if a == nil || b == nil {
			continue
		}
		if a.InScene() && b.InScene() {
			a.Contacts.Invoke(b)
		}
		// a listener may have removed either side
		if a.InScene() && b.InScene() {
			b.Contacts.Invoke(a)
		}
	}
	r.contacts = r.contacts[:0]
}

func (r *Runtime) syncNodes() {
	for _, obj := range r.objects.GetAllGameObjects() {
		if obj.Node != nil {
			t := obj.Transform
			obj.Node.SetTransform(t.Position, t.Rotation, t.Scale)
			obj.Node.Visible = obj.Active
		}
	}
}

// OnResize updates the camera aspect ratio and the device viewport. It does
// nothing without a scene or for a degenerate size, and repeating a size is
// harmless.
func (r *Runtime) OnResize(width, height int32) bool {
	if r.root == nil || r.camera == nil {
		return false
	}
	if !r.camera.SetViewport(width, height) {
		return false
	}
	r.cfg.Viewport.Width, r.cfg.Viewport.Height = width, height
	if r.device != nil {
		r.device.SetViewport(width, height)
	}
	logger.Log.Debug("Viewport resized", zap.Int32("width", width), zap.Int32("height", height))
	return true
}

// ClearScene ends the current asset generation and removes every entity.
// Loads still in flight complete into nothing.
func (r *Runtime) ClearScene() int {
	if r.lib != nil {
		r.lib.Clear()
	}
	r.history.Clear()

	var roots []*behaviour.GameObject
	for _, obj := range r.objects.GetAllGameObjects() {
		if r.objects.Parent(obj) == nil {
			roots = append(roots, obj)
		}
	}
	removed := r.objects.Len()
	if err := r.RemoveEntities(roots...); err != nil {
		logger.Log.Error("Failed to clear scene", zap.Error(err))
	}
	swept := 0
	if r.lib != nil {
		swept = r.lib.SweepModels()
	}
	logger.Log.Info("Scene cleared", zap.Int("entities", removed), zap.Int("models", swept))
	return removed
}

// Raycast returns the nearest entity whose render tree the ray hits.
func (r *Runtime) Raycast(ray renderer.Ray) (*behaviour.GameObject, float32, bool) {
	if r.root == nil || r.lib == nil {
		return nil, 0, false
	}
	hit, dist, ok := renderer.RayIntersectNode(ray, r.root, r.lib.Bounds)
	if !ok {
		return nil, 0, false
	}
	owners := make(map[*renderer.Node]*behaviour.GameObject)
	for _, obj := range r.objects.GetAllGameObjects() {
		if obj.Node != nil {
			owners[obj.Node] = obj
		}
	}
	for n := hit; n != nil; n = n.Parent() {
		if obj, ok := owners[n]; ok {
			return obj, dist, true
		}
	}
	return nil, 0, false
}

// ScreenRaycast casts from a viewport position through the main camera.
func (r *Runtime) ScreenRaycast(x, y float32) (*behaviour.GameObject, float32, bool) {
	if r.camera == nil {
		return nil, 0, false
	}
	vp := r.cfg.Viewport
	return r.Raycast(renderer.ScreenToRay(r.camera, x, y, int(vp.Width), int(vp.Height)))
}

// Focus points the main camera at obj.
func (r *Runtime) Focus(obj *behaviour.GameObject) {
	if r.camera == nil || obj == nil {
		return
	}
	r.camera.LookAt(obj.Transform.Position)
}

func (r *Runtime) release(ref resource.Ref) {
	if r.lib == nil {
		return
	}
	if err := r.lib.Release(ref); err != nil {
		logger.Log.Warn("Failed to release resource",
			zap.String("kind", string(ref.Kind)),
			zap.String("handle", string(ref.Handle)),
			zap.Error(err))
	}
}

// discard releases like release but does not keep a model template alive
// for a scene that has gone away.
func (r *Runtime) discard(ref resource.Ref) {
	if r.lib != nil && ref.Kind == resource.KindModel {
		if err := r.lib.DiscardModel(ref.Handle); err != nil {
			logger.Log.Warn("Failed to discard model", zap.String("handle", string(ref.Handle)), zap.Error(err))
		}
		return
	}
	r.release(ref)
}
