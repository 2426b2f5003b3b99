package behaviour

import (
	"errors"
	"sync/atomic"

	"GopherScene/internal/physics"
	"GopherScene/internal/renderer"

	"github.com/go-gl/mathgl/mgl32"
)

// Component is the base interface for all components
// Components can be attached to game objects
type Component interface {
	// Lifecycle methods
	Start()                // Called once when the object enters the scene, before any Update
	Update(dt float32)     // Called every frame, before physics
	LateUpdate(dt float32) // Called every frame, after physics
	OnDestroy()            // Called once when the component or its object is removed

	// Component info
	GetEnabled() bool
	SetEnabled(bool)
	GetGameObject() *GameObject
	SetGameObject(*GameObject)
}

// BaseComponent provides default implementations for all Component methods
// User scripts can embed this to only override methods they need
type BaseComponent struct {
	enabled    bool
	gameObject *GameObject
	tracked    []func()
}

func (c *BaseComponent) Start()                {}
func (c *BaseComponent) Update(dt float32)     {}
func (c *BaseComponent) LateUpdate(dt float32) {}
func (c *BaseComponent) OnDestroy()            {}

func (c *BaseComponent) GetEnabled() bool {
	return c.enabled
}

func (c *BaseComponent) SetEnabled(enabled bool) {
	c.enabled = enabled
}

func (c *BaseComponent) GetGameObject() *GameObject {
	return c.gameObject
}

func (c *BaseComponent) SetGameObject(obj *GameObject) {
	c.gameObject = obj
}

// Track registers cancel to run after OnDestroy. Use it for listeners and
// other registrations made outside the component.
func (c *BaseComponent) Track(cancel func()) {
	if cancel != nil {
		c.tracked = append(c.tracked, cancel)
	}
}

func (c *BaseComponent) releaseTracked() int {
	n := len(c.tracked)
	for i := n - 1; i >= 0; i-- {
		c.tracked[i]()
	}
	c.tracked = nil
	return n
}

// tracker is satisfied by every component embedding BaseComponent.
type tracker interface {
	releaseTracked() int
}

var (
	ErrHasParent = errors.New("game object already has a parent")
	ErrCycle     = errors.New("game object cannot be its own ancestor")
)

var nextObjectID atomic.Uint64

// GameObject represents an entity in the scene. It owns its components and
// its children; the parent is referenced by id only.
type GameObject struct {
	ID        uint64
	Name      string
	Tag       string
	Active    bool
	Transform *Transform

	// Optional collaborators, owned by this object while it is in the scene.
	Body  *physics.Body
	Node  *renderer.Node
	Mixer *renderer.Mixer

	// Contacts fires with the other object for each physics contact.
	Contacts Event[*GameObject]

	parentID uint64
	children []*GameObject
	slots    []*slot
	inScene  bool
}

// Transform component
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// Transform methods
func (t *Transform) Translate(delta mgl32.Vec3) {
	t.Position = t.Position.Add(delta)
}

func (t *Transform) Rotate(axis mgl32.Vec3, angle float32) {
	rotation := mgl32.QuatRotate(angle, axis)
	t.Rotation = t.Rotation.Mul(rotation)
}

func (t *Transform) SetPosition(pos mgl32.Vec3) {
	t.Position = pos
}

func (t *Transform) SetRotation(rot mgl32.Quat) {
	t.Rotation = rot
}

func (t *Transform) SetScale(scale mgl32.Vec3) {
	t.Scale = scale
}

func (t *Transform) Forward() mgl32.Vec3 {
	return t.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
}

func (t *Transform) Up() mgl32.Vec3 {
	return t.Rotation.Rotate(mgl32.Vec3{0, 1, 0})
}

func (t *Transform) Right() mgl32.Vec3 {
	return t.Rotation.Rotate(mgl32.Vec3{1, 0, 0})
}

// GameObject methods
func NewGameObject(name string) *GameObject {
	return &GameObject{
		ID:     nextObjectID.Add(1),
		Name:   name,
		Active: true,
		Transform: &Transform{
			Position: mgl32.Vec3{0, 0, 0},
			Rotation: mgl32.QuatIdent(),
			Scale:    mgl32.Vec3{1, 1, 1},
		},
	}
}

// AddComponent attaches component. If the object is already in the scene the
// component starts immediately.
func (obj *GameObject) AddComponent(component Component) {
	if component == nil || obj.slotOf(component) != nil {
		return
	}
	component.SetGameObject(obj)
	component.SetEnabled(true)
	s := &slot{comp: component}
	obj.slots = append(obj.slots, s)
	if obj.inScene {
		s.start()
	}
}

// RemoveComponent detaches component, destroying it first.
func (obj *GameObject) RemoveComponent(component Component) bool {
	for i, s := range obj.slots {
		if s.comp == component {
			obj.slots = append(obj.slots[:i], obj.slots[i+1:]...)
			s.destroy()
			component.SetGameObject(nil)
			return true
		}
	}
	return false
}

// Components returns the attached components in attach order.
func (obj *GameObject) Components() []Component {
	out := make([]Component, 0, len(obj.slots))
	for _, s := range obj.slots {
		out = append(out, s.comp)
	}
	return out
}

// State reports the lifecycle state of an attached component.
func (obj *GameObject) State(component Component) (LifecycleState, bool) {
	if s := obj.slotOf(component); s != nil {
		return s.state, true
	}
	return Unattached, false
}

func (obj *GameObject) slotOf(component Component) *slot {
	for _, s := range obj.slots {
		if s.comp == component {
			return s
		}
	}
	return nil
}

// GetComponent returns the first component of type T.
func GetComponent[T Component](obj *GameObject) T {
	var zero T
	for _, s := range obj.slots {
		if typed, ok := s.comp.(T); ok {
			return typed
		}
	}
	return zero
}

func GetComponents[T Component](obj *GameObject) []T {
	var out []T
	for _, s := range obj.slots {
		if typed, ok := s.comp.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

// AddChild declares child under obj. A child must be removed from its
// current parent first.
func (obj *GameObject) AddChild(child *GameObject) error {
	if child == nil {
		return nil
	}
	if child.parentID != 0 {
		return ErrHasParent
	}
	if child == obj || child.IsAncestorOf(obj) {
		return ErrCycle
	}
	child.parentID = obj.ID
	obj.children = append(obj.children, child)
	return nil
}

func (obj *GameObject) RemoveChild(child *GameObject) bool {
	for i, c := range obj.children {
		if c == child {
			obj.children = append(obj.children[:i], obj.children[i+1:]...)
			child.parentID = 0
			return true
		}
	}
	return false
}

// Children returns a copy of the child list.
func (obj *GameObject) Children() []*GameObject {
	return append([]*GameObject(nil), obj.children...)
}

// ParentID is 0 for a root object.
func (obj *GameObject) ParentID() uint64 {
	return obj.parentID
}

func (obj *GameObject) InScene() bool {
	return obj.inScene
}

// IsAncestorOf reports whether other is below obj in the hierarchy.
func (obj *GameObject) IsAncestorOf(other *GameObject) bool {
	for _, c := range obj.children {
		if c == other || c.IsAncestorOf(other) {
			return true
		}
	}
	return false
}

// Walk visits obj and its descendants depth-first, parents first. Returning
// false from fn skips the subtree.
func (obj *GameObject) Walk(fn func(*GameObject) bool) {
	if !fn(obj) {
		return
	}
	for _, c := range obj.Children() {
		c.Walk(fn)
	}
}

func (obj *GameObject) startComponents() {
	for _, s := range append([]*slot(nil), obj.slots...) {
		s.start()
	}
}

func (obj *GameObject) updateComponents(dt float32) {
	if !obj.Active {
		return
	}
	for _, s := range append([]*slot(nil), obj.slots...) {
		s.update(dt)
	}
}

func (obj *GameObject) lateUpdateComponents(dt float32) {
	if !obj.Active {
		return
	}
	for _, s := range append([]*slot(nil), obj.slots...) {
		s.lateUpdate(dt)
	}
}

func (obj *GameObject) destroyComponents() int {
	n := 0
	for _, s := range append([]*slot(nil), obj.slots...) {
		if s.destroy() {
			n++
		}
	}
	return n
}

// renewLifecycle gives every destroyed component a fresh lifecycle so the
// object can enter a scene again.
func (obj *GameObject) renewLifecycle() {
	for i, s := range obj.slots {
		if s.state == Destroyed {
			obj.slots[i] = &slot{comp: s.comp}
		}
	}
}
