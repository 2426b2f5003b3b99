package engine

import (
	"fmt"

	"GopherScene/internal/behaviour"
	"GopherScene/internal/logger"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"go.uber.org/zap"
)

// AddEntities puts objs and every child they declare into the scene, parent
// before child. Nothing is added unless all of them can be.
func (r *Runtime) AddEntities(objs ...*behaviour.GameObject) error {
	if r.root == nil {
		return ErrNoScene
	}
	batch, err := r.validateAdd(objs)
	if err != nil {
		return err
	}
	for _, obj := range objs {
		// children of anything in the batch are reached from their parent
		if !obj.InScene() && !batch[obj.ParentID()] {
			r.attach(obj)
		}
	}
	return nil
}

func (r *Runtime) validateAdd(objs []*behaviour.GameObject) (map[uint64]bool, error) {
	batch := make(map[uint64]bool)
	for _, obj := range objs {
		if obj == nil {
			return nil, fmt.Errorf("add nil entity: %w", ErrNotInScene)
		}
		var inScene *behaviour.GameObject
		obj.Walk(func(o *behaviour.GameObject) bool {
			if o.InScene() && inScene == nil {
				inScene = o
			}
			batch[o.ID] = true
			return true
		})
		if inScene != nil {
			return nil, fmt.Errorf("entity %q: %w", inScene.Name, ErrAlreadyInScene)
		}
	}
	for _, obj := range objs {
		pid := obj.ParentID()
		if pid == 0 || batch[pid] {
			continue
		}
		if _, ok := r.objects.Lookup(pid); !ok {
			return nil, fmt.Errorf("entity %q: %w", obj.Name, ErrParentNotInScene)
		}
	}
	return batch, nil
}

func (r *Runtime) attach(obj *behaviour.GameObject) {
	if obj.Node == nil {
		obj.Node = renderer.NewNode(obj.Name)
	}
	t := obj.Transform
	obj.Node.SetTransform(t.Position, t.Rotation, t.Scale)
	if parent := r.objects.Parent(obj); parent != nil && parent.Node != nil {
		parent.Node.Add(obj.Node)
	} else {
		r.root.Add(obj.Node)
	}

	if obj.Body != nil {
		obj.Body.Position = t.Position
		obj.Body.Rotation = t.Rotation
		r.world.AddBody(obj.Body)
		r.bodies[obj.Body.ID] = obj
	}

	r.objects.RegisterGameObject(obj)
	logger.Log.Debug("Entity added",
		zap.Uint64("id", obj.ID),
		zap.String("name", obj.Name),
		zap.Uint64("parent", obj.ParentID()))

	for _, child := range obj.Children() {
		if !child.InScene() {
			r.attach(child)
		}
	}
}

// RemoveEntities takes objs and all their descendants out of the scene.
// Each entity leaves physics first, then its components are destroyed, then
// its children are removed, then its render resources are released and its
// node detached. Nothing is removed unless all of objs are in the scene.
func (r *Runtime) RemoveEntities(objs ...*behaviour.GameObject) error {
	return r.removeEntities(objs, nil)
}

// removeEntities parks render trees in park instead of disposing them when
// park is non-nil. An entity listed with one of its ancestors goes out with
// that ancestor and stays linked to its parent.
func (r *Runtime) removeEntities(objs []*behaviour.GameObject, park *removal) error {
	for _, obj := range objs {
		if obj == nil || !r.objects.Contains(obj) {
			name := "<nil>"
			if obj != nil {
				name = obj.Name
			}
			return fmt.Errorf("entity %q: %w", name, ErrNotInScene)
		}
	}
	listed := make(map[*behaviour.GameObject]bool, len(objs))
	for _, obj := range objs {
		listed[obj] = true
	}
	roots := objs[:0:0]
	for _, obj := range objs {
		if !r.hasListedAncestor(obj, listed) {
			roots = append(roots, obj)
		}
	}
	for _, obj := range roots {
		if !obj.InScene() {
			// listed twice
			continue
		}
		parent := r.objects.Parent(obj)
		r.detach(obj, park != nil)
		if parent != nil && parent.InScene() {
			parent.RemoveChild(obj)
		}
		if park != nil {
			park.roots = append(park.roots, parked{obj: obj, parentID: idOf(parent)})
		}
	}
	return nil
}

func (r *Runtime) hasListedAncestor(obj *behaviour.GameObject, listed map[*behaviour.GameObject]bool) bool {
	for p := r.objects.Parent(obj); p != nil; p = r.objects.Parent(p) {
		if listed[p] {
			return true
		}
	}
	return false
}

func (r *Runtime) detach(obj *behaviour.GameObject, park bool) {
	if obj.Body != nil {
		r.world.RemoveBody(obj.Body)
		delete(r.bodies, obj.Body.ID)
	}

	r.objects.UnregisterGameObject(obj)

	for _, child := range obj.Children() {
		if child.InScene() {
			r.detach(child, park)
		}
	}

	if obj.Node != nil {
		if park {
			obj.Node.Detach()
		} else {
			r.disposeRender(obj, r.release)
		}
	}
	logger.Log.Debug("Entity removed",
		zap.Uint64("id", obj.ID),
		zap.String("name", obj.Name),
		zap.Bool("parked", park))
}

// disposeRender frees the render tree of obj. Cached resources are released
// by reference; only meshes owned by the tree are deleted.
func (r *Runtime) disposeRender(obj *behaviour.GameObject, release func(resource.Ref)) {
	obj.Node.Dispose(r.device, release)
	obj.Node = nil
	for _, mesh := range behaviour.GetComponents[*behaviour.MeshComponent](obj) {
		mesh.Model = ""
	}
}

// Reparent moves child under parent, or to the scene root when parent is
// nil. Both must be in the scene; the child keeps its components running.
func (r *Runtime) Reparent(child, parent *behaviour.GameObject) error {
	if child == nil || !r.objects.Contains(child) {
		return ErrNotInScene
	}
	if parent != nil && !r.objects.Contains(parent) {
		return ErrParentNotInScene
	}
	if parent != nil && (parent == child || child.IsAncestorOf(parent)) {
		return behaviour.ErrCycle
	}
	if old := r.objects.Parent(child); old != nil {
		old.RemoveChild(child)
	}
	if parent == nil {
		r.root.Add(child.Node)
		return nil
	}
	if err := parent.AddChild(child); err != nil {
		return err
	}
	if parent.Node != nil && child.Node != nil {
		parent.Node.Add(child.Node)
	}
	return nil
}

func idOf(obj *behaviour.GameObject) uint64 {
	if obj == nil {
		return 0
	}
	return obj.ID
}
