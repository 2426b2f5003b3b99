package engine

import (
	"fmt"

	"GopherScene/internal/behaviour"
	"GopherScene/internal/logger"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

const maxUndoStack = 50

// UndoActionType represents the type of action that can be undone
type UndoActionType int

const (
	UndoTransform UndoActionType = iota
	UndoRemove
)

func (t UndoActionType) String() string {
	if t == UndoRemove {
		return "remove"
	}
	return "transform"
}

type undoState struct {
	Type     UndoActionType
	Object   *behaviour.GameObject
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	removed *removal
}

// removal keeps removed entities with their render trees detached but
// intact, so the cached resources they reference stay alive until the entry
// is undone or dropped.
type removal struct {
	roots []parked
}

type parked struct {
	obj      *behaviour.GameObject
	parentID uint64
}

// History is the runtime's undo stack.
type History struct {
	rt    *Runtime
	stack []undoState
}

func (h *History) Len() int {
	return len(h.stack)
}

// PushTransform records the current transform of obj.
func (h *History) PushTransform(obj *behaviour.GameObject) {
	if obj == nil {
		return
	}
	h.push(undoState{
		Type:     UndoTransform,
		Object:   obj,
		Position: obj.Transform.Position,
		Rotation: obj.Transform.Rotation,
		Scale:    obj.Transform.Scale,
	})
}

func (h *History) push(state undoState) {
	// Cap stack size
	if len(h.stack) >= maxUndoStack {
		h.drop(h.stack[0])
		h.stack = h.stack[1:]
	}
	h.stack = append(h.stack, state)
}

// RemoveWithUndo removes objs like RemoveEntities and records the removal so
// Undo can bring them back.
func (r *Runtime) RemoveWithUndo(objs ...*behaviour.GameObject) error {
	park := &removal{}
	if err := r.removeEntities(objs, park); err != nil {
		return err
	}
	r.history.push(undoState{Type: UndoRemove, removed: park})
	return nil
}

// Undo reverts the most recent action. A removal is only undone if every
// parent it was removed from is still in the scene; the entities re-enter
// with a fresh component lifecycle.
func (h *History) Undo() error {
	if len(h.stack) == 0 {
		return ErrNothingToUndo
	}
	state := h.stack[len(h.stack)-1]

	switch state.Type {
	case UndoTransform:
		if state.Object != nil {
			state.Object.Transform.Position = state.Position
			state.Object.Transform.Rotation = state.Rotation
			state.Object.Transform.Scale = state.Scale
		}

	case UndoRemove:
		if err := h.restore(state.removed); err != nil {
			return err
		}
	}
	h.stack = h.stack[:len(h.stack)-1]
	logger.Log.Debug("Undo", zap.Stringer("action", state.Type), zap.Int("remaining", len(h.stack)))
	return nil
}

func (h *History) restore(rm *removal) error {
	rt := h.rt
	if rt.root == nil {
		return ErrNoScene
	}
	objs := make([]*behaviour.GameObject, 0, len(rm.roots))
	for _, p := range rm.roots {
		if p.obj.InScene() {
			return fmt.Errorf("entity %q: %w", p.obj.Name, ErrAlreadyInScene)
		}
		if p.parentID == 0 {
			continue
		}
		parent, ok := rt.objects.Lookup(p.parentID)
		if !ok {
			return fmt.Errorf("entity %q: %w", p.obj.Name, ErrParentNotInScene)
		}
		if p.obj.ParentID() != 0 && p.obj.ParentID() != parent.ID {
			return fmt.Errorf("entity %q: %w", p.obj.Name, behaviour.ErrHasParent)
		}
	}
	var linked []parked
	for _, p := range rm.roots {
		if p.parentID != 0 && p.obj.ParentID() == 0 {
			parent, _ := rt.objects.Lookup(p.parentID)
			if err := parent.AddChild(p.obj); err == nil {
				linked = append(linked, p)
			}
		}
		objs = append(objs, p.obj)
	}
	if err := rt.AddEntities(objs...); err != nil {
		// leave the entry usable for a later attempt
		for _, p := range linked {
			if parent, ok := rt.objects.Lookup(p.parentID); ok {
				parent.RemoveChild(p.obj)
			}
		}
		return err
	}
	rm.roots = nil
	return nil
}

// Clear drops every entry, freeing the render trees of removals that were
// never undone.
func (h *History) Clear() {
	for _, s := range h.stack {
		h.drop(s)
	}
	h.stack = nil
}

func (h *History) drop(s undoState) {
	if s.removed == nil {
		return
	}
	for _, p := range s.removed.roots {
		p.obj.Walk(func(o *behaviour.GameObject) bool {
			if o.InScene() {
				return false
			}
			if o.Node != nil {
				h.rt.disposeRender(o, h.rt.release)
			}
			return true
		})
	}
	s.removed.roots = nil
}
