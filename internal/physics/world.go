package physics

import (
	"GopherScene/internal/config"
	"GopherScene/internal/logger"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Contact is reported for each pair of overlapping bodies in a sub-step.
type Contact struct {
	A, B        *Body
	Normal      mgl32.Vec3 // from B towards A
	Penetration float32
}

// World advances bodies with a fixed time step. It is not safe for
// concurrent use; the runtime drives it from the frame loop.
type World struct {
	Gravity     mgl32.Vec3
	FixedStep   float32
	MaxSubSteps int
	GroundPlane bool

	// OnContact, when set, is called for every resolved contact.
	OnContact func(Contact)

	bodies      []*Body
	index       map[uint64]int
	accumulator float32
	steps       uint64
}

func NewWorld(cfg config.Physics) *World {
	step := cfg.FixedStep
	if step <= 0 {
		step = 1.0 / 60.0
	}
	maxSteps := cfg.MaxSubSteps
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &World{
		Gravity:     mgl32.Vec3(cfg.Gravity),
		FixedStep:   step,
		MaxSubSteps: maxSteps,
		GroundPlane: cfg.GroundPlane,
		index:       make(map[uint64]int),
	}
}

// AddBody registers b. Adding a body twice is a no-op.
func (w *World) AddBody(b *Body) {
	if b == nil {
		return
	}
	if _, ok := w.index[b.ID]; ok {
		return
	}
	w.index[b.ID] = len(w.bodies)
	w.bodies = append(w.bodies, b)
	logger.Log.Debug("Body added", zap.Uint64("body", b.ID), zap.Int("bodies", len(w.bodies)))
}

// RemoveBody unregisters b and reports whether it was present.
func (w *World) RemoveBody(b *Body) bool {
	if b == nil {
		return false
	}
	i, ok := w.index[b.ID]
	if !ok {
		return false
	}
	last := len(w.bodies) - 1
	w.bodies[i] = w.bodies[last]
	w.index[w.bodies[i].ID] = i
	w.bodies[last] = nil
	w.bodies = w.bodies[:last]
	delete(w.index, b.ID)
	logger.Log.Debug("Body removed", zap.Uint64("body", b.ID), zap.Int("bodies", len(w.bodies)))
	return true
}

func (w *World) Contains(b *Body) bool {
	if b == nil {
		return false
	}
	_, ok := w.index[b.ID]
	return ok
}

// Bodies returns a copy of the registered bodies.
func (w *World) Bodies() []*Body {
	return append([]*Body(nil), w.bodies...)
}

func (w *World) Len() int {
	return len(w.bodies)
}

// Steps is the number of fixed sub-steps simulated so far.
func (w *World) Steps() uint64 {
	return w.steps
}

// Step consumes dt in fixed sub-steps and returns how many ran. Time beyond
// MaxSubSteps is dropped so a long frame cannot stall the simulation.
func (w *World) Step(dt float32) int {
	if dt <= 0 {
		return 0
	}
	w.accumulator += dt
	n := 0
	for w.accumulator >= w.FixedStep && n < w.MaxSubSteps {
		w.subStep(w.FixedStep)
		w.accumulator -= w.FixedStep
		n++
	}
	if w.accumulator >= w.FixedStep {
		logger.Log.Debug("Physics fell behind, dropping time",
			zap.Float32("dropped", w.accumulator),
			zap.Int("subSteps", n))
		w.accumulator = 0
	}
	return n
}

func (w *World) subStep(h float32) {
	w.steps++
	for _, b := range w.bodies {
		if b.Kinematic {
			b.Position = b.Position.Add(b.Velocity.Mul(h))
			continue
		}
		if b.UseGravity {
			b.Velocity = b.Velocity.Add(w.Gravity.Mul(h))
		}
		b.Position = b.Position.Add(b.Velocity.Mul(h))
		if l := b.AngularVelocity.Len(); l > 0 {
			spin := mgl32.QuatRotate(l*h, b.AngularVelocity.Mul(1/l))
			b.Rotation = spin.Mul(b.Rotation).Normalize()
		}
	}

	for i := 0; i < len(w.bodies); i++ {
		for j := i + 1; j < len(w.bodies); j++ {
			w.resolveSphereVsSphere(w.bodies[i], w.bodies[j])
		}
	}

	if w.GroundPlane {
		for _, b := range w.bodies {
			w.resolveGround(b)
		}
	}
}

func (w *World) resolveSphereVsSphere(a, b *Body) {
	invA, invB := a.InverseMass(), b.InverseMass()
	if invA+invB == 0 {
		return
	}
	diff := a.Position.Sub(b.Position)
	dist := diff.Len()
	minDist := a.Radius + b.Radius
	if dist >= minDist || dist < 0.0001 {
		return
	}

	normal := diff.Mul(1 / dist)
	penetration := minDist - dist
	total := invA + invB
	a.Position = a.Position.Add(normal.Mul(penetration * invA / total))
	b.Position = b.Position.Sub(normal.Mul(penetration * invB / total))

	if w.OnContact != nil {
		w.OnContact(Contact{A: a, B: b, Normal: normal, Penetration: penetration})
	}

	velAlongNormal := a.Velocity.Sub(b.Velocity).Dot(normal)
	if velAlongNormal > 0 {
		return
	}
	e := (a.Bounciness + b.Bounciness) / 2
	j := -(1 + e) * velAlongNormal / total
	impulse := normal.Mul(j)
	a.Velocity = a.Velocity.Add(impulse.Mul(invA))
	b.Velocity = b.Velocity.Sub(impulse.Mul(invB))
}

func (w *World) resolveGround(b *Body) {
	if b.Kinematic || b.Position.Y() >= b.Radius {
		return
	}
	b.Position[1] = b.Radius
	if b.Velocity.Y() < 0 {
		b.Velocity[1] = -b.Velocity.Y() * b.Bounciness
	}
}
