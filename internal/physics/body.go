package physics

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// Body is a rigid body simulated by a World. Colliders are spheres.
type Body struct {
	ID              uint64
	Position        mgl32.Vec3
	Rotation        mgl32.Quat
	Velocity        mgl32.Vec3
	AngularVelocity mgl32.Vec3
	Mass            float32
	Radius          float32
	Bounciness      float32
	Kinematic       bool
	UseGravity      bool
}

// InverseMass is 0 for kinematic and massless bodies, which never move in
// response to contacts.
func (b *Body) InverseMass() float32 {
	if b.Kinematic || b.Mass <= 0 {
		return 0
	}
	return 1 / b.Mass
}

// BodyDesc describes a body to create.
type BodyDesc struct {
	Position   mgl32.Vec3
	Rotation   mgl32.Quat
	Velocity   mgl32.Vec3
	Mass       float32
	Radius     float32
	Bounciness float32
	Kinematic  bool
	NoGravity  bool
}

// BodyFactory creates bodies for entities.
type BodyFactory interface {
	NewBody(desc BodyDesc) *Body
}

// DefaultFactory assigns process-unique ids and fills unset fields.
type DefaultFactory struct{}

var nextBodyID atomic.Uint64

func (DefaultFactory) NewBody(desc BodyDesc) *Body {
	rot := desc.Rotation
	if rot == (mgl32.Quat{}) {
		rot = mgl32.QuatIdent()
	}
	mass := desc.Mass
	if mass == 0 && !desc.Kinematic {
		mass = 1
	}
	radius := desc.Radius
	if radius == 0 {
		radius = 0.5
	}
	return &Body{
		ID:         nextBodyID.Add(1),
		Position:   desc.Position,
		Rotation:   rot,
		Velocity:   desc.Velocity,
		Mass:       mass,
		Radius:     radius,
		Bounciness: desc.Bounciness,
		Kinematic:  desc.Kinematic,
		UseGravity: !desc.NoGravity && !desc.Kinematic,
	}
}
