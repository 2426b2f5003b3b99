package scripts

import (
	"GopherScene/internal/behaviour"

	"github.com/go-gl/mathgl/mgl32"
)

// RotateScript spins its object around Axis at Speed degrees per second.
type RotateScript struct {
	behaviour.BaseComponent
	Speed float32
	Axis  mgl32.Vec3
}

func init() {
	behaviour.RegisterScript("RotateScript", func() behaviour.Component {
		return &RotateScript{Speed: 45.0, Axis: mgl32.Vec3{0, 1, 0}}
	})
}

func (r *RotateScript) Update(dt float32) {
	if r.Axis.Len() == 0 {
		return
	}
	r.GetGameObject().Transform.Rotate(r.Axis.Normalize(), mgl32.DegToRad(r.Speed*dt))
}

func (r *RotateScript) Attributes() []behaviour.Attribute {
	return []behaviour.Attribute{
		behaviour.FloatAttr("speed", &r.Speed),
		behaviour.Vec3Attr("axis", &r.Axis),
	}
}
