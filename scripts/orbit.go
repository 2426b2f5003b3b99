package scripts

import (
	"math"

	"GopherScene/internal/behaviour"

	"github.com/go-gl/mathgl/mgl32"
)

// OrbitScript moves its object on a horizontal circle around Center.
type OrbitScript struct {
	behaviour.BaseComponent
	Center mgl32.Vec3
	Radius float32
	Speed  float32
	time   float32
}

func init() {
	behaviour.RegisterScript("OrbitScript", func() behaviour.Component {
		return &OrbitScript{Radius: 10.0, Speed: 1.0}
	})
}

func (o *OrbitScript) Update(dt float32) {
	o.time += dt * o.Speed

	x := float32(math.Cos(float64(o.time))) * o.Radius
	z := float32(math.Sin(float64(o.time))) * o.Radius

	pos := &o.GetGameObject().Transform.Position
	pos[0] = o.Center.X() + x
	pos[2] = o.Center.Z() + z
}

func (o *OrbitScript) Attributes() []behaviour.Attribute {
	return []behaviour.Attribute{
		behaviour.Vec3Attr("center", &o.Center),
		behaviour.FloatAttr("radius", &o.Radius),
		behaviour.FloatAttr("speed", &o.Speed),
	}
}
