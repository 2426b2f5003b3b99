package scripts

import (
	"math"

	"GopherScene/internal/behaviour"
)

type BounceScript struct {
	behaviour.BaseComponent
	Height float32
	Speed  float32
	startY float32
	time   float32
}

func init() {
	behaviour.RegisterScript("BounceScript", func() behaviour.Component {
		return &BounceScript{Height: 5.0, Speed: 2.0}
	})
}

func (b *BounceScript) Start() {
	b.startY = b.GetGameObject().Transform.Position.Y()
	b.time = 0
}

func (b *BounceScript) Update(dt float32) {
	b.time += dt * b.Speed
	offset := float32(math.Sin(float64(b.time))) * b.Height
	b.GetGameObject().Transform.Position[1] = b.startY + offset
}

func (b *BounceScript) Attributes() []behaviour.Attribute {
	return []behaviour.Attribute{
		behaviour.FloatAttr("height", &b.Height),
		behaviour.FloatAttr("speed", &b.Speed),
	}
}
