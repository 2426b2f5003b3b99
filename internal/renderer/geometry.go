package renderer

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// VertexStride is the number of floats per interleaved vertex:
// position (3), texture coordinates (2), normal (3).
const VertexStride = 8

// Geometry is vertex and index data plus its device buffer. It is either the
// payload of a geometry cache entry or a mesh owned by exactly one Node.
type Geometry struct {
	Name            string
	InterleavedData []float32
	Indices         []uint32
	BoundsCenter    mgl32.Vec3
	BoundsRadius    float32
	GPU             uint32
}

func (g *Geometry) VertexCount() int {
	return len(g.InterleavedData) / VertexStride
}

func (g *Geometry) Position(i int) mgl32.Vec3 {
	o := i * VertexStride
	return mgl32.Vec3{g.InterleavedData[o], g.InterleavedData[o+1], g.InterleavedData[o+2]}
}

// CalculateBoundingSphere sets the bounds from the vertex positions.
func (g *Geometry) CalculateBoundingSphere() {
	n := g.VertexCount()
	if n == 0 {
		g.BoundsCenter = mgl32.Vec3{}
		g.BoundsRadius = 0
		return
	}

	var center mgl32.Vec3
	for i := 0; i < n; i++ {
		center = center.Add(g.Position(i))
	}
	center = center.Mul(1.0 / float32(n))

	var maxDistanceSq float32
	for i := 0; i < n; i++ {
		if d := g.Position(i).Sub(center).LenSqr(); d > maxDistanceSq {
			maxDistanceSq = d
		}
	}

	g.BoundsCenter = center
	g.BoundsRadius = float32(math.Sqrt(float64(maxDistanceSq)))
}
