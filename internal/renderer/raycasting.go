package renderer

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Ray represents a ray in 3D space
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// RayIntersectSphere tests if a ray intersects a sphere
// Returns: (intersected, distance, intersection point)
func RayIntersectSphere(ray Ray, sphereCenter mgl32.Vec3, radius float32) (bool, float32, mgl32.Vec3) {
	oc := ray.Origin.Sub(sphereCenter)

	a := ray.Direction.Dot(ray.Direction)
	b := 2.0 * oc.Dot(ray.Direction)
	c := oc.Dot(oc) - radius*radius

	discriminant := b*b - 4*a*c
	if discriminant < 0 {
		return false, 0, mgl32.Vec3{}
	}

	sqrtDisc := float32(math.Sqrt(float64(discriminant)))
	t1 := (-b - sqrtDisc) / (2 * a)
	t2 := (-b + sqrtDisc) / (2 * a)

	// Closest intersection in front of the origin
	var t float32
	switch {
	case t1 > 0 && t2 > 0:
		t = float32(math.Min(float64(t1), float64(t2)))
	case t1 > 0:
		t = t1
	case t2 > 0:
		t = t2
	default:
		return false, 0, mgl32.Vec3{}
	}

	return true, t, ray.Origin.Add(ray.Direction.Mul(t))
}

// BoundsFunc resolves the local bounding sphere of a node's geometry.
type BoundsFunc func(n *Node) (center mgl32.Vec3, radius float32, ok bool)

// RayIntersectNode tests ray against the bounding spheres of every node in
// the subtree and returns the nearest hit.
func RayIntersectNode(ray Ray, root *Node, bounds BoundsFunc) (*Node, float32, bool) {
	var best *Node
	bestDist := float32(math.MaxFloat32)

	root.Walk(func(n *Node) bool {
		if !n.Visible {
			return false
		}
		center, radius, ok := bounds(n)
		if !ok {
			return true
		}
		world := n.WorldMatrix()
		c := world.Mul4x1(center.Vec4(1)).Vec3()
		s := maxScale(world)
		if hit, d, _ := RayIntersectSphere(ray, c, radius*s); hit && d < bestDist {
			best, bestDist = n, d
		}
		return true
	})
	return best, bestDist, best != nil
}

func maxScale(m mgl32.Mat4) float32 {
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	return float32(math.Max(float64(sx), math.Max(float64(sy), float64(sz))))
}

// ScreenToRay converts a screen position to a world space ray
func ScreenToRay(camera *Camera, screenX, screenY float32, windowWidth, windowHeight int) Ray {
	ndcX := 2.0*screenX/float32(windowWidth) - 1.0
	ndcY := 1.0 - 2.0*screenY/float32(windowHeight)

	clipCoords := mgl32.Vec4{ndcX, ndcY, -1.0, 1.0}

	eyeCoords := camera.Projection.Inv().Mul4x1(clipCoords)
	eyeCoords = mgl32.Vec4{eyeCoords.X(), eyeCoords.Y(), -1.0, 0.0}

	worldDir := camera.GetViewMatrix().Inv().Mul4x1(eyeCoords).Vec3().Normalize()

	return Ray{
		Origin:    camera.Position,
		Direction: worldDir,
	}
}
