package renderer

import (
	"GopherScene/internal/resource"

	"github.com/go-gl/mathgl/mgl32"
)

// Node is an element of the render tree. Geometry and Material point into the
// caches and are kept alive by whoever holds the counted references in Refs;
// Mesh is owned by this node alone.
type Node struct {
	Name     string
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	Visible  bool

	Geometry resource.Handle
	Material resource.Handle
	Mesh     *Geometry

	// Refs are the counted cache references released when the node is disposed.
	Refs []resource.Ref

	parent   *Node
	children []*Node
}

func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
		Visible:  true,
	}
}

func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Add attaches child under n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	child.Detach()
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child if it is a direct child of n.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return true
		}
	}
	return false
}

// Detach removes n from its parent. It is a no-op for roots.
func (n *Node) Detach() {
	if n.parent != nil {
		n.parent.Remove(n)
	}
}

// Walk visits n and its descendants depth-first, parent before children.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}

// Contains reports whether other is n or one of its descendants.
func (n *Node) Contains(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// Clone copies the subtree. Cache handles are shared; counted references and
// owned meshes are not, so the copy holds nothing until its owner acquires.
func (n *Node) Clone() *Node {
	cp := &Node{
		Name:     n.Name,
		Position: n.Position,
		Rotation: n.Rotation,
		Scale:    n.Scale,
		Visible:  n.Visible,
		Geometry: n.Geometry,
		Material: n.Material,
	}
	for _, c := range n.children {
		cc := c.Clone()
		cc.parent = cp
		cp.children = append(cp.children, cc)
	}
	return cp
}

func (n *Node) SetTransform(pos mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3) {
	n.Position = pos
	n.Rotation = rot
	n.Scale = scale
}

// LocalMatrix is translation * rotation * scale.
func (n *Node) LocalMatrix() mgl32.Mat4 {
	return mgl32.Translate3D(n.Position[0], n.Position[1], n.Position[2]).
		Mul4(n.Rotation.Mat4()).
		Mul4(mgl32.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2]))
}

func (n *Node) WorldMatrix() mgl32.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalMatrix().Mul4(m)
	}
	return m
}

func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.WorldMatrix().Col(3).Vec3()
}

// Dispose tears down the subtree rooted at n: every counted reference is
// handed to release, every owned mesh is deleted from dev, and n is detached
// from its parent last. Missing fields are skipped so a partially torn down
// tree can be disposed again.
func (n *Node) Dispose(dev Device, release func(resource.Ref)) {
	if n == nil {
		return
	}
	n.Walk(func(c *Node) bool {
		if release != nil {
			for _, ref := range c.Refs {
				release(ref)
			}
		}
		c.Refs = nil
		if c.Mesh != nil && c.Mesh.GPU != 0 && dev != nil {
			dev.DeleteGeometry(c.Mesh.GPU)
			c.Mesh.GPU = 0
		}
		return true
	})
	n.Detach()
}
