package behaviour

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNewGameObject(t *testing.T) {
	obj := NewGameObject("TestObject")

	if obj == nil {
		t.Fatal("NewGameObject returned nil")
	}

	if obj.Name != "TestObject" {
		t.Errorf("Expected name 'TestObject', got '%s'", obj.Name)
	}

	if !obj.Active {
		t.Error("New GameObject should be active by default")
	}

	if obj.Transform == nil {
		t.Fatal("Transform should not be nil")
	}

	if obj.Transform.Position != (mgl32.Vec3{0, 0, 0}) {
		t.Errorf("Expected position (0,0,0), got %v", obj.Transform.Position)
	}

	if obj.Transform.Scale != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("Expected scale (1,1,1), got %v", obj.Transform.Scale)
	}
}

func TestTransformSetPosition(t *testing.T) {
	transform := &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Scale:    mgl32.Vec3{1, 1, 1},
	}

	transform.SetPosition(mgl32.Vec3{10, 20, 30})

	if transform.Position != (mgl32.Vec3{10, 20, 30}) {
		t.Errorf("Expected position (10,20,30), got %v", transform.Position)
	}
}

func TestTransformTranslate(t *testing.T) {
	transform := &Transform{
		Position: mgl32.Vec3{5, 5, 5},
		Scale:    mgl32.Vec3{1, 1, 1},
	}

	transform.Translate(mgl32.Vec3{1, 2, 3})

	expected := mgl32.Vec3{6, 7, 8}
	if transform.Position != expected {
		t.Errorf("Expected position %v, got %v", expected, transform.Position)
	}
}

func TestTransformSetScale(t *testing.T) {
	transform := &Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Scale:    mgl32.Vec3{1, 1, 1},
	}

	transform.SetScale(mgl32.Vec3{2, 3, 4})

	if transform.Scale != (mgl32.Vec3{2, 3, 4}) {
		t.Errorf("Expected scale (2,3,4), got %v", transform.Scale)
	}
}

type MockComponent struct {
	BaseComponent
	startCalled  bool
	updateCalled bool
	lateCalled   bool
	startCount   int
	destroyCount int
}

func (m *MockComponent) Start() {
	m.startCalled = true
	m.startCount++
}

func (m *MockComponent) Update(dt float32) {
	m.updateCalled = true
}

func (m *MockComponent) LateUpdate(dt float32) {
	m.lateCalled = true
}

func (m *MockComponent) OnDestroy() {
	m.destroyCount++
}

func TestGameObjectAddComponent(t *testing.T) {
	obj := NewGameObject("Test")
	comp := &MockComponent{}

	obj.AddComponent(comp)
	obj.AddComponent(comp)

	if len(obj.Components()) != 1 {
		t.Errorf("Expected 1 component, got %d", len(obj.Components()))
	}

	if comp.GetGameObject() != obj {
		t.Error("Component's GameObject reference not set correctly")
	}

	if comp.startCalled {
		t.Error("Component should not start before the object is in a scene")
	}
}

func TestGameObjectRemoveComponent(t *testing.T) {
	obj := NewGameObject("Test")
	comp := &MockComponent{}

	obj.AddComponent(comp)
	if !obj.RemoveComponent(comp) {
		t.Error("RemoveComponent should report the component was attached")
	}

	if len(obj.Components()) != 0 {
		t.Errorf("Expected 0 components after removal, got %d", len(obj.Components()))
	}
	if comp.destroyCount != 1 {
		t.Errorf("Expected OnDestroy once, got %d", comp.destroyCount)
	}
	if obj.RemoveComponent(comp) {
		t.Error("Removing twice should report false")
	}
}

func TestGetComponentGeneric(t *testing.T) {
	obj := NewGameObject("Test")
	light := NewLightComponent()
	obj.AddComponent(&MockComponent{})
	obj.AddComponent(light)

	if got := GetComponent[*LightComponent](obj); got != light {
		t.Errorf("Expected light component, got %v", got)
	}
	if got := GetComponent[*CameraComponent](obj); got != nil {
		t.Errorf("Expected nil camera, got %v", got)
	}
	if got := GetComponents[*MockComponent](obj); len(got) != 1 {
		t.Errorf("Expected 1 mock component, got %d", len(got))
	}
}

func TestAddChildRejectsCycles(t *testing.T) {
	root := NewGameObject("Root")
	child := NewGameObject("Child")
	grandchild := NewGameObject("Grandchild")

	if err := root.AddChild(child); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	if err := child.AddChild(grandchild); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}

	if child.ParentID() != root.ID {
		t.Errorf("Expected parent id %d, got %d", root.ID, child.ParentID())
	}
	if err := root.AddChild(grandchild); err != ErrHasParent {
		t.Errorf("Expected ErrHasParent, got %v", err)
	}
	if err := grandchild.AddChild(root); err != ErrCycle {
		t.Errorf("Expected ErrCycle, got %v", err)
	}
	if !root.IsAncestorOf(grandchild) {
		t.Error("Root should be an ancestor of grandchild")
	}

	var visited []string
	root.Walk(func(o *GameObject) bool {
		visited = append(visited, o.Name)
		return true
	})
	if len(visited) != 3 || visited[0] != "Root" || visited[2] != "Grandchild" {
		t.Errorf("Unexpected walk order %v", visited)
	}

	if !root.RemoveChild(child) || child.ParentID() != 0 {
		t.Error("RemoveChild should detach the child")
	}
}
