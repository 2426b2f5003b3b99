package behaviour

import (
	"testing"
)

func TestComponentManagerRegister(t *testing.T) {
	cm := NewComponentManager()
	obj := NewGameObject("Test")

	cm.RegisterGameObject(obj)

	all := cm.GetAllGameObjects()
	if len(all) != 1 {
		t.Errorf("Expected 1 registered object, got %d", len(all))
	}
}

func TestComponentManagerUnregister(t *testing.T) {
	cm := NewComponentManager()
	obj := NewGameObject("Test")

	cm.RegisterGameObject(obj)
	cm.UnregisterGameObject(obj)

	all := cm.GetAllGameObjects()
	if len(all) != 0 {
		t.Errorf("Expected 0 objects after unregister, got %d", len(all))
	}
}

func TestComponentManagerUpdateAll(t *testing.T) {
	cm := NewComponentManager()
	obj := NewGameObject("Test")
	comp := &MockComponent{}
	obj.AddComponent(comp)
	cm.RegisterGameObject(obj)

	cm.UpdateAll(0.016)

	if !comp.updateCalled {
		t.Error("Update() was not called on component")
	}
}

func TestComponentManagerLateUpdateAll(t *testing.T) {
	cm := NewComponentManager()
	obj := NewGameObject("Test")
	comp := &MockComponent{}
	obj.AddComponent(comp)
	cm.RegisterGameObject(obj)

	cm.LateUpdateAll(0.016)

	if !comp.lateCalled {
		t.Error("LateUpdate() was not called on component")
	}
}

func TestComponentManagerRegisterTwice(t *testing.T) {
	cm := NewComponentManager()
	obj := NewGameObject("Test")
	comp := &MockComponent{}
	obj.AddComponent(comp)

	if !cm.RegisterGameObject(obj) {
		t.Error("First registration should succeed")
	}
	if cm.RegisterGameObject(obj) {
		t.Error("Second registration should be rejected")
	}
	if comp.startCount != 1 {
		t.Errorf("Expected Start once, got %d", comp.startCount)
	}
}

func TestComponentManagerLookupAndParent(t *testing.T) {
	cm := NewComponentManager()
	parent := NewGameObject("Parent")
	child := NewGameObject("Child")
	if err := parent.AddChild(child); err != nil {
		t.Fatal(err)
	}
	cm.RegisterGameObject(parent)
	cm.RegisterGameObject(child)

	if got, ok := cm.Lookup(child.ID); !ok || got != child {
		t.Error("Lookup should resolve the child by id")
	}
	if cm.Parent(child) != parent {
		t.Error("Parent should resolve through the manager")
	}
	cm.UnregisterGameObject(parent)
	if cm.Parent(child) != nil {
		t.Error("Parent should not resolve once unregistered")
	}
}

func TestComponentManagerInactiveObject(t *testing.T) {
	cm := NewComponentManager()
	obj := NewGameObject("Test")
	obj.Active = false
	comp := &MockComponent{}
	obj.AddComponent(comp)
	cm.RegisterGameObject(obj)

	cm.UpdateAll(0.016)

	if comp.updateCalled {
		t.Error("Update() should not be called on inactive object")
	}
}

func TestComponentManagerFindGameObject(t *testing.T) {
	cm := NewComponentManager()
	obj := NewGameObject("FindMe")
	cm.RegisterGameObject(obj)

	found := cm.FindGameObject("FindMe")

	if found == nil {
		t.Error("FindGameObject should find registered object")
	}
	if found != obj {
		t.Error("FindGameObject returned wrong object")
	}
}

func TestComponentManagerFindGameObjectNotFound(t *testing.T) {
	cm := NewComponentManager()

	found := cm.FindGameObject("NotHere")

	if found != nil {
		t.Error("FindGameObject should return nil for non-existent object")
	}
}

func TestComponentManagerClear(t *testing.T) {
	cm := NewComponentManager()
	cm.RegisterGameObject(NewGameObject("A"))
	cm.RegisterGameObject(NewGameObject("B"))

	a := cm.FindGameObject("A")
	comp := &MockComponent{}
	a.AddComponent(comp)

	cm.Clear()

	all := cm.GetAllGameObjects()
	if len(all) != 0 {
		t.Errorf("Clear should remove all objects, got %d", len(all))
	}
	if comp.destroyCount != 1 {
		t.Errorf("Expected OnDestroy once, got %d", comp.destroyCount)
	}
}
