package behaviour

import (
	"GopherScene/internal/logger"

	"go.uber.org/zap"
)

// ComponentManager is the authoritative list of game objects in a scene and
// drives their component lifecycles.
type ComponentManager struct {
	gameObjects []*GameObject
	byID        map[uint64]*GameObject
}

func NewComponentManager() *ComponentManager {
	return &ComponentManager{
		gameObjects: make([]*GameObject, 0),
		byID:        make(map[uint64]*GameObject),
	}
}

// RegisterGameObject adds obj to the scene and starts its components.
// It returns false if obj is already registered.
func (cm *ComponentManager) RegisterGameObject(obj *GameObject) bool {
	if obj == nil {
		return false
	}
	if _, ok := cm.byID[obj.ID]; ok {
		return false
	}
	cm.gameObjects = append(cm.gameObjects, obj)
	cm.byID[obj.ID] = obj
	obj.renewLifecycle()
	obj.inScene = true
	obj.startComponents()
	logger.Log.Debug("GameObject registered",
		zap.Uint64("id", obj.ID),
		zap.String("name", obj.Name),
		zap.Int("components", len(obj.slots)))
	return true
}

// UnregisterGameObject removes obj from the scene and destroys its
// components. Children are not touched.
func (cm *ComponentManager) UnregisterGameObject(obj *GameObject) bool {
	if obj == nil {
		return false
	}
	if _, ok := cm.byID[obj.ID]; !ok {
		return false
	}
	for i, o := range cm.gameObjects {
		if o == obj {
			cm.gameObjects = append(cm.gameObjects[:i], cm.gameObjects[i+1:]...)
			break
		}
	}
	delete(cm.byID, obj.ID)
	obj.inScene = false
	destroyed := obj.destroyComponents()
	logger.Log.Debug("GameObject unregistered",
		zap.Uint64("id", obj.ID),
		zap.String("name", obj.Name),
		zap.Int("destroyed", destroyed))
	return true
}

func (cm *ComponentManager) Contains(obj *GameObject) bool {
	if obj == nil {
		return false
	}
	return cm.byID[obj.ID] == obj
}

// Lookup resolves a game object id to the registered object.
func (cm *ComponentManager) Lookup(id uint64) (*GameObject, bool) {
	obj, ok := cm.byID[id]
	return obj, ok
}

// Parent resolves obj's parent if it is registered.
func (cm *ComponentManager) Parent(obj *GameObject) *GameObject {
	if obj == nil || obj.parentID == 0 {
		return nil
	}
	return cm.byID[obj.parentID]
}

// FindGameObject finds a GameObject by name
func (cm *ComponentManager) FindGameObject(name string) *GameObject {
	for _, obj := range cm.gameObjects {
		if obj.Name == name {
			return obj
		}
	}
	return nil
}

// FindGameObjectsWithTag finds all GameObjects with a specific tag
func (cm *ComponentManager) FindGameObjectsWithTag(tag string) []*GameObject {
	var result []*GameObject
	for _, obj := range cm.gameObjects {
		if obj.Tag == tag {
			result = append(result, obj)
		}
	}
	return result
}

// UpdateAll calls Update on all active GameObjects. Objects removed during
// the pass are skipped.
func (cm *ComponentManager) UpdateAll(dt float32) {
	for _, obj := range cm.GetAllGameObjects() {
		if obj.inScene {
			obj.updateComponents(dt)
		}
	}
}

// LateUpdateAll runs after physics.
func (cm *ComponentManager) LateUpdateAll(dt float32) {
	for _, obj := range cm.GetAllGameObjects() {
		if obj.inScene {
			obj.lateUpdateComponents(dt)
		}
	}
}

// GetAllGameObjects returns a copy of the registered GameObjects in
// registration order.
func (cm *ComponentManager) GetAllGameObjects() []*GameObject {
	return append([]*GameObject(nil), cm.gameObjects...)
}

func (cm *ComponentManager) Len() int {
	return len(cm.gameObjects)
}

// Clear unregisters every GameObject, most recently registered first.
func (cm *ComponentManager) Clear() {
	for i := len(cm.gameObjects) - 1; i >= 0; i-- {
		cm.UnregisterGameObject(cm.gameObjects[i])
	}
}
