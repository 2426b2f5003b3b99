package behaviour

import (
	"fmt"
	"sort"
)

type ScriptConstructor func() Component

var scriptRegistry = make(map[string]ScriptConstructor)

func RegisterScript(name string, constructor ScriptConstructor) {
	scriptRegistry[name] = constructor
}

func GetAvailableScripts() []string {
	names := make([]string, 0, len(scriptRegistry))
	for name := range scriptRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func CreateScript(name string) Component {
	if constructor, exists := scriptRegistry[name]; exists {
		return constructor()
	}
	return nil
}

// NewScript builds a registered script wrapped in a ScriptComponent.
func NewScript(name string) (*ScriptComponent, error) {
	script := CreateScript(name)
	if script == nil {
		return nil, fmt.Errorf("script %q: %w", name, ErrScriptNotFound)
	}
	return NewScriptComponent(name, script), nil
}

var ErrScriptNotFound = fmt.Errorf("script not registered")
