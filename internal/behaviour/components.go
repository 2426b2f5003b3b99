package behaviour

import (
	"GopherScene/internal/resource"

	"github.com/go-gl/mathgl/mgl32"
)

// ComponentType defines the category of a component
type ComponentType string

const (
	ComponentTypeMesh      ComponentType = "Mesh"
	ComponentTypeScript    ComponentType = "Script"
	ComponentTypeBehaviour ComponentType = "Behaviour"
	ComponentTypeRenderer  ComponentType = "Renderer"
	ComponentTypeCollider  ComponentType = "Collider"
	ComponentTypeLight     ComponentType = "Light"
	ComponentTypeCamera    ComponentType = "Camera"
	ComponentTypeCustom    ComponentType = "Custom"
)

// TypedComponent extends Component with type information
type TypedComponent interface {
	Component
	GetComponentType() ComponentType
	GetTypeName() string
}

// MeshComponent names the model an object renders. The runtime loads it
// when the object enters the scene and releases it on removal.
type MeshComponent struct {
	BaseComponent
	ModelURL    string `json:"model_url"`
	CastShadows bool   `json:"cast_shadows"`

	// Runtime reference, set while the model is attached
	Model resource.Handle `json:"-"`
}

func NewMeshComponent(url string) *MeshComponent {
	return &MeshComponent{
		ModelURL:    url,
		CastShadows: true,
	}
}

func (m *MeshComponent) GetComponentType() ComponentType {
	return ComponentTypeMesh
}

func (m *MeshComponent) GetTypeName() string {
	return "MeshComponent"
}

func (m *MeshComponent) Loaded() bool {
	return !m.Model.IsZero()
}

func (m *MeshComponent) Attributes() []Attribute {
	return []Attribute{
		StringAttr("model_url", &m.ModelURL),
		BoolAttr("cast_shadows", &m.CastShadows),
	}
}

// LightComponent holds light data
type LightComponent struct {
	BaseComponent
	LightMode       string // "directional", "point", "spot"
	Color           [3]float32
	Intensity       float32
	Range           float32
	AmbientStrength float32
	Direction       mgl32.Vec3
}

func NewLightComponent() *LightComponent {
	return &LightComponent{
		LightMode:       "point",
		Color:           [3]float32{1.0, 1.0, 1.0},
		Intensity:       1.0,
		Range:           100.0,
		AmbientStrength: 0.1,
		Direction:       mgl32.Vec3{0, -1, 0},
	}
}

func (l *LightComponent) GetComponentType() ComponentType {
	return ComponentTypeLight
}

func (l *LightComponent) GetTypeName() string {
	return "LightComponent"
}

func (l *LightComponent) Attributes() []Attribute {
	return []Attribute{
		StringAttr("mode", &l.LightMode),
		ColorAttr("color", &l.Color),
		FloatAttr("intensity", &l.Intensity),
		FloatAttr("range", &l.Range),
		FloatAttr("ambient", &l.AmbientStrength),
		Vec3Attr("direction", &l.Direction),
	}
}

// CameraComponent holds camera data. With a Target it follows that object
// after physics has moved it.
type CameraComponent struct {
	BaseComponent
	FOV    float32
	Near   float32
	Far    float32
	IsMain bool // Is this the main game camera?

	// Target is followed, not owned.
	Target *GameObject
	Offset mgl32.Vec3
}

func NewCameraComponent() *CameraComponent {
	return &CameraComponent{
		FOV:    45.0,
		Near:   0.1,
		Far:    10000.0,
		IsMain: false,
		Offset: mgl32.Vec3{0, 2, 10},
	}
}

func (c *CameraComponent) GetComponentType() ComponentType {
	return ComponentTypeCamera
}

func (c *CameraComponent) GetTypeName() string {
	return "CameraComponent"
}

func (c *CameraComponent) LateUpdate(dt float32) {
	obj := c.GetGameObject()
	if obj == nil || c.Target == nil || !c.Target.InScene() {
		return
	}
	obj.Transform.Position = c.Target.Transform.Position.Add(c.Offset)
}

func (c *CameraComponent) Attributes() []Attribute {
	return []Attribute{
		FloatAttr("fov", &c.FOV),
		FloatAttr("near", &c.Near),
		FloatAttr("far", &c.Far),
		BoolAttr("main", &c.IsMain),
		Vec3Attr("offset", &c.Offset),
	}
}

// ScriptComponent is a wrapper for user scripts to identify them as scripts
type ScriptComponent struct {
	BaseComponent
	ScriptName string
	Script     Component // The actual script implementation
}

func NewScriptComponent(scriptName string, script Component) *ScriptComponent {
	return &ScriptComponent{
		ScriptName: scriptName,
		Script:     script,
	}
}

func (s *ScriptComponent) GetComponentType() ComponentType {
	return ComponentTypeScript
}

func (s *ScriptComponent) GetTypeName() string {
	return s.ScriptName
}

func (s *ScriptComponent) Start() {
	if s.Script != nil {
		s.Script.SetGameObject(s.GetGameObject())
		s.Script.SetEnabled(true)
		s.Script.Start()
	}
}

func (s *ScriptComponent) Update(dt float32) {
	if s.Script != nil && s.Script.GetEnabled() {
		s.Script.Update(dt)
	}
}

func (s *ScriptComponent) LateUpdate(dt float32) {
	if s.Script != nil && s.Script.GetEnabled() {
		s.Script.LateUpdate(dt)
	}
}

// OnDestroy forwards to the script and releases what it tracked.
func (s *ScriptComponent) OnDestroy() {
	if s.Script == nil {
		return
	}
	s.Script.OnDestroy()
	if t, ok := s.Script.(tracker); ok {
		t.releaseTracked()
	}
}

func (s *ScriptComponent) Attributes() []Attribute {
	return DescribeAttributes(s.Script)
}

// Helper function to get component type name
func GetComponentTypeName(comp Component) string {
	if typed, ok := comp.(TypedComponent); ok {
		return typed.GetTypeName()
	}
	return "Unknown"
}

// Helper function to get component category
func GetComponentCategory(comp Component) ComponentType {
	if typed, ok := comp.(TypedComponent); ok {
		return typed.GetComponentType()
	}
	return ComponentTypeCustom
}

// BuiltInComponents returns a list of built-in component types that can be added
func BuiltInComponents() []string {
	return []string{
		"MeshComponent",
		"LightComponent",
		"CameraComponent",
	}
}

// CreateBuiltInComponent creates a built-in component by name
func CreateBuiltInComponent(name string) Component {
	switch name {
	case "MeshComponent":
		return NewMeshComponent("")
	case "LightComponent":
		return NewLightComponent()
	case "CameraComponent":
		return NewCameraComponent()
	default:
		return nil
	}
}
