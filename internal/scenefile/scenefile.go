// Package scenefile reads scene documents and turns them into entities.
package scenefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"GopherScene/internal/behaviour"
	"GopherScene/internal/engine"
	"GopherScene/internal/logger"
	"GopherScene/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var ErrUnknownComponent = errors.New("unknown component")

// Document is the on-disk scene format.
type Document struct {
	GameObjects []GameObject `json:"game_objects" yaml:"game_objects" toml:"game_objects"`
}

type GameObject struct {
	Name       string       `json:"name" yaml:"name" toml:"name"`
	Tag        string       `json:"tag,omitempty" yaml:"tag,omitempty" toml:"tag,omitempty"`
	Active     *bool        `json:"active,omitempty" yaml:"active,omitempty" toml:"active,omitempty"`
	Position   [3]float32   `json:"position" yaml:"position" toml:"position"`
	Rotation   [3]float32   `json:"rotation" yaml:"rotation" toml:"rotation"` // euler degrees, XYZ
	Scale      [3]float32   `json:"scale" yaml:"scale" toml:"scale"`
	Model      string       `json:"model,omitempty" yaml:"model,omitempty" toml:"model,omitempty"`
	Body       *Body        `json:"body,omitempty" yaml:"body,omitempty" toml:"body,omitempty"`
	Components []Component  `json:"components,omitempty" yaml:"components,omitempty" toml:"components,omitempty"`
	Children   []GameObject `json:"children,omitempty" yaml:"children,omitempty" toml:"children,omitempty"`
}

type Body struct {
	Mass       float32    `json:"mass" yaml:"mass" toml:"mass"`
	Radius     float32    `json:"radius" yaml:"radius" toml:"radius"`
	Bounciness float32    `json:"bounciness" yaml:"bounciness" toml:"bounciness"`
	Velocity   [3]float32 `json:"velocity" yaml:"velocity" toml:"velocity"`
	Kinematic  bool       `json:"kinematic" yaml:"kinematic" toml:"kinematic"`
	NoGravity  bool       `json:"no_gravity" yaml:"no_gravity" toml:"no_gravity"`
}

// Component names a built-in component or a registered script. Properties
// are applied through the component's declared attributes.
type Component struct {
	Type       string         `json:"type" yaml:"type" toml:"type"`
	Category   string         `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty" toml:"properties,omitempty"`
}

// Load reads path, choosing the codec from its extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return doc, nil
}

// Decode parses data in the format named by ext (".json", ".yaml", ".yml"
// or ".toml").
func Decode(data []byte, ext string) (*Document, error) {
	var doc Document
	var err error
	switch strings.ToLower(ext) {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported scene extension %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Build creates the root entities of doc with their children linked. Bodies
// come from bodies, which may be nil if no entity declares one.
func (d *Document) Build(bodies physics.BodyFactory) ([]*behaviour.GameObject, error) {
	roots := make([]*behaviour.GameObject, 0, len(d.GameObjects))
	for i := range d.GameObjects {
		obj, err := build(&d.GameObjects[i], bodies)
		if err != nil {
			return nil, err
		}
		roots = append(roots, obj)
	}
	return roots, nil
}

func build(g *GameObject, bodies physics.BodyFactory) (*behaviour.GameObject, error) {
	obj := behaviour.NewGameObject(g.Name)
	obj.Tag = g.Tag
	if g.Active != nil {
		obj.Active = *g.Active
	}
	obj.Transform.SetPosition(mgl32.Vec3(g.Position))
	if g.Rotation != ([3]float32{}) {
		obj.Transform.SetRotation(mgl32.AnglesToQuat(
			mgl32.DegToRad(g.Rotation[0]),
			mgl32.DegToRad(g.Rotation[1]),
			mgl32.DegToRad(g.Rotation[2]),
			mgl32.XYZ))
	}
	if g.Scale != ([3]float32{}) {
		obj.Transform.SetScale(mgl32.Vec3(g.Scale))
	}

	if g.Body != nil {
		if bodies == nil {
			return nil, fmt.Errorf("entity %q declares a body but no body factory was given", g.Name)
		}
		obj.Body = bodies.NewBody(physics.BodyDesc{
			Velocity:   mgl32.Vec3(g.Body.Velocity),
			Mass:       g.Body.Mass,
			Radius:     g.Body.Radius,
			Bounciness: g.Body.Bounciness,
			Kinematic:  g.Body.Kinematic,
			NoGravity:  g.Body.NoGravity,
		})
	}

	if g.Model != "" {
		obj.AddComponent(behaviour.NewMeshComponent(g.Model))
	}
	for _, c := range g.Components {
		comp, err := newComponent(c)
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", g.Name, err)
		}
		obj.AddComponent(comp)
	}

	for i := range g.Children {
		child, err := build(&g.Children[i], bodies)
		if err != nil {
			return nil, err
		}
		if err := obj.AddChild(child); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func newComponent(c Component) (behaviour.Component, error) {
	var comp behaviour.Component
	if !strings.EqualFold(c.Category, string(behaviour.ComponentTypeScript)) {
		comp = behaviour.CreateBuiltInComponent(c.Type)
	}
	if comp == nil {
		script, err := behaviour.NewScript(c.Type)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrUnknownComponent, c.Type)
		}
		comp = script
	}

	keys := make([]string, 0, len(c.Properties))
	for k := range c.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := behaviour.SetAttribute(comp, k, c.Properties[k]); err != nil {
			return nil, err
		}
	}
	return comp, nil
}

// Spawn builds doc into rt's current scene and loads every declared model.
// Entities stay in the scene if a model fails to load.
func Spawn(ctx context.Context, rt *engine.Runtime, doc *Document) ([]*behaviour.GameObject, error) {
	roots, err := doc.Build(rt)
	if err != nil {
		return nil, err
	}
	if err := rt.AddEntities(roots...); err != nil {
		return nil, err
	}

	var errs []error
	for _, root := range roots {
		root.Walk(func(o *behaviour.GameObject) bool {
			if err := rt.AttachMeshes(ctx, o); err != nil {
				errs = append(errs, fmt.Errorf("entity %q: %w", o.Name, err))
			}
			return true
		})
	}
	logger.Log.Info("Scene spawned",
		zap.Int("roots", len(roots)),
		zap.Int("entities", len(rt.Entities())),
		zap.Int("failed", len(errs)))
	return roots, errors.Join(errs...)
}
