package scenefile

import (
	"context"
	"testing"
	"testing/fstest"

	"GopherScene/internal/assets"
	"GopherScene/internal/behaviour"
	"GopherScene/internal/config"
	"GopherScene/internal/engine"
	"GopherScene/internal/loader"
	"GopherScene/internal/renderer"
	"GopherScene/scripts"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yardYAML = `
game_objects:
  - name: yard
    tag: ground
    scale: [2, 2, 2]
    components:
      - type: LightComponent
        properties:
          mode: directional
          color: [1, 0.5, 0.25]
          intensity: 3
    children:
      - name: spinner
        position: [0, 1, 0]
        rotation: [0, 90, 0]
        components:
          - type: RotateScript
            category: script
            properties:
              speed: 45
              axis: [0, 0, 1]
      - name: ball
        position: [0, 5, 0]
        body:
          mass: 2
          radius: 0.25
`

func newRuntime(t *testing.T, fs fstest.MapFS) *engine.Runtime {
	t.Helper()
	lib := assets.New(renderer.NewHeadlessDevice(), loader.FSFetcher{FS: fs})
	t.Cleanup(lib.Close)
	rt := engine.New(config.Default(), lib)
	rt.NewScene()
	return rt
}

func TestBuildYAML(t *testing.T) {
	doc, err := Decode([]byte(yardYAML), ".yaml")
	require.NoError(t, err)
	rt := newRuntime(t, fstest.MapFS{})

	roots, err := doc.Build(rt)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	yard := roots[0]
	assert.Equal(t, "ground", yard.Tag)
	assert.Equal(t, mgl32.Vec3{2, 2, 2}, yard.Transform.Scale)

	light := behaviour.GetComponent[*behaviour.LightComponent](yard)
	require.NotNil(t, light)
	assert.Equal(t, "directional", light.LightMode)
	assert.Equal(t, [3]float32{1, 0.5, 0.25}, light.Color)
	assert.Equal(t, float32(3), light.Intensity)

	children := yard.Children()
	require.Len(t, children, 2)
	spinner := behaviour.GetComponent[*behaviour.ScriptComponent](children[0])
	require.NotNil(t, spinner)
	rot, ok := spinner.Script.(*scripts.RotateScript)
	require.True(t, ok)
	assert.Equal(t, float32(45), rot.Speed)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, rot.Axis)
	assert.NotEqual(t, mgl32.QuatIdent(), children[0].Transform.Rotation)

	ball := children[1]
	require.NotNil(t, ball.Body)
	assert.Equal(t, float32(2), ball.Body.Mass)
	assert.Equal(t, float32(0.25), ball.Body.Radius)
}

func TestDecodeTOMLAndJSON(t *testing.T) {
	doc, err := Decode([]byte("[[game_objects]]\nname = \"a\"\nposition = [1.0, 2.0, 3.0]\n"), ".toml")
	require.NoError(t, err)
	require.Len(t, doc.GameObjects, 1)
	assert.Equal(t, [3]float32{1, 2, 3}, doc.GameObjects[0].Position)

	doc, err = Decode([]byte(`{"game_objects":[{"name":"b","active":false}]}`), ".json")
	require.NoError(t, err)
	roots, err := doc.Build(nil)
	require.NoError(t, err)
	assert.False(t, roots[0].Active)

	_, err = Decode(nil, ".xml")
	assert.Error(t, err)
}

func TestBuildErrors(t *testing.T) {
	doc := &Document{GameObjects: []GameObject{{Name: "x", Components: []Component{{Type: "NoSuchThing"}}}}}
	_, err := doc.Build(nil)
	assert.ErrorIs(t, err, ErrUnknownComponent)

	doc = &Document{GameObjects: []GameObject{{Name: "x", Components: []Component{{
		Type:       "LightComponent",
		Properties: map[string]any{"intensity": "bright"},
	}}}}}
	_, err = doc.Build(nil)
	assert.ErrorIs(t, err, behaviour.ErrTypeMismatch)

	doc = &Document{GameObjects: []GameObject{{Name: "x", Body: &Body{Mass: 1}}}}
	_, err = doc.Build(nil)
	assert.Error(t, err)
}

func TestSpawnLoadsModels(t *testing.T) {
	fs := fstest.MapFS{
		"tri.obj": {Data: []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")},
	}
	rt := newRuntime(t, fs)
	doc := &Document{GameObjects: []GameObject{{
		Name:     "root",
		Children: []GameObject{{Name: "tri", Model: "tri.obj"}, {Name: "missing", Model: "nope.obj"}},
	}}}

	roots, err := Spawn(context.Background(), rt, doc)
	assert.Error(t, err, "missing model is reported")
	require.Len(t, roots, 1)
	assert.Len(t, rt.Entities(), 3)

	tri, err := rt.FindEntityByName("tri")
	require.NoError(t, err)
	mesh := behaviour.GetComponent[*behaviour.MeshComponent](tri)
	require.NotNil(t, mesh)
	assert.True(t, mesh.Loaded())
	assert.Len(t, tri.Node.Children(), 1)
}
