package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dropScene = `
game_objects:
  - name: floor
    tag: ground
    components:
      - type: LightComponent
        properties:
          intensity: 2
  - name: ball
    position: [0, 10, 0]
    body:
      mass: 1
    children:
      - name: marker
        model: tri.obj
`

func writeScene(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.obj"), []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), 0o644))
	path := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(dropScene), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestKinds(t *testing.T) {
	out := run(t, "kinds")
	assert.Contains(t, out, "obj")
	assert.Contains(t, out, "png")
}

func TestInspect(t *testing.T) {
	out := run(t, "inspect", writeScene(t))
	assert.Contains(t, out, "floor #")
	assert.Contains(t, out, "[ground]")
	assert.Contains(t, out, "intensity=2")
	assert.Contains(t, out, "  marker #")
	assert.Contains(t, out, "model_url=tri.obj")
	assert.Contains(t, out, "tri.obj")
	assert.Contains(t, out, "live 1")
}

func TestSimulate(t *testing.T) {
	out := run(t, "simulate", writeScene(t), "--frames", "30", "--dt", "0.0333")
	assert.Contains(t, out, "ball")
	assert.Contains(t, out, "frames")
	assert.NotContains(t, out, "10.000", "the ball fell")
}

func TestSimulateRejectsBadStep(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"simulate", writeScene(t), "--dt", "0"})
	assert.Error(t, cmd.Execute())
}

func TestMissingScene(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"inspect", filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, cmd.Execute())
}
