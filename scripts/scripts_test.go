package scripts

import (
	"testing"

	"GopherScene/internal/behaviour"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawn(t *testing.T, name string) (*behaviour.ComponentManager, *behaviour.GameObject, behaviour.Component) {
	t.Helper()
	sc, err := behaviour.NewScript(name)
	require.NoError(t, err)
	obj := behaviour.NewGameObject(name)
	obj.AddComponent(sc)
	cm := behaviour.NewComponentManager()
	cm.RegisterGameObject(obj)
	return cm, obj, sc.Script
}

func TestScriptsRegistered(t *testing.T) {
	names := behaviour.GetAvailableScripts()
	for _, want := range []string{"BounceScript", "ContactScript", "OrbitScript", "RotateScript"} {
		assert.Contains(t, names, want)
	}
}

func TestRotateScriptUsesDeltaTime(t *testing.T) {
	cm, obj, script := spawn(t, "RotateScript")
	require.NoError(t, behaviour.SetAttribute(script, "speed", 90))

	cm.UpdateAll(1)

	want := mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0})
	assert.True(t, obj.Transform.Rotation.ApproxEqualThreshold(want, 1e-5))
}

func TestBounceScriptStartsFromCurrentHeight(t *testing.T) {
	sc, err := behaviour.NewScript("BounceScript")
	require.NoError(t, err)
	obj := behaviour.NewGameObject("ball")
	obj.Transform.SetPosition(mgl32.Vec3{0, 3, 0})
	obj.AddComponent(sc)
	cm := behaviour.NewComponentManager()
	cm.RegisterGameObject(obj)

	cm.UpdateAll(0)
	assert.InDelta(t, 3.0, obj.Transform.Position.Y(), 1e-6)
}

func TestOrbitScriptCirclesCenter(t *testing.T) {
	cm, obj, script := spawn(t, "OrbitScript")
	require.NoError(t, behaviour.SetAttribute(script, "center", mgl32.Vec3{1, 0, 1}))
	require.NoError(t, behaviour.SetAttribute(script, "radius", 2))

	cm.UpdateAll(0)

	assert.InDelta(t, 3.0, obj.Transform.Position.X(), 1e-5)
	assert.InDelta(t, 1.0, obj.Transform.Position.Z(), 1e-5)
}

func TestContactScriptStopsListeningWhenDestroyed(t *testing.T) {
	cm, obj, script := spawn(t, "ContactScript")
	other := behaviour.NewGameObject("other")

	obj.Contacts.Invoke(other)
	cm.UnregisterGameObject(obj)
	obj.Contacts.Invoke(other)

	assert.Equal(t, 1, script.(*ContactScript).Hits)
	assert.Zero(t, obj.Contacts.GetListenerCount())
}
