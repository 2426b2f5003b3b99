package loader

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cubeOBJ = `# two quads, two materials
mtllib crate.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0 0 1
v 1 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl wood
f 1/1/1 2/2/1 3/3/1 4/4/1
usemtl metal
f 1 2 6 5
`

const crateMTL = `newmtl wood
Kd 0.8 0.5 0.2
Ns 10
map_Kd textures/wood.png
newmtl metal
Kd 0.6 0.6 0.6
Pm 1
Pr 0.2
d 0.5
map_Bump -bm 0.5 metal_n.png
`

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDetectKind(t *testing.T) {
	cases := map[string]Kind{
		"models/ship.OBJ":             KindOBJ,
		"tex/a.jpg":                   KindJPEG,
		"tex/a.png?v=3":               KindPNG,
		"proc://terrain?size=8":       KindTerrain,
		"scenes/level.glb":            KindGLB,
		"http://host/images/b.webp#x": KindWebP,
	}
	for url, want := range cases {
		got, err := DetectKind(url, nil)
		require.NoError(t, err, url)
		assert.Equal(t, want, got, url)
	}
}

func TestDetectKindSniffsHeader(t *testing.T) {
	kind, err := DetectKind("blob/1234", pngBytes(t, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, KindPNG, kind)

	_, err = DetectKind("blob/1234", []byte("plain text"))
	assert.ErrorIs(t, err, resource.ErrUnsupportedKind)

	_, err = DetectKind("archive.zip", []byte{'P', 'K', 3, 4, 0, 0, 0, 0})
	assert.ErrorIs(t, err, resource.ErrUnsupportedKind)
}

func TestRegistryUnsupportedKind(t *testing.T) {
	r := DefaultRegistry(0)

	_, err := r.Model(KindGLTF)
	assert.ErrorIs(t, err, resource.ErrUnsupportedKind)
	_, err = r.Texture(KindOBJ)
	assert.ErrorIs(t, err, resource.ErrUnsupportedKind)

	models, textures := r.Kinds()
	assert.Equal(t, []Kind{KindOBJ, KindTerrain}, models)
	assert.Contains(t, textures, KindPNG)
}

func TestReadSourceMissingFile(t *testing.T) {
	f := FSFetcher{FS: fstest.MapFS{}}

	_, err := ReadSource(context.Background(), f, "nope.obj")
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

func TestDecodeOBJWithMaterials(t *testing.T) {
	fsys := fstest.MapFS{
		"models/crate.obj": {Data: []byte(cubeOBJ)},
		"models/crate.mtl": {Data: []byte(crateMTL)},
	}
	src, err := ReadSource(context.Background(), FSFetcher{FS: fsys}, "models/crate.obj")
	require.NoError(t, err)
	require.Equal(t, KindOBJ, src.Kind)

	m, err := DecodeOBJ(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, "crate", m.Name)
	require.Len(t, m.Materials, 2)
	require.Len(t, m.Geometries, 2)
	require.Len(t, m.Parts, 2)

	wood := m.Materials[m.Parts[0].Material]
	assert.Equal(t, "wood", wood.Params.Name)
	assert.Equal(t, [3]float32{0.8, 0.5, 0.2}, wood.Params.DiffuseColor)
	assert.Equal(t, "models/textures/wood.png", wood.Textures[renderer.SlotDiffuse])

	metal := m.Materials[m.Parts[1].Material]
	assert.InDelta(t, 1.0, metal.Params.Metallic, 1e-6)
	assert.True(t, metal.Params.Transparent)
	assert.Equal(t, "models/metal_n.png", metal.Textures[renderer.SlotNormal])

	// The quad is split into two triangles over four unified vertices.
	woodGeom := m.Geometries[m.Parts[0].Geometry]
	assert.Len(t, woodGeom.Indices, 6)
	assert.Equal(t, 4, woodGeom.VertexCount())
	assert.Greater(t, woodGeom.BoundsRadius, float32(0))

	// The second group had no normals and gets computed ones.
	metalGeom := m.Geometries[m.Parts[1].Geometry]
	n := metalGeom.InterleavedData[5:8]
	assert.InDelta(t, 1.0, mgl32.Vec3{n[0], n[1], n[2]}.Len(), 1e-4)
}

func TestDecodeOBJMissingLibraryUsesDefault(t *testing.T) {
	fsys := fstest.MapFS{"tri.obj": {Data: []byte("mtllib gone.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")}}
	src, err := ReadSource(context.Background(), FSFetcher{FS: fsys}, "tri.obj")
	require.NoError(t, err)

	m, err := DecodeOBJ(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, m.Parts, 1)
	assert.Equal(t, -1, m.Parts[0].Material)
}

func TestDecodeOBJRejectsBadInput(t *testing.T) {
	for name, data := range map[string]string{
		"empty":     "",
		"bad index": "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 9\n",
		"bad float": "v 0 zero 0\n",
	} {
		_, err := DecodeOBJ(context.Background(), Source{URL: name + ".obj", Data: []byte(data)})
		assert.Error(t, err, name)
	}
}

func TestImageDecoderDownscales(t *testing.T) {
	dec := ImageDecoder(16)

	img, err := dec(context.Background(), Source{URL: "big.png", Data: pngBytes(t, 64, 32)})
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())

	img, err = dec(context.Background(), Source{URL: "small.png", Data: pngBytes(t, 8, 8)})
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, err = dec(context.Background(), Source{URL: "junk.png", Data: []byte("junk")})
	assert.Error(t, err)
}

func TestTerrainIsDeterministic(t *testing.T) {
	src := Source{URL: "proc://terrain?size=8&seed=42&amplitude=2", Kind: KindTerrain}

	a, err := DecodeTerrain(context.Background(), src)
	require.NoError(t, err)
	b, err := DecodeTerrain(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, a.Geometries, 1)
	g := a.Geometries[0]
	assert.Equal(t, 64, g.VertexCount())
	assert.Len(t, g.Indices, 7*7*6)
	assert.Equal(t, g.InterleavedData, b.Geometries[0].InterleavedData)

	_, err = DecodeTerrain(context.Background(), Source{URL: "proc://terrain?size=1"})
	assert.Error(t, err)
}
