package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"GopherScene/internal/config"
	"GopherScene/internal/loader"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func pngFile(t *testing.T, c color.RGBA) *fstest.MapFile {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(c)))
	return &fstest.MapFile{Data: buf.Bytes()}
}

func triangleModel(material, texture string) (obj, mtl *fstest.MapFile) {
	obj = &fstest.MapFile{Data: []byte(fmt.Sprintf(
		"mtllib %[1]s.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nvt 0 0\nvt 1 0\nvt 0 1\nvn 0 0 1\nusemtl %[1]s\nf 1/1/1 2/2/1 3/3/1\n",
		material))}
	mtl = &fstest.MapFile{Data: []byte(fmt.Sprintf("newmtl %s\nKd 1 1 1\nmap_Kd %s\n", material, texture))}
	return obj, mtl
}

// sceneFiles holds two models that sample the same texture.
func sceneFiles(t *testing.T) fstest.MapFS {
	aObj, aMtl := triangleModel("red", "../tex/shared.png")
	bObj, bMtl := triangleModel("blue", "../tex/shared.png")
	cObj, cMtl := triangleModel("broken", "../tex/missing.png")
	return fstest.MapFS{
		"a/a.obj":        aObj,
		"a/red.mtl":      aMtl,
		"b/b.obj":        bObj,
		"b/blue.mtl":     bMtl,
		"c/c.obj":        cObj,
		"c/broken.mtl":   cMtl,
		"tex/shared.png": pngFile(t, color.RGBA{R: 255, A: 255}),
		"tex/other.png":  pngFile(t, color.RGBA{B: 255, A: 255}),
	}
}

func newLibrary(t *testing.T, f loader.Fetcher) (*Library, *renderer.HeadlessDevice) {
	t.Helper()
	dev := renderer.NewHeadlessDevice()
	lib := New(dev, f, WithCacheConfig(config.Cache{LoadWorkers: 2, RetainModels: true}))
	t.Cleanup(lib.Close)
	return lib, dev
}

// refs returns the reference count, or -1 when the entry is gone.
func refs(info resource.Info, ok bool) int {
	if !ok {
		return -1
	}
	return info.Refs
}

func TestLoadTextureDeduplicates(t *testing.T) {
	lib, dev := newLibrary(t, loader.FSFetcher{FS: sceneFiles(t)})
	ctx := context.Background()

	h1, err := lib.LoadTexture(ctx, "tex/shared.png")
	require.NoError(t, err)
	h2, err := lib.LoadTexture(ctx, "tex/shared.png")
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 2, refs(lib.TextureInfo(h1)))
	assert.Equal(t, 1, dev.LiveTextures())

	require.NoError(t, lib.ReleaseTexture(h1))
	assert.Equal(t, 1, dev.LiveTextures())
	require.NoError(t, lib.ReleaseTexture(h1))
	assert.Equal(t, 0, dev.LiveTextures())

	_, ok := lib.PeekTexture(h1)
	assert.False(t, ok)
	assert.ErrorIs(t, lib.ReleaseTexture(h1), resource.ErrNotFound)
}

func TestOperationsRequireLiveDevice(t *testing.T) {
	lib, dev := newLibrary(t, loader.FSFetcher{FS: sceneFiles(t)})
	ctx := context.Background()
	dev.SetReady(false)

	_, err := lib.LoadTexture(ctx, "tex/shared.png")
	assert.ErrorIs(t, err, resource.ErrInvalidEnvironment)
	_, err = lib.LoadModel(ctx, "a/a.obj")
	assert.ErrorIs(t, err, resource.ErrInvalidEnvironment)
	_, err = lib.RegisterImage("img", solidImage(color.RGBA{A: 255}))
	assert.ErrorIs(t, err, resource.ErrInvalidEnvironment)
	_, err = lib.RegisterGeometry("g", &renderer.Geometry{})
	assert.ErrorIs(t, err, resource.ErrInvalidEnvironment)
	_, err = lib.LoadModelAsync(ctx, "a/a.obj").Wait()
	assert.ErrorIs(t, err, resource.ErrInvalidEnvironment)

	for kind, s := range lib.Stats() {
		assert.Zero(t, s.Live, kind)
		assert.Zero(t, s.Misses, kind)
	}

	headless := New(nil, nil)
	t.Cleanup(headless.Close)
	_, err = headless.LoadTexture(ctx, "tex/shared.png")
	assert.ErrorIs(t, err, resource.ErrInvalidEnvironment)
}

func TestLoadTextureMissingFile(t *testing.T) {
	lib, dev := newLibrary(t, loader.FSFetcher{FS: sceneFiles(t)})

	_, err := lib.LoadTexture(context.Background(), "tex/nope.png")
	assert.ErrorIs(t, err, resource.ErrLoadFailure)
	assert.ErrorIs(t, err, resource.ErrNotFound)
	assert.Zero(t, lib.Stats()[resource.KindTexture].Live)
	assert.Zero(t, dev.LiveTextures())
}

func TestRegisterImageDeduplicatesByContent(t *testing.T) {
	lib, dev := newLibrary(t, nil)

	h1, err := lib.RegisterImage("red", solidImage(color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	h2, err := lib.RegisterImage("also red", solidImage(color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	h3, err := lib.RegisterImage("blue", solidImage(color.RGBA{B: 255, A: 255}))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Equal(t, 2, refs(lib.TextureInfo(h1)))
	assert.Equal(t, 2, dev.LiveTextures())
}

func TestUpdateTextureRekeysRegisteredImage(t *testing.T) {
	lib, _ := newLibrary(t, nil)
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}

	h, err := lib.RegisterImage("swatch", solidImage(red))
	require.NoError(t, err)
	_, err = lib.UpdateTexture(h, solidImage(green))
	require.NoError(t, err)

	// The old pixels are gone, so registering them again makes a new texture.
	fresh, err := lib.RegisterImage("red", solidImage(red))
	require.NoError(t, err)
	assert.NotEqual(t, h, fresh)
	tex, _ := lib.PeekTexture(fresh)
	assert.Equal(t, red, tex.Pixels.RGBAAt(0, 0))

	same, err := lib.RegisterImage("green", solidImage(green))
	require.NoError(t, err)
	assert.Equal(t, h, same)
	assert.Equal(t, 2, refs(lib.TextureInfo(h)))

	// Swapping onto content another texture holds drops h from deduplication.
	_, err = lib.UpdateTexture(h, solidImage(red))
	require.NoError(t, err)
	again, err := lib.RegisterImage("red again", solidImage(red))
	require.NoError(t, err)
	assert.Equal(t, fresh, again)
}

func TestLoadModelBuildsTemplate(t *testing.T) {
	lib, _ := newLibrary(t, loader.FSFetcher{FS: sceneFiles(t)})

	h, err := lib.LoadModel(context.Background(), "a/a.obj")
	require.NoError(t, err)

	m, ok := lib.PeekModel(h)
	require.True(t, ok)
	assert.Equal(t, loader.KindOBJ, m.Kind)
	require.Len(t, m.Geometries, 1)
	require.Len(t, m.Materials, 1)
	require.Len(t, m.Textures, 1)

	parts := m.Root.Children()
	require.Len(t, parts, 1)
	assert.Equal(t, m.Geometries[0], parts[0].Geometry)
	assert.Equal(t, m.Materials[0], parts[0].Material)

	mat, ok := lib.PeekMaterial(m.Materials[0])
	require.True(t, ok)
	tex, ok := lib.PeekTexture(m.Textures[0])
	require.True(t, ok)
	assert.Equal(t, renderer.TextureBinding{Texture: m.Textures[0], GPU: tex.GPU}, mat.Slots[renderer.SlotDiffuse])

	// Sub-resources are held once, by the model.
	assert.Equal(t, 1, refs(lib.GeometryInfo(m.Geometries[0])))
	assert.Equal(t, 1, refs(lib.MaterialInfo(m.Materials[0])))
	assert.Equal(t, 1, refs(lib.TextureInfo(m.Textures[0])))

	inst, err := lib.Instantiate(h)
	require.NoError(t, err)
	assert.Equal(t, []resource.Ref{{Kind: resource.KindModel, Handle: h}}, inst.Refs)
	assert.NotSame(t, m.Root, inst)
	assert.Equal(t, 2, refs(lib.ModelInfo(h)))
}

func TestModelRetainedAtZeroReferences(t *testing.T) {
	lib, dev := newLibrary(t, loader.FSFetcher{FS: sceneFiles(t)})
	ctx := context.Background()

	h, err := lib.LoadModel(ctx, "a/a.obj")
	require.NoError(t, err)
	require.NoError(t, lib.ReleaseModel(h, false))

	info, ok := lib.ModelInfo(h)
	require.True(t, ok)
	assert.Zero(t, info.Refs)
	assert.True(t, info.Disposable)
	assert.Equal(t, 1, dev.LiveGeometries())
	assert.Equal(t, 1, dev.LiveTextures())

	again, err := lib.LoadModel(ctx, "a/a.obj")
	require.NoError(t, err)
	assert.Equal(t, h, again)
	assert.Equal(t, 1, lib.Stats()[resource.KindModel].Loads)

	require.NoError(t, lib.ReleaseModel(h, false))
	assert.Equal(t, 1, lib.SweepModels())
	assert.Zero(t, dev.LiveGeometries())
	assert.Zero(t, dev.LiveTextures())
	for kind, s := range lib.Stats() {
		assert.Zero(t, s.Live, kind)
	}
}

func TestForceReleaseCascadesAcrossModels(t *testing.T) {
	lib, dev := newLibrary(t, loader.FSFetcher{FS: sceneFiles(t)})
	ctx := context.Background()

	a, err := lib.LoadModel(ctx, "a/a.obj")
	require.NoError(t, err)
	b, err := lib.LoadModel(ctx, "b/b.obj")
	require.NoError(t, err)

	ma, _ := lib.PeekModel(a)
	mb, _ := lib.PeekModel(b)
	shared := ma.Textures[0]
	require.Equal(t, shared, mb.Textures[0])
	assert.Equal(t, 2, refs(lib.TextureInfo(shared)))
	aGeometry, aMaterial := ma.Geometries[0], ma.Materials[0]

	require.NoError(t, lib.ReleaseModel(a, true))

	_, ok := lib.ModelInfo(a)
	assert.False(t, ok)
	_, ok = lib.GeometryInfo(aGeometry)
	assert.False(t, ok)
	_, ok = lib.MaterialInfo(aMaterial)
	assert.False(t, ok)
	assert.Equal(t, 1, refs(lib.TextureInfo(shared)))
	assert.Equal(t, 1, dev.LiveTextures())
	assert.Equal(t, 1, dev.LiveGeometries())

	require.NoError(t, lib.ReleaseModel(b, true))
	assert.Zero(t, dev.LiveTextures())
	assert.Zero(t, dev.LiveGeometries())
	assert.ErrorIs(t, lib.ReleaseModel(b, true), resource.ErrNotFound)
}

func TestUpdateTextureMarksMaterialsDirty(t *testing.T) {
	lib, dev := newLibrary(t, loader.FSFetcher{FS: sceneFiles(t)})

	h, err := lib.LoadModel(context.Background(), "a/a.obj")
	require.NoError(t, err)
	m, _ := lib.PeekModel(h)
	texH, matH := m.Textures[0], m.Materials[0]

	before, _ := lib.PeekMaterial(matH)
	oldTex, _ := lib.PeekTexture(texH)
	oldGPU, oldRevision := oldTex.GPU, before.Revision

	n, err := lib.UpdateTexture(texH, solidImage(color.RGBA{G: 255, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tex, _ := lib.PeekTexture(texH)
	assert.Equal(t, 1, tex.Revision)
	assert.NotEqual(t, oldGPU, tex.GPU)
	assert.False(t, dev.HasTexture(oldGPU))
	assert.True(t, dev.HasTexture(tex.GPU))

	after, _ := lib.PeekMaterial(matH)
	assert.True(t, after.Dirty)
	assert.Greater(t, after.Revision, oldRevision)
	assert.Equal(t, tex.GPU, after.Slots[renderer.SlotDiffuse].GPU)
	assert.Equal(t, texH, after.Slots[renderer.SlotDiffuse].Texture)

	// The handle is stable and still owned by the model alone.
	assert.Equal(t, 1, refs(lib.TextureInfo(texH)))
}

func TestReloadTextureReadsSourceAgain(t *testing.T) {
	files := sceneFiles(t)
	lib, _ := newLibrary(t, loader.FSFetcher{FS: files})

	h, err := lib.LoadTexture(context.Background(), "tex/shared.png")
	require.NoError(t, err)
	assert.Equal(t, []resource.Handle{h}, lib.TexturesFromSource("tex/shared.png"))

	files["tex/shared.png"] = pngFile(t, color.RGBA{G: 9, A: 255})
	_, err = lib.ReloadTexture(context.Background(), h)
	require.NoError(t, err)

	tex, _ := lib.PeekTexture(h)
	assert.Equal(t, uint8(9), tex.Pixels.RGBAAt(0, 0).G)

	delete(files, "tex/shared.png")
	_, err = lib.ReloadTexture(context.Background(), h)
	assert.ErrorIs(t, err, resource.ErrLoadFailure)
	tex, _ = lib.PeekTexture(h)
	assert.Equal(t, 1, tex.Revision)
}

func TestReplaceTextureRebindsMaterials(t *testing.T) {
	lib, _ := newLibrary(t, nil)

	red, err := lib.RegisterImage("red", solidImage(color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	blue, err := lib.RegisterImage("blue", solidImage(color.RGBA{B: 255, A: 255}))
	require.NoError(t, err)
	mat, err := lib.CreateMaterial("Paint", *renderer.DefaultMaterial())
	require.NoError(t, err)
	require.NoError(t, lib.SetMaterialTexture(mat, renderer.SlotDiffuse, red))
	require.NoError(t, lib.SetMaterialTexture(mat, renderer.SlotEmissive, red))

	assert.Equal(t, []resource.Handle{mat}, lib.FindMaterialsUsingTexture(red))

	changed, err := lib.ReplaceTexture(red, blue)
	require.NoError(t, err)
	assert.Equal(t, []resource.Handle{mat}, changed)
	assert.Empty(t, lib.FindMaterialsUsingTexture(red))
	assert.Equal(t, []resource.Handle{mat}, lib.FindMaterialsUsingTexture(blue))

	m, _ := lib.PeekMaterial(mat)
	assert.Equal(t, []renderer.TextureSlot{renderer.SlotDiffuse, renderer.SlotEmissive}, m.SlotsUsing(blue))

	// Bindings never hold references.
	assert.Equal(t, 1, refs(lib.TextureInfo(red)))
	assert.Equal(t, 1, refs(lib.TextureInfo(blue)))

	_, err = lib.ReplaceTexture("gone", blue)
	assert.ErrorIs(t, err, resource.ErrNotFound)
}

func TestSetMaterialTextureRequiresTexture(t *testing.T) {
	lib, _ := newLibrary(t, nil)

	mat, err := lib.CreateMaterial("Plain", *renderer.DefaultMaterial())
	require.NoError(t, err)

	err = lib.SetMaterialTexture(mat, renderer.SlotDiffuse, "missing")
	assert.ErrorIs(t, err, resource.ErrNotFound)
	m, _ := lib.PeekMaterial(mat)
	assert.Empty(t, m.Slots)
}

func TestCloneMaterialIsIndependent(t *testing.T) {
	lib, _ := newLibrary(t, nil)

	tex, err := lib.RegisterImage("red", solidImage(color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	orig, err := lib.CreateMaterial("Steel", *renderer.DefaultMaterial())
	require.NoError(t, err)
	require.NoError(t, lib.SetMaterialTexture(orig, renderer.SlotDiffuse, tex))

	clone, err := lib.CloneMaterial(orig, "")
	require.NoError(t, err)
	require.NotEqual(t, orig, clone)

	info, _ := lib.MaterialInfo(clone)
	assert.Equal(t, "Steel.001", info.Name)

	require.NoError(t, lib.ClearMaterialTexture(clone, renderer.SlotDiffuse))
	require.NoError(t, lib.UpdateMaterial(clone, func(m *renderer.Material) error {
		m.Metallic = 1
		return nil
	}))

	o, _ := lib.PeekMaterial(orig)
	c, _ := lib.PeekMaterial(clone)
	assert.True(t, o.UsesTexture(tex))
	assert.False(t, c.UsesTexture(tex))
	assert.Zero(t, o.Metallic)
	assert.Equal(t, float32(1), c.Metallic)

	require.NoError(t, lib.RenameMaterial(clone, "Chrome"))
	c, _ = lib.PeekMaterial(clone)
	assert.Equal(t, "Chrome", c.Name)
}

func TestCloneGeometryUploadsCopy(t *testing.T) {
	lib, dev := newLibrary(t, nil)

	g := &renderer.Geometry{Name: "tri", InterleavedData: make([]float32, renderer.VertexStride*3), Indices: []uint32{0, 1, 2}}
	g.InterleavedData[renderer.VertexStride] = 1
	h, err := lib.RegisterGeometry("tri", g)
	require.NoError(t, err)

	cp, err := lib.CloneGeometry(h, "tri copy")
	require.NoError(t, err)
	assert.Equal(t, 2, dev.LiveGeometries())

	orig, _ := lib.PeekGeometry(h)
	dup, _ := lib.PeekGeometry(cp)
	assert.NotEqual(t, orig.GPU, dup.GPU)
	dup.Indices[0] = 2
	assert.Equal(t, uint32(0), orig.Indices[0])

	require.NoError(t, lib.ReleaseGeometry(cp))
	assert.Equal(t, 1, dev.LiveGeometries())
}

func TestLoadModelFailureReleasesPartialResources(t *testing.T) {
	lib, dev := newLibrary(t, loader.FSFetcher{FS: sceneFiles(t)})

	_, err := lib.LoadModel(context.Background(), "c/c.obj")
	assert.ErrorIs(t, err, resource.ErrLoadFailure)

	for kind, s := range lib.Stats() {
		assert.Zero(t, s.Live, kind)
	}
	assert.Zero(t, dev.LiveGeometries())
	assert.Zero(t, dev.LiveTextures())
}

func TestConcurrentModelLoadsShareOneDecode(t *testing.T) {
	lib, _ := newLibrary(t, loader.FSFetcher{FS: sceneFiles(t)})

	const callers = 8
	handles := make([]resource.Handle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := lib.LoadModel(context.Background(), "a/a.obj")
			assert.NoError(t, err)
			handles[i] = h
		}()
	}
	wg.Wait()

	for _, h := range handles {
		assert.Equal(t, handles[0], h)
	}
	assert.Equal(t, callers, refs(lib.ModelInfo(handles[0])))
	assert.Equal(t, 1, lib.Stats()[resource.KindModel].Loads)
	assert.Equal(t, 1, lib.Stats()[resource.KindTexture].Loads)
}

func TestLoadModelAsync(t *testing.T) {
	lib, _ := newLibrary(t, loader.FSFetcher{FS: sceneFiles(t)})

	p := lib.LoadModelAsync(context.Background(), "b/b.obj")
	h, err := p.Wait()
	require.NoError(t, err)
	<-p.Done()

	root, err := lib.Instantiate(h)
	require.NoError(t, err)
	assert.Len(t, root.Children(), 1)
}

// gateFetcher blocks the first open of one URL until released.
type gateFetcher struct {
	loader.FSFetcher
	block   string
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *gateFetcher) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	if url == f.block {
		f.once.Do(func() { close(f.reached) })
		<-f.release
	}
	return f.FSFetcher.Open(ctx, url)
}

func TestClearDuringModelLoadReleasesEverything(t *testing.T) {
	gate := &gateFetcher{
		FSFetcher: loader.FSFetcher{FS: sceneFiles(t)},
		block:     "tex/shared.png",
		reached:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	lib, dev := newLibrary(t, gate)

	p := lib.LoadModelAsync(context.Background(), "a/a.obj")
	select {
	case <-gate.reached:
	case <-time.After(5 * time.Second):
		t.Fatal("model load never reached its texture")
	}

	// Geometry is already uploaded when the scene goes away.
	assert.Equal(t, 1, dev.LiveGeometries())
	lib.Clear()
	close(gate.release)

	_, err := p.Wait()
	assert.ErrorIs(t, err, resource.ErrCancelled)

	for kind, s := range lib.Stats() {
		assert.Zero(t, s.Live, kind)
	}
	assert.Zero(t, dev.LiveGeometries())
	assert.Eventually(t, func() bool { return dev.LiveTextures() == 0 }, time.Second, 5*time.Millisecond)

	// A new generation loads normally.
	_, err = lib.LoadModel(context.Background(), "a/a.obj")
	assert.NoError(t, err)
}

func TestAcquireReleaseDispatchByKind(t *testing.T) {
	lib, _ := newLibrary(t, nil)

	tex, err := lib.RegisterImage("red", solidImage(color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)
	ref := resource.Ref{Kind: resource.KindTexture, Handle: tex}

	require.NoError(t, lib.Acquire(ref))
	assert.Equal(t, 2, refs(lib.TextureInfo(tex)))
	require.NoError(t, lib.Release(ref))
	assert.Equal(t, 1, refs(lib.TextureInfo(tex)))

	bogus := resource.Ref{Kind: "sound", Handle: tex}
	assert.ErrorIs(t, lib.Acquire(bogus), resource.ErrUnsupportedKind)
	assert.ErrorIs(t, lib.Release(bogus), resource.ErrUnsupportedKind)
	_, err = lib.Subscribe("sound", func(resource.Snapshot) {})
	assert.ErrorIs(t, err, resource.ErrUnsupportedKind)
}

func TestSubscribeSeesMaterialChanges(t *testing.T) {
	lib, _ := newLibrary(t, nil)

	var mu sync.Mutex
	var seen []resource.Snapshot
	unsubscribe, err := lib.Subscribe(resource.KindMaterial, func(s resource.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})
	require.NoError(t, err)
	defer unsubscribe()

	h, err := lib.CreateMaterial("Glass", *renderer.DefaultMaterial())
	require.NoError(t, err)
	require.NoError(t, lib.ReleaseMaterial(h))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	_, ok := seen[0].Find(h)
	assert.True(t, ok)
	_, ok = seen[1].Find(h)
	assert.False(t, ok)
}
