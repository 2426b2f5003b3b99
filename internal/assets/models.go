package assets

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"

	"GopherScene/internal/loader"
	"GopherScene/internal/logger"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Model is the payload of a model cache entry. It owns one reference to each
// handle it lists; Root is a template that instances are cloned from.
type Model struct {
	URL        string
	Kind       loader.Kind
	Root       *renderer.Node
	Geometries []resource.Handle
	Materials  []resource.Handle
	Textures   []resource.Handle
	Clips      []renderer.Clip
}

// LoadModel returns the model decoded from url, loading it and everything it
// references on first use. Each call takes one reference. A model whose
// scene generation ends before it completes fails with ErrCancelled and
// leaves nothing behind.
func (l *Library) LoadModel(ctx context.Context, url string) (resource.Handle, error) {
	if err := l.requireDevice(); err != nil {
		return "", err
	}
	return l.loadModel(ctx, url, l.gen.Token())
}

// LoadModelAsync loads url on the library's worker pool.
func (l *Library) LoadModelAsync(ctx context.Context, url string) Pending {
	tok := l.gen.Token()
	return l.submit(func() (resource.Handle, error) {
		if err := l.requireDevice(); err != nil {
			return "", err
		}
		return l.loadModel(ctx, url, tok)
	})
}

func (l *Library) loadModel(ctx context.Context, url string, tok resource.Token) (resource.Handle, error) {
	h, err := l.models.Load(ctx, url, func(ctx context.Context) (*Model, error) {
		return l.buildModel(ctx, url, tok)
	}, resource.WithName(path.Base(url)), resource.WithToken(tok))
	if err != nil {
		logger.Log.Error("Failed to load model",
			zap.String("url", url),
			zap.Error(err))
		return "", err
	}
	return h, nil
}

func (l *Library) buildModel(ctx context.Context, url string, tok resource.Token) (_ *Model, err error) {
	src, err := loader.ReadSource(ctx, l.fetcher, url)
	if err != nil {
		return nil, err
	}
	dec, err := l.registry.Model(src.Kind)
	if err != nil {
		return nil, err
	}
	decoded, err := dec(ctx, src)
	if err != nil {
		return nil, err
	}

	m := &Model{
		URL:   url,
		Kind:  src.Kind,
		Clips: append([]renderer.Clip(nil), decoded.Clips...),
	}
	defer func() {
		if err != nil {
			l.releaseOwned(m)
		}
	}()

	if err := checkToken(tok, url); err != nil {
		return nil, err
	}

	for i, g := range decoded.Geometries {
		if g.Name == "" {
			g.Name = decoded.Name + "." + strconv.Itoa(i)
		}
		h, err := l.RegisterGeometry(url+"#geometry/"+strconv.Itoa(i), g)
		if err != nil {
			return nil, err
		}
		m.Geometries = append(m.Geometries, h)
	}

	if err := checkToken(tok, url); err != nil {
		return nil, err
	}

	textures, err := l.loadModelTextures(ctx, m, decoded.Materials, tok)
	if err != nil {
		return nil, err
	}

	if err := checkToken(tok, url); err != nil {
		return nil, err
	}

	materials := make([]resource.Handle, len(decoded.Materials))
	for i, desc := range decoded.Materials {
		mat, err := copyMaterial(&desc.Params)
		if err != nil {
			return nil, err
		}
		for slot, texURL := range desc.Textures {
			th := textures[texURL]
			mat.Bind(slot, th, l.textureGPU(th))
		}
		name := mat.Name
		if name == "" {
			name = strconv.Itoa(i)
		}
		h, _ := l.materials.Register(url+"#material/"+name, mat.Name, mat)
		materials[i] = h
		m.Materials = append(m.Materials, h)
	}

	var fallback resource.Handle
	root := renderer.NewNode(decoded.Name)
	if root.Name == "" {
		root.Name = path.Base(url)
	}
	for _, p := range decoded.Parts {
		if p.Geometry < 0 || p.Geometry >= len(m.Geometries) {
			return nil, fmt.Errorf("model %q part %q: geometry %d out of range: %w",
				url, p.Name, p.Geometry, resource.ErrLoadFailure)
		}
		n := renderer.NewNode(p.Name)
		n.Position = p.Position
		n.Geometry = m.Geometries[p.Geometry]
		switch {
		case p.Material >= 0 && p.Material < len(materials):
			n.Material = materials[p.Material]
		default:
			if fallback.IsZero() {
				fallback, _ = l.materials.Register(url+"#material/default", "default", renderer.DefaultMaterial())
				m.Materials = append(m.Materials, fallback)
			}
			n.Material = fallback
		}
		root.Add(n)
	}
	m.Root = root

	if err := checkToken(tok, url); err != nil {
		return nil, err
	}

	logger.Log.Info("Model assembled",
		zap.String("url", url),
		zap.String("kind", string(m.Kind)),
		zap.Int("geometries", len(m.Geometries)),
		zap.Int("materials", len(m.Materials)),
		zap.Int("textures", len(m.Textures)),
		zap.Int("clips", len(m.Clips)))
	return m, nil
}

// loadModelTextures loads every distinct texture URL referenced by descs in
// parallel. Each handle is appended to m.Textures as soon as it is acquired,
// so a failure in one load still lets the caller release the others.
func (l *Library) loadModelTextures(ctx context.Context, m *Model, descs []loader.MaterialDesc, tok resource.Token) (map[string]resource.Handle, error) {
	var urls []string
	seen := make(map[string]bool)
	for _, d := range descs {
		for _, u := range d.Textures {
			if u != "" && !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}

	var mu sync.Mutex
	out := make(map[string]resource.Handle, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			h, err := l.loadTexture(gctx, u, tok)
			if err != nil {
				return err
			}
			mu.Lock()
			out[u] = h
			m.Textures = append(m.Textures, h)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (l *Library) textureGPU(h resource.Handle) uint32 {
	if t, ok := l.textures.Peek(h); ok {
		return t.GPU
	}
	return 0
}

func checkToken(tok resource.Token, url string) error {
	if !tok.Valid() {
		return fmt.Errorf("model %q: %w", url, resource.ErrCancelled)
	}
	return nil
}

// releaseOwned gives back every reference a model holds. It is the model
// cache's disposer and the unwind path of a failed load.
func (l *Library) releaseOwned(m *Model) {
	if m == nil {
		return
	}
	for _, h := range m.Materials {
		_ = l.materials.Release(h)
	}
	for _, h := range m.Geometries {
		_ = l.geometries.Release(h)
	}
	for _, h := range m.Textures {
		_ = l.textures.Release(h)
	}
	logger.Log.Debug("Model references released",
		zap.String("url", m.URL),
		zap.Int("geometries", len(m.Geometries)),
		zap.Int("materials", len(m.Materials)),
		zap.Int("textures", len(m.Textures)))
	m.Geometries, m.Materials, m.Textures = nil, nil, nil
}

// GetModel acquires a reference to h.
func (l *Library) GetModel(h resource.Handle) (*Model, error) {
	return l.models.Get(h)
}

func (l *Library) PeekModel(h resource.Handle) (*Model, bool) {
	return l.models.Peek(h)
}

func (l *Library) ModelInfo(h resource.Handle) (resource.Info, bool) {
	return l.models.Lookup(h)
}

// ModelFor returns the handle of the model cached for url.
func (l *Library) ModelFor(url string) (resource.Handle, bool) {
	return l.models.HandleFor(url)
}

// ReleaseModel drops one reference to h. Without force a model at zero
// references stays cached for reuse; with force it is removed immediately and
// everything it owns is released once.
func (l *Library) ReleaseModel(h resource.Handle, force bool) error {
	if force {
		return l.models.Dispose(h)
	}
	return l.models.Release(h)
}

// SweepModels frees every model retained at zero references.
func (l *Library) SweepModels() int {
	return l.models.Sweep()
}

// DiscardModel drops a reference taken for a scene that no longer exists.
// If it was the last one the model is freed rather than kept as a template.
func (l *Library) DiscardModel(h resource.Handle) error {
	if err := l.models.Release(h); err != nil {
		return err
	}
	if info, ok := l.models.Lookup(h); ok && info.Refs == 0 {
		return l.models.Dispose(h)
	}
	return nil
}

// Instantiate clones the node tree of model h. The returned root holds one
// model reference, released when the tree is disposed.
func (l *Library) Instantiate(h resource.Handle) (*renderer.Node, error) {
	m, err := l.models.Get(h)
	if err != nil {
		return nil, err
	}
	return l.instance(h, m), nil
}

// Spawn loads url and instantiates it, handing the load's reference to the
// returned tree.
func (l *Library) Spawn(ctx context.Context, url string) (*renderer.Node, resource.Handle, error) {
	h, err := l.LoadModel(ctx, url)
	if err != nil {
		return nil, "", err
	}
	m, ok := l.models.Peek(h)
	if !ok {
		return nil, "", fmt.Errorf("%s %s: %w", resource.KindModel, h, resource.ErrNotFound)
	}
	return l.instance(h, m), h, nil
}

func (l *Library) instance(h resource.Handle, m *Model) *renderer.Node {
	root := m.Root.Clone()
	root.Refs = append(root.Refs, resource.Ref{Kind: resource.KindModel, Handle: h})
	return root
}
