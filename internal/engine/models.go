package engine

import (
	"context"
	"fmt"

	"GopherScene/internal/behaviour"
	"GopherScene/internal/logger"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"

	"go.uber.org/zap"
)

// AttachModel loads url and hangs an instance of it under obj's node. If the
// scene is cleared or obj removed while the load runs, the instance is
// thrown away and ErrCancelled is returned.
func (r *Runtime) AttachModel(ctx context.Context, obj *behaviour.GameObject, url string) (resource.Handle, error) {
	if err := r.checkAttach(obj); err != nil {
		return "", err
	}
	tok := r.lib.Token()
	node, h, err := r.lib.Spawn(ctx, url)
	if err != nil {
		return "", err
	}
	return h, r.commitModel(tok, obj, url, node, h)
}

// AttachModelAsync starts loading url on the library's pool. The instance is
// attached on the frame loop during a later Tick, and the returned channel
// receives the outcome once that has happened.
func (r *Runtime) AttachModelAsync(ctx context.Context, obj *behaviour.GameObject, url string) <-chan error {
	done := make(chan error, 1)
	if err := r.checkAttach(obj); err != nil {
		done <- err
		return done
	}
	tok := r.lib.Token()
	pending := r.lib.LoadModelAsync(ctx, url)
	go func() {
		h, err := pending.Wait()
		r.Post(func() {
			if err != nil {
				done <- err
				return
			}
			node, ierr := r.lib.Instantiate(h)
			// Instantiate took its own reference; the one from the load is ours.
			r.discard(resource.Ref{Kind: resource.KindModel, Handle: h})
			if ierr != nil {
				done <- ierr
				return
			}
			done <- r.commitModel(tok, obj, url, node, h)
		})
	}()
	return done
}

// AttachMeshes loads the model of every MeshComponent on obj that names one
// and has none yet.
func (r *Runtime) AttachMeshes(ctx context.Context, obj *behaviour.GameObject) error {
	for _, mesh := range behaviour.GetComponents[*behaviour.MeshComponent](obj) {
		if mesh.ModelURL == "" || mesh.Loaded() {
			continue
		}
		if _, err := r.AttachModel(ctx, obj, mesh.ModelURL); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) checkAttach(obj *behaviour.GameObject) error {
	if r.lib == nil || r.root == nil {
		return ErrNoScene
	}
	if obj == nil || !r.objects.Contains(obj) {
		return ErrNotInScene
	}
	return nil
}

func (r *Runtime) commitModel(tok resource.Token, obj *behaviour.GameObject, url string, node *renderer.Node, h resource.Handle) error {
	if !tok.Valid() || !r.objects.Contains(obj) || obj.Node == nil {
		node.Dispose(r.device, r.discard)
		logger.Log.Warn("Discarded model for a removed entity",
			zap.String("url", url),
			zap.String("entity", obj.Name))
		return fmt.Errorf("attach %s: %w", url, resource.ErrCancelled)
	}

	obj.Node.Add(node)
	for _, mesh := range behaviour.GetComponents[*behaviour.MeshComponent](obj) {
		if mesh.ModelURL == url && !mesh.Loaded() {
			mesh.Model = h
			break
		}
	}
	if m, ok := r.lib.PeekModel(h); ok && len(m.Clips) > 0 && obj.Mixer == nil {
		obj.Mixer = renderer.NewMixer(m.Clips)
	}
	logger.Log.Info("Model attached",
		zap.String("url", url),
		zap.String("entity", obj.Name),
		zap.String("handle", string(h)))
	return nil
}
