//go:build gl

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"GopherScene/internal/assets"
	"GopherScene/internal/config"
	"GopherScene/internal/engine"
	"GopherScene/internal/loader"
	"GopherScene/internal/logger"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"
	"GopherScene/internal/scenefile"
	"GopherScene/internal/watch"

	_ "GopherScene/scripts"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	// GL calls must come from the main thread
	runtime.LockOSThread()
}

func main() {
	var configPath, assetsDir string
	cmd := &cobra.Command{
		Use:          "viewer <scene>",
		Short:        "Open a window and run a scene",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Encoding); err != nil {
				return err
			}
			defer logger.Sync()
			if assetsDir == "" {
				assetsDir = filepath.Dir(args[0])
			}
			return run(cmd.Context(), cfg, args[0], assetsDir)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "engine config (.yaml, .toml or .json)")
	cmd.Flags().StringVar(&assetsDir, "assets", "", "asset root, defaults to the scene's directory")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Engine, scenePath, assetsDir string) error {
	doc, err := scenefile.Load(scenePath)
	if err != nil {
		return err
	}

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("could not initialize glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.DepthBits, 32)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(int(cfg.Viewport.Width), int(cfg.Viewport.Height), "GopherScene", nil, nil)
	if err != nil {
		return fmt.Errorf("could not create window: %w", err)
	}
	defer window.Destroy()
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return fmt.Errorf("could not initialize OpenGL: %w", err)
	}
	gl.Enable(gl.DEPTH_TEST)
	gl.ClearColor(0.1, 0.1, 0.12, 1.0)

	dev := renderer.NewGLDevice()
	lib := assets.New(dev, loader.DirFetcher(assetsDir), assets.WithCacheConfig(cfg.Cache))
	defer func() {
		lib.Close()
		dev.Lose()
	}()

	rt := engine.New(cfg, lib)
	rt.NewScene()
	if _, err := scenefile.Spawn(ctx, rt, doc); err != nil {
		logger.Log.Warn("Scene loaded with errors", zap.String("scene", scenePath), zap.Error(err))
	}

	if cfg.Watch.Enabled {
		tw, err := watchTextures(rt, lib, assetsDir, cfg.Watch)
		if err != nil {
			return err
		}
		defer tw.Close()
	}

	w, h := window.GetFramebufferSize()
	rt.OnResize(int32(w), int32(h))
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		rt.OnResize(int32(width), int32(height))
	})

	last := glfw.GetTime()
	for !window.ShouldClose() {
		now := glfw.GetTime()
		dt := float32(now - last)
		last = now

		rt.Tick(dt)

		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
		window.SwapBuffers()
		glfw.PollEvents()
	}
	logger.Log.Info("Viewer closed", zap.Uint64("frames", rt.Frame()))
	rt.ClearScene()
	return nil
}

// watchTextures hot reloads every texture the scene loaded. Reloads are
// posted to the frame loop so they run on the GL thread.
func watchTextures(rt *engine.Runtime, lib *assets.Library, root string, cfg config.Watch) (*watch.Watcher, error) {
	w, err := watch.Textures(lib, root, cfg, watch.WithDispatch(rt.Post))
	if err != nil {
		return nil, err
	}
	snap, err := lib.Snapshot(resource.KindTexture)
	if err != nil {
		w.Close()
		return nil, err
	}
	for _, e := range snap.Entries {
		if err := w.Watch(e.ID); err != nil {
			logger.Log.Debug("Texture not watched", zap.String("handle", string(e.ID)), zap.Error(err))
		}
	}
	logger.Log.Info("Watching textures", zap.Int("count", w.Watched()))
	return w, nil
}
