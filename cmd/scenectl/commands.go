package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"GopherScene/internal/assets"
	"GopherScene/internal/behaviour"
	"GopherScene/internal/config"
	"GopherScene/internal/engine"
	"GopherScene/internal/loader"
	"GopherScene/internal/logger"
	"GopherScene/internal/renderer"
	"GopherScene/internal/resource"
	"GopherScene/internal/scenefile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	configPath string
	assetsDir  string
	logLevel   string

	cfg config.Engine
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "scenectl",
		Short:        "Load scenes headlessly and inspect the resource caches",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "engine config (.yaml, .toml or .json)")
	root.PersistentFlags().StringVar(&opts.assetsDir, "assets", "", "asset root, defaults to the scene's directory")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(newKindsCmd(opts), newInspectCmd(opts), newSimulateCmd(opts))
	return root
}

func (o *options) setup() error {
	o.cfg = config.Default()
	o.cfg.Logging.Level = "warn"
	if o.configPath != "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		o.cfg = cfg
	}
	if o.logLevel != "" {
		o.cfg.Logging.Level = o.logLevel
	}
	return logger.Configure(o.cfg.Logging.Level, o.cfg.Logging.Encoding)
}

// open builds a headless runtime for the scene at path and spawns it.
func (o *options) open(ctx context.Context, path string) (*engine.Runtime, *assets.Library, error) {
	doc, err := scenefile.Load(path)
	if err != nil {
		return nil, nil, err
	}
	dir := o.assetsDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	lib := assets.New(renderer.NewHeadlessDevice(), loader.DirFetcher(dir), assets.WithCacheConfig(o.cfg.Cache))
	rt := engine.New(o.cfg, lib)
	rt.NewScene()
	if _, err := scenefile.Spawn(ctx, rt, doc); err != nil {
		// partial scenes are still worth inspecting
		logger.Log.Warn("Scene loaded with errors", zap.String("scene", path), zap.Error(err))
	}
	return rt, lib, nil
}

func newKindsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the registered model and texture formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := loader.DefaultRegistry(opts.cfg.Cache.MaxTextureSize)
			models, textures := reg.Kinds()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "models:   %s\n", joinKinds(models))
			fmt.Fprintf(out, "textures: %s\n", joinKinds(textures))
			return nil
		},
	}
}

func joinKinds(kinds []loader.Kind) string {
	s := make([]string, len(kinds))
	for i, k := range kinds {
		s[i] = string(k)
	}
	return strings.Join(s, ", ")
}

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <scene>",
		Short: "Print the entity tree and cache contents of a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, lib, err := opts.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer lib.Close()
			out := cmd.OutOrStdout()
			printTree(out, rt)
			return printCaches(out, lib)
		},
	}
}

func newSimulateCmd(opts *options) *cobra.Command {
	var frames int
	var dt float32
	cmd := &cobra.Command{
		Use:   "simulate <scene>",
		Short: "Run the frame loop for a number of frames and print entity positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if frames < 0 || dt <= 0 {
				return fmt.Errorf("frames must be >= 0 and dt > 0")
			}
			rt, lib, err := opts.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer lib.Close()
			for i := 0; i < frames; i++ {
				rt.Tick(dt)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintf(w, "ENTITY\tX\tY\tZ\n")
			for _, obj := range rt.Entities() {
				p := obj.Transform.Position
				fmt.Fprintf(w, "%s\t%.3f\t%.3f\t%.3f\n", obj.Name, p.X(), p.Y(), p.Z())
			}
			fmt.Fprintf(w, "frames\t%d\t\t\n", rt.Frame())
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&frames, "frames", "n", 60, "frames to simulate")
	cmd.Flags().Float32Var(&dt, "dt", 1.0/60.0, "seconds per frame")
	return cmd
}

func printTree(out io.Writer, rt *engine.Runtime) {
	var visit func(obj *behaviour.GameObject, depth int)
	visit = func(obj *behaviour.GameObject, depth int) {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(out, "%s%s #%d", indent, obj.Name, obj.ID)
		if obj.Tag != "" {
			fmt.Fprintf(out, " [%s]", obj.Tag)
		}
		if obj.Body != nil {
			fmt.Fprintf(out, " body=%d", obj.Body.ID)
		}
		fmt.Fprintln(out)
		for _, c := range obj.Components() {
			fmt.Fprintf(out, "%s  - %s", indent, behaviour.GetComponentTypeName(c))
			for _, a := range behaviour.DescribeAttributes(c) {
				fmt.Fprintf(out, " %s=%v", a.Name, a.Get())
			}
			fmt.Fprintln(out)
		}
		for _, child := range obj.Children() {
			visit(child, depth+1)
		}
	}
	for _, obj := range rt.Entities() {
		if rt.Parent(obj) == nil {
			visit(obj, 0)
		}
	}
}

func printCaches(out io.Writer, lib *assets.Library) error {
	stats := lib.Stats()
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "\nKIND\tHANDLE\tNAME\tREFS\n")
	for _, kind := range []resource.Kind{resource.KindModel, resource.KindGeometry, resource.KindMaterial, resource.KindTexture} {
		snap, err := lib.Snapshot(kind)
		if err != nil {
			return err
		}
		for _, e := range snap.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", kind, e.ID, e.Name, e.Refs)
		}
		s := stats[kind]
		fmt.Fprintf(w, "%s\t(live %d, loads %d, hits %d, coalesced %d, failures %d)\t\t\n",
			kind, s.Live, s.Loads, s.Hits, s.Coalesced, s.Failures)
	}
	return w.Flush()
}
