// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Skelinfo loads skeletons from COLLADA, YAML/JSON or glTF
// files and prints their joint hierarchies.
package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gviegas/neo3/gltf"
	"github.com/gviegas/neo3/linear"
	"github.com/gviegas/neo3/node"
	"github.com/gviegas/neo3/skeleton"
	"github.com/gviegas/neo3/skin"
)

// config holds the command settings.
// Flags override the environment.
type config struct {
	Correction string `env:"SKELINFO_CORRECTION" envDefault:"none"`
	Verbose    bool   `env:"SKELINFO_VERBOSE"`
	Limit      int    `env:"SKELINFO_LIMIT" envDefault:"0"`
	Bones      []string
}

// Correction values.
// z-up is for Z-up sources: it rotates -90° about X,
// taking +Z to +Y.
const (
	correctionNone = "none"
	correctionZUp  = "z-up"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg config
		log *zap.Logger
	)
	cmd := &cobra.Command{
		Use:   "skelinfo [flags] FILE...",
		Short: "Print the joint hierarchy of skeleton files",
		Long: `Loads the skeleton of each FILE and prints every joint as
depth, name, index and inverse bind translation.

Supported files:
  .dae, .xml           COLLADA
  .yaml, .yml, .json   COLLADA layout over YAML/JSON
  .gltf, .glb          glTF 2.0 (first skin)

The bone order is taken from --bones, else from the COLLADA
Name_array, else from the glTF skin's joints.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := parseEnv(&cfg, cmd.Flags()); err != nil {
				return err
			}
			zc := zap.NewProductionConfig()
			if cfg.Verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			if log, err = zc.Build(); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), &cfg, log, args)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&cfg.Bones, "bones", nil, "comma-separated bone order")
	f.StringVar(&cfg.Correction, "correction", correctionNone, "correction transform (none|z-up)")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging")
	f.IntVar(&cfg.Limit, "limit", 0, "maximum number of files loaded at once (0 for no limit)")
	return cmd
}

// parseEnv fills the settings whose flags were not given
// from the environment.
func parseEnv(cfg *config, flags *pflag.FlagSet) error {
	var ec config
	if err := env.Parse(&ec); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if !flags.Changed("correction") {
		cfg.Correction = ec.Correction
	}
	if !flags.Changed("verbose") {
		cfg.Verbose = ec.Verbose
	}
	if !flags.Changed("limit") {
		cfg.Limit = ec.Limit
	}
	return nil
}

// correction returns the transform named by s.
func correction(s string) (*linear.M4, error) {
	switch s {
	case correctionNone, "":
		return nil, nil
	case correctionZUp:
		var m linear.M4
		var q linear.Q
		q.Rotate(-math.Pi/2, &linear.V3{1, 0, 0})
		m.RotateQ(&q)
		return &m, nil
	default:
		return nil, fmt.Errorf("unknown correction %q", s)
	}
}

func run(ctx context.Context, w io.Writer, cfg *config, log *zap.Logger, files []string) error {
	corr, err := correction(cfg.Correction)
	if err != nil {
		return err
	}
	reqs := make([]skeleton.Request, len(files))
	for i, name := range files {
		if reqs[i], err = readFile(name, cfg.Bones); err != nil {
			return err
		}
		reqs[i].Correction = corr
		log.Debug("file read",
			zap.String("file", name),
			zap.Int("bones", len(reqs[i].BoneOrder)))
	}
	ls, err := skeleton.LoadAll(ctx, reqs, cfg.Limit, skeleton.WithLogger(log))
	if err != nil {
		return err
	}
	for i, l := range ls {
		if err := printSkeleton(w, files[i], l); err != nil {
			return err
		}
	}
	return nil
}

// readFile decodes the named file into a load request.
func readFile(name string, bones []string) (req skeleton.Request, err error) {
	f, err := os.Open(name)
	if err != nil {
		return
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".dae", ".xml":
		req.Root, err = node.DecodeXML(f)
	case ".yaml", ".yml", ".json":
		req.Root, err = node.DecodeYAML(f)
	case ".gltf", ".glb":
		var g *gltf.GLTF
		if ext == ".glb" {
			g, err = gltf.DecodeGLB(f)
		} else {
			g, err = gltf.Decode(f)
		}
		if err == nil {
			req.Root, req.BoneOrder, err = gltf.SkinTree(g, 0)
		}
		req.Options = []skeleton.Option{skeleton.WithFormat(skeleton.GLTF)}
	default:
		err = fmt.Errorf("unknown file extension %q", ext)
	}
	if err != nil {
		err = fmt.Errorf("%s: %w", name, err)
		return
	}

	switch {
	case len(bones) > 0:
		req.BoneOrder = bones
	case req.BoneOrder == nil:
		if n := req.Root.Find("Name_array", "", ""); n != nil {
			req.BoneOrder = strings.Fields(n.Value)
		}
	}
	return
}

func printSkeleton(w io.Writer, name string, l *skeleton.Loader) error {
	sk, err := skin.New(l)
	if err != nil {
		return err
	}
	var unused int
	for i := range sk.Len() {
		if !sk.Used(i) {
			unused++
		}
	}
	fmt.Fprintf(w, "%s: %d joints, %d slots (%d unused)\n", name, l.JointCount(), sk.Len(), unused)
	l.HeadJoint().Walk(func(j *skeleton.Joint, depth int) bool {
		ibt, _ := j.InverseBindTransform()
		fmt.Fprintf(w, "%s%s\t%v\t(%g %g %g)\n",
			strings.Repeat("  ", depth), j.Name(), j.Index(), ibt[3][0], ibt[3][1], ibt[3][2])
		return true
	})
	return nil
}
