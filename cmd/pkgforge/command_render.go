package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/sourceplane/pkgforge/internal/distribute"
	"github.com/sourceplane/pkgforge/internal/exports"
	"github.com/sourceplane/pkgforge/internal/finalize"
	"github.com/sourceplane/pkgforge/internal/lock"
	"github.com/sourceplane/pkgforge/internal/model"
	"github.com/sourceplane/pkgforge/internal/recipe"
	"github.com/sourceplane/pkgforge/internal/resolve"
	"github.com/sourceplane/pkgforge/internal/solver"
	"github.com/sourceplane/pkgforge/internal/source"
	"github.com/sourceplane/pkgforge/internal/variant"
	"gopkg.in/yaml.v3"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Expand and finalize build jobs from a recipe",
	RunE: func(cmd *cobra.Command, args []string) error {
		return renderJobs(cmd)
	},
}

func registerRenderCommand(root *cobra.Command) {
	root.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&indexFile, "index", "", "Package index YAML for dependency resolution")
	renderCmd.Flags().StringVar(&channelDataFile, "channel-data", "", "Channel-level run-exports YAML (optional)")
	renderCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: stdout)")
	renderCmd.Flags().StringVarP(&outputFormat, "format", "f", "yaml", "Output format (yaml/json)")
	renderCmd.Flags().StringVar(&targetPlatform, "platform", "linux-64", "Default target platform")
	renderCmd.Flags().StringVar(&locksDir, "locks-dir", "", "Directory for cross-process lock files")
	renderCmd.Flags().StringSliceVar(&cacheDirs, "cache-dir", nil, "Package cache directories to guard during resolution")
	renderCmd.Flags().BoolVar(&noLocking, "no-locks", false, "Disable cross-process locking")
	renderCmd.Flags().BoolVar(&noFinalize, "no-finalize", false, "Skip dependency finalization, emit rendered jobs only")
	renderCmd.Flags().BoolVar(&permitUnsat, "permit-unsat", false, "Keep unsatisfiable jobs non-final instead of failing")
	renderCmd.Flags().BoolVar(&crossCompile, "cross", false, "Cross-compilation layout: resolve host separately from build")
	renderCmd.Flags().BoolVar(&buildIsHost, "build-is-host", false, "Legacy layout: one prefix serves as build and host")
	renderCmd.MarkFlagRequired("index")
}

func renderJobs(cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := newLogger()

	fmt.Println("□ Loading recipe...")
	tmpl, err := recipe.Load(recipeFile)
	if err != nil {
		return fmt.Errorf("failed to load recipe: %w", err)
	}
	tmpl.GitDescribe = func(dir string) (string, error) {
		return source.Describe(ctx, dir)
	}

	matrix, err := loadMatrix()
	if err != nil {
		return err
	}

	fmt.Println("□ Expanding variants...")
	distributor := &distribute.Distributor{
		Source:   source.GitProvider{},
		Platform: targetPlatform,
		Log:      log,
	}
	jobs, err := distributor.Distribute(ctx, tmpl, matrix)
	if err != nil {
		return fmt.Errorf("failed to expand variants: %w", err)
	}
	jobs, err = distribute.ExpandOutputs(tmpl, jobs)
	if err != nil {
		return fmt.Errorf("failed to expand outputs: %w", err)
	}
	if debugMode {
		fmt.Printf("  Expanded %d jobs\n", len(jobs))
	}

	if !noFinalize {
		fmt.Println("□ Finalizing dependencies...")
		finalizer, err := buildFinalizer(log)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if err := finalizer.Finalize(ctx, job, tmpl, jobs, permitUnsat); err != nil {
				return err
			}
		}
	}

	if err := writeJobs(jobs); err != nil {
		return err
	}
	fmt.Printf("✓ Rendered %d jobs\n", len(jobs))
	return nil
}

func buildFinalizer(log *slog.Logger) (*finalize.Finalizer, error) {
	idx, err := solver.LoadIndex(indexFile)
	if err != nil {
		return nil, err
	}

	var locks *lock.Manager
	if !noLocking {
		dir := locksDir
		if dir == "" {
			dir = os.TempDir()
		}
		if locks, err = lock.NewManager(dir); err != nil {
			return nil, fmt.Errorf("failed to initialize lock manager: %w", err)
		}
	}

	resolver := &resolve.Resolver{
		Solver:    idx,
		Locks:     locks,
		Locking:   !noLocking,
		CacheDirs: cacheDirs,
		Log:       log,
	}

	channel, err := exports.NewChannelCache(16, fetchChannelData)
	if err != nil {
		return nil, err
	}
	propagator := &exports.Propagator{
		Channel: channel,
		Record:  idx.RunExportsFor,
		Log:     log,
	}

	return &finalize.Finalizer{
		Resolver:    resolver,
		Propagator:  propagator,
		Cross:       crossCompile,
		BuildIsHost: buildIsHost,
		Log:         log,
	}, nil
}

// fetchChannelData serves every channel from the single document named
// on the command line. An unset flag disables the channel-level path and
// the propagator falls back to per-record sources.
func fetchChannelData(channel string) (exports.ChannelData, error) {
	if channelDataFile == "" {
		return exports.ChannelData{}, fmt.Errorf("no channel data configured")
	}
	data, err := os.ReadFile(channelDataFile)
	if err != nil {
		return exports.ChannelData{}, fmt.Errorf("failed to read channel data: %w", err)
	}
	var doc exports.ChannelData
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return exports.ChannelData{}, fmt.Errorf("failed to parse channel data YAML: %w", err)
	}
	return doc, nil
}

func loadMatrix() (variant.Matrix, error) {
	if variantsFile == "" {
		return variant.Matrix{variant.Variant{}}, nil
	}
	matrix, err := variant.LoadConfig(variantsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}
	return matrix, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if debugMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func writeJobs(jobs []*model.BuildJob) error {
	var rendered []byte
	var err error
	switch outputFormat {
	case "json":
		rendered, err = json.MarshalIndent(jobs, "", "  ")
	default:
		rendered, err = yaml.Marshal(jobs)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}
	if outputFile == "" {
		_, err = os.Stdout.Write(rendered)
		return err
	}
	if err := os.WriteFile(outputFile, rendered, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	fmt.Printf("✓ Saved to: %s\n", outputFile)
	return nil
}
