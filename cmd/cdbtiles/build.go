package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/pspoerri/cdbtiles/internal/build"
	"github.com/pspoerri/cdbtiles/internal/cdb"
	"github.com/pspoerri/cdbtiles/internal/coord"
	"github.com/pspoerri/cdbtiles/internal/elevation"
	"github.com/pspoerri/cdbtiles/internal/encode"
	"github.com/pspoerri/cdbtiles/internal/registry"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Render elevation tiles into a CDB tree",
	Long: `Render elevation tiles for an area into the CDB directory layout below
--out. The area defaults to the extent of all sources and the LOD range to
one derived from the finest source post spacing.

Examples:
  cdbtiles build --source 'dem/*.tif' --out /data/cdb/v1
  cdbtiles build --config cdb.yaml --bbox 7,46,8,47 --max-lod 4 --out v2 --previous ../v1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		previous, _ := cmd.Flags().GetString("previous")
		comment, _ := cmd.Flags().GetString("comment")
		progress, _ := cmd.Flags().GetBool("progress")
		dataset, _ := cmd.Flags().GetInt("dataset")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		strategy, err := elevation.ParseStrategy(cfg.Strategy)
		if err != nil {
			return err
		}
		enc, err := encode.NewEncoder(cfg.Format)
		if err != nil {
			return err
		}

		start := time.Now()
		m, err := cfg.Registry()
		if err != nil {
			return err
		}
		defer m.Close()
		if cfg.Verbose {
			log.Printf("Opened %d source(s) in %v", len(m.Sources()), time.Since(start).Round(time.Millisecond))
		}

		var bounds cdb.Bounds
		if s, _ := cmd.Flags().GetString("bbox"); s != "" {
			if bounds, err = parseBBox(s); err != nil {
				return err
			}
		} else {
			bounds = sourceBounds(m)
		}

		spacing := finestSpacing(m)
		autoMin, autoMax := build.AutoLODRange(spacing, (bounds.North+bounds.South)/2)
		minLOD, maxLOD := autoMin, autoMax
		if cmd.Flags().Changed("min-lod") {
			minLOD, _ = cmd.Flags().GetInt("min-lod")
		}
		if cmd.Flags().Changed("max-lod") {
			maxLOD, _ = cmd.Flags().GetInt("max-lod")
			if !cmd.Flags().Changed("min-lod") {
				minLOD = min(autoMin, maxLOD)
			}
		}

		fmt.Printf("cdbtiles %s\n", version)
		fmt.Printf("  %-14s %s (%s)\n", "Format:", enc.Format(), enc.FileExtension())
		fmt.Printf("  %-14s %d – %d (auto-max: %d)\n", "LOD:", minLOD, maxLOD, autoMax)
		fmt.Printf("  %-14s %s (force: %v)\n", "Strategy:", strategy, cfg.Force)
		fmt.Printf("  %-14s %d\n", "Concurrency:", cfg.Concurrency)
		fmt.Printf("  %-14s %s\n", "Block cache:", humanSize(m.Cache().MaxSize()))
		fmt.Printf("  %-14s %d file(s), finest %.1f m\n", "Input:", len(m.Sources()), spacing)
		fmt.Printf("  %-14s W %.4f S %.4f E %.4f N %.4f\n", "Area:", bounds.West, bounds.South, bounds.East, bounds.North)
		fmt.Printf("  %-14s %s\n", "Output:", out)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		stats, err := build.Build(ctx, build.Config{
			Bounds:      bounds,
			MinLOD:      minLOD,
			MaxLOD:      maxLOD,
			Dataset:     dataset,
			Strategy:    strategy,
			Force:       cfg.Force,
			Concurrency: cfg.Concurrency,
			Encoder:     enc,
			Progress:    progress,
			Verbose:     cfg.Verbose,
		}, m, &build.DirWriter{Root: out})
		if err != nil {
			return err
		}

		if previous != "" || comment != "" {
			if err := cdb.WriteVersion(out, previous, comment); err != nil {
				return err
			}
		}
		if stats.Failed > 0 {
			log.Printf("WARNING: %d post(s) could not be sampled", stats.Failed)
		}

		elapsed := time.Since(start).Round(time.Millisecond)
		fmt.Printf("Done: %d tiles (%d empty skipped), %s, %v → %s\n",
			stats.Tiles, stats.Empty, humanSize(stats.Bytes), elapsed, out)
		return nil
	},
}

// sourceBounds returns the geographic extent of all registered sources.
func sourceBounds(m *registry.Manager) cdb.Bounds {
	b := cdb.Bounds{North: -90, South: 90, East: -180, West: 180}
	for _, s := range m.Sources() {
		sb := s.Bounds()
		for _, p := range [][2]float64{
			{sb.Min.X(), sb.Min.Y()}, {sb.Min.X(), sb.Max.Y()},
			{sb.Max.X(), sb.Min.Y()}, {sb.Max.X(), sb.Max.Y()},
		} {
			lon, lat := coord.Transform(m.Reference(), nil, p[0], p[1])
			b.West = math.Min(b.West, lon)
			b.East = math.Max(b.East, lon)
			b.South = math.Min(b.South, lat)
			b.North = math.Max(b.North, lat)
		}
	}
	return b
}

// finestSpacing returns the smallest post spacing in meters over all sources.
func finestSpacing(m *registry.Manager) float64 {
	spacing := math.Inf(1)
	for _, s := range m.Sources() {
		spacing = math.Min(spacing, s.PostSpacing())
	}
	return spacing
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("out", "", "Output CDB root directory (required)")
	buildCmd.Flags().String("bbox", "", "Area as west,south,east,north in degrees (default: source extent)")
	buildCmd.Flags().Int("min-lod", 0, "Coarsest level of detail (default: auto)")
	buildCmd.Flags().Int("max-lod", 0, "Finest level of detail (default: auto from source resolution)")
	buildCmd.Flags().Int("dataset", cdb.DatasetElevation, "CDB dataset code")
	buildCmd.Flags().String("previous", "", "Previous version root, recorded in Version.xml")
	buildCmd.Flags().String("comment", "", "Version comment, recorded in Version.xml")
	buildCmd.Flags().Bool("progress", true, "Show progress bars")
	buildCmd.MarkFlagRequired("out")
}
