package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pspoerri/cdbtiles/internal/cdb"
	"github.com/pspoerri/cdbtiles/internal/config"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cdbtiles",
	Short: "Elevation sampling and tile generation for CDB databases",
	Long: `cdbtiles samples terrain elevation from a set of GeoTIFF sources and
writes elevation tiles into a CDB directory tree.

Commands:
- height:   elevation at a geographic coordinate
- coverage: tiles covering an area across a chain of CDB overlays
- tilename: decode or encode CDB tile file names
- build:    render elevation tiles for an area
- info:     inspect GeoTIFF sources

Settings come from command-line flags, CDBTILES_* environment variables and
an optional YAML file, in that order of precedence.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	addConfigFlags(rootCmd)
}

// addConfigFlags registers the flags loadConfig reads.
func addConfigFlags(cmd *cobra.Command) {
	def := config.Default()
	fs := cmd.PersistentFlags()
	fs.StringP("config", "c", "", "YAML configuration file")
	fs.StringSlice("root", nil, "CDB root directories, newest overlay first")
	fs.StringSlice("source", nil, "Elevation GeoTIFFs as path[@priority]; globs allowed")
	fs.Int("cache-size", def.CacheSizeMB, "Block cache size in MB (0 = auto from system RAM)")
	fs.String("strategy", def.Strategy, "Interpolation: nearest, linear, planar, tin, bilinear")
	fs.Bool("force", false, "Fail instead of degrading to fewer posts")
	fs.Bool("keep-open", false, "Keep source files open between queries")
	fs.Int("concurrency", def.Concurrency, "Number of parallel workers")
	fs.String("format", def.Format, "Tile encoding: tif, terrarium, webp")
	fs.Int("reference-epsg", 0, "EPSG code of the query frame (0 = WGS84)")
	fs.BoolP("verbose", "v", false, "Verbose output")
}

// parseBBox parses "west,south,east,north" in degrees.
func parseBBox(s string) (cdb.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return cdb.Bounds{}, fmt.Errorf("bbox %q: want west,south,east,north", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return cdb.Bounds{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	b := cdb.Bounds{West: v[0], South: v[1], East: v[2], North: v[3]}
	if b.West >= b.East || b.South >= b.North {
		return cdb.Bounds{}, fmt.Errorf("bbox %q is empty", s)
	}
	if b.South < -90 || b.North > 90 || b.West < -180 || b.East > 180 {
		return cdb.Bounds{}, fmt.Errorf("bbox %q outside the globe", s)
	}
	return b, nil
}

func humanSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
