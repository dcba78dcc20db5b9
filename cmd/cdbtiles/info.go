package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/pspoerri/cdbtiles/internal/cog"
	"github.com/pspoerri/cdbtiles/internal/raster"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info file.tif...",
	Short: "Describe GeoTIFF elevation sources",
	Long: `Print the grid, block layout and georeferencing of GeoTIFF files and
their overviews. With --stats every block is decoded to report the value
range and a few diagonal samples.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, _ := cmd.Flags().GetBool("stats")
		for _, path := range args {
			if err := describe(path, stats); err != nil {
				return err
			}
		}
		return nil
	},
}

func describe(path string, stats bool) error {
	r, err := cog.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	g := r.Geometry()
	fmt.Printf("File: %s\n", path)
	fmt.Printf("  %-14s %d\n", "EPSG:", g.EPSG)
	fmt.Printf("  %-14s %d x %d, %d band(s), %s\n", "Size:", g.Width, g.Height, g.Bands, g.DataType)
	fmt.Printf("  %-14s %d x %d (%d blocks)\n", "Blocks:", g.BlockWidth, g.BlockHeight, g.BlocksAcross()*g.BlocksDown())
	fmt.Printf("  %-14s %f\n", "Post spacing:", g.Transform.PostSpacing())
	if g.HasNoData {
		fmt.Printf("  %-14s %g\n", "NoData:", g.NoData)
	}
	minX, maxY := g.Transform.Apply(0, 0)
	maxX, minY := g.Transform.Apply(float64(g.Width), float64(g.Height))
	fmt.Printf("  %-14s X=[%f, %f], Y=[%f, %f]\n", "Bounds (CRS):", minX, maxX, minY, maxY)
	fmt.Printf("  %-14s %d (1 full-res + %d overviews)\n", "Images:", r.Levels(), r.Levels()-1)

	for level := 1; level < r.Levels(); level++ {
		ov, err := cog.Open(fmt.Sprintf("%s|%d", path, level))
		if err != nil {
			fmt.Printf("    image %d: ERROR: %v\n", level, err)
			continue
		}
		og := ov.Geometry()
		fmt.Printf("    image %d: %dx%d, block %dx%d, spacing %f\n",
			level, og.Width, og.Height, og.BlockWidth, og.BlockHeight, og.Transform.PostSpacing())
		ov.Close()
	}

	if !stats {
		return nil
	}
	lo, hi, err := r.Statistics(raster.ElevationBand)
	if err != nil {
		fmt.Printf("  %-14s ERROR: %v\n", "Range:", err)
		return nil
	}
	fmt.Printf("  %-14s %.2f .. %.2f\n", "Range:", lo, hi)

	vals, err := r.ReadValues(raster.ElevationBand)
	if err != nil {
		return err
	}
	samplePosts(vals, g, 5)
	return nil
}

func samplePosts(vals []float64, g raster.Geometry, count int) {
	step := max(min(g.Width, g.Height)/(count+1), 1)
	fmt.Printf("  Sample posts (diagonal):\n")
	for i := 0; i < count; i++ {
		col, row := (i+1)*step, (i+1)*step
		if col >= g.Width || row >= g.Height {
			break
		}
		v := vals[row*g.Width+col]
		if math.IsNaN(v) || (g.HasNoData && v == g.NoData) {
			fmt.Printf("    (%d,%d): nodata\n", col, row)
			continue
		}
		fmt.Printf("    (%d,%d): %.2f\n", col, row, v)
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().Bool("stats", false, "Decode all blocks and report value range")
}
