package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pspoerri/cdbtiles/internal/cdb"
)

// tilenameCmd represents the tilename command
var tilenameCmd = &cobra.Command{
	Use:   "tilename [name...]",
	Short: "Decode or encode CDB tile file names",
	Long: `Decode CDB tile file names (or paths) into their components and extent,
or, without arguments, name the tile containing --lat/--lon at --lod.

Examples:
  cdbtiles tilename N46E007_D001_S001_T001_L02_U3_R1.tif
  cdbtiles tilename --lat 46.5 --lon 7.9 --lod 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			for _, name := range args {
				t, err := cdb.TileInfoForFileName(name)
				if err != nil {
					return err
				}
				printTile(t)
			}
			return nil
		}

		if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lon") {
			return fmt.Errorf("need tile names or --lat and --lon")
		}
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		lod, _ := cmd.Flags().GetInt("lod")
		dataset, _ := cmd.Flags().GetInt("dataset")
		if lat < -90 || lat >= 90 || lon < -180 || lon >= 180 {
			return fmt.Errorf("location %.6f, %.6f outside the globe", lat, lon)
		}
		if lod < cdb.MinLOD || lod > cdb.MaxLOD {
			return fmt.Errorf("lod %d out of range [%d, %d]", lod, cdb.MinLOD, cdb.MaxLOD)
		}
		printTile(cdb.TileInfoForPoint(lat, lon, dataset, 1, 1, lod))
		return nil
	},
}

func printTile(t cdb.TileInfo) {
	b := cdb.NSEWBoundsForTileInfo(t)
	ri := cdb.RasterInfoForTileInfo(t)
	fmt.Printf("%s\n", cdb.FileNameForTileInfo(t))
	fmt.Printf("  %-14s %s\n", "Path:", cdb.FilePathForTileInfo(t))
	fmt.Printf("  %-14s %d (%s)\n", "Dataset:", t.Dataset, cdb.DatasetName(t.Dataset))
	fmt.Printf("  %-14s %d (U%d R%d)\n", "LOD:", t.LOD, t.URef, t.RRef)
	fmt.Printf("  %-14s N %.6f S %.6f E %.6f W %.6f\n", "Bounds:", b.North, b.South, b.East, b.West)
	fmt.Printf("  %-14s %dx%d posts\n", "Raster:", ri.Width, ri.Height)
	if t.LOD > cdb.MinLOD {
		fmt.Printf("  %-14s %s\n", "Parent:", cdb.ParentTileInfo(t))
	}
}

func init() {
	rootCmd.AddCommand(tilenameCmd)

	tilenameCmd.Flags().Float64("lat", 0, "Latitude")
	tilenameCmd.Flags().Float64("lon", 0, "Longitude")
	tilenameCmd.Flags().Int("lod", 0, "Level of detail")
	tilenameCmd.Flags().Int("dataset", cdb.DatasetElevation, "CDB dataset code")
}
