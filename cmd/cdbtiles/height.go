package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pspoerri/cdbtiles/internal/coord"
	"github.com/pspoerri/cdbtiles/internal/elevation"
)

// heightCmd represents the height command
var heightCmd = &cobra.Command{
	Use:   "height",
	Short: "Get terrain elevation at a location",
	Long: `Get terrain elevation at a geographic coordinate, interpolated from the
configured GeoTIFF sources.

Examples:
  cdbtiles height --lat 46.5 --lon 7.9 --source 'dem/*.tif'
  cdbtiles height --lat 46.5 --lon 7.9 --config cdb.yaml --strategy nearest`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		if lat < -90 || lat > 90 {
			return fmt.Errorf("latitude must be between -90 and 90")
		}
		if lon < -180 || lon > 180 {
			return fmt.Errorf("longitude must be between -180 and 180")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		strategy, err := elevation.ParseStrategy(cfg.Strategy)
		if err != nil {
			return err
		}
		m, err := cfg.Registry()
		if err != nil {
			return err
		}
		defer m.Close()

		x, y := coord.Transform(nil, cfg.Reference(), lon, lat)
		e := elevation.New(m, strategy, cfg.Force)
		z, err := e.Elevation(x, y)
		if err != nil {
			return fmt.Errorf("elevation at %.6f, %.6f: %w", lat, lon, err)
		}

		var names []string
		for _, s := range m.Candidates(x, y) {
			names = append(names, s.Name)
		}
		fmt.Printf("Location: %.6f, %.6f\n", lat, lon)
		fmt.Printf("Elevation: %.2f meters\n", z)
		fmt.Printf("Strategy: %s\n", strategy)
		fmt.Printf("Sources: %s\n", strings.Join(names, ", "))
		if cfg.Verbose {
			st := e.Stats()
			log.Printf("Engine: %d queries, %d exact, %d degraded, %d dropped posts",
				st.Queries, st.Exact, st.Degraded, st.Dropped)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(heightCmd)

	heightCmd.Flags().Float64("lat", 0, "Latitude (required)")
	heightCmd.Flags().Float64("lon", 0, "Longitude (required)")
	heightCmd.MarkFlagRequired("lat")
	heightCmd.MarkFlagRequired("lon")
}
