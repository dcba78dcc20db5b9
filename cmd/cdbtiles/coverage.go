package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/pspoerri/cdbtiles/internal/cdb"
)

// coverageCmd represents the coverage command
var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "List the tiles covering an area",
	Long: `List the tile files covering a bounding box at one level of detail,
searching the CDB overlay chain newest first. Areas without a tile at the
requested level fall back to the nearest coarser tile.

Example:
  cdbtiles coverage --root /data/cdb/v3 --bbox 7.5,46.2,8.1,46.7 --lod 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bboxStr, _ := cmd.Flags().GetString("bbox")
		bbox, err := parseBBox(bboxStr)
		if err != nil {
			return err
		}
		lod, _ := cmd.Flags().GetInt("lod")
		dataset, _ := cmd.Flags().GetInt("dataset")
		s1, _ := cmd.Flags().GetInt("selector1")
		s2, _ := cmd.Flags().GetInt("selector2")
		ext, _ := cmd.Flags().GetString("ext")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		roots, err := cfg.ResolveRoots()
		if err != nil {
			return err
		}
		if cfg.Verbose {
			log.Printf("Searching %d overlay root(s): %v", len(roots), roots)
		}

		cov, err := cdb.CoverageForBounds(roots, bbox, dataset, s1, s2, lod, cdb.CoverageOptions{Extension: ext})
		if err != nil {
			return err
		}
		if ext == "" {
			ext = cdb.DatasetExtension(dataset)
		}
		for _, c := range cov {
			fmt.Println(c.Path(ext))
		}
		if cfg.Verbose {
			log.Printf("%d tile(s) cover the area at LOD %d", len(cov), lod)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(coverageCmd)

	coverageCmd.Flags().String("bbox", "", "Area as west,south,east,north in degrees (required)")
	coverageCmd.Flags().Int("lod", 0, "Level of detail")
	coverageCmd.Flags().Int("dataset", cdb.DatasetElevation, "CDB dataset code")
	coverageCmd.Flags().Int("selector1", 1, "Component selector 1")
	coverageCmd.Flags().Int("selector2", 1, "Component selector 2")
	coverageCmd.Flags().String("ext", "", "Tile file extension including the dot (default from dataset)")
	coverageCmd.MarkFlagRequired("bbox")
}
