package build

import (
	"github.com/pspoerri/cdbtiles/internal/cdb"
	"github.com/pspoerri/cdbtiles/internal/coord"
)

// AutoLODRange computes appropriate min/max levels of detail based on
// source data. spacingMeters is the finest source post spacing.
func AutoLODRange(spacingMeters, centerLat float64) (minLOD, maxLOD int) {
	deg := coord.MetersToPixelSizeCRS(spacingMeters, 4326, centerLat)
	maxLOD = cdb.LodForPixelSize(deg)
	minLOD = max(maxLOD-6, cdb.MinLOD)
	return
}
