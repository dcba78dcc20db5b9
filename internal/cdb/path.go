package cdb

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidTileName is returned when a file name does not follow the tile
// naming convention.
var ErrInvalidTileName = errors.New("invalid tile file name")

// TilesDir is the directory under a database root that holds the tile pyramid.
const TilesDir = "Tiles"

// Well-known dataset codes.
const (
	DatasetElevation        = 1
	DatasetMinMaxElevation  = 2
	DatasetMaxCulture       = 3
	DatasetImagery          = 4
	DatasetRMTexture        = 5
	DatasetRMDescriptor     = 6
	DatasetGSFeature        = 100
	DatasetGTFeature        = 101
	DatasetGeoPolitical     = 102
	DatasetVectorMaterial   = 103
	DatasetRoadNetwork      = 201
	DatasetRailRoadNetwork  = 202
	DatasetPowerLineNetwork = 203
	DatasetHydroNetwork     = 204
	DatasetGSModelGeometry  = 300
	DatasetGSModelTexture   = 301
	DatasetGSModelSignature = 302
	DatasetGSModelDescr     = 303
	DatasetGSModelMaterial  = 304
	DatasetGSModelCMT       = 305
)

var datasetNames = map[int]string{
	DatasetElevation:        "Elevation",
	DatasetMinMaxElevation:  "MinMaxElevation",
	DatasetMaxCulture:       "MaxCulture",
	DatasetImagery:          "Imagery",
	DatasetRMTexture:        "RMTexture",
	DatasetRMDescriptor:     "RMDescriptor",
	DatasetGSFeature:        "GSFeature",
	DatasetGTFeature:        "GTFeature",
	DatasetGeoPolitical:     "GeoPolitical",
	DatasetVectorMaterial:   "VectorMaterial",
	DatasetRoadNetwork:      "RoadNetwork",
	DatasetRailRoadNetwork:  "RailRoadNetwork",
	DatasetPowerLineNetwork: "PowerLineNetwork",
	DatasetHydroNetwork:     "HydrographyNetwork",
	DatasetGSModelGeometry:  "GSModelGeometry",
	DatasetGSModelTexture:   "GSModelTexture",
	DatasetGSModelSignature: "GSModelSignature",
	DatasetGSModelDescr:     "GSModelDescriptor",
	DatasetGSModelMaterial:  "GSModelMaterial",
	DatasetGSModelCMT:       "GSModelCMT",
}

// DatasetName returns the directory name suffix of a dataset code.
func DatasetName(code int) string {
	if name, ok := datasetNames[code]; ok {
		return name
	}
	return "Unknown"
}

// DatasetExtension returns the file extension used for raster tiles of a
// dataset, including the leading dot.
func DatasetExtension(code int) string {
	switch code {
	case DatasetImagery:
		return ".jp2"
	case DatasetGSFeature, DatasetGTFeature, DatasetGeoPolitical, DatasetVectorMaterial,
		DatasetRoadNetwork, DatasetRailRoadNetwork, DatasetPowerLineNetwork, DatasetHydroNetwork:
		return ".shp"
	default:
		return ".tif"
	}
}

func latToken(lat int) string {
	if lat < 0 {
		return fmt.Sprintf("S%02d", -lat)
	}
	return fmt.Sprintf("N%02d", lat)
}

func lonToken(lon int) string {
	if lon < 0 {
		return fmt.Sprintf("W%03d", -lon)
	}
	return fmt.Sprintf("E%03d", lon)
}

func lodToken(lod int) string {
	if lod < 0 {
		return fmt.Sprintf("LC%02d", -lod)
	}
	return fmt.Sprintf("L%02d", lod)
}

// FileNameForTileInfo returns the file name (without extension) of a tile,
// e.g. N32W118_D001_S001_T001_L05_U3_R7.
func FileNameForTileInfo(t TileInfo) string {
	u, r := t.URef, t.RRef
	if t.LOD < 0 {
		u, r = 0, 0
	}
	return fmt.Sprintf("%s%s_D%03d_S%03d_T%03d_%s_U%d_R%d",
		latToken(t.Latitude), lonToken(t.Longitude),
		t.Dataset, t.Selector1, t.Selector2,
		lodToken(t.LOD), u, r)
}

// FilePathForTileInfo returns the slash-separated directory of a tile
// relative to a database root, e.g. Tiles/N32/W118/001_Elevation/L05/U3.
// Every LC tile lives in LC/U0.
func FilePathForTileInfo(t TileInfo) string {
	dataset := fmt.Sprintf("%03d_%s", t.Dataset, DatasetName(t.Dataset))
	level := lodToken(t.LOD)
	row := "U" + strconv.Itoa(t.URef)
	if t.LOD < 0 {
		level = "LC"
		row = "U0"
	}
	return path.Join(TilesDir, latToken(t.Latitude), lonToken(t.Longitude), dataset, level, row)
}

// FullPathForTileInfo returns the OS path of a tile file under root.
func FullPathForTileInfo(root string, t TileInfo, ext string) string {
	return filepath.Join(root, filepath.FromSlash(FilePathForTileInfo(t)), FileNameForTileInfo(t)+ext)
}

var tileNameRe = regexp.MustCompile(`(?i)^([NS])(\d{2})([EW])(\d{3})_D(\d{3})_S(\d{3})_T(\d{3})_L(C?)(\d{2})_U(\d+)_R(\d+)`)

// TileInfoForFileName parses a tile file name, optionally with directories
// (either separator) and an extension.
func TileInfoForFileName(name string) (TileInfo, error) {
	base := name
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}

	m := tileNameRe.FindStringSubmatch(base)
	if m == nil {
		return TileInfo{}, fmt.Errorf("%w: %q", ErrInvalidTileName, name)
	}
	// Anything after the R reference must be an extension.
	if rest := base[len(m[0]):]; rest != "" && rest[0] != '.' {
		return TileInfo{}, fmt.Errorf("%w: %q", ErrInvalidTileName, name)
	}

	atoi := func(s string) int {
		v, _ := strconv.Atoi(s)
		return v
	}

	t := TileInfo{
		Latitude:  atoi(m[2]),
		Longitude: atoi(m[4]),
		Dataset:   atoi(m[5]),
		Selector1: atoi(m[6]),
		Selector2: atoi(m[7]),
		LOD:       atoi(m[9]),
		URef:      atoi(m[10]),
		RRef:      atoi(m[11]),
	}
	if strings.EqualFold(m[1], "S") {
		t.Latitude = -t.Latitude
	}
	if strings.EqualFold(m[3], "W") {
		t.Longitude = -t.Longitude
	}
	if m[8] != "" {
		t.LOD = -t.LOD
	}
	return t, nil
}
