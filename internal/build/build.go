// Package build renders elevation tiles into a CDB directory tree by
// sampling an elevation engine at every post of every target tile.
package build

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/pspoerri/cdbtiles/internal/cdb"
	"github.com/pspoerri/cdbtiles/internal/coord"
	"github.com/pspoerri/cdbtiles/internal/elevation"
	"github.com/pspoerri/cdbtiles/internal/encode"
	"github.com/pspoerri/cdbtiles/internal/raster"
)

// Config holds tile generation configuration.
type Config struct {
	Bounds    cdb.Bounds
	MinLOD    int
	MaxLOD    int
	Dataset   int
	Selector1 int
	Selector2 int

	Strategy    elevation.Strategy
	Force       bool
	Concurrency int
	Encoder     encode.Encoder
	Progress    bool
	Verbose     bool
}

// Stats holds generation statistics.
type Stats struct {
	Tiles  int64 // tiles written
	Empty  int64 // tiles skipped for lack of data
	Posts  int64 // posts holding an elevation
	Failed int64 // posts lost to decode errors or force policy
	Bytes  int64
}

func (c *Config) defaults() error {
	if c.Encoder == nil {
		return errors.New("no tile encoder")
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Dataset == 0 {
		c.Dataset = cdb.DatasetElevation
	}
	if c.Selector1 == 0 {
		c.Selector1 = 1
	}
	if c.Selector2 == 0 {
		c.Selector2 = 1
	}
	if c.MinLOD < cdb.MinLOD || c.MaxLOD > cdb.MaxLOD || c.MinLOD > c.MaxLOD {
		return fmt.Errorf("invalid LOD range %d..%d", c.MinLOD, c.MaxLOD)
	}
	return nil
}

// Build produces tiles for every LOD and writes them via w. Each worker
// samples through its own elevation engine. Cancelling ctx stops new tiles
// from being started.
func Build(ctx context.Context, cfg Config, provider elevation.PostProvider, w TileWriter) (Stats, error) {
	if err := cfg.defaults(); err != nil {
		return Stats{}, err
	}
	var ref coord.Projection
	if r, ok := provider.(interface{ Reference() coord.Projection }); ok {
		ref = r.Reference()
	}

	var tiles, empty, posts, failed, bytes atomic.Int64

	// Process levels of detail from coarsest to finest.
	for lod := cfg.MinLOD; lod <= cfg.MaxLOD; lod++ {
		jobs, err := cdb.TileInfosForBounds(cfg.Bounds, cfg.Dataset, cfg.Selector1, cfg.Selector2, lod)
		if err != nil {
			return Stats{}, err
		}
		SortTiles(jobs)

		if cfg.Verbose {
			log.Printf("LOD %d: %d tiles to generate", lod, len(jobs))
		}
		if len(jobs) == 0 {
			continue
		}

		var bar *progressbar.ProgressBar
		if cfg.Progress {
			bar = progressbar.Default(int64(len(jobs)), fmt.Sprintf("LOD %d", lod))
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Concurrency)
		engines := make(chan *elevation.Engine, cfg.Concurrency)

	submit:
		for _, t := range jobs {
			select {
			case <-gctx.Done():
				break submit
			default:
			}
			g.Go(func() error {
				var e *elevation.Engine
				select {
				case e = <-engines:
				default:
					e = elevation.New(provider, cfg.Strategy, cfg.Force)
				}
				defer func() { engines <- e }()

				grid, st, err := renderTile(gctx, t, e, ref)
				if err != nil {
					return err
				}
				posts.Add(st.posts)
				failed.Add(st.failed)
				if bar != nil {
					bar.Add(1)
				}
				if grid.Empty() {
					empty.Add(1)
					return nil
				}

				data, err := cfg.Encoder.Encode(grid)
				if err != nil {
					return fmt.Errorf("encoding tile %s: %w", t, err)
				}
				if err := w.WriteTile(t, cfg.Encoder.FileExtension(), data); err != nil {
					return fmt.Errorf("writing tile %s: %w", t, err)
				}
				tiles.Add(1)
				bytes.Add(int64(len(data)))
				return nil
			})
		}
		err = g.Wait()
		if bar != nil {
			bar.Finish()
		}
		if err != nil {
			return Stats{}, err
		}
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}

		if cfg.Verbose {
			log.Printf("LOD %d: completed (%d tiles so far, %d empty, %d failed posts)",
				lod, tiles.Load(), empty.Load(), failed.Load())
		}
	}

	return Stats{
		Tiles:  tiles.Load(),
		Empty:  empty.Load(),
		Posts:  posts.Load(),
		Failed: failed.Load(),
		Bytes:  bytes.Load(),
	}, nil
}

type tileStats struct {
	posts, failed int64
}

// renderTile samples the engine at every post center of t.
func renderTile(ctx context.Context, t cdb.TileInfo, e *elevation.Engine, ref coord.Projection) (*encode.Grid, tileStats, error) {
	ri := cdb.RasterInfoForTileInfo(t)
	gt := raster.NorthUp(ri.OriginX, ri.OriginY, ri.PixelSizeX, -ri.PixelSizeY)
	grid := encode.NewGrid(ri.Width, ri.Height, gt, 4326)

	var st tileStats
	for row := 0; row < ri.Height; row++ {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}
		for col := 0; col < ri.Width; col++ {
			lon, lat := ri.PostCenter(col, row)
			x, y := coord.Transform(nil, ref, lon, lat)
			z, err := e.Elevation(x, y)
			switch {
			case err == nil:
				grid.Values[row*ri.Width+col] = z
				st.posts++
			case errors.Is(err, elevation.ErrNoData):
			default:
				st.failed++
			}
		}
	}
	return grid, st, nil
}
