// Package config loads the YAML configuration shared by the cdbtiles
// commands.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/pspoerri/cdbtiles/internal/cdb"
	"github.com/pspoerri/cdbtiles/internal/cog"
	"github.com/pspoerri/cdbtiles/internal/coord"
	"github.com/pspoerri/cdbtiles/internal/elevation"
	"github.com/pspoerri/cdbtiles/internal/encode"
	"github.com/pspoerri/cdbtiles/internal/raster"
	"github.com/pspoerri/cdbtiles/internal/registry"
)

// Source is one elevation raster. Path may be a glob; "file.tif|N" selects
// an overview.
type Source struct {
	Path     string `yaml:"path"`
	Priority int    `yaml:"priority"`
}

// Config holds application configuration.
type Config struct {
	// Roots are CDB roots, newest overlay first. A single root is expanded
	// along its Version.xml chain.
	Roots   []string `yaml:"roots"`
	Sources []Source `yaml:"sources"`
	// CacheSizeMB of 0 sizes the block cache from system RAM.
	CacheSizeMB int    `yaml:"cache_size_mb"`
	Strategy    string `yaml:"strategy"`
	Force       bool   `yaml:"force"`
	KeepOpen    bool   `yaml:"keep_open"`
	Concurrency int    `yaml:"concurrency"`
	Format      string `yaml:"format"`
	// ReferenceEPSG is the frame points are given in; 0 means WGS84.
	ReferenceEPSG int  `yaml:"reference_epsg"`
	Verbose       bool `yaml:"verbose"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CacheSizeMB: registry.DefaultCacheBytes >> 20,
		Strategy:    elevation.Bilinear.String(),
		Concurrency: 4,
		Format:      "tif",
	}
}

// Load reads a YAML file over the defaults. Relative source paths and roots
// are resolved against the file's directory.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i, r := range cfg.Roots {
		cfg.Roots[i] = resolve(dir, r)
	}
	for i, s := range cfg.Sources {
		cfg.Sources[i].Path = resolve(dir, s.Path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// Validate checks field values.
func (c Config) Validate() error {
	if _, err := elevation.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	if _, err := encode.NewEncoder(c.Format); err != nil {
		return err
	}
	if c.CacheSizeMB < 0 {
		return fmt.Errorf("cache_size_mb must not be negative, got %d", c.CacheSizeMB)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.ReferenceEPSG != 0 && coord.ForEPSG(c.ReferenceEPSG) == nil {
		return fmt.Errorf("unsupported reference EPSG:%d", c.ReferenceEPSG)
	}
	for _, s := range c.Sources {
		if s.Path == "" {
			return fmt.Errorf("source without path")
		}
	}
	return nil
}

// Reference returns the projection for ReferenceEPSG.
func (c Config) Reference() coord.Projection {
	if c.ReferenceEPSG == 0 {
		return nil
	}
	return coord.ForEPSG(c.ReferenceEPSG)
}

// CacheBytes returns the block cache capacity in bytes.
func (c Config) CacheBytes() int64 {
	if c.CacheSizeMB == 0 {
		return registry.AutoCacheBytes(registry.DefaultCacheFraction, c.Verbose)
	}
	return int64(c.CacheSizeMB) << 20
}

// ResolveRoots returns the overlay roots to search, newest first.
func (c Config) ResolveRoots() ([]string, error) {
	switch len(c.Roots) {
	case 0:
		return nil, fmt.Errorf("no CDB roots configured")
	case 1:
		return cdb.VersionChain(c.Roots[0])
	default:
		return c.Roots, nil
	}
}

// SourcePaths expands globs in the configured sources.
func (c Config) SourcePaths() ([]Source, error) {
	var out []Source
	for _, s := range c.Sources {
		path, table := raster.SplitTable(s.Path)
		if !strings.ContainsAny(path, "*?[") {
			out = append(out, s)
			continue
		}
		matches, err := filepath.Glob(path)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", s.Path, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("source %q matches no files", s.Path)
		}
		for _, m := range matches {
			if table != "" {
				m += "|" + table
			}
			out = append(out, Source{Path: m, Priority: s.Priority})
		}
	}
	return out, nil
}

// Registry opens every source as a GeoTIFF and builds the spatial index.
// Sources that can not be opened are skipped with a log message; an error
// is returned only if none could be opened.
func (c Config) Registry() (*registry.Manager, error) {
	sources, err := c.SourcePaths()
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no elevation sources configured")
	}
	m := registry.New(registry.Options{
		CacheBytes: c.CacheBytes(),
		Opener:     cog.Opener(),
		Reference:  c.Reference(),
		KeepOpen:   c.KeepOpen,
		Verbose:    c.Verbose,
	})
	for _, s := range sources {
		if _, err := m.AddSource(s.Path, s.Priority); err != nil {
			log.Printf("WARNING: skipping source: %v", err)
		}
	}
	if len(m.Sources()) == 0 {
		m.Close()
		return nil, fmt.Errorf("none of %d sources could be opened", len(sources))
	}
	m.GenerateIndex()
	return m, nil
}
