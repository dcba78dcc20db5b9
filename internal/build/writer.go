package build

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pspoerri/cdbtiles/internal/cdb"
)

// TileWriter stores encoded tiles.
type TileWriter interface {
	WriteTile(t cdb.TileInfo, ext string, data []byte) error
}

// DirWriter writes tiles into the CDB layout below Root.
type DirWriter struct {
	Root string
}

// WriteTile writes data to a temporary file next to the tile's path and
// renames it into place, so readers never see partial tiles.
func (w *DirWriter) WriteTile(t cdb.TileInfo, ext string, data []byte) error {
	path := cdb.FullPathForTileInfo(w.Root, t, ext)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".tile-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
