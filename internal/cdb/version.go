package cdb

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrVersionCycle is returned when the previous-root chain loops back on itself.
var ErrVersionCycle = errors.New("version chain contains a cycle")

// VersionFile is the overlay marker, relative to a database root.
const VersionFile = "Metadata/Version.xml"

// maxVersionChain bounds the number of overlays followed from one root.
const maxVersionChain = 256

// Version is the overlay marker of one database root.
type Version struct {
	XMLName  xml.Name         `xml:"Version"`
	Previous *PreviousVersion `xml:"PreviousIncrementalRootDirectory,omitempty"`
	Comment  string           `xml:"Comment,omitempty"`
}

// PreviousVersion names the root this overlay was layered on, relative to it.
type PreviousVersion struct {
	Name string `xml:"name,attr"`
}

// ReadVersion reads the overlay marker of root. A root without a marker is a
// base database and yields a zero Version.
func ReadVersion(root string) (Version, error) {
	var v Version
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(VersionFile)))
	if errors.Is(err, os.ErrNotExist) {
		return v, nil
	}
	if err != nil {
		return v, fmt.Errorf("reading version of %s: %w", root, err)
	}
	if err := xml.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("parsing version of %s: %w", root, err)
	}
	return v, nil
}

// WriteVersion writes the overlay marker of root, declaring previous (a path
// relative to root, or "" for a base database).
func WriteVersion(root, previous, comment string) error {
	v := Version{Comment: comment}
	if previous != "" {
		v.Previous = &PreviousVersion{Name: previous}
	}
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	p := filepath.Join(root, filepath.FromSlash(VersionFile))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating metadata dir: %w", err)
	}
	return os.WriteFile(p, append([]byte(xml.Header), data...), 0o644)
}

// VersionChain returns root followed by every previous overlay root, newest
// first, by repeatedly reading the overlay marker.
func VersionChain(root string) ([]string, error) {
	var chain []string
	seen := make(map[string]bool)

	cur := filepath.Clean(root)
	for len(chain) < maxVersionChain {
		abs, err := filepath.Abs(cur)
		if err != nil {
			return nil, err
		}
		if seen[abs] {
			return chain, fmt.Errorf("%w: %s", ErrVersionCycle, cur)
		}
		seen[abs] = true
		chain = append(chain, cur)

		v, err := ReadVersion(cur)
		if err != nil {
			return chain, err
		}
		if v.Previous == nil || v.Previous.Name == "" {
			return chain, nil
		}
		prev := filepath.FromSlash(v.Previous.Name)
		if !filepath.IsAbs(prev) {
			prev = filepath.Join(cur, prev)
		}
		cur = filepath.Clean(prev)
	}
	return chain, fmt.Errorf("version chain of %s exceeds %d roots", root, maxVersionChain)
}
