package raster

// DataPost is one grid post near a sample point, in the reference frame. It
// refers to, but does not own, its source and must not outlive the registry.
type DataPost struct {
	X, Y     float64
	Col, Row int
	Source   *Source

	value  float64
	err    error
	loaded bool
}

// NewDataPost returns a post whose value is fetched on first use.
func NewDataPost(s *Source, col, row int, x, y float64) DataPost {
	return DataPost{X: x, Y: y, Col: col, Row: row, Source: s}
}

// Value returns the post's elevation, reading it through the source's block
// cache on first use.
func (p *DataPost) Value() (float64, error) {
	if !p.loaded {
		p.value, p.err = p.Source.Value(p.Col, p.Row)
		p.loaded = true
	}
	return p.value, p.err
}
