package bsp

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
)

func bound(minX, minY, maxX, maxY float64) orb.Bound {
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
}

func TestQueryEmpty(t *testing.T) {
	var ix Index[int]
	if got := ix.Query(0, 0); got != nil {
		t.Errorf("Query on empty index = %v", got)
	}
	ix.Generate()
	if got := ix.Query(0, 0); got != nil {
		t.Errorf("Query on empty generated index = %v", got)
	}
}

func TestQueryEpsilon(t *testing.T) {
	var ix Index[string]
	ix.Add(bound(0, 0, 1, 1), 0.01, "a")
	ix.Generate()

	if got := ix.Query(1.005, 0.5); !slices.Equal(got, []string{"a"}) {
		t.Errorf("point inside eps margin: %v", got)
	}
	if got := ix.Query(1.02, 0.5); len(got) != 0 {
		t.Errorf("point outside eps margin: %v", got)
	}
}

func TestAddInvalidatesTree(t *testing.T) {
	var ix Index[int]
	ix.Add(bound(0, 0, 1, 1), 0, 1)
	ix.Generate()
	if !ix.Generated() {
		t.Fatal("Generated() = false after Generate")
	}
	ix.Add(bound(5, 5, 6, 6), 0, 2)
	if ix.Generated() {
		t.Error("Generated() = true after Add")
	}
	// Stale trees fall back to a scan and still find the new item.
	if got := ix.Query(5.5, 5.5); !slices.Equal(got, []int{2}) {
		t.Errorf("Query = %v, want [2]", got)
	}
}

func TestGenerateOnce(t *testing.T) {
	var ix Index[int]
	for i := 0; i < 10; i++ {
		ix.Add(bound(float64(i), 0, float64(i)+1, 1), 0, i)
	}
	ix.Generate()
	nodes, depth := len(ix.nodes), ix.Depth()

	// Bypass Add so the tree is not marked stale; a second Generate must
	// keep the existing tree.
	ix.items = append(ix.items, item[int]{bound: bound(100, 100, 101, 101), value: 99})
	ix.Generate()
	if len(ix.nodes) != nodes || ix.Depth() != depth {
		t.Errorf("second Generate rebuilt the tree: %d nodes depth %d, want %d depth %d", len(ix.nodes), ix.Depth(), nodes, depth)
	}
	if got := ix.Query(100.5, 100.5); len(got) != 0 {
		t.Errorf("Query = %v, want the tree unchanged", got)
	}

	// Add marks the tree stale and the next Generate covers every item.
	ix.Add(bound(200, 200, 201, 201), 0, 100)
	ix.Generate()
	if got := ix.Query(100.5, 100.5); !slices.Equal(got, []int{99}) {
		t.Errorf("Query after rebuild = %v, want [99]", got)
	}
}

func TestQueryMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	type box struct {
		b   orb.Bound
		eps float64
	}
	var boxes []box
	var ix Index[int]
	for i := 0; i < 500; i++ {
		x, y := rng.Float64()*100, rng.Float64()*50
		w, h := rng.Float64()*5, rng.Float64()*5
		if i%50 == 0 {
			// A few large boxes straddle every split.
			w, h = 60, 30
		}
		b := bound(x, y, x+w, y+h)
		eps := rng.Float64() * 0.01
		boxes = append(boxes, box{b, eps})
		ix.Add(b, eps, i)
	}
	ix.Generate()
	if ix.Depth() == 0 || ix.Depth() > maxDepth {
		t.Errorf("Depth = %d", ix.Depth())
	}

	for q := 0; q < 2000; q++ {
		x, y := rng.Float64()*110-5, rng.Float64()*60-5
		if q%10 == 0 {
			// Exactly on an edge.
			bx := boxes[rng.Intn(len(boxes))]
			x, y = bx.b.Max.X()+bx.eps, bx.b.Min.Y()
		}
		var want []int
		for i, bx := range boxes {
			if x >= bx.b.Min.X()-bx.eps && x <= bx.b.Max.X()+bx.eps &&
				y >= bx.b.Min.Y()-bx.eps && y <= bx.b.Max.Y()+bx.eps {
				want = append(want, i)
			}
		}
		got := ix.Query(x, y)
		slices.Sort(got)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("Query(%v, %v) mismatch (-scan +tree):\n%s", x, y, diff)
		}
	}
}

func TestIdenticalBoundsHitDepthCap(t *testing.T) {
	var ix Index[int]
	for i := 0; i < 100; i++ {
		ix.Add(bound(0, 0, 1, 1), 0, i)
	}
	ix.Generate()
	if ix.Depth() > maxDepth {
		t.Errorf("Depth = %d, want <= %d", ix.Depth(), maxDepth)
	}
	if got := ix.Query(0.5, 0.5); len(got) != 100 {
		t.Errorf("Query returned %d items, want 100", len(got))
	}
}
