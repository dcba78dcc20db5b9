// Package bsp is a binary space partition over bounding boxes, used to find
// the raster sources covering a point.
package bsp

import (
	"github.com/paulmach/orb"
)

const (
	// leafSize is the item count below which a node is not split.
	leafSize = 4
	// maxDepth caps the recursion.
	maxDepth = 20
)

type axis uint8

const (
	vertical   axis = iota // split on x
	horizontal             // split on y
)

func (a axis) flip() axis { return 1 - a }

func (a axis) coord(p orb.Point) float64 {
	if a == vertical {
		return p.X()
	}
	return p.Y()
}

type item[T any] struct {
	bound orb.Bound // expanded by eps
	value T
}

// node is an arena entry; children are indices into Index.nodes, -1 if absent.
type node struct {
	axis        axis
	split       float64
	left, right int32
	items       []int32
}

// Index is a BSP tree over items with bounding boxes. Items are added first;
// Generate builds the tree once. The tree is read-only afterwards and safe
// for concurrent queries.
type Index[T any] struct {
	items     []item[T]
	nodes     []node
	generated bool
	depth     int
}

// Add registers v with bound, expanded on every side by eps to tolerate edge
// rounding. Adding after Generate leaves the new item out of the tree until
// Generate is called again.
func (ix *Index[T]) Add(bound orb.Bound, eps float64, v T) {
	b := orb.Bound{
		Min: orb.Point{bound.Min.X() - eps, bound.Min.Y() - eps},
		Max: orb.Point{bound.Max.X() + eps, bound.Max.Y() + eps},
	}
	ix.items = append(ix.items, item[T]{bound: b, value: v})
	ix.generated = false
}

// Len returns the number of items.
func (ix *Index[T]) Len() int { return len(ix.items) }

// Generated reports whether the tree is built and covers every item.
func (ix *Index[T]) Generated() bool { return ix.generated }

// Depth returns the depth of the deepest node of the built tree.
func (ix *Index[T]) Depth() int { return ix.depth }

// Generate builds the tree over all items added so far. It does nothing if
// the tree is already current.
func (ix *Index[T]) Generate() {
	if ix.generated {
		return
	}
	ix.nodes = ix.nodes[:0]
	ix.depth = 0
	all := make([]int32, len(ix.items))
	for i := range all {
		all[i] = int32(i)
	}
	ix.build(all, vertical, 0)
	ix.generated = true
}

func (ix *Index[T]) build(items []int32, a axis, depth int) int32 {
	id := int32(len(ix.nodes))
	ix.nodes = append(ix.nodes, node{axis: a, left: -1, right: -1})
	ix.depth = max(ix.depth, depth)

	if len(items) < leafSize || depth >= maxDepth {
		ix.nodes[id].items = items
		return id
	}

	var sum float64
	for _, i := range items {
		sum += a.coord(ix.items[i].bound.Center())
	}
	split := sum / float64(len(items))

	var left, right, here []int32
	for _, i := range items {
		b := ix.items[i].bound
		switch {
		case a.coord(b.Max) < split:
			left = append(left, i)
		case a.coord(b.Min) > split:
			right = append(right, i)
		default:
			here = append(here, i)
		}
	}

	ix.nodes[id].split = split
	ix.nodes[id].items = here
	if len(left) > 0 {
		l := ix.build(left, a.flip(), depth+1)
		ix.nodes[id].left = l
	}
	if len(right) > 0 {
		r := ix.build(right, a.flip(), depth+1)
		ix.nodes[id].right = r
	}
	return id
}

// Query returns the values of every item whose expanded bound contains
// (x, y). Without a generated tree it scans all items.
func (ix *Index[T]) Query(x, y float64) []T {
	p := orb.Point{x, y}
	var out []T
	if !ix.generated {
		for _, it := range ix.items {
			if it.bound.Contains(p) {
				out = append(out, it.value)
			}
		}
		return out
	}
	if len(ix.nodes) == 0 {
		return nil
	}

	stack := []int32{0}
	for len(stack) > 0 {
		n := &ix.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		for _, i := range n.items {
			if ix.items[i].bound.Contains(p) {
				out = append(out, ix.items[i].value)
			}
		}
		c := n.axis.coord(p)
		if n.left >= 0 && c <= n.split {
			stack = append(stack, n.left)
		}
		if n.right >= 0 && c >= n.split {
			stack = append(stack, n.right)
		}
	}
	return out
}
