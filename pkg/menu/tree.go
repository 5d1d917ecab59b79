package menu

import (
	"cmp"
	"slices"
)

// DefaultMaxDepth is the number of levels BuildTree produces: parents and their children.
const DefaultMaxDepth = 2

// BuildTree turns a flat item list into an ordered two-level tree of active nodes.
// Inactive items and everything below them are omitted, as are items whose
// parent is not an active top-level item. It never fails and never returns nil.
func BuildTree(items []Item) []Node {
	return Builder{MaxDepth: DefaultMaxDepth}.Build(items)
}

// Builder builds menu trees with a configurable nesting depth.
// The zero value behaves like BuildTree.
type Builder struct {
	// MaxDepth is the number of levels kept, top level included.
	// Items nested deeper are dropped. Values below 1 mean DefaultMaxDepth.
	MaxDepth int
}

// Build returns the ordered tree of active items. A node whose ID already
// appears among its ancestors is skipped, so cyclic parent chains terminate.
func (b Builder) Build(items []Item) []Node {
	depth := b.MaxDepth
	if depth < 1 {
		depth = DefaultMaxDepth
	}

	roots := make([]Item, 0, len(items))
	byParent := make(map[int][]Item)

	for _, it := range items {
		if !it.IsActive.Bool() {
			continue
		}
		if it.ParentID == nil {
			roots = append(roots, it)
			continue
		}
		byParent[*it.ParentID] = append(byParent[*it.ParentID], it)
	}

	return attach(roots, byParent, 1, depth, nil)
}

func attach(level []Item, byParent map[int][]Item, depth, maxDepth int, path []int) []Node {
	sorted := slices.Clone(level)
	slices.SortStableFunc(sorted, func(a, b Item) int {
		return cmp.Compare(a.DisplayOrder, b.DisplayOrder)
	})

	nodes := make([]Node, 0, len(sorted))
	for _, it := range sorted {
		if slices.Contains(path, it.ID) {
			continue
		}

		n := Node{Item: it, Children: []Node{}}
		if depth < maxDepth {
			n.Children = attach(byParent[it.ID], byParent, depth+1, maxDepth, append(slices.Clip(path), it.ID))
		}
		nodes = append(nodes, n)
	}

	return nodes
}

// Count returns the number of nodes in the tree, all levels included.
func Count(tree []Node) int {
	n := 0
	for _, node := range tree {
		n += 1 + Count(node.Children)
	}
	return n
}
