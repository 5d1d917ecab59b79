package menu

import "strings"

// FallbackCondition reports whether a synthetic fallback entry belongs in tree:
// the named menu exists in the source data, its fetch has settled, and it
// resolved to no active top-level items.
func FallbackCondition(present, loading bool, tree []Node) bool {
	return present && !loading && len(tree) == 0
}

// AppendFallbackIfEmpty appends fallback to tree when condition holds and no
// top-level node already carries the fallback's text. The appended copy gets a
// display order above every existing entry so it sorts last. tree itself is not
// modified; the result shares no backing array with it when an entry is added.
func AppendFallbackIfEmpty(tree []Node, condition bool, fallback Node) []Node {
	if !condition || HasText(tree, fallback.Text) {
		return tree
	}

	order := fallback.DisplayOrder
	for _, n := range tree {
		if n.DisplayOrder >= order {
			order = n.DisplayOrder + 1
		}
	}

	fb := fallback
	fb.DisplayOrder = order
	fb.IsActive = true
	if fb.Children == nil {
		fb.Children = []Node{}
	}

	out := make([]Node, 0, len(tree)+1)
	out = append(out, tree...)
	return append(out, fb)
}

// HasText reports whether a top-level node's trimmed text equals text.
func HasText(tree []Node, text string) bool {
	want := strings.TrimSpace(text)
	for _, n := range tree {
		if strings.TrimSpace(n.Text) == want {
			return true
		}
	}
	return false
}
