package menu

import "strings"

// SelectMenu returns the first menu whose trimmed label equals the trimmed label.
// Menus are searched in the order the source returned them.
func SelectMenu(menus []NamedMenu, label string) (NamedMenu, bool) {
	want := strings.TrimSpace(label)
	for _, m := range menus {
		if strings.TrimSpace(m.Label) == want {
			return m, true
		}
	}
	return NamedMenu{}, false
}

// TreeFor selects the labeled menu and builds its tree with b.
// present is false when no menu carries the label.
func (b Builder) TreeFor(menus []NamedMenu, label string) (tree []Node, present bool) {
	m, ok := SelectMenu(menus, label)
	if !ok {
		return []Node{}, false
	}
	return b.Build(m.Items), true
}
