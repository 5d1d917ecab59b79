// Package nav composes the header, mobile and footer navigation regions from
// the named menus held by the store.
package nav

import (
	"github.com/mchmarny/campusweb/pkg/menu"
)

// Labels names the menus that populate each navigation region.
type Labels struct {
	Primary      string   `json:"primary" yaml:"primary"`
	Mobile       string   `json:"mobile" yaml:"mobile"`
	MobileTopBar string   `json:"mobile_top_bar" yaml:"mobile_top_bar"`
	Footer       []string `json:"footer" yaml:"footer"`
}

// DefaultLabels returns the menu labels the CMS ships with.
func DefaultLabels() Labels {
	return Labels{
		Primary:      "Primary Navigation",
		Mobile:       "Mobile Menu",
		MobileTopBar: "Mobile Top Bar",
		Footer:       []string{"Quick Links", "Programs", "Resources"},
	}
}

// Fallback is the synthetic entry shown when a top menu turns out empty.
type Fallback struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	Text         string `json:"text" yaml:"text"`
	URL          string `json:"url" yaml:"url"`
	OpenInNewTab bool   `json:"open_in_new_tab" yaml:"open_in_new_tab"`
}

// DefaultFallback returns the Login link fallback.
func DefaultFallback() Fallback {
	return Fallback{
		Enabled: true,
		Text:    "Login",
		URL:     "/login",
	}
}

// Node returns the fallback as a menu node.
func (f Fallback) Node() menu.Node {
	return menu.Node{
		Item: menu.Item{
			IsActive:     true,
			Text:         f.Text,
			URL:          f.URL,
			OpenInNewTab: menu.Flag(f.OpenInNewTab),
		},
		Children: []menu.Node{},
	}
}

// Section is one labeled footer column.
type Section struct {
	Label string      `json:"label"`
	Items []menu.Node `json:"items"`
}

// Navigation holds the rendered trees of every region.
type Navigation struct {
	Desktop []menu.Node `json:"desktop"`
	Mobile  []menu.Node `json:"mobile"`
	Footer  []Section   `json:"footer"`
	Loading bool        `json:"loading"`
}

// Composer derives Navigation from named menus. It holds no state, so the
// result depends only on the menus and the loading flag passed in.
type Composer struct {
	Labels   Labels
	Fallback Fallback
	Builder  menu.Builder
}

// NewComposer returns a Composer with the default labels and fallback.
func NewComposer() Composer {
	return Composer{
		Labels:   DefaultLabels(),
		Fallback: DefaultFallback(),
	}
}

// Compose builds every region. loading must be true while the menus have not
// settled; no fallback entry is added in that case.
func (c Composer) Compose(menus []menu.NamedMenu, loading bool) Navigation {
	fb := c.Fallback.Node()

	desktop, primaryPresent := c.tree(menus, c.Labels.Primary)
	desktopOut := menu.AppendFallbackIfEmpty(desktop,
		c.Fallback.Enabled && menu.FallbackCondition(primaryPresent, loading, desktop), fb)

	mobile, _ := c.tree(menus, c.Labels.Mobile)
	topBar, topBarPresent := c.tree(menus, c.Labels.MobileTopBar)

	merged := make([]menu.Node, 0, len(mobile)+len(topBar))
	merged = append(merged, mobile...)
	merged = append(merged, topBar...)
	if len(merged) == 0 {
		merged = append(merged, desktop...)
	}

	anyTopEmpty := menu.FallbackCondition(primaryPresent, loading, desktop) ||
		menu.FallbackCondition(topBarPresent, loading, topBar)
	mobileOut := menu.AppendFallbackIfEmpty(merged, c.Fallback.Enabled && anyTopEmpty, fb)

	footer := make([]Section, 0, len(c.Labels.Footer))
	for _, label := range c.Labels.Footer {
		tree, ok := c.tree(menus, label)
		if !ok {
			continue
		}
		footer = append(footer, Section{Label: label, Items: tree})
	}

	return Navigation{
		Desktop: desktopOut,
		Mobile:  mobileOut,
		Footer:  footer,
		Loading: loading,
	}
}

func (c Composer) tree(menus []menu.NamedMenu, label string) ([]menu.Node, bool) {
	if label == "" {
		return []menu.Node{}, false
	}
	return c.Builder.TreeFor(menus, label)
}
