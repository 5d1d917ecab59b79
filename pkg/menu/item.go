package menu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Item represents a single, flat menu entry as it arrives from the menu data source.
type Item struct {
	// ID is the unique identifier of the item within its owning menu.
	ID int `json:"id"`

	// ParentID references another item's ID, nil for a top-level item.
	ParentID *int `json:"parentId"`

	// DisplayOrder orders siblings ascending; ties keep input order.
	DisplayOrder int `json:"displayOrder"`

	// IsActive excludes the item, and everything below it, when false.
	IsActive Flag `json:"isActive"`

	// Text is the display label of the item.
	Text string `json:"text"`

	// URL is the navigation target. Empty means a non-clickable label.
	URL string `json:"url"`

	// OpenInNewTab controls the link target.
	OpenInNewTab Flag `json:"openInNewTab"`

	// IconRef is an opaque icon identifier passed through unchanged.
	IconRef string `json:"iconRef,omitempty"`
}

// Clickable reports whether the item links anywhere.
func (i Item) Clickable() bool {
	return strings.TrimSpace(i.URL) != ""
}

// Node is an active Item together with its ordered children.
type Node struct {
	Item

	// Children are the ordered sub-entries, empty (never nil) when there are none.
	Children []Node `json:"children"`
}

// NamedMenu is a labeled set of raw items, e.g. "Primary Navigation".
type NamedMenu struct {
	Label string `json:"label"`
	Items []Item `json:"items"`
}

// Flag is a boolean that tolerates the 0/1 encodings used by the menu source.
type Flag bool

// Bool returns the flag as a plain bool.
func (f Flag) Bool() bool { return bool(f) }

// MarshalJSON always encodes a JSON boolean.
func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(f))
}

// UnmarshalJSON accepts true/false, 0/1, their quoted forms, and null (false).
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		var err error
		if s, err = strconv.Unquote(s); err != nil {
			return fmt.Errorf("invalid flag %s: %w", data, err)
		}
	}

	v, err := ParseFlag(s)
	if err != nil {
		return err
	}
	*f = Flag(v)
	return nil
}

// ParseFlag converts the textual encodings of a boolean into a bool.
// Any non-zero integer counts as true.
func ParseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "no", "off":
		return false, nil
	case "1", "true", "yes", "on":
		return true, nil
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return false, fmt.Errorf("invalid flag %q", s)
	}
	return n != 0, nil
}
