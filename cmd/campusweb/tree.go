package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mchmarny/campusweb/pkg/menu"
	"github.com/spf13/cobra"
)

const (
	formatJSON = "json"
	formatText = "text"
)

type treeOptions struct {
	depth  int
	format string
}

func newTreeCmd() *cobra.Command {
	opts := &treeOptions{}

	cmd := &cobra.Command{
		Use:   "tree [file]",
		Short: "Build a navigation tree from a JSON list of menu items",
		Long: `Reads a JSON array of menu items from file, or stdin when file is "-" or
omitted, and prints the ordered tree of active items.`,
		Example: `  campusweb tree items.json
  curl -s localhost:5000/api/menus | jq '.data[0].items' | campusweb tree --format text`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}
			return runTree(in, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.depth, "depth", menu.DefaultMaxDepth, "Number of levels to keep, top level included")
	cmd.Flags().StringVarP(&opts.format, "format", "o", formatJSON, "Output format: json or text")

	return cmd
}

func runTree(in io.Reader, out io.Writer, opts *treeOptions) error {
	if opts.depth < 1 {
		return fmt.Errorf("depth must be at least 1, got %d", opts.depth)
	}

	var items []menu.Item
	if err := json.NewDecoder(in).Decode(&items); err != nil {
		return fmt.Errorf("failed to decode menu items: %w", err)
	}

	tree := menu.Builder{MaxDepth: opts.depth}.Build(items)

	switch opts.format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	case formatText:
		return writeTree(out, tree, 0)
	default:
		return fmt.Errorf("unsupported format %q", opts.format)
	}
}

func writeTree(w io.Writer, nodes []menu.Node, level int) error {
	for _, n := range nodes {
		line := strings.Repeat("  ", level) + "- " + n.Text
		if n.Clickable() {
			line += " (" + n.URL + ")"
		}
		if n.OpenInNewTab.Bool() {
			line += " [new tab]"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if err := writeTree(w, n.Children, level+1); err != nil {
			return err
		}
	}
	return nil
}
