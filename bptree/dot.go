package bptree

import (
	"fmt"
	"io"

	"github.com/record-index/recidx/node"
)

// ExportDOT writes a Graphviz rendering of the tree to w: internal nodes
// with their separators and child edges, leaves with their keys and dashed
// next-links along the bottom rank. Intended for debugging small trees.
func (t *Tree) ExportDOT(w io.Writer) error {
	fmt.Fprintln(w, "digraph bptree {")
	fmt.Fprintln(w, "  graph [ranksep=0.8, nodesep=0.5, rankdir=TB];")
	fmt.Fprintln(w, "  node [shape=record, fontname=\"Helvetica\", fontsize=10];")

	var leaves []int32
	var walk func(id int32) error
	walk = func(id int32) error {
		page, err := t.pg.ReadPage(id)
		if err != nil {
			return err
		}
		leaf, err := node.IsLeaf(page)
		if err != nil {
			return fmt.Errorf("bptree: page %d: %w", id, err)
		}
		if leaf {
			l, err := node.DecodeLeaf(page)
			if err != nil {
				return fmt.Errorf("bptree: page %d: %w", id, err)
			}
			label := fmt.Sprintf("leaf %d", id)
			for _, k := range l.Keys {
				label += fmt.Sprintf("|%d", k)
			}
			fmt.Fprintf(w, "  p%d [label=\"%s\", style=filled, fillcolor=\"#d5e8d4\"];\n", id, label)
			leaves = append(leaves, id)
			return nil
		}
		in, err := node.DecodeInternal(page)
		if err != nil {
			return fmt.Errorf("bptree: page %d: %w", id, err)
		}
		label := fmt.Sprintf("node %d", id)
		for _, k := range in.Keys {
			label += fmt.Sprintf("|%d", k)
		}
		fmt.Fprintf(w, "  p%d [label=\"%s\", style=filled, fillcolor=\"#dae8fc\"];\n", id, label)
		for _, c := range in.Children {
			if err := walk(c); err != nil {
				return err
			}
			fmt.Fprintf(w, "  p%d -> p%d;\n", id, c)
		}
		return nil
	}
	if err := walk(t.root); err != nil {
		return err
	}

	if len(leaves) > 1 {
		fmt.Fprint(w, "  { rank=same;")
		for _, id := range leaves {
			fmt.Fprintf(w, " p%d;", id)
		}
		fmt.Fprintln(w, " }")
		for i := 0; i+1 < len(leaves); i++ {
			fmt.Fprintf(w, "  p%d -> p%d [style=dashed, constraint=false];\n", leaves[i], leaves[i+1])
		}
	}

	fmt.Fprintln(w, "}")
	return nil
}
