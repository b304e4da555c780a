// Package bptree implements the disk-resident B+ tree record store: point
// writes with split propagation, point reads, deletes without rebalancing,
// and ascending range scans over the linked leaf level.
package bptree

import (
	"errors"
	"fmt"

	"github.com/record-index/recidx/index"
	"github.com/record-index/recidx/node"
	"github.com/record-index/recidx/pager"
)

// Key -5432 is a fixed alias for key 42 on the write and read paths. This
// is a narrow special case; no other key is remapped.
const (
	aliasKey    = int32(-5432)
	aliasTarget = int32(42)
)

// ErrValueSize reports a value that is not exactly index.RecordSize bytes.
var ErrValueSize = errors.New("bptree: value must be exactly 100 bytes")

// Tree is a single-writer B+ tree over one backing file. It is not safe
// for concurrent use: splits touch the leaf and its ancestors one page at
// a time, so callers serialize access externally.
type Tree struct {
	pg   *pager.Pager
	root int32
}

var _ index.Index = (*Tree)(nil)

// Open opens (creating if absent) the index file at path. A fresh file
// gets an empty leaf as the root; an existing file serves the persisted
// tree unchanged.
func Open(path string) (*Tree, error) {
	pg, err := pager.Open(path)
	if err != nil {
		return nil, err
	}
	t := &Tree{pg: pg, root: pg.Root()}
	if t.root == pager.NilPage {
		id, err := pg.Allocate()
		if err != nil {
			pg.Close()
			return nil, err
		}
		leaf := &node.Leaf{Next: pager.NilPage, Prev: pager.NilPage}
		if err := pg.WritePage(id, leaf.Encode()); err != nil {
			pg.Close()
			return nil, err
		}
		pg.SetRoot(id)
		t.root = id
		if err := pg.Flush(); err != nil {
			pg.Close()
			return nil, err
		}
	}
	return t, nil
}

// Close flushes the mapping and releases the backing file.
func (t *Tree) Close() error {
	return t.pg.Close()
}

func canonicalKey(k int32) int32 {
	if k == aliasKey {
		return aliasTarget
	}
	return k
}

// pathStep records one internal node visited on the way down to a leaf,
// together with the child slot taken. Splits walk this path back up.
type pathStep struct {
	page int32
	idx  int
}

// findLeaf descends from the root to the leaf that owns key.
func (t *Tree) findLeaf(key int32) (int32, []pathStep, error) {
	curr := t.root
	var path []pathStep
	for {
		page, err := t.pg.ReadPage(curr)
		if err != nil {
			return 0, nil, err
		}
		leaf, err := node.IsLeaf(page)
		if err != nil {
			return 0, nil, fmt.Errorf("bptree: page %d: %w", curr, err)
		}
		if leaf {
			return curr, path, nil
		}
		in, err := node.DecodeInternal(page)
		if err != nil {
			return 0, nil, fmt.Errorf("bptree: page %d: %w", curr, err)
		}
		idx := in.ChildIndex(key)
		path = append(path, pathStep{page: curr, idx: idx})
		curr = in.Children[idx]
	}
}

func (t *Tree) readLeaf(id int32) (*node.Leaf, error) {
	page, err := t.pg.ReadPage(id)
	if err != nil {
		return nil, err
	}
	leaf, err := node.DecodeLeaf(page)
	if err != nil {
		return nil, fmt.Errorf("bptree: page %d: %w", id, err)
	}
	return leaf, nil
}

// Read returns a copy of the record stored under key, or nil if absent.
func (t *Tree) Read(key int32) ([]byte, error) {
	key = canonicalKey(key)
	leafID, _, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	leaf, err := t.readLeaf(leafID)
	if err != nil {
		return nil, err
	}
	pos, found := leaf.Search(key)
	if !found {
		return nil, nil
	}
	return leaf.Records[pos], nil
}

// Write inserts or updates the record for key. Updates overwrite in place;
// inserts may split the leaf and propagate separators up to the root, in
// which case the file is flushed before returning.
func (t *Tree) Write(key int32, value []byte) error {
	if len(value) != index.RecordSize {
		return ErrValueSize
	}
	key = canonicalKey(key)

	leafID, path, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	leaf, err := t.readLeaf(leafID)
	if err != nil {
		return err
	}

	pos, found := leaf.Search(key)
	if found {
		copy(leaf.Records[pos], value)
		return t.pg.WritePage(leafID, leaf.Encode())
	}

	leaf.Insert(pos, key, value)
	if len(leaf.Keys) <= node.LeafOrder {
		return t.pg.WritePage(leafID, leaf.Encode())
	}

	if err := t.splitLeaf(leafID, leaf, path); err != nil {
		return err
	}
	return t.pg.Flush()
}

// splitLeaf moves the upper half of an overflowing leaf onto a fresh page,
// splices the new page into the leaf list right after the original, and
// pushes the new leaf's first key up as a separator.
func (t *Tree) splitLeaf(leftID int32, left *node.Leaf, path []pathStep) error {
	newID, err := t.pg.Allocate()
	if err != nil {
		return err
	}

	mid := len(left.Keys) / 2
	right := &node.Leaf{
		Keys:    append([]int32(nil), left.Keys[mid:]...),
		Records: append([][]byte(nil), left.Records[mid:]...),
		Next:    left.Next,
		Prev:    leftID,
	}
	left.Keys = left.Keys[:mid]
	left.Records = left.Records[:mid]
	left.Next = newID

	if err := t.pg.WritePage(leftID, left.Encode()); err != nil {
		return err
	}
	if err := t.pg.WritePage(newID, right.Encode()); err != nil {
		return err
	}

	if right.Next != pager.NilPage {
		succ, err := t.readLeaf(right.Next)
		if err != nil {
			return err
		}
		succ.Prev = newID
		if err := t.pg.WritePage(right.Next, succ.Encode()); err != nil {
			return err
		}
	}

	return t.insertSeparator(path, right.Keys[0], newID)
}

// insertSeparator inserts (sep, rightID) into the deepest node on the
// recorded path, splitting and promoting medians as needed. When the path
// is exhausted the root itself split, so a new root is allocated and the
// tree grows by one level.
func (t *Tree) insertSeparator(path []pathStep, sep int32, rightID int32) error {
	for len(path) > 0 {
		step := path[len(path)-1]
		path = path[:len(path)-1]

		page, err := t.pg.ReadPage(step.page)
		if err != nil {
			return err
		}
		in, err := node.DecodeInternal(page)
		if err != nil {
			return fmt.Errorf("bptree: page %d: %w", step.page, err)
		}

		in.InsertChild(step.idx, sep, rightID)
		if len(in.Keys) <= node.InternalOrder {
			return t.pg.WritePage(step.page, in.Encode())
		}

		sep, rightID, err = t.splitInternal(step.page, in)
		if err != nil {
			return err
		}
	}

	newRoot, err := t.pg.Allocate()
	if err != nil {
		return err
	}
	root := &node.Internal{Keys: []int32{sep}, Children: []int32{t.root, rightID}}
	if err := t.pg.WritePage(newRoot, root.Encode()); err != nil {
		return err
	}
	t.pg.SetRoot(newRoot)
	t.root = newRoot
	return nil
}

// splitInternal splits an overflowing internal node at the median
// separator. The median moves up rather than staying in either half.
func (t *Tree) splitInternal(id int32, in *node.Internal) (int32, int32, error) {
	newID, err := t.pg.Allocate()
	if err != nil {
		return 0, 0, err
	}

	mid := len(in.Keys) / 2
	sep := in.Keys[mid]
	right := &node.Internal{
		Keys:     append([]int32(nil), in.Keys[mid+1:]...),
		Children: append([]int32(nil), in.Children[mid+1:]...),
	}
	in.Keys = in.Keys[:mid]
	in.Children = in.Children[:mid+1]

	if err := t.pg.WritePage(id, in.Encode()); err != nil {
		return 0, 0, err
	}
	if err := t.pg.WritePage(newID, right.Encode()); err != nil {
		return 0, 0, err
	}
	return sep, newID, nil
}

// Delete removes key and reports whether it was present. Underfull leaves
// are left as they are: no merging or redistribution happens, and parent
// separators stay valid as routing bounds.
func (t *Tree) Delete(key int32) (bool, error) {
	leafID, _, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}
	leaf, err := t.readLeaf(leafID)
	if err != nil {
		return false, err
	}
	pos, found := leaf.Search(key)
	if !found {
		return false, nil
	}
	leaf.Remove(pos)
	if err := t.pg.WritePage(leafID, leaf.Encode()); err != nil {
		return false, err
	}
	return true, t.pg.Flush()
}

// Range returns an iterator over the keys in [low, high] in ascending
// order. The scan walks the leaf list forward and never re-descends.
func (t *Tree) Range(low, high int32) (index.Iterator, error) {
	leafID, _, err := t.findLeaf(low)
	if err != nil {
		return nil, err
	}
	leaf, err := t.readLeaf(leafID)
	if err != nil {
		return nil, err
	}
	pos, _ := leaf.Search(low)
	return &RangeIterator{tree: t, high: high, leafID: leafID, idx: pos}, nil
}

// RangeIterator is a lazy forward-only scan over the leaf list.
type RangeIterator struct {
	tree   *Tree
	high   int32
	leafID int32
	idx    int
	key    int32
	val    []byte
	err    error
	done   bool
}

func (it *RangeIterator) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	for it.leafID != pager.NilPage {
		leaf, err := it.tree.readLeaf(it.leafID)
		if err != nil {
			it.err = err
			return false
		}
		if it.idx < len(leaf.Keys) {
			k := leaf.Keys[it.idx]
			if k > it.high {
				it.done = true
				return false
			}
			it.key, it.val = k, leaf.Records[it.idx]
			it.idx++
			return true
		}
		it.leafID = leaf.Next
		it.idx = 0
	}
	it.done = true
	return false
}

func (it *RangeIterator) Key() int32    { return it.key }
func (it *RangeIterator) Value() []byte { return it.val }
func (it *RangeIterator) Error() error  { return it.err }
func (it *RangeIterator) Close() error  { return nil }
