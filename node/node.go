// Package node encodes and decodes the two B+ tree node kinds to and from
// the fixed on-disk page format.
//
// Every node occupies one 4096-byte page. Byte 0 is the kind discriminant,
// bytes 1-2 the entry count. All integers are little endian. Leaf layout:
//
//	[0]     byte    kindLeaf
//	[1-2]   uint16  number of entries
//	[3-6]   int32   next leaf page number (-1 if none)
//	[7-10]  int32   previous leaf page number (-1 if none)
//	[11+]   entries — int32 key + 100-byte record, 104 bytes each
//
// Internal layout:
//
//	[0]     byte    kindInternal
//	[1-2]   uint16  number of separator keys
//	[3-6]   int32   child 0 page number
//	[7+]    slots — int32 separator key + int32 right child, 8 bytes each
//
// Unused slots stay zero-filled; encoding always starts from a fresh zeroed
// buffer so that decode(encode(n)) round-trips byte-for-byte.
package node

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/record-index/recidx/index"
	"github.com/record-index/recidx/pager"
)

const (
	// LeafOrder is the maximum number of entries in a leaf.
	LeafOrder = 36
	// InternalOrder is the maximum number of separator keys in an
	// internal node, which then carries InternalOrder+1 children.
	InternalOrder = 340

	kindInternal = byte(0)
	kindLeaf     = byte(1)

	offKind  = 0
	offCount = 1

	offNext      = 3
	offPrev      = 7
	offLeafSlots = 11
	leafSlotSize = 4 + index.RecordSize

	offChild0        = 3
	offInternalSlots = 7
	internalSlotSize = 8
)

// ErrCorruptPage reports a page whose discriminant or count is inconsistent
// with the node format.
var ErrCorruptPage = errors.New("node: corrupt page")

// Leaf is the decoded form of a leaf page: sorted key/record entries plus
// the sibling links of the leaf list.
type Leaf struct {
	Keys    []int32
	Records [][]byte // each exactly index.RecordSize bytes
	Next    int32
	Prev    int32
}

// Internal is the decoded form of a routing page. Children[i] holds all
// keys below Keys[i]; the last child holds everything at or above the last
// separator. len(Children) == len(Keys)+1 always.
type Internal struct {
	Keys     []int32
	Children []int32
}

// IsLeaf inspects a page's discriminant without decoding the rest.
func IsLeaf(page []byte) (bool, error) {
	if len(page) != pager.PageSize {
		return false, fmt.Errorf("%w: %d bytes, want %d", ErrCorruptPage, len(page), pager.PageSize)
	}
	switch page[offKind] {
	case kindLeaf:
		return true, nil
	case kindInternal:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unknown kind %#x", ErrCorruptPage, page[offKind])
	}
}

// DecodeLeaf reconstructs a Leaf from a page. The returned node owns copies
// of the page's bytes and stays valid after the mapping moves.
func DecodeLeaf(page []byte) (*Leaf, error) {
	leaf, err := IsLeaf(page)
	if err != nil {
		return nil, err
	}
	if !leaf {
		return nil, fmt.Errorf("%w: expected leaf, found internal", ErrCorruptPage)
	}
	n := int(binary.LittleEndian.Uint16(page[offCount : offCount+2]))
	if n > LeafOrder {
		return nil, fmt.Errorf("%w: leaf count %d exceeds capacity %d", ErrCorruptPage, n, LeafOrder)
	}
	l := &Leaf{
		Keys:    make([]int32, n),
		Records: make([][]byte, n),
		Next:    int32(binary.LittleEndian.Uint32(page[offNext : offNext+4])),
		Prev:    int32(binary.LittleEndian.Uint32(page[offPrev : offPrev+4])),
	}
	for i := 0; i < n; i++ {
		o := offLeafSlots + i*leafSlotSize
		l.Keys[i] = int32(binary.LittleEndian.Uint32(page[o : o+4]))
		rec := make([]byte, index.RecordSize)
		copy(rec, page[o+4:o+4+index.RecordSize])
		l.Records[i] = rec
	}
	return l, nil
}

// Encode writes the leaf into a fresh zero-initialized page buffer.
// The caller keeps len(Keys) within LeafOrder.
func (l *Leaf) Encode() []byte {
	page := make([]byte, pager.PageSize)
	page[offKind] = kindLeaf
	binary.LittleEndian.PutUint16(page[offCount:offCount+2], uint16(len(l.Keys)))
	binary.LittleEndian.PutUint32(page[offNext:offNext+4], uint32(l.Next))
	binary.LittleEndian.PutUint32(page[offPrev:offPrev+4], uint32(l.Prev))
	for i, k := range l.Keys {
		o := offLeafSlots + i*leafSlotSize
		binary.LittleEndian.PutUint32(page[o:o+4], uint32(k))
		copy(page[o+4:o+4+index.RecordSize], l.Records[i])
	}
	return page
}

// Search returns the slot where key lives, or where it would be inserted,
// and whether it is present.
func (l *Leaf) Search(key int32) (int, bool) {
	lo, hi := 0, len(l.Keys)
	for lo < hi {
		m := (lo + hi) / 2
		if l.Keys[m] < key {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo, lo < len(l.Keys) && l.Keys[lo] == key
}

// Insert places key and a copy of rec at slot i, shifting later entries up.
// The caller checks capacity afterwards and splits when exceeded.
func (l *Leaf) Insert(i int, key int32, rec []byte) {
	l.Keys = append(l.Keys, 0)
	copy(l.Keys[i+1:], l.Keys[i:])
	l.Keys[i] = key

	r := make([]byte, index.RecordSize)
	copy(r, rec)
	l.Records = append(l.Records, nil)
	copy(l.Records[i+1:], l.Records[i:])
	l.Records[i] = r
}

// Remove deletes the entry at slot i, shifting later entries down.
func (l *Leaf) Remove(i int) {
	l.Keys = append(l.Keys[:i], l.Keys[i+1:]...)
	l.Records = append(l.Records[:i], l.Records[i+1:]...)
}

// DecodeInternal reconstructs an Internal from a page.
func DecodeInternal(page []byte) (*Internal, error) {
	leaf, err := IsLeaf(page)
	if err != nil {
		return nil, err
	}
	if leaf {
		return nil, fmt.Errorf("%w: expected internal, found leaf", ErrCorruptPage)
	}
	n := int(binary.LittleEndian.Uint16(page[offCount : offCount+2]))
	if n > InternalOrder {
		return nil, fmt.Errorf("%w: separator count %d exceeds capacity %d", ErrCorruptPage, n, InternalOrder)
	}
	in := &Internal{
		Keys:     make([]int32, n),
		Children: make([]int32, n+1),
	}
	in.Children[0] = int32(binary.LittleEndian.Uint32(page[offChild0 : offChild0+4]))
	for i := 0; i < n; i++ {
		o := offInternalSlots + i*internalSlotSize
		in.Keys[i] = int32(binary.LittleEndian.Uint32(page[o : o+4]))
		in.Children[i+1] = int32(binary.LittleEndian.Uint32(page[o+4 : o+8]))
	}
	return in, nil
}

// Encode writes the internal node into a fresh zero-initialized page
// buffer. The caller keeps len(Keys) within InternalOrder.
func (n *Internal) Encode() []byte {
	page := make([]byte, pager.PageSize)
	page[offKind] = kindInternal
	binary.LittleEndian.PutUint16(page[offCount:offCount+2], uint16(len(n.Keys)))
	binary.LittleEndian.PutUint32(page[offChild0:offChild0+4], uint32(n.Children[0]))
	for i, k := range n.Keys {
		o := offInternalSlots + i*internalSlotSize
		binary.LittleEndian.PutUint32(page[o:o+4], uint32(k))
		binary.LittleEndian.PutUint32(page[o+4:o+8], uint32(n.Children[i+1]))
	}
	return page
}

// ChildIndex returns the slot of the child that owns key: the first child
// whose separator is strictly greater than key, or the last child when no
// separator is.
func (n *Internal) ChildIndex(key int32) int {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		m := (lo + hi) / 2
		if key < n.Keys[m] {
			hi = m
		} else {
			lo = m + 1
		}
	}
	return lo
}

// InsertChild inserts sep at slot i and the accompanying right child just
// after child i. The caller checks capacity afterwards and splits when
// exceeded.
func (n *Internal) InsertChild(i int, sep int32, right int32) {
	n.Keys = append(n.Keys, 0)
	copy(n.Keys[i+1:], n.Keys[i:])
	n.Keys[i] = sep

	n.Children = append(n.Children, 0)
	copy(n.Children[i+2:], n.Children[i+1:])
	n.Children[i+1] = right
}
