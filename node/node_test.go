package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/record-index/recidx/index"
	"github.com/record-index/recidx/pager"
)

func testRecord(b byte) []byte {
	rec := make([]byte, index.RecordSize)
	for i := range rec {
		rec[i] = b
	}
	return rec
}

func TestLeafRoundTrip(t *testing.T) {
	l := &Leaf{Next: 7, Prev: pager.NilPage}
	for i, k := range []int32{-50, 3, 42, 1000} {
		l.Insert(i, k, testRecord(byte(i+1)))
	}

	page := l.Encode()
	require.Len(t, page, pager.PageSize)

	got, err := DecodeLeaf(page)
	require.NoError(t, err)
	require.Equal(t, l, got)

	// Canonical format: re-encoding reproduces the exact bytes.
	assert.Equal(t, page, got.Encode())
}

func TestInternalRoundTrip(t *testing.T) {
	in := &Internal{
		Keys:     []int32{-10, 0, 99},
		Children: []int32{4, 9, 2, 11},
	}

	page := in.Encode()
	got, err := DecodeInternal(page)
	require.NoError(t, err)
	require.Equal(t, in, got)
	assert.Equal(t, page, got.Encode())
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	page := make([]byte, pager.PageSize)
	page[0] = 7

	_, err := DecodeLeaf(page)
	require.ErrorIs(t, err, ErrCorruptPage)
	_, err = DecodeInternal(page)
	require.ErrorIs(t, err, ErrCorruptPage)
	_, err = IsLeaf(page)
	require.ErrorIs(t, err, ErrCorruptPage)
}

func TestDecodeRejectsWrongKind(t *testing.T) {
	leafPage := (&Leaf{Next: pager.NilPage, Prev: pager.NilPage}).Encode()
	_, err := DecodeInternal(leafPage)
	require.ErrorIs(t, err, ErrCorruptPage)

	internalPage := (&Internal{Keys: []int32{1}, Children: []int32{2, 3}}).Encode()
	_, err = DecodeLeaf(internalPage)
	require.ErrorIs(t, err, ErrCorruptPage)
}

func TestDecodeRejectsOverflowCount(t *testing.T) {
	leafPage := (&Leaf{Next: pager.NilPage, Prev: pager.NilPage}).Encode()
	leafPage[1] = byte(LeafOrder + 1)
	_, err := DecodeLeaf(leafPage)
	require.ErrorIs(t, err, ErrCorruptPage)

	internalPage := (&Internal{Keys: []int32{1}, Children: []int32{2, 3}}).Encode()
	internalPage[1] = byte((InternalOrder + 1) & 0xff)
	internalPage[2] = byte((InternalOrder + 1) >> 8)
	_, err = DecodeInternal(internalPage)
	require.ErrorIs(t, err, ErrCorruptPage)
}

func TestDecodeRejectsShortPage(t *testing.T) {
	_, err := IsLeaf(make([]byte, 100))
	require.ErrorIs(t, err, ErrCorruptPage)
}

func TestLeafSearch(t *testing.T) {
	l := &Leaf{Next: pager.NilPage, Prev: pager.NilPage}
	for i, k := range []int32{10, 20, 30} {
		l.Insert(i, k, testRecord(1))
	}

	pos, found := l.Search(20)
	assert.True(t, found)
	assert.Equal(t, 1, pos)

	pos, found = l.Search(25)
	assert.False(t, found)
	assert.Equal(t, 2, pos)

	pos, found = l.Search(5)
	assert.False(t, found)
	assert.Equal(t, 0, pos)

	pos, found = l.Search(35)
	assert.False(t, found)
	assert.Equal(t, 3, pos)
}

func TestLeafInsertKeepsOrder(t *testing.T) {
	l := &Leaf{Next: pager.NilPage, Prev: pager.NilPage}
	for _, k := range []int32{30, 10, 20, -5} {
		pos, found := l.Search(k)
		require.False(t, found)
		l.Insert(pos, k, testRecord(byte(k&0x7f)))
	}
	assert.Equal(t, []int32{-5, 10, 20, 30}, l.Keys)

	l.Remove(1)
	assert.Equal(t, []int32{-5, 20, 30}, l.Keys)
	assert.Len(t, l.Records, 3)
}

func TestChildIndexRouting(t *testing.T) {
	in := &Internal{
		Keys:     []int32{10, 20, 30},
		Children: []int32{1, 2, 3, 4},
	}

	// Child i holds keys below separator i; separators themselves route
	// right.
	assert.Equal(t, 0, in.ChildIndex(-100))
	assert.Equal(t, 0, in.ChildIndex(9))
	assert.Equal(t, 1, in.ChildIndex(10))
	assert.Equal(t, 1, in.ChildIndex(19))
	assert.Equal(t, 2, in.ChildIndex(20))
	assert.Equal(t, 3, in.ChildIndex(30))
	assert.Equal(t, 3, in.ChildIndex(1000))
}

func TestInsertChild(t *testing.T) {
	in := &Internal{
		Keys:     []int32{10, 30},
		Children: []int32{1, 2, 3},
	}
	in.InsertChild(1, 20, 9)
	assert.Equal(t, []int32{10, 20, 30}, in.Keys)
	assert.Equal(t, []int32{1, 2, 9, 3}, in.Children)

	in.InsertChild(3, 40, 12)
	assert.Equal(t, []int32{10, 20, 30, 40}, in.Keys)
	assert.Equal(t, []int32{1, 2, 9, 3, 12}, in.Children)
}

func TestFullLeafFitsInPage(t *testing.T) {
	l := &Leaf{Next: 1, Prev: 2}
	for i := 0; i < LeafOrder; i++ {
		l.Insert(i, int32(i), testRecord(byte(i)))
	}
	got, err := DecodeLeaf(l.Encode())
	require.NoError(t, err)
	require.Equal(t, l, got)
}

func TestFullInternalFitsInPage(t *testing.T) {
	in := &Internal{
		Keys:     make([]int32, InternalOrder),
		Children: make([]int32, InternalOrder+1),
	}
	for i := range in.Keys {
		in.Keys[i] = int32(i * 2)
		in.Children[i] = int32(i + 1)
	}
	in.Children[InternalOrder] = int32(InternalOrder + 1)

	got, err := DecodeInternal(in.Encode())
	require.NoError(t, err)
	require.Equal(t, in, got)
}
