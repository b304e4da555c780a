package ldb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/record-index/recidx/index"
)

func newLDB(t *testing.T) *LDB {
	t.Helper()
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestWriteReadDelete(t *testing.T) {
	l := newLDB(t)

	v := index.PadRecord([]byte("hello"))
	require.NoError(t, l.Write(7, v))

	got, err := l.Read(7)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	got, err = l.Read(8)
	require.NoError(t, err)
	assert.Nil(t, got)

	removed, err := l.Delete(7)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = l.Delete(7)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRangeOrderWithNegativeKeys(t *testing.T) {
	l := newLDB(t)

	for _, k := range []int32{5, -3, 0, -100, 77} {
		require.NoError(t, l.Write(k, index.PadRecord(nil)))
	}

	it, err := l.Range(-100, 77)
	require.NoError(t, err)
	defer it.Close()

	var keys []int32
	for it.Next() {
		keys = append(keys, it.Key())
	}
	require.NoError(t, it.Error())
	assert.Equal(t, []int32{-100, -3, 0, 5, 77}, keys)
}
