// Package ldb wraps goleveldb behind the common Index interface as a
// second baseline engine for the benchmark driver.
package ldb

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/record-index/recidx/index"
)

type LDB struct {
	db *leveldb.DB
}

var _ index.Index = (*LDB)(nil)

// Open opens (or creates) a LevelDB database at the given directory path.
func Open(dir string) (*LDB, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("ldb: open: %w", err)
	}
	return &LDB{db: db}, nil
}

func (l *LDB) Close() error {
	return l.db.Close()
}

// Write inserts or updates the record for key.
func (l *LDB) Write(key int32, value []byte) error {
	if len(value) != index.RecordSize {
		return fmt.Errorf("ldb: value must be exactly %d bytes, got %d", index.RecordSize, len(value))
	}
	return l.db.Put(encodeKey(key), value, nil)
}

// Read returns a copy of the record for key, or nil if absent.
func (l *LDB) Read(key int32) ([]byte, error) {
	val, err := l.db.Get(encodeKey(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ldb: get: %w", err)
	}
	return val, nil
}

// Delete removes key and reports whether it was present.
func (l *LDB) Delete(key int32) (bool, error) {
	ek := encodeKey(key)
	ok, err := l.db.Has(ek, nil)
	if err != nil {
		return false, fmt.Errorf("ldb: has: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := l.db.Delete(ek, nil); err != nil {
		return false, fmt.Errorf("ldb: delete: %w", err)
	}
	return true, nil
}

// Range returns an iterator over all keys in [low, high] inclusive.
func (l *LDB) Range(low, high int32) (index.Iterator, error) {
	r := &util.Range{Start: encodeKey(low)}
	// LevelDB's Limit is exclusive, unlike our interface.
	if high < math.MaxInt32 {
		r.Limit = encodeKey(high + 1)
	}
	return &rangeIterator{iter: l.db.NewIterator(r, nil)}, nil
}

// encodeKey encodes an int32 in offset-binary big-endian form so the byte
// order matches the signed integer order.
func encodeKey(k int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(k)^0x80000000)
	return b
}

func decodeKey(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b) ^ 0x80000000)
}

type rangeIterator struct {
	iter iterator.Iterator
	key  int32
	val  []byte
	err  error
}

func (it *rangeIterator) Next() bool {
	if !it.iter.Next() {
		it.err = it.iter.Error()
		return false
	}
	k := it.iter.Key()
	if len(k) != 4 {
		it.err = fmt.Errorf("ldb: unexpected key length %d", len(k))
		return false
	}
	it.key = decodeKey(k)
	// Copy the value — the iterator reuses the buffer on Next().
	v := it.iter.Value()
	it.val = make([]byte, len(v))
	copy(it.val, v)
	return true
}

func (it *rangeIterator) Key() int32    { return it.key }
func (it *rangeIterator) Value() []byte { return it.val }
func (it *rangeIterator) Error() error  { return it.err }
func (it *rangeIterator) Close() error  { it.iter.Release(); return nil }
