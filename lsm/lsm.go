// Package lsm wraps Pebble (CockroachDB's LSM storage engine) behind the
// common Index interface so it can be benchmarked alongside the B+ tree
// engine.
package lsm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cockroachdb/pebble"

	"github.com/record-index/recidx/index"
)

type LSM struct {
	db *pebble.DB
}

var _ index.Index = (*LSM)(nil)

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string) (*LSM, error) {
	opts := &pebble.Options{
		MemTableSize:                16 << 20,
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("lsm: open: %w", err)
	}
	return &LSM{db: db}, nil
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return l.db.Close()
}

// Write inserts or updates the record for key.
func (l *LSM) Write(key int32, value []byte) error {
	if len(value) != index.RecordSize {
		return fmt.Errorf("lsm: value must be exactly %d bytes, got %d", index.RecordSize, len(value))
	}
	return l.db.Set(encodeKey(key), value, pebble.NoSync)
}

// Read returns a copy of the record for key, or nil if absent.
func (l *LSM) Read(key int32) ([]byte, error) {
	val, closer, err := l.db.Get(encodeKey(key))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lsm: get: %w", err)
	}
	// val is only valid until closer.Close(), so copy it out.
	result := make([]byte, len(val))
	copy(result, val)
	closer.Close()
	return result, nil
}

// Delete removes key and reports whether it was present.
func (l *LSM) Delete(key int32) (bool, error) {
	ek := encodeKey(key)
	_, closer, err := l.db.Get(ek)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lsm: get: %w", err)
	}
	closer.Close()
	if err := l.db.Delete(ek, pebble.NoSync); err != nil {
		return false, fmt.Errorf("lsm: delete: %w", err)
	}
	return true, nil
}

// Range returns an iterator over all keys in [low, high] inclusive.
func (l *LSM) Range(low, high int32) (index.Iterator, error) {
	iterOpts := &pebble.IterOptions{LowerBound: encodeKey(low)}
	// Pebble's upper bound is exclusive, unlike our interface.
	if high < math.MaxInt32 {
		iterOpts.UpperBound = encodeKey(high + 1)
	}
	iter, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, fmt.Errorf("lsm: range: %w", err)
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// encodeKey encodes an int32 in offset-binary big-endian form: flipping the
// sign bit makes the byte order match the signed integer order, which LSM
// engines rely on for range scans.
func encodeKey(k int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(k)^0x80000000)
	return b
}

func decodeKey(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b) ^ 0x80000000)
}

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   int32
	val   []byte
	err   error
}

func (it *rangeIterator) Next() bool {
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}
	k := it.iter.Key()
	if len(k) != 4 {
		it.err = fmt.Errorf("lsm: unexpected key length %d", len(k))
		return false
	}
	it.key = decodeKey(k)
	// Copy the value — Pebble reuses the buffer on Next().
	v := it.iter.Value()
	it.val = make([]byte, len(v))
	copy(it.val, v)
	return true
}

func (it *rangeIterator) Key() int32    { return it.key }
func (it *rangeIterator) Value() []byte { return it.val }
func (it *rangeIterator) Error() error  { return it.err }
func (it *rangeIterator) Close() error  { return it.iter.Close() }
