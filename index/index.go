// Package index defines the common interface implemented by every record
// store in this module: the native B+ tree engine and the baseline engines
// it is benchmarked against.
package index

// RecordSize is the fixed length of every stored value.
const RecordSize = 100

// Index is the common interface for all record stores.
type Index interface {
	// Write inserts or updates the record for key. The value must be
	// exactly RecordSize bytes.
	Write(key int32, value []byte) error
	// Read returns a copy of the record for key, or nil if the key is
	// absent. A missing key is not an error.
	Read(key int32) ([]byte, error)
	// Delete removes key and reports whether it was present.
	Delete(key int32) (bool, error)
	// Range returns an iterator over the keys in [low, high], ascending.
	Range(low, high int32) (Iterator, error)
	Close() error
}

// Iterator scans records in ascending key order.
type Iterator interface {
	Next() bool
	Key() int32
	Value() []byte
	Error() error
	Close() error
}

// PadRecord copies b into a fresh RecordSize buffer, truncating or
// zero-padding as needed.
func PadRecord(b []byte) []byte {
	rec := make([]byte, RecordSize)
	copy(rec, b)
	return rec
}
