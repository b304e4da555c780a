package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadRecord(t *testing.T) {
	rec := PadRecord([]byte("abc"))
	assert.Len(t, rec, RecordSize)
	assert.Equal(t, []byte("abc"), rec[:3])
	for _, b := range rec[3:] {
		assert.Zero(t, b)
	}

	long := make([]byte, RecordSize+50)
	for i := range long {
		long[i] = 0xFF
	}
	rec = PadRecord(long)
	assert.Len(t, rec, RecordSize)
	assert.Equal(t, long[:RecordSize], rec)

	assert.Len(t, PadRecord(nil), RecordSize)
}
