package pager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Pager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idx.dat")
	p, err := Open(path)
	require.NoError(t, err)
	return p, path
}

func TestOpenInitializesFreshFile(t *testing.T) {
	p, path := openTemp(t)
	defer p.Close()

	assert.Equal(t, int32(1), p.PageCount())
	assert.Equal(t, NilPage, p.Root())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(PageSize), info.Size())
}

func TestAllocateGrowsOnePageAtATime(t *testing.T) {
	p, path := openTemp(t)
	defer p.Close()

	for want := int32(1); want <= 5; want++ {
		id, err := p.Allocate()
		require.NoError(t, err)
		assert.Equal(t, want, id)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, int64(want+1)*PageSize, info.Size())
	}
	assert.Equal(t, int32(6), p.PageCount())
}

func TestWriteReadPage(t *testing.T) {
	p, _ := openTemp(t)
	defer p.Close()

	id, err := p.Allocate()
	require.NoError(t, err)

	buf := make([]byte, PageSize)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	require.NoError(t, p.WritePage(id, buf))

	got, err := p.ReadPage(id)
	require.NoError(t, err)
	assert.Equal(t, buf, got)
}

func TestWritesSurviveAllocate(t *testing.T) {
	p, _ := openTemp(t)
	defer p.Close()

	id, err := p.Allocate()
	require.NoError(t, err)
	buf := make([]byte, PageSize)
	buf[0] = 0xAA
	buf[PageSize-1] = 0x55
	require.NoError(t, p.WritePage(id, buf))

	// Growing remaps the file; earlier pages must read back unchanged.
	_, err = p.Allocate()
	require.NoError(t, err)

	got, err := p.ReadPage(id)
	require.NoError(t, err)
	assert.Equal(t, buf, got)
}

func TestReadPageOutOfRange(t *testing.T) {
	p, _ := openTemp(t)
	defer p.Close()

	_, err := p.ReadPage(1)
	assert.ErrorIs(t, err, ErrPageRange)
	_, err = p.ReadPage(-1)
	assert.ErrorIs(t, err, ErrPageRange)
}

func TestWritePageWrongSize(t *testing.T) {
	p, _ := openTemp(t)
	defer p.Close()

	err := p.WritePage(0, make([]byte, PageSize-1))
	assert.Error(t, err)
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.dat")

	p, err := Open(path)
	require.NoError(t, err)
	a, err := p.Allocate()
	require.NoError(t, err)
	b, err := p.Allocate()
	require.NoError(t, err)

	bufA := make([]byte, PageSize)
	bufB := make([]byte, PageSize)
	copy(bufA, []byte("page a"))
	copy(bufB, []byte("page b"))
	require.NoError(t, p.WritePage(a, bufA))
	require.NoError(t, p.WritePage(b, bufB))
	p.SetRoot(b)
	require.NoError(t, p.Flush())
	require.NoError(t, p.Close())

	p, err = Open(path)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, int32(3), p.PageCount())
	assert.Equal(t, b, p.Root())
	gotA, err := p.ReadPage(a)
	require.NoError(t, err)
	assert.Equal(t, bufA, gotA)
	gotB, err := p.ReadPage(b)
	require.NoError(t, err)
	assert.Equal(t, bufB, gotB)
}

func TestOpenRejectsUnalignedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.dat")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestOpenRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.dat")
	junk := make([]byte, PageSize)
	for i := range junk {
		junk[i] = 0xAB
	}
	require.NoError(t, os.WriteFile(path, junk, 0644))

	_, err := Open(path)
	assert.Error(t, err)
}
