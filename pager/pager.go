// Package pager manages the single memory-mapped file backing the tree.
//
// The file is an array of fixed 4096-byte pages addressed by page number;
// page n lives at byte offset n*4096. Page 0 is the metadata page, every
// other page holds one tree node. Metadata layout:
//
//	[0-3]   uint32  magic
//	[4-7]   int32   root page number (NilPage until the engine sets it)
//	[8-11]  uint32  number of allocated pages, including page 0
//
// The file only ever grows, one page per Allocate, and its length is always
// an exact multiple of PageSize. Pages abandoned by the tree are never
// reclaimed.
package pager

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	// PageSize is the unit of storage, I/O and allocation.
	PageSize = 4096

	// NilPage is the sentinel for "no page" in links and the root slot.
	NilPage = int32(-1)

	magic = uint32(0x58444952) // "RIDX"

	offMagic = 0
	offRoot  = 4
	offCount = 8
)

// ErrPageRange reports access to a page beyond the allocated extent.
var ErrPageRange = errors.New("pager: page number out of range")

// Pager owns the backing file and its memory mapping. It is not safe for
// concurrent use; callers serialize access externally.
type Pager struct {
	file *os.File
	data []byte // live mapping, len == PageCount()*PageSize
}

// Open opens (creating if absent) the file at path and maps it. A fresh
// file is initialized with the metadata page; an existing file must carry
// the expected magic and a page-aligned length.
func Open(path string) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("pager: open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pager: stat: %w", err)
	}
	size := info.Size()
	if size%PageSize != 0 {
		f.Close()
		return nil, fmt.Errorf("pager: %s: length %d is not a multiple of the page size", path, size)
	}

	p := &Pager{file: f}
	if size == 0 {
		if err := f.Truncate(PageSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("pager: grow: %w", err)
		}
		if err := p.mmap(PageSize); err != nil {
			f.Close()
			return nil, err
		}
		binary.LittleEndian.PutUint32(p.data[offMagic:offMagic+4], magic)
		root := NilPage
		binary.LittleEndian.PutUint32(p.data[offRoot:offRoot+4], uint32(root))
		binary.LittleEndian.PutUint32(p.data[offCount:offCount+4], 1)
		if err := p.Flush(); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	}

	if err := p.mmap(size); err != nil {
		f.Close()
		return nil, err
	}
	if binary.LittleEndian.Uint32(p.data[offMagic:offMagic+4]) != magic {
		p.Close()
		return nil, fmt.Errorf("pager: %s: bad magic, not an index file", path)
	}
	if int64(p.PageCount())*PageSize != size {
		p.Close()
		return nil, fmt.Errorf("pager: %s: header claims %d pages but file holds %d",
			path, p.PageCount(), size/PageSize)
	}
	return p, nil
}

func (p *Pager) mmap(size int64) error {
	data, err := unix.Mmap(int(p.file.Fd()), 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("pager: mmap: %w", err)
	}
	p.data = data
	return nil
}

// PageCount returns the number of allocated pages, including page 0.
func (p *Pager) PageCount() int32 {
	return int32(binary.LittleEndian.Uint32(p.data[offCount : offCount+4]))
}

func (p *Pager) setPageCount(n int32) {
	binary.LittleEndian.PutUint32(p.data[offCount:offCount+4], uint32(n))
}

// Root returns the root page number recorded in the metadata page.
func (p *Pager) Root() int32 {
	return int32(binary.LittleEndian.Uint32(p.data[offRoot : offRoot+4]))
}

// SetRoot records a new root page number. Durable after the next Flush.
func (p *Pager) SetRoot(page int32) {
	binary.LittleEndian.PutUint32(p.data[offRoot:offRoot+4], uint32(page))
}

// ReadPage returns the mapped bytes of page n. The slice aliases the
// mapping directly and is invalidated by the next Allocate.
func (p *Pager) ReadPage(n int32) ([]byte, error) {
	if n < 0 || n >= p.PageCount() {
		return nil, fmt.Errorf("%w: page %d, allocated %d", ErrPageRange, n, p.PageCount())
	}
	off := int(n) * PageSize
	return p.data[off : off+PageSize : off+PageSize], nil
}

// WritePage copies exactly one page of bytes into page n's slot. The write
// is visible to subsequent reads immediately and durable after Flush.
func (p *Pager) WritePage(n int32, buf []byte) error {
	if len(buf) != PageSize {
		return fmt.Errorf("pager: write page %d: got %d bytes, want %d", n, len(buf), PageSize)
	}
	dst, err := p.ReadPage(n)
	if err != nil {
		return err
	}
	copy(dst, buf)
	return nil
}

// Allocate extends the file by one page and returns the new page's number.
// The old mapping no longer covers the new extent, so it is rebuilt; slices
// handed out by earlier ReadPage calls must not be used across an Allocate.
func (p *Pager) Allocate() (int32, error) {
	n := p.PageCount()
	newSize := int64(n+1) * PageSize

	if err := p.Flush(); err != nil {
		return 0, err
	}
	if err := unix.Munmap(p.data); err != nil {
		p.data = nil
		return 0, fmt.Errorf("pager: munmap: %w", err)
	}
	p.data = nil
	if err := p.file.Truncate(newSize); err != nil {
		return 0, fmt.Errorf("pager: grow: %w", err)
	}
	if err := p.mmap(newSize); err != nil {
		return 0, err
	}
	p.setPageCount(n + 1)
	return n, nil
}

// Flush forces mapped writes down to the file.
func (p *Pager) Flush() error {
	if err := unix.Msync(p.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("pager: msync: %w", err)
	}
	return nil
}

// Close flushes, unmaps and closes the backing file.
func (p *Pager) Close() error {
	var first error
	if p.data != nil {
		if err := unix.Msync(p.data, unix.MS_SYNC); err != nil && first == nil {
			first = fmt.Errorf("pager: msync: %w", err)
		}
		if err := unix.Munmap(p.data); err != nil && first == nil {
			first = fmt.Errorf("pager: munmap: %w", err)
		}
		p.data = nil
	}
	if err := p.file.Close(); err != nil && first == nil {
		first = fmt.Errorf("pager: close: %w", err)
	}
	return first
}
