package xtype

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// File is a read-only xtype source. Open prefers a shared read-only mmap
// for zero-copy access and falls back to loading the file when mapping is
// unavailable. The returned file must be closed to release the mapping.
type File struct {
	data    []byte
	c       codec
	mmapped bool
}

// Open maps the file at path and validates nothing beyond its existence:
// the tag alphabet is the entire grammar, so the first parse reports any
// corruption. opts.Append is ignored.
func Open(path string, opts Options) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size > int64(int(^uint(0)>>1)) {
		return nil, ErrInvalidLength
	}

	if size > 0 {
		data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
		if err == nil {
			return &File{data: data, c: newCodec(opts.Order), mmapped: true}, nil
		}
	}

	data, err := readAllAt(f, size)
	if err != nil {
		return nil, err
	}
	return &File{data: data, c: newCodec(opts.Order)}, nil
}

func readAllAt(r io.ReaderAt, size int64) ([]byte, error) {
	out := make([]byte, size)
	var off int64
	for off < size {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == io.EOF && off == size {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Size returns the file length in bytes.
func (f *File) Size() int64 { return int64(len(f.data)) }

// Nav returns a fresh Navigator positioned at the root value. Navigators
// from the same File are independent; none may outlive Close.
func (f *File) Nav() *Navigator {
	return &Navigator{src: bytes.NewReader(f.data), size: int64(len(f.data)), c: f.c}
}

// Close releases the mapping. Safe to call more than once.
func (f *File) Close() error {
	if f.data != nil && f.mmapped {
		data := f.data
		f.data = nil
		f.mmapped = false
		return unix.Munmap(data)
	}
	f.data = nil
	return nil
}
