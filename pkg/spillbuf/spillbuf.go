// Package spillbuf implements the Client Session's buffered-body
// container: a handle's edits are held in memory until a configured
// threshold, then transparently spill to a temporary file. A client
// Handle owns a Buffer; the buffer knows nothing about handles.
package spillbuf

import (
	"errors"
	"io"
	"os"
	"sync"
)

// DefaultThreshold is the in-memory ceiling before a body spills to
// disk, overridable via the client's "max_size" setting.
const DefaultThreshold = 1 << 20

// copyScratch is a small sync.Pool of scratch slices used only to move an
// in-memory buffer's bytes into a freshly created spill file.
var copyScratch = sync.Pool{
	New: func() any {
		buf := make([]byte, 32*1024)
		return &buf
	},
}

// Buffer is an io.ReadWriteSeeker that holds small bodies in memory and
// spills to an os.CreateTemp file once the written extent exceeds
// threshold. It is not safe for concurrent use; a Handle owns exactly one.
type Buffer struct {
	threshold int64

	mem  *memBuffer // non-nil until spilled
	file *os.File   // non-nil after spilling

	size int64 // high-water mark of bytes ever written
}

// New returns an empty Buffer that spills to a temporary file once more
// than threshold bytes have been written. A threshold <= 0 uses
// DefaultThreshold.
func New(threshold int64) *Buffer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Buffer{threshold: threshold, mem: &memBuffer{}}
}

// backing returns the current io.ReadWriteSeeker: the in-memory buffer,
// or the spill file once one exists.
func (b *Buffer) backing() io.ReadWriteSeeker {
	if b.file != nil {
		return b.file
	}
	return b.mem
}

// Write appends p at the current position, spilling to a temporary file
// first if this write would push the buffer's extent past threshold.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.file == nil && b.mem.pos+int64(len(p)) > b.threshold {
		if err := b.spill(); err != nil {
			return 0, err
		}
	}
	n, err := b.backing().Write(p)
	if pos, perr := b.backing().Seek(0, io.SeekCurrent); perr == nil && pos > b.size {
		b.size = pos
	}
	return n, err
}

// Read reads from the current position, per the ordinary io.Reader
// contract (io.EOF once the position reaches the written extent).
func (b *Buffer) Read(p []byte) (int, error) {
	return b.backing().Read(p)
}

// Seek repositions the buffer, per io.Seeker.
func (b *Buffer) Seek(offset int64, whence int) (int64, error) {
	return b.backing().Seek(offset, whence)
}

// Size reports the high-water mark of bytes written to the buffer,
// independent of the current seek position.
func (b *Buffer) Size() int64 {
	return b.size
}

// Reader returns an io.Reader over the buffer's full written extent,
// starting at offset 0, for a commit upload. It repositions the buffer
// as a side effect.
func (b *Buffer) Reader() (io.Reader, error) {
	if _, err := b.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.LimitReader(b.backing(), b.size), nil
}

// spill copies the in-memory buffer's bytes into a fresh temporary file
// and switches the backing store to it, preserving the current position.
func (b *Buffer) spill() error {
	f, err := os.CreateTemp("", "dfs-spillbuf-*")
	if err != nil {
		return err
	}

	pos := b.mem.pos
	if _, err := b.mem.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}

	scratch := copyScratch.Get().(*[]byte)
	_, err = io.CopyBuffer(f, b.mem, *scratch)
	copyScratch.Put(scratch)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}

	b.file = f
	b.mem = nil
	return nil
}

// Close releases the spill file, if one was created. Safe to call on a
// Buffer that never spilled.
func (b *Buffer) Close() error {
	if b.file == nil {
		return nil
	}
	name := b.file.Name()
	err := b.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}

// memBuffer is a minimal growable-byte-slice io.ReadWriteSeeker, the
// pre-spill backing store for Buffer.
type memBuffer struct {
	buf []byte
	pos int64
}

func (m *memBuffer) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *memBuffer) Write(p []byte) (int, error) {
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:end], p)
	m.pos = end
	return len(p), nil
}

func (m *memBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = m.pos + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("spillbuf: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("spillbuf: negative seek position")
	}
	m.pos = abs
	return abs, nil
}
