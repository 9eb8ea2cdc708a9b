package spillbuf

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_InMemoryRoundTrip(t *testing.T) {
	b := New(1024)
	defer b.Close()

	n, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), b.Size())

	r, err := b.Reader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestBuffer_SpillsAboveThreshold(t *testing.T) {
	b := New(8)
	defer b.Close()

	_, err := b.Write([]byte("0123456789")) // 10 bytes > threshold 8
	require.NoError(t, err)
	require.NotNil(t, b.file, "expected buffer to have spilled to a temp file")

	name := b.file.Name()
	_, statErr := os.Stat(name)
	require.NoError(t, statErr)

	r, err := b.Reader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got))

	require.NoError(t, b.Close())
	_, statErr = os.Stat(name)
	assert.True(t, os.IsNotExist(statErr), "spill file should be removed on Close")
}

func TestBuffer_SpillPreservesPriorContent(t *testing.T) {
	b := New(4)
	defer b.Close()

	_, err := b.Write([]byte("ab")) // below threshold
	require.NoError(t, err)
	_, err = b.Write([]byte("cdefgh")) // pushes past threshold, must spill
	require.NoError(t, err)

	r, err := b.Reader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", string(got))
}

func TestBuffer_AppendStartsFromEndOfSeededContent(t *testing.T) {
	b := New(1024)
	defer b.Close()

	// Simulates append-open: existing body is written into the buffer
	// first, leaving the cursor at its end for subsequent writes.
	_, err := b.Write([]byte("existing"))
	require.NoError(t, err)

	_, err = b.Write([]byte("-appended"))
	require.NoError(t, err)

	r, err := b.Reader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "existing-appended", string(got))
}

func TestBuffer_SeekAndReread(t *testing.T) {
	b := New(1024)
	defer b.Close()

	_, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)

	_, err = b.Seek(0, io.SeekStart)
	require.NoError(t, err)

	p := make([]byte, 3)
	n, err := b.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(p[:n]))
}

func TestBuffer_CloseWithoutSpillIsNoop(t *testing.T) {
	b := New(1024)
	_, err := b.Write([]byte("small"))
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}
