package buffer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadableListRead(t *testing.T) {
	b := NewReadableList()
	b.Feed([]byte("hel"))
	b.Feed(nil)
	b.Feed([]byte("lo wor"))

	_, ok := b.Read(10)
	assert.False(t, ok, "insufficient bytes must not consume")
	assert.Equal(t, 9, b.Len())

	d, ok := b.Read(5)
	require.True(t, ok)
	assert.Equal(t, "hello", string(d))
	assert.Equal(t, 4, b.Len())

	d, ok = b.Read(0)
	require.True(t, ok)
	assert.Empty(t, d)

	b.Feed([]byte("ld"))
	assert.Equal(t, " world", string(b.ReadAll()))
	assert.Equal(t, 0, b.Len())
}

func TestReadableListReadUntil(t *testing.T) {
	b := NewReadableList()
	_, ok := b.ReadUntil([]byte("\n"))
	assert.False(t, ok)

	b.Feed([]byte("GET / HT"))
	_, ok = b.ReadUntil([]byte("\n"))
	assert.False(t, ok)

	b.Feed([]byte("TP/1.1\r\nHost: h\r\n"))
	line, ok := b.ReadUntil([]byte("\n"))
	require.True(t, ok)
	assert.Equal(t, "GET / HTTP/1.1\r\n", string(line))

	line, ok = b.ReadUntil([]byte("\n"))
	require.True(t, ok)
	assert.Equal(t, "Host: h\r\n", string(line))
	assert.Equal(t, 0, b.Len())
}

func TestReadableListReadUntilStraddlingDelimiter(t *testing.T) {
	b := NewReadableList()
	b.Feed([]byte("abc\r"))
	b.Feed([]byte("\ndef"))

	line, ok := b.ReadUntil([]byte("\r\n"))
	require.True(t, ok)
	assert.Equal(t, "abc\r\n", string(line))
	assert.Equal(t, 3, b.Len())
}

func TestIncrementalWriteChunks(t *testing.T) {
	_, err := NewIncrementalWrite(nil, 4)
	assert.ErrorIs(t, err, ErrEmptyWrite)

	w, err := NewIncrementalWrite([]byte("0123456789"), 4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(w.DataToWrite()))

	var calls []string
	n, err := w.WriteTo(func(p []byte) (int, error) {
		calls = append(calls, string(p))
		return len(p), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, []string{"0123", "4567", "89"}, calls)
	assert.Equal(t, 0, w.Len())
}

func TestIncrementalWritePartialProgress(t *testing.T) {
	w, err := NewIncrementalWrite([]byte("abcdef"), 0)
	require.NoError(t, err)

	n, err := w.WriteTo(func(p []byte) (int, error) {
		return 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	w, _ = NewIncrementalWrite([]byte("abcdef"), 0)
	boom := errors.New("boom")
	n, err = w.WriteTo(func(p []byte) (int, error) {
		return 1, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.Equal(t, 5, w.Len())

	n, err = w.WriteTo(func(p []byte) (int, error) {
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "bcdef", string(w.DataToWrite()))
}
