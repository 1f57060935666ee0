package buffer

import "bytes"

// ReadableList accumulates received chunks and hands them back as exact-size
// reads or delimited lines. A read that cannot be fully satisfied consumes
// nothing.
type ReadableList struct {
	chunks [][]byte
	size   int
}

func NewReadableList() *ReadableList {
	return &ReadableList{}
}

// Feed appends a received chunk. Empty chunks are ignored.
func (b *ReadableList) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	b.chunks = append(b.chunks, p)
	b.size += len(p)
}

// Len returns the number of buffered bytes.
func (b *ReadableList) Len() int {
	return b.size
}

// ReadAll drains every buffered byte.
func (b *ReadableList) ReadAll() []byte {
	out := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	b.chunks = nil
	b.size = 0
	return out
}

// Read returns exactly n bytes, or false if fewer are buffered.
func (b *ReadableList) Read(n int) ([]byte, bool) {
	if n < 0 || n > b.size {
		return nil, false
	}
	if n == 0 {
		return []byte{}, true
	}

	seen := 0
	for i, c := range b.chunks {
		if seen+len(c) >= n {
			return b.chop(i, n-seen), true
		}
		seen += len(c)
	}
	return nil, false
}

// ReadUntil returns everything up to and including the first delim, or false
// if no delim is buffered yet.
func (b *ReadableList) ReadUntil(delim []byte) ([]byte, bool) {
	if len(delim) == 0 || b.size == 0 {
		return nil, false
	}

	if len(delim) == 1 {
		for i, c := range b.chunks {
			if p := bytes.IndexByte(c, delim[0]); p >= 0 {
				return b.chop(i, p+1), true
			}
		}
		return nil, false
	}

	// multi-byte delimiters may straddle chunks; coalesce first
	joined := b.ReadAll()
	b.Feed(joined)
	if p := bytes.Index(joined, delim); p >= 0 {
		return b.chop(0, p+len(delim)), true
	}
	return nil, false
}

// chop removes and returns all chunks before i plus the first e bytes of chunk i.
func (b *ReadableList) chop(i, e int) []byte {
	n := e
	for _, c := range b.chunks[:i] {
		n += len(c)
	}

	out := make([]byte, 0, n)
	for _, c := range b.chunks[:i] {
		out = append(out, c...)
	}
	d := b.chunks[i]
	out = append(out, d[:e]...)

	rest := b.chunks[i+1:]
	if e < len(d) {
		b.chunks = append([][]byte{d[e:]}, rest...)
	} else {
		b.chunks = append([][]byte(nil), rest...)
	}
	b.size -= n
	return out
}
