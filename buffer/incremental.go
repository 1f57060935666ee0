package buffer

import "errors"

const DefaultWriteSize = 0x10000

var ErrEmptyWrite = errors.New("buffer: empty write")

// IncrementalWrite is a write cursor over one payload. DataToWrite never
// returns more than writeSize bytes, which caps every send call.
type IncrementalWrite struct {
	data      []byte
	pos       int
	writeSize int
}

func NewIncrementalWrite(data []byte, writeSize int) (*IncrementalWrite, error) {
	if len(data) == 0 {
		return nil, ErrEmptyWrite
	}
	if writeSize <= 0 {
		writeSize = DefaultWriteSize
	}
	return &IncrementalWrite{
		data:      data,
		writeSize: writeSize,
	}, nil
}

func (w *IncrementalWrite) DataToWrite() []byte {
	end := w.pos + w.writeSize
	if end > len(w.data) {
		end = len(w.data)
	}
	return w.data[w.pos:end]
}

func (w *IncrementalWrite) Next(n int) {
	if n <= 0 {
		return
	}
	w.pos += n
	if w.pos > len(w.data) {
		w.pos = len(w.data)
	}
}

func (w *IncrementalWrite) Len() int {
	return len(w.data) - w.pos
}

// WriteTo repeatedly calls fn with at most writeSize bytes until the payload
// drains, fn reports zero progress, or fn fails. It returns the bytes written.
func (w *IncrementalWrite) WriteTo(fn func([]byte) (int, error)) (int, error) {
	total := 0
	for w.Len() > 0 {
		n, err := fn(w.DataToWrite())
		if n > 0 {
			w.Next(n)
			total += n
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
