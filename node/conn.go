package node

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fzft/go-coro-httpd/httpd"
)

// ServeConn drives engine with blocking reads and writes on rw until the
// engine finishes or the transport fails. A body cut short by EOF ends the
// connection without a response.
func ServeConn(rw io.ReadWriter, engine *httpd.Server, readSize int) error {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}
	r := bufio.NewReaderSize(rw, readSize)

	next, err := engine.Step(nil)
	for err == nil {
		var in []byte
		switch req := next.(type) {
		case httpd.LogRequest:
			logEvent(engine.ClientAddr(), req)

		case httpd.LogError:
			logEvent(engine.ClientAddr(), req)

		case httpd.ReadLine:
			if in, err = readLine(r, req.MaxSize); err != nil {
				return err
			}

		case httpd.ReadExact:
			if in, err = readBody(r, req.Size); err != nil {
				return err
			}

		case httpd.Write:
			if _, err = rw.Write(req.Data); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unexpected io %T", req)
		}
		next, err = engine.Step(in)
	}
	if errors.Is(err, httpd.ErrEngineDone) {
		return nil
	}
	return err
}

// readBody reads exactly n bytes, growing its buffer only as bytes arrive.
func readBody(r io.Reader, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	var b bytes.Buffer
	got, err := io.CopyN(&b, r, int64(n))
	if got < int64(n) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b.Bytes(), nil
}

// readLine reads through the next '\n', at most max bytes when max > 0.
// EOF yields whatever was read, possibly an empty line.
func readLine(r *bufio.Reader, max int) ([]byte, error) {
	line := make([]byte, 0, 128)
	for max <= 0 || len(line) < max {
		c, err := r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line = append(line, c)
		if c == '\n' {
			break
		}
	}
	return line, nil
}
