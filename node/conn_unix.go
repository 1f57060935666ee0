//go:build linux
// +build linux

package node

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/fzft/go-coro-httpd/buffer"
	"github.com/fzft/go-coro-httpd/fdio"
	"github.com/fzft/go-coro-httpd/httpd"
	"github.com/fzft/go-coro-httpd/log"
)

// Conn drives one protocol engine from readiness notifications on a
// non-blocking socket. It owns the socket, the read accumulator, the write
// cursor and the engine.
type Conn struct {
	fdio.SocketHandler

	engine  *httpd.Server
	pending httpd.Io

	in        *buffer.ReadableList
	out       *buffer.IncrementalWrite
	readBuf   []byte
	writeSize int
}

// NewConn starts the engine and advances it as far as it goes without input.
func NewConn(fd int, addr string, engine *httpd.Server, readSize, writeSize int) (*Conn, error) {
	if readSize <= 0 {
		readSize = DefaultReadSize
	}
	c := &Conn{
		SocketHandler: fdio.NewSocketHandler(fd, addr),
		engine:        engine,
		in:            buffer.NewReadableList(),
		readBuf:       make([]byte, readSize),
		writeSize:     writeSize,
	}
	if err := c.resume(nil); err != nil {
		return nil, err
	}
	if err := c.advance(); err != nil {
		return nil, err
	}
	return c, nil
}

// Pending returns the Io the engine is suspended on.
func (c *Conn) Pending() httpd.Io {
	return c.pending
}

func (c *Conn) Readable() bool {
	return true
}

func (c *Conn) Writable() bool {
	return c.out != nil
}

func (c *Conn) OnReadable() error {
	n, err := unix.Read(c.Fd(), c.readBuf)
	if err != nil {
		switch {
		case fdio.IsTemporaryError(err):
			return nil
		case fdio.IsDisconnect(err):
			log.Logger.Debug("connection reset", zap.String("client", c.Addr()))
			return c.Close()
		}
		return os.NewSyscallError("read", err)
	}
	if n == 0 {
		log.Logger.Debug("connection closed by peer", zap.String("client", c.Addr()))
		return c.Close()
	}

	c.in.Feed(append([]byte(nil), c.readBuf[:n]...))
	if httpd.IsRead(c.pending) {
		return c.advance()
	}
	return nil
}

func (c *Conn) OnWritable() error {
	if c.out == nil {
		return fdio.ErrNotApplicable
	}

	fd := c.Fd()
	_, err := c.out.WriteTo(func(p []byte) (int, error) {
		n, err := unix.Write(fd, p)
		if n < 0 {
			n = 0
		}
		return n, err
	})
	if err != nil {
		switch {
		case fdio.IsTemporaryError(err):
			return nil
		case fdio.IsDisconnect(err):
			log.Logger.Debug("connection reset", zap.String("client", c.Addr()))
			return c.Close()
		}
		return os.NewSyscallError("write", err)
	}
	if c.out.Len() > 0 {
		return nil
	}

	c.out = nil
	if err := c.resume(nil); err != nil {
		return err
	}
	return c.advance()
}

// OnError drops the connection; a failure never outlives its socket.
func (c *Conn) OnError(err error) {
	log.Logger.Warn("connection error", zap.String("client", c.Addr()), zap.Error(err))
	if cerr := c.Close(); cerr != nil {
		log.Logger.Debug("close failed", zap.String("client", c.Addr()), zap.Error(cerr))
	}
}

// resume steps the engine and records what it needs next. A finished
// engine closes the connection.
func (c *Conn) resume(in []byte) error {
	next, err := c.engine.Step(in)
	if errors.Is(err, httpd.ErrEngineDone) {
		c.pending = nil
		return c.Close()
	}
	if err != nil {
		return err
	}
	c.pending = next
	return nil
}

// advance satisfies pending requests until one has to wait for the socket.
func (c *Conn) advance() error {
	for !c.Closed() && c.pending != nil {
		var in []byte
		switch r := c.pending.(type) {
		case httpd.LogRequest:
			logEvent(c.Addr(), r)

		case httpd.LogError:
			logEvent(c.Addr(), r)

		case httpd.ReadExact:
			data, ok := c.in.Read(r.Size)
			if !ok {
				return nil
			}
			in = data

		case httpd.ReadLine:
			data, ok := c.in.ReadUntil([]byte{'\n'})
			if !ok {
				// an unterminated line past the cap goes to the parser,
				// which rejects it as too long
				if r.MaxSize <= 0 || c.in.Len() < r.MaxSize {
					return nil
				}
				data, _ = c.in.Read(r.MaxSize)
			}
			in = data

		case httpd.Write:
			out, err := buffer.NewIncrementalWrite(r.Data, c.writeSize)
			if errors.Is(err, buffer.ErrEmptyWrite) {
				break
			}
			if err != nil {
				return err
			}
			c.out = out
			return nil

		default:
			return fmt.Errorf("unexpected io %T", r)
		}

		if err := c.resume(in); err != nil {
			return err
		}
	}
	return nil
}
