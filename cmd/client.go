package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"time"
)

// Client holds one connection to the server and reconnects when the
// server closes it.
type Client struct {
	addr    string
	timeout time.Duration

	conn net.Conn
	r    *bufio.Reader
}

func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{addr: addr, timeout: timeout}
}

func (c *Client) Addr() string {
	return c.addr
}

func (c *Client) Connected() bool {
	return c.conn != nil
}

func (c *Client) Connect() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return err
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.r = nil, nil
	return err
}

// Do sends one raw request and returns the raw response. method decides
// whether a body follows the headers.
func (c *Client) Do(method string, raw []byte) ([]byte, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, err
		}
	}
	if _, err := c.conn.Write(raw); err != nil {
		_ = c.Close()
		return nil, err
	}

	resp, err := http.ReadResponse(c.r, &http.Request{Method: method})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("read response: %w", err)
	}
	dump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	if resp.Close {
		_ = c.Close()
	}
	return dump, nil
}

// Pipe sends everything from in, half-closes the connection and copies
// whatever the server answers to out.
func (c *Client) Pipe(in io.Reader, out io.Writer) error {
	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Close()

	if _, err := io.Copy(c.conn, in); err != nil {
		return err
	}
	if cw, ok := c.conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil {
			return err
		}
	}
	_, err := io.Copy(out, c.r)
	return err
}

func methodOf(raw []byte) string {
	line, _, _ := bytes.Cut(raw, []byte(" "))
	return string(line)
}
