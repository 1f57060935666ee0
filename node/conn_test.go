package node

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzft/go-coro-httpd/httpd"
)

func servePipe(t *testing.T, h httpd.Handler, opts ...httpd.Option) (net.Conn, <-chan error) {
	t.Helper()
	server, client := net.Pipe()
	done := make(chan error, 1)
	go func() {
		defer server.Close()
		done <- ServeConn(server, httpd.NewServer("pipe", h, opts...), 0)
	}()
	t.Cleanup(func() { _ = client.Close() })
	return client, done
}

func TestServeConnRoundTrip(t *testing.T) {
	client, done := servePipe(t, EchoHandler{})
	r := bufio.NewReader(client)

	_, err := io.WriteString(client, "GET /x HTTP/1.1\r\nHost: h\r\n\r\n")
	require.NoError(t, err)
	resp, err := http.ReadResponse(r, nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "HTTP/1.1", resp.Proto)
	assert.NotEmpty(t, resp.Header.Get("Date"))
	assert.Contains(t, string(body), "GET /x\n")
	assert.Contains(t, string(body), "Host: h\n")

	_, err = io.WriteString(client, "POST /e HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")
	require.NoError(t, err)
	resp, err = http.ReadResponse(r, nil)
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	require.NoError(t, client.Close())
	assert.NoError(t, <-done)
}

func TestServeConnUnsupportedMethod(t *testing.T) {
	client, _ := servePipe(t, EchoHandler{})
	r := bufio.NewReader(client)

	_, err := io.WriteString(client, "DELETE /x HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	resp, err := http.ReadResponse(r, nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, 501, resp.StatusCode)
	assert.True(t, resp.Close)
	assert.Contains(t, string(body), "DELETE")
}

func TestServeConnShortBody(t *testing.T) {
	client, done := servePipe(t, EchoHandler{})

	_, err := io.WriteString(client, "POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nab")
	require.NoError(t, err)
	require.NoError(t, client.Close())
	assert.ErrorIs(t, <-done, io.ErrUnexpectedEOF)
}

func TestServeConnHugeContentLength(t *testing.T) {
	client, done := servePipe(t, EchoHandler{})

	_, err := io.WriteString(client, "POST / HTTP/1.1\r\nContent-Length: 9223372036854775807\r\n\r\nabc")
	require.NoError(t, err)
	require.NoError(t, client.Close())
	assert.ErrorIs(t, <-done, io.ErrUnexpectedEOF)
}

func TestReadBody(t *testing.T) {
	body, err := readBody(strings.NewReader("hello world"), 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	body, err = readBody(strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.NotNil(t, body)
	assert.Empty(t, body)

	_, err = readBody(strings.NewReader("ab"), 5)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestServeConnEmptyConnection(t *testing.T) {
	client, done := servePipe(t, EchoHandler{})
	require.NoError(t, client.Close())
	assert.NoError(t, <-done)
}

func TestServeConnCloseOnResponse(t *testing.T) {
	h := httpd.HandlerFunc(func(*httpd.HandlerRequest) (*httpd.HandlerResponse, error) {
		return &httpd.HandlerResponse{Status: httpd.StatusOK, Body: []byte("bye"), CloseConnection: true}, nil
	})
	client, done := servePipe(t, h, httpd.WithCloseOnResponse(true))

	go func() { _, _ = io.WriteString(client, "GET / HTTP/1.1\r\n\r\n") }()
	out, err := io.ReadAll(client)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "\r\n\r\nbye"))
	assert.NoError(t, <-done)
}

func TestReadLine(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("abc\ndef"))

	line, err := readLine(r, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc\n", string(line))

	line, err = readLine(r, 2)
	require.NoError(t, err)
	assert.Equal(t, "de", string(line))

	line, err = readLine(r, 0)
	require.NoError(t, err)
	assert.Equal(t, "f", string(line))

	line, err = readLine(r, 0)
	require.NoError(t, err)
	assert.NotNil(t, line)
	assert.Empty(t, line)
}
