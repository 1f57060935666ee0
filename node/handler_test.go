package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fzft/go-coro-httpd/httpd"
)

func TestEchoHandler(t *testing.T) {
	h := EchoHandler{}
	header := httpd.Header{}
	header.Set("Host", "example")
	header.Add("Accept", "a")
	header.Add("Accept", "b")

	resp, err := h.Handle(&httpd.HandlerRequest{ClientAddr: "c:1", Method: "GET", Path: "/p", Header: header})
	require.NoError(t, err)
	assert.Equal(t, httpd.StatusOK, resp.Status)
	assert.Equal(t, "GET /p\nclient: c:1\nAccept: a\nAccept: b\nHost: example\n", string(resp.Body))
	cl, ok := resp.Headers.Get("content-length")
	require.True(t, ok)
	assert.Equal(t, "53", cl.Value)

	resp, err = h.Handle(&httpd.HandlerRequest{ClientAddr: "c:1", Method: "HEAD", Path: "/p", Header: header})
	require.NoError(t, err)
	assert.Nil(t, resp.Body)
	cl, ok = resp.Headers.Get("Content-Length")
	require.True(t, ok)
	assert.Equal(t, "53", cl.Value)
}

func TestEchoHandlerBody(t *testing.T) {
	header := httpd.Header{}
	header.Set("Content-Type", "application/json")

	resp, err := EchoHandler{}.Handle(&httpd.HandlerRequest{Method: "POST", Header: header, Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), resp.Body)
	assert.Equal(t, httpd.Fields{{Name: "Content-Type", Value: "application/json"}}, resp.Headers)

	resp, err = EchoHandler{}.Handle(&httpd.HandlerRequest{Method: "PUT", Header: httpd.Header{}})
	require.NoError(t, err)
	assert.Equal(t, []byte{}, resp.Body)
	assert.Nil(t, resp.Headers)
}

func TestEchoHandlerUnsupported(t *testing.T) {
	for _, m := range []string{"DELETE", "PATCH", "OPTIONS", "get"} {
		_, err := EchoHandler{}.Handle(&httpd.HandlerRequest{Method: m, Header: httpd.Header{}})
		assert.ErrorIs(t, err, httpd.ErrUnsupportedMethod, m)
	}
}
