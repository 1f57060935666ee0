package httpd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessInjectsDefaults(t *testing.T) {
	r := preprocessResponse(Response{Version: HTTP11, Code: 200, Body: []byte("hello")}, "text/plain")

	ct, ok := r.Headers.Get("content-type")
	require.True(t, ok)
	assert.Equal(t, "text/plain", ct.Value)

	cl, ok := r.Headers.Get("Content-Length")
	require.True(t, ok)
	assert.Equal(t, "5", cl.Value)
	assert.False(t, r.CloseConnection)
}

func TestPreprocessKeepsCallerHeaders(t *testing.T) {
	orig := Response{
		Version: HTTP11,
		Code:    200,
		Headers: Fields{
			{Name: "content-type", Value: "application/json"},
			{Name: "CONTENT-LENGTH", Value: "2"},
		},
		Body: []byte("{}"),
	}
	r := preprocessResponse(orig, "text/plain")
	assert.Equal(t, orig.Headers, r.Headers)
}

func TestPreprocessEmptyBodyGetsZeroLength(t *testing.T) {
	r := preprocessResponse(Response{Version: HTTP11, Code: 200, Body: []byte{}}, "text/plain")
	cl, ok := r.Headers.Get("Content-Length")
	require.True(t, ok)
	assert.Equal(t, "0", cl.Value)

	r = preprocessResponse(Response{Version: HTTP11, Code: 200}, "text/plain")
	assert.False(t, r.Headers.Has("Content-Length"))
}

func TestPreprocessConnectionHeaderForcesClose(t *testing.T) {
	orig := Response{
		Version: HTTP11,
		Code:    200,
		Headers: Fields{{Name: "Connection", Value: "CLOSE"}},
	}
	r := preprocessResponse(orig, "text/plain")
	assert.True(t, r.CloseConnection)
	assert.False(t, orig.CloseConnection, "original response must not change")
	assert.Len(t, orig.Headers, 1)

	r = preprocessResponse(Response{
		Version: HTTP11,
		Code:    200,
		Headers: Fields{{Name: "Connection", Value: "keep-alive"}},
	}, "text/plain")
	assert.False(t, r.CloseConnection)
}

func TestResponseBytes(t *testing.T) {
	r := Response{
		Version: HTTP10,
		Code:    404,
		Headers: Fields{{Name: "X-A", Value: "1"}, {Name: "X-A", Value: "2"}},
		Body:    []byte("nope"),
	}
	assert.Equal(t, "HTTP/1.0 404 Not Found\r\nX-A: 1\r\nX-A: 2\r\n\r\nnope", string(r.Bytes()))

	r = Response{Version: HTTP11, Code: 299}
	assert.Equal(t, "HTTP/1.1 299 \r\n\r\n", string(r.Bytes()))

	r = Response{Version: HTTP11, Code: 200, Reason: "Fine"}
	assert.Equal(t, "HTTP/1.1 200 Fine\r\n\r\n", string(r.Bytes()))
}

func TestResponseBytesHTTP09(t *testing.T) {
	r := Response{
		Version: HTTP09,
		Code:    200,
		Headers: Fields{{Name: "Content-Type", Value: "text/plain"}},
		Body:    []byte("raw"),
	}
	assert.Equal(t, "raw", string(r.Bytes()))
}

func TestErrorResponseBodyOmitted(t *testing.T) {
	for _, code := range []int{100, 101, 204, 205, 304} {
		e := newError(HTTP11, code, "<b>message</b>", "", "GET")
		r, err := buildErrorResponse(e, DefaultErrorContentType, fixedNow)
		require.NoError(t, err)
		assert.Nil(t, r.Body, "code %d", code)
		assert.False(t, r.Headers.Has("Content-Length"), "code %d", code)
		assert.True(t, r.CloseConnection)
	}
}

func TestErrorResponseEscapesAndCloses(t *testing.T) {
	e := newError(HTTP11, 400, "<script>x</script>", "", "GET")
	r, err := buildErrorResponse(e, DefaultErrorContentType, fixedNow)
	require.NoError(t, err)

	body := string(r.Body)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "Bad request syntax or unsupported method")
	assert.True(t, r.CloseConnection)

	conn, ok := r.Headers.Get("Connection")
	require.True(t, ok)
	assert.Equal(t, "close", conn.Value)

	cl, ok := r.Headers.Get("Content-Length")
	require.True(t, ok)
	assert.Equal(t, len(r.Body), atoi(t, cl.Value))
}

func TestErrorResponseKeepsQuotes(t *testing.T) {
	e := newError(HTTP11, 501, "Unsupported method ('FOO')", "", "FOO")
	r, err := buildErrorResponse(e, DefaultErrorContentType, fixedNow)
	require.NoError(t, err)

	body := string(r.Body)
	assert.Contains(t, body, "<p>Message: Unsupported method ('FOO').</p>")
	assert.NotContains(t, body, "&#39;")

	e = newError(HTTP11, 400, `a "b" & c`, "", "GET")
	r, err = buildErrorResponse(e, DefaultErrorContentType, fixedNow)
	require.NoError(t, err)
	assert.Contains(t, string(r.Body), `<p>Message: a "b" &amp; c.</p>`)
}

func TestErrorResponseHeadKeepsLength(t *testing.T) {
	get, err := buildErrorResponse(newError(HTTP11, 404, "", "", "GET"), DefaultErrorContentType, fixedNow)
	require.NoError(t, err)
	head, err := buildErrorResponse(newError(HTTP11, 404, "", "", "HEAD"), DefaultErrorContentType, fixedNow)
	require.NoError(t, err)

	assert.Nil(t, head.Body)
	gcl, _ := get.Headers.Get("Content-Length")
	hcl, _ := head.Headers.Get("Content-Length")
	assert.Equal(t, gcl, hcl)
	assert.Equal(t, len(get.Body), atoi(t, hcl.Value))
}

func TestNewErrorUnknownCode(t *testing.T) {
	e := newError(HTTP11, 599, "", "", "")
	assert.Equal(t, "???", e.Message)
	assert.Equal(t, "???", e.Explain)

	r, err := buildErrorResponse(e, DefaultErrorContentType, fixedNow)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(r.Bytes()), "HTTP/1.1 599 ???\r\n"))
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		require.True(t, c >= '0' && c <= '9', "not a number: %q", s)
		n = n*10 + int(c-'0')
	}
	return n
}
