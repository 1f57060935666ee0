package node

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/fzft/go-coro-httpd/httpd"
)

// EchoHandler is the default application handler. GET and HEAD describe
// the request back to the client; POST and PUT echo the body. Any other
// method is unsupported.
type EchoHandler struct{}

func (EchoHandler) Handle(req *httpd.HandlerRequest) (*httpd.HandlerResponse, error) {
	switch req.Method {
	case "GET", "HEAD":
		body := describe(req)
		resp := &httpd.HandlerResponse{
			Status: httpd.StatusOK,
			Headers: httpd.Fields{
				{Name: "Content-Type", Value: "text/plain; charset=utf-8"},
				{Name: "Content-Length", Value: strconv.Itoa(len(body))},
			},
		}
		if req.Method == "GET" {
			resp.Body = body
		}
		return resp, nil

	case "POST", "PUT":
		body := req.Body
		if body == nil {
			body = []byte{}
		}
		resp := &httpd.HandlerResponse{Status: httpd.StatusOK, Body: body}
		if ct := req.Header.Get("Content-Type"); ct != "" {
			resp.Headers = httpd.Fields{{Name: "Content-Type", Value: ct}}
		}
		return resp, nil
	}
	return nil, httpd.ErrUnsupportedMethod
}

func describe(req *httpd.HandlerRequest) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s\n", req.Method, req.Path)
	fmt.Fprintf(&b, "client: %s\n", req.ClientAddr)

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range req.Header[name] {
			fmt.Fprintf(&b, "%s: %s\n", name, v)
		}
	}
	return b.Bytes()
}
