package httpd

import "errors"

// ErrUnsupportedMethod is returned by a Handler that does not serve the
// request's method. The engine answers with 501 Not Implemented.
var ErrUnsupportedMethod = errors.New("httpd: unsupported method")

type HandlerRequest struct {
	ClientAddr string
	Method     string
	Path       string
	Header     Header
	Body       []byte // nil when the request carried no Content-Length
}

type HandlerResponse struct {
	Status          int
	Headers         Fields
	Body            []byte // nil means no body; an empty slice still gets Content-Length: 0
	CloseConnection bool
}

// Handler is the application seam. It must not block on network I/O.
type Handler interface {
	Handle(req *HandlerRequest) (*HandlerResponse, error)
}

type HandlerFunc func(req *HandlerRequest) (*HandlerResponse, error)

func (f HandlerFunc) Handle(req *HandlerRequest) (*HandlerResponse, error) {
	return f(req)
}
