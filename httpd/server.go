package httpd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrEngineDone is returned by Step once the connection has no further
	// requests to serve.
	ErrEngineDone = errors.New("httpd: engine done")

	// ErrUnexpectedInput is returned when Step is resumed with input that does
	// not match the outstanding Io.
	ErrUnexpectedInput = errors.New("httpd: unexpected input")
)

type state uint8

const (
	stateIdle        state = iota // next Step begins a request
	stateParsing                  // awaiting a ReadLine result
	stateLogged                   // awaiting LogRequest ack
	stateContinued                // awaiting ack of the 100 Continue write
	stateBody                     // awaiting ReadExact result
	stateErrorLogged              // awaiting LogError ack
	stateWritten                  // awaiting ack of the final write
	stateDone
)

// Server is the per-connection protocol engine. It never touches a socket:
// each Step returns the next Io the driver must satisfy, and the driver calls
// Step again with the result. Exactly one Io is outstanding at a time.
//
// A Server is not safe for concurrent use.
type Server struct {
	clientAddr string
	handler    Handler
	parser     *RequestParser

	defaultContentType string
	errorContentType   string
	closeOnResponse    bool
	now                func() time.Time

	state   state
	current Io
	parse   *RequestParse
	request *ParsedRequest
	pending *Response
	closing bool
}

type Option func(*Server)

func WithParser(p *RequestParser) Option {
	return func(s *Server) { s.parser = p }
}

func WithDefaultContentType(ct string) Option {
	return func(s *Server) { s.defaultContentType = ct }
}

func WithErrorContentType(ct string) Option {
	return func(s *Server) { s.errorContentType = ct }
}

// WithCloseOnResponse ends the keep-alive loop after a response whose
// CloseConnection is set. Off by default: the engine then keeps reading and
// relies on the peer closing its side.
func WithCloseOnResponse(v bool) Option {
	return func(s *Server) { s.closeOnResponse = v }
}

// WithClock overrides the source of the Date header.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func NewServer(clientAddr string, handler Handler, opts ...Option) *Server {
	s := &Server{
		clientAddr:         clientAddr,
		handler:            handler,
		defaultContentType: DefaultContentType,
		errorContentType:   DefaultErrorContentType,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		// HTTP11 is below HTTP20, so this cannot fail.
		s.parser, _ = NewRequestParser(HTTP11, DefaultMaxLine, DefaultMaxHeaders)
	}
	return s
}

func (s *Server) ClientAddr() string {
	return s.clientAddr
}

// Current returns the outstanding Io, or nil before the first Step and after
// the engine is done.
func (s *Server) Current() Io {
	return s.current
}

func (s *Server) Done() bool {
	return s.state == stateDone
}

// Step resumes the engine. Pass nil to start and to acknowledge Write and Log
// requests; pass the bytes read for ReadLine and ReadExact.
func (s *Server) Step(in []byte) (Io, error) {
	next, err := s.step(in)
	if err != nil {
		if errors.Is(err, ErrEngineDone) {
			s.state = stateDone
			s.current = nil
		}
		return nil, err
	}
	s.current = next
	return next, nil
}

func (s *Server) step(in []byte) (Io, error) {
	switch s.state {
	case stateIdle:
		return s.begin()

	case stateParsing:
		if in == nil {
			return nil, fmt.Errorf("%w: ReadLine resumed without data", ErrUnexpectedInput)
		}
		return s.feedLine(in)

	case stateLogged:
		if err := expectAck(in); err != nil {
			return nil, err
		}
		if s.request.ExpectsContinue {
			s.state = stateContinued
			return s.write(Response{Version: s.request.Version, Code: StatusContinue}), nil
		}
		return s.readBody()

	case stateContinued:
		if err := expectAck(in); err != nil {
			return nil, err
		}
		return s.readBody()

	case stateBody:
		want := s.current.(ReadExact).Size
		if in == nil || len(in) != want {
			return nil, fmt.Errorf("%w: ReadExact(%d) resumed with %d bytes", ErrUnexpectedInput, want, len(in))
		}
		return s.dispatch(in)

	case stateErrorLogged:
		if err := expectAck(in); err != nil {
			return nil, err
		}
		resp := *s.pending
		s.pending = nil
		s.state = stateWritten
		return s.write(resp), nil

	case stateWritten:
		if err := expectAck(in); err != nil {
			return nil, err
		}
		if s.closing {
			return nil, ErrEngineDone
		}
		return s.begin()

	case stateDone:
		return nil, ErrEngineDone
	}

	return nil, fmt.Errorf("httpd: invalid engine state %d", s.state)
}

func expectAck(in []byte) error {
	if in != nil {
		return fmt.Errorf("%w: acknowledgement carried %d bytes", ErrUnexpectedInput, len(in))
	}
	return nil
}

func (s *Server) begin() (Io, error) {
	s.parse = s.parser.Begin()
	s.request = nil
	s.state = stateParsing
	return ReadLine{MaxSize: s.parse.Want()}, nil
}

func (s *Server) feedLine(line []byte) (Io, error) {
	res := s.parse.Feed(line)
	if res == nil {
		return ReadLine{MaxSize: s.parse.Want()}, nil
	}
	s.parse = nil

	switch r := res.(type) {
	case *EmptyResult:
		return nil, ErrEngineDone

	case *ParseError:
		return s.fail(newError(r.Version, r.Code, r.Message, r.Explain, ""))

	case *ParsedRequest:
		s.request = r
		s.state = stateLogged
		return LogRequest{Request: r}, nil
	}

	return nil, fmt.Errorf("httpd: unknown parse result %T", res)
}

func (s *Server) readBody() (Io, error) {
	cl, ok := s.request.Header.Lookup("Content-Length")
	if !ok {
		return s.dispatch(nil)
	}

	n, err := strconv.Atoi(strings.TrimSpace(cl))
	if err != nil || n < 0 {
		return s.fail(newError(s.request.Version, StatusBadRequest,
			fmt.Sprintf("Bad Content-Length (%s)", quote(cl)), "", s.request.Method))
	}

	s.state = stateBody
	return ReadExact{Size: n}, nil
}

func (s *Server) dispatch(body []byte) (Io, error) {
	req := s.request

	hresp, err := s.handler.Handle(&HandlerRequest{
		ClientAddr: s.clientAddr,
		Method:     req.Method,
		Path:       req.Path,
		Header:     req.Header,
		Body:       body,
	})
	switch {
	case errors.Is(err, ErrUnsupportedMethod):
		return s.fail(newError(req.Version, StatusNotImplemented,
			fmt.Sprintf("Unsupported method (%s)", quote(req.Method)), "", req.Method))
	case err != nil:
		return s.fail(newError(req.Version, StatusInternalServerError, "", err.Error(), req.Method))
	case hresp == nil:
		return s.fail(newError(req.Version, StatusInternalServerError, "", "", req.Method))
	}

	headers := append(defaultFields(s.now()), hresp.Headers...)
	if hresp.CloseConnection && !headers.Has("Connection") {
		headers = append(headers, Field{Name: "Connection", Value: "close"})
	}

	s.state = stateWritten
	return s.write(Response{
		Version:         req.Version,
		Code:            hresp.Status,
		Headers:         headers,
		Body:            hresp.Body,
		CloseConnection: hresp.CloseConnection,
	}), nil
}

// fail emits the LogError for e and stages its error response.
func (s *Server) fail(e *Error) (Io, error) {
	resp, err := buildErrorResponse(e, s.errorContentType, s.now())
	if err != nil {
		return nil, fmt.Errorf("httpd: render error page: %w", err)
	}
	s.pending = &resp
	s.state = stateErrorLogged
	return LogError{Error: e}, nil
}

func (s *Server) write(r Response) Io {
	r = preprocessResponse(r, s.defaultContentType)
	if s.state == stateWritten {
		s.closing = s.closeOnResponse && r.CloseConnection
	}
	return Write{Data: r.Bytes()}
}
