package httpd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net/textproto"
	"strconv"
	"strings"
)

const (
	DefaultMaxLine    = 0x10000
	DefaultMaxHeaders = 100
)

// defaultRequestVersion is reported until the request line yields a version.
// Most servers answer a malformed request line as HTTP/0.9.
var defaultRequestVersion = HTTP09

var ErrUnsupportedVersion = errors.New("httpd: unsupported server version")

const tlsHandshakePrefix = 0x16

// ParseInfo is common to every parse outcome.
type ParseInfo struct {
	ServerVersion  Version
	RequestLine    string
	RequestVersion Version
	// Version is min(server, request) once the request line names one,
	// otherwise the server's version.
	Version         Version
	Header          Header
	CloseConnection bool
}

// ParseResult is one of *EmptyResult, *ParseError or *ParsedRequest.
type ParseResult interface {
	Info() *ParseInfo
}

// EmptyResult means the peer sent nothing before closing.
type EmptyResult struct {
	ParseInfo
}

// ParseError is a request that must be answered with an error status.
type ParseError struct {
	ParseInfo
	Code    int
	Message string
	Explain string // empty selects the status table's explanation
}

type ParsedRequest struct {
	ParseInfo
	Method          string
	Path            string
	ExpectsContinue bool
}

func (r *ParseInfo) Info() *ParseInfo { return r }

// RequestParser turns request-line and header lines into a ParseResult.
type RequestParser struct {
	serverVersion Version
	maxLine       int
	maxHeaders    int
}

// NewRequestParser returns a parser. maxLine and maxHeaders fall back to the
// defaults when not positive.
func NewRequestParser(serverVersion Version, maxLine, maxHeaders int) (*RequestParser, error) {
	if serverVersion.AtLeast(HTTP20) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, serverVersion)
	}
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	if maxHeaders <= 0 {
		maxHeaders = DefaultMaxHeaders
	}
	return &RequestParser{
		serverVersion: serverVersion,
		maxLine:       maxLine,
		maxHeaders:    maxHeaders,
	}, nil
}

func (p *RequestParser) ServerVersion() Version {
	return p.serverVersion
}

// Begin starts parsing one request.
func (p *RequestParser) Begin() *RequestParse {
	return &RequestParse{
		p: p,
		info: ParseInfo{
			ServerVersion:   p.serverVersion,
			RequestLine:     "-",
			RequestVersion:  defaultRequestVersion,
			Version:         p.serverVersion,
			CloseConnection: true,
		},
	}
}

// RequestParse is a single in-flight parse. Feed it lines until it returns a result.
type RequestParse struct {
	p *RequestParser

	info      ParseInfo
	inHeaders bool
	method    string
	path      string
	rawLines  [][]byte
}

// Want returns the size of the next line to read.
func (r *RequestParse) Want() int {
	return r.p.maxLine + 1
}

// Feed consumes one line, including its terminator. An empty line means the
// peer reached EOF. A nil result means another line is needed.
func (r *RequestParse) Feed(line []byte) ParseResult {
	if !r.inHeaders {
		return r.feedRequestLine(line)
	}
	return r.feedHeaderLine(line)
}

func (r *RequestParse) fail(code int, message, explain string) *ParseError {
	return &ParseError{
		ParseInfo: r.info,
		Code:      code,
		Message:   message,
		Explain:   explain,
	}
}

func (r *RequestParse) feedRequestLine(raw []byte) ParseResult {
	if len(raw) > r.p.maxLine {
		return r.fail(StatusRequestURITooLong, "Request line too long", "")
	}

	if len(raw) == 0 {
		return &EmptyResult{ParseInfo: r.info}
	}

	if raw[0] == tlsHandshakePrefix {
		return r.fail(StatusBadRequest, "Bad request version (probable TLS handshake)", "")
	}

	r.info.RequestLine = strings.TrimRight(latin1(raw), "\r\n")

	words := strings.Fields(r.info.RequestLine)
	if len(words) == 0 {
		return &EmptyResult{ParseInfo: r.info}
	}

	if len(words) >= 3 {
		versionStr := words[len(words)-1]
		v, err := parseRequestVersion(versionStr)
		if err != nil {
			return r.fail(StatusBadRequest, fmt.Sprintf("Bad request version (%s)", quote(versionStr)), "")
		}
		r.info.RequestVersion = v

		if v.Less(HTTP09) || v.AtLeast(HTTP20) {
			return r.fail(StatusVersionNotSupported, fmt.Sprintf("Invalid HTTP version (%s)", versionStr), "")
		}

		r.info.Version = minVersion(r.p.serverVersion, v)
		if r.info.Version.AtLeast(HTTP11) {
			r.info.CloseConnection = false
		}
	}

	if len(words) < 2 || len(words) > 3 {
		return r.fail(StatusBadRequest, fmt.Sprintf("Bad request syntax (%s)", quote(r.info.RequestLine)), "")
	}

	r.method, r.path = words[0], words[1]
	if len(words) == 2 {
		r.info.CloseConnection = true
		if r.method != "GET" {
			return r.fail(StatusBadRequest, fmt.Sprintf("Bad HTTP/0.9 request type (%s)", quote(r.method)), "")
		}
	}

	// "//host/x" would be taken by clients as a scheme-relative URI.
	if strings.HasPrefix(r.path, "//") {
		r.path = "/" + strings.TrimLeft(r.path, "/")
	}

	r.inHeaders = true
	return nil
}

func (r *RequestParse) feedHeaderLine(line []byte) ParseResult {
	if len(line) > r.p.maxLine {
		return r.fail(StatusHeaderFieldsTooLarge, "Line too long", "header line")
	}

	r.rawLines = append(r.rawLines, line)
	if len(r.rawLines) > r.p.maxHeaders {
		return r.fail(StatusHeaderFieldsTooLarge, "Too many headers", fmt.Sprintf("got more than %d headers", r.p.maxHeaders))
	}

	if !isHeaderTerminator(line) {
		return nil
	}

	header, err := parseRawHeaders(r.rawLines)
	if err != nil {
		return r.fail(StatusBadRequest, "Bad request headers", err.Error())
	}
	r.info.Header = header

	conn := strings.ToLower(header.Get("Connection"))
	if conn == "close" {
		r.info.CloseConnection = true
	} else if conn == "keep-alive" && r.info.Version.AtLeast(HTTP11) {
		r.info.CloseConnection = false
	}

	expectsContinue := strings.ToLower(header.Get("Expect")) == "100-continue" &&
		r.info.Version.AtLeast(HTTP11)

	return &ParsedRequest{
		ParseInfo:       r.info,
		Method:          r.method,
		Path:            r.path,
		ExpectsContinue: expectsContinue,
	}
}

func isHeaderTerminator(line []byte) bool {
	return len(line) == 0 || string(line) == "\n" || string(line) == "\r\n"
}

func parseRawHeaders(lines [][]byte) (Header, error) {
	var buf bytes.Buffer
	for _, l := range lines {
		if isHeaderTerminator(l) {
			continue
		}
		buf.Write(l)
		if !bytes.HasSuffix(l, []byte("\n")) {
			buf.WriteString("\r\n")
		}
	}
	buf.WriteString("\r\n")

	tp := textproto.NewReader(bufio.NewReader(&buf))
	m, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, err
	}
	return Header(m), nil
}

func parseRequestVersion(s string) (Version, error) {
	rest, ok := strings.CutPrefix(s, "HTTP/")
	if !ok {
		return Version{}, fmt.Errorf("bad version prefix %q", s)
	}

	parts := strings.Split(rest, ".")
	if len(parts) != 2 {
		return Version{}, fmt.Errorf("bad version number %q", rest)
	}

	var nums [2]int
	for i, part := range parts {
		if part == "" || len(part) > 10 || strings.TrimLeft(part, "0123456789") != "" {
			return Version{}, fmt.Errorf("bad version component %q", part)
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, err
		}
		nums[i] = n
	}
	return Version{nums[0], nums[1]}, nil
}

// latin1 decodes ISO-8859-1 bytes, which map one-to-one onto code points.
func latin1(b []byte) string {
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = rune(c)
	}
	return string(rs)
}

func quote(s string) string {
	return "'" + s + "'"
}
