package httpd

import (
	"bytes"
	"strconv"
	"strings"
	"text/template"
	"time"
)

const (
	DefaultContentType      = "text/plain"
	DefaultErrorContentType = "text/html;charset=utf-8"

	dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// Response is an outgoing response. Values are treated as immutable: every
// transformation returns a copy.
type Response struct {
	Version Version
	Code    int
	Reason  string // empty selects the standard phrase
	Headers Fields
	Body    []byte // nil means no body

	CloseConnection bool
}

// Error is a protocol-level failure that becomes an error Response.
type Error struct {
	Version Version
	Code    int
	Message string
	Explain string
	Method  string // offending method, if any
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateFormat)
}

func defaultFields(now time.Time) Fields {
	return Fields{{Name: "Date", Value: formatDate(now)}}
}

func (r Response) withHeaders(extra ...Field) Response {
	fs := make(Fields, 0, len(r.Headers)+len(extra))
	fs = append(fs, r.Headers...)
	r.Headers = append(fs, extra...)
	return r
}

// preprocessResponse fills in the headers every response must carry and
// honours a caller-supplied "Connection: close".
func preprocessResponse(r Response, defaultContentType string) Response {
	var extra []Field

	if !r.Headers.Has("Content-Type") {
		extra = append(extra, Field{Name: "Content-Type", Value: defaultContentType})
	}

	if r.Body != nil && !r.Headers.Has("Content-Length") {
		extra = append(extra, Field{Name: "Content-Length", Value: strconv.Itoa(len(r.Body))})
	}

	if len(extra) > 0 {
		r = r.withHeaders(extra...)
	}

	if f, ok := r.Headers.Get("Connection"); ok && strings.EqualFold(f.Value, "close") {
		r.CloseConnection = true
	}
	return r
}

// Bytes serializes the response. HTTP/0.9 responses carry the body only.
func (r Response) Bytes() []byte {
	var buf bytes.Buffer

	if r.Version.AtLeast(HTTP10) {
		reason := r.Reason
		if reason == "" {
			reason = StatusPhrase(r.Code)
		}
		buf.WriteString(r.Version.String())
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(r.Code))
		buf.WriteByte(' ')
		buf.WriteString(reason)
		buf.WriteString("\r\n")

		for _, f := range r.Headers {
			buf.WriteString(f.Name)
			buf.WriteString(": ")
			buf.WriteString(f.Value)
			buf.WriteString("\r\n")
		}
		buf.WriteString("\r\n")
	}

	buf.Write(r.Body)
	return buf.Bytes()
}

// newError fills message and explanation from the status table when empty.
func newError(version Version, code int, message, explain, method string) *Error {
	short, long := statusMessages(code)
	if message == "" {
		message = short
	}
	if explain == "" {
		explain = long
	}
	return &Error{
		Version: version,
		Code:    code,
		Message: message,
		Explain: explain,
		Method:  method,
	}
}

// Quotes are left alone; the page only interpolates element text.
var htmlText = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

var errorPage = template.Must(template.New("error").Funcs(template.FuncMap{
	"text": htmlText.Replace,
}).Parse(`<!DOCTYPE HTML>
<html lang="en">
    <head>
        <meta charset="utf-8">
        <title>Error response</title>
    </head>
    <body>
        <h1>Error response</h1>
        <p>Error code: {{.Code}}</p>
        <p>Message: {{text .Message}}.</p>
        <p>Error code explanation: {{.Code}} - {{text .Explain}}.</p>
    </body>
</html>
`))

// errorHasBody reports whether a status may carry a message body
// (RFC 7230 3.3, RFC 7231 6.3.6).
func errorHasBody(code int) bool {
	if code < StatusOK {
		return false
	}
	switch code {
	case StatusNoContent, StatusResetContent, StatusNotModified:
		return false
	}
	return true
}

func buildErrorResponse(e *Error, errorContentType string, now time.Time) (Response, error) {
	headers := append(defaultFields(now), Field{Name: "Connection", Value: "close"})

	var body []byte
	if errorHasBody(e.Code) {
		var buf bytes.Buffer
		if err := errorPage.Execute(&buf, e); err != nil {
			return Response{}, err
		}
		page := buf.Bytes()

		headers = append(headers,
			Field{Name: "Content-Type", Value: errorContentType},
			Field{Name: "Content-Length", Value: strconv.Itoa(len(page))},
		)

		if e.Method != "HEAD" && len(page) > 0 {
			body = page
		}
	}

	return Response{
		Version:         e.Version,
		Code:            e.Code,
		Reason:          e.Message,
		Headers:         headers,
		Body:            body,
		CloseConnection: true,
	}, nil
}
