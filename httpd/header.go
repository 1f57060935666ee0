package httpd

import (
	"net/textproto"
	"strings"
)

// Header is a parsed request header map with case-insensitive lookup.
type Header map[string][]string

func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	if vv := h[textproto.CanonicalMIMEHeaderKey(key)]; len(vv) > 0 {
		return vv[0]
	}
	return ""
}

// Lookup is Get that also reports presence.
func (h Header) Lookup(key string) (string, bool) {
	if h == nil {
		return "", false
	}
	vv, ok := h[textproto.CanonicalMIMEHeaderKey(key)]
	if !ok || len(vv) == 0 {
		return "", false
	}
	return vv[0], true
}

func (h Header) Set(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = []string{value}
}

func (h Header) Add(key, value string) {
	k := textproto.CanonicalMIMEHeaderKey(key)
	h[k] = append(h[k], value)
}

func (h Header) Del(key string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(key))
}

// Field is one response header line.
type Field struct {
	Name  string
	Value string
}

// Fields is an ordered header list. Duplicates are kept as given.
type Fields []Field

// Get returns the first field whose name matches key case-insensitively.
func (fs Fields) Get(key string) (Field, bool) {
	for _, f := range fs {
		if strings.EqualFold(f.Name, key) {
			return f, true
		}
	}
	return Field{}, false
}

func (fs Fields) Has(key string) bool {
	_, ok := fs.Get(key)
	return ok
}
