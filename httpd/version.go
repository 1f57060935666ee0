package httpd

import "fmt"

// Version is an HTTP protocol version.
type Version struct {
	Major int
	Minor int
}

var (
	HTTP09 = Version{0, 9}
	HTTP10 = Version{1, 0}
	HTTP11 = Version{1, 1}
	HTTP20 = Version{2, 0}
)

func (v Version) String() string {
	return fmt.Sprintf("HTTP/%d.%d", v.Major, v.Minor)
}

func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// AtLeast reports whether v >= o.
func (v Version) AtLeast(o Version) bool {
	return !v.Less(o)
}

func minVersion(a, b Version) Version {
	if a.Less(b) {
		return a
	}
	return b
}

// ParseVersion parses an "HTTP/<major>.<minor>" token.
func ParseVersion(s string) (Version, error) {
	return parseRequestVersion(s)
}
