package query

import (
	"fmt"
	"strings"

	"github.com/anand-gl/jsoncanonicalizer"
	jsonitor "github.com/json-iterator/go"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// Key identifies a cached query. It is an ordered tuple whose first part is the
// namespace. Parts are compared by their canonical JSON form, so two keys built
// from equal values are equal regardless of map ordering or number formatting.
type Key []any

// NewKey returns a key made of parts.
func NewKey(parts ...any) Key {
	return Key(parts)
}

// Append returns a new key with parts added after k. k is not modified.
func (k Key) Append(parts ...any) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// Namespace returns the first part of the key rendered as a string.
func (k Key) Namespace() string {
	if len(k) == 0 {
		return ""
	}
	if s, ok := k[0].(string); ok {
		return s
	}
	return Segment(k[0])
}

// Segments returns the canonical form of every part.
func (k Key) Segments() []string {
	segs := make([]string, len(k))
	for i, p := range k {
		segs[i] = Segment(p)
	}
	return segs
}

// HasPrefix reports whether prefix matches the leading parts of k. A key is a
// prefix of itself and the empty key is a prefix of every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if Segment(prefix[i]) != Segment(k[i]) {
			return false
		}
	}
	return true
}

// Equal reports whether k and other have the same canonical form.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

// String renders the key as a canonical JSON array.
func (k Key) String() string {
	return "[" + strings.Join(k.Segments(), ",") + "]"
}

// Segment renders a single key part in canonical JSON (RFC 8785). Values that
// cannot be encoded fall back to their fmt representation.
func Segment(part any) string {
	raw, err := json.Marshal(part)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(part))
	}
	canon, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return string(raw)
	}
	return string(canon)
}
