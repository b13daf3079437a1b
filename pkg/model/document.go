package model

import (
	"regexp"
	"strings"
)

var (
	tableIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,64}$`)
)

// CheckTableID reports whether id is usable as a table identifier.
func CheckTableID(id string) bool {
	return tableIDRegex.MatchString(id)
}

// Document is one item of a table as the intranet API returns it: a decoded
// JSON object. Nested objects are map[string]interface{}.
type Document map[string]interface{}

// Get returns the raw value at a dotted path ("assignee.id"). The second
// result is false when any path segment is missing.
func (doc Document) Get(path string) (interface{}, bool) {
	if doc == nil {
		return nil, false
	}
	var cur interface{} = map[string]interface{}(doc)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Lookup returns the field at path as a Value. Missing paths are undefined.
func (doc Document) Lookup(path string) Value {
	raw, ok := doc.Get(path)
	if !ok {
		return Undefined
	}
	return ValueOf(raw)
}

// GetID returns the "id" field rendered as text, or "".
func (doc Document) GetID() string {
	if s, ok := doc.Lookup("id").ComparableString(); ok {
		return s
	}
	return ""
}

func (doc Document) HasKey(key string) bool {
	_, exists := doc[key]
	return exists
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}
