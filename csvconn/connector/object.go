package connector

import (
	"encoding/json"
	"sort"
)

// Special attribute names used in schema descriptions and objects
const (
	UIDAttribute      = "__UID__"
	NameAttribute     = "__NAME__"
	PasswordAttribute = "__PASSWORD__"
	RawJSONAttribute  = "rawJson"
)

const secretMask = "********"

// Secret holds a password value. It never prints or serializes the value.
type Secret struct {
	value string
}

// NewSecret wraps value
func NewSecret(value string) *Secret {
	return &Secret{value: value}
}

// Reveal returns the clear text value
func (s *Secret) Reveal() string {
	if s == nil {
		return ""
	}
	return s.value
}

func (s *Secret) String() string {
	return secretMask
}

// MarshalJSON renders the mask
func (s *Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(secretMask)
}

// MarshalYAML renders the mask
func (s *Secret) MarshalYAML() (interface{}, error) {
	return secretMask, nil
}

// Object is one record exposed to the caller.
type Object struct {
	ObjectClass string              `json:"objectClass" yaml:"objectClass"`
	UID         string              `json:"uid" yaml:"uid"`
	Name        string              `json:"name,omitempty" yaml:"name,omitempty"`
	Attributes  map[string][]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Password    *Secret             `json:"password,omitempty" yaml:"password,omitempty"`
}

// Attribute returns the values of a plain attribute
func (o *Object) Attribute(name string) []string {
	return o.Attributes[name]
}

// First returns the first value of an attribute or ""
func (o *Object) First(name string) string {
	if v := o.Attributes[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// RawJSON returns the serialized row group, set only with group-by
func (o *Object) RawJSON() string {
	return o.First(RawJSONAttribute)
}

// AttributeNames returns the attribute names in sorted order
func (o *Object) AttributeNames() []string {
	names := make([]string, 0, len(o.Attributes))
	for n := range o.Attributes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ChangeType is the kind of a change entry. Deletions are never reported.
type ChangeType int

const (
	ChangeCreateOrUpdate ChangeType = iota
)

func (c ChangeType) String() string {
	return "CREATE_OR_UPDATE"
}

// MarshalText renders the change type name
func (c ChangeType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ChangeEntry is one delta delivered by Sync.
type ChangeEntry struct {
	Type   ChangeType `json:"type" yaml:"type"`
	Token  Token      `json:"token" yaml:"token"`
	Object *Object    `json:"object" yaml:"object"`
}

// ResultHandler receives search results; returning false stops the search.
type ResultHandler func(obj *Object) bool

// ChangeHandler receives change entries; returning false stops the sync.
type ChangeHandler func(entry *ChangeEntry) bool

// Query selects objects. A nil query matches everything.
type Query struct {
	UID string
}

func (q *Query) matches(obj *Object) bool {
	return q == nil || q.UID == obj.UID
}
