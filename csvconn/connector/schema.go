package connector

import (
	"github.com/openstandia/connector-csv/csvconn/config"
)

// AttributeRole marks attributes with a special meaning
type AttributeRole string

const (
	RolePlain    AttributeRole = ""
	RoleUID      AttributeRole = "uid"
	RoleName     AttributeRole = "name"
	RolePassword AttributeRole = "password"
	RoleRawJSON  AttributeRole = "rawJson"
)

// Attribute value types
const (
	TypeString  = "string"
	TypeSecret  = "secret"
	SubtypeJSON = "json"
)

// AttributeInfo describes one attribute of an object class.
type AttributeInfo struct {
	Name        string        `json:"name" yaml:"name"`
	NativeName  string        `json:"nativeName" yaml:"nativeName"`
	Type        string        `json:"type" yaml:"type"`
	Subtype     string        `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Role        AttributeRole `json:"role,omitempty" yaml:"role,omitempty"`
	Required    bool          `json:"required,omitempty" yaml:"required,omitempty"`
	MultiValued bool          `json:"multiValued,omitempty" yaml:"multiValued,omitempty"`
}

// Schema describes an object class as derived from its header.
type Schema struct {
	ObjectClass string          `json:"objectClass" yaml:"objectClass"`
	Container   bool            `json:"container,omitempty" yaml:"container,omitempty"`
	Auxiliary   bool            `json:"auxiliary,omitempty" yaml:"auxiliary,omitempty"`
	Attributes  []AttributeInfo `json:"attributes" yaml:"attributes"`
}

// Attribute looks up an attribute description by name
func (s *Schema) Attribute(name string) (AttributeInfo, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeInfo{}, false
}

// Identifier returns the description of the identifier attribute
func (s *Schema) Identifier() (AttributeInfo, bool) {
	for _, a := range s.Attributes {
		if a.Role == RoleUID {
			return a, true
		}
	}
	return AttributeInfo{}, false
}

// BuildSchema derives the schema of an object class from its header.
func BuildSchema(cfg config.ObjectClassConfig, header *Header) *Schema {
	schema := &Schema{
		ObjectClass: cfg.ObjectClass,
		Container:   cfg.Container,
		Auxiliary:   cfg.Auxiliary,
	}
	sameName := cfg.IsUniqueAndNameAttributeEqual()

	for _, column := range header.columns {
		name := column.Name
		if name == "" {
			continue
		}

		switch {
		case name == cfg.UniqueAttribute:
			schema.Attributes = append(schema.Attributes, AttributeInfo{
				Name: UIDAttribute, NativeName: name, Type: TypeString, Role: RoleUID,
			})
			if sameName {
				schema.Attributes = append(schema.Attributes, AttributeInfo{
					Name: NameAttribute, NativeName: name, Type: TypeString, Role: RoleName, Required: true,
				})
			} else {
				schema.Attributes = append(schema.Attributes, AttributeInfo{
					Name: name, NativeName: name, Type: TypeString, Required: true,
				})
			}
		case name == cfg.NameAttribute:
			schema.Attributes = append(schema.Attributes, AttributeInfo{
				Name: NameAttribute, NativeName: name, Type: TypeString, Role: RoleName,
			})
		case cfg.PasswordAttribute != "" && name == cfg.PasswordAttribute:
			schema.Attributes = append(schema.Attributes, AttributeInfo{
				Name: PasswordAttribute, NativeName: name, Type: TypeSecret, Role: RolePassword,
			})
		default:
			schema.Attributes = append(schema.Attributes, AttributeInfo{
				Name: name, NativeName: name, Type: TypeString, MultiValued: cfg.IsMultivalue(name),
			})
		}
	}

	if cfg.GroupByEnabled {
		schema.Attributes = append(schema.Attributes, AttributeInfo{
			Name: RawJSONAttribute, NativeName: RawJSONAttribute, Type: TypeString, Subtype: SubtypeJSON, Role: RoleRawJSON,
		})
	}

	return schema
}
