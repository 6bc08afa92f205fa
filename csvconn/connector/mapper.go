package connector

import (
	"encoding/json"
	"strings"

	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/csvfile"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
)

// Mapper turns records into objects for one object class.
type Mapper struct {
	cfg         config.ObjectClassConfig
	header      *Header
	uniqueIndex int
	composite   []int
	source      string
}

// NewMapper creates a mapper. The header must contain the unique attribute.
func NewMapper(cfg config.ObjectClassConfig, header *Header) (*Mapper, error) {
	if err := header.Validate(cfg); err != nil {
		return nil, err
	}

	unique, _ := header.Column(cfg.UniqueAttribute)
	composite := make([]int, 0, len(cfg.CompositeUniqueAttributes))
	for _, attr := range cfg.CompositeUniqueAttributes {
		column, _ := header.Column(attr)
		composite = append(composite, column.Index)
	}

	return &Mapper{
		cfg:         cfg,
		header:      header,
		uniqueIndex: unique.Index,
		composite:   composite,
		source:      cfg.FilePath,
	}, nil
}

// withSource returns a copy of the mapper reporting errors against path
func (m *Mapper) withSource(path string) *Mapper {
	c := *m
	c.source = path
	return &c
}

// UniqueValue returns the raw unique attribute cell of a record
func (m *Mapper) UniqueValue(rec *csvfile.Record) string {
	return cell(rec, m.uniqueIndex)
}

// Identifier returns the (possibly composite) identifier of a record
func (m *Mapper) Identifier(rec *csvfile.Record) string {
	uid := m.UniqueValue(rec)
	if len(m.composite) == 0 {
		return uid
	}

	var b strings.Builder
	b.WriteString(uid)
	for _, idx := range m.composite {
		b.WriteString(m.cfg.CompositeUniqueAttributeDelimiter)
		b.WriteString(cell(rec, idx))
	}
	return b.String()
}

// CheckWidth fails with a structural error when the record does not have
// one value per header column.
func (m *Mapper) CheckWidth(rec *csvfile.Record) error {
	if len(rec.Values) != m.header.Size() {
		return common.NewStructuralError("map record", m.source, rec.Number,
			"number of columns in header (%d) doesn't match number of columns for row (%d)",
			m.header.Size(), len(rec.Values))
	}
	return nil
}

// Map builds an object from one record, or from a row group when group-by
// is enabled. Roles come from the first row; with group-by every row is
// also serialized into the rawJson attribute.
func (m *Mapper) Map(rows []*csvfile.Record) (*Object, error) {
	for _, rec := range rows {
		if err := m.CheckWidth(rec); err != nil {
			return nil, err
		}
	}
	first := rows[0]
	if m.UniqueValue(first) == "" {
		return nil, common.NewStructuralError("map record", m.source, first.Number,
			"unique attribute %q value is empty", m.cfg.UniqueAttribute)
	}

	obj := &Object{
		ObjectClass: m.cfg.ObjectClass,
		Attributes:  make(map[string][]string),
	}
	sameName := m.cfg.IsUniqueAndNameAttributeEqual()

	for _, column := range m.header.columns {
		value := first.Values[column.Index]
		if value == "" {
			continue
		}

		switch {
		case column.Name == m.cfg.UniqueAttribute:
			obj.UID = m.Identifier(first)
			if sameName {
				obj.Name = value
			} else {
				obj.Attributes[column.Name] = []string{value}
			}
		case column.Name == m.cfg.NameAttribute:
			obj.Name = value
		case m.cfg.PasswordAttribute != "" && column.Name == m.cfg.PasswordAttribute:
			obj.Password = NewSecret(value)
		default:
			if values := m.attributeValues(column.Name, value); len(values) > 0 {
				obj.Attributes[column.Name] = values
			}
		}
	}

	if m.cfg.GroupByEnabled {
		raw, err := m.rawJSON(rows)
		if err != nil {
			return nil, err
		}
		obj.Attributes[RawJSONAttribute] = []string{raw}
	}

	return obj, nil
}

func (m *Mapper) attributeValues(name, value string) []string {
	if !m.cfg.IsMultivalue(name) || m.cfg.MultivalueDelimiter == "" {
		return []string{value}
	}

	parts := strings.Split(value, m.cfg.MultivalueDelimiter)
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}

func (m *Mapper) rawJSON(rows []*csvfile.Record) (string, error) {
	maps := make([]map[string]string, 0, len(rows))
	for _, rec := range rows {
		row := make(map[string]string, m.header.Size())
		nonEmpty := false
		for _, column := range m.header.columns {
			value := rec.Values[column.Index]
			row[column.Name] = value
			if value != "" {
				nonEmpty = true
			}
		}
		if nonEmpty {
			maps = append(maps, row)
		}
	}

	data, err := json.Marshal(maps)
	if err != nil {
		return "", common.NewStructuralError("serialize row group", m.source, rows[0].Number, "%v", err)
	}
	return string(data), nil
}

func cell(rec *csvfile.Record, idx int) string {
	if idx < 0 || idx >= len(rec.Values) {
		return ""
	}
	return rec.Values[idx]
}
