package connector

import (
	"errors"
	"io"
	"strconv"

	internal "github.com/openstandia/connector-csv/csvconn"
	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/csvfile"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
)

// RecordReader yields parsed records, io.EOF at the end
type RecordReader interface {
	Read() (*csvfile.Record, error)
}

// Column is a named column of the source file.
type Column struct {
	Name     string // unique attribute name
	Declared string // name found in the header row, empty without one
	Index    int
}

// Header maps attribute names to columns. It is never modified once built.
type Header struct {
	columns []Column
	byName  map[string]Column
}

// Size returns the number of columns
func (h *Header) Size() int {
	return len(h.columns)
}

// Columns returns the columns in file order
func (h *Header) Columns() []Column {
	out := make([]Column, len(h.columns))
	copy(out, h.columns)
	return out
}

// Names returns the attribute names in file order
func (h *Header) Names() []string {
	names := make([]string, len(h.columns))
	for i, c := range h.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by attribute name
func (h *Header) Column(name string) (Column, bool) {
	c, ok := h.byName[name]
	return c, ok
}

// Validate checks that the configured special attributes exist.
func (h *Header) Validate(cfg config.ObjectClassConfig) error {
	if _, ok := h.byName[cfg.UniqueAttribute]; !ok {
		return common.NewConfigurationError("validate header",
			"header doesn't contain unique attribute %q as defined in configuration", cfg.UniqueAttribute)
	}
	if cfg.PasswordAttribute != "" {
		if _, ok := h.byName[cfg.PasswordAttribute]; !ok {
			return common.NewConfigurationError("validate header",
				"header doesn't contain password attribute %q as defined in configuration", cfg.PasswordAttribute)
		}
	}
	for _, attr := range cfg.CompositeUniqueAttributes {
		if _, ok := h.byName[attr]; !ok {
			return common.NewConfigurationError("validate header",
				"header doesn't contain composite unique attribute %q as defined in configuration", attr)
		}
	}
	return nil
}

// Missing returns the names that are not part of the header
func (h *Header) Missing(names []string) []string {
	var missing []string
	for _, n := range names {
		if _, ok := h.byName[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// ResolveHeader builds the header from the first non-empty record.
func ResolveHeader(reader RecordReader, cfg config.ObjectClassConfig) (*Header, error) {
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, common.NewConfigurationError("resolve header",
				"couldn't initialize headers, nothing in csv file for object class %s", cfg.ObjectClass)
		}
		if err != nil {
			return nil, err
		}
		if isRecordEmpty(rec, cfg) {
			continue
		}

		header := createHeader(rec, cfg)
		if err := header.Validate(cfg); err != nil {
			return nil, err
		}
		return header, nil
	}
}

// ResolveHeaderFile opens path and resolves its header.
func ResolveHeaderFile(path string, cfg config.ObjectClassConfig) (*Header, error) {
	format, err := csvfile.NewFormat(cfg)
	if err != nil {
		return nil, err
	}
	file, err := csvfile.Open(path, cfg.Encoding, format)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ResolveHeader(file, cfg)
}

func createHeader(rec *csvfile.Record, cfg config.ObjectClassConfig) *Header {
	header := &Header{
		columns: make([]Column, 0, len(rec.Values)),
		byName:  make(map[string]Column, len(rec.Values)),
	}

	for i, value := range rec.Values {
		var column Column
		if cfg.HeaderExists {
			name := value
			if name == "" {
				name = internal.DefaultColumnName + "0"
			}
			column = Column{Name: availableName(header.byName, name), Declared: value, Index: i}
		} else {
			column = Column{Name: internal.DefaultColumnName + strconv.Itoa(i), Index: i}
		}
		header.columns = append(header.columns, column)
		header.byName[column.Name] = column
	}
	return header
}

// availableName appends the smallest positive integer that makes base unique
func availableName(taken map[string]Column, base string) string {
	if _, ok := taken[base]; !ok {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + strconv.Itoa(i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

func isRecordEmpty(rec *csvfile.Record, cfg config.ObjectClassConfig) bool {
	return cfg.IgnoreEmptyLines && rec.IsBlank()
}
