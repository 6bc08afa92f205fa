package csvfile

import (
	"strings"
	"unicode/utf8"

	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
)

// QuoteMode controls when a writer quotes values. Readers only validate it.
type QuoteMode int

const (
	QuoteMinimal QuoteMode = iota
	QuoteAll
	QuoteAllNonNull
	QuoteNonNumeric
	QuoteNone
)

// String returns the configuration name of the quote mode.
func (m QuoteMode) String() string {
	switch m {
	case QuoteAll:
		return "ALL"
	case QuoteAllNonNull:
		return "ALL_NON_NULL"
	case QuoteNonNumeric:
		return "NON_NUMERIC"
	case QuoteNone:
		return "NONE"
	default:
		return "MINIMAL"
	}
}

// ParseQuoteMode converts a configuration value to a QuoteMode
func ParseQuoteMode(s string) (QuoteMode, error) {
	switch strings.ToUpper(s) {
	case "MINIMAL", "":
		return QuoteMinimal, nil
	case "ALL":
		return QuoteAll, nil
	case "ALL_NON_NULL":
		return QuoteAllNonNull, nil
	case "NON_NUMERIC":
		return QuoteNonNumeric, nil
	case "NONE":
		return QuoteNone, nil
	}
	return QuoteMinimal, common.NewConfigurationError("parse quote mode", "unknown quote mode %q", s)
}

// Format describes the dialect of a delimited text file. A zero rune
// disables the quote, escape and comment features.
type Format struct {
	Delimiter               rune
	Quote                   rune
	Escape                  rune
	CommentMarker           rune
	QuoteMode               QuoteMode
	RecordSeparator         string
	IgnoreEmptyLines        bool
	IgnoreSurroundingSpaces bool
	Trim                    bool
	TrailingDelimiter       bool
}

// DefaultFormat is a comma separated, double quoted dialect.
func DefaultFormat() Format {
	return Format{
		Delimiter:        ',',
		Quote:            '"',
		RecordSeparator:  "\r\n",
		IgnoreEmptyLines: true,
	}
}

// NewFormat builds the file dialect from an object class configuration.
func NewFormat(cfg config.ObjectClassConfig) (Format, error) {
	delimiter, err := ToCharacter(cfg.FieldDelimiter, "fieldDelimiter")
	if err != nil {
		return Format{}, err
	}
	quote, err := ToOptionalCharacter(cfg.Quote, "quote")
	if err != nil {
		return Format{}, err
	}
	escape, err := ToOptionalCharacter(cfg.Escape, "escape")
	if err != nil {
		return Format{}, err
	}
	comment, err := ToOptionalCharacter(cfg.CommentMarker, "commentMarker")
	if err != nil {
		return Format{}, err
	}
	mode, err := ParseQuoteMode(cfg.QuoteMode)
	if err != nil {
		return Format{}, err
	}

	return Format{
		Delimiter:               delimiter,
		Quote:                   quote,
		Escape:                  escape,
		CommentMarker:           comment,
		QuoteMode:               mode,
		RecordSeparator:         cfg.RecordSeparator,
		IgnoreEmptyLines:        cfg.IgnoreEmptyLines,
		IgnoreSurroundingSpaces: cfg.IgnoreSurroundingSpaces,
		Trim:                    cfg.Trim,
		TrailingDelimiter:       cfg.TrailingDelimiter,
	}, nil
}

// ToCharacter converts a single-character setting to a rune.
func ToCharacter(value, name string) (rune, error) {
	if utf8.RuneCountInString(value) != 1 {
		return 0, common.NewConfigurationError("parse "+name, "can't cast %q to a single character", value)
	}
	r, _ := utf8.DecodeRuneInString(value)
	return r, nil
}

// ToOptionalCharacter is ToCharacter that maps an empty value to 0.
func ToOptionalCharacter(value, name string) (rune, error) {
	if value == "" {
		return 0, nil
	}
	return ToCharacter(value, name)
}
