package csvfile

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
)

// Record is one parsed row. Number is 1-based and counts only returned
// records, so skipped comments and ignored empty lines are not included.
type Record struct {
	Number int64
	Values []string
}

// IsBlank reports whether every value of the record is empty or whitespace.
func (r *Record) IsBlank() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Reader reads records from a delimited text stream.
type Reader struct {
	// Name identifies the source in error messages
	Name string

	in      *bufio.Reader
	format  Format
	records int64
	err     error
}

// NewReader returns a Reader reading from r in the given format.
func NewReader(r io.Reader, format Format) *Reader {
	return &Reader{
		in:     bufio.NewReader(r),
		format: format,
	}
}

// Format returns the dialect used by the reader.
func (r *Reader) Format() Format {
	return r.format
}

// Read returns the next record or io.EOF when the input is exhausted.
func (r *Reader) Read() (*Record, error) {
	for {
		ch, eof := r.next()
		if r.err != nil {
			return nil, r.ioError()
		}
		if eof {
			return nil, io.EOF
		}

		if ch == '\n' || ch == '\r' {
			r.consumeLineFeed(ch)
			if r.format.IgnoreEmptyLines {
				continue
			}
			r.records++
			return &Record{Number: r.records, Values: []string{""}}, nil
		}

		if r.format.CommentMarker != 0 && ch == r.format.CommentMarker {
			r.skipLine()
			if r.err != nil {
				return nil, r.ioError()
			}
			continue
		}

		r.unread()
		values, err := r.readRecord()
		if err != nil {
			return nil, err
		}
		r.records++
		return &Record{Number: r.records, Values: values}, nil
	}
}

// ReadAll reads every remaining record.
func (r *Reader) ReadAll() ([]*Record, error) {
	var records []*Record
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

func (r *Reader) readRecord() ([]string, error) {
	var values []string
	lastQuoted := false
	for {
		value, quoted, end, err := r.readField()
		if err != nil {
			return nil, err
		}
		if r.format.Trim {
			value = strings.TrimSpace(value)
		}
		values = append(values, value)
		lastQuoted = quoted

		if end {
			break
		}
	}

	// a delimiter closing the line does not open another column
	if r.format.TrailingDelimiter && len(values) > 1 && !lastQuoted && values[len(values)-1] == "" {
		values = values[:len(values)-1]
	}
	return values, nil
}

// readField returns the value, whether it was quoted, and whether it
// terminated the record.
func (r *Reader) readField() (string, bool, bool, error) {
	f := r.format
	ch, eof := r.next()

	if f.IgnoreSurroundingSpaces {
		for !eof && r.isBlank(ch) {
			ch, eof = r.next()
		}
	}
	if r.err != nil {
		return "", false, false, r.ioError()
	}
	if !eof && f.Quote != 0 && ch == f.Quote {
		return r.readQuoted()
	}

	var b strings.Builder
	for {
		if r.err != nil {
			return "", false, false, r.ioError()
		}
		switch {
		case eof:
			return r.finishUnquoted(&b), false, true, nil
		case ch == f.Delimiter:
			return r.finishUnquoted(&b), false, false, nil
		case ch == '\n' || ch == '\r':
			r.consumeLineFeed(ch)
			return r.finishUnquoted(&b), false, true, nil
		case f.Escape != 0 && ch == f.Escape:
			next, nextEOF := r.next()
			if r.err != nil {
				return "", false, false, r.ioError()
			}
			if nextEOF {
				return "", false, false, r.structuralError("EOF reached after escape character")
			}
			r.writeEscaped(&b, next)
		default:
			b.WriteRune(ch)
		}
		ch, eof = r.next()
	}
}

func (r *Reader) readQuoted() (string, bool, bool, error) {
	f := r.format
	var b strings.Builder
	for {
		ch, eof := r.next()
		if r.err != nil {
			return "", true, false, r.ioError()
		}
		if eof {
			return "", true, false, r.structuralError("EOF reached before encapsulated token finished")
		}

		if f.Escape != 0 && f.Escape != f.Quote && ch == f.Escape {
			next, nextEOF := r.next()
			if nextEOF {
				return "", true, false, r.structuralError("EOF reached after escape character")
			}
			r.writeEscaped(&b, next)
			continue
		}

		if ch != f.Quote {
			b.WriteRune(ch)
			continue
		}

		next, nextEOF := r.next()
		if !nextEOF && next == f.Quote {
			b.WriteRune(f.Quote)
			continue
		}

		// closing quote, only blanks may precede the delimiter
		for {
			if r.err != nil {
				return "", true, false, r.ioError()
			}
			switch {
			case nextEOF:
				return b.String(), true, true, nil
			case next == f.Delimiter:
				return b.String(), true, false, nil
			case next == '\n' || next == '\r':
				r.consumeLineFeed(next)
				return b.String(), true, true, nil
			case r.isBlank(next):
				next, nextEOF = r.next()
			default:
				return "", true, false, r.structuralError("invalid char %q between encapsulated token and delimiter", next)
			}
		}
	}
}

func (r *Reader) finishUnquoted(b *strings.Builder) string {
	if r.format.IgnoreSurroundingSpaces {
		return strings.TrimRight(b.String(), " \t")
	}
	return b.String()
}

// next returns the next rune. eof is also reported after a read error,
// which is kept in r.err.
func (r *Reader) next() (rune, bool) {
	ch, _, err := r.in.ReadRune()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			r.err = err
		}
		return 0, true
	}
	return ch, false
}

func (r *Reader) unread() {
	_ = r.in.UnreadRune()
}

// consumeLineFeed swallows the LF of a CRLF pair.
func (r *Reader) consumeLineFeed(ch rune) {
	if ch != '\r' {
		return
	}
	next, eof := r.next()
	if !eof && next != '\n' {
		r.unread()
	}
}

func (r *Reader) skipLine() {
	for {
		ch, eof := r.next()
		if eof {
			return
		}
		if ch == '\n' || ch == '\r' {
			r.consumeLineFeed(ch)
			return
		}
	}
}

func (r *Reader) structuralError(format string, args ...interface{}) error {
	return common.NewStructuralError("parse csv", r.Name, r.records+1, format, args...)
}

func (r *Reader) ioError() error {
	return common.NewIOError("read csv", r.Name, r.err)
}

// isBlank reports surrounding whitespace. The delimiter is never blank.
func (r *Reader) isBlank(ch rune) bool {
	return ch != r.format.Delimiter && (ch == ' ' || ch == '\t')
}

// writeEscaped decodes the character following an escape. Control
// sequences and meta characters are decoded, anything else is kept
// together with the escape character.
func (r *Reader) writeEscaped(b *strings.Builder, ch rune) {
	f := r.format
	switch ch {
	case 'n':
		b.WriteRune('\n')
	case 'r':
		b.WriteRune('\r')
	case 't':
		b.WriteRune('\t')
	case 'b':
		b.WriteRune('\b')
	case 'f':
		b.WriteRune('\f')
	case '\r', '\n', '\t', '\b', '\f':
		b.WriteRune(ch)
	default:
		if ch == f.Delimiter || ch == f.Escape ||
			(f.Quote != 0 && ch == f.Quote) ||
			(f.CommentMarker != 0 && ch == f.CommentMarker) {
			b.WriteRune(ch)
			return
		}
		b.WriteRune(f.Escape)
		b.WriteRune(ch)
	}
}
