package csvfile

import (
	"io"
	"os"

	"github.com/openstandia/connector-csv/csvconn/filesystem/common"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// File is a Reader over an open file decoded from its configured charset.
type File struct {
	*Reader
	Path string
	file *os.File
}

// Open opens path for reading records in the given charset and format.
func Open(path, charset string, format Format) (*File, error) {
	enc, err := LookupEncoding(charset)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewIOError("open csv", path, err)
	}

	reader := NewReader(Decode(f, enc), format)
	reader.Name = path
	return &File{Reader: reader, Path: path, file: f}, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.file.Close()
}

// LookupEncoding resolves a charset name such as "utf-8" or "windows-1252".
func LookupEncoding(charset string) (encoding.Encoding, error) {
	if charset == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, common.NewConfigurationError("lookup encoding", "unsupported encoding %q: %v", charset, err)
	}
	return enc, nil
}

// Decode wraps r so that it yields UTF-8. A leading UTF-8 byte order mark
// is dropped.
func Decode(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == unicode.UTF8 {
		return transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))
	}
	return transform.NewReader(r, enc.NewDecoder())
}
