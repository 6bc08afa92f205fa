package csvfile

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, input string, format Format) []*Record {
	t.Helper()
	records, err := NewReader(strings.NewReader(input), format).ReadAll()
	require.NoError(t, err)
	return records
}

func values(records []*Record) [][]string {
	out := make([][]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Values)
	}
	return out
}

func TestReadSimple(t *testing.T) {
	records := readAll(t, "id,name\n1,john\r\n2,jack", DefaultFormat())

	assert.Equal(t, [][]string{{"id", "name"}, {"1", "john"}, {"2", "jack"}}, values(records))
	assert.Equal(t, int64(1), records[0].Number)
	assert.Equal(t, int64(3), records[2].Number)
}

func TestReadQuoted(t *testing.T) {
	input := "id,desc\n1,\"hello, \"\"world\"\"\"\n2,\"multi\nline\"\n"
	records := readAll(t, input, DefaultFormat())

	require.Len(t, records, 3)
	assert.Equal(t, []string{"1", "hello, \"world\""}, records[1].Values)
	assert.Equal(t, []string{"2", "multi\nline"}, records[2].Values)
}

func TestReadEmptyLines(t *testing.T) {
	input := "id\n\n1\n\r\n2\n"

	ignoring := readAll(t, input, DefaultFormat())
	assert.Equal(t, [][]string{{"id"}, {"1"}, {"2"}}, values(ignoring))

	format := DefaultFormat()
	format.IgnoreEmptyLines = false
	keeping := readAll(t, input, format)
	assert.Equal(t, [][]string{{"id"}, {""}, {"1"}, {""}, {"2"}}, values(keeping))
	assert.Equal(t, int64(5), keeping[4].Number)
}

func TestReadComments(t *testing.T) {
	format := DefaultFormat()
	format.CommentMarker = '#'

	records := readAll(t, "# generated\nid\n#1\n2\n", format)
	assert.Equal(t, [][]string{{"id"}, {"2"}}, values(records))
	assert.Equal(t, int64(2), records[1].Number)
}

func TestReadEscape(t *testing.T) {
	format := DefaultFormat()
	format.Escape = '\\'

	records := readAll(t, "a\\,b,c\\nd,\"e\\\"f\"\n", format)
	assert.Equal(t, [][]string{{"a,b", "c\nd", "e\"f"}}, values(records))
}

func TestReadEscapeKeepsUnknownSequences(t *testing.T) {
	format := DefaultFormat()
	format.Escape = '\\'

	records := readAll(t, "id,login\n1,CORP\\jdoe\n2,\"CORP\\jack\"\n3,a\\\\b\n", format)
	assert.Equal(t, []string{"1", "CORP\\jdoe"}, records[1].Values)
	assert.Equal(t, []string{"2", "CORP\\jack"}, records[2].Values)
	assert.Equal(t, []string{"3", "a\\b"}, records[3].Values)

	_, err := NewReader(strings.NewReader("id\n1\\"), format).ReadAll()
	require.Error(t, err)
	assert.True(t, common.IsStructural(err))
	assert.Contains(t, err.Error(), "escape")
}

func TestReadTabDelimitedWithSurroundingSpaces(t *testing.T) {
	format := DefaultFormat()
	format.Delimiter = '\t'
	format.IgnoreSurroundingSpaces = true

	records := readAll(t, "a\tb\tc\n1\t\t3\n 4 \t\t\n", format)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"1", "", "3"}, {"4", "", ""}}, values(records))
}

func TestReadSurroundingSpacesAndTrim(t *testing.T) {
	input := "  a , \"b\"  ,c  \n"

	plain := readAll(t, input, DefaultFormat())
	assert.Equal(t, []string{"  a ", " \"b\"  ", "c  "}, plain[0].Values)

	format := DefaultFormat()
	format.IgnoreSurroundingSpaces = true
	ignoring := readAll(t, input, format)
	assert.Equal(t, []string{"a", "b", "c"}, ignoring[0].Values)

	format = DefaultFormat()
	format.Trim = true
	trimmed := readAll(t, "  a , x y \n", format)
	assert.Equal(t, []string{"a", "x y"}, trimmed[0].Values)
}

func TestReadTrailingDelimiter(t *testing.T) {
	format := DefaultFormat()
	format.TrailingDelimiter = true

	records := readAll(t, "id,name,\n1,john,\n", format)
	assert.Equal(t, [][]string{{"id", "name"}, {"1", "john"}}, values(records))

	records = readAll(t, "id,name,\n", DefaultFormat())
	assert.Equal(t, []string{"id", "name", ""}, records[0].Values)
}

func TestReadCustomDelimiterWithoutQuote(t *testing.T) {
	format := DefaultFormat()
	format.Delimiter = ';'
	format.Quote = 0

	records := readAll(t, "id;name\n1;\"john\"\n", format)
	assert.Equal(t, []string{"1", "\"john\""}, records[1].Values)
}

func TestReadErrors(t *testing.T) {
	_, err := NewReader(strings.NewReader("id\n\"open"), DefaultFormat()).ReadAll()
	require.Error(t, err)
	assert.True(t, common.IsStructural(err))
	assert.Contains(t, err.Error(), "record 2")

	_, err = NewReader(strings.NewReader("\"a\"b,c\n"), DefaultFormat()).ReadAll()
	require.Error(t, err)
	assert.True(t, common.IsStructural(err))
}

func TestReadEOF(t *testing.T) {
	reader := NewReader(strings.NewReader(""), DefaultFormat())
	_, err := reader.Read()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRecordIsBlank(t *testing.T) {
	assert.True(t, (&Record{Values: []string{"", "  "}}).IsBlank())
	assert.False(t, (&Record{Values: []string{"", "x"}}).IsBlank())
}

func TestNewFormat(t *testing.T) {
	cfg := config.DefaultObjectClassConfig()
	cfg.FieldDelimiter = ";"
	cfg.Quote = ""
	cfg.TrailingDelimiter = true

	format, err := NewFormat(cfg)
	require.NoError(t, err)
	assert.Equal(t, ';', format.Delimiter)
	assert.Equal(t, rune(0), format.Quote)
	assert.Equal(t, '\\', format.Escape)
	assert.Equal(t, '#', format.CommentMarker)
	assert.Equal(t, QuoteMinimal, format.QuoteMode)
	assert.True(t, format.TrailingDelimiter)

	cfg.FieldDelimiter = "::"
	_, err = NewFormat(cfg)
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))

	cfg.FieldDelimiter = ","
	cfg.QuoteMode = "sometimes"
	_, err = NewFormat(cfg)
	assert.True(t, common.IsConfiguration(err))
}

func TestParseQuoteMode(t *testing.T) {
	for _, mode := range []QuoteMode{QuoteMinimal, QuoteAll, QuoteAllNonNull, QuoteNonNumeric, QuoteNone} {
		parsed, err := ParseQuoteMode(mode.String())
		require.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}
}

func TestOpenDecodesCharset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin1.csv")
	// "id,name\n1,José" in ISO-8859-1
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,Jos\xe9\n"), 0o644))

	file, err := Open(path, "iso-8859-1", DefaultFormat())
	require.NoError(t, err)
	defer file.Close()

	records, err := file.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "José"}, records[1].Values)
}

func TestOpenStripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.csv")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbfid\n1\n"), 0o644))

	file, err := Open(path, "utf-8", DefaultFormat())
	require.NoError(t, err)
	defer file.Close()

	rec, err := file.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, rec.Values)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), "utf-8", DefaultFormat())
	require.Error(t, err)
	assert.True(t, common.IsIO(err))

	_, err = Open("whatever.csv", "klingon", DefaultFormat())
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))
}
