package connector

import (
	"strings"
	"testing"

	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/csvfile"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, input string, cfg config.ObjectClassConfig) (*Header, error) {
	t.Helper()
	format, err := csvfile.NewFormat(cfg)
	require.NoError(t, err)
	return ResolveHeader(csvfile.NewReader(strings.NewReader(input), format), cfg)
}

func headerConfig(unique string) config.ObjectClassConfig {
	cfg := config.DefaultObjectClassConfig()
	cfg.FilePath = "users.csv"
	cfg.UniqueAttribute = unique
	cfg.ApplyDefaults()
	return cfg
}

func TestResolveHeaderDuplicates(t *testing.T) {
	header, err := resolve(t, "id,tel,tel,a1,a,a,,\n", headerConfig("id"))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "tel", "tel1", "a1", "a", "a2", "col0", "col01"}, header.Names())

	seen := make(map[string]bool)
	for _, name := range header.Names() {
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}

	column, ok := header.Column("tel1")
	require.True(t, ok)
	assert.Equal(t, 2, column.Index)
	assert.Equal(t, "tel", column.Declared)
}

func TestResolveHeaderWithoutHeaderRow(t *testing.T) {
	cfg := headerConfig("col0")
	cfg.HeaderExists = false

	header, err := resolve(t, "1,john,doe\n2,jack,x\n", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"col0", "col1", "col2"}, header.Names())
	assert.Equal(t, 3, header.Size())
}

func TestResolveHeaderSkipsBlankRecords(t *testing.T) {
	header, err := resolve(t, "\n , \nid,name\n1,john\n", headerConfig("id"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, header.Names())
}

func TestResolveHeaderEmptySource(t *testing.T) {
	for _, input := range []string{"", "\n\n", " , \n,\n"} {
		_, err := resolve(t, input, headerConfig("id"))
		require.Error(t, err, "input %q", input)
		assert.True(t, common.IsConfiguration(err))
		assert.Contains(t, err.Error(), "nothing in csv file")
	}
}

func TestResolveHeaderValidation(t *testing.T) {
	_, err := resolve(t, "uid,name\n", headerConfig("id"))
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))
	assert.Contains(t, err.Error(), "unique attribute")

	cfg := headerConfig("id")
	cfg.PasswordAttribute = "password"
	_, err = resolve(t, "id,name\n", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password attribute")

	cfg = headerConfig("id")
	cfg.CompositeUniqueAttributes = []string{"dept"}
	_, err = resolve(t, "id,name\n", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "composite unique attribute")

	header, err := resolve(t, "id,name,password\n", func() config.ObjectClassConfig {
		c := headerConfig("id")
		c.PasswordAttribute = "password"
		return c
	}())
	require.NoError(t, err)
	assert.Equal(t, []string{"tel"}, header.Missing([]string{"name", "tel"}))
}
