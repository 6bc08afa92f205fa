package connector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnector(t *testing.T, cfg *config.Config) *Connector {
	t.Helper()
	logger := zerolog.Nop()
	c, err := New(cfg, Options{Logger: &logger, Clock: newFakeClock().Now})
	require.NoError(t, err)
	return c
}

func TestSchemaFromHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.csv")
	writeCSV(t, path, "id,name\n1,john\n2,jack\n")

	cfg := testConfig(path)
	cfg.NameAttribute = "id"
	h := newTestHandler(t, cfg, nil)

	schema := h.Schema()
	assert.Equal(t, "__ACCOUNT__", schema.ObjectClass)

	uid, ok := schema.Identifier()
	require.True(t, ok)
	assert.Equal(t, UIDAttribute, uid.Name)
	assert.Equal(t, "id", uid.NativeName)

	name, ok := schema.Attribute(NameAttribute)
	require.True(t, ok)
	assert.Equal(t, "id", name.NativeName)
	assert.True(t, name.Required)

	plain, ok := schema.Attribute("name")
	require.True(t, ok)
	assert.Equal(t, RolePlain, plain.Role)
	assert.Equal(t, TypeString, plain.Type)
	assert.False(t, plain.MultiValued)
}

func TestSchemaRoles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.csv")
	writeCSV(t, path, "id,login,password,tel\n")

	cfg := testConfig(path)
	cfg.NameAttribute = "login"
	cfg.PasswordAttribute = "password"
	cfg.MultivalueAttributes = []string{"tel"}
	cfg.GroupByEnabled = true
	h := newTestHandler(t, cfg, nil)

	var names []string
	for _, a := range h.Schema().Attributes {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{UIDAttribute, "id", NameAttribute, PasswordAttribute, "tel", RawJSONAttribute}, names)

	password, _ := h.Schema().Attribute(PasswordAttribute)
	assert.Equal(t, TypeSecret, password.Type)
	tel, _ := h.Schema().Attribute("tel")
	assert.True(t, tel.MultiValued)
	raw, _ := h.Schema().Attribute(RawJSONAttribute)
	assert.Equal(t, SubtypeJSON, raw.Subtype)
}

func TestSearch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.csv")
	writeCSV(t, path, "id,name,tel\n1,john,1111|2222\n\n2,jack,\n")

	cfg := testConfig(path)
	cfg.MultivalueDelimiter = "|"
	cfg.MultivalueAttributes = []string{"tel"}
	h := newTestHandler(t, cfg, nil)

	objects := searchAll(t, h, nil)
	assert.Equal(t, []string{"1", "2"}, uids(objects))
	assert.Equal(t, []string{"1111", "2222"}, objects[0].Attribute("tel"))
	assert.Equal(t, "jack", objects[1].First("name"))

	objects = searchAll(t, h, &Query{UID: "2"})
	require.Len(t, objects, 1)
	assert.Equal(t, "2", objects[0].UID)

	assert.Empty(t, searchAll(t, h, &Query{UID: "3"}))

	calls := 0
	require.NoError(t, h.Search(context.Background(), nil, func(*Object) bool {
		calls++
		return false
	}))
	assert.Equal(t, 1, calls)
}

func TestSearchComposite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.csv")
	writeCSV(t, path, "id,dept,name\n1,abc,john\n1,xyz,jack\n")

	cfg := testConfig(path)
	cfg.CompositeUniqueAttributes = []string{"dept"}
	h := newTestHandler(t, cfg, nil)

	assert.Equal(t, []string{"1.abc", "1.xyz"}, uids(searchAll(t, h, nil)))

	objects := searchAll(t, h, &Query{UID: "1.xyz"})
	require.Len(t, objects, 1)
	assert.Equal(t, "jack", objects[0].First("name"))
}

func TestSearchStructuralError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.csv")
	writeCSV(t, path, "id,name\n1,john\n2\n")
	h := newTestHandler(t, testConfig(path), nil)

	err := h.Search(context.Background(), nil, func(*Object) bool { return true })
	require.Error(t, err)
	assert.True(t, common.IsStructural(err))
	assert.Contains(t, err.Error(), "at record 3")
}

func TestNewHandlerErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewHandler(testConfig(filepath.Join(dir, "missing.csv")), HandlerOptions{})
	require.Error(t, err)
	assert.True(t, common.IsIO(err) || common.IsConfiguration(err))

	path := filepath.Join(dir, "empty.csv")
	writeCSV(t, path, "")
	_, err = NewHandler(testConfig(path), HandlerOptions{})
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))

	cfg := testConfig(path)
	cfg.UniqueAttribute = ""
	_, err = NewHandler(cfg, HandlerOptions{})
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))
}

func TestConnectorRegistry(t *testing.T) {
	dir := t.TempDir()
	users := filepath.Join(dir, "users.csv")
	groups := filepath.Join(dir, "groups.csv")
	writeCSV(t, users, "id,name\n1,john\n")
	writeCSV(t, groups, "gid,members\nadmins,1\n")

	main := testConfig(users)
	group := testConfig(groups)
	group.ObjectClass = "__GROUP__"
	group.UniqueAttribute = "gid"
	group.NameAttribute = ""
	group.ApplyDefaults()

	c := newTestConnector(t, &config.Config{Connector: main, ObjectClasses: []config.ObjectClassConfig{group}})

	assert.Equal(t, []string{"__ACCOUNT__", "__GROUP__"}, c.ObjectClasses())
	assert.Len(t, c.guards, 1)

	schemas := c.Schema()
	require.Len(t, schemas, 2)
	assert.Equal(t, "__GROUP__", schemas[1].ObjectClass)

	var found []string
	require.NoError(t, c.Search(context.Background(), "__GROUP__", nil, func(obj *Object) bool {
		found = append(found, obj.UID)
		return true
	}))
	assert.Equal(t, []string{"admins"}, found)

	token, err := c.LatestToken(context.Background(), "__GROUP__")
	require.NoError(t, err)
	result, err := c.Sync(context.Background(), "__GROUP__", string(token), func(*ChangeEntry) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, SyncStateUnchanged, result.State)

	_, err = c.Handler("__ORG__")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownObjectClass))
	assert.True(t, common.IsConfiguration(err))

	_, err = c.Sync(context.Background(), "__ORG__", "", nil)
	assert.ErrorIs(t, err, ErrUnknownObjectClass)

	require.NoError(t, c.Test(context.Background()))
}

func TestConnectorTestReportsFailures(t *testing.T) {
	dir := t.TempDir()
	users := filepath.Join(dir, "users.csv")
	writeCSV(t, users, "id,name\n1,john\n")

	c := newTestConnector(t, &config.Config{Connector: testConfig(users)})
	require.NoError(t, c.Test(context.Background()))

	require.NoError(t, os.Remove(users))
	err := c.Test(context.Background())
	require.Error(t, err)
	assert.True(t, common.IsConfiguration(err))
	assert.Contains(t, err.Error(), "__ACCOUNT__")
}
