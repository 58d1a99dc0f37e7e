package fixtures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webspec-dev/webspec/types"
)

func writeFixtureFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewStore_LoadsAllFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFile(t, dir, "users.yaml", `
admin:
  email: admin@example.com
  password: hunter2
customer:
  email: jo@example.com
`)
	writeFixtureFile(t, dir, "catalog.yml", `
product:
  sku: WS-100
  price: 19.99
`)

	store, err := NewStore(Config{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, []string{"admin", "customer", "product"}, store.Names())

	admin, err := store.Get("admin")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", admin["email"])
}

func TestNewStore_EmptyDir(t *testing.T) {
	store, err := NewStore(Config{})
	require.NoError(t, err)
	assert.Empty(t, store.Names())
}

func TestNewStore_ConflictAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFile(t, dir, "a.yaml", "admin:\n  email: one@example.com\n")
	writeFixtureFile(t, dir, "b.yaml", "admin:\n  email: two@example.com\n")

	_, err := NewStore(Config{Dir: dir})
	require.Error(t, err)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "admin", conflict.Name)
	assert.Len(t, conflict.Files, 2)
}

func TestNewStore_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFile(t, dir, "bad.yaml", "admin: [unclosed\n")

	_, err := NewStore(Config{Dir: dir})
	require.Error(t, err)
	var parseErr *types.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestGet_Unknown(t *testing.T) {
	store, err := NewStore(Config{})
	require.NoError(t, err)

	_, err = store.Get("missing")
	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "fixture", notFound.Kind)
	assert.Equal(t, "missing", notFound.Name)
}

func TestGet_CachedAfterLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFixtureFile(t, dir, "users.yaml", "admin:\n  email: admin@example.com\n")

	store, err := NewStore(Config{Dir: dir})
	require.NoError(t, err)

	// Rewriting the file after load must not change what Get returns.
	require.NoError(t, os.WriteFile(path, []byte("admin:\n  email: changed@example.com\n"), 0644))

	admin, err := store.Get("admin")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", admin["email"])
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	writeFixtureFile(t, dir, "users.yaml", `
admin:
  email: admin@example.com
  profile:
    plan: enterprise
  retries: 3
`)

	store, err := NewStore(Config{Dir: dir})
	require.NoError(t, err)

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"plain value passes through", "not-a-ref", "not-a-ref", false},
		{"top level key", "fixture:admin.email", "admin@example.com", false},
		{"nested key", "fixture:admin.profile.plan", "enterprise", false},
		{"scalar non-string", "fixture:admin.retries", "3", false},
		{"missing key", "fixture:admin.nope", "", true},
		{"missing fixture", "fixture:ghost.email", "", true},
		{"no key segment", "fixture:admin", "", true},
		{"non-scalar target", "fixture:admin.profile", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Resolve(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
