package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestEnv_Path(t *testing.T) {
	env := NewTestEnv(t)

	path := env.Path("subdir", "file.txt")
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, filepath.Join(env.RootDir(), "subdir", "file.txt"), path)
	assert.Equal(t, env.RootDir(), env.Path())
}

func TestTestEnv_WriteReadFile(t *testing.T) {
	env := NewTestEnv(t)

	env.WriteFileString("nested/test.txt", "test content")
	assert.Equal(t, "test content", env.ReadFileString("nested/test.txt"))
	assert.True(t, env.FileExists("nested/test.txt"))
	assert.False(t, env.FileExists("nested/other.txt"))
}

func TestTestEnv_ListFiles(t *testing.T) {
	env := NewTestEnv(t)

	assert.Nil(t, env.ListFiles("missing"))

	env.WriteFileString("dir/a.json", "{}")
	env.WriteFileString("dir/b.json", "{}")
	assert.ElementsMatch(t, []string{"a.json", "b.json"}, env.ListFiles("dir"))
}

func TestTestEnv_MkdirAll(t *testing.T) {
	env := NewTestEnv(t)
	env.MkdirAll("nested/dir/structure")

	info, err := os.Stat(env.Path("nested/dir/structure"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSetupTestCache(t *testing.T) {
	ResetConfig(t)
	env := NewTestEnv(t)

	dbPath := SetupTestCache(t, env)
	assert.Equal(t, dbPath, viper.GetString("cache.dbfile"))
	assert.Equal(t, "24h", viper.GetString("cache.ttl"))
}

func TestNewIPv4TestServer(t *testing.T) {
	server := NewIPv4TestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}
