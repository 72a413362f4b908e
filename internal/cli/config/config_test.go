package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rrconfig "github.com/conduit-lang/remoterecord/internal/remoterecord/config"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(oldWd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Dialect)
	assert.Equal(t, "remoterecord.db", cfg.Database.URL)
	assert.Equal(t, "remote_records", cfg.Database.Table)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Empty(t, cfg.Handlers)
}

const projectFile = `
database:
  dialect: postgres
  url: postgres://localhost/todos
cache:
  backend: redis
  addr: localhost:6380
  ttl: 30s
log:
  level: debug
handlers:
  Todo:
    base_url: https://jsonplaceholder.typicode.com
    path: todos
    memoize: false
    transform: [snake_case]
    authorization_env: TODO_API_TOKEN
  User:
    base_url: https://jsonplaceholder.typicode.com
    path: users
    id_field: user_id
`

func TestLoad_ProjectFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile("remoterecord.yml", []byte(projectFile), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Dialect)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"todo", "user"}, cfg.HandlerNames())

	todo, ok := cfg.Handler("Todo")
	require.True(t, ok)
	assert.Equal(t, "todos", todo.Path)
	require.NotNil(t, todo.Memoize)
	assert.False(t, *todo.Memoize)

	user, ok := cfg.Handler("user")
	require.True(t, ok)
	assert.Nil(t, user.Memoize)

	_, ok = cfg.Handler("Post")
	assert.False(t, ok)
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(projectFile), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Handlers, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REMOTERECORD_DATABASE_URL", "file:override.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "file:override.db", cfg.Database.URL)
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"dialect":   "database:\n  dialect: oracle\n",
		"cache":     "cache:\n  backend: memcached\n",
		"base_url":  "handlers:\n  Todo:\n    path: todos\n",
		"path":      "handlers:\n  Todo:\n    base_url: http://x\n",
		"transform": "handlers:\n  Todo:\n    base_url: http://x\n    path: todos\n    transform: [kebab]\n",
		"exclusive": "handlers:\n  Todo:\n    base_url: http://x\n    path: todos\n    authorization_env: A\n    jwt_secret_env: B\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "remoterecord.yml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := Load(path)
			assert.ErrorContains(t, err, name)
		})
	}
}

func TestHandlerConfig_Layer(t *testing.T) {
	memoize := false
	layer, err := HandlerConfig{
		Memoize:          &memoize,
		IDField:          "todo_id",
		Transform:        []string{"snake_case"},
		AuthorizationEnv: "TODO_API_TOKEN",
	}.Layer()
	require.NoError(t, err)

	assert.False(t, layer.Memoize())
	assert.Equal(t, "todo_id", layer.IDField())
	assert.Equal(t, []string{"snake_case"}, layer.Transform())

	t.Setenv("TODO_API_TOKEN", "secret")
	authz, err := layer.ResolveAuthorization()
	require.NoError(t, err)
	assert.Equal(t, "secret", authz)
}

func TestHandlerConfig_LayerSignedJWT(t *testing.T) {
	layer, err := HandlerConfig{JWTSecretEnv: "TODO_API_SECRET", JWTSubject: "sync"}.Layer()
	require.NoError(t, err)

	t.Setenv("TODO_API_SECRET", "secret")
	authz, err := layer.ResolveAuthorization()
	require.NoError(t, err)
	token, ok := authz.(string)
	require.True(t, ok)
	assert.Len(t, strings.Split(token, "."), 3)
}

func TestHandlerConfig_LayerLeavesUnsetKeysUnset(t *testing.T) {
	layer, err := HandlerConfig{}.Layer()
	require.NoError(t, err)
	assert.False(t, layer.Has(rrconfig.KeyMemoize))
	assert.False(t, layer.Has(rrconfig.KeyAuthorization))
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "remoterecord.yaml"), []byte("{}"), 0644))
	chdir(t, nested)

	path, err := FindConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "remoterecord.yaml", filepath.Base(path))
}
