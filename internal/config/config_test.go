package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2, cfg.Pipeline.Concurrency)
	assert.Equal(t, 5, cfg.Pipeline.MaxCoursesPerSkill)
	assert.Equal(t, 1, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 10, cfg.Retrieval.TopN)
	assert.NotEmpty(t, cfg.Fallback.Dangerous.Message)
	assert.NotEqual(t, cfg.Fallback.Dangerous.Message, cfg.Fallback.Irrelevant.Message)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[database]
driver = "sqlite"
path = "test.db"

[pipeline]
concurrency = 4
max_courses_per_skill = 3
min_relevance_score = 1
call_timeout_seconds = 10
max_retries = 1

[[embedding.providers]]
provider = "openai"
model = "text-embedding-3-small"
dimension = 1536
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PIPELINE_CONCURRENCY", "3")
	t.Setenv("RETRIEVAL_TOP_N", "not-a-number")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "test.db", cfg.DatabaseDSN())
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
	assert.Equal(t, 3, cfg.Pipeline.MaxCoursesPerSkill)
	assert.Equal(t, 10, cfg.Retrieval.TopN, "invalid env value keeps the current value")
	require.Len(t, cfg.Embedding.Providers, 1)
	assert.Equal(t, "sk-test", cfg.Embedding.Providers[0].APIKey)
}

func TestLoad_FileProvidersReplaceDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[[embedding.providers]]
provider = "openai"
model = "text-embedding-3-small"
dimension = 1536

[[embedding.providers]]
provider = "tei"
model = "BAAI/bge-m3"
dimension = 1024
base_url = "http://tei:80"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Embedding.Providers, 2)
	bge := cfg.Embedding.Providers[1]
	assert.Equal(t, "BAAI/bge-m3", bge.Model)
	assert.Empty(t, bge.QueryPrefix)
	assert.Empty(t, bge.PassagePrefix)
	assert.Empty(t, cfg.Embedding.Providers[0].BaseURL)
}

func TestLoad_FileWithoutProvidersKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[retrieval]\ntop_n = 3\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retrieval.TopN)
	require.Len(t, cfg.Embedding.Providers, 2)
	assert.Equal(t, "query: ", cfg.Embedding.Providers[1].QueryPrefix)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "zero concurrency", mutate: func(c *Config) { c.Pipeline.Concurrency = 0 }, wantErr: true},
		{name: "top n below one", mutate: func(c *Config) { c.Retrieval.TopN = 0 }, wantErr: true},
		{name: "threshold above one", mutate: func(c *Config) { c.Retrieval.Threshold = 1.5 }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, wantErr: true},
		{
			name: "duplicate provider",
			mutate: func(c *Config) {
				c.Embedding.Providers = append(c.Embedding.Providers, c.Embedding.Providers[0])
			},
			wantErr: true,
		},
		{
			name:    "unsupported dimension",
			mutate:  func(c *Config) { c.Embedding.Providers[0].Dimension = 42 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := defaultConfig()
	assert.Contains(t, cfg.DatabaseDSN(), "dbname=course_advisor")

	cfg.Database.Driver = "mysql"
	cfg.Database.Params = "parseTime=true"
	assert.Equal(t, "postgres:@tcp(127.0.0.1:5432)/course_advisor?parseTime=true", cfg.DatabaseDSN())

	cfg.Database.DSN = "verbatim"
	assert.Equal(t, "verbatim", cfg.DatabaseDSN())
}
