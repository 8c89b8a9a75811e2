package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
database:
  mysql:
    host: localhost
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.AI.Embedding.Model)
	assert.Equal(t, "once_scenes", cfg.Database.Qdrant.Collection)
	assert.Equal(t, uint64(1536), cfg.Database.Qdrant.VectorSize)
	assert.Equal(t, 5, cfg.Memory.RecallLimit)
	assert.Equal(t, 4, cfg.Tasks.Workers)
	assert.Equal(t, 2*time.Minute, cfg.Tasks.TaskTimeout)
}

func TestLoadParsesFullTree(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  read_timeout: 15s
database:
  qdrant:
    host: qdrant.internal
    port: 6334
    use_tls: true
  neo4j:
    uri: bolt://graph:7687
    username: neo4j
ai:
  llm:
    model: gpt-4o
    temperature: 0.4
memory:
  recall_limit: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Database.Qdrant.UseTLS)
	assert.Equal(t, "bolt://graph:7687", cfg.Database.Neo4j.URI)
	assert.Equal(t, "gpt-4o", cfg.AI.LLM.Model)
	assert.Equal(t, float32(0.4), cfg.AI.LLM.Temperature)
	assert.Equal(t, 8, cfg.Memory.RecallLimit)
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	path := writeConfig(t, `
ai:
  llm:
    api_key: from-file
`)
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("NEO4J_PASSWORD", "graph-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.AI.LLM.APIKey)
	assert.Equal(t, "graph-secret", cfg.Database.Neo4j.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
