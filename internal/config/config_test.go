package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `server:
  port: 8080
  mode: debug
  read_timeout: 60
  write_timeout: 60
log:
  level: debug
  format: console
  output_path: stdout
ai:
  openai:
    api_key: "sk-from-file"
    model: gpt-4o-mini
    temperature: 0.3
    max_tokens: 1024
embedding:
  provider: local
  dimension: 384
redis:
  enabled: false
  host: localhost
  port: 6379
rag:
  store_path: ./data
  chunk_size: 1000
  chunk_overlap: 200
  max_chunks: 5
  similarity_threshold: 0.7
  relaxed_threshold: 0.3
  relaxed_trigger: 0.5
  web_min_docs: 2
  web_results: 3
upload:
  max_file_size: 10485760
websearch:
  api_key: ""
  timeout: 10
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	cfg, err := Load("", writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "sk-from-file", cfg.AI.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.OpenAI.Model)
	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 0.7, cfg.RAG.SimilarityThreshold)
	assert.Equal(t, 0.3, cfg.RAG.RelaxedThreshold)
	assert.Equal(t, 2, cfg.RAG.WebMinDocs)
	assert.Equal(t, int64(10485760), cfg.Upload.MaxFileSize)
	assert.False(t, cfg.Redis.Enabled)

	// 全局配置在 Load 后可用
	assert.Same(t, cfg, Get())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "读取配置文件失败")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "9999")
	t.Setenv("APP_RAG_CHUNK_SIZE", "500")
	t.Setenv("APP_AI_OPENAI_API_KEY", "sk-from-env")

	cfg, err := Load("", writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, "sk-from-env", cfg.AI.OpenAI.APIKey)
}

func TestEmbeddingAPIKey_FallsBackToGeneratorKey(t *testing.T) {
	cfg := &Config{}
	cfg.AI.OpenAI.APIKey = "sk-shared"
	assert.Equal(t, "sk-shared", cfg.EmbeddingAPIKey())

	cfg.Embedding.APIKey = "sk-embedding"
	assert.Equal(t, "sk-embedding", cfg.EmbeddingAPIKey())
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", cfg.Addr())
}
