package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("IDEAFORGE_TEST_BUCKET", "previews")

	out := expandEnv("bucket: ${IDEAFORGE_TEST_BUCKET:fallback}\nregion: ${IDEAFORGE_TEST_UNSET:us-west-2}\nkey: ${IDEAFORGE_TEST_MISSING}")

	assert.Contains(t, out, "bucket: previews")
	assert.Contains(t, out, "region: us-west-2")
	assert.Contains(t, out, "key: ${IDEAFORGE_TEST_MISSING}")
}

func TestLoadFrom_MergesEnvFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	base := `
app:
  name: ideaforge-test
storage:
  s3:
    bucket: ${IDEAFORGE_TEST_S3_BUCKET:idea-previews}
    website_endpoint: s3-website-us-east-1.amazonaws.com
llm:
  default_provider: claude
  providers:
    claude:
      type: anthropic
      model: claude-sonnet-4-5
`
	override := `
generation:
  excerpt_limits:
    prd_for_code: 1500
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(base), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.staging.yaml"), []byte(override), 0o600))
	t.Setenv("APP_ENV", "staging")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "ideaforge-test", cfg.App.Name)
	assert.Equal(t, "idea-previews", cfg.Storage.S3.Bucket)
	assert.Equal(t, "http", cfg.Storage.S3.WebsiteScheme)
	assert.Equal(t, "anthropic", cfg.LLM.Providers["claude"].Type)
	assert.Equal(t, 1500, cfg.Generation.ExcerptLimits.PRDForCode)
	assert.Equal(t, 3000, cfg.Generation.ExcerptLimits.PRDForTechSpec)
	assert.Equal(t, 50, cfg.Generation.SlugMaxLength)
	assert.True(t, cfg.Generation.AsyncEnabled)
	assert.Equal(t, 500, cfg.Generation.PreviewChars)
	assert.Equal(t, 2*time.Second, cfg.VCS.GitHub.StabilizeDelay)
}

func TestLoadFrom_MissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "ideaforge", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=ideaforge sslmode=disable", c.DSN())
}
