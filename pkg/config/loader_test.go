package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	used, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, used)

	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(wd, "assets"), viper.GetString("storage.root"))
	assert.Equal(t, "disk", viper.GetString("storage.type"))
	assert.Equal(t, "us-east-1", viper.GetString("storage.s3.region"))
	assert.Equal(t, 24*time.Hour, viper.GetDuration("cache.ttl"))
	assert.Equal(t, "sha1", viper.GetString("digest.algorithm"))
	assert.Empty(t, viper.GetStringSlice("migrate.discard"))
	assert.False(t, viper.GetBool("index.allow_comments"))
	assert.Equal(t, "info", viper.GetString("log.level"))
}

func TestLoad_File(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
storage:
  root: /srv/assets
  type: s3
  s3:
    bucket: mirror
digest:
  algorithm: blake3
migrate:
  discard:
    - "*.tmp"
    - ".DS_Store"
`), 0o644))

	used, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, used)

	assert.Equal(t, "/srv/assets", viper.GetString("storage.root"))
	assert.Equal(t, "s3", viper.GetString("storage.type"))
	assert.Equal(t, "mirror", viper.GetString("storage.s3.bucket"))
	assert.Equal(t, "blake3", viper.GetString("digest.algorithm"))
	assert.Equal(t, []string{"*.tmp", ".DS_Store"}, viper.GetStringSlice("migrate.discard"))
	// 文件里没写的仍然是默认值
	assert.Equal(t, "text", viper.GetString("log.format"))
}

func TestLoad_Env(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AV_STORAGE_ROOT", "/from/env")
	t.Setenv("AV_LOG_LEVEL", "debug")

	_, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/from/env", viper.GetString("storage.root"))
	assert.Equal(t, "debug", viper.GetString("log.level"))
}

func TestLoad_BrokenFile(t *testing.T) {
	viper.Reset()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage: [unclosed"), 0o644))

	_, err := Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fatal error config file")
}
