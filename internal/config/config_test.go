package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("DefaultsApplied", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfigFile(t, dir, "config.yaml", `
app:
  env: prod
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "prod", cfg.App.Env)
		assert.Equal(t, "info", cfg.App.LogLevel)
		assert.Equal(t, ":9980", cfg.App.HTTPAddr)
		assert.Equal(t, "6h", cfg.Monitor.Interval)
		assert.Equal(t, 4, cfg.Monitor.Workers)
		assert.Equal(t, 24, cfg.Monitor.DedupWindowHours)
		assert.InDelta(t, 10.0, cfg.Monitor.VolatilityPct, 0.001)
		assert.InDelta(t, 5.0, cfg.Budget.DailyCeilingUSD, 0.001)
		assert.InDelta(t, 0.01, cfg.Budget.SearchCostUSD, 0.001)
		assert.Equal(t, "https://api.tavily.com", cfg.Search.BaseURL)
		assert.Equal(t, "basic", cfg.Search.Depth)
		assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
		assert.Equal(t, 15, cfg.Notify.Email.TimeoutSeconds)
	})

	t.Run("ExplicitValuesKept", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfigFile(t, dir, "config.yaml", `
monitor:
  interval: 1h
  workers: 8
budget:
  daily_ceiling_usd: 2.5
search:
  depth: advanced
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "1h", cfg.Monitor.Interval)
		assert.Equal(t, 8, cfg.Monitor.Workers)
		assert.InDelta(t, 2.5, cfg.Budget.DailyCeilingUSD, 0.001)
		assert.Equal(t, "advanced", cfg.Search.Depth)
	})

	t.Run("IncludeMerge", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "base.yaml", `
app:
  env: base
  log_level: debug
monitor:
  workers: 2
`)
		// 主文件后写入，覆盖被包含文件的同名键
		path := writeConfigFile(t, dir, "config.yaml", `
include:
  - base.yaml
app:
  env: prod
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "prod", cfg.App.Env)
		assert.Equal(t, "debug", cfg.App.LogLevel)
		assert.Equal(t, 2, cfg.Monitor.Workers)
	})

	t.Run("IncludeCycleRejected", func(t *testing.T) {
		dir := t.TempDir()
		writeConfigFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
		path := writeConfigFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "include cycle")
	})

	t.Run("InvalidDepthRejected", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfigFile(t, dir, "config.yaml", "search:\n  depth: deep\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "search.depth")
	})

	t.Run("EnabledEmailNeedsFrom", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfigFile(t, dir, "config.yaml", `
notify:
  email:
    enabled: true
    api_url: https://api.mailgun.net/v3/mg.example.com
`)
		_, err := Load(path)
		assert.ErrorContains(t, err, "notify.email.from")
	})

	t.Run("SnippetOnlySkipsModelValidation", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfigFile(t, dir, "config.yaml", `
ai:
  snippet_only: true
  model: ""
  api_url: ""
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.True(t, cfg.AI.SnippetOnly)
	})

	t.Run("EmptyPathRejected", func(t *testing.T) {
		_, err := Load("")
		assert.Error(t, err)
	})
}
