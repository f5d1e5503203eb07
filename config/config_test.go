package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useConfigPath(t *testing.T, configPath string) {
	t.Helper()
	old := resolveConfigPath
	resolveConfigPath = func() (string, error) { return configPath, nil }
	oldConf := Conf
	t.Cleanup(func() {
		resolveConfigPath = old
		Conf = oldConf
	})
}

func TestLoadOrCreateConfigMissingCreatesDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config", "config.toml")
	useConfigPath(t, configPath)

	if _, err := os.Stat(configPath); err == nil {
		t.Fatalf("expected config file to be missing")
	}

	created, err := LoadOrCreateConfig()
	if err != nil {
		t.Fatalf("LoadOrCreateConfig() error: %v", err)
	}
	if !created {
		t.Fatalf("LoadOrCreateConfig() created=false, want true")
	}

	var got Config
	if _, err := toml.DecodeFile(configPath, &got); err != nil {
		t.Fatalf("decode created config: %v", err)
	}
	if got.Server.Host != "127.0.0.1" {
		t.Fatalf("default server host = %q, want %q", got.Server.Host, "127.0.0.1")
	}
	if got.Server.Port != 8888 {
		t.Fatalf("default server port = %d, want %d", got.Server.Port, 8888)
	}
	assert.Equal(t, 30.0, got.Clip.StartOffset)
	assert.Equal(t, 10.0, got.Clip.Duration)
	assert.Equal(t, HardBatchLimit, got.Batch.MaxVideos)
	assert.Equal(t, 1, got.Jobs.MaxActive)
}

func TestLoadOrCreateConfigReadsExistingFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	useConfigPath(t, configPath)

	content := `
[server]
port = 9100

[clip]
strategy = "highlights"

[batch]
parallelism = 3

[plans.pro]
max_batch = 4
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	created, err := LoadOrCreateConfig()
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, 9100, Conf.Server.Port)
	assert.Equal(t, "127.0.0.1", Conf.Server.Host, "unset keys keep defaults")
	assert.Equal(t, StrategyHighlights, Conf.Clip.Strategy)
	assert.Equal(t, 30.0, Conf.Clip.StartOffset)
	assert.Equal(t, 3, Conf.Batch.Parallelism)
	assert.Equal(t, 4, Conf.Plans["pro"].MaxBatch)
	assert.Contains(t, Conf.Captions.Templates, "tiktok")
}

func TestLoadOrCreateConfigEnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	useConfigPath(t, configPath)
	t.Setenv("VLOGCLIP_PORT", "7001")
	t.Setenv("VLOGCLIP_DEFAULT_PLAN", "business")
	t.Setenv("VLOGCLIP_REDIS_ADDR", "redis:6379")

	_, err := LoadOrCreateConfig()
	require.NoError(t, err)

	assert.Equal(t, 7001, Conf.Server.Port)
	assert.Equal(t, "business", Conf.App.DefaultPlan)
	assert.Equal(t, "redis:6379", Conf.Redis.Addr)
}

func TestSaveConfigCreatesParentDirs(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "deep", "nest", "config.toml")
	useConfigPath(t, configPath)

	Conf = defaultConfig()
	Conf.Server.Port = 9999

	if err := SaveConfig(); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}

	var got Config
	if _, err := toml.DecodeFile(configPath, &got); err != nil {
		t.Fatalf("decode saved config: %v", err)
	}
	if got.Server.Port != 9999 {
		t.Fatalf("saved server port = %d, want %d", got.Server.Port, 9999)
	}
}

func TestCheckConfig(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "bad proxy", mutate: func(c *Config) { c.App.Proxy = "::nope" }, wantErr: "app.proxy"},
		{name: "unknown strategy", mutate: func(c *Config) { c.Clip.Strategy = "ai" }, wantErr: "clip.strategy"},
		{name: "batch above hard limit", mutate: func(c *Config) { c.Batch.MaxVideos = 7 }, wantErr: "batch.max_videos"},
		{name: "zero duration", mutate: func(c *Config) { c.Clip.Duration = 0 }, wantErr: "clip.duration"},
		{name: "unknown backend", mutate: func(c *Config) { c.Jobs.Backend = "kafka" }, wantErr: "jobs.backend"},
		{name: "redis without addr", mutate: func(c *Config) {
			c.Jobs.Backend = BackendRedis
			c.Redis.Addr = " "
		}, wantErr: "redis.addr"},
		{name: "oss without bucket", mutate: func(c *Config) { c.Oss.Enabled = true }, wantErr: "oss"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			old := Conf
			t.Cleanup(func() { Conf = old })

			Conf = defaultConfig()
			tc.mutate(&Conf)
			err := CheckConfig()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestCheckConfigDerivedFields(t *testing.T) {
	old := Conf
	t.Cleanup(func() { Conf = old })

	Conf = defaultConfig()
	Conf.App.Proxy = "http://127.0.0.1:7890"
	Conf.Batch.Parallelism = 0
	Conf.Captions.Provider = CaptionsOpenAI
	Conf.Llm.ApiKey = ""

	require.NoError(t, CheckConfig())
	require.NotNil(t, Conf.App.ParsedProxy)
	assert.Equal(t, "127.0.0.1:7890", Conf.App.ParsedProxy.Host)
	assert.Equal(t, 1, Conf.Batch.Parallelism)
	assert.Equal(t, CaptionsTemplate, Conf.Captions.Provider)
}
