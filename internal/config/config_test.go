package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_DISABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "nurseshift", cfg.App.Name)
	assert.Equal(t, 7012, cfg.App.Port)
	assert.Equal(t, "greedy", cfg.Scheduler.DefaultStrategy)
	assert.Equal(t, 2000, cfg.Scheduler.Annealing.MaxIterations)
	assert.False(t, cfg.UseMemoryStore())
	assert.Equal(t, "host=localhost port=5432 user=nurseshift password=nurseshift dbname=nurseshift sslmode=disable", cfg.Database.DSN())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nurseshift.yaml")
	content := `
app:
  port: 8080
storage:
  driver: memory
redis:
  enabled: true
  host: cache
auth:
  jwt_secret: from-file
scheduler:
  default_strategy: annealing
  generate_timeout: 45s
  annealing:
    islands: 4
    max_time: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("API_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.App.Port, "环境变量优先于文件")
	assert.True(t, cfg.UseMemoryStore())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "annealing", cfg.Scheduler.DefaultStrategy)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.GenerateTimeout)
	assert.Equal(t, 4, cfg.Scheduler.Annealing.Islands)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.Annealing.MaxTime)
	assert.Equal(t, 0.995, cfg.Scheduler.Annealing.CoolingRate, "文件未出现的字段保留默认值")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORS.Origins)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"缺少 JWT 密钥", map[string]string{}},
		{"未知存储", map[string]string{"AUTH_DISABLED": "true", "STORAGE_DRIVER": "mysql"}},
		{"未知策略", map[string]string{"AUTH_DISABLED": "true", "SCHEDULER_STRATEGY": "genetic"}},
		{"非法环境", map[string]string{"AUTH_DISABLED": "true", "APP_ENV": "staging"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
