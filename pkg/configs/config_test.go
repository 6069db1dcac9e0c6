package configs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/propvault/pkg/configs"
)

// TestInitConfigDefaults 无配置文件时使用默认值.
func TestInitConfigDefaults(t *testing.T) {
	require.NoError(t, configs.InitConfig(t.TempDir()))

	cfg := configs.GetConfig()
	assert.Equal(t, configs.DefaultPort, cfg.Server.Port)
	assert.Equal(t, configs.SQLite, cfg.DB.Type)
	assert.Equal(t, configs.MQTypeGoChannel, cfg.MQ.Type)
	assert.Equal(t, configs.KVTypeMemory, cfg.KV.Type)
	assert.Equal(t, "properties", cfg.Client.Collection)
	assert.Equal(t, 500, cfg.Client.DebounceMS)
	assert.Equal(t, 5, cfg.Client.BannerSeconds)
	assert.NoError(t, cfg.Validate())
}

// TestInitConfigFile 读取目录下的 config.yaml 并允许环境变量覆盖.
func TestInitConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9000
db:
  type: mysql
  host: db.internal
client:
  base_url: http://example.com/api/v1
  debounce_ms: 250
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))
	t.Setenv("PROPVAULT_S3_BUCKET_NAME", "records")

	require.NoError(t, configs.InitConfig(dir))

	cfg := configs.GetConfig()
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, configs.MySQL, cfg.DB.Type)
	assert.Equal(t, "MySQL", cfg.DB.GetDBType())
	assert.Contains(t, cfg.DB.GetDSN(), "@tcp(db.internal:5432)/propvault")
	assert.Equal(t, "records", cfg.S3.BucketName)
	assert.Equal(t, "http://example.com/api/v1", cfg.Client.BaseURL)
	assert.Equal(t, 250, int(cfg.Client.GetSearchDebounce().Milliseconds()))
}

// TestInitConfigExplicitFile 显式传入配置文件路径.
func TestInitConfigExplicitFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"server":{"port":7000}}`), 0o600))

	require.NoError(t, configs.InitConfig(file))
	assert.Equal(t, 7000, configs.GetConfig().Server.Port)
}

func TestS3ObjectURL(t *testing.T) {
	c := configs.S3Config{Endpoint: "minio:9000", BucketName: "pv"}
	assert.Equal(t, "http://minio:9000/pv/properties/a/b.jpg", c.ObjectURL("properties/a/b.jpg"))

	c.PublicURL = "https://cdn.example.com/"
	assert.Equal(t, "https://cdn.example.com/x.pdf", c.ObjectURL("x.pdf"))
}

func TestValidateRejectsBadValues(t *testing.T) {
	require.NoError(t, configs.InitConfig(t.TempDir()))

	cfg := configs.GetConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}
