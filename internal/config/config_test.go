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

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"appScope": "meter-2",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "meter-2", viper.GetString("appScope"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, "livemeter", viper.GetString("appScope"))
	assert.Equal(t, "./meter-data", viper.GetString("tablesDir"))
	assert.Equal(t, "https://db.bptimer.com", viper.GetString("api.baseUrl"))
	assert.Equal(t, "/api/create-hp-report", viper.GetString("api.hpReportPath"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
	assert.Equal(t, "sqlite", viper.GetString("storage.type"))
	assert.Equal(t, "./livemeter.db", viper.GetString("storage.sqlite.path"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "postgres", viper.GetString("db.password"))
	assert.Equal(t, "livemeter", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "", viper.GetString("capture.replayFile"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestAccessors(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("capture.replayFile", "session.bin")
	viper.Set("reporter.workers", 3)
	viper.Set("influx.enabled", true)

	assert.Equal(t, "session.bin", GetString("capture.replayFile"))
	assert.Equal(t, 3, GetInt("reporter.workers"))
	assert.True(t, GetBool("influx.enabled"))
}

func TestGetAPIConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"api": { "baseUrl": "http://localhost:9000", "apiKey": "k", "timeout": "5s" }
	}`)))

	cfg := GetAPIConfig()
	assert.Equal(t, "http://localhost:9000", cfg.BaseURL)
	assert.Equal(t, "/api/create-hp-report", cfg.HPReportPath)
	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestGetReporterConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want ReporterConfig
	}{
		{"defaults", `{}`, ReporterConfig{Workers: 4, QueueSize: 256, RatePerSecond: 10}},
		{
			"override",
			`{"reporter": {"workers": 1, "queueSize": 8, "ratePerSecond": 0.5}}`,
			ReporterConfig{Workers: 1, QueueSize: 8, RatePerSecond: 0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))
			assert.Equal(t, tt.want, GetReporterConfig())
		})
	}
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, "./livemeter.db", cfg.SQLite.Path)
	assert.Equal(t, "localhost", cfg.DB.Host)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": { "type": "postgres", "sqlite": { "path": "/tmp/x.db" } },
		"db": { "host": "db.internal", "database": "meter" }
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "postgres", sc.Type)
	assert.Equal(t, "/tmp/x.db", sc.SQLite.Path)
	assert.Equal(t, "db.internal", sc.DB.Host)
	assert.Equal(t, "meter", sc.DB.Database)
}

func TestGetOTelConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want OTelConfig
	}{
		{
			name: "defaults",
			body: `{}`,
			want: OTelConfig{ServiceName: "livemeter", BatchTimeout: 5 * time.Second, Insecure: true},
		},
		{
			name: "collector",
			body: `{"otel": {"enabled": true, "serviceName": "meter-eu", "batchTimeout": "30s", "endpoint": "localhost:4318", "insecure": false}}`,
			want: OTelConfig{Enabled: true, ServiceName: "meter-eu", BatchTimeout: 30 * time.Second, Endpoint: "localhost:4318"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))
			assert.Equal(t, tt.want, GetOTelConfig())
		})
	}
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"influx": { "enabled": true, "host": "influx", "token": "t" }
	}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "t", ic.Token)
	assert.Equal(t, "hp_reports", ic.Bucket)
	assert.Equal(t, "http://influx:8086", ic.URL())
}

func TestGetMonitorConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.Error(t, Load(dir))
	mc := GetMonitorConfig()
	assert.True(t, mc.Enabled)
	assert.Equal(t, time.Second, mc.Interval)
	assert.Equal(t, "status.json", mc.StatusFile)

	require.NoError(t, Load(writeConfig(t, `{
		"monitor": { "enabled": false, "interval": "250ms" }
	}`)))
	mc = GetMonitorConfig()
	assert.False(t, mc.Enabled)
	assert.Equal(t, 250*time.Millisecond, mc.Interval)
}
