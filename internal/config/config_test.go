package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"RUNMATRIX_API_BASE_URL", "RUNMATRIX_API_KEY", "RUNMATRIX_API_TIMEOUT",
		"RUNMATRIX_API_PAGE_SIZE", "RUNMATRIX_API_SCAN_PAGE_SIZE", "RUNMATRIX_API_REQUESTS_PER_SECOND",
		"RUNMATRIX_LOGGING_LEVEL", "RUNMATRIX_LOGGING_FORMAT", "RUNMATRIX_LOGGING_OUTPUT",
		"RUNMATRIX_LOGGING_FILE_PATH", "RUNMATRIX_TELEMETRY_TRACE_EXPORTER",
		"RUNMATRIX_TELEMETRY_METRICS_ENABLED", "RUNMATRIX_UPLOAD_ENDPOINT", "RUNMATRIX_UPLOAD_BUCKET",
		FallbackAPIKeyEnv, FallbackBaseURLEnv,
	}
	for _, v := range vars {
		if old, ok := os.LookupEnv(v); ok {
			t.Cleanup(func() { os.Setenv(v, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(v) })
		}
		os.Unsetenv(v)
	}
}

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runmatrix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    func(t *testing.T)
		fileContent string
		wantErr     bool
		validateCfg func(*testing.T, *Settings)
	}{
		{
			name: "defaults only",
			validateCfg: func(t *testing.T, cfg *Settings) {
				assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
				assert.Equal(t, 15*time.Second, cfg.API.Timeout)
				assert.Equal(t, DefaultPageSize, cfg.API.PageSize)
				assert.Equal(t, DefaultScanPageSize, cfg.API.ScanPageSize)
				assert.Zero(t, cfg.API.RequestsPerSecond)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
				assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
				assert.False(t, cfg.Upload.Enabled())
			},
		},
		{
			name: "file overrides defaults",
			fileContent: `
api:
  base_url: http://tracking.local:8080
  timeout: 30s
  page_size: 100
logging:
  level: debug
  format: json
`,
			validateCfg: func(t *testing.T, cfg *Settings) {
				assert.Equal(t, "http://tracking.local:8080", cfg.API.BaseURL)
				assert.Equal(t, 30*time.Second, cfg.API.Timeout)
				assert.Equal(t, 100, cfg.API.PageSize)
				assert.Equal(t, DefaultScanPageSize, cfg.API.ScanPageSize)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
		{
			name: "env overrides file",
			setupEnv: func(t *testing.T) {
				os.Setenv("RUNMATRIX_API_TIMEOUT", "5s")
				os.Setenv("RUNMATRIX_API_KEY", "secret")
			},
			fileContent: "api:\n  timeout: 30s\n  key: from-file\n",
			validateCfg: func(t *testing.T, cfg *Settings) {
				assert.Equal(t, 5*time.Second, cfg.API.Timeout)
				assert.Equal(t, "secret", cfg.API.Key)
			},
		},
		{
			name: "fallback api key and base url",
			setupEnv: func(t *testing.T) {
				os.Setenv(FallbackAPIKeyEnv, "wandb-key")
				os.Setenv(FallbackBaseURLEnv, "https://wandb.example.com/")
			},
			validateCfg: func(t *testing.T, cfg *Settings) {
				assert.Equal(t, "wandb-key", cfg.API.Key)
				assert.Equal(t, "https://wandb.example.com", cfg.API.BaseURL)
			},
		},
		{
			name: "upload requires bucket",
			setupEnv: func(t *testing.T) {
				os.Setenv("RUNMATRIX_UPLOAD_ENDPOINT", "minio.local:9000")
			},
			wantErr: true,
		},
		{
			name:        "invalid log level",
			fileContent: "logging:\n  level: chatty\n",
			wantErr:     true,
		},
		{
			name:        "zero timeout",
			fileContent: "api:\n  timeout: 0s\n",
			wantErr:     true,
		},
		{
			name:        "malformed yaml",
			fileContent: "api: [unterminated\n",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.setupEnv != nil {
				tt.setupEnv(t)
			}

			path := ""
			if tt.fileContent != "" {
				path = writeSettings(t, tt.fileContent)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestSettings_ValidateSetsLogFile(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "both"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultLogFile, cfg.Logging.FilePath)
}

func TestUploadConfig_Enabled(t *testing.T) {
	assert.False(t, UploadConfig{}.Enabled())
	assert.True(t, UploadConfig{Endpoint: "s3.local", Bucket: "exports"}.Enabled())
}
