package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Settings represents the runtime settings of an export invocation. They are
// independent of the experiment configuration file, which describes what to
// export rather than how to reach the tracking service.
type Settings struct {
	API       APIConfig       `yaml:"api" envconfig:"API"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Upload    UploadConfig    `yaml:"upload" envconfig:"UPLOAD"`
}

// APIConfig contains the tracking service connection settings
type APIConfig struct {
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	Key               string        `yaml:"key" envconfig:"KEY"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	PageSize          int           `yaml:"page_size" envconfig:"PAGE_SIZE" validate:"min=1,max=1000"`
	ScanPageSize      int           `yaml:"scan_page_size" envconfig:"SCAN_PAGE_SIZE" validate:"min=1,max=10000"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig controls tracing and metrics
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
}

// UploadConfig configures the optional object-store mirror of exported files.
// The mirror is disabled while Endpoint is empty.
type UploadConfig struct {
	Endpoint  string `yaml:"endpoint" envconfig:"ENDPOINT"`
	Bucket    string `yaml:"bucket" envconfig:"BUCKET" validate:"required_with=Endpoint"`
	AccessKey string `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" envconfig:"USE_SSL"`
	Prefix    string `yaml:"prefix" envconfig:"PREFIX"`
}

// Enabled reports whether exported files should be mirrored
func (u UploadConfig) Enabled() bool {
	return u.Endpoint != ""
}

// Load builds settings from defaults, then the YAML settings file (if any),
// then environment variables. Later sources win.
func Load(settingsFile string) (*Settings, error) {
	cfg := Default()

	if settingsFile == "" {
		settingsFile = findSettingsFile()
	}
	if settingsFile != "" {
		if err := loadFromFile(settingsFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load settings from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load settings from env: %w", err)
	}
	applyFallbackEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML settings file onto cfg
func loadFromFile(filePath string, cfg *Settings) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyFallbackEnv honours the tracking service's own variables when the
// prefixed ones are unset.
func applyFallbackEnv(cfg *Settings) {
	if _, ok := os.LookupEnv(EnvPrefix + "_API_KEY"); !ok && cfg.API.Key == "" {
		cfg.API.Key = os.Getenv(FallbackAPIKeyEnv)
	}
	if _, ok := os.LookupEnv(EnvPrefix + "_API_BASE_URL"); !ok {
		if v := os.Getenv(FallbackBaseURLEnv); v != "" && cfg.API.BaseURL == DefaultBaseURL {
			cfg.API.BaseURL = v
		}
	}
	cfg.API.BaseURL = strings.TrimSuffix(cfg.API.BaseURL, "/")
}

// Validate validates the settings
func (s *Settings) Validate() error {
	v := validator.New()
	if err := v.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if s.Logging.Output != "console" && s.Logging.FilePath == "" {
		s.Logging.FilePath = DefaultLogFile
	}
	return nil
}

// findSettingsFile returns the first settings file found in common locations
func findSettingsFile() string {
	locations := []string{
		DefaultSettingsFile,
		"configs/" + DefaultSettingsFile,
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default settings
func Default() *Settings {
	return &Settings{
		API: APIConfig{
			BaseURL:      DefaultBaseURL,
			Timeout:      DefaultHTTPTimeout,
			PageSize:     DefaultPageSize,
			ScanPageSize: DefaultScanPageSize,
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   DefaultLogOutput,
			FilePath: DefaultLogFile,
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricsEnabled: true,
		},
	}
}
