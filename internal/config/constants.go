package config

import "time"

// Application constants
const (
	AppName    = "runmatrix"
	AppVersion = "0.3.0"

	// EnvPrefix namespaces every environment variable read by Load.
	EnvPrefix = "RUNMATRIX"

	// Remote tracking service
	DefaultBaseURL      = "https://api.wandb.ai"
	DefaultHTTPTimeout  = 15 * time.Second
	DefaultPageSize     = 50
	DefaultScanPageSize = 1000
	MaxPageSize         = 1000

	// Fallback variables understood by the tracking service's own tooling
	FallbackAPIKeyEnv  = "WANDB_API_KEY"
	FallbackBaseURLEnv = "WANDB_BASE_URL"

	// Log settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultLogOutput = "console"
	DefaultLogFile   = "logs/runmatrix.log"

	// Settings file names searched when no explicit path is given
	DefaultSettingsFile = "runmatrix.yaml"
)
