// Package config provides the runtime settings of runmatrix: how to reach the
// tracking service, how to log, whether to trace, and where to mirror
// exported files.
//
// # Configuration Sources
//
// Settings are resolved from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. A YAML settings file (runmatrix.yaml or --settings)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern RUNMATRIX_* for namespacing:
//
//	RUNMATRIX_API_BASE_URL=https://api.wandb.ai
//	RUNMATRIX_API_KEY=...
//	RUNMATRIX_API_TIMEOUT=15s
//	RUNMATRIX_LOGGING_LEVEL=debug
//	RUNMATRIX_UPLOAD_ENDPOINT=minio.local:9000
//
// WANDB_API_KEY and WANDB_BASE_URL are used when the prefixed variables
// are unset.
//
// The experiment configuration file (what to export) is handled by package
// experiment, not here.
package config
