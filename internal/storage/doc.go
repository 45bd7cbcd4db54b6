// Package storage mirrors exported files to an S3-compatible object store.
//
// Object keys are the file paths relative to the export root, joined with
// slashes under an optional prefix:
//
//	out/baseline/eval/reward.npy -> <prefix>/baseline/eval/reward.npy
package storage
