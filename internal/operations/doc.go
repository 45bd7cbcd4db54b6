// Package operations runs exports end to end.
//
// A Runner takes resolved experiments and, one experiment at a time, builds
// the run query, lists the matching runs, extracts their histories, aligns
// them into one matrix per field and writes each matrix to disk. Written
// files are optionally mirrored to an object store.
//
// Failures are contained: a tracking service error abandons the current
// experiment and the next one proceeds, a file collision or an unsupported
// output format skips one write. Every outcome is recorded in a Manifest,
// which can be saved as JSON next to the exported data.
//
// Only context cancellation stops a run early.
package operations
