// Package exporter writes aligned field matrices to disk.
//
// Every field of an experiment becomes one file at
//
//	<output_path>/<experiment>/<field>.<ext>
//
// where slashes in the field name become subdirectories. Supported formats
// are numpy (.npy, float64, the default), csv and xlsx. Existing files are
// never replaced unless the writer was created with overwrite enabled.
//
// Example usage:
//
//	w := exporter.NewWriter(false, logger)
//	path, err := w.Write(ctx, exporter.Target{
//		OutputPath: "out",
//		Experiment: "baseline",
//		Field:      "eval/reward",
//		Format:     "numpy",
//	}, matrix)
package exporter
