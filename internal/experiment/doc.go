// Package experiment resolves the layered experiment configuration file into
// one typed Resolved value per experiment.
//
// The file is a YAML mapping from experiment name to experiment spec. The
// reserved name DEFAULT holds fallback values that every experiment inherits
// unless it overrides them:
//
//	DEFAULT:
//	  entity: my-team
//	  project: cifar
//	  output_path: exports
//	  fields: [train/loss, test/acc]
//	dropout:
//	  groups: [dropout_0.1, dropout_0.5]
//	  job_types: [[train], all]
//	  config:
//	    lr: {min: 0.0001, max: 0.01}
//
// Resolution happens in three steps: Split separates DEFAULT from the
// selected experiments, Validate checks every layer and every merged result,
// and Merge deep-merges DEFAULT under each experiment on a private copy
// before the merged tree is decoded. Any failure is reported as an
// errors.ConfigValidationError naming the parameter and the experiment.
package experiment
