package experiment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "runmatrix/internal/errors"
)

const validBase = `
DEFAULT:
  entity: lab
  project: locomotion
  output_path: out
  fields: [reward]
`

func TestParsed_Validate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantParam string
		wantExp   string
	}{
		{
			name:  "minimal",
			input: validBase + "exp:\n",
		},
		{
			name: "required values only in experiments",
			input: `
a: {entity: lab, project: p, output_path: out, fields: [x]}
b: {entity: lab, project: q, output_path: out, fields: [y]}
`,
		},
		{
			name: "project missing everywhere",
			input: `
DEFAULT: {entity: lab, output_path: out, fields: [x]}
a: {groups: all}
`,
			wantParam: "project",
			wantExp:   "a",
		},
		{
			name: "project missing in one experiment",
			input: `
a: {entity: lab, project: p, output_path: out, fields: [x]}
b: {entity: lab, output_path: out, fields: [y]}
`,
			wantParam: "project",
			wantExp:   "b",
		},
		{
			name:      "groups list with job_types length mismatch",
			input:     validBase + "exp:\n  groups: [g1, g2]\n  job_types: [all]\n",
			wantParam: "job_types",
			wantExp:   "exp",
		},
		{
			name:      "groups all with nested runs",
			input:     validBase + "exp:\n  groups: all\n  runs: [[r1]]\n",
			wantParam: "runs",
			wantExp:   "exp",
		},
		{
			name:      "no groups with nested tags",
			input:     validBase + "exp:\n  tags: [[t]]\n",
			wantParam: "tags",
			wantExp:   "exp",
		},
		{
			name:  "groups list with nested entries",
			input: validBase + "exp:\n  groups: [g1, g2]\n  job_types: [[t1], all]\n  runs: all\n  tags: [[a, b], [c]]\n",
		},
		{
			name:      "groups list with flat entries",
			input:     validBase + "exp:\n  groups: [g1, g2]\n  runs: [r1, r2]\n",
			wantParam: "runs",
			wantExp:   "exp",
		},
		{
			name:  "groups list inherited from default",
			input: validBase + "  groups: [g1]\nexp:\n  job_types: [[train]]\n",
		},
		{
			name:      "flat list in default clashing with experiment groups",
			input:     validBase + "  job_types: [train]\nexp:\n  groups: [g1]\n",
			wantParam: "job_types",
			wantExp:   "exp",
		},
		{
			name:      "job_types neither list nor all",
			input:     validBase + "exp:\n  job_types: train\n",
			wantParam: "job_types",
			wantExp:   "exp",
		},
		{
			name:      "empty groups list",
			input:     validBase + "exp:\n  groups: []\n",
			wantParam: "groups",
			wantExp:   "exp",
		},
		{
			name:      "config is not a mapping",
			input:     validBase + "exp:\n  config: [lr]\n",
			wantParam: "config",
			wantExp:   "exp",
		},
		{
			name:  "parameter filters",
			input: validBase + "exp:\n  config:\n    lr: {min: 0.001, max: 1}\n  summary:\n    solved: {values: [true]}\n",
		},
		{
			name:      "non numeric min",
			input:     validBase + "exp:\n  config:\n    lr: {min: low}\n",
			wantParam: "config.lr.min",
			wantExp:   "exp",
		},
		{
			name:      "empty parameter filter",
			input:     validBase + "exp:\n  config:\n    lr: {}\n",
			wantParam: "config.lr",
			wantExp:   "exp",
		},
		{
			name:  "empty values list",
			input: validBase + "exp:\n  config:\n    lr: {values: []}\n",
		},
		{
			name:      "unknown parameter filter key",
			input:     validBase + "exp:\n  summary:\n    loss: {below: 3}\n",
			wantParam: "summary.loss",
			wantExp:   "exp",
		},
		{
			name:      "negative history samples",
			input:     validBase + "exp:\n  history_samples: -5\n",
			wantParam: "history_samples",
			wantExp:   "exp",
		},
		{
			name:  "history samples all",
			input: validBase + "exp:\n  history_samples: all\n",
		},
		{
			name:      "fields not a list",
			input:     validBase + "exp:\n  fields: reward\n",
			wantParam: "fields",
			wantExp:   "exp",
		},
		{
			name:      "invalid type in default",
			input:     validBase + "  groups: {a: 1}\nexp:\n",
			wantParam: "groups",
			wantExp:   DefaultName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			p, err := doc.Split(nil)
			require.NoError(t, err)

			err = p.Validate()
			if tt.wantParam == "" {
				assert.NoError(t, err)
				return
			}

			var cve *apperrors.ConfigValidationError
			require.True(t, errors.As(err, &cve), "expected ConfigValidationError, got %v", err)
			assert.Equal(t, tt.wantParam, cve.Parameter)
			assert.Equal(t, tt.wantExp, cve.Experiment)
		})
	}
}
