package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runmatrix/internal/infrastructure"
	"runmatrix/internal/operations"
	"runmatrix/internal/tracking/trackingtest"
)

type fixture struct {
	srv    *trackingtest.Server
	dir    string
	out    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{srv: trackingtest.NewServer(), dir: t.TempDir()}
	f.out = filepath.Join(f.dir, "out")
	t.Cleanup(f.srv.Close)
	t.Cleanup(infrastructure.ResetLoggerForTesting)

	f.srv.RequireAuth()
	f.srv.AddRun("lab", "locomotion", trackingtest.Run{
		Name:    "r1",
		Group:   "g1",
		JobType: "train",
		History: trackingtest.Series("reward", 1, 2, 3),
	})
	f.srv.AddRun("lab", "locomotion", trackingtest.Run{
		Name:    "r2",
		Group:   "g1",
		JobType: "eval",
		History: trackingtest.Series("reward", 4, 5),
	})

	t.Setenv("RUNMATRIX_API_BASE_URL", f.srv.URL)
	t.Setenv("RUNMATRIX_API_KEY", trackingtest.APIKey)
	t.Setenv("RUNMATRIX_TELEMETRY_TRACE_EXPORTER", "none")
	t.Setenv("RUNMATRIX_UPLOAD_ENDPOINT", "")
	return f
}

func (f *fixture) writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(f.dir, "config.yaml")
	content := fmt.Sprintf("DEFAULT:\n  entity: lab\n  project: locomotion\n  fields: [reward]\n  output_path: %s\n%s", f.out, body)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (f *fixture) execute(args ...string) int {
	return execute(context.Background(), args, &f.stdout, &f.stderr)
}

func TestExecute_Export(t *testing.T) {
	f := newFixture(t)
	cfg := f.writeConfig(t, "baseline: {}\n")
	manifestPath := filepath.Join(f.dir, "manifest.json")

	code := f.execute(cfg, "--manifest", manifestPath)
	require.Equal(t, exitOK, code, f.stderr.String())

	assert.FileExists(t, filepath.Join(f.out, "baseline", "reward.npy"))
	assert.Contains(t, f.stderr.String(), "found runs")

	manifest, err := operations.LoadManifest(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, operations.StatusCompleted, manifest.Status)
	require.Len(t, manifest.Experiments, 1)
	assert.Equal(t, []string{"r1", "r2"}, manifest.Experiments[0].Runs)
	assert.Equal(t, operations.FieldWritten, manifest.Experiments[0].Fields[0].Status)
}

func TestExecute_InvalidConfigExitsWithFailure(t *testing.T) {
	tests := []struct {
		name string
		body string
		args []string
		want string
	}{
		{
			name: "history samples not a number",
			body: "baseline:\n  history_samples: many\n",
			want: "history_samples",
		},
		{
			name: "unknown experiment",
			body: "baseline: {}\n",
			args: []string{"-e", "missing"},
			want: "unknown experiment missing",
		},
		{
			name: "only default",
			body: "",
			want: "no experiments to export",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cfg := f.writeConfig(t, tt.body)

			code := f.execute(append([]string{cfg}, tt.args...)...)
			assert.Equal(t, exitFailure, code)
			assert.Contains(t, f.stderr.String(), tt.want)
			assert.Empty(t, f.srv.Requests())
			assert.NoDirExists(t, f.out)
		})
	}
}

func TestExecute_MissingConfigFile(t *testing.T) {
	f := newFixture(t)
	code := f.execute(filepath.Join(f.dir, "absent.yaml"))
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, f.srv.Requests())
}

func TestExecute_RemoteFailureStillExitsOK(t *testing.T) {
	f := newFixture(t)
	f.srv.Fail("Runs", http.StatusInternalServerError)
	cfg := f.writeConfig(t, "baseline: {}\n")

	code := f.execute(cfg)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, f.stderr.String(), "skipping experiment")
	assert.NoDirExists(t, filepath.Join(f.out, "baseline"))
}

func TestExecute_ExperimentSelection(t *testing.T) {
	f := newFixture(t)
	cfg := f.writeConfig(t, "a: {}\nb: {}\nc: {}\n")

	code := f.execute(cfg, "-e", "a", "c")
	require.Equal(t, exitOK, code, f.stderr.String())

	assert.FileExists(t, filepath.Join(f.out, "a", "reward.npy"))
	assert.NoDirExists(t, filepath.Join(f.out, "b"))
	assert.FileExists(t, filepath.Join(f.out, "c", "reward.npy"))
}

func TestExecute_UnexpectedArguments(t *testing.T) {
	f := newFixture(t)
	cfg := f.writeConfig(t, "a: {}\n")

	code := f.execute(cfg, "extra")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, f.stderr.String(), "unexpected arguments")
}

func TestExecute_CollisionAndOverwrite(t *testing.T) {
	f := newFixture(t)
	cfg := f.writeConfig(t, "baseline:\n  output_data_type: csv\n")
	path := filepath.Join(f.out, "baseline", "reward.csv")

	require.Equal(t, exitOK, f.execute(cfg), f.stderr.String())
	require.NoError(t, os.WriteFile(path, []byte("edited"), 0644))

	require.Equal(t, exitOK, f.execute(cfg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "edited", string(data))
	assert.Contains(t, f.stderr.String(), "already exists")

	require.Equal(t, exitOK, f.execute(cfg, "--overwrite"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "edited", string(data))
}

func TestExecute_SplitByJob(t *testing.T) {
	f := newFixture(t)
	cfg := f.writeConfig(t, "baseline: {}\n")

	require.Equal(t, exitOK, f.execute(cfg, "--split-by-job"), f.stderr.String())
	assert.FileExists(t, filepath.Join(f.out, "baseline", "g1", "train", "reward.npy"))
	assert.FileExists(t, filepath.Join(f.out, "baseline", "g1", "eval", "reward.npy"))
}

func TestExecute_MetricsFile(t *testing.T) {
	f := newFixture(t)
	cfg := f.writeConfig(t, "baseline: {}\n")
	metricsPath := filepath.Join(f.dir, "runmatrix.prom")

	require.Equal(t, exitOK, f.execute(cfg, "--metrics-file", metricsPath), f.stderr.String())

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "runmatrix_experiments")
	assert.Contains(t, string(data), "runmatrix_runs_fetched")
}
