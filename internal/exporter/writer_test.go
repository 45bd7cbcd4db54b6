package exporter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runmatrix/internal/align"
	apperrors "runmatrix/internal/errors"
)

func TestDestination(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		want    string
		wantErr bool
	}{
		{
			name:   "default format",
			target: Target{OutputPath: "out", Experiment: "exp", Field: "reward"},
			want:   filepath.Join("out", "exp", "reward.npy"),
		},
		{
			name:   "nested field",
			target: Target{OutputPath: "out", Experiment: "exp", Field: "a/b", Format: "numpy"},
			want:   filepath.Join("out", "exp", "a", "b.npy"),
		},
		{
			name:   "csv",
			target: Target{OutputPath: "/data", Experiment: "exp", Field: "eval/x/y", Format: "csv"},
			want:   filepath.Join("/data", "exp", "eval", "x", "y.csv"),
		},
		{
			name:   "partition",
			target: Target{OutputPath: "out", Experiment: "exp", Partition: []string{"g1", "train"}, Field: "loss", Format: "xlsx"},
			want:   filepath.Join("out", "exp", "g1", "train", "loss.xlsx"),
		},
		{
			name:    "unsupported",
			target:  Target{OutputPath: "out", Experiment: "exp", Field: "x", Format: "parquet"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Destination(tt.target)
			if tt.wantErr {
				assert.True(t, apperrors.IsUnsupportedFormat(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriter_CreatesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(false, nil)

	path, err := w.Write(context.Background(), Target{OutputPath: dir, Experiment: "exp", Field: "a/b"}, testMatrix())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "exp", "a", "b.npy"), path)

	info, err := os.Stat(filepath.Join(dir, "exp", "a"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriter_Collision(t *testing.T) {
	dir := t.TempDir()
	var logs bytes.Buffer
	w := NewWriter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	target := Target{OutputPath: dir, Experiment: "exp", Field: "x"}

	path, err := w.Write(context.Background(), target, testMatrix())
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	other := &align.Matrix{Field: "x", Rows: 1, Cols: 1, Data: []float64{42}, Lengths: []int{1}, Runs: []int{0}}
	_, err = w.Write(context.Background(), target, other)
	require.Error(t, err)

	var collision *apperrors.FileCollisionError
	require.True(t, errors.As(err, &collision))
	assert.Equal(t, path, collision.Path)
	assert.Contains(t, logs.String(), "already exists")

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second, "existing file must stay byte-identical")
}

func TestWriter_Overwrite(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(true, nil)
	target := Target{OutputPath: dir, Experiment: "exp", Field: "x", Format: "csv"}

	_, err := w.Write(context.Background(), target, testMatrix())
	require.NoError(t, err)

	other := &align.Matrix{Field: "x", Rows: 1, Cols: 1, Data: []float64{42}, Lengths: []int{1}, Runs: []int{0}}
	path, err := w.Write(context.Background(), target, other)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ",step 0\nrun 0,42\n", string(content))
}

func TestWriter_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(false, nil)

	_, err := w.Write(context.Background(), Target{OutputPath: dir, Experiment: "exp", Field: "x", Format: "hdf5"}, testMatrix())
	require.Error(t, err)
	assert.True(t, apperrors.IsUnsupportedFormat(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is created for an unsupported format")
}

func TestWriter_EmptyMatrix(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(false, nil)

	for _, format := range SupportedFormats {
		path, err := w.Write(context.Background(), Target{OutputPath: dir, Experiment: "exp", Field: "none", Format: format}, &align.Matrix{Field: "none"})
		require.NoError(t, err, format)
		_, err = os.Stat(path)
		assert.NoError(t, err, format)
	}
}
