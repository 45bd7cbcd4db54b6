package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runmatrix/internal/config"
	apperrors "runmatrix/internal/errors"
)

type putCall struct {
	bucket, key, path, contentType string
}

type fakePutter struct {
	calls []putCall
	err   error
}

func (f *fakePutter) FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.calls = append(f.calls, putCall{bucketName, objectName, filePath, opts.ContentType})
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: 8}, nil
}

func TestMirror_Key(t *testing.T) {
	root := filepath.Join("data", "out")
	tests := []struct {
		name    string
		prefix  string
		path    string
		want    string
		wantErr bool
	}{
		{name: "no prefix", path: filepath.Join(root, "exp", "reward.npy"), want: "exp/reward.npy"},
		{name: "prefix", prefix: "/exports/2024/", path: filepath.Join(root, "exp", "a", "b.csv"), want: "exports/2024/exp/a/b.csv"},
		{name: "outside root", path: filepath.Join("data", "other.npy"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMirror(&fakePutter{}, "bucket", tt.prefix, nil)
			got, err := m.Key(root, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMirror_Upload(t *testing.T) {
	putter := &fakePutter{}
	m := newMirror(putter, "results", "runs", nil)

	key, err := m.Upload(context.Background(), "out", filepath.Join("out", "exp", "loss.csv"))
	require.NoError(t, err)
	assert.Equal(t, "runs/exp/loss.csv", key)

	require.Len(t, putter.calls, 1)
	assert.Equal(t, putCall{"results", "runs/exp/loss.csv", filepath.Join("out", "exp", "loss.csv"), "text/csv"}, putter.calls[0])
}

func TestMirror_UploadError(t *testing.T) {
	m := newMirror(&fakePutter{err: errors.New("access denied")}, "results", "", nil)

	_, err := m.Upload(context.Background(), "out", filepath.Join("out", "x.npy"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrTypeStorage, appErr.Type)
}

func TestNewMinioMirror_InvalidEndpoint(t *testing.T) {
	_, err := NewMinioMirror(context.Background(), config.UploadConfig{
		Endpoint: "http://localhost:9000/path",
		Bucket:   "results",
	}, nil)
	assert.Error(t, err)
}
