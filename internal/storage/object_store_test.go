package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/minio"
)

const (
	minioUsername = "minioadmin"
	minioPassword = "minioadmin"
	testBucket    = "test-bucket"
)

func TestLocalObjectStore(t *testing.T) {
	baseDir := t.TempDir()
	store, err := NewLocalObjectStore(baseDir)
	require.NoError(t, err)

	ctx := context.Background()
	content := []byte("archive content")

	require.NoError(t, store.PutObject(ctx, "job-1/gwp_results_log.zip", bytes.NewReader(content)))

	data, err := os.ReadFile(filepath.Join(baseDir, "job-1", "gwp_results_log.zip"))
	require.NoError(t, err)
	assert.Equal(t, content, data)

	require.NoError(t, store.DeleteObjects(ctx, "job-1/"))
	assert.NoDirExists(t, filepath.Join(baseDir, "job-1"))

	require.NoError(t, store.DeleteObjects(ctx, "job-2/"))
}

func setupMinioStore(t *testing.T, ctx context.Context) *S3ObjectStore {
	t.Helper()

	container, err := minio.Run(
		ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "Failed to start MinIO container")

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()), "Failed to terminate MinIO container")
	})

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := NewS3ObjectStore(ctx, testBucket, S3ClientConfig{
		Endpoint:        "http://" + connStr,
		Region:          "us-east-1",
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	})
	require.NoError(t, err)
	require.NoError(t, store.CreateBucket(ctx))

	return store
}

func TestS3ObjectStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MinIO integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	store := setupMinioStore(t, ctx)
	require.NoError(t, store.ValidateAccess(ctx))

	content := []byte("archive content")
	require.NoError(t, store.PutObject(ctx, "job-1/gwp_results_log.zip", bytes.NewReader(content)))

	require.NoError(t, store.PutObject(ctx, "job-2/gwp_results_log.zip", bytes.NewReader(content)))

	assert.Equal(t, content, readS3Object(t, ctx, store, "job-1/gwp_results_log.zip"))

	require.NoError(t, store.DeleteObjects(ctx, "job-1/"))
	assert.Equal(t, []string{"job-2/gwp_results_log.zip"}, listS3Keys(t, ctx, store))

	// Creating an existing bucket is not an error.
	require.NoError(t, store.CreateBucket(ctx))
}

func readS3Object(t *testing.T, ctx context.Context, store *S3ObjectStore, key string) []byte {
	t.Helper()
	out, err := store.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(key),
	})
	require.NoError(t, err)
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	return data
}

func listS3Keys(t *testing.T, ctx context.Context, store *S3ObjectStore) []string {
	t.Helper()
	out, err := store.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(store.bucket),
	})
	require.NoError(t, err)

	var keys []string
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	return keys
}
