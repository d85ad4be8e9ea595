package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/host"
)

// fakeS3 keeps objects in memory and answers like S3 does for missing keys.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	bucketOK bool
	putErr   error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), bucketOK: true}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.bucketOK {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func createTestStore(t *testing.T, api API) *Store {
	t.Helper()
	s, err := New(api, Config{Bucket: "sumup", Prefix: "powerup"})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(newFakeS3(), Config{})
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	api := newFakeS3()
	s := createTestStore(t, api)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, host.CardScope("card/1"), host.Shared, domain.FieldValuesKey, domain.ValueMap{"f1": "5"}))

	var values domain.ValueMap
	found, err := s.Get(ctx, host.CardScope("card/1"), host.Shared, domain.FieldValuesKey, &values)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "5", values["f1"])

	assert.Contains(t, api.objects, "powerup/card/card%2F1/shared/sumup_field_values.json")
}

func TestStore_MissingObject(t *testing.T) {
	s := createTestStore(t, newFakeS3())

	var fields []domain.Field
	found, err := s.Get(context.Background(), host.BoardScope("b"), host.Shared, domain.FieldsKey, &fields)

	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_Remove(t *testing.T) {
	api := newFakeS3()
	s := createTestStore(t, api)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, host.BoardScope("b"), host.Shared, "k", 1))
	require.NoError(t, s.Remove(ctx, host.BoardScope("b"), host.Shared, "k"))

	assert.Empty(t, api.objects)
}

func TestStore_PutError(t *testing.T) {
	api := newFakeS3()
	api.putErr = errors.New("access denied")
	s := createTestStore(t, api)

	err := s.Set(context.Background(), host.BoardScope("b"), host.Shared, "k", 1)

	assert.ErrorContains(t, err, "access denied")
}

func TestStore_EnsureBucket(t *testing.T) {
	api := newFakeS3()
	s := createTestStore(t, api)

	require.NoError(t, s.EnsureBucket(context.Background()))

	api.bucketOK = false
	err := s.EnsureBucket(context.Background())
	assert.ErrorContains(t, err, "does not exist")
}
