package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	err     error
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func TestS3_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := &S3{Client: fake, Bucket: "market", Prefix: "aggs", Ext: "parquet"}

	ok, err := s.Exists(ctx, testKey)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Read(ctx, testKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Write(ctx, testKey, []byte("payload")))
	assert.Contains(t, fake.objects, "market/aggs/"+testKey.String()+".parquet")

	ok, err = s.Exists(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, ok)

	b, err := s.Read(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), b)
	assert.Equal(t, "s3://market/aggs/"+testKey.String()+".parquet", s.Location(testKey))
}

func TestS3_ErrorsPropagate(t *testing.T) {
	boom := errors.New("access denied")
	s := &S3{Client: &fakeS3{objects: map[string][]byte{}, err: boom}, Bucket: "market", Ext: "parquet"}

	_, err := s.Exists(context.Background(), testKey)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.Write(context.Background(), testKey, []byte("x")), boom)
}
