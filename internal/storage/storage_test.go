package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"profiles/1/a.jpg", "profiles/1/a.jpg", false},
		{"/profiles//1/./a.jpg", "profiles/1/a.jpg", false},
		{`docs\2\b.pdf`, "docs/2/b.pdf", false},
		{"", "", true},
		{"../etc/passwd", "", true},
		{"a/../../b", "", true},
	}
	for _, tt := range tests {
		got, err := cleanKey(tt.in)
		if tt.err {
			assert.ErrorIs(t, err, ErrInvalidKey, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStore(root, "/uploads/")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "profiles/7/p.jpg", strings.NewReader("img"), 3, "image/jpeg"))
	_, err = os.Stat(filepath.Join(root, "profiles", "7", "p.jpg"))
	require.NoError(t, err)

	rc, err := s.Open(ctx, "profiles/7/p.jpg")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "img", string(b))

	assert.Equal(t, "/uploads/profiles/7/p.jpg", s.URL("profiles/7/p.jpg"))
	assert.Equal(t, "", s.URL(""))

	require.NoError(t, s.Delete(ctx, "profiles/7/p.jpg"))
	require.NoError(t, s.Delete(ctx, "profiles/7/p.jpg"))
	_, err = s.Open(ctx, "profiles/7/p.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Put(ctx, "../x", strings.NewReader(""), 0, ""), ErrInvalidKey)
}

type fakeS3 struct {
	objects map[string][]byte
	lastCT  string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = b
	if in.ContentType != nil {
		f.lastCT = *in.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := &S3Store{client: fake, bucket: "bucket", baseURL: "http://minio:9000/bucket"}

	require.NoError(t, s.Put(ctx, "/docs/1/a.txt", strings.NewReader("hello"), 5, "text/plain"))
	assert.Equal(t, "text/plain", fake.lastCT)
	assert.Contains(t, fake.objects, "docs/1/a.txt")

	rc, err := s.Open(ctx, "docs/1/a.txt")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "hello", string(b))

	require.NoError(t, s.Delete(ctx, "docs/1/a.txt"))
	_, err = s.Open(ctx, "docs/1/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "http://minio:9000/bucket/docs/1/a.txt", s.URL("docs/1/a.txt"))
}

func TestNewS3StoreDefaultsBaseURL(t *testing.T) {
	s, err := NewS3Store(context.Background(), S3Config{
		Bucket: "b", Region: "eu-west-1", AccessKey: "k", SecretKey: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://b.s3.eu-west-1.amazonaws.com/x", s.URL("x"))

	s, err = NewS3Store(context.Background(), S3Config{
		Bucket: "b", Region: "us-east-1", Endpoint: "http://localhost:9000", AccessKey: "k", SecretKey: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/b/x", s.URL("x"))
}
