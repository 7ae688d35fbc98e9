package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpload struct {
	key       string
	parts     map[int32][]byte
	initiated time.Time
}

// fakeS3 keeps objects in memory and implements the calls S3Store makes.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified map[string]time.Time
	uploads  map[string]*fakeUpload
	nextID   int
	puts     int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:  map[string][]byte{},
		modified: map[string]time.Time{},
		uploads:  map[string]*fakeUpload{},
	}
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.objects[aws.ToString(in.Key)] = data
	f.modified[aws.ToString(in.Key)] = time.Now()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data)), ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = &fakeUpload{key: aws.ToString(in.Key), parts: map[int32][]byte{}, initiated: time.Now()}
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *fakeS3) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[aws.ToString(in.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	up.parts[aws.ToInt32(in.PartNumber)] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", aws.ToInt32(in.PartNumber)))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[aws.ToString(in.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	var buf bytes.Buffer
	for _, part := range in.MultipartUpload.Parts {
		buf.Write(up.parts[aws.ToInt32(part.PartNumber)])
	}
	f.objects[up.key] = buf.Bytes()
	f.modified[up.key] = time.Now()
	delete(f.uploads, aws.ToString(in.UploadId))
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, aws.ToString(in.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) ListMultipartUploads(ctx context.Context, in *s3.ListMultipartUploadsInput, _ ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListMultipartUploadsOutput{IsTruncated: aws.Bool(false)}
	for id, up := range f.uploads {
		if !strings.HasPrefix(up.key, aws.ToString(in.Prefix)) {
			continue
		}
		out.Uploads = append(out.Uploads, types.MultipartUpload{
			Key:       aws.String(up.key),
			UploadId:  aws.String(id),
			Initiated: aws.Time(up.initiated),
		})
	}
	return out, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, key := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(f.objects[key]))),
			LastModified: aws.Time(f.modified[key]),
		})
	}
	return out, nil
}

func newTestS3Store(t *testing.T, fake *fakeS3) *S3Store {
	t.Helper()
	store, err := NewS3Store(context.Background(), S3StoreConfig{
		Client:   fake,
		Bucket:   "files",
		Prefix:   "fstore",
		PartSize: MinPartSize,
	})
	require.NoError(t, err)
	return store
}

func TestS3StoreSmallPayloadCommitsWithPutObject(t *testing.T) {
	fake := newFakeS3()
	store := newTestS3Store(t, fake)
	ctx := context.Background()

	staged, err := store.Stage(ctx, strings.NewReader("tiny"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), staged.SizeBytes)
	assert.Empty(t, fake.objects, "nothing is written before commit")

	key, err := staged.Commit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.puts)
	assert.Contains(t, fake.objects, "fstore/"+key)

	size, err := store.Size(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "tiny", string(data))
}

func TestS3StoreEmptyPayload(t *testing.T) {
	fake := newFakeS3()
	store := newTestS3Store(t, fake)

	res, err := Put(context.Background(), store, bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.SizeBytes)
	sum := sha256.Sum256(nil)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.SHA256)
	exists, err := store.Exists(context.Background(), res.BlobKey)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestS3StoreLargePayloadUsesMultipart(t *testing.T) {
	fake := newFakeS3()
	store := newTestS3Store(t, fake)
	ctx := context.Background()

	payload := bytes.Repeat([]byte("0123456789abcdef"), int(MinPartSize*2/16)+1000)
	staged, err := store.Stage(ctx, bytes.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, fake.uploads, 1)
	for _, up := range fake.uploads {
		assert.Len(t, up.parts, 3)
	}
	sum := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(sum[:]), staged.SHA256)
	assert.Equal(t, int64(len(payload)), staged.SizeBytes)

	key, err := staged.Commit(ctx)
	require.NoError(t, err)
	assert.Empty(t, fake.uploads)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, data))
}

func TestS3StoreAbortDropsMultipartUpload(t *testing.T) {
	fake := newFakeS3()
	store := newTestS3Store(t, fake)
	ctx := context.Background()

	payload := bytes.Repeat([]byte{7}, int(MinPartSize)+1)
	staged, err := store.Stage(ctx, bytes.NewReader(payload))
	require.NoError(t, err)
	require.NoError(t, staged.Abort(ctx))
	assert.Empty(t, fake.uploads)
	assert.Empty(t, fake.objects)
}

func TestS3StoreMissingKey(t *testing.T) {
	store := newTestS3Store(t, newFakeS3())
	ctx := context.Background()

	_, err := store.Open(ctx, "blobs/missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Size(ctx, "blobs/missing")
	assert.ErrorIs(t, err, ErrNotFound)
	exists, err := store.Exists(ctx, "blobs/missing")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, store.Delete(ctx, "blobs/missing"))
	_, err = store.Open(ctx, "../escape")
	assert.Error(t, err)
}

func TestS3StoreWalkAndSweepStaging(t *testing.T) {
	fake := newFakeS3()
	store := newTestS3Store(t, fake)
	ctx := context.Background()

	res, err := Put(ctx, store, strings.NewReader("kept"))
	require.NoError(t, err)

	var seen []BlobInfo
	require.NoError(t, store.Walk(ctx, func(info BlobInfo) error {
		seen = append(seen, info)
		return nil
	}))
	require.Len(t, seen, 1)
	assert.Equal(t, res.BlobKey, seen[0].Key)
	assert.Equal(t, int64(4), seen[0].SizeBytes)

	_, err = store.Stage(ctx, bytes.NewReader(bytes.Repeat([]byte{1}, int(MinPartSize)+1)))
	require.NoError(t, err)
	for _, up := range fake.uploads {
		up.initiated = time.Now().Add(-48 * time.Hour)
	}
	aborted, err := store.SweepStaging(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, aborted)
	assert.Empty(t, fake.uploads)
}

func TestNewS3StoreValidatesConfig(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3StoreConfig{Client: newFakeS3(), Bucket: "b", PartSize: 1024})
	assert.Error(t, err)
	_, err = NewS3Store(context.Background(), S3StoreConfig{Client: newFakeS3()})
	assert.Error(t, err)
	_, err = NewS3Store(context.Background(), S3StoreConfig{Bucket: "b"})
	assert.Error(t, err)
}
