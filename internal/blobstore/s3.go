package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

const (
	// MinPartSize is the smallest multipart part S3 accepts (except the last).
	MinPartSize int64 = 5 * 1024 * 1024
	// DefaultPartSize bounds the memory one upload holds at a time.
	DefaultPartSize int64 = 10 * 1024 * 1024

	maxPartSize  int64 = 5 * 1024 * 1024 * 1024
	maxPartCount       = 10000
	s3ObjectsDir       = "blobs/"
)

// S3API is the subset of the S3 client the store calls.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	ListMultipartUploads(ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error)
	s3.ListObjectsV2APIClient
}

// S3ClientConfig describes how to reach an S3-compatible endpoint.
type S3ClientConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	MaxAttempts     int
}

// NewS3Client builds an SDK client. A custom endpoint implies path-style
// addressing (MinIO, Localstack and friends).
func NewS3Client(ctx context.Context, cfg S3ClientConfig) (*s3.Client, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("s3 region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.MaxAttempts > 0 {
		attempts := cfg.MaxAttempts
		opts = append(opts, awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = attempts
			})
		}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3StoreConfig configures an S3Store.
type S3StoreConfig struct {
	Client   S3API
	Bucket   string
	Prefix   string
	PartSize int64
}

// S3Store keeps blobs as objects in one bucket. Uploads stream through a
// single part-sized buffer: small payloads become one PutObject on commit,
// larger ones a multipart upload completed on commit.
type S3Store struct {
	client   S3API
	bucket   string
	prefix   string
	partSize int64
}

// NewS3Store validates cfg and verifies bucket access.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	if partSize < MinPartSize || partSize > maxPartSize {
		return nil, fmt.Errorf("s3 part size must be between %d and %d bytes, got %d", MinPartSize, maxPartSize, partSize)
	}
	prefix := strings.TrimPrefix(strings.TrimSpace(cfg.Prefix), "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	if _, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Store{client: cfg.Client, bucket: cfg.Bucket, prefix: prefix, partSize: partSize}, nil
}

// Stage reads r one part at a time, hashing as it goes.
func (s *S3Store) Stage(ctx context.Context, r io.Reader) (*Staged, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s3ObjectsDir + strings.ReplaceAll(uuid.NewString(), "-", "")
	objectKey := s.objectKey(key)
	h := sha256.New()
	buf := make([]byte, s.partSize)

	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	h.Write(buf[:n])

	if err != nil {
		// Whole payload fits in one part.
		body := buf[:n]
		commit := func(ctx context.Context) (string, error) {
			_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:        aws.String(s.bucket),
				Key:           aws.String(objectKey),
				Body:          bytes.NewReader(body),
				ContentLength: aws.Int64(int64(len(body))),
			})
			if err != nil {
				return "", fmt.Errorf("put object: %w", err)
			}
			return key, nil
		}
		abort := func(context.Context) error { return nil }
		return newStaged(hex.EncodeToString(h.Sum(nil)), int64(n), commit, abort), nil
	}

	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("create multipart upload: %w", err)
	}
	uploadID := aws.ToString(created.UploadId)
	abort := func(ctx context.Context) error {
		_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(objectKey),
			UploadId: aws.String(uploadID),
		})
		if err != nil {
			return fmt.Errorf("abort multipart upload: %w", err)
		}
		return nil
	}

	var parts []types.CompletedPart
	total := int64(n)
	chunk := buf[:n]
	for {
		if len(parts) >= maxPartCount {
			_ = abort(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("payload exceeds %d parts of %d bytes", maxPartCount, s.partSize)
		}
		partNumber := int32(len(parts) + 1)
		out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(objectKey),
			UploadId:      aws.String(uploadID),
			PartNumber:    aws.Int32(partNumber),
			Body:          bytes.NewReader(chunk),
			ContentLength: aws.Int64(int64(len(chunk))),
		})
		if err != nil {
			_ = abort(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("upload part %d: %w", partNumber, err)
		}
		parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(partNumber)})

		n, err = io.ReadFull(r, buf)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			_ = abort(context.WithoutCancel(ctx))
			return nil, err
		}
		if n == 0 {
			break
		}
		h.Write(buf[:n])
		total += int64(n)
		chunk = buf[:n]
	}

	commit := func(ctx context.Context) (string, error) {
		_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
			Bucket:          aws.String(s.bucket),
			Key:             aws.String(objectKey),
			UploadId:        aws.String(uploadID),
			MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
		})
		if err != nil {
			_ = abort(context.WithoutCancel(ctx))
			return "", fmt.Errorf("complete multipart upload: %w", err)
		}
		return key, nil
	}
	return newStaged(hex.EncodeToString(h.Sum(nil)), total, commit, abort), nil
}

// Open returns the object body for key.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.checkedKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("blob %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

// Delete removes key. S3 treats missing keys as success.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	objectKey, err := s.checkedKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}); err != nil && !isS3NotFound(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Size reports the object's content length.
func (s *S3Store) Size(ctx context.Context, key string) (int64, error) {
	objectKey, err := s.checkedKey(key)
	if err != nil {
		return 0, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return 0, fmt.Errorf("blob %s: %w", key, ErrNotFound)
		}
		return 0, fmt.Errorf("head object: %w", err)
	}
	if out.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", key)
	}
	return *out.ContentLength, nil
}

// Exists reports whether key has a committed object.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Size(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Walk lists every committed blob under the store prefix.
func (s *S3Store) Walk(ctx context.Context, fn func(BlobInfo) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(s3ObjectsDir)),
	})
	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			info := BlobInfo{
				Key:       strings.TrimPrefix(*obj.Key, s.prefix),
				SizeBytes: aws.ToInt64(obj.Size),
				ModTime:   aws.ToTime(obj.LastModified),
			}
			if err := fn(info); err != nil {
				return err
			}
		}
	}
	return nil
}

// SweepStaging aborts multipart uploads started before cutoff. Those are
// left behind when a process dies between Stage and Commit/Abort.
func (s *S3Store) SweepStaging(ctx context.Context, cutoff time.Time) (int, error) {
	input := &s3.ListMultipartUploadsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(s3ObjectsDir)),
	}
	aborted := 0
	for {
		out, err := s.client.ListMultipartUploads(ctx, input)
		if err != nil {
			return aborted, fmt.Errorf("list multipart uploads: %w", err)
		}
		for _, upload := range out.Uploads {
			if upload.Initiated == nil || !upload.Initiated.Before(cutoff) {
				continue
			}
			if _, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(s.bucket),
				Key:      upload.Key,
				UploadId: upload.UploadId,
			}); err != nil {
				return aborted, fmt.Errorf("abort multipart upload: %w", err)
			}
			aborted++
		}
		if !aws.ToBool(out.IsTruncated) {
			return aborted, nil
		}
		input.KeyMarker = out.NextKeyMarker
		input.UploadIdMarker = out.NextUploadIdMarker
	}
}

func (s *S3Store) objectKey(key string) string {
	return s.prefix + key
}

func (s *S3Store) checkedKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}
	if !strings.HasPrefix(key, s3ObjectsDir) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid blob key")
	}
	return s.objectKey(key), nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
