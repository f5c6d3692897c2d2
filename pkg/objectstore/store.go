// Package objectstore adapts the S3-compatible multipart upload API
// (prepare/upload-part/combine/download) for the upload coordinator and
// finalizer.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config configures the object-store client. Endpoint/ForcePathStyle let it
// target a MinIO instance instead of AWS S3.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	ForcePathStyle  bool
}

// Store is a thin multipart-upload adapter over an S3-compatible client.
type Store struct {
	client *s3.Client
}

// NewFromConfig builds an S3 client from cfg, pointing at a custom endpoint
// when one is given (MinIO) or AWS's defaults otherwise.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			staticCredentials{accessKeyID: cfg.AccessKeyID, secretAccessKey: cfg.SecretAccessKey}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		endpoint := fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(endpoint) })
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &Store{client: s3.NewFromConfig(awsCfg, s3Opts...)}, nil
}

// PreparedUpload is the handle returned by PrepareMultipartUpload; the
// upload coordinator persists UploadID in the job record so later chunk
// uploads and the final combine can reference it.
type PreparedUpload struct {
	Bucket     string
	ObjectPath string
	UploadID   string
}

// PrepareMultipartUpload initiates a multipart upload under bucket/objectPath.
func (s *Store) PrepareMultipartUpload(ctx context.Context, bucket, objectPath string) (*PreparedUpload, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: create multipart upload %s/%s: %w", bucket, objectPath, err)
	}
	return &PreparedUpload{Bucket: bucket, ObjectPath: objectPath, UploadID: aws.ToString(out.UploadId)}, nil
}

// UploadedPart is the object-store acknowledgement for a single chunk,
// carried in the part ledger alongside the caller-supplied size.
type UploadedPart struct {
	PartNumber int32
	ETag       string
}

// UploadPart uploads a single chunk, returning the ETag the combine step
// must echo back.
func (s *Store) UploadPart(ctx context.Context, bucket, objectPath, uploadID string, partNumber int32, body io.Reader) (*UploadedPart, error) {
	out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(objectPath),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       body,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: upload part %d of %s: %w", partNumber, objectPath, err)
	}
	return &UploadedPart{PartNumber: partNumber, ETag: aws.ToString(out.ETag)}, nil
}

// CompletedObject is what CombineParts returns once the multipart upload
// has been finalized server-side.
type CompletedObject struct {
	Bucket     string
	ObjectPath string
	VersionID  string
}

// CombineParts completes the multipart upload, assembling parts in
// ascending PartNumber order regardless of the order they were handed in.
func (s *Store) CombineParts(ctx context.Context, bucket, objectPath, uploadID string, parts []UploadedPart) (*CompletedObject, error) {
	sorted := sortedByPartNumber(parts)

	completed := make([]types.CompletedPart, len(sorted))
	for i, p := range sorted {
		completed[i] = types.CompletedPart{PartNumber: aws.Int32(p.PartNumber), ETag: aws.String(p.ETag)}
	}

	out, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(objectPath),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: combine %s: %w", objectPath, err)
	}
	return &CompletedObject{Bucket: bucket, ObjectPath: objectPath, VersionID: aws.ToString(out.VersionId)}, nil
}

// AbortMultipartUpload discards an in-progress multipart upload, releasing
// the parts already stored for it.
func (s *Store) AbortMultipartUpload(ctx context.Context, bucket, objectPath, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(objectPath),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return fmt.Errorf("objectstore: abort %s: %w", objectPath, err)
	}
	return nil
}

// DownloadObject fetches a complete object, used by the finalizer to
// generate a zip-archive preview after combine.
func (s *Store) DownloadObject(ctx context.Context, bucket, objectPath string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: download %s: %w", objectPath, err)
	}
	return out.Body, nil
}

// sortedByPartNumber returns a copy of parts ordered ascending by
// PartNumber, the order S3 requires for CompleteMultipartUpload regardless
// of the order chunks were uploaded in.
func sortedByPartNumber(parts []UploadedPart) []UploadedPart {
	sorted := make([]UploadedPart, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })
	return sorted
}

// IsNotFound reports whether err represents a missing-object error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "NoSuchKey") || strings.Contains(s, "NotFound")
}
