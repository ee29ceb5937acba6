package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"hoard/internal/hoard"
)

// S3Mirror is an S3-backed implementation of the Mirror interface.
// Objects are laid out under the configured prefix:
//
//	<prefix>/content/<hash>              (content objects, keyed by SHA-256)
//	<prefix>/catalog/<installID>.db      (per-installation catalog snapshots)
//	<prefix>/catalog/<installID>.version
//
// Credentials come from the standard AWS credential chain (environment,
// shared config, instance roles).
type S3Mirror struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// S3Options configures an S3Mirror.
type S3Options struct {
	Name   string
	Bucket string
	Prefix string
	Region string

	// Optional static credentials; the default credential chain applies
	// when unset.
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Mirror creates a new S3 mirror for the given bucket, prefix and region.
func NewS3Mirror(ctx context.Context, opts S3Options) (*S3Mirror, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 mirror requires a bucket")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Mirror{
		name:     opts.Name,
		bucket:   opts.Bucket,
		prefix:   strings.Trim(opts.Prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (m *S3Mirror) key(parts ...string) string {
	if m.prefix == "" {
		return strings.Join(parts, "/")
	}
	return m.prefix + "/" + strings.Join(parts, "/")
}

// PutContent stores content identified by its hash. Re-uploading an existing
// hash overwrites it with identical bytes, so the operation stays idempotent.
func (m *S3Mirror) PutContent(hash string, r io.Reader, size int64) error {
	ctx := context.Background()

	// Content objects are immutable; skip the upload when one exists.
	exists, err := m.HasContent(hash)
	if err != nil {
		return err
	}
	if exists {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	// The uploader streams multipart for large media files.
	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key("content", hash)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading content %s: %w", hash, err)
	}
	return nil
}

// GetContent retrieves content by hash and writes it to w.
func (m *S3Mirror) GetContent(hash string, w io.Writer) error {
	return m.getObject(m.key("content", hash), w, fmt.Sprintf("content not found: %s", hash))
}

// HasContent reports whether content with the given hash is mirrored.
func (m *S3Mirror) HasContent(hash string) (bool, error) {
	_, err := m.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key("content", hash)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking content %s: %w", hash, err)
	}
	return true, nil
}

// PutCatalog stores a catalog snapshot for an installation with a version marker.
func (m *S3Mirror) PutCatalog(installID string, r io.Reader, size int64, version int64) error {
	ctx := context.Background()

	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key("catalog", installID+".db")),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("uploading catalog: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key("catalog", installID+".version")),
		Body:   strings.NewReader(strconv.FormatInt(version, 10)),
	})
	if err != nil {
		return fmt.Errorf("uploading catalog version: %w", err)
	}
	return nil
}

// GetCatalog retrieves the catalog snapshot for an installation and writes it to w.
func (m *S3Mirror) GetCatalog(installID string, w io.Writer) error {
	return m.getObject(m.key("catalog", installID+".db"), w,
		fmt.Sprintf("catalog not found for installation: %s", installID))
}

// CatalogVersion returns the catalog version for an installation.
// Returns 0 if no version object exists.
func (m *S3Mirror) CatalogVersion(installID string) (int64, error) {
	var buf strings.Builder
	err := m.getObject(m.key("catalog", installID+".version"), &buf, "")
	if err != nil {
		if isNoSuchKey(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading catalog version: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(buf.String()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies the bucket is reachable with the current credentials.
func (m *S3Mirror) ValidateSetup() error {
	_, err := m.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(m.bucket),
	})
	if err != nil {
		return fmt.Errorf("mirror bucket %s not accessible: %w", m.bucket, err)
	}
	return nil
}

func (m *S3Mirror) getObject(key string, w io.Writer, notFoundMsg string) error {
	out, err := m.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) && notFoundMsg != "" {
			return fmt.Errorf("%s", notFoundMsg)
		}
		return fmt.Errorf("fetching %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

// Compile-time check that S3Mirror implements hoard.Mirror interface
var _ hoard.Mirror = (*S3Mirror)(nil)
