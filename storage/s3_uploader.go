package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Uploader.
type S3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies a local tree of the lake to S3, keeping relative paths.
type S3Uploader struct {
	client S3API
	bucket string
	prefix string
}

// S3UploaderOption configures an S3Uploader.
type S3UploaderOption func(*S3Uploader)

// WithS3Client sets a custom S3 client (useful for testing).
func WithS3Client(c S3API) S3UploaderOption {
	return func(u *S3Uploader) { u.client = c }
}

// NewS3Uploader creates an uploader for bucket. Keys are prefixed with prefix.
func NewS3Uploader(ctx context.Context, bucket, prefix string, opts ...S3UploaderOption) (*S3Uploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name required")
	}
	u := &S3Uploader{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
	for _, o := range opts {
		o(u)
	}
	if u.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		u.client = s3.NewFromConfig(cfg)
	}
	return u, nil
}

// UploadTree uploads every regular file under root/dir. The object key is the
// path relative to root, so the lake layout is preserved. Hidden temp files
// are skipped. Returns the number of objects written.
func (u *S3Uploader) UploadTree(ctx context.Context, root, dir string) (int, error) {
	start := filepath.Join(root, dir)
	uploaded := 0

	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != start {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if err := u.put(ctx, path, u.key(rel)); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, fmt.Errorf("s3: upload %s: %w", start, err)
	}
	return uploaded, nil
}

func (u *S3Uploader) key(rel string) string {
	k := filepath.ToSlash(rel)
	if u.prefix == "" {
		return k
	}
	return u.prefix + "/" + k
}

func (u *S3Uploader) put(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	contentType := "application/octet-stream"
	switch filepath.Ext(path) {
	case ".json":
		contentType = "application/json"
	case ".parquet":
		contentType = "application/vnd.apache.parquet"
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("putting %s to S3: %w", key, err)
	}
	return nil
}
