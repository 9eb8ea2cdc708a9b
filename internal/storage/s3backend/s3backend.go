// Package s3backend implements storage.Backend on top of Amazon S3 or an
// S3-compatible object store, as an alternative to localbackend for
// deployments that want the storage tier off local disk.
package s3backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/storage"
)

// Backend stores each served path as one S3 object, keyed by path with
// an optional prefix. There is no multipart/incremental path: the
// coordination protocol only ever transfers whole files, so every write
// is a single PutObject.
type Backend struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

var _ storage.Backend = (*Backend)(nil)

// Config configures a Backend.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	KeyPrefix       string
	ForcePathStyle  bool
}

// NewClient builds an S3 client from static configuration, the same
// shape used to build clients from YAML-sourced settings.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, dfserr.NewInternalError("load aws config: " + err.Error())
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return client, nil
}

// New creates a Backend against an already-constructed S3 client.
func New(client *s3.Client, cfg Config) (*Backend, error) {
	if cfg.Bucket == "" {
		return nil, dfserr.NewBadRequestError("bucket is required")
	}
	return &Backend{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}, nil
}

func (b *Backend) key(path string) string {
	return b.keyPrefix + strings.TrimPrefix(path, "/")
}

func (b *Backend) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, dfserr.NewNotFoundError(path)
		}
		return nil, dfserr.NewTransportError(err.Error())
	}
	return out.Body, nil
}

func (b *Backend) Stat(ctx context.Context, path string) (storage.Info, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil {
		if isNotFound(err) {
			return storage.Info{}, dfserr.NewNotFoundError(path)
		}
		return storage.Info{}, dfserr.NewTransportError(err.Error())
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	modified := time.Time{}
	if out.LastModified != nil {
		modified = *out.LastModified
	}
	return storage.Info{Size: size, LastModified: modified}, nil
}

// Write uploads data as path's complete content via a single PutObject.
// It reads data fully into memory first, since a non-multipart PutObject
// needs a seekable, length-known body.
func (b *Backend) Write(ctx context.Context, path string, data io.Reader) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return dfserr.NewInternalError("buffer upload: " + err.Error())
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
		Body:   bytes.NewReader(buf),
	})
	if err != nil {
		return dfserr.NewTransportError(err.Error())
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, path string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(path)),
	})
	if err != nil && !isNotFound(err) {
		return dfserr.NewTransportError(err.Error())
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, path string) (bool, error) {
	_, err := b.Stat(ctx, path)
	if err != nil {
		if dfserr.Is(err, dfserr.NotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isNotFound(err error) bool {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}
