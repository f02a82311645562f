package sink

import (
	"bytes"
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/periospot/implantgen/internal/config"
	"github.com/periospot/implantgen/pkg/errors"
)

// S3 writes objects to one bucket under an optional key prefix. Works with
// AWS S3 and S3-compatible servers such as MinIO.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Option adjusts the S3 client.
type S3Option func(*s3.Options)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(c *http.Client) S3Option {
	return func(o *s3.Options) {
		o.HTTPClient = c
	}
}

// NewS3 builds an S3 store. Empty credentials fall back to the default AWS
// chain (environment, shared config, instance role).
func NewS3(ctx context.Context, cfg config.S3Config, opts ...S3Option) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.NewConfigError("sink.s3", "bucket", "required", cfg.Bucket)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// MinIO and older gateways reject streaming trailer checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		for _, opt := range opts {
			opt(o)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (s *S3) Driver() string { return DriverS3 }

func (s *S3) Location() string {
	if s.prefix == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + s.prefix
}

func (s *S3) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// WriteAll uploads each object in turn. If an upload fails, the objects
// already uploaded in this batch are deleted before the error is returned.
func (s *S3) WriteAll(ctx context.Context, objects []Object, meta map[string]string) ([]Info, error) {
	if err := validateKeys(objects); err != nil {
		return nil, err
	}

	var written []string
	rollback := func() {
		for _, key := range written {
			_, _ = s.client.DeleteObject(context.WithoutCancel(ctx), &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(key),
			})
		}
	}

	infos := make([]Info, 0, len(objects))
	for _, o := range objects {
		key := s.objectKey(o.Key)
		input := &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(o.Body),
			ContentLength: aws.Int64(int64(len(o.Body))),
		}
		if o.ContentType != "" {
			input.ContentType = aws.String(o.ContentType)
		}
		if len(meta) > 0 {
			input.Metadata = meta
		}
		out, err := s.client.PutObject(ctx, input)
		if err != nil {
			rollback()
			return nil, errors.Wrapf(err, "put s3://%s/%s", s.bucket, key)
		}
		written = append(written, key)
		infos = append(infos, Info{
			Key:  key,
			Size: int64(len(o.Body)),
			ETag: strings.Trim(aws.ToString(out.ETag), "\""),
		})
	}
	return infos, nil
}
