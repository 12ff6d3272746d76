// Package storage uploads listing images to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"agribid-backend/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageDimension = 1200
	jpegQuality       = 80
)

var ErrNotConfigured = errors.New("storage: S3 bucket not configured")

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint selects an S3-compatible provider (MinIO, Wasabi, Supabase
	// Storage). Path-style addressing is used when it is set.
	Endpoint string
	// PublicBaseURL prefixes object keys in returned URLs. Defaults to
	// <Endpoint>/<Bucket> or the virtual-hosted AWS URL.
	PublicBaseURL string
}

// Putter is the part of *s3.Client the store uses.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3ImageStore struct {
	client  Putter
	bucket  string
	baseURL string
}

var _ domain.ImageStore = (*S3ImageStore)(nil)

// NewS3Client builds an S3 client with static credentials when they are set
// and the default AWS credential chain otherwise.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	}), nil
}

// NewS3ImageStore connects to the configured bucket.
func NewS3ImageStore(ctx context.Context, cfg S3Config) (*S3ImageStore, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}
	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewImageStore(client, cfg), nil
}

func NewImageStore(client Putter, cfg S3Config) *S3ImageStore {
	base := cfg.PublicBaseURL
	switch {
	case base != "":
	case cfg.Endpoint != "":
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3ImageStore{client: client, bucket: cfg.Bucket, baseURL: strings.TrimRight(base, "/")}
}

// UploadImage normalizes data to a JPEG no larger than MaxImageDimension on
// either side and stores it under products/<uuid>.jpg.
func (s *S3ImageStore) UploadImage(ctx context.Context, data []byte, contentType string) (string, error) {
	processed, err := ProcessImage(data)
	if err != nil {
		return "", err
	}

	key := "products/" + uuid.NewString() + ".jpg"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(processed),
		ContentType:  aws.String("image/jpeg"),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
		Metadata:     map[string]string{"original-content-type": contentType},
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

// ProcessImage decodes data, scales it down to fit MaxImageDimension and
// re-encodes it as JPEG. Smaller images keep their size.
func ProcessImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > MaxImageDimension || h > MaxImageDimension {
		if w >= h {
			h = h * MaxImageDimension / w
			w = MaxImageDimension
		} else {
			w = w * MaxImageDimension / h
			h = MaxImageDimension
		}
	}
	w, h = max(w, 1), max(h, 1)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
