package storage

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPutter struct {
	mock.Mock
	body []byte
}

func (m *MockPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if params.Body != nil {
		m.body, _ = io.ReadAll(params.Body)
	}
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, h/2, color.NRGBA{G: 160, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessImage(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape is scaled to 1200 wide", 2400, 1600, 1200, 800},
		{"portrait is scaled to 1200 high", 1000, 3000, 400, 1200},
		{"small image keeps its size", 640, 480, 640, 480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ProcessImage(pngOf(t, tt.w, tt.h))
			require.NoError(t, err)

			cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, cfg.Width)
			assert.Equal(t, tt.wantH, cfg.Height)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := ProcessImage([]byte("not an image"))
		assert.Error(t, err)
	})
}

func TestUploadImage(t *testing.T) {
	t.Run("stores a jpeg under products/", func(t *testing.T) {
		putter := &MockPutter{}
		putter.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			return *in.Bucket == "listings" &&
				strings.HasPrefix(*in.Key, "products/") &&
				strings.HasSuffix(*in.Key, ".jpg") &&
				*in.ContentType == "image/jpeg"
		})).Return(&s3.PutObjectOutput{}, nil)

		store := NewImageStore(putter, S3Config{Bucket: "listings", Endpoint: "http://minio:9000"})
		url, err := store.UploadImage(context.Background(), pngOf(t, 50, 50), "image/png")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "http://minio:9000/listings/products/"), url)

		_, err = jpeg.DecodeConfig(bytes.NewReader(putter.body))
		assert.NoError(t, err)
		putter.AssertExpectations(t)
	})

	t.Run("AWS URL when no endpoint", func(t *testing.T) {
		store := NewImageStore(&MockPutter{}, S3Config{Bucket: "listings", Region: "eu-west-1"})
		assert.Equal(t, "https://listings.s3.eu-west-1.amazonaws.com", store.baseURL)
	})

	t.Run("put failure", func(t *testing.T) {
		putter := &MockPutter{}
		putter.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

		store := NewImageStore(putter, S3Config{Bucket: "listings"})
		_, err := store.UploadImage(context.Background(), pngOf(t, 10, 10), "image/png")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access denied")
	})
}

func TestNewS3ImageStoreRequiresBucket(t *testing.T) {
	_, err := NewS3ImageStore(context.Background(), S3Config{Region: "us-east-1"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
