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
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

const (
	DefaultFetchTimeout  = 15 * time.Second
	DefaultMaxImageBytes = 10 << 20
	DefaultMaxPixels     = 40_000_000
	jpegQuality          = 85
)

var (
	ErrNotAnImage    = errors.New("remote content is not an image")
	ErrImageTooLarge = errors.New("image exceeds size limit")
	ErrTooManyPixels = errors.New("image exceeds pixel limit")
)

// ObjectPutter is the subset of the MinIO client used for uploads
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Config for the object store
type Config struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	PublicURL    string
	FetchTimeout time.Duration
	MaxBytes     int64
	// MaxPixels bounds width*height, checked from the header before decoding
	MaxPixels int64
}

// MinioStore downloads remote images, normalizes them to JPEG and stores
// them in MinIO. It implements importer.BlobStore.
type MinioStore struct {
	objects   ObjectPutter
	http      *http.Client
	publicURL string
	maxBytes  int64
	maxPixels int64
	now       func() time.Time
	logger    *logrus.Entry
}

// NewMinioClient connects to the configured MinIO endpoint
func NewMinioClient(cfg Config) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

// EnsureBucket creates the bucket when it does not exist yet
func EnsureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func NewMinioStore(objects ObjectPutter, cfg Config, logger *logrus.Entry) *MinioStore {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxImageBytes
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	if cfg.PublicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		cfg.PublicURL = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MinioStore{
		objects:   objects,
		http:      &http.Client{Timeout: cfg.FetchTimeout},
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		maxBytes:  cfg.MaxBytes,
		maxPixels: cfg.MaxPixels,
		now:       time.Now,
		logger:    logger,
	}
}

// FetchAndStore downloads url, re-encodes it and returns the durable URL
func (s *MinioStore) FetchAndStore(ctx context.Context, url, bucket string) (string, error) {
	data, err := s.fetch(ctx, url)
	if err != nil {
		return "", err
	}

	encoded, err := s.normalize(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", url, err)
	}

	key := s.objectKey()
	_, err = s.objects.PutObject(ctx, bucket, key, bytes.NewReader(encoded), int64(len(encoded)), minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", url, err)
	}

	s.logger.WithFields(logrus.Fields{
		"source": url,
		"key":    key,
		"bytes":  len(encoded),
	}).Debug("Image stored")

	return fmt.Sprintf("%s/%s/%s", s.publicURL, bucket, key), nil
}

func (s *MinioStore) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid image url %q: %w", url, err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return nil, fmt.Errorf("fetch %s: %w (content type %q)", url, ErrNotAnImage, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("fetch %s: %w", url, ErrImageTooLarge)
	}
	return data, nil
}

// objectKey lays objects out by upload month
func (s *MinioStore) objectKey() string {
	return fmt.Sprintf("products/%s/%s.jpg", s.now().UTC().Format("2006/01"), uuid.NewString())
}

// normalize decodes any supported format and re-encodes it as JPEG. The
// header is checked first so oversized dimensions are never allocated.
func (s *MinioStore) normalize(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > s.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
