package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type putCall struct {
	bucket      string
	key         string
	contentType string
	data        []byte
}

type fakePutter struct {
	mu    sync.Mutex
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, putCall{bucket: bucketName, key: objectName, contentType: opts.ContentType, data: data})
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newImageServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(body)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		case "/broken.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("not really a png"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestStore(putter ObjectPutter, maxBytes int64) *MinioStore {
	log, _ := test.NewNullLogger()
	store := NewMinioStore(putter, Config{
		Endpoint:  "minio:9000",
		PublicURL: "https://cdn.example.com/",
		MaxBytes:  maxBytes,
	}, logrus.NewEntry(log))
	store.now = func() time.Time { return time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) }
	return store
}

func TestFetchAndStoreReencodesAsJPEG(t *testing.T) {
	srv := newImageServer(t, pngBytes(t))
	putter := &fakePutter{}
	store := newTestStore(putter, 0)

	url, err := store.FetchAndStore(context.Background(), srv.URL+"/ok.png", "catalog")
	require.NoError(t, err)

	require.Len(t, putter.calls, 1)
	call := putter.calls[0]
	assert.Equal(t, "catalog", call.bucket)
	assert.Equal(t, "image/jpeg", call.contentType)
	assert.True(t, strings.HasPrefix(call.key, "products/2026/03/"))
	assert.True(t, strings.HasSuffix(call.key, ".jpg"))
	assert.Equal(t, "https://cdn.example.com/catalog/"+call.key, url)

	_, err = jpeg.Decode(bytes.NewReader(call.data))
	assert.NoError(t, err)
}

func TestFetchAndStoreRejectsBadSources(t *testing.T) {
	srv := newImageServer(t, pngBytes(t))

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "not found", path: "/missing.png"},
		{name: "non-image content", path: "/page.html", wantErr: ErrNotAnImage},
		{name: "undecodable image", path: "/broken.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			putter := &fakePutter{}
			store := newTestStore(putter, 0)

			url, err := store.FetchAndStore(context.Background(), srv.URL+tt.path, "catalog")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, url)
			assert.Empty(t, putter.calls)
		})
	}
}

func TestFetchAndStoreEnforcesSizeLimit(t *testing.T) {
	body := pngBytes(t)
	srv := newImageServer(t, body)
	store := newTestStore(&fakePutter{}, int64(len(body)-1))

	_, err := store.FetchAndStore(context.Background(), srv.URL+"/ok.png", "catalog")
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestFetchAndStoreRejectsOversizedDimensions(t *testing.T) {
	// a flat 2000x2000 image compresses to a few KB but decodes to 4 MB
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2000, 2000))))
	srv := newImageServer(t, buf.Bytes())

	putter := &fakePutter{}
	log, _ := test.NewNullLogger()
	store := NewMinioStore(putter, Config{
		Endpoint:  "minio:9000",
		MaxBytes:  1 << 20,
		MaxPixels: 1_000_000,
	}, logrus.NewEntry(log))

	_, err := store.FetchAndStore(context.Background(), srv.URL+"/ok.png", "catalog")
	require.ErrorIs(t, err, ErrTooManyPixels)
	assert.Contains(t, err.Error(), "2000x2000")
	assert.Empty(t, putter.calls)

	assert.Equal(t, int64(DefaultMaxPixels), NewMinioStore(putter, Config{Endpoint: "minio:9000"}, nil).maxPixels)
}

func TestFetchAndStoreSurfacesUploadErrors(t *testing.T) {
	srv := newImageServer(t, pngBytes(t))
	store := newTestStore(&fakePutter{err: assert.AnError}, 0)

	_, err := store.FetchAndStore(context.Background(), srv.URL+"/ok.png", "catalog")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPublicURLDefaultsToEndpoint(t *testing.T) {
	store := NewMinioStore(&fakePutter{}, Config{Endpoint: "minio:9000", UseSSL: true}, nil)
	assert.Equal(t, "https://minio:9000", store.publicURL)
}
