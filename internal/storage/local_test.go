package storage

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	webpHeader = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
)

func newTestStore(t *testing.T, max int64) *Local {
	t.Helper()
	l, err := NewLocal(filepath.Join(t.TempDir(), "uploads"), "/uploads/", max)
	require.NoError(t, err)
	return l
}

func TestSaveImages(t *testing.T) {
	l := newTestStore(t, 1024)
	cases := map[string]struct {
		body []byte
		ext  string
	}{
		"png":  {pngHeader, ".png"},
		"jpeg": {jpegHeader, ".jpg"},
		"webp": {webpHeader, ".webp"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			url, err := l.Save(context.Background(), "photo.bin", "application/octet-stream", bytes.NewReader(tc.body))
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(url, "/uploads/"), url)
			assert.Equal(t, tc.ext, path.Ext(url))

			b, err := os.ReadFile(filepath.Join(l.Dir, path.Base(url)))
			require.NoError(t, err)
			assert.Equal(t, tc.body, b)
		})
	}
}

func TestSaveRejects(t *testing.T) {
	l := newTestStore(t, 32)
	ctx := context.Background()

	_, err := l.Save(ctx, "x.png", "image/png", strings.NewReader("<html><body>hi</body></html>"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = l.Save(ctx, "x.png", "image/png", bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmpty)

	big := append(append([]byte{}, pngHeader...), make([]byte, 64)...)
	_, err = l.Save(ctx, "x.png", "image/png", bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(l.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads leave no files behind")
}

func TestNewLocalDefaultLimit(t *testing.T) {
	l := newTestStore(t, 0)
	assert.Equal(t, int64(DefaultMaxBytes), l.MaxBytes)
	assert.Equal(t, "/uploads", l.BaseURL)
}

func TestHandler(t *testing.T) {
	l := newTestStore(t, 1024)
	url, err := l.Save(context.Background(), "a.png", "image/png", bytes.NewReader(pngHeader))
	require.NoError(t, err)

	srv := http.StripPrefix("/uploads", l.Handler())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
