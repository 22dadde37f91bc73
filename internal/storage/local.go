// Package storage keeps uploaded product images. The local backend writes
// them under a directory served by the API at /uploads/.
package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("empty file")
)

// DefaultMaxBytes is used when the store is built with a non-positive limit.
const DefaultMaxBytes = 5 << 20

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

type Local struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
}

func NewLocal(dir, baseURL string, maxBytes int64) (*Local, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), MaxBytes: maxBytes}, nil
}

// Save writes r under a fresh uuid name and returns its public URL. The image
// type is sniffed from the content; name and contentType are not trusted.
func (l *Local) Save(ctx context.Context, _, _ string, r io.Reader) (string, error) {
	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return "", ErrEmpty
	}
	ct := sniff(head)
	ext, ok := extensions[ct]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}

	file := uuid.NewString() + ext
	tmp, err := os.CreateTemp(l.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	n, err := io.Copy(tmp, io.LimitReader(br, l.MaxBytes+1))
	if err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if n > l.MaxBytes {
		return "", fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, l.MaxBytes)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.Dir, file)); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return l.BaseURL + "/" + file, nil
}

// Handler serves stored files. Mount it with http.StripPrefix.
func (l *Local) Handler() http.Handler {
	return http.FileServer(noDirs{http.Dir(l.Dir)})
}

func sniff(head []byte) string {
	ct := http.DetectContentType(head)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

type noDirs struct{ fs http.FileSystem }

func (d noDirs) Open(name string) (http.File, error) {
	f, err := d.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil || st.IsDir() || strings.HasPrefix(st.Name(), ".") {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
