package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local keeps banners in a directory and serves them under urlPrefix.
type Local struct {
	dir       string
	urlPrefix string
}

func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create banner dir: %w", ErrAssetIO, err)
	}
	return &Local{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

func (l *Local) Save(_ context.Context, b *Banner) (string, error) {
	name := "banner-" + uuid.NewString() + b.Ext
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAssetIO, err)
	}
	if _, err := f.Write(b.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: %w", ErrAssetIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: %w", ErrAssetIO, err)
	}
	return l.urlPrefix + "/" + name, nil
}

// file maps a reference back to a path inside dir.
func (l *Local) file(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, l.urlPrefix+"/")
	if !ok || name == "" || name != path.Base(name) || name == ".." {
		return "", fmt.Errorf("%w: foreign banner reference %q", ErrAssetIO, ref)
	}
	return filepath.Join(l.dir, name), nil
}

func (l *Local) Delete(_ context.Context, ref string) error {
	p, err := l.file(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrAssetIO, err)
	}
	return nil
}

func (l *Local) Exists(_ context.Context, ref string) (bool, error) {
	p, err := l.file(ref)
	if err != nil {
		return false, nil
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", ErrAssetIO, err)
}

// URLPrefix is where Handler should be mounted.
func (l *Local) URLPrefix() string {
	return l.urlPrefix
}

// Handler serves stored banners; mount it at URLPrefix.
func (l *Local) Handler() http.Handler {
	return http.StripPrefix(l.urlPrefix, http.FileServer(http.Dir(l.dir)))
}
