package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// MaxBannerSize is the largest accepted banner upload.
const MaxBannerSize = 5 << 20

var (
	ErrEmptyBanner     = errors.New("banner image is empty")
	ErrBannerTooLarge  = fmt.Errorf("banner image exceeds %d bytes", MaxBannerSize)
	ErrUnsupportedType = errors.New("banner image must be jpeg, png, gif or webp")
	// ErrAssetIO marks storage failures; deleting an ad logs these and carries on.
	ErrAssetIO = errors.New("banner asset i/o failure")
)

// allowedTypes maps accepted MIME types to the extension used on disk.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Banner is a validated image ready to be stored.
type Banner struct {
	Data []byte
	MIME string
	Ext  string
}

// Store persists banner images and resolves them by reference.
type Store interface {
	Save(ctx context.Context, b *Banner) (ref string, err error)
	// Delete is idempotent; a missing asset is not an error.
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
}

// Inspect reads an upload and checks its size and sniffed content type.
// The declared content type of the upload is ignored.
func Inspect(r io.Reader) (*Banner, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBannerSize+1))
	if err != nil {
		return nil, fmt.Errorf("read banner: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyBanner
	}
	if len(data) > MaxBannerSize {
		return nil, ErrBannerTooLarge
	}

	mt := mimetype.Detect(data)
	for t, ext := range allowedTypes {
		if mt.Is(t) {
			return &Banner{Data: data, MIME: t, Ext: ext}, nil
		}
	}
	return nil, fmt.Errorf("%w: got %s", ErrUnsupportedType, mt.String())
}

// IsInvalid reports whether err rejects the upload itself rather than storage.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrEmptyBanner) || errors.Is(err, ErrBannerTooLarge) || errors.Is(err, ErrUnsupportedType)
}

func (b *Banner) reader() io.Reader {
	return bytes.NewReader(b.Data)
}
