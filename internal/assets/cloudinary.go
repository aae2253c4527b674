package assets

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

// Cloudinary stores banners in a Cloudinary folder; references are secure URLs.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinary(cloudinaryURL, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, folder: folder}, nil
}

func (c *Cloudinary) Save(ctx context.Context, b *Banner) (string, error) {
	resp, err := c.cld.Upload.Upload(ctx, b.reader(), uploader.UploadParams{
		Folder:    c.folder,
		PublicID:  "banner-" + uuid.NewString(),
		Overwrite: api.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("%w: cloudinary upload: %w", ErrAssetIO, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("%w: cloudinary upload: %s", ErrAssetIO, resp.Error.Message)
	}
	return resp.SecureURL, nil
}

func (c *Cloudinary) Delete(ctx context.Context, ref string) error {
	publicID, err := PublicIDFromURL(ref)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAssetIO, err)
	}
	resp, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("%w: cloudinary destroy: %w", ErrAssetIO, err)
	}
	switch resp.Result {
	case "ok", "not found":
		return nil
	}
	return fmt.Errorf("%w: cloudinary destroy %s: %s", ErrAssetIO, publicID, resp.Result)
}

func (c *Cloudinary) Exists(ctx context.Context, ref string) (bool, error) {
	publicID, err := PublicIDFromURL(ref)
	if err != nil {
		return false, nil
	}
	resp, err := c.cld.Admin.Asset(ctx, admin.AssetParams{PublicID: publicID})
	if err != nil {
		return false, fmt.Errorf("%w: cloudinary asset: %w", ErrAssetIO, err)
	}
	return resp.Error.Message == "" && resp.PublicID != "", nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicIDFromURL extracts the public id from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1740815725/banners/banner-x.png
// which yields banners/banner-x.
func PublicIDFromURL(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid banner url: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part != "upload" {
			continue
		}
		rest := parts[i+1:]
		if len(rest) > 0 && versionSegment.MatchString(rest[0]) {
			rest = rest[1:]
		}
		if len(rest) == 0 {
			break
		}
		id := strings.Join(rest, "/")
		return strings.TrimSuffix(id, path.Ext(id)), nil
	}
	return "", fmt.Errorf("no public id in %q", ref)
}
