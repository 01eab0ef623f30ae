package mediasvc

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/student"
)

// CloudinaryService uploads images and hands back their secure URLs.
type CloudinaryService struct {
	cld    *cloudinary.Cloudinary
	folder string
}

var _ student.MediaStorage = (*CloudinaryService)(nil)

func NewCloudinaryService(conf *core.Config) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(conf.Cloudinary.CloudName, conf.Cloudinary.ApiKey, conf.Cloudinary.ApiSecret)
	if err != nil {
		return nil, errors.Wrap(err, "creating cloudinary client")
	}
	return &CloudinaryService{cld: cld, folder: conf.Cloudinary.Folder}, nil
}

func (svc *CloudinaryService) UploadImage(ctx context.Context, r io.Reader, filename string) (string, error) {
	res, err := svc.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:   svc.folder,
		PublicID: publicID(filename),
	})
	if err != nil {
		return "", errors.Wrap(err, "uploading image")
	}
	if res.SecureURL == "" {
		return "", errors.Errorf("upload failed: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// publicID keeps the original base name but stays collision-free.
func publicID(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." {
		base = "upload"
	}
	return fmt.Sprintf("%s-%s", base, strings.Split(uuid.New().String(), "-")[0])
}
