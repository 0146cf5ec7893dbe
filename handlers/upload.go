package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apperrors "marketchat/errors"
)

// maxImageSize caps chat image attachments at 5 MiB.
const maxImageSize = 5 << 20

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// Uploader stores chat images on local disk and hands back the public URL
// that ends up in the message. Swapping disk for a CDN only touches this type.
type Uploader struct {
	dir     string
	baseURL string
	log     *slog.Logger
}

func NewUploader(dir, baseURL string, log *slog.Logger) (*Uploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Uploader{dir: dir, baseURL: baseURL, log: log}, nil
}

// Save sniffs the actual content type (the client-sent header is not
// trusted), writes the file under a unique name and returns its URL.
func (u *Uploader) Save(fh *multipart.FileHeader) (string, error) {
	if fh.Size > maxImageSize {
		return "", fmt.Errorf("%w: over %d bytes", apperrors.ErrInvalidImage, maxImageSize)
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", err
	}
	if !isAllowedImage(mtype) {
		return "", fmt.Errorf("%w: %s", apperrors.ErrInvalidImage, mtype.String())
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	name := uuid.NewString() + mtype.Extension()
	dst, err := os.Create(filepath.Join(u.dir, name))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}

	u.log.Debug("image stored", "file", name, "type", mtype.String(), "size", fh.Size)
	return u.baseURL + "/uploads/chat/" + name, nil
}

func isAllowedImage(mtype *mimetype.MIME) bool {
	for _, allowed := range allowedImageTypes {
		if mtype.Is(allowed) {
			return true
		}
	}
	return false
}
