package infrastructure

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"jpeg-image-loader/internal/domain"
)

// JPEGDecoder decodes image files. Images larger than maxPixels are
// rejected with domain.ErrOutOfMemory before their pixels are read.
type JPEGDecoder struct {
	logger    *zap.Logger
	maxPixels int
}

func NewJPEGDecoder(logger *zap.Logger, maxPixels int) *JPEGDecoder {
	return &JPEGDecoder{logger: logger, maxPixels: maxPixels}
}

func (d *JPEGDecoder) Decode(path string) (*domain.ImageRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &domain.DecodeError{Path: path, Err: err}
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, &domain.DecodeError{Path: path, Err: err}
	}
	if d.maxPixels > 0 && cfg.Width*cfg.Height > d.maxPixels {
		return nil, &domain.DecodeError{
			Path: path,
			Err:  fmt.Errorf("%w: %dx%d exceeds %d pixels", domain.ErrOutOfMemory, cfg.Width, cfg.Height, d.maxPixels),
		}
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, &domain.DecodeError{Path: path, Err: err}
	}

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &domain.DecodeError{Path: path, Err: err}
	}

	d.logger.Debug("Image decoded",
		zap.String("path", path),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height))
	return domain.NewImageRecord(path, img), nil
}
