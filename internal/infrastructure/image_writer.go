package infrastructure

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"jpeg-image-loader/internal/domain"
)

const DefaultJPEGQuality = 90

type JPEGWriter struct {
	logger  *zap.Logger
	quality int
}

func NewJPEGWriter(logger *zap.Logger, quality int) *JPEGWriter {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &JPEGWriter{logger: logger, quality: quality}
}

func (w *JPEGWriter) Encode(out io.Writer, record *domain.ImageRecord) error {
	if record == nil || record.Image == nil {
		return fmt.Errorf("encode: no image")
	}
	return imaging.Encode(out, record.Image, imaging.JPEG, imaging.JPEGQuality(w.quality))
}

func (w *JPEGWriter) Save(path string, record *domain.ImageRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := w.Encode(writer, record); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	w.logger.Info("Image saved", zap.String("path", path), zap.Int("width", record.Width), zap.Int("height", record.Height))
	return nil
}
