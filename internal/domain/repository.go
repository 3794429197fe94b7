package domain

import "io"

// ImageDecoder decodes one image file. Failures are *DecodeError.
type ImageDecoder interface {
	Decode(path string) (*ImageRecord, error)
}

// ImageEncoder serialises a decoded image
type ImageEncoder interface {
	Encode(w io.Writer, record *ImageRecord) error
	Save(path string, record *ImageRecord) error
}

// DirectoryScanner lists candidate image files of a directory
type DirectoryScanner interface {
	ScanImages(dir string) ([]string, error)
}

// ConfigReader интерфейс для чтения конфигурации
type ConfigReader interface {
	ReadConfig(path string) (*Config, error)
}
