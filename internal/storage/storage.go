package storage

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
)

var ErrInvalidKey = errors.New("invalid storage key")

type FileInfo struct {
	// Dir groups related files, e.g. all frames of one sequence.
	Dir         string
	Filename    string
	ContentType string
	Size        int64
}

type File interface {
	io.ReadSeekCloser
	Stat() (fs.FileInfo, error)
}

// Storage keeps frame images and uploaded footage under slash-separated keys.
type Storage interface {
	SaveFile(r io.Reader, info FileInfo) (string, error)
	OpenFile(key string) (File, error)
	ReadFile(key string) ([]byte, error)
	DeleteFile(key string) error
	DeleteDir(dir string) error
	Path(key string) (string, error)
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
}

// IsImage reports whether the filename has an image extension the classifier
// accepts.
func IsImage(filename string) bool {
	return imageExtensions[strings.ToLower(path.Ext(filename))]
}
