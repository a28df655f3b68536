package convert

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrUnsupportedFormat is returned when an input path's extension names
// no recognized container format.
var ErrUnsupportedFormat = errors.New("unsupported file format")

func loadTensorMap(path string) (*TensorMap, error) {
	switch filepath.Ext(path) {
	case ".safetensors":
		return parseSafetensors(path)
	case ".pt", ".pth":
		return parseTorch(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}
