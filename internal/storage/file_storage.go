package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go-xray-inspector/pkg/validation"
)

// FileImageFetcher reads images from the local file system. With a root
// set, references resolve below it and may not escape it.
type FileImageFetcher struct {
	root string
}

// NewFileImageFetcher creates a local fetcher. An empty root allows any path.
func NewFileImageFetcher(root string) *FileImageFetcher {
	return &FileImageFetcher{root: root}
}

func (f *FileImageFetcher) FetchImage(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := f.resolve(ref)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	return DecodeReader(file)
}

func (f *FileImageFetcher) resolve(ref string) (string, error) {
	p := validation.FilePath(ref)
	if p == "" {
		return "", fmt.Errorf("empty file reference")
	}
	if f.root == "" {
		return filepath.FromSlash(p), nil
	}

	full := filepath.Join(f.root, filepath.FromSlash(strings.TrimPrefix(p, "/")))
	rel, err := filepath.Rel(f.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("reference %q escapes the image root", ref)
	}
	return full, nil
}
