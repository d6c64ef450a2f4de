package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

func readFile(_ context.Context, path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("loader: resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, mapNotExist(abs, err)
	}
	return data, nil
}

func fsFetcher(files fs.FS) fetcher {
	if files == nil {
		return func(context.Context, string) ([]byte, error) {
			return nil, ErrNoFileSystem
		}
	}
	return func(_ context.Context, name string) ([]byte, error) {
		data, err := fs.ReadFile(files, filepath.ToSlash(name))
		if err != nil {
			return nil, mapNotExist(name, err)
		}
		return data, nil
	}
}
