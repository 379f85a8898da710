package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps objects on the local filesystem.
type FileStore struct{}

func (FileStore) path(uri string) (string, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	if loc.Scheme != SchemeFile {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, loc.Scheme)
	}
	return loc.Key, nil
}

func (s FileStore) Put(_ context.Context, uri string, body io.Reader) error {
	target, err := s.path(uri)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}

	tmp := target + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}

func (s FileStore) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	target, err := s.path(uri)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", target, err)
	}
	return file, nil
}

func (s FileStore) Exists(_ context.Context, uri string) (bool, error) {
	target, err := s.path(uri)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", target, err)
	}
	return true, nil
}
