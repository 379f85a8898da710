// Package storage reads and writes pipeline artifacts by URI.
//
// Supported schemes are s3:// (read/write), file:// or bare paths (read/write) and
// http(s):// (read only). Credentials are never taken from mutated process state: the S3
// backend is built from an explicit ClientConfig.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrNotFound    = errors.New("object not found")
	ErrUnsupported = errors.New("unsupported storage scheme")
	ErrReadOnly    = errors.New("storage backend is read only")
)

// Store is the object storage contract used by the pipeline.
type Store interface {
	Put(ctx context.Context, uri string, body io.Reader) error
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
	Exists(ctx context.Context, uri string) (bool, error)
}

// Router dispatches to a backend by URI scheme.
type Router struct {
	S3   Store
	File Store
	HTTP Store
}

func (r *Router) backend(uri string) (Store, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	var backend Store
	switch loc.Scheme {
	case SchemeS3:
		backend = r.S3
	case SchemeFile:
		backend = r.File
	case SchemeHTTP, SchemeHTTPS:
		backend = r.HTTP
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, loc.Scheme)
	}
	return backend, nil
}

func (r *Router) Put(ctx context.Context, uri string, body io.Reader) error {
	backend, err := r.backend(uri)
	if err != nil {
		return err
	}
	return backend.Put(ctx, uri, body)
}

func (r *Router) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	backend, err := r.backend(uri)
	if err != nil {
		return nil, err
	}
	return backend.Open(ctx, uri)
}

func (r *Router) Exists(ctx context.Context, uri string) (bool, error) {
	backend, err := r.backend(uri)
	if err != nil {
		return false, err
	}
	return backend.Exists(ctx, uri)
}

// UploadFile copies a local file to uri.
func UploadFile(ctx context.Context, store Store, localPath, uri string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	if err := store.Put(ctx, uri, file); err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", localPath, uri, err)
	}
	return nil
}

// DownloadFile copies the object at uri into localPath.
func DownloadFile(ctx context.Context, store Store, uri, localPath string) error {
	body, err := store.Open(ctx, uri)
	if err != nil {
		return err
	}
	defer body.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	if _, err := io.Copy(file, body); err != nil {
		file.Close()
		return fmt.Errorf("failed to download %s: %w", uri, err)
	}
	return file.Close()
}

// ReadAll returns the full contents of the object at uri.
func ReadAll(ctx context.Context, store Store, uri string) ([]byte, error) {
	body, err := store.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return data, nil
}

// NewDefault wires the S3, file and HTTP backends from an explicit client configuration.
func NewDefault(ctx context.Context, cfg ClientConfig) (*Router, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Router{
		S3:   NewS3Store(awsCfg),
		File: FileStore{},
		HTTP: NewHTTPStore(cfg.Timeout),
	}, nil
}
