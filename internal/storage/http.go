package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPStore reads objects published over plain HTTP(S), such as public process configs.
type HTTPStore struct {
	Client *http.Client
}

func NewHTTPStore(timeout time.Duration) *HTTPStore {
	return &HTTPStore{Client: &http.Client{Timeout: timeout}}
}

func (s *HTTPStore) Put(context.Context, string, io.Reader) error {
	return ErrReadOnly
}

func (s *HTTPStore) do(ctx context.Context, method, uri string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", uri, err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s: %w", uri, err)
	}
	return resp, nil
}

func (s *HTTPStore) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	resp, err := s.do(ctx, http.MethodGet, uri)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s, status code: %d", uri, resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *HTTPStore) Exists(ctx context.Context, uri string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, uri)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s, status code: %d", uri, resp.StatusCode)
}
