// Package tasks produces the stream of dataset identifiers a pipeline run works through.
package tasks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/forest-guardian/fmc-pipeline/internal/logging"
	"github.com/forest-guardian/fmc-pipeline/internal/storage"
)

// ErrSourceUnavailable means the task source itself cannot be read; it ends the run.
var ErrSourceUnavailable = errors.New("task source unavailable")

// Task is one dataset identifier to process.
type Task struct {
	DatasetID string
	ack       func(context.Context) error
}

func NewTask(id string) Task {
	return Task{DatasetID: id}
}

// NewAckTask returns a task whose Ack calls ack.
func NewAckTask(id string, ack func(context.Context) error) Task {
	return Task{DatasetID: id, ack: ack}
}

// Ack marks the task as done. Queue-backed tasks are deleted from the queue; other tasks
// ignore it.
func (t Task) Ack(ctx context.Context) error {
	if t.ack == nil {
		return nil
	}
	return t.ack(ctx)
}

// Source yields tasks until it returns io.EOF.
type Source interface {
	Next(ctx context.Context) (Task, error)
	Close() error
}

// Single yields exactly one task.
type Single struct {
	id   string
	done bool
}

func NewSingle(id string) *Single {
	return &Single{id: strings.TrimSpace(id)}
}

func (s *Single) Next(ctx context.Context) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	if s.done {
		return Task{}, io.EOF
	}
	s.done = true
	return NewTask(s.id), nil
}

func (s *Single) Close() error { return nil }

// RemoteFile yields one task per non-empty line of a stored text object, in file order.
type RemoteFile struct {
	uri     string
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *zap.Logger
}

func NewRemoteFile(ctx context.Context, store storage.Store, uri string, logger *zap.Logger) (*RemoteFile, error) {
	body, err := store.Open(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrSourceUnavailable, uri, err)
	}
	return &RemoteFile{
		uri:     uri,
		body:    body,
		scanner: bufio.NewScanner(body),
		logger:  logging.OrNop(logger).Named("tasks"),
	}, nil
}

func (f *RemoteFile) Next(ctx context.Context) (Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}
		if !f.scanner.Scan() {
			if err := f.scanner.Err(); err != nil {
				return Task{}, fmt.Errorf("%w: failed to read %s: %v", ErrSourceUnavailable, f.uri, err)
			}
			return Task{}, io.EOF
		}
		line := strings.TrimSpace(f.scanner.Text())
		if line == "" {
			continue
		}
		id, ok := parseUUID(line)
		if !ok {
			f.logger.Warn("skipping line that is not a dataset uuid",
				zap.String("uri", f.uri),
				zap.String("line", line),
			)
			continue
		}
		return NewTask(id), nil
	}
}

func (f *RemoteFile) Close() error {
	return f.body.Close()
}
