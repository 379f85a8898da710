package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/forest-guardian/fmc-pipeline/internal/tasks"
)

// Notifier receives a one-line summary at the end of a batch.
type Notifier interface {
	Error(ctx context.Context, msg string) error
	Success(ctx context.Context, msg string) error
}

type BatchOptions struct {
	// ReportURI receives a CSV row per dataset when set.
	ReportURI string
	Progress  bool
	Notifier  Notifier
}

type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Results   []Result
}

func (s Summary) String() string {
	return fmt.Sprintf("processed=%d skipped=%d failed=%d", s.Processed, s.Skipped, s.Failed)
}

// RunBatch drains source one task at a time. Processed and rejected tasks are acknowledged;
// failed tasks are left unacknowledged for redelivery. A failure never stops the batch, but a
// source error does and is returned with the partial summary.
func (p *Processor) RunBatch(ctx context.Context, source tasks.Source, opts BatchOptions) (Summary, error) {
	var summary Summary
	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.Default(-1, "Processing datasets")
	}

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		task, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = err
			break
		}

		res, err := p.ProcessDataset(ctx, task.DatasetID)
		summary.Results = append(summary.Results, res)
		switch res.Status {
		case StatusProcessed:
			summary.Processed++
			p.ack(ctx, task)
		case StatusSkipped:
			summary.Skipped++
			p.logger.Info("dataset skipped", zap.String("dataset_id", task.DatasetID), zap.String("reason", res.Reason))
			p.ack(ctx, task)
		default:
			summary.Failed++
			p.logger.Error("dataset failed", zap.String("dataset_id", task.DatasetID), zap.Error(err))
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	p.logger.Info("batch finished",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))

	if opts.ReportURI != "" {
		if err := WriteReport(ctx, p.deps.Store, opts.ReportURI, summary.Results); err != nil {
			p.logger.Warn("failed to write report", zap.String("uri", opts.ReportURI), zap.Error(err))
		}
	}
	if opts.Notifier != nil {
		p.notify(ctx, opts.Notifier, summary, runErr)
	}
	return summary, runErr
}

func (p *Processor) ack(ctx context.Context, task tasks.Task) {
	if err := task.Ack(ctx); err != nil {
		p.logger.Warn("failed to acknowledge task", zap.String("dataset_id", task.DatasetID), zap.Error(err))
	}
}

func (p *Processor) notify(ctx context.Context, n Notifier, summary Summary, runErr error) {
	var err error
	if summary.Failed > 0 || runErr != nil {
		var failed []string
		for _, r := range summary.Results {
			if r.Status == StatusFailed {
				failed = append(failed, fmt.Sprintf("%s: %s", r.DatasetID, r.Reason))
			}
		}
		if runErr != nil {
			failed = append(failed, "task source: "+runErr.Error())
		}
		err = n.Error(ctx, summary.String()+"\n"+strings.Join(failed, "\n"))
	} else if summary.Processed > 0 {
		err = n.Success(ctx, summary.String())
	}
	if err != nil {
		p.logger.Warn("failed to send notification", zap.Error(err))
	}
}
