package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/dustgatherer/internal/metrics"
	"github.com/erazemk/dustgatherer/internal/model"
)

// ErrJobInProgress is returned when an export or import is started while
// another job of the same kind is still running.
var ErrJobInProgress = errors.New("backup job already in progress")

// AssetStore is the image store used for both directions.
type AssetStore interface {
	AssetReader
	AssetWriter
}

// JobRecorder keeps a history of finished jobs.
type JobRecorder interface {
	RecordJob(ctx context.Context, job *model.BackupJob) (int64, error)
}

// Config holds the collaborators of a Service. History and Metrics are
// optional.
type Config struct {
	Records         RecordStore
	Assets          AssetStore
	History         JobRecorder
	Metrics         *metrics.Backup
	ProducerVersion string
}

// Service runs export, preview and import jobs. At most one export and one
// import run at a time.
type Service struct {
	records  RecordStore
	assets   AssetStore
	history  JobRecorder
	metrics  *metrics.Backup
	writer   *Writer
	importer *Importer

	exportMu sync.Mutex
	importMu sync.Mutex
}

// NewService returns a Service for cfg.
func NewService(cfg Config) *Service {
	return &Service{
		records: cfg.Records,
		assets:  cfg.Assets,
		history: cfg.History,
		metrics: cfg.Metrics,
		writer: &Writer{
			Assets:          cfg.Assets,
			ProducerVersion: cfg.ProducerVersion,
		},
		importer: &Importer{
			Records: cfg.Records,
			Assets:  cfg.Assets,
		},
	}
}

// Export writes an archive of the whole inventory to sink.
func (s *Service) Export(ctx context.Context, sink io.Writer, onProgress ProgressFunc) error {
	if !s.exportMu.TryLock() {
		return ErrJobInProgress
	}
	defer s.exportMu.Unlock()

	job := s.begin(model.JobKindExport, "")

	items, err := s.records.ListItems(ctx)
	if err != nil {
		err = fmt.Errorf("loading inventory: %w", err)
		s.finish(ctx, job, err)
		return err
	}
	job.TotalItems = len(items)

	err = s.writer.Write(ctx, items, StoredImages(s.assets), sink, onProgress)
	if err == nil {
		s.metrics.Items("exported", len(items))
	}
	s.finish(ctx, job, err)
	return err
}

// Preview returns the number of items an archive declares.
func (s *Service) Preview(src io.ReaderAt, size int64) (int, error) {
	count, err := Preview(src, size)
	if err != nil {
		slog.Warn("archive preview failed", "error", err)
		return 0, err
	}
	return count, nil
}

// Import restores an archive using strategy for items that already exist.
func (s *Service) Import(ctx context.Context, src io.ReaderAt, size int64, strategy Strategy, onProgress ProgressFunc) (*Outcome, error) {
	if !s.importMu.TryLock() {
		return nil, ErrJobInProgress
	}
	defer s.importMu.Unlock()

	var strategyName string
	if strategy != nil {
		strategyName = strategy.String()
	}
	job := s.begin(model.JobKindImport, strategyName)

	outcome, err := s.importer.Import(ctx, src, size, strategy, onProgress)
	if err == nil {
		job.TotalItems = outcome.TotalItems
		job.Imported = outcome.ImportedCount
		job.Skipped = outcome.SkippedCount
		if len(outcome.Errors) > 0 {
			job.Message = fmt.Sprintf("%d item(s) failed, first: %s", len(outcome.Errors), outcome.Errors[0])
		}
		s.metrics.Items("imported", outcome.ImportedCount)
		s.metrics.Items("skipped", outcome.SkippedCount-len(outcome.Errors))
		s.metrics.Items("failed", len(outcome.Errors))
	}
	s.finish(ctx, job, err)
	return outcome, err
}

func (s *Service) begin(kind, strategy string) *model.BackupJob {
	s.metrics.JobStarted(kind)
	slog.Info("backup job started", "kind", kind, "strategy", strategy)
	return &model.BackupJob{
		Kind:      kind,
		Strategy:  strategy,
		StartedAt: time.Now(),
	}
}

func (s *Service) finish(ctx context.Context, job *model.BackupJob, err error) {
	job.FinishedAt = time.Now()
	elapsed := job.FinishedAt.Sub(job.StartedAt)

	if err != nil {
		job.Status = model.JobStatusError
		job.Message = err.Error()
		slog.Error("backup job failed", "kind", job.Kind, "duration", elapsed, "error", err)
	} else {
		job.Status = model.JobStatusSuccess
		slog.Info("backup job finished", "kind", job.Kind, "items", job.TotalItems,
			"imported", job.Imported, "skipped", job.Skipped, "duration", elapsed)
	}
	s.metrics.JobFinished(job.Kind, job.Status, elapsed)

	if s.history == nil {
		return
	}
	// Record even when the job's context was cancelled.
	if _, herr := s.history.RecordJob(context.WithoutCancel(ctx), job); herr != nil {
		slog.Error("failed to record backup job", "kind", job.Kind, "error", herr)
	}
}
