package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"foodwaste/internal/blob"
	"foodwaste/pkg/reportapi"
)

// DefaultQueueSize bounds the number of pending exports.
const DefaultQueueSize = 32

// DefaultRetainedExports bounds how many finished export records stay
// queryable. Artifacts already written to the blob store are not removed.
const DefaultRetainedExports = 256

var (
	// ErrReportNotFound is returned when an export names an unknown report.
	ErrReportNotFound = errors.New("report not found")
	// ErrInvalidExport wraps malformed export requests.
	ErrInvalidExport = errors.New("invalid export request")
	// ErrQueueFull is returned when the bounded queue cannot take another job.
	ErrQueueFull = errors.New("export queue full")
	// ErrArtifactNotFound is returned for unknown exports or formats not produced.
	ErrArtifactNotFound = errors.New("export artifact not found")
)

// ParameterErrors carries the parameter problems that rejected an export.
type ParameterErrors struct {
	Errors []reportapi.ParameterError
}

func (e *ParameterErrors) Error() string {
	parts := make([]string, len(e.Errors))
	for i, pe := range e.Errors {
		parts[i] = pe.Error()
	}
	return "parameter validation failed: " + strings.Join(parts, "; ")
}

func (e *ParameterErrors) Unwrap() error { return ErrInvalidExport }

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ExportArtifact describes one rendered file in the blob store.
type ExportArtifact struct {
	Key         string           `json:"key"`
	Format      reportapi.Format `json:"format"`
	ContentType string           `json:"content_type"`
	SizeBytes   int64            `json:"size_bytes"`
	Rows        int              `json:"rows"`
	URL         string           `json:"url,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ExportRecord tracks an export request and its artifacts.
type ExportRecord struct {
	ID          string             `json:"id"`
	Report      string             `json:"report"`
	Title       string             `json:"title"`
	Parameters  map[string]any     `json:"parameters,omitempty"`
	Formats     []reportapi.Format `json:"formats"`
	Status      ExportStatus       `json:"status"`
	Error       string             `json:"error,omitempty"`
	Artifacts   []ExportArtifact   `json:"artifacts,omitempty"`
	RequestedBy string             `json:"requested_by"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// ExportInput is an enqueue request.
type ExportInput struct {
	Report      string
	Parameters  map[string]any
	Formats     []reportapi.Format
	RequestedBy string
}

// ExportScheduler queues exports and exposes their status and artifacts.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
	OpenArtifact(ctx context.Context, id string, format reportapi.Format) (ExportArtifact, io.ReadCloser, error)
}

var _ ExportScheduler = (*Worker)(nil)

// Worker renders exports on a single background goroutine.
type Worker struct {
	catalog Catalog
	blobs   blob.Store
	audit   *zap.Logger
	depth   prometheus.Gauge
	now     func() time.Time
	size    int

	queue    chan string
	mu       sync.RWMutex
	jobs     map[string]*ExportRecord
	finished []string
	retain   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.size = n
		}
	}
}

// WithRetention overrides DefaultRetainedExports. Once more than n exports
// have finished, the oldest finished records are dropped.
func WithRetention(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.retain = n
		}
	}
}

// WithLogger sets the logger audit lines are written through.
func WithLogger(logger *zap.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.audit = logger.Named("audit")
		}
	}
}

// WithQueueDepth reports the number of pending jobs on g.
func WithQueueDepth(g prometheus.Gauge) WorkerOption {
	return func(w *Worker) { w.depth = g }
}

// WithClock overrides the time source for record timestamps.
func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWorker constructs an export worker. Start must be called before jobs run.
func NewWorker(c Catalog, blobs blob.Store, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		catalog: c,
		blobs:   blobs,
		audit:   zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
		size:    DefaultQueueSize,
		retain:  DefaultRetainedExports,
		jobs:    make(map[string]*ExportRecord),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.queue = make(chan string, w.size)
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the running job, if any.
// Jobs still queued stay in the queued state.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.reportDepth()
			w.process(id)
		}
	}
}

// EnqueueExport validates the request, records it as queued and schedules it.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	key := strings.TrimSpace(input.Report)
	if key == "" {
		return ExportRecord{}, fmt.Errorf("%w: report key required", ErrInvalidExport)
	}
	tpl, ok := w.catalog.Resolve(key)
	if !ok {
		return ExportRecord{}, fmt.Errorf("%w: %s", ErrReportNotFound, key)
	}
	if _, errs := tpl.ValidateParameters(input.Parameters); len(errs) > 0 {
		return ExportRecord{}, &ParameterErrors{Errors: errs}
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []reportapi.Format{reportapi.FormatJSON, reportapi.FormatCSV}
	}
	unique := make([]reportapi.Format, 0, len(formats))
	seen := make(map[reportapi.Format]struct{}, len(formats))
	for _, format := range formats {
		if _, dup := seen[format]; dup {
			continue
		}
		if !tpl.SupportsFormat(format) {
			return ExportRecord{}, fmt.Errorf("%w: format %s not supported by %s", ErrInvalidExport, format, key)
		}
		seen[format] = struct{}{}
		unique = append(unique, format)
	}

	now := w.now()
	record := &ExportRecord{
		ID:          uuid.NewString(),
		Report:      key,
		Title:       tpl.Descriptor().Title,
		Parameters:  cloneMap(input.Parameters),
		Formats:     unique,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// The queued line is written under the lock so it precedes the worker's
	// running transition, and only once the job is actually on the queue.
	w.mu.Lock()
	select {
	case w.queue <- record.ID:
	default:
		w.mu.Unlock()
		w.audit.Warn("report export rejected", zap.String("report", key), zap.String("actor", input.RequestedBy), zap.Error(ErrQueueFull))
		return ExportRecord{}, ErrQueueFull
	}
	w.jobs[record.ID] = record
	snapshot := record.copy()
	w.record(snapshot)
	w.mu.Unlock()

	w.reportDepth()
	return snapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

// OpenArtifact streams a stored artifact back from the blob store.
func (w *Worker) OpenArtifact(ctx context.Context, id string, format reportapi.Format) (ExportArtifact, io.ReadCloser, error) {
	record, ok := w.GetExport(id)
	if !ok {
		return ExportArtifact{}, nil, fmt.Errorf("%w: export %s", ErrArtifactNotFound, id)
	}
	for _, artifact := range record.Artifacts {
		if artifact.Format != format {
			continue
		}
		_, body, err := w.blobs.Get(ctx, artifact.Key)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				return ExportArtifact{}, nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, artifact.Key)
			}
			return ExportArtifact{}, nil, err
		}
		return artifact, body, nil
	}
	return ExportArtifact{}, nil, fmt.Errorf("%w: export %s has no %s artifact", ErrArtifactNotFound, id, format)
}

func (w *Worker) process(id string) {
	record, ok := w.GetExport(id)
	if !ok {
		return
	}
	w.update(id, func(r *ExportRecord) { r.Status = ExportStatusRunning })

	scope := reportapi.Scope{Requestor: record.RequestedBy}
	result, paramErrs, err := w.catalog.Run(w.ctx, record.Report, record.Parameters, scope, reportapi.FormatJSON)
	if err != nil {
		w.fail(id, fmt.Errorf("run %s: %w", record.Report, err))
		return
	}
	if len(paramErrs) > 0 {
		w.fail(id, &ParameterErrors{Errors: paramErrs})
		return
	}
	tpl, ok := w.catalog.Resolve(record.Report)
	if !ok {
		w.fail(id, fmt.Errorf("%w: %s", ErrReportNotFound, record.Report))
		return
	}
	descriptor := tpl.Descriptor()

	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, err := render(format, descriptor, result)
		if err != nil {
			w.fail(id, err)
			return
		}
		key := artifactKey(id, record.Report, format)
		info, err := w.blobs.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentTypes[format],
			Metadata: map[string]string{
				"export-id": id,
				"report":    record.Report,
				"rows":      fmt.Sprint(len(result.Rows)),
			},
		})
		if err != nil {
			w.fail(id, fmt.Errorf("store %s: %w", key, err))
			return
		}
		artifact := ExportArtifact{
			Key:         key,
			Format:      format,
			ContentType: contentTypes[format],
			SizeBytes:   info.Size,
			Rows:        len(result.Rows),
			CreatedAt:   w.now(),
		}
		if url, err := w.blobs.PresignURL(w.ctx, key, blob.SignedURLOptions{}); err == nil {
			artifact.URL = url
		}
		artifacts = append(artifacts, artifact)
	}

	w.update(id, func(r *ExportRecord) {
		now := w.now()
		r.Status = ExportStatusSucceeded
		r.Artifacts = artifacts
		r.CompletedAt = &now
	})
}

func (w *Worker) fail(id string, err error) {
	w.update(id, func(r *ExportRecord) {
		now := w.now()
		r.Status = ExportStatusFailed
		r.Error = err.Error()
		r.CompletedAt = &now
	})
}

func (w *Worker) update(id string, mutate func(*ExportRecord)) {
	w.mu.Lock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	mutate(record)
	record.UpdatedAt = w.now()
	snapshot := record.copy()
	if record.Status == ExportStatusSucceeded || record.Status == ExportStatusFailed {
		w.finished = append(w.finished, id)
		for len(w.finished) > w.retain {
			delete(w.jobs, w.finished[0])
			w.finished = w.finished[1:]
		}
	}
	w.mu.Unlock()
	w.record(snapshot)
}

// record writes one audit line per status transition.
func (w *Worker) record(r ExportRecord) {
	fields := []zap.Field{
		zap.String("export_id", r.ID),
		zap.String("report", r.Report),
		zap.String("status", string(r.Status)),
		zap.String("actor", r.RequestedBy),
	}
	if r.Status == ExportStatusFailed {
		w.audit.Warn("report export failed", append(fields, zap.String("error", r.Error))...)
		return
	}
	if r.Status == ExportStatusSucceeded {
		fields = append(fields, zap.Int("artifacts", len(r.Artifacts)))
	}
	w.audit.Info("report export", fields...)
}

func (w *Worker) reportDepth() {
	if w.depth != nil {
		w.depth.Set(float64(len(w.queue)))
	}
}

func (r *ExportRecord) copy() ExportRecord {
	dup := *r
	dup.Parameters = cloneMap(r.Parameters)
	dup.Formats = append([]reportapi.Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]ExportArtifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		dup.CompletedAt = &completed
	}
	return dup
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
