package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheetjoin/internal/logging"
)

// DefaultRunTimeout bounds a single pipeline run.
const DefaultRunTimeout = 2 * time.Minute

// DefaultMaxFileSize is the per-file upload limit.
const DefaultMaxFileSize int64 = 32 << 20

// ErrFileTooLarge is returned when an upload exceeds Options.MaxFileSize.
var ErrFileTooLarge = errors.New("file too large")

// Options configures a Service. Zero fields take package defaults.
type Options struct {
	Join          JoinOptions
	PreviewRows   int
	OutputName    string
	SheetName     string
	MaxFileSize   int64
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
}

func (o Options) withDefaults() Options {
	o.Join = o.Join.withDefaults()
	if o.PreviewRows <= 0 {
		o.PreviewRows = DefaultPreviewRows
	}
	if o.OutputName == "" {
		o.OutputName = DefaultOutputName
	}
	if o.SheetName == "" {
		o.SheetName = DefaultSheetName
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultRunTimeout
	}
	return o
}

// Service runs the join pipeline. It holds no per-run state.
type Service struct {
	opts    Options
	limiter *RunLimiter
	history HistoryStore
	now     func() time.Time
}

// NewService builds a Service. A nil history uses an in-memory ring.
func NewService(opts Options, history HistoryStore) *Service {
	opts = opts.withDefaults()
	if history == nil {
		history = NewMemoryHistory(DefaultMemoryHistorySize)
	}
	return &Service{
		opts:    opts,
		limiter: NewRunLimiter(opts.MaxConcurrent, opts.MaxWait),
		history: history,
		now:     time.Now,
	}
}

// Options returns the effective configuration.
func (s *Service) Options() Options { return s.opts }

// Input is one uploaded file.
type Input struct {
	Name   string
	Reader io.Reader
	Size   int64
}

// Request carries the two uploads of one submission. A nil field means the
// file was not supplied.
type Request struct {
	Keys *Input
	Data *Input
}

// Run is the outcome of one pipeline run.
type Run struct {
	ID       string
	Result   JoinResult
	View     View
	KeysRows int
	DataRows int
	Started  time.Time
	Duration time.Duration
}

// Run executes one submission. Pipeline failures are reported in
// Run.Result; a non-nil error means the pipeline did not run.
func (s *Service) Run(ctx context.Context, req Request) (*Run, error) {
	run := &Run{ID: uuid.New().String(), Started: s.now()}
	log := logging.WithFields(ctx, "run_id", run.ID)

	if missing := missingInputs(req); len(missing) > 0 {
		run.finish(s, Failed(&JoinError{Kind: KindMissingFiles, Files: missing}))
		s.record(ctx, run, req)
		log.Debug("run awaiting files", "missing", len(missing))
		return run, nil
	}

	for _, in := range []*Input{req.Keys, req.Data} {
		if in.Size > s.opts.MaxFileSize {
			return nil, fmt.Errorf("%s: %w (%d bytes, limit %d)", in.Name, ErrFileTooLarge, in.Size, s.opts.MaxFileSize)
		}
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	keys, data, jerr := s.parse(req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	run.KeysRows, run.DataRows = keys.Len(), data.Len()
	if jerr != nil {
		run.finish(s, Failed(jerr))
		s.record(ctx, run, req)
		log.Info("run failed", "code", jerr.Kind, "error", jerr.Err)
		return run, nil
	}

	if jerr := ValidateKeyColumn(keys, data, s.opts.Join.Key, req.Keys.Name, req.Data.Name); jerr != nil {
		run.finish(s, Failed(jerr))
		s.record(ctx, run, req)
		log.Info("run failed", "code", jerr.Kind, "detail", jerr.Detail())
		return run, nil
	}

	joined, err := LeftJoin(keys, data, s.opts.Join)
	if err != nil {
		var je *JoinError
		if errors.As(err, &je) {
			run.finish(s, Failed(je))
			s.record(ctx, run, req)
			return run, nil
		}
		return nil, err
	}

	run.finish(s, Joined(joined))
	s.record(ctx, run, req)
	log.Info("run joined",
		"keys_rows", run.KeysRows,
		"data_rows", run.DataRows,
		"output_rows", joined.Len(),
		"duration_ms", run.Duration.Milliseconds(),
	)
	return run, nil
}

// parse reads both uploads concurrently. A parse failure is reported as an
// UnreadableFile error naming the first file that failed.
func (s *Service) parse(req Request) (*Table, *Table, *JoinError) {
	var keys, data *Table
	var keysErr, dataErr error

	var g errgroup.Group
	g.Go(func() error {
		keys, keysErr = ReadTable(req.Keys.Name, req.Keys.Reader)
		return nil
	})
	g.Go(func() error {
		data, dataErr = ReadTable(req.Data.Name, req.Data.Reader)
		return nil
	})
	_ = g.Wait()

	switch {
	case keysErr != nil:
		return keys, data, &JoinError{
			Kind:  KindUnreadableFile,
			Files: []FileRef{{Role: RoleKeys, Name: req.Keys.Name}},
			Err:   keysErr,
		}
	case dataErr != nil:
		return keys, data, &JoinError{
			Kind:  KindUnreadableFile,
			Files: []FileRef{{Role: RoleData, Name: req.Data.Name}},
			Err:   dataErr,
		}
	}
	return keys, data, nil
}

// Export serializes a run's joined table using the configured output name.
func (s *Service) Export(run *Run, format Format) (*Artifact, error) {
	if run == nil {
		return nil, ErrNoArtifact
	}
	return Export(run.Result, ExportOptions{
		Format:    format,
		Name:      s.opts.OutputName,
		SheetName: s.opts.SheetName,
	})
}

// History returns up to limit recent runs, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]RunRecord, error) {
	return s.history.Recent(ctx, limit)
}

// LimiterStatus reports pipeline concurrency.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until in-flight runs finish or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}

func (r *Run) finish(s *Service, result JoinResult) {
	r.Result = result
	r.View = Present(result, s.opts.PreviewRows)
	r.Duration = s.now().Sub(r.Started)
}

// record stores the run summary. History failures are logged and never
// fail the run.
func (s *Service) record(ctx context.Context, run *Run, req Request) {
	rec := RunRecord{
		ID:        run.ID,
		Stage:     run.View.Stage,
		Code:      run.View.Code,
		Status:    run.View.Status,
		KeysRows:  run.KeysRows,
		DataRows:  run.DataRows,
		Columns:   len(run.View.Columns),
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
		Duration:  run.Duration,
		CreatedAt: run.Started,
	}
	if req.Keys != nil {
		rec.KeysFile = req.Keys.Name
	}
	if req.Data != nil {
		rec.DataFile = req.Data.Name
	}
	if t, ok := run.Result.Table(); ok {
		rec.OutputRows = t.Len()
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.Record(recordCtx, rec); err != nil {
		logging.FromContext(ctx).Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}

func missingInputs(req Request) []FileRef {
	var missing []FileRef
	if req.Keys == nil || req.Keys.Reader == nil {
		missing = append(missing, FileRef{Role: RoleKeys})
	}
	if req.Data == nil || req.Data.Reader == nil {
		missing = append(missing, FileRef{Role: RoleData})
	}
	return missing
}
