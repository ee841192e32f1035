package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/JonMunkholm/sheetclean/internal/logging"
	"github.com/JonMunkholm/sheetclean/internal/sheet"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoFiles is returned when an upload carries no files.
	ErrNoFiles = errors.New("no files uploaded")

	// ErrTooManyFiles is returned when an upload exceeds Options.MaxFiles.
	ErrTooManyFiles = errors.New("too many files")
)

// Codec converts between file bytes and core tables.
type Codec interface {
	Decode(name string, data []byte) (core.RawTable, error)
	Encode(t core.CleanedTable) ([]byte, error)
}

// Recorder receives pipeline measurements. See internal/metrics.
type Recorder interface {
	FileRead(result string)
	Merged(rows int)
	Cleaned(stats core.CleanStats, elapsed time.Duration)
	Exported(size int)
}

// File read results passed to Recorder.FileRead.
const (
	ReadOK      = "ok"
	ReadSkipped = "skipped"
	ReadFailed  = "failed"
)

// UnreadablePolicy decides what an unreadable upload does to its batch.
type UnreadablePolicy string

const (
	// PolicyAbort fails the whole upload on the first unreadable file.
	PolicyAbort UnreadablePolicy = "abort"
	// PolicySkip drops unreadable files and records a warning for each.
	PolicySkip UnreadablePolicy = "skip"
)

// Options configures a Workflow. Zero values fall back to defaults.
type Options struct {
	Policy             UnreadablePolicy
	MaxFiles           int
	DecodeWorkers      int
	MergedPreviewRows  int
	CleanedPreviewRows int
	Now                func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Policy == "" {
		o.Policy = PolicyAbort
	}
	if o.DecodeWorkers <= 0 {
		o.DecodeWorkers = 4
	}
	if o.MergedPreviewRows <= 0 {
		o.MergedPreviewRows = core.DefaultMergedPreviewRows
	}
	if o.CleanedPreviewRows <= 0 {
		o.CleanedPreviewRows = core.DefaultCleanedPreviewRows
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Workflow runs pipeline steps against stored sessions.
type Workflow struct {
	store   *Store
	codec   Codec
	limiter *UploadLimiter
	rec     Recorder
	opts    Options
}

// NewWorkflow wires a workflow. rec may be nil.
func NewWorkflow(store *Store, codec Codec, limiter *UploadLimiter, rec Recorder, opts Options) *Workflow {
	opts.applyDefaults()
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Workflow{
		store:   store,
		codec:   codec,
		limiter: limiter,
		rec:     rec,
		opts:    opts,
	}
}

// Store returns the session store.
func (w *Workflow) Store() *Store { return w.store }

// Limiter returns the upload limiter.
func (w *Workflow) Limiter() *UploadLimiter { return w.limiter }

// Start creates a session in the awaiting_files stage.
func (w *Workflow) Start() Snapshot {
	sess := w.store.Create()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return w.snapshot(sess)
}

// Snapshot returns the current view of a session.
func (w *Workflow) Snapshot(id string) (Snapshot, error) {
	sess, err := w.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return w.snapshot(sess), nil
}

// Load decodes and merges files into the session, replacing anything loaded
// before. On error the session is left as it was.
func (w *Workflow) Load(ctx context.Context, id string, files []File) (Snapshot, error) {
	sess, err := w.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	logger := logging.WithFields(ctx, "session_id", id, "files", len(files))

	// Decode without the session lock so the page can still be read while
	// the upload waits for a slot.
	merged, sources, warnings, err := w.load(ctx, files)
	if err != nil {
		logger.Warn("load failed", "error", err)
		return Snapshot{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.reset()
	sess.stage = StageFilesLoaded
	sess.sources = sources
	sess.warnings = warnings
	sess.merged = merged

	logger.Info("files loaded",
		"rows", merged.Len(),
		"columns", len(merged.Columns),
		"skipped", len(warnings),
	)
	return w.snapshot(sess), nil
}

// Select records the name and contact columns. Any earlier cleaning result is
// discarded.
func (w *Workflow) Select(ctx context.Context, id, nameCol, contactCol string) (Snapshot, error) {
	sess, err := w.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stage.rank() < StageFilesLoaded.rank() {
		return Snapshot{}, stageError("select columns", sess.stage, StageFilesLoaded)
	}
	if err := core.CheckColumns(sess.merged, nameCol, contactCol); err != nil {
		return Snapshot{}, err
	}

	sess.clearOutput()
	sess.nameCol = nameCol
	sess.contactCol = contactCol
	sess.stage = StageColumnsSelected

	logging.WithFields(ctx, "session_id", id).Debug("columns selected",
		"name_column", nameCol,
		"contact_column", contactCol,
	)
	return w.snapshot(sess), nil
}

// Clean runs the cleaning step on the selected columns and prepares the
// export workbook.
func (w *Workflow) Clean(ctx context.Context, id string) (Snapshot, error) {
	sess, err := w.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stage.rank() < StageColumnsSelected.rank() {
		return Snapshot{}, stageError("clean", sess.stage, StageColumnsSelected)
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	cleaned, export, err := w.clean(sess.merged, sess.nameCol, sess.contactCol)
	if err != nil {
		return Snapshot{}, err
	}

	sess.cleaned = cleaned
	sess.export = export
	sess.stage = StageCleaned

	logging.WithFields(ctx, "session_id", id).Info("data cleaned",
		"rows", cleaned.Len(),
		"export", export.Filename,
	)
	return w.snapshot(sess), nil
}

// Export returns the workbook produced by Clean.
func (w *Workflow) Export(id string) (Export, error) {
	sess, err := w.store.Get(id)
	if err != nil {
		return Export{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stage != StageCleaned || sess.export == nil {
		return Export{}, stageError("download", sess.stage, StageCleaned)
	}
	return *sess.export, nil
}

// Reset discards all session data and returns to awaiting_files.
func (w *Workflow) Reset(id string) (Snapshot, error) {
	sess, err := w.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.reset()
	return w.snapshot(sess), nil
}

// Result is the outcome of a one-shot Process call.
type Result struct {
	Export   Export
	Stats    core.CleanStats
	Columns  []string
	Warnings []string
}

// Process runs load, merge, clean and encode without a session.
func (w *Workflow) Process(ctx context.Context, files []File, nameCol, contactCol string) (Result, error) {
	merged, _, warnings, err := w.load(ctx, files)
	if err != nil {
		return Result{}, err
	}

	cleaned, export, err := w.clean(merged, nameCol, contactCol)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Export:   *export,
		Stats:    cleaned.Stats(),
		Columns:  merged.Columns,
		Warnings: warnings,
	}, nil
}

// Inspect decodes and merges files without a session, for column discovery.
func (w *Workflow) Inspect(ctx context.Context, files []File) (core.MergedTable, []string, error) {
	merged, _, warnings, err := w.load(ctx, files)
	return merged, warnings, err
}

// PreviewRows returns the configured preview sizes for merged and cleaned data.
func (w *Workflow) PreviewRows() (merged, cleaned int) {
	return w.opts.MergedPreviewRows, w.opts.CleanedPreviewRows
}

func (w *Workflow) snapshot(sess *Session) Snapshot {
	return sess.snapshot(w.opts.MergedPreviewRows, w.opts.CleanedPreviewRows)
}

// load decodes files in parallel and merges them in upload order.
func (w *Workflow) load(ctx context.Context, files []File) (core.MergedTable, []string, []string, error) {
	if len(files) == 0 {
		return core.MergedTable{}, nil, nil, ErrNoFiles
	}
	if w.opts.MaxFiles > 0 && len(files) > w.opts.MaxFiles {
		return core.MergedTable{}, nil, nil, fmt.Errorf("%w: %d uploaded, limit is %d", ErrTooManyFiles, len(files), w.opts.MaxFiles)
	}

	if w.limiter != nil {
		if err := w.limiter.Acquire(ctx); err != nil {
			return core.MergedTable{}, nil, nil, err
		}
		defer w.limiter.Release()
	}

	tables := make([]core.RawTable, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.DecodeWorkers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			table, err := w.codec.Decode(f.Name, f.Data)
			if err != nil {
				var unreadable *sheet.UnreadableFileError
				if !errors.As(err, &unreadable) {
					return err
				}
				errs[i] = err
				return nil
			}
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.MergedTable{}, nil, nil, err
	}

	if w.opts.Policy != PolicySkip {
		var first error
		for _, err := range errs {
			if err != nil {
				w.rec.FileRead(ReadFailed)
				if first == nil {
					first = err
				}
			}
		}
		if first != nil {
			return core.MergedTable{}, nil, nil, first
		}
	}

	logger := logging.FromContext(ctx)
	var (
		loaded   []core.RawTable
		sources  []string
		warnings []string
	)
	for i, f := range files {
		if errs[i] == nil {
			w.rec.FileRead(ReadOK)
			loaded = append(loaded, tables[i])
			sources = append(sources, f.Name)
			continue
		}
		w.rec.FileRead(ReadSkipped)
		logger.Warn("skipping unreadable file", "file", f.Name, "error", errs[i])
		warnings = append(warnings, fmt.Sprintf("Skipped %s: %s", f.Name, core.MapError(errs[i]).Message))
	}

	merged, err := core.Merge(loaded...)
	if err != nil {
		return core.MergedTable{}, nil, nil, err
	}
	w.rec.Merged(merged.Len())

	return merged, sources, warnings, nil
}

func (w *Workflow) clean(merged core.MergedTable, nameCol, contactCol string) (core.CleanedTable, *Export, error) {
	start := time.Now()

	cleaned, err := core.Clean(merged, nameCol, contactCol)
	if err != nil {
		return core.CleanedTable{}, nil, err
	}

	data, err := w.codec.Encode(cleaned)
	if err != nil {
		return core.CleanedTable{}, nil, fmt.Errorf("encode workbook: %w", err)
	}

	w.rec.Cleaned(cleaned.Stats(), time.Since(start))
	w.rec.Exported(len(data))

	return cleaned, &Export{
		Filename:    sheet.Filename(w.opts.Now()),
		ContentType: sheet.ContentType,
		Data:        data,
	}, nil
}

type nopRecorder struct{}

func (nopRecorder) FileRead(string) {}
func (nopRecorder) Merged(int) {}
func (nopRecorder) Cleaned(core.CleanStats, time.Duration) {}
func (nopRecorder) Exported(int) {}
