// Package batch converts many scripts concurrently and collects a report.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quant-king299/stratconv/internal/converter/diag"
	"github.com/quant-king299/stratconv/internal/source"
)

// DefaultParallel bounds concurrent conversions when no limit is given.
const DefaultParallel = 4

// Converter converts one script. *converter.Pipeline satisfies it.
type Converter interface {
	Convert(src string) (string, []diag.Diagnostic, error)
}

// Sink receives converted scripts. Path is the script's slash-separated
// source path.
type Sink interface {
	Write(path string, data []byte) error
}

// Result is the outcome of one script.
type Result struct {
	Path        string            `json:"path" yaml:"path"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
	Duration    time.Duration     `json:"duration" yaml:"duration"`

	Err error `json:"-" yaml:"-"`
}

// Failed reports whether the script produced no output.
func (r Result) Failed() bool { return r.Err != nil }

// Report summarizes a batch run. Results are in source path order.
type Report struct {
	RunID   string   `json:"run_id" yaml:"run_id"`
	Variant string   `json:"variant,omitempty" yaml:"variant,omitempty"`
	Source  string   `json:"source" yaml:"source"`
	Results []Result `json:"results" yaml:"results"`
}

// Failed counts the scripts that produced no output.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Failed() {
			n++
		}
	}
	return n
}

// Count totals the diagnostics of severity sev over successful scripts.
func (r *Report) Count(sev diag.Severity) int {
	n := 0
	for _, res := range r.Results {
		for _, d := range res.Diagnostics {
			if d.Severity == sev {
				n++
			}
		}
	}
	return n
}

// Runner schedules conversions over an errgroup bounded by its parallelism.
type Runner struct {
	conv     Converter
	sink     Sink
	parallel int
	variant  string
	log      *zap.Logger

	progressMu sync.Mutex
	progress   func(res Result, done, total int)
	done       int
}

type Option func(*Runner)

// WithSink writes each successful conversion to s. Without a sink the
// runner only reports.
func WithSink(s Sink) Option {
	return func(r *Runner) { r.sink = s }
}

func WithParallel(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.parallel = n
		}
	}
}

// WithVariant records the variant name in reports.
func WithVariant(name string) Option {
	return func(r *Runner) { r.variant = name }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithProgress calls fn after each script finishes with the number of
// finished scripts and the batch size. Calls are serialized.
func WithProgress(fn func(res Result, done, total int)) Option {
	return func(r *Runner) { r.progress = fn }
}

func New(conv Converter, opts ...Option) *Runner {
	r := &Runner{
		conv:     conv,
		parallel: DefaultParallel,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run converts every script of src. A script that fails to convert or write
// is recorded in the report and does not stop the others. The returned error
// is non-nil only when the scripts could not be listed or ctx was cancelled;
// scripts never started are then reported with the context error.
func (r *Runner) Run(ctx context.Context, src source.Source) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Variant: r.variant, Source: src.String()}
	log := r.log.With(zap.String("run_id", report.RunID))

	scripts, err := src.Scripts(ctx)
	if err != nil {
		return report, fmt.Errorf("list scripts in %s: %w", src, err)
	}
	log.Info("Starting batch",
		zap.String("source", report.Source),
		zap.Int("scripts", len(scripts)),
		zap.Int("parallel", r.parallel))

	report.Results = make([]Result, len(scripts))
	r.progressMu.Lock()
	r.done = 0
	r.progressMu.Unlock()
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.parallel)

	for i, script := range scripts {
		if groupCtx.Err() != nil {
			for j := i; j < len(scripts); j++ {
				report.Results[j] = Result{Path: scripts[j].Path, Err: groupCtx.Err(), Error: groupCtx.Err().Error()}
			}
			break
		}
		group.Go(func() error {
			res := r.convert(log, script)
			report.Results[i] = res
			r.notify(res, len(scripts))
			return nil
		})
	}
	_ = group.Wait()

	log.Info("Batch finished",
		zap.Int("scripts", len(scripts)),
		zap.Int("failed", report.Failed()))
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) convert(log *zap.Logger, script source.Script) Result {
	start := time.Now()
	res := Result{Path: script.Path}
	out, diags, err := r.conv.Convert(script.Text)
	if err == nil && r.sink != nil {
		err = r.sink.Write(script.Path, []byte(out))
	}
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		log.Warn("Script failed", zap.String("script", script.Path), zap.Error(err))
		return res
	}
	res.Diagnostics = diags
	log.Debug("Converted script",
		zap.String("script", script.Path),
		zap.Int("diagnostics", len(diags)),
		zap.Duration("duration", res.Duration))
	return res
}

func (r *Runner) notify(res Result, total int) {
	if r.progress == nil {
		return
	}
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.done++
	r.progress(res, r.done, total)
}
