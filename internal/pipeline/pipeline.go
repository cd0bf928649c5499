// Package pipeline runs a batch of matching sessions, one per IR
// document, in parallel.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"clifmatch/internal/diag"
	"clifmatch/internal/ir"
	"clifmatch/internal/match"
	"clifmatch/internal/observ"
	"clifmatch/internal/oracle"
	"clifmatch/internal/synth"
	"clifmatch/internal/trace"
)

// Request configures a batch.
type Request struct {
	Inputs []string
	// OutputDir receives the decorated documents under their input base
	// names. Empty with InPlace unset skips writing.
	OutputDir string
	InPlace   bool
	// Format forces the output codec; empty keeps each input's.
	Format string
	Oracle oracle.Oracle
	// Options is copied for every session; Source and Timer are set per
	// input. A Reporter given here sees every session's findings and must
	// be safe for concurrent use.
	Options  match.Options
	Jobs     int
	MaxDiags int
	Progress ProgressSink
}

// Result is the outcome of one session.
type Result struct {
	Input   string
	Output  string
	Session uuid.UUID
	AST     *ir.AST
	Diags   *diag.Bag
	// Failed counts declarations left with NotFound.
	Failed int
	Fatal  *match.FatalError
	// Unit is the translation unit the session compiled; nil when the
	// document did not load.
	Unit *synth.Unit
	// Err is a load or write failure.
	Err   error
	Timer *observ.Timer
}

// OK reports whether every declaration matched and nothing failed.
func (r *Result) OK() bool { return r.Err == nil && r.Fatal == nil && r.Failed == 0 }

// Summary aggregates a batch.
type Summary struct {
	Results []*Result
	Timings Timings
	Timer   *observ.Timer
}

// Failed counts unmatched declarations across the batch.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Results {
		n += r.Failed
	}
	return n
}

// Fatal reports whether any session was aborted.
func (s *Summary) Fatal() bool {
	for _, r := range s.Results {
		if r.Fatal != nil || r.Err != nil {
			return true
		}
	}
	return false
}

// ExitCode is 2 when a session was aborted, 1 when a declaration failed
// to match, 0 otherwise.
func (s *Summary) ExitCode() int {
	switch {
	case s.Fatal():
		return 2
	case s.Failed() > 0:
		return 1
	}
	return 0
}

// Diagnostics merges every session's findings in input order.
func (s *Summary) Diagnostics() *diag.Bag {
	all := diag.NewBag(0)
	for _, r := range s.Results {
		if r.Diags != nil {
			all.Merge(r.Diags)
		}
	}
	return all
}

// Run executes one session per input. A session that fails does not stop
// the others; the returned error is only set when the batch itself could
// not run or ctx was canceled.
func Run(ctx context.Context, req *Request) (*Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return nil, fmt.Errorf("missing pipeline request")
	}
	if req.Oracle == nil {
		return nil, fmt.Errorf("missing oracle")
	}
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("no IR documents given")
	}
	if req.Format != "" {
		if _, err := parseFormat(req.Format); err != nil {
			return nil, err
		}
	}
	if req.OutputDir != "" {
		if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	tr := req.Options.Tracer
	if tr == nil {
		tr = trace.FromContext(ctx)
	}
	batch := trace.Begin(tr, trace.ScopeDriver, "batch", trace.ParentID(ctx)).
		WithExtra("inputs", fmt.Sprint(len(req.Inputs)))
	ctx = trace.WithSpan(ctx, batch)

	emitQueued(req.Progress, req.Inputs)

	sum := &Summary{
		Results: make([]*Result, len(req.Inputs)),
		Timer:   observ.NewTimer(),
	}
	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, input := range req.Inputs {
		i, input := i, input
		g.Go(func() error {
			res := runSession(gctx, req, input, &sum.Timings)
			sum.Results[i] = res
			sum.Timer.Merge(res.Timer)
			// only cancellation stops the batch
			return gctx.Err()
		})
	}
	err := g.Wait()
	batch.End(fmt.Sprintf("%d failed", sum.Failed()))
	if err != nil {
		return sum, err
	}
	return sum, ctx.Err()
}

func runSession(ctx context.Context, req *Request, input string, timings *Timings) *Result {
	res := &Result{
		Input: input,
		Diags: diag.NewBag(req.MaxDiags),
		Timer: observ.NewTimer(),
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	emit(req.Progress, input, StageLoad, StatusWorking, nil, 0)
	idx := res.Timer.Begin("load")
	ast, err := ir.LoadFile(input)
	res.Timer.End(idx, "")
	timings.Add(StageLoad, time.Since(start))
	if err != nil {
		res.Err = err
		diag.ReportError(diag.BagReporter{Bag: res.Diags}, diag.IRDecodeFailed, diag.Span{File: input}, err.Error()).Emit()
		emit(req.Progress, input, StageLoad, StatusError, err, time.Since(start))
		return res
	}
	res.AST = ast
	emit(req.Progress, input, StageLoad, StatusDone, nil, time.Since(start))

	start = time.Now()
	emit(req.Progress, input, StageMatch, StatusWorking, nil, 0)
	opts := req.Options
	opts.Source = input
	opts.Reporter = diag.NewDedupReporter(diag.BagReporter{Bag: res.Diags})
	opts.Timer = res.Timer
	if opts.Tracer == nil {
		opts.Tracer = trace.FromContext(ctx)
	}
	if req.Options.Reporter != nil {
		opts.Reporter = diag.MultiReporter{opts.Reporter, req.Options.Reporter}
	}
	s := match.NewSession(ast, req.Oracle, opts)
	res.Session = s.ID
	err = s.Run(ctx)
	res.Unit = s.Unit()
	timings.Add(StageMatch, time.Since(start))
	if err != nil {
		var fatal *match.FatalError
		if errors.As(err, &fatal) {
			res.Fatal = fatal
		} else {
			res.Err = err
		}
		emit(req.Progress, input, StageMatch, StatusError, err, time.Since(start))
		return res
	}
	res.Failed = len(ast.Failed())
	status := StatusDone
	if res.Failed > 0 {
		status = StatusFailed
	}
	emit(req.Progress, input, StageMatch, status, nil, time.Since(start))

	out, format, ok := outputFor(req, input)
	if !ok {
		return res
	}
	start = time.Now()
	emit(req.Progress, input, StageWrite, StatusWorking, nil, 0)
	idx = res.Timer.Begin("write")
	err = writeAST(out, ast, format)
	res.Timer.End(idx, "")
	timings.Add(StageWrite, time.Since(start))
	if err != nil {
		res.Err = err
		diag.ReportError(diag.BagReporter{Bag: res.Diags}, diag.IREncodeFailed, diag.Span{File: out}, err.Error()).Emit()
		emit(req.Progress, input, StageWrite, StatusError, err, time.Since(start))
		return res
	}
	res.Output = out
	emit(req.Progress, input, StageWrite, StatusDone, nil, time.Since(start))
	return res
}

func parseFormat(s string) (ir.Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return ir.FormatYAML, nil
	case "msgpack", "mpk":
		return ir.FormatMsgpack, nil
	}
	return 0, fmt.Errorf("unknown IR format %q (want yaml or msgpack)", s)
}

// outputFor picks where and how a decorated document is written.
func outputFor(req *Request, input string) (string, ir.Format, bool) {
	format := ir.FormatForPath(input)
	if req.Format != "" {
		format, _ = parseFormat(req.Format)
	}
	switch {
	case req.InPlace:
		return input, format, true
	case req.OutputDir != "":
		base := filepath.Base(input)
		if format != ir.FormatForPath(input) {
			base = strings.TrimSuffix(base, filepath.Ext(base)) + extFor(format)
		}
		return filepath.Join(req.OutputDir, base), format, true
	}
	return "", format, false
}

func extFor(f ir.Format) string {
	if f == ir.FormatMsgpack {
		return ".msgpack"
	}
	return ".yaml"
}

// writeAST replaces path atomically.
func writeAST(path string, ast *ir.AST, format ir.Format) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".clifmatch-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if err := ir.Encode(f, ast, format); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func emitQueued(sink ProgressSink, inputs []string) {
	if sink == nil {
		return
	}
	for _, input := range inputs {
		sink.OnEvent(Event{File: input, Stage: StageLoad, Status: StatusQueued})
	}
}

func emit(sink ProgressSink, input string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{File: input, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}
