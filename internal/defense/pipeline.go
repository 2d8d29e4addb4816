package defense

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pauamargant/leaseCare-lauzhack/internal/ledger"
	"github.com/pauamargant/leaseCare-lauzhack/internal/prompt"
)

// StageError marks a pipeline failure with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// StageNameFromError returns the failing stage name, or "" when err did not
// come out of a pipeline stage.
func StageNameFromError(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// StageProgressFn receives stage lifecycle events. status is one of
// "started", "completed", "failed", "degraded".
type StageProgressFn func(stage, status string)

type Pipeline struct {
	runner   StageRunner
	log      *zap.Logger
	clock    func() time.Time
	progress StageProgressFn
}

type PipelineOption func(*Pipeline)

func WithProgress(fn StageProgressFn) PipelineOption {
	return func(p *Pipeline) { p.progress = fn }
}

func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.clock = now }
}

func NewPipeline(runner StageRunner, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{runner: runner, log: logger.Named("pipeline"), clock: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) emit(stage, status string) {
	if p.progress != nil {
		p.progress(stage, status)
	}
}

// Run drives the three stages in order. Context and report failures are
// fatal. An evaluation failure degrades the run instead: the report is
// kept and a neutral evaluation stands in for the missing one.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	started := p.clock()
	attempts := map[string]StageAttemptMetrics{}

	gaps := req.Evidence.MissingDocumentationReport()
	snapshot := req.Evidence.Snapshot()

	p.emit(StageContext, "started")
	cc, m, err := p.runner.RunContext(ctx, prompt.ContextInput{
		Lease:     req.Lease,
		Items:     req.Evidence.Items(),
		Evidence:  snapshot,
		Gaps:      gaps,
		UserQuery: req.UserQuery,
		Tenant:    req.Tenant,
	})
	attempts[StageContext] = m
	if err != nil {
		p.emit(StageContext, "failed")
		p.log.Error("context stage failed", zap.Error(err), zap.Int("gaps", len(gaps)))
		return nil, &StageError{Stage: StageContext, Err: contextFailure(err, gaps)}
	}
	p.emit(StageContext, "completed")

	p.emit(StageReport, "started")
	markdown, m, err := p.runner.RunReport(ctx, cc, allPhotoRefs(snapshot), req.UserQuery, req.Tenant)
	attempts[StageReport] = m
	if err != nil {
		p.emit(StageReport, "failed")
		p.log.Error("report stage failed", zap.Error(err))
		return nil, &StageError{Stage: StageReport, Err: err}
	}
	markdown = prompt.MarkCitations(markdown)
	report := DefenseReport{
		Markdown:  markdown,
		Blocks:    ParseBlocks(markdown),
		Citations: prompt.FindCitations(markdown),
	}
	p.emit(StageReport, "completed")

	p.emit(StageEvaluation, "started")
	eval, m, err := p.runner.RunEvaluation(ctx, markdown)
	attempts[StageEvaluation] = m
	if err != nil {
		p.emit(StageEvaluation, "degraded")
		p.log.Warn("evaluation stage failed, degrading run", zap.Error(err))
		return p.finalizeDegraded(req, cc, report, markdown, started, attempts), nil
	}
	p.emit(StageEvaluation, "completed")

	return p.finalize(req, cc, report, eval, started, attempts), nil
}

func (p *Pipeline) finalize(req RunRequest, cc CaseContext, report DefenseReport, eval CaseEvaluation, started time.Time, attempts map[string]StageAttemptMetrics) *RunResult {
	return &RunResult{
		LeaseID:    req.LeaseID,
		Context:    cc,
		Report:     report,
		Evaluation: eval,
		Metadata: RunMetadata{
			StartedAt:   started,
			CompletedAt: p.clock(),
			Mode:        RunModeComplete,
			Attempts:    attempts,
		},
	}
}

func (p *Pipeline) finalizeDegraded(req RunRequest, cc CaseContext, report DefenseReport, markdown string, started time.Time, attempts map[string]StageAttemptMetrics) *RunResult {
	return &RunResult{
		LeaseID:    req.LeaseID,
		Context:    cc,
		Report:     report,
		Evaluation: neutralEvaluation(markdown),
		Metadata: RunMetadata{
			StartedAt:   started,
			CompletedAt: p.clock(),
			Mode:        RunModeDegraded,
			StageFailed: StageEvaluation,
			Attempts:    attempts,
		},
	}
}

// contextFailure folds the ledger's documentation gaps into the stage
// error so the caller sees what evidence to add before retrying.
func contextFailure(err error, gaps []ledger.Gap) error {
	if len(gaps) == 0 {
		return err
	}
	descs := make([]string, 0, len(gaps))
	for _, g := range gaps {
		descs = append(descs, g.Description)
	}
	return fmt.Errorf("%w (insufficient evidence: %s)", err, strings.Join(descs, "; "))
}

const neutralSummaryLimit = 280

// neutralEvaluation stands in when the evaluation stage fails. It never
// claims a win probability; the summary is an excerpt of the report so
// the caller still has something to show.
func neutralEvaluation(reportMarkdown string) CaseEvaluation {
	return CaseEvaluation{
		Confidence:   "low",
		Summary:      excerpt(reportMarkdown, neutralSummaryLimit),
		CaseStrength: "moderate",
		KeyWeakness:  "Automated case evaluation was unavailable for this run.",
	}
}

func excerpt(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := string(runes[:limit])
	if i := strings.LastIndexByte(cut, ' '); i > limit/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
