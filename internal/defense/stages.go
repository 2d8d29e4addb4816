package defense

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pauamargant/leaseCare-lauzhack/internal/gateway"
	"github.com/pauamargant/leaseCare-lauzhack/internal/ledger"
	"github.com/pauamargant/leaseCare-lauzhack/internal/prompt"
	"github.com/pauamargant/leaseCare-lauzhack/internal/recovery"
)

// StageRunner executes the individual pipeline stages. The production
// implementation talks to the model gateway; tests substitute fakes.
type StageRunner interface {
	RunContext(ctx context.Context, in prompt.ContextInput) (CaseContext, StageAttemptMetrics, error)
	RunReport(ctx context.Context, cc CaseContext, photoRefs []string, userQuery string, tenant prompt.TenantInfo) (string, StageAttemptMetrics, error)
	RunEvaluation(ctx context.Context, reportMarkdown string) (CaseEvaluation, StageAttemptMetrics, error)
}

// Generator is the slice of the model gateway the runner needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts gateway.GenerateOpts) (string, error)
}

const maxStageAttempts = 3

type LLMStageRunner struct {
	gen      Generator
	composer *prompt.Composer
	log      *zap.Logger
}

func NewLLMStageRunner(gen Generator, composer *prompt.Composer, logger *zap.Logger) *LLMStageRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMStageRunner{gen: gen, composer: composer, log: logger.Named("defense")}
}

func (r *LLMStageRunner) RunContext(ctx context.Context, in prompt.ContextInput) (CaseContext, StageAttemptMetrics, error) {
	system, user := r.composer.ComposeContext(in)
	out := CaseContext{}
	m, err := r.runJSONStage(ctx, StageContext, system, user, gateway.GenerateOpts{Temperature: 0.1, MaxTokens: 3500}, &out, func() error {
		return validateContext(out)
	})
	return out, m, err
}

// RunReport sends the drafting prompt with every photo attached and returns
// the raw report markdown. The report is not JSON: only non-emptiness and
// the expected section markers are validated.
func (r *LLMStageRunner) RunReport(ctx context.Context, cc CaseContext, photoRefs []string, userQuery string, tenant prompt.TenantInfo) (string, StageAttemptMetrics, error) {
	system, user := r.composer.ComposeReport(cc, userQuery, tenant)
	m := StageAttemptMetrics{}
	feedback := ""
	for attempt := 1; attempt <= maxStageAttempts; attempt++ {
		m.Attempts = attempt
		fullUser := user
		if feedback != "" {
			fullUser += "\n\n" + feedback
		}
		raw, err := r.gen.Generate(ctx, fullUser, gateway.GenerateOpts{
			System:      system,
			ImageRefs:   photoRefs,
			Temperature: 0.3,
			MaxTokens:   4096,
		})
		if err != nil {
			return "", m, fmt.Errorf("%s transport failure: %w", StageReport, err)
		}
		markdown := strings.TrimSpace(raw)
		if verr := validateReport(markdown, r.composer.ReportSections()); verr != nil {
			if attempt < maxStageAttempts {
				m.ContentRetries++
				feedback = fmt.Sprintf("Your previous report was rejected: %s. Produce the full markdown report with every required section heading.", verr)
				continue
			}
			return "", m, fmt.Errorf("%s failed validation: %w", StageReport, verr)
		}
		return markdown, m, nil
	}
	return "", m, fmt.Errorf("%s failed after retries", StageReport)
}

func (r *LLMStageRunner) RunEvaluation(ctx context.Context, reportMarkdown string) (CaseEvaluation, StageAttemptMetrics, error) {
	system, user := r.composer.ComposeEvaluation(reportMarkdown)
	out := CaseEvaluation{}
	m, err := r.runJSONStage(ctx, StageEvaluation, system, user, gateway.GenerateOpts{Temperature: 0.1, MaxTokens: 1500}, &out, func() error {
		return validateEvaluation(out)
	})
	return out, m, err
}

// runJSONStage is the shared JSON stage loop: generate, recover, validate,
// with corrective feedback on content failures. Transport failures never
// retry here; the gateway already resolved them one way or the other.
func (r *LLMStageRunner) runJSONStage(ctx context.Context, stageName, system, user string, opts gateway.GenerateOpts, out any, validate func() error) (StageAttemptMetrics, error) {
	m := StageAttemptMetrics{}
	feedback := ""
	for attempt := 1; attempt <= maxStageAttempts; attempt++ {
		m.Attempts = attempt
		fullUser := user
		if feedback != "" {
			fullUser += "\n\n" + feedback
		}
		opts.System = system
		raw, err := r.gen.Generate(ctx, fullUser, opts)
		if err != nil {
			return m, fmt.Errorf("%s transport failure: %w", stageName, err)
		}
		if strings.TrimSpace(raw) == "" {
			if attempt < maxStageAttempts {
				m.ContentRetries++
				feedback = "Your previous response was empty. Respond with valid JSON."
				continue
			}
			return m, fmt.Errorf("%s failed: empty response", stageName)
		}
		if perr := recovery.Parse(raw, out); perr != nil {
			if attempt < maxStageAttempts {
				m.ContentRetries++
				feedback = "Your previous response was not valid JSON. Respond with only valid JSON matching the schema."
				continue
			}
			return m, fmt.Errorf("%s failed json recovery: %w", stageName, perr)
		}
		if verr := validate(); verr != nil {
			if attempt < maxStageAttempts {
				m.ContentRetries++
				feedback = fmt.Sprintf("Your response failed validation: %s. Fix these issues.", verr)
				continue
			}
			return m, fmt.Errorf("%s failed validation: %w", stageName, verr)
		}
		r.log.Debug("stage complete", zap.String("stage", stageName), zap.Int("attempts", m.Attempts))
		return m, nil
	}
	return m, fmt.Errorf("%s failed after retries", stageName)
}

func validateContext(s CaseContext) error {
	if strings.TrimSpace(s.CaseID) == "" {
		return fmt.Errorf("caseId required")
	}
	if strings.TrimSpace(s.UserQuery) == "" {
		return fmt.Errorf("userQuery required")
	}
	if len(s.EvidenceItems) == 0 {
		return fmt.Errorf("evidenceItems required")
	}
	for i, it := range s.EvidenceItems {
		if strings.TrimSpace(it.ItemID) == "" {
			return fmt.Errorf("evidenceItems[%d]: itemId required", i)
		}
		switch it.Completeness {
		case ledger.CompletenessComplete, ledger.CompletenessPartial, ledger.CompletenessMissing:
		default:
			return fmt.Errorf("evidenceItems[%d]: invalid documentationCompleteness %q", i, it.Completeness)
		}
		if it.Completeness == ledger.CompletenessComplete && (len(it.IntakePhotos) == 0 || len(it.CheckoutPhotos) == 0) {
			return fmt.Errorf("evidenceItems[%d]: complete item must carry photos for both phases", i)
		}
	}
	for i, ref := range s.LegalReferences {
		if strings.TrimSpace(ref.Article) == "" {
			return fmt.Errorf("legalReferences[%d]: article required", i)
		}
	}
	return nil
}

const minReportChars = 200

func validateReport(markdown string, requiredSections []string) error {
	if strings.TrimSpace(markdown) == "" {
		return fmt.Errorf("empty report")
	}
	if len(markdown) < minReportChars {
		return fmt.Errorf("report too short to be usable")
	}
	var missing []string
	for _, s := range requiredSections {
		if !strings.Contains(markdown, s) {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing sections: %s", strings.Join(missing, ", "))
	}
	return nil
}

func validateEvaluation(s CaseEvaluation) error {
	if s.WinProbability == nil {
		return fmt.Errorf("winProbability required")
	}
	if *s.WinProbability < 0 || *s.WinProbability > 100 {
		return fmt.Errorf("winProbability out of range")
	}
	switch s.Confidence {
	case "high", "medium", "low":
	default:
		return fmt.Errorf("invalid confidence %q", s.Confidence)
	}
	if strings.TrimSpace(s.Summary) == "" {
		return fmt.Errorf("summary required")
	}
	switch s.CaseStrength {
	case "", "strong", "moderate", "weak":
	default:
		return fmt.Errorf("invalid caseStrength %q", s.CaseStrength)
	}
	return nil
}

// allPhotoRefs flattens every photo reference in the ledger snapshot, intake
// before checkout, items in stable order within each phase.
func allPhotoRefs(snapshot map[ledger.Phase]map[string]*ledger.EvidenceRecord) []string {
	var refs []string
	for _, phase := range []ledger.Phase{ledger.PhaseIntake, ledger.PhaseCheckout} {
		records := snapshot[phase]
		ids := make([]string, 0, len(records))
		for id := range records {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			refs = append(refs, records[id].Photos...)
		}
	}
	return refs
}
