// Package defense runs the three-stage tenant defense pipeline: context
// extraction, report drafting, case evaluation. Stages execute strictly in
// order; each prompt is built from the prior stage's validated output.
package defense

import (
	"time"

	"github.com/pauamargant/leaseCare-lauzhack/internal/ledger"
	"github.com/pauamargant/leaseCare-lauzhack/internal/prompt"
)

const (
	StageContext    = "context"
	StageReport     = "report"
	StageEvaluation = "evaluation"
)

type RunMode string

const (
	RunModeComplete RunMode = "complete"
	// RunModeDegraded means the evaluation stage failed and a neutral
	// placeholder evaluation was substituted.
	RunModeDegraded RunMode = "degraded"
)

// CaseContext is the stage-1 output: the structured foundation every later
// stage builds on. It lives only for the duration of one run.
type CaseContext struct {
	CaseID          string           `json:"caseId"`
	UserQuery       string           `json:"userQuery"`
	LeaseContext    LeaseContext     `json:"leaseContext"`
	EvidenceItems   []EvidenceItem   `json:"evidenceItems"`
	LegalReferences []LegalReference `json:"legalReferences"`
	KeyFactors      KeyFactors       `json:"keyFactors"`
}

type LeaseContext struct {
	AssetType        string                  `json:"assetType"`
	AssetName        string                  `json:"assetName"`
	RiskScore        int                     `json:"riskScore"`
	Clauses          []ledger.Clause         `json:"clauses"`
	Responsibilities ledger.Responsibilities `json:"responsibilities"`
	Irregularities   []string                `json:"irregularities"`
}

type EvidenceItem struct {
	ItemID           string                 `json:"itemId"`
	ItemName         string                 `json:"itemName"`
	Priority         ledger.Priority        `json:"priority"`
	IntakePhotos     []string               `json:"intakePhotos"`
	CheckoutPhotos   []string               `json:"checkoutPhotos"`
	Completeness     ledger.Completeness    `json:"documentationCompleteness"`
	MissingPhotos    MissingPhotos          `json:"missingPhotos"`
	DamageAnalysis   *ledger.DamageAnalysis `json:"damageAnalysis,omitempty"`
	RelevanceToQuery string                 `json:"relevanceToQuery"`
	Concerns         []string               `json:"concerns"`
}

type MissingPhotos struct {
	IntakeMissing   bool   `json:"intakeMissing"`
	CheckoutMissing bool   `json:"checkoutMissing"`
	Details         string `json:"details,omitempty"`
}

type LegalReference struct {
	Article   string `json:"article"`
	Topic     string `json:"topic"`
	Relevance string `json:"relevance"`
}

type KeyFactors struct {
	Strengths        []string `json:"strengths"`
	Weaknesses       []string `json:"weaknesses"`
	CriticalEvidence []string `json:"criticalEvidence"`
	TimelineFacts    []string `json:"timelineFacts"`
}

// BlockType classifies one content block of a parsed defense report.
type BlockType string

const (
	BlockHeading            BlockType = "heading"
	BlockText               BlockType = "text"
	BlockEvidenceComparison BlockType = "evidence-comparison"
	BlockTimeline           BlockType = "timeline"
	BlockRecommendation     BlockType = "recommendation"
)

type ReportBlock struct {
	Type  BlockType `json:"type"`
	Level int       `json:"level,omitempty"`
	Text  string    `json:"text"`
}

// DefenseReport is the stage-2 output: the report markdown as the model wrote
// it (citations marked), plus its parsed block structure and the distinct
// legal citations it carries.
type DefenseReport struct {
	Markdown  string        `json:"markdown"`
	Blocks    []ReportBlock `json:"blocks"`
	Citations []string      `json:"citations"`
}

// CaseEvaluation is the stage-3 output. WinProbability is a pointer because a
// degraded run returns a neutral evaluation with the probability unset.
type CaseEvaluation struct {
	WinProbability  *int                   `json:"winProbability,omitempty"`
	Confidence      string                 `json:"confidence"`
	Summary         string                 `json:"summary"`
	CaseStrength    string                 `json:"caseStrength,omitempty"`
	KeyStrength     string                 `json:"keyStrength,omitempty"`
	KeyWeakness     string                 `json:"keyWeakness,omitempty"`
	RiskFactors     []string               `json:"riskFactors,omitempty"`
	MissingEvidence *MissingEvidenceImpact `json:"missingEvidenceImpact,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
	NextSteps       *NextSteps             `json:"nextSteps,omitempty"`
}

type MissingEvidenceImpact struct {
	ItemsWithMissingPhotos int    `json:"itemsWithMissingPhotos"`
	SeverityOfGaps         string `json:"severityOfGaps"`
	ImpactOnCase           string `json:"impactOnCase"`
}

type NextSteps struct {
	Immediate  string `json:"immediate"`
	IfDisputed string `json:"ifDisputed"`
	Escalation string `json:"escalation"`
}

// EvidenceSource is the slice of the ledger the pipeline reads. Both the
// in-memory and the SQLite-backed ledgers satisfy it.
type EvidenceSource interface {
	Items() []ledger.InspectionItem
	Snapshot() map[ledger.Phase]map[string]*ledger.EvidenceRecord
	MissingDocumentationReport() []ledger.Gap
}

// RunRequest describes one pipeline run for one lease.
type RunRequest struct {
	LeaseID   string
	Lease     *ledger.LeaseData
	Evidence  EvidenceSource
	UserQuery string
	Tenant    prompt.TenantInfo
}

type StageAttemptMetrics struct {
	Attempts       int `json:"attempts"`
	ContentRetries int `json:"contentRetries"`
}

type RunMetadata struct {
	StartedAt   time.Time                      `json:"startedAt"`
	CompletedAt time.Time                      `json:"completedAt"`
	Mode        RunMode                        `json:"mode"`
	StageFailed string                         `json:"stageFailed,omitempty"`
	Attempts    map[string]StageAttemptMetrics `json:"attempts"`
}

// RunResult is the terminal artifact of one pipeline run.
type RunResult struct {
	LeaseID    string         `json:"leaseId"`
	Context    CaseContext    `json:"context"`
	Report     DefenseReport  `json:"report"`
	Evaluation CaseEvaluation `json:"evaluation"`
	Metadata   RunMetadata    `json:"metadata"`
}
