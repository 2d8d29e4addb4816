package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pauamargant/leaseCare-lauzhack/internal/ledger"
)

// Every stage prompt ends with its output-schema description. The recovery
// heuristics downstream assume a JSON object dominates the response, so the
// schema section is never omitted.

const contextSchemaPrompt = `OUTPUT FORMAT (JSON only, no markdown):
{
  "caseId": "CASE-<identifier>",
  "userQuery": "exact user question",
  "leaseContext": {
    "assetType": "...",
    "assetName": "...",
    "riskScore": 0,
    "clauses": [{"section": "...", "text": "full clause text", "status": "clean|warning|risk", "note": "legal implications", "legalReference": "Art. XXX CO"}],
    "responsibilities": {"tenant": ["..."], "lessor": ["..."]},
    "irregularities": ["..."]
  },
  "evidenceItems": [{
    "itemId": "...",
    "itemName": "...",
    "priority": "high|medium|low",
    "intakePhotos": ["exact-url"],
    "checkoutPhotos": ["exact-url"],
    "documentationCompleteness": "complete|partial|missing",
    "missingPhotos": {"intakeMissing": false, "checkoutMissing": false, "details": "..."},
    "damageAnalysis": {"hasDamage": false, "severity": "none|minor|moderate|major", "isNormalWear": true, "tenantLiable": false, "description": "..."},
    "relevanceToQuery": "high|medium|low",
    "concerns": ["..."]
  }],
  "legalReferences": [{"article": "Art. XXX CO", "topic": "...", "relevance": "..."}],
  "keyFactors": {"strengths": ["..."], "weaknesses": ["..."], "criticalEvidence": ["..."], "timelineFacts": ["..."]}
}
Preserve all photo URLs exactly as provided. Flag every documentation gap.`

const evaluationSchemaPrompt = `OUTPUT FORMAT (JSON only, no markdown):
{
  "winProbability": 0,
  "confidence": "high|medium|low",
  "summary": "concise case assessment, 150 chars max",
  "caseStrength": "strong|moderate|weak",
  "keyStrength": "single most powerful argument",
  "keyWeakness": "most significant vulnerability",
  "riskFactors": ["..."],
  "missingEvidenceImpact": {"itemsWithMissingPhotos": 0, "severityOfGaps": "none|minor|moderate|severe", "impactOnCase": "..."},
  "recommendations": ["..."],
  "nextSteps": {"immediate": "...", "ifDisputed": "...", "escalation": "..."}
}
Be realistic, not optimistic. Justify the probability with specific factors.`

// TenantInfo identifies the tenant the case is prepared for. Optional.
type TenantInfo struct {
	Name     string
	Location string
}

type ContextInput struct {
	Lease     *ledger.LeaseData
	Items     []ledger.InspectionItem
	Evidence  map[ledger.Phase]map[string]*ledger.EvidenceRecord
	Gaps      []ledger.Gap
	UserQuery string
	Tenant    TenantInfo
}

type Composer struct {
	cat          *Catalogue
	jurisdiction string
}

// NewComposer builds a composer for the given catalogue. A non-empty
// jurisdiction (e.g. a canton) overrides the catalogue default.
func NewComposer(cat *Catalogue, jurisdiction string) *Composer {
	if jurisdiction == "" {
		jurisdiction = cat.Jurisdiction
	}
	return &Composer{cat: cat, jurisdiction: jurisdiction}
}

func (c *Composer) tenantBlock(t TenantInfo) string {
	if t.Name == "" && t.Location == "" {
		return "- Information not provided"
	}
	name := t.Name
	if name == "" {
		name = "Not provided"
	}
	loc := t.Location
	if loc == "" {
		loc = "Not specified"
	}
	return fmt.Sprintf("- Name: %s\n- Location: %s", name, loc)
}

// ComposeContext renders the stage-1 extraction prompt: the full lease data,
// the complete evidence ledger grouped by phase, and the documentation gaps,
// under the extraction rubric.
func (c *Composer) ComposeContext(in ContextInput) (system, user string) {
	var sys strings.Builder
	fmt.Fprintf(&sys, `You are an expert legal case preparation specialist with deep knowledge of Swiss rental law (Code of Obligations).

JURISDICTION: %s - apply canton-specific regulations where applicable.

TENANT INFORMATION:
%s

Your role is to extract, organize, and structure ALL relevant information for a tenant defense case into one JSON context document.

EXTRACTION REQUIREMENTS:
1. Lease context: every information item, every clause with full text, status and legal implications, the complete responsibilities breakdown, risk score and irregularities.
2. Evidence items: for each inspection item, all intake and checkout photo URLs preserved exactly, photo counts per phase, missing-photo flags, the damage analysis results, and documentation completeness (complete/partial/missing).
3. Legal analysis: identify the applicable articles from this catalogue:
%s
Core principles:
%s
4. Strategic factors: strongest evidence points, weaknesses, key contractual protections, timeline compliance.

Missing photos severely weaken a defense. Document ALL gaps clearly.

%s`,
		c.jurisdiction,
		c.tenantBlock(in.Tenant),
		c.cat.articleList(),
		c.cat.principleList(),
		contextSchemaPrompt)

	var usr strings.Builder
	fmt.Fprintf(&usr, "User Query: %q\n\n", in.UserQuery)
	fmt.Fprintf(&usr, "Lease Data: %s\n\n", mustJSON(in.Lease))
	fmt.Fprintf(&usr, "Inspection Checklist: %s\n\n", mustJSON(in.Items))
	fmt.Fprintf(&usr, "Intake Evidence: %s\n\n", mustJSON(in.Evidence[ledger.PhaseIntake]))
	fmt.Fprintf(&usr, "Checkout Evidence: %s\n\n", mustJSON(in.Evidence[ledger.PhaseCheckout]))
	if len(in.Gaps) > 0 {
		fmt.Fprintf(&usr, "Known Documentation Gaps: %s\n\n", mustJSON(in.Gaps))
	}
	usr.WriteString("Extract and structure all relevant information for the defense case.")
	return sys.String(), usr.String()
}

// ComposeReport renders the stage-2 drafting prompt from the recovered case
// context. The photo references travel separately as image attachments; the
// prompt instructs the model to reference them verbatim.
func (c *Composer) ComposeReport(caseContext any, userQuery string, in TenantInfo) (system, user string) {
	var sections strings.Builder
	for i, s := range c.cat.ReportSections {
		fmt.Fprintf(&sections, "## %d. %s\n", i+1, s)
	}

	var sys strings.Builder
	fmt.Fprintf(&sys, `You are a senior Swiss rental law attorney specializing in tenant defense cases under the Swiss Code of Obligations (Art. 253-274g CO): deposit disputes, damage assessments, and normal wear vs. liability determinations.

JURISDICTION: %s - apply cantonal law and local tenant protections.

CLIENT INFORMATION:
%s

TASK: Generate a comprehensive, legally sound defense report from the structured case context, the attached intake and checkout photos, and the client's concern.

METHODOLOGY:
1. Visual evidence review: examine every photo pair, flag items with incomplete documentation and assess the impact of missing photos on case strength.
2. Lease contract analysis: review all clauses for tenant protections, liability limitations, and unfair or illegal terms.
3. Legal framework: apply the relevant articles, citing only those that bear on this case:
%s
4. Damage vs. normal wear determination per item: classify each change, consider tenancy duration, and determine liability.

REPORT STRUCTURE (markdown, these exact section headings):
%s
Under Evidence Analysis, cover each inspection item with its documentation status, intake condition, checkout condition, damage assessment with legal basis, and the defense position for that item. Reference photo URLs verbatim, never through placeholders.

CITATION FORMAT: always wrap law citations in ** markers, e.g. **Art. 267 CO** or **OR Art. 259b**, never a bare Art. reference. Cited articles become clickable explanations for the client.

Missing intake photos weaken proof of pre-existing conditions; missing checkout photos let the landlord claim unverified damage. Highlight every gap and its consequence.

This report will be used for actual legal defense. Do not fabricate evidence or amounts.`,
		c.jurisdiction,
		c.tenantBlock(in),
		c.cat.articleList(),
		sections.String())

	user = fmt.Sprintf("Case Context:\n%s\n\nClient's Concern: %q\n\nAnalyze ALL attached images and generate the defense report.", mustJSON(caseContext), userQuery)
	return sys.String(), user
}

// ComposeEvaluation renders the stage-3 scoring prompt over the finished
// report text.
func (c *Composer) ComposeEvaluation(reportText string) (system, user string) {
	var sys strings.Builder
	fmt.Fprintf(&sys, `You are a senior legal strategist evaluating Swiss rental law cases. Assess the defense report below realistically against these criteria:

1. Evidence quality (0-30): documentation completeness, intake vs. checkout comparison clarity. Deduct heavily for missing photos.
2. Legal merit (0-40): strength of arguments, applicability of the cited CO articles, normal wear classification.
3. Financial reasonableness (0-15): claimed amounts vs. actual damage, deposit proportionality.
4. Procedural compliance (0-15): timelines, notice requirements, documentation standards.

Outcome factors: Swiss conciliation boards favor tenants in wear disputes; the burden of proof for damage lies with the landlord (%s).

WIN PROBABILITY SCALE:
%s
%s`,
		c.jurisdiction,
		c.cat.bandList(),
		evaluationSchemaPrompt)

	user = fmt.Sprintf("Defense Report:\n%s\n\nEvaluate this case and provide win probability with summary.", reportText)
	return sys.String(), user
}

// ReportSections exposes the section headings every defense report must
// carry, in order. Stage-2 validation checks for their presence.
func (c *Composer) ReportSections() []string {
	return c.cat.ReportSections
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
