package ledger

import "time"

type Phase string

const (
	PhaseIntake   Phase = "intake"
	PhaseCheckout Phase = "checkout"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
)

type StateGrade string

const (
	GradeAPlus StateGrade = "A+"
	GradeA     StateGrade = "A"
	GradeB     StateGrade = "B"
	GradeC     StateGrade = "C"
	GradeD     StateGrade = "D"
	GradeF     StateGrade = "F"
)

type Completeness string

const (
	CompletenessComplete Completeness = "complete"
	CompletenessPartial  Completeness = "partial"
	CompletenessMissing  Completeness = "missing"
)

// InspectionItem is one entry of the inspection checklist generated during
// contract analysis. Items are immutable once created; the Reason field ties
// the item back to the contract clause that motivated it.
type InspectionItem struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Room              string   `json:"room,omitempty"`
	Description       string   `json:"description,omitempty"`
	PhotoAngles       []string `json:"photoAngles,omitempty"`
	RecommendedPhotos int      `json:"recommendedPhotos,omitempty"`
	Priority          Priority `json:"priority"`
	Reason            string   `json:"reason,omitempty"`
	ContractReference string   `json:"contractReference,omitempty"`
}

// DamageAnalysis is the structured verdict of one comparison pass over an
// item's before/after photo sets. A later pass supersedes, never mutates, the
// prior one; the ledger keeps the full history ordered by AnalyzedAt.
//
// Optional fields are pointers so that unset values are omitted when the
// record is persisted: the document store rejects writes containing
// null-equivalents for absent optionals.
type DamageAnalysis struct {
	HasDamage          bool        `json:"hasDamage"`
	Severity           Severity    `json:"severity"`
	IsNormalWear       bool        `json:"isNormalWear"`
	TenantLiable       bool        `json:"tenantLiable"`
	Description        string      `json:"description,omitempty"`
	LiabilityReasoning string      `json:"liabilityReasoning,omitempty"`
	DamageTypes        []string    `json:"damageTypes,omitempty"`
	SpecificIssues     []string    `json:"specificIssues,omitempty"`
	StateGrade         *StateGrade `json:"stateGrade,omitempty"`
	PhotosAnalyzed     *int        `json:"photosAnalyzed,omitempty"`
	SameLocation       *bool       `json:"sameLocation,omitempty"`
	LocationConfidence string      `json:"locationConfidence,omitempty"`
	AnalyzedAt         time.Time   `json:"analyzedAt"`
}

// EvidenceRecord holds the photographic evidence captured for one
// (inspection item, phase) pair. The photo list is append-only.
type EvidenceRecord struct {
	ItemID     string           `json:"itemId"`
	Phase      Phase            `json:"phase"`
	Photos     []string         `json:"photos"`
	Notes      string           `json:"notes,omitempty"`
	CapturedAt time.Time        `json:"capturedAt"`
	Analyses   []DamageAnalysis `json:"analyses,omitempty"`
}

// LatestAnalysis returns the superseding analysis, or nil when no comparison
// pass has run for this record yet.
func (r *EvidenceRecord) LatestAnalysis() *DamageAnalysis {
	if len(r.Analyses) == 0 {
		return nil
	}
	return &r.Analyses[len(r.Analyses)-1]
}

// Gap describes one documentation gap surfaced by the ledger.
type Gap struct {
	ItemID      string `json:"itemId"`
	Description string `json:"description"`
}

type ClauseStatus string

const (
	ClauseClean   ClauseStatus = "clean"
	ClauseWarning ClauseStatus = "warning"
	ClauseRisk    ClauseStatus = "risk"
)

type Clause struct {
	Section        string       `json:"section"`
	Text           string       `json:"text"`
	Status         ClauseStatus `json:"status"`
	Note           string       `json:"note,omitempty"`
	LegalReference string       `json:"legalReference,omitempty"`
}

type Irregularity struct {
	Issue      string `json:"issue"`
	Severity   string `json:"severity"`
	LegalBasis string `json:"legalBasis,omitempty"`
	ClauseText string `json:"clauseText,omitempty"`
	Location   string `json:"location,omitempty"`
}

type InfoItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Icon  string `json:"icon,omitempty"`
}

type Responsibilities struct {
	Tenant []string `json:"tenant,omitempty"`
	Lessor []string `json:"lessor,omitempty"`
}

// LeaseData is the structured lease-contract data produced by the upstream
// document analysis. The defense core only reads it.
type LeaseData struct {
	Title            string            `json:"title,omitempty"`
	AssetType        string            `json:"assetType"`
	AssetName        string            `json:"assetName,omitempty"`
	RiskScore        int               `json:"riskScore,omitempty"`
	Info             []InfoItem        `json:"info,omitempty"`
	Clauses          []Clause          `json:"clauses,omitempty"`
	Irregularities   []Irregularity    `json:"irregularities,omitempty"`
	Responsibilities *Responsibilities `json:"responsibilities,omitempty"`
	Recommendations  []string          `json:"recommendations,omitempty"`
	InspectionItems  []InspectionItem  `json:"inspectionItems,omitempty"`
	StartDate        string            `json:"startDate,omitempty"`
	EndDate          string            `json:"endDate,omitempty"`
}
