package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ValidationError reports an invariant violation in the ledger. It is fatal
// to the offending operation, never to the surrounding pipeline run.
type ValidationError struct {
	Op     string
	ItemID string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.ItemID, e.Reason)
}

type recordKey struct {
	ItemID string
	Phase  Phase
}

// Ledger is the canonical per-inspection-item record of intake and checkout
// evidence. It is the single source of truth consumed by every prompt.
//
// Appends to different (item, phase) keys proceed independently; appends to
// the same key serialize, so the photo list order is exactly call order.
type Ledger struct {
	clock func() time.Time

	mu      sync.Mutex
	items   map[string]InspectionItem
	order   []string
	records map[recordKey]*EvidenceRecord
	locks   map[recordKey]*sync.Mutex
}

type Option func(*Ledger)

// WithClock overrides the capture-timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

func New(items []InspectionItem, opts ...Option) *Ledger {
	l := &Ledger{
		clock:   time.Now,
		items:   make(map[string]InspectionItem, len(items)),
		records: map[recordKey]*EvidenceRecord{},
		locks:   map[recordKey]*sync.Mutex{},
	}
	for _, it := range items {
		if _, dup := l.items[it.ID]; dup {
			continue
		}
		l.items[it.ID] = it
		l.order = append(l.order, it.ID)
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Items returns the inspection checklist in its original order.
func (l *Ledger) Items() []InspectionItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]InspectionItem, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.items[id])
	}
	return out
}

func (l *Ledger) lockFor(key recordKey) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// RecordEvidence appends photoRefs to the evidence record for (itemID, phase),
// creating the record on first use. Creating a record with zero photos is a
// ValidationError: a record must start with at least one piece of evidence.
func (l *Ledger) RecordEvidence(itemID string, phase Phase, photoRefs []string, notes string) (*EvidenceRecord, error) {
	if phase != PhaseIntake && phase != PhaseCheckout {
		return nil, &ValidationError{Op: "record evidence", ItemID: itemID, Reason: fmt.Sprintf("unknown phase %q", phase)}
	}
	l.mu.Lock()
	_, known := l.items[itemID]
	l.mu.Unlock()
	if !known {
		return nil, &ValidationError{Op: "record evidence", ItemID: itemID, Reason: "unknown inspection item"}
	}

	key := recordKey{ItemID: itemID, Phase: phase}
	lock := l.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	now := l.clock()

	l.mu.Lock()
	rec, exists := l.records[key]
	l.mu.Unlock()

	if !exists {
		if len(photoRefs) == 0 {
			return nil, &ValidationError{Op: "record evidence", ItemID: itemID, Reason: "cannot create a record with zero photos"}
		}
		if err := l.checkPhaseOrder(itemID, phase, now); err != nil {
			return nil, err
		}
		rec = &EvidenceRecord{
			ItemID:     itemID,
			Phase:      phase,
			Photos:     append([]string(nil), photoRefs...),
			Notes:      notes,
			CapturedAt: now,
		}
		l.mu.Lock()
		l.records[key] = rec
		l.mu.Unlock()
		return rec.copy(), nil
	}

	rec.Photos = append(rec.Photos, photoRefs...)
	if notes != "" {
		rec.Notes = notes
	}
	return rec.copy(), nil
}

// checkPhaseOrder enforces that intake capture never postdates an existing
// checkout capture for the same item.
func (l *Ledger) checkPhaseOrder(itemID string, phase Phase, at time.Time) error {
	l.mu.Lock()
	intake := l.records[recordKey{ItemID: itemID, Phase: PhaseIntake}]
	checkout := l.records[recordKey{ItemID: itemID, Phase: PhaseCheckout}]
	l.mu.Unlock()

	switch phase {
	case PhaseIntake:
		if checkout != nil && at.After(checkout.CapturedAt) {
			return &ValidationError{Op: "record evidence", ItemID: itemID, Reason: "intake capture would postdate checkout capture"}
		}
	case PhaseCheckout:
		if intake != nil && at.Before(intake.CapturedAt) {
			return &ValidationError{Op: "record evidence", ItemID: itemID, Reason: "checkout capture would predate intake capture"}
		}
	}
	return nil
}

// AttachAnalysis appends a new DamageAnalysis to the item's checkout record.
// Prior analyses are kept and remain retrievable by timestamp; the newest one
// supersedes them.
func (l *Ledger) AttachAnalysis(itemID string, analysis DamageAnalysis) error {
	key := recordKey{ItemID: itemID, Phase: PhaseCheckout}
	lock := l.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	l.mu.Lock()
	rec := l.records[key]
	l.mu.Unlock()
	if rec == nil {
		return &ValidationError{Op: "attach analysis", ItemID: itemID, Reason: "no checkout record exists"}
	}
	if analysis.AnalyzedAt.IsZero() {
		analysis.AnalyzedAt = l.clock()
	}
	rec.Analyses = append(rec.Analyses, analysis)
	return nil
}

// Record returns a copy of the evidence record for (itemID, phase), or nil.
func (l *Ledger) Record(itemID string, phase Phase) *EvidenceRecord {
	key := recordKey{ItemID: itemID, Phase: phase}
	lock := l.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	l.mu.Lock()
	rec := l.records[key]
	l.mu.Unlock()
	if rec == nil {
		return nil
	}
	return rec.copy()
}

// CompletenessOf classifies the documentation state of one item: complete when
// both phases hold at least one photo, missing when neither does, partial
// otherwise. Any non-empty but incomplete photo set counts as partial; the
// ledger does not infer angle-level completeness.
func (l *Ledger) CompletenessOf(itemID string) Completeness {
	intake := l.Record(itemID, PhaseIntake)
	checkout := l.Record(itemID, PhaseCheckout)
	intakeHas := intake != nil && len(intake.Photos) > 0
	checkoutHas := checkout != nil && len(checkout.Photos) > 0
	switch {
	case intakeHas && checkoutHas:
		return CompletenessComplete
	case !intakeHas && !checkoutHas:
		return CompletenessMissing
	default:
		return CompletenessPartial
	}
}

// MissingDocumentationReport enumerates every item whose documentation is not
// complete, with a description of the gap. The report feeds the stage-1
// evidence-gap narrative and fatal-failure remediation messages.
func (l *Ledger) MissingDocumentationReport() []Gap {
	var gaps []Gap
	for _, it := range l.Items() {
		comp := l.CompletenessOf(it.ID)
		if comp == CompletenessComplete {
			continue
		}
		intake := l.Record(it.ID, PhaseIntake)
		checkout := l.Record(it.ID, PhaseCheckout)
		var desc string
		switch {
		case comp == CompletenessMissing:
			desc = fmt.Sprintf("no intake or checkout photos for %s", it.Name)
		case intake == nil || len(intake.Photos) == 0:
			desc = fmt.Sprintf("no intake photos for %s; cannot prove pre-existing condition", it.Name)
		case checkout == nil || len(checkout.Photos) == 0:
			desc = fmt.Sprintf("no checkout photos for %s; cannot prove condition at return", it.Name)
		}
		gaps = append(gaps, Gap{ItemID: it.ID, Description: desc})
	}
	return gaps
}

// Snapshot returns all evidence records grouped by phase, keyed by item ID,
// in a stable order. Prompts are composed from this view.
func (l *Ledger) Snapshot() map[Phase]map[string]*EvidenceRecord {
	out := map[Phase]map[string]*EvidenceRecord{
		PhaseIntake:   {},
		PhaseCheckout: {},
	}
	l.mu.Lock()
	keys := make([]recordKey, 0, len(l.records))
	for k := range l.records {
		keys = append(keys, k)
	}
	l.mu.Unlock()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ItemID != keys[j].ItemID {
			return keys[i].ItemID < keys[j].ItemID
		}
		return keys[i].Phase < keys[j].Phase
	})
	for _, k := range keys {
		out[k.Phase][k.ItemID] = l.Record(k.ItemID, k.Phase)
	}
	return out
}

func (r *EvidenceRecord) copy() *EvidenceRecord {
	cp := *r
	cp.Photos = append([]string(nil), r.Photos...)
	cp.Analyses = append([]DamageAnalysis(nil), r.Analyses...)
	return &cp
}
