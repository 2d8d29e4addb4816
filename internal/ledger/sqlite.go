package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteLedger persists an evidence ledger for one lease with write-through
// semantics. Validation and ordering live in the embedded in-memory Ledger;
// SQLite only mirrors accepted state, so a rejected append never reaches disk.
//
// Optional analysis fields that were never produced are stored as NULL, never
// as empty-string or zero stand-ins, so a reload reproduces the same absent
// pointers the analyzer left behind.
type SQLiteLedger struct {
	inner   *Ledger
	db      *sqlx.DB
	leaseID string
	mu      sync.Mutex
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS inspection_items (
	lease_id           TEXT NOT NULL,
	item_id            TEXT NOT NULL,
	name               TEXT NOT NULL DEFAULT '',
	room               TEXT NOT NULL DEFAULT '',
	description        TEXT NOT NULL DEFAULT '',
	photo_angles       TEXT NOT NULL DEFAULT '[]',
	recommended_photos INTEGER NOT NULL DEFAULT 0,
	priority           TEXT NOT NULL DEFAULT '',
	reason             TEXT NOT NULL DEFAULT '',
	contract_reference TEXT NOT NULL DEFAULT '',
	position           INTEGER NOT NULL,
	PRIMARY KEY (lease_id, item_id)
);

CREATE TABLE IF NOT EXISTS evidence_records (
	lease_id    TEXT NOT NULL,
	item_id     TEXT NOT NULL,
	phase       TEXT NOT NULL,
	photos      TEXT NOT NULL DEFAULT '[]',
	notes       TEXT NOT NULL DEFAULT '',
	captured_at TEXT NOT NULL,
	PRIMARY KEY (lease_id, item_id, phase)
);

CREATE TABLE IF NOT EXISTS damage_analyses (
	lease_id            TEXT NOT NULL,
	item_id             TEXT NOT NULL,
	position            INTEGER NOT NULL,
	has_damage          INTEGER NOT NULL DEFAULT 0,
	severity            TEXT NOT NULL DEFAULT 'none',
	is_normal_wear      INTEGER NOT NULL DEFAULT 0,
	tenant_liable       INTEGER NOT NULL DEFAULT 0,
	description         TEXT NOT NULL DEFAULT '',
	liability_reasoning TEXT NOT NULL DEFAULT '',
	damage_types        TEXT NOT NULL DEFAULT '[]',
	specific_issues     TEXT NOT NULL DEFAULT '[]',
	state_grade         TEXT,
	photos_analyzed     INTEGER,
	same_location       INTEGER,
	location_confidence TEXT NOT NULL DEFAULT '',
	analyzed_at         TEXT NOT NULL,
	PRIMARY KEY (lease_id, item_id, position)
);
`

func NewSQLiteLedger(dbPath, leaseID string, items []InspectionItem, opts ...Option) (*SQLiteLedger, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &SQLiteLedger{
		inner:   New(items, opts...),
		db:      db,
		leaseID: leaseID,
	}

	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}
	if err := s.saveItems(); err != nil {
		db.Close()
		return nil, fmt.Errorf("save checklist: %w", err)
	}

	return s, nil
}

func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}

// --- load persisted state into the in-memory Ledger ---

func (s *SQLiteLedger) loadAll() error {
	if err := s.loadItems(); err != nil {
		return err
	}
	if err := s.loadRecords(); err != nil {
		return err
	}
	return s.loadAnalyses()
}

func (s *SQLiteLedger) loadItems() error {
	rows, err := s.db.Query("SELECT item_id, name, room, description, photo_angles, recommended_photos, priority, reason, contract_reference FROM inspection_items WHERE lease_id = ? ORDER BY position", s.leaseID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it InspectionItem
		var anglesJSON string
		if err := rows.Scan(&it.ID, &it.Name, &it.Room, &it.Description, &anglesJSON, &it.RecommendedPhotos, &it.Priority, &it.Reason, &it.ContractReference); err != nil {
			return err
		}
		_ = json.Unmarshal([]byte(anglesJSON), &it.PhotoAngles)
		s.inner.mu.Lock()
		if _, known := s.inner.items[it.ID]; !known {
			s.inner.items[it.ID] = it
			s.inner.order = append(s.inner.order, it.ID)
		}
		s.inner.mu.Unlock()
	}
	return rows.Err()
}

func (s *SQLiteLedger) loadRecords() error {
	rows, err := s.db.Query("SELECT item_id, phase, photos, notes, captured_at FROM evidence_records WHERE lease_id = ?", s.leaseID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var rec EvidenceRecord
		var photosJSON, capturedAt string
		if err := rows.Scan(&rec.ItemID, &rec.Phase, &photosJSON, &rec.Notes, &capturedAt); err != nil {
			return err
		}
		_ = json.Unmarshal([]byte(photosJSON), &rec.Photos)
		rec.CapturedAt, _ = time.Parse(time.RFC3339Nano, capturedAt)
		s.inner.mu.Lock()
		s.inner.records[recordKey{ItemID: rec.ItemID, Phase: rec.Phase}] = &rec
		s.inner.mu.Unlock()
	}
	return rows.Err()
}

func (s *SQLiteLedger) loadAnalyses() error {
	rows, err := s.db.Query(`SELECT item_id, has_damage, severity, is_normal_wear, tenant_liable,
		description, liability_reasoning, damage_types, specific_issues,
		state_grade, photos_analyzed, same_location, location_confidence, analyzed_at
		FROM damage_analyses WHERE lease_id = ? ORDER BY item_id, position`, s.leaseID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a DamageAnalysis
		var itemID, typesJSON, issuesJSON, analyzedAt string
		var hasDamage, isNormalWear, tenantLiable int
		var grade sql.NullString
		var photosAnalyzed, sameLocation sql.NullInt64
		if err := rows.Scan(&itemID, &hasDamage, &a.Severity, &isNormalWear, &tenantLiable,
			&a.Description, &a.LiabilityReasoning, &typesJSON, &issuesJSON,
			&grade, &photosAnalyzed, &sameLocation, &a.LocationConfidence, &analyzedAt); err != nil {
			return err
		}
		a.HasDamage = hasDamage != 0
		a.IsNormalWear = isNormalWear != 0
		a.TenantLiable = tenantLiable != 0
		_ = json.Unmarshal([]byte(typesJSON), &a.DamageTypes)
		_ = json.Unmarshal([]byte(issuesJSON), &a.SpecificIssues)
		if grade.Valid {
			g := StateGrade(grade.String)
			a.StateGrade = &g
		}
		if photosAnalyzed.Valid {
			n := int(photosAnalyzed.Int64)
			a.PhotosAnalyzed = &n
		}
		if sameLocation.Valid {
			b := sameLocation.Int64 != 0
			a.SameLocation = &b
		}
		a.AnalyzedAt, _ = time.Parse(time.RFC3339Nano, analyzedAt)

		s.inner.mu.Lock()
		rec := s.inner.records[recordKey{ItemID: itemID, Phase: PhaseCheckout}]
		if rec != nil {
			rec.Analyses = append(rec.Analyses, a)
		}
		s.inner.mu.Unlock()
	}
	return rows.Err()
}

// --- persist helpers ---

func ledgerTimeToString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func ledgerJSON(v any) string {
	if v == nil {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func nullGrade(g *StateGrade) sql.NullString {
	if g == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*g), Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func nullBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	var v int64
	if *b {
		v = 1
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func ledgerBoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteLedger) saveItems() error {
	for i, it := range s.inner.Items() {
		_, err := s.db.Exec(`INSERT OR REPLACE INTO inspection_items (lease_id, item_id, name, room, description, photo_angles, recommended_photos, priority, reason, contract_reference, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.leaseID, it.ID, it.Name, it.Room, it.Description,
			ledgerJSON(it.PhotoAngles), it.RecommendedPhotos, string(it.Priority),
			it.Reason, it.ContractReference, i,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteLedger) saveRecord(rec *EvidenceRecord) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO evidence_records (lease_id, item_id, phase, photos, notes, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.leaseID, rec.ItemID, string(rec.Phase),
		ledgerJSON(rec.Photos), rec.Notes, ledgerTimeToString(rec.CapturedAt),
	)
	return err
}

func (s *SQLiteLedger) saveAnalyses(itemID string, analyses []DamageAnalysis) error {
	for i, a := range analyses {
		_, err := s.db.Exec(`INSERT OR REPLACE INTO damage_analyses (lease_id, item_id, position,
			has_damage, severity, is_normal_wear, tenant_liable,
			description, liability_reasoning, damage_types, specific_issues,
			state_grade, photos_analyzed, same_location, location_confidence, analyzed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.leaseID, itemID, i,
			ledgerBoolToInt(a.HasDamage), string(a.Severity), ledgerBoolToInt(a.IsNormalWear), ledgerBoolToInt(a.TenantLiable),
			a.Description, a.LiabilityReasoning, ledgerJSON(a.DamageTypes), ledgerJSON(a.SpecificIssues),
			nullGrade(a.StateGrade), nullInt(a.PhotosAnalyzed), nullBool(a.SameLocation), a.LocationConfidence, ledgerTimeToString(a.AnalyzedAt),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- write-through ledger operations ---

func (s *SQLiteLedger) RecordEvidence(itemID string, phase Phase, photoRefs []string, notes string) (*EvidenceRecord, error) {
	rec, err := s.inner.RecordEvidence(itemID, phase, photoRefs, notes)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if perr := s.saveRecord(rec); perr != nil {
		return nil, perr
	}
	return rec, nil
}

func (s *SQLiteLedger) AttachAnalysis(itemID string, analysis DamageAnalysis) error {
	if err := s.inner.AttachAnalysis(itemID, analysis); err != nil {
		return err
	}
	rec := s.inner.Record(itemID, PhaseCheckout)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAnalyses(itemID, rec.Analyses)
}

func (s *SQLiteLedger) Items() []InspectionItem { return s.inner.Items() }

func (s *SQLiteLedger) Record(itemID string, phase Phase) *EvidenceRecord {
	return s.inner.Record(itemID, phase)
}

func (s *SQLiteLedger) CompletenessOf(itemID string) Completeness {
	return s.inner.CompletenessOf(itemID)
}

func (s *SQLiteLedger) MissingDocumentationReport() []Gap {
	return s.inner.MissingDocumentationReport()
}

func (s *SQLiteLedger) Snapshot() map[Phase]map[string]*EvidenceRecord {
	return s.inner.Snapshot()
}
