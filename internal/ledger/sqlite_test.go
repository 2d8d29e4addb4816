package ledger

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestLedger(t *testing.T, dbPath string) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLiteLedger(dbPath, "lease-1", testItems())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	return l
}

func TestSQLiteLedgerReload(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	l := openTestLedger(t, dbPath)
	if _, err := l.RecordEvidence("parquet", PhaseIntake, []string{"in1.jpg", "in2.jpg"}, "pristine"); err != nil {
		t.Fatalf("intake: %v", err)
	}
	if _, err := l.RecordEvidence("parquet", PhaseCheckout, []string{"out1.jpg"}, ""); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	grade := GradeB
	photos := 1
	if err := l.AttachAnalysis("parquet", DamageAnalysis{
		HasDamage:      true,
		Severity:       SeverityMinor,
		IsNormalWear:   true,
		Description:    "light scuffing near the window",
		StateGrade:     &grade,
		PhotosAnalyzed: &photos,
	}); err != nil {
		t.Fatalf("attach analysis: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2 := openTestLedger(t, dbPath)
	defer l2.Close()

	if got := l2.CompletenessOf("parquet"); got != CompletenessComplete {
		t.Fatalf("expected complete after reload, got %s", got)
	}
	rec := l2.Record("parquet", PhaseIntake)
	if rec == nil || len(rec.Photos) != 2 || rec.Notes != "pristine" {
		t.Fatalf("intake record did not survive reload: %+v", rec)
	}
	checkout := l2.Record("parquet", PhaseCheckout)
	a := checkout.LatestAnalysis()
	if a == nil {
		t.Fatal("analysis did not survive reload")
	}
	if a.StateGrade == nil || *a.StateGrade != GradeB {
		t.Fatalf("expected state grade B, got %+v", a.StateGrade)
	}
	if a.PhotosAnalyzed == nil || *a.PhotosAnalyzed != 1 {
		t.Fatalf("expected photosAnalyzed 1, got %+v", a.PhotosAnalyzed)
	}
	// SameLocation was never set, so it must come back absent, not false.
	if a.SameLocation != nil {
		t.Fatalf("unset optional must stay absent after reload, got %v", *a.SameLocation)
	}
}

func TestSQLiteLedgerRejectedWriteNotPersisted(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	l := openTestLedger(t, dbPath)
	_, err := l.RecordEvidence("parquet", PhaseCheckout, nil, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2 := openTestLedger(t, dbPath)
	defer l2.Close()
	if l2.Record("parquet", PhaseCheckout) != nil {
		t.Fatal("rejected append leaked to disk")
	}
}

func TestSQLiteLedgerAnalysisHistoryOrder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	l := openTestLedger(t, dbPath)
	if _, err := l.RecordEvidence("kitchen-sink", PhaseCheckout, []string{"sink.jpg"}, ""); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if err := l.AttachAnalysis("kitchen-sink", DamageAnalysis{HasDamage: true, Severity: SeverityModerate}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := l.AttachAnalysis("kitchen-sink", DamageAnalysis{Severity: SeverityNone, IsNormalWear: true}); err != nil {
		t.Fatalf("second: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	l2 := openTestLedger(t, dbPath)
	defer l2.Close()
	rec := l2.Record("kitchen-sink", PhaseCheckout)
	if len(rec.Analyses) != 2 {
		t.Fatalf("expected 2 analyses, got %d", len(rec.Analyses))
	}
	if rec.Analyses[0].Severity != SeverityModerate || rec.LatestAnalysis().Severity != SeverityNone {
		t.Fatalf("analysis order lost on reload: %+v", rec.Analyses)
	}
}
