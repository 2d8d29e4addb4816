package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func testItems() []InspectionItem {
	return []InspectionItem{
		{ID: "wall-living", Name: "Living room walls", Room: "Living room", Priority: PriorityHigh},
		{ID: "parquet", Name: "Parquet floor", Room: "Living room", Priority: PriorityHigh},
		{ID: "kitchen-sink", Name: "Kitchen sink", Room: "Kitchen", Priority: PriorityMedium},
	}
}

func fixedClock(start time.Time, step time.Duration) func() time.Time {
	t := start
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func TestRecordEvidenceAppendOnly(t *testing.T) {
	l := New(testItems())

	rec, err := l.RecordEvidence("wall-living", PhaseIntake, []string{"p1.jpg"}, "fresh paint")
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if len(rec.Photos) != 1 {
		t.Fatalf("expected 1 photo, got %d", len(rec.Photos))
	}

	rec, err = l.RecordEvidence("wall-living", PhaseIntake, []string{"p2.jpg", "p3.jpg"}, "")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	want := []string{"p1.jpg", "p2.jpg", "p3.jpg"}
	if len(rec.Photos) != len(want) {
		t.Fatalf("expected %d photos, got %d", len(want), len(rec.Photos))
	}
	for i, p := range want {
		if rec.Photos[i] != p {
			t.Fatalf("photo %d: expected %q, got %q", i, p, rec.Photos[i])
		}
	}
	if rec.Notes != "fresh paint" {
		t.Fatalf("empty notes on append must not clobber existing notes, got %q", rec.Notes)
	}
}

func TestRecordEvidenceEmptyCreateRejected(t *testing.T) {
	l := New(testItems())
	_, err := l.RecordEvidence("parquet", PhaseCheckout, nil, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if l.Record("parquet", PhaseCheckout) != nil {
		t.Fatal("rejected create must leave no record behind")
	}
}

func TestRecordEvidenceUnknownItem(t *testing.T) {
	l := New(testItems())
	_, err := l.RecordEvidence("balcony", PhaseIntake, []string{"p.jpg"}, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown item, got %v", err)
	}
}

func TestPhaseOrderInvariant(t *testing.T) {
	clock := fixedClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.Hour)
	l := New(testItems(), WithClock(clock))

	if _, err := l.RecordEvidence("parquet", PhaseCheckout, []string{"out.jpg"}, ""); err != nil {
		t.Fatalf("checkout record: %v", err)
	}
	// The clock has advanced past the checkout capture, so a fresh intake
	// record would postdate it.
	_, err := l.RecordEvidence("parquet", PhaseIntake, []string{"in.jpg"}, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected phase order violation, got %v", err)
	}
}

func TestCompleteness(t *testing.T) {
	l := New(testItems())
	if _, err := l.RecordEvidence("wall-living", PhaseIntake, []string{"in.jpg"}, ""); err != nil {
		t.Fatalf("intake: %v", err)
	}

	cases := []struct {
		itemID string
		want   Completeness
	}{
		{"wall-living", CompletenessPartial},
		{"parquet", CompletenessMissing},
	}
	for _, tc := range cases {
		if got := l.CompletenessOf(tc.itemID); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.itemID, tc.want, got)
		}
	}

	if _, err := l.RecordEvidence("wall-living", PhaseCheckout, []string{"out.jpg"}, ""); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if got := l.CompletenessOf("wall-living"); got != CompletenessComplete {
		t.Fatalf("expected complete, got %s", got)
	}
}

// A checkout-only item must surface in the gap report as a missing-intake gap,
// not get silently treated as fully documented.
func TestMissingDocumentationReportCheckoutOnly(t *testing.T) {
	l := New(testItems())
	if _, err := l.RecordEvidence("kitchen-sink", PhaseCheckout, []string{"sink.jpg"}, ""); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	gaps := l.MissingDocumentationReport()
	found := false
	for _, g := range gaps {
		if g.ItemID != "kitchen-sink" {
			continue
		}
		found = true
		if g.Description == "" {
			t.Fatal("gap description must not be empty")
		}
		if want := "no intake photos"; len(g.Description) < len(want) || g.Description[:len(want)] != want {
			t.Fatalf("expected intake gap description, got %q", g.Description)
		}
	}
	if !found {
		t.Fatal("checkout-only item missing from gap report")
	}
	if got := l.CompletenessOf("kitchen-sink"); got != CompletenessPartial {
		t.Fatalf("expected partial, got %s", got)
	}
}

func TestAttachAnalysisHistory(t *testing.T) {
	clock := fixedClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.Minute)
	l := New(testItems(), WithClock(clock))

	if err := l.AttachAnalysis("parquet", DamageAnalysis{HasDamage: true}); err == nil {
		t.Fatal("expected error attaching analysis without a checkout record")
	}

	if _, err := l.RecordEvidence("parquet", PhaseCheckout, []string{"out.jpg"}, ""); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	first := DamageAnalysis{HasDamage: true, Severity: SeverityMajor, TenantLiable: true}
	second := DamageAnalysis{HasDamage: true, Severity: SeverityMinor, IsNormalWear: true}
	if err := l.AttachAnalysis("parquet", first); err != nil {
		t.Fatalf("first analysis: %v", err)
	}
	if err := l.AttachAnalysis("parquet", second); err != nil {
		t.Fatalf("second analysis: %v", err)
	}

	rec := l.Record("parquet", PhaseCheckout)
	if len(rec.Analyses) != 2 {
		t.Fatalf("expected 2 retained analyses, got %d", len(rec.Analyses))
	}
	latest := rec.LatestAnalysis()
	if latest == nil || latest.Severity != SeverityMinor {
		t.Fatalf("latest analysis must be the second one, got %+v", latest)
	}
	if !rec.Analyses[0].AnalyzedAt.Before(rec.Analyses[1].AnalyzedAt) {
		t.Fatal("analysis timestamps must be ordered")
	}
}

func TestConcurrentAppendsDistinctItems(t *testing.T) {
	items := make([]InspectionItem, 8)
	for i := range items {
		items[i] = InspectionItem{ID: fmt.Sprintf("item-%d", i), Name: fmt.Sprintf("Item %d", i)}
	}
	l := New(items)

	const perItem = 20
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < perItem; j++ {
				if _, err := l.RecordEvidence(id, PhaseCheckout, []string{fmt.Sprintf("%s-%d.jpg", id, j)}, ""); err != nil {
					t.Errorf("%s append %d: %v", id, j, err)
					return
				}
			}
		}(items[i].ID)
	}
	wg.Wait()

	for _, it := range items {
		rec := l.Record(it.ID, PhaseCheckout)
		if rec == nil || len(rec.Photos) != perItem {
			t.Fatalf("%s: expected %d photos, got %+v", it.ID, perItem, rec)
		}
		// Per-item appends serialize, so the order is exactly call order.
		for j, p := range rec.Photos {
			want := fmt.Sprintf("%s-%d.jpg", it.ID, j)
			if p != want {
				t.Fatalf("%s photo %d: expected %q, got %q", it.ID, j, want, p)
			}
		}
	}
}

func TestRecordReturnsCopy(t *testing.T) {
	l := New(testItems())
	if _, err := l.RecordEvidence("wall-living", PhaseIntake, []string{"a.jpg"}, ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	rec := l.Record("wall-living", PhaseIntake)
	rec.Photos[0] = "mutated.jpg"
	if got := l.Record("wall-living", PhaseIntake).Photos[0]; got != "a.jpg" {
		t.Fatalf("ledger state mutated through returned copy: %q", got)
	}
}
