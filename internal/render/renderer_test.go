package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pauamargant/leaseCare-lauzhack/internal/defense"
	"github.com/pauamargant/leaseCare-lauzhack/internal/prompt"
)

func TestApplyPrintLayoutHooksAddsPageBreakBeforeLegalAssessment(t *testing.T) {
	in := "<h2>Evidence Analysis</h2><p>x</p><h2>Legal Assessment</h2><p>y</p>"
	out := applyPrintLayoutHooks(in)
	if !strings.Contains(out, `<h2 data-page-break-before="true">Legal Assessment</h2>`) {
		t.Fatalf("expected page-break injection, got: %s", out)
	}
}

func TestApplyPrintLayoutHooksNoopWhenHeadingMissing(t *testing.T) {
	in := "<h2>Executive Summary</h2><p>x</p>"
	out := applyPrintLayoutHooks(in)
	if out != in {
		t.Fatalf("expected no change when heading absent, got: %s", out)
	}
}

func TestBuildHTMLCarriesMetaAndBadges(t *testing.T) {
	p := 72
	res := &defense.RunResult{
		LeaseID: "lease-1",
		Context: defense.CaseContext{UserQuery: "deposit & damages"},
		Report: defense.DefenseReport{
			Markdown: "# Tenant Defense Report\n\n## Legal Assessment\n\nUnder **Art. 267 CO** normal wear is not chargeable.\n\n| before | after |\n|---|---|\n| clean | scratch |\n",
		},
		Evaluation: defense.CaseEvaluation{WinProbability: &p, Confidence: "high"},
		Metadata:   defense.RunMetadata{Mode: defense.RunModeComplete, CompletedAt: time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC)},
	}

	doc, err := buildHTML(context.Background(), res, nil)
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	for _, want := range []string{
		"lease-1",
		"deposit &amp; damages",
		"Win probability: 72%",
		"Confidence: high",
		"<strong>Art. 267 CO</strong>",
		`data-page-break-before="true"`,
		"<table>",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q", want)
		}
	}
	if strings.Contains(doc, "Evaluation unavailable") {
		t.Fatal("complete run must not carry the degraded badge")
	}
}

func TestBuildHTMLDegradedRunShowsWarningWithoutProbability(t *testing.T) {
	res := &defense.RunResult{
		LeaseID:    "lease-1",
		Report:     defense.DefenseReport{Markdown: "# Report\n\nBody."},
		Evaluation: defense.CaseEvaluation{Confidence: "low", Summary: "excerpt"},
		Metadata:   defense.RunMetadata{Mode: defense.RunModeDegraded, StageFailed: defense.StageEvaluation},
	}

	doc, err := buildHTML(context.Background(), res, nil)
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	if !strings.Contains(doc, "Evaluation unavailable") {
		t.Fatal("degraded badge missing")
	}
	if strings.Contains(doc, "Win probability") {
		t.Fatal("degraded run must not print a probability")
	}
}

func TestBuildCitationAnnexResolvesFromCatalogue(t *testing.T) {
	cat, err := prompt.LoadCatalogue()
	if err != nil {
		t.Fatalf("LoadCatalogue: %v", err)
	}
	res := &defense.RunResult{
		Report: defense.DefenseReport{
			Markdown:  "# Report\n\nSee **Art. 267 CO** and **OR Art. 9999**.",
			Citations: []string{"Art. 267 CO", "OR Art. 9999"},
		},
	}

	doc, err := buildHTML(context.Background(), res, cat)
	if err != nil {
		t.Fatalf("buildHTML: %v", err)
	}
	if !strings.Contains(doc, "Cited provisions") {
		t.Fatal("annex missing")
	}
	if !strings.Contains(doc, "<strong>Art. 267 CO</strong>:") {
		t.Fatal("known article not explained")
	}
	// Unknown articles are listed without an explanation, never dropped.
	if !strings.Contains(doc, "<strong>OR Art. 9999</strong>") {
		t.Fatal("unknown article dropped from annex")
	}
	if strings.Contains(doc, "<strong>OR Art. 9999</strong>:") {
		t.Fatal("unknown article got a bogus explanation")
	}
}
