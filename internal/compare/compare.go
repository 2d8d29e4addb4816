// Package compare produces structured damage verdicts from before/after photo
// sets for a single inspection item. Two modes: a quick location match run
// before a checkout photo is committed to the ledger, and a full comparison
// over the complete photo sets. Both fail toward the tenant: an unusable
// model response never yields a liability finding.
package compare

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pauamargant/leaseCare-lauzhack/internal/gateway"
	"github.com/pauamargant/leaseCare-lauzhack/internal/ledger"
	"github.com/pauamargant/leaseCare-lauzhack/internal/recovery"
)

// Generator is the slice of the model gateway the engine needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts gateway.GenerateOpts) (string, error)
}

// MatchResult is the quick-match verdict for a freshly captured photo.
type MatchResult struct {
	IsMatch        bool   `json:"isMatch"`
	Confidence     string `json:"confidence"`
	Reason         string `json:"reason"`
	Recommendation string `json:"recommendation"`
}

type Engine struct {
	gen   Generator
	log   *zap.Logger
	clock func() time.Time
}

func NewEngine(gen Generator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{gen: gen, log: logger.Named("compare"), clock: time.Now}
}

const quickMatchPrompt = `You are a photo matching expert. Quickly verify if these two images show the SAME location/item.

Compare these images of %q:
1. REFERENCE image (original intake photo)
2. NEW image (just uploaded)

QUICK CHECK:
- Same room/location? (walls, fixtures, layout)
- Same angle/perspective?
- Same item being photographed?
- Lighting/quality acceptable?

Respond with JSON ONLY (no markdown):
{
  "isMatch": boolean,
  "confidence": "high" | "medium" | "low",
  "reason": "brief one-sentence explanation",
  "recommendation": "accept" | "retake" | "warning"
}`

// QuickMatch checks that a new checkout photo depicts the same location and
// angle as the intake reference. An unusable response accepts the photo with
// medium confidence rather than blocking the capture flow.
func (e *Engine) QuickMatch(ctx context.Context, itemName, beforeRef, afterRef string) MatchResult {
	raw, err := e.gen.Generate(ctx, fmt.Sprintf(quickMatchPrompt, itemName), gateway.GenerateOpts{
		ImageRefs:   []string{beforeRef, afterRef},
		Temperature: 0,
		MaxTokens:   300,
	})
	if err == nil {
		var res MatchResult
		if perr := recovery.Parse(raw, &res); perr == nil && validRecommendation(res.Recommendation) {
			return res
		}
	}
	e.log.Warn("quick match unusable, accepting photo", zap.String("item", itemName), zap.Error(err))
	return MatchResult{
		IsMatch:        true,
		Confidence:     "medium",
		Reason:         "Validation check skipped",
		Recommendation: "accept",
	}
}

func validRecommendation(r string) bool {
	switch r {
	case "accept", "retake", "warning":
		return true
	}
	return false
}

const fullComparisonPrompt = `You are an expert property damage assessor analyzing photo pairs of the same location.

Item: %q

You will receive %d BEFORE images (intake condition) first, then %d AFTER images (checkout condition), in that order.

ANALYSIS:
1. Cross-reference all before photos with all after photos.
2. Identify every change: scratches, scuffs, dents, stains, cracks, holes, missing fixtures, water damage, deterioration.
3. Aggregate findings across all angles.
4. Classify each change as damage or normal wear under Swiss rental law.

RESPONSE FORMAT (JSON only, no markdown):
{
  "sameLocation": boolean,
  "locationConfidence": "high" | "medium" | "low",
  "hasDamage": boolean,
  "severity": "none" | "minor" | "moderate" | "major",
  "damageTypes": ["scratch", "stain", ...],
  "description": "2-3 sentence summary of all findings",
  "specificIssues": ["issue with specific location", ...],
  "isNormalWear": boolean,
  "tenantLiable": boolean,
  "liabilityReasoning": "explanation based on Swiss rental law",
  "stateGrade": "A+" | "A" | "B" | "C" | "D" | "F",
  "photosAnalyzed": %d
}`

// comparisonResponse mirrors the model's full-comparison JSON before it is
// folded into a ledger.DamageAnalysis.
type comparisonResponse struct {
	SameLocation       *bool    `json:"sameLocation"`
	LocationConfidence string   `json:"locationConfidence"`
	HasDamage          bool     `json:"hasDamage"`
	Severity           string   `json:"severity"`
	DamageTypes        []string `json:"damageTypes"`
	Description        string   `json:"description"`
	SpecificIssues     []string `json:"specificIssues"`
	IsNormalWear       bool     `json:"isNormalWear"`
	TenantLiable       bool     `json:"tenantLiable"`
	LiabilityReasoning string   `json:"liabilityReasoning"`
	StateGrade         string   `json:"stateGrade"`
	PhotosAnalyzed     *int     `json:"photosAnalyzed"`
}

// FullComparison analyzes the complete before/after photo sets for one item
// and returns a DamageAnalysis. When the response cannot be parsed, or the
// model is not confident the photos show the same location, the verdict
// defaults to no liability.
func (e *Engine) FullComparison(ctx context.Context, itemName string, before, after []string) ledger.DamageAnalysis {
	total := len(before) + len(after)
	prompt := fmt.Sprintf(fullComparisonPrompt, itemName, len(before), len(after), total)

	refs := append(append([]string(nil), before...), after...)
	raw, err := e.gen.Generate(ctx, prompt, gateway.GenerateOpts{
		ImageRefs:   refs,
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		e.log.Warn("comparison call failed", zap.String("item", itemName), zap.Error(err))
		return e.tenantFallback(total)
	}

	var resp comparisonResponse
	if perr := recovery.Parse(raw, &resp); perr != nil {
		e.log.Warn("comparison response unrecoverable", zap.String("item", itemName), zap.Error(perr))
		return e.tenantFallback(total)
	}
	if !validSeverity(resp.Severity) {
		e.log.Warn("comparison severity out of range", zap.String("item", itemName), zap.String("severity", resp.Severity))
		return e.tenantFallback(total)
	}

	a := ledger.DamageAnalysis{
		HasDamage:          resp.HasDamage,
		Severity:           ledger.Severity(resp.Severity),
		IsNormalWear:       resp.IsNormalWear,
		TenantLiable:       resp.TenantLiable,
		Description:        resp.Description,
		LiabilityReasoning: resp.LiabilityReasoning,
		DamageTypes:        resp.DamageTypes,
		SpecificIssues:     resp.SpecificIssues,
		SameLocation:       resp.SameLocation,
		LocationConfidence: resp.LocationConfidence,
		PhotosAnalyzed:     resp.PhotosAnalyzed,
		AnalyzedAt:         e.clock(),
	}
	if g := parseGrade(resp.StateGrade); g != nil {
		a.StateGrade = g
	}

	// Do not guess liability from photos the model itself is unsure depict
	// the same spot.
	mismatch := resp.SameLocation != nil && !*resp.SameLocation
	if mismatch || strings.EqualFold(resp.LocationConfidence, "low") {
		a.HasDamage = false
		a.Severity = ledger.SeverityNone
		a.IsNormalWear = true
		a.TenantLiable = false
		if a.LiabilityReasoning == "" {
			a.LiabilityReasoning = "Location match confidence too low to attribute damage."
		}
	}
	return a
}

func (e *Engine) tenantFallback(photosAnalyzed int) ledger.DamageAnalysis {
	n := photosAnalyzed
	return ledger.DamageAnalysis{
		HasDamage:          false,
		Severity:           ledger.SeverityNone,
		IsNormalWear:       true,
		TenantLiable:       false,
		Description:        "Analysis inconclusive. No verifiable damage detected.",
		LiabilityReasoning: "Without a usable comparison the burden of proof is not met; no liability is assigned.",
		PhotosAnalyzed:     &n,
		AnalyzedAt:         e.clock(),
	}
}

func validSeverity(s string) bool {
	switch ledger.Severity(s) {
	case ledger.SeverityNone, ledger.SeverityMinor, ledger.SeverityModerate, ledger.SeverityMajor:
		return true
	}
	return false
}

func parseGrade(s string) *ledger.StateGrade {
	switch g := ledger.StateGrade(s); g {
	case ledger.GradeAPlus, ledger.GradeA, ledger.GradeB, ledger.GradeC, ledger.GradeD, ledger.GradeF:
		return &g
	}
	return nil
}
