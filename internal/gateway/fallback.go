package gateway

import "strings"

// Deterministic offline answers, keyed by keyword category. The gateway
// substitutes these whenever it cannot or will not reach the upstream
// service, so callers always get an answer without blocking or retrying.

const (
	fallbackDeposit = "Based on Swiss rental law, deposits are typically limited to 3 months rent for residential properties. For vehicles, a deductible is standard practice. Any deductions must be justified and documented."

	fallbackDamage = "According to Article 267 of the Swiss Code of Obligations, tenants are only liable for damages beyond normal wear and tear. Small scratches and minor wear after reasonable use are generally not chargeable."

	fallbackNotice = "Notice periods in Switzerland vary by canton and contract type. Typically, residential leases require 3 months notice. Check your specific contract for the exact terms and official notice dates."

	fallbackRepair = "Landlords are responsible for major repairs and structural maintenance. Tenants typically handle minor repairs and regular upkeep. Document all issues in writing and keep records of communications."

	fallbackDefault = "I understand your question about the lease agreement. Based on Swiss rental law and the terms of your contract, I recommend documenting everything in writing and consulting with your local tenant association if you need specific legal advice."

	fallbackImageAnalysis = `{"hasDamage": false, "severity": "none", "isNormalWear": true, "tenantLiable": false, "description": "Offline assessment: no verifiable damage without model analysis.", "liabilityReasoning": "Without a completed photo comparison, liability cannot be established; the burden of proof rests with the landlord."}`
)

// FallbackAnswer picks the offline answer for a prompt by keyword match,
// checked in a fixed category order so overlapping keywords resolve
// deterministically.
func FallbackAnswer(prompt string) string {
	q := strings.ToLower(prompt)
	switch {
	case strings.Contains(q, "deposit") || strings.Contains(q, "deductible"):
		return fallbackDeposit
	case strings.Contains(q, "damage") || strings.Contains(q, "scratch"):
		return fallbackDamage
	case strings.Contains(q, "notice") || strings.Contains(q, "terminate"):
		return fallbackNotice
	case strings.Contains(q, "repair") || strings.Contains(q, "maintenance"):
		return fallbackRepair
	default:
		return fallbackDefault
	}
}

// FallbackImageAnalysis is the offline stand-in for a vision call. It is a
// JSON damage assessment that never assigns liability to the tenant.
func FallbackImageAnalysis() string {
	return fallbackImageAnalysis
}
