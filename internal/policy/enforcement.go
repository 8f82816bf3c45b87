package policy

import (
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

// severityRank orders severities for threshold comparisons (higher = worse).
var severityRank = map[models.Severity]int{
	models.SeverityCritical: 5,
	models.SeverityHigh:     4,
	models.SeverityMedium:   3,
	models.SeverityLow:      2,
	models.SeverityInfo:     1,
}

// threshold returns the fail_on_severity rank configured for domain, or 0
// when cfg is nil, the domain has no enforcement block, or the value is
// empty or unrecognised.
func threshold(domain string, cfg *PolicyConfig) int {
	if cfg == nil {
		return 0
	}
	sev, ok := parseSeverity(cfg.Enforcement[domain].FailOnSeverity)
	if !ok {
		return 0
	}
	return severityRank[sev]
}

// FailingFindings returns the findings at or above the domain's
// fail_on_severity threshold, in input order. It returns nil when no
// threshold applies.
func FailingFindings(domain string, findings []models.Finding, cfg *PolicyConfig) []models.Finding {
	floor := threshold(domain, cfg)
	if floor == 0 {
		return nil
	}
	var out []models.Finding
	for _, f := range findings {
		if severityRank[f.Severity] >= floor {
			out = append(out, f)
		}
	}
	return out
}

// ShouldFail reports whether any finding reaches the domain's
// fail_on_severity threshold. See FailingFindings.
func ShouldFail(domain string, findings []models.Finding, cfg *PolicyConfig) bool {
	return len(FailingFindings(domain, findings, cfg)) > 0
}
