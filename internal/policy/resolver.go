package policy

import (
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

// ApplyPolicy filters and rewrites findings for domain according to cfg.
// A nil cfg returns findings unchanged; the input slice is never modified.
//
// Per finding, in order: the rule may be disabled, waived for the finding's
// project, or have its severity overridden. The domain's min_severity is
// checked against the overridden severity.
func ApplyPolicy(findings []models.Finding, domain string, cfg *PolicyConfig) []models.Finding {
	if cfg == nil {
		return findings
	}

	d, hasDomain := cfg.Domains[domain]
	if hasDomain && !d.Enabled {
		return []models.Finding{}
	}
	floor := 0
	if hasDomain {
		if sev, ok := parseSeverity(d.MinSeverity); ok {
			floor = severityRank[sev]
		}
	}

	var kept []models.Finding
	for _, f := range findings {
		rc, ok := cfg.Rules[f.RuleID]
		if ok {
			if rc.Enabled != nil && !*rc.Enabled {
				continue
			}
			if rc.waives(f.ProjectID) {
				continue
			}
			if sev, valid := parseSeverity(rc.Severity); valid {
				f.Severity = sev
			}
		}
		if severityRank[f.Severity] < floor {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
