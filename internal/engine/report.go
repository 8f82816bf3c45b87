package engine

import (
	"sort"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

// stampDomain sets Domain on every finding.
func stampDomain(findings []models.Finding, domain string) {
	for i := range findings {
		findings[i].Domain = domain
	}
}

// findingGroupKey is the composite key used to group findings by resource.
type findingGroupKey struct {
	projectID  string
	resourceID string
	region     string
}

// mergeFindings collapses findings that refer to the same resource into one.
// The merged finding keeps the first finding's fields, the highest severity
// of the group, and the union of metadata keys (first writer wins).
// Metadata["rules"] lists every contributing rule ID in evaluation order.
// Groups are returned in first-seen order; the input is not modified.
func mergeFindings(raw []models.Finding) []models.Finding {
	type entry struct {
		f       models.Finding
		ruleIDs []string
	}

	index := make(map[findingGroupKey]int) // key → position in entries
	var order []findingGroupKey
	entries := make([]entry, 0, len(raw))

	for _, f := range raw {
		key := findingGroupKey{projectID: f.ProjectID, resourceID: f.ResourceID, region: f.Region}
		pos, exists := index[key]
		if !exists {
			// First finding for this resource; clone metadata map and use as base.
			meta := make(map[string]any, len(f.Metadata)+1)
			for k, v := range f.Metadata {
				meta[k] = v
			}
			f.Metadata = meta
			entries = append(entries, entry{f: f, ruleIDs: []string{f.RuleID}})
			index[key] = len(entries) - 1
			order = append(order, key)
			continue
		}

		e := &entries[pos]
		e.ruleIDs = append(e.ruleIDs, f.RuleID)

		if severityRank[f.Severity] < severityRank[e.f.Severity] {
			e.f.Severity = f.Severity
		}

		for k, v := range f.Metadata {
			if _, alreadySet := e.f.Metadata[k]; !alreadySet {
				e.f.Metadata[k] = v
			}
		}
	}

	result := make([]models.Finding, 0, len(entries))
	for _, key := range order {
		e := &entries[index[key]]
		e.f.Metadata["rules"] = e.ruleIDs
		result = append(result, e.f)
	}
	return result
}

// severityRank maps Severity values to sort keys (lower = higher priority).
var severityRank = map[models.Severity]int{
	models.SeverityCritical: 0,
	models.SeverityHigh:     1,
	models.SeverityMedium:   2,
	models.SeverityLow:      3,
	models.SeverityInfo:     4,
}

// sortFindings sorts findings in-place: severity descending (CRITICAL first),
// then project ID and resource ID ascending.
func sortFindings(findings []models.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri := severityRank[findings[i].Severity]
		rj := severityRank[findings[j].Severity]
		if ri != rj {
			return ri < rj
		}
		if findings[i].ProjectID != findings[j].ProjectID {
			return findings[i].ProjectID < findings[j].ProjectID
		}
		return findings[i].ResourceID < findings[j].ResourceID
	})
}

// computeSummary aggregates finding counts across all severity levels.
func computeSummary(findings []models.Finding) models.AuditSummary {
	var s models.AuditSummary
	s.TotalFindings = len(findings)
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityCritical:
			s.CriticalFindings++
		case models.SeverityHigh:
			s.HighFindings++
		case models.SeverityMedium:
			s.MediumFindings++
		case models.SeverityLow:
			s.LowFindings++
		}
	}
	return s
}

// countExcludedProjects returns the number of distinct projects skipped by
// at least one service.
func countExcludedProjects(excluded []models.GCPExcludedProject) int {
	seen := make(map[string]struct{}, len(excluded))
	for _, ex := range excluded {
		seen[ex.ProjectID] = struct{}{}
	}
	return len(seen)
}
