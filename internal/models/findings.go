package models

import "time"

// Severity represents the impact level of a finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// ResourceType identifies the kind of cloud resource a finding refers to.
type ResourceType string

const (
	ResourceGCPFirewall   ResourceType = "FIREWALL_RULE"
	ResourceGCPBucket     ResourceType = "GCS_BUCKET"
	ResourceGCPServiceAPI ResourceType = "SERVICE_API"
)

// Finding is a single detected security issue.
// It is the atomic output unit of the rule engine.
type Finding struct {
	ID             string         `json:"id"`
	RuleID         string         `json:"rule_id"`
	ResourceID     string         `json:"resource_id"`
	ResourceType   ResourceType   `json:"resource_type"`
	ProjectID      string         `json:"project_id"`
	Region         string         `json:"region"`
	Domain         string         `json:"domain"`
	Severity       Severity       `json:"severity"`
	Explanation    string         `json:"explanation"`
	Recommendation string         `json:"recommendation"`
	DetectedAt     time.Time      `json:"detected_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// AuditSummary aggregates counts across all findings.
type AuditSummary struct {
	TotalFindings    int `json:"total_findings"`
	CriticalFindings int `json:"critical_findings"`
	HighFindings     int `json:"high_findings"`
	MediumFindings   int `json:"medium_findings"`
	LowFindings      int `json:"low_findings"`

	// ProjectsAudited is the number of candidate projects considered.
	ProjectsAudited int `json:"projects_audited"`

	// ProjectsExcluded counts projects skipped by at least one service
	// because its API was disabled or its state could not be read.
	ProjectsExcluded int `json:"projects_excluded"`
}

// AuditReport is the top-level output of an audit run.
type AuditReport struct {
	ReportID         string       `json:"report_id"`
	GeneratedAt      time.Time    `json:"generated_at"`
	AuditType        string       `json:"audit_type"`
	DefaultProjectID string       `json:"default_project_id"`
	Projects         []string     `json:"projects"`
	Summary          AuditSummary `json:"summary"`
	Findings         []Finding    `json:"findings"`

	// Excluded lists, per service, the projects that were not scanned.
	Excluded []GCPExcludedProject `json:"excluded,omitempty"`

	// Metadata carries optional, audit-type-specific key/value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`
}
