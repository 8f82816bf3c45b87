package models

// GCPSecurityData holds raw security posture data collected from a set of
// GCP projects. Every entry carries its ProjectID so rules can attribute
// findings without extra lookups.
type GCPSecurityData struct {
	Firewalls []GCPFirewallRule    `json:"firewalls"`
	Buckets   []GCPBucket          `json:"buckets"`
	Excluded  []GCPExcludedProject `json:"excluded,omitempty"`
}

// GCPFirewallRule is a VPC firewall rule flattened to the fields security
// rules inspect. Ports holds the raw port specs from every allowed entry
// ("22", "1000-2000"); an allowed entry without ports allows every port and
// is recorded as "0-65535".
type GCPFirewallRule struct {
	ProjectID    string   `json:"project_id"`
	Name         string   `json:"name"`
	Network      string   `json:"network"`
	Direction    string   `json:"direction"`
	Disabled     bool     `json:"disabled"`
	SourceRanges []string `json:"source_ranges"`
	Ports        []string `json:"ports"`
}

// GCPBucket is a Cloud Storage bucket and its access configuration.
// PublicMembers lists the allUsers / allAuthenticatedUsers members found in
// the bucket IAM policy. IAMAvailable is false when the policy could not be
// read; rules must not report a bucket as private in that case.
type GCPBucket struct {
	ProjectID            string   `json:"project_id"`
	Name                 string   `json:"name"`
	Location             string   `json:"location"`
	UniformAccessEnabled bool     `json:"uniform_access_enabled"`
	PublicMembers        []string `json:"public_members,omitempty"`
	PublicRoles          []string `json:"public_roles,omitempty"`
	IAMAvailable         bool     `json:"iam_available"`
}

// ReasonUsageAPIDisabled marks an excluded project whose state could not be
// read because the Service Usage API is disabled for the caller.
const ReasonUsageAPIDisabled = "usage_api_disabled"

// GCPExcludedProject records a project a service adapter did not scan.
// Outcome is one of "disabled", "permission_denied" or "error". Reason
// narrows an "error" outcome when the cause is known.
type GCPExcludedProject struct {
	Service        string `json:"service"`
	ProjectID      string `json:"project_id"`
	Outcome        string `json:"outcome"`
	Reason         string `json:"reason,omitempty"`
	Error          string `json:"error,omitempty"`
	RemediationURL string `json:"remediation_url,omitempty"`
}
