// Package gcpsecurity provides the GCP security audit rule pack.
// The CLI wires New() into a DefaultRuleRegistry before invoking the
// security engine.
package gcpsecurity

import "github.com/pankaj-dahiya-devops/dp-gcp/internal/rules"

// New returns the default GCP security audit rule pack.
func New() []rules.Rule {
	return []rules.Rule{
		rules.GCPBucketPublicRule{},                // CRITICAL: bucket IAM grants allUsers / allAuthenticatedUsers
		rules.GCPFirewallOpenAdminRule{},           // HIGH:     firewall exposes SSH/RDP to the internet
		rules.GCPBucketUniformAccessDisabledRule{}, // MEDIUM:   object ACLs still honoured
		rules.GCPServiceAPIUnverifiedRule{},        // LOW:      API state unreadable, project not scanned
	}
}

// IDs returns the rule IDs in the pack.
func IDs() []string {
	return rules.NewDefaultRuleRegistry(New()...).IDs()
}
