// Package policy loads the optional dp.yaml policy file that tunes audit
// output: per-rule enable/disable, severity overrides and project waivers,
// per-domain minimum severity, and the severity at which an audit fails.
package policy

// DefaultPath is where the CLI looks for a policy file when none is given.
const DefaultPath = "./dp.yaml"

// SupportedVersion is the only policy schema version dp understands.
const SupportedVersion = 1

// PolicyConfig is the parsed form of dp.yaml. Maps are keyed by audit
// domain ("security") or by rule ID.
type PolicyConfig struct {
	Version     int                          `yaml:"version"`
	Domains     map[string]DomainConfig      `yaml:"domains"`
	Rules       map[string]RuleConfig        `yaml:"rules"`
	Enforcement map[string]EnforcementConfig `yaml:"enforcement"`
}

type DomainConfig struct {
	Enabled bool `yaml:"enabled"`

	// MinSeverity drops findings below this severity. Empty keeps all.
	MinSeverity string `yaml:"min_severity,omitempty"`
}

// RuleConfig tunes one rule. A nil Enabled leaves the rule on.
type RuleConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Severity string `yaml:"severity,omitempty"`

	// ExcludeProjects waives the rule's findings in the listed GCP projects.
	ExcludeProjects []string `yaml:"exclude_projects,omitempty"`
}

// waives reports whether projectID is listed in ExcludeProjects.
func (r RuleConfig) waives(projectID string) bool {
	for _, p := range r.ExcludeProjects {
		if p == projectID {
			return true
		}
	}
	return false
}

type EnforcementConfig struct {
	FailOnSeverity string `yaml:"fail_on_severity,omitempty"`
}
