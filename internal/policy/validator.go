package policy

import (
	"fmt"
	"strings"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

// validDomains is the set of audit domains a policy may configure.
var validDomains = map[string]struct{}{
	"security": {},
}

// parseSeverity maps a case-insensitive severity name to its canonical form.
// Empty and unknown names report false.
func parseSeverity(s string) (models.Severity, bool) {
	sev := models.Severity(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := severityRank[sev]
	return sev, ok
}

// Validate checks cfg against the rules in availableRuleIDs and returns every
// problem found, each prefixed with the offending YAML path. An empty slice
// means the config is valid.
func Validate(cfg *PolicyConfig, availableRuleIDs []string) []error {
	if cfg == nil {
		return []error{fmt.Errorf("policy config is nil")}
	}

	known := make(map[string]struct{}, len(availableRuleIDs))
	for _, id := range availableRuleIDs {
		known[id] = struct{}{}
	}

	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Version != SupportedVersion {
		add(fmt.Errorf("version: unsupported value %d; must be %d", cfg.Version, SupportedVersion))
	}

	for name, d := range cfg.Domains {
		add(checkDomain("domains."+name, name))
		add(checkSeverity("domains."+name+".min_severity", d.MinSeverity))
	}

	for id, rc := range cfg.Rules {
		if _, ok := known[id]; !ok {
			add(fmt.Errorf("rules.%s: unknown rule ID", id))
		}
		add(checkSeverity("rules."+id+".severity", rc.Severity))
		for i, p := range rc.ExcludeProjects {
			if strings.TrimSpace(p) == "" {
				add(fmt.Errorf("rules.%s.exclude_projects[%d]: empty project ID", id, i))
			}
		}
	}

	for name, e := range cfg.Enforcement {
		add(checkDomain("enforcement."+name, name))
		add(checkSeverity("enforcement."+name+".fail_on_severity", e.FailOnSeverity))
	}

	return errs
}

func checkDomain(field, name string) error {
	if _, ok := validDomains[name]; ok {
		return nil
	}
	return fmt.Errorf("%s: unknown domain; valid values: security", field)
}

func checkSeverity(field, value string) error {
	if value == "" {
		return nil
	}
	if _, ok := parseSeverity(value); !ok {
		return fmt.Errorf("%s: invalid value %q; valid values: CRITICAL, HIGH, MEDIUM, LOW, INFO", field, value)
	}
	return nil
}
