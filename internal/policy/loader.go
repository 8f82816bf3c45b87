package policy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPolicy reads and parses the policy file at path. Absent sections come
// back as empty maps so callers can index them without nil checks.
func LoadPolicy(path string) (*PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy %q: %w", path, err)
	}
	if cfg.Version != SupportedVersion {
		return nil, fmt.Errorf("policy %q: unsupported version %d; must be %d", path, cfg.Version, SupportedVersion)
	}

	cfg.normalize()
	return &cfg, nil
}

// LoadOptional loads path when it exists. A missing file yields (nil, nil).
func LoadOptional(path string) (*PolicyConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return LoadPolicy(path)
}

func (c *PolicyConfig) normalize() {
	if c.Domains == nil {
		c.Domains = map[string]DomainConfig{}
	}
	if c.Rules == nil {
		c.Rules = map[string]RuleConfig{}
	}
	if c.Enforcement == nil {
		c.Enforcement = map[string]EnforcementConfig{}
	}
}
