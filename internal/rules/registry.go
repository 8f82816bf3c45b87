package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

// DefaultRuleRegistry is an ordered, in-memory registry.
// Rules are evaluated in registration order.
// Register panics on duplicate rule IDs to catch wiring mistakes at startup.
type DefaultRuleRegistry struct {
	rules []Rule
	index map[string]struct{}
}

// NewDefaultRuleRegistry returns a registry holding rs, in order.
func NewDefaultRuleRegistry(rs ...Rule) *DefaultRuleRegistry {
	r := &DefaultRuleRegistry{
		index: make(map[string]struct{}, len(rs)),
	}
	for _, rule := range rs {
		r.Register(rule)
	}
	return r
}

// Register adds rule to the registry. Panics if the same ID is registered
// twice or the ID is empty.
func (r *DefaultRuleRegistry) Register(rule Rule) {
	id := rule.ID()
	if id == "" {
		panic("rule with empty ID")
	}
	if _, exists := r.index[id]; exists {
		panic(fmt.Sprintf("duplicate rule ID: %q", id))
	}
	r.rules = append(r.rules, rule)
	r.index[id] = struct{}{}
}

// All returns all registered rules in registration order.
func (r *DefaultRuleRegistry) All() []Rule {
	return r.rules
}

// IDs returns the registered rule IDs in registration order. Policy files
// are validated against this list.
func (r *DefaultRuleRegistry) IDs() []string {
	ids := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		ids = append(ids, rule.ID())
	}
	return ids
}

// EvaluateAll runs every registered rule against ctx and returns the
// combined findings. Findings a rule left without a RuleID are attributed
// to that rule.
func (r *DefaultRuleRegistry) EvaluateAll(ctx RuleContext) []models.Finding {
	var findings []models.Finding
	for _, rule := range r.rules {
		for _, f := range rule.Evaluate(ctx) {
			if f.RuleID == "" {
				f.RuleID = rule.ID()
			}
			findings = append(findings, f)
		}
	}
	return findings
}
