// Package rules holds the deterministic GCP security rules and the registry
// that evaluates them against one collected snapshot.
package rules

import (
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

// RuleContext is the only input a rule sees. Rules work on the collected
// snapshot alone and never call a Google API.
type RuleContext struct {
	// DefaultProjectID is the project the credentials resolve to.
	DefaultProjectID string

	// Security holds firewalls, buckets and excluded projects from every
	// audited project. May be nil.
	Security *models.GCPSecurityData
}

// Rule is one stateless check. Evaluate must be safe for concurrent use.
type Rule interface {
	// ID is stable across releases; policy files reference it
	// (e.g. "GCP_BUCKET_PUBLIC").
	ID() string
	Name() string

	// Evaluate returns zero or more findings for ctx.
	Evaluate(ctx RuleContext) []models.Finding
}

// RuleRegistry is an ordered set of rules with unique IDs.
type RuleRegistry interface {
	Register(rule Rule)
	All() []Rule
	IDs() []string
	EvaluateAll(ctx RuleContext) []models.Finding
}

var _ RuleRegistry = (*DefaultRuleRegistry)(nil)
