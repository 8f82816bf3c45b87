package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

// GCPBucketPublicRule flags Cloud Storage buckets whose IAM policy grants a
// role to allUsers or allAuthenticatedUsers.
type GCPBucketPublicRule struct{}

func (r GCPBucketPublicRule) ID() string   { return "GCP_BUCKET_PUBLIC" }
func (r GCPBucketPublicRule) Name() string { return "Cloud Storage Bucket Publicly Accessible" }

func (r GCPBucketPublicRule) Evaluate(ctx RuleContext) []models.Finding {
	if ctx.Security == nil {
		return nil
	}
	var findings []models.Finding
	for _, b := range ctx.Security.Buckets {
		if !b.IAMAvailable || len(b.PublicMembers) == 0 {
			continue
		}
		findings = append(findings, models.Finding{
			ID:           fmt.Sprintf("%s-%s", r.ID(), b.Name),
			RuleID:       r.ID(),
			ResourceID:   b.Name,
			ResourceType: models.ResourceGCPBucket,
			ProjectID:    b.ProjectID,
			Region:       strings.ToLower(b.Location),
			Severity:     models.SeverityCritical,
			Explanation: fmt.Sprintf("Bucket IAM policy grants %s to %s.",
				strings.Join(b.PublicRoles, ", "), strings.Join(b.PublicMembers, ", ")),
			Recommendation: "Remove allUsers and allAuthenticatedUsers bindings and enforce public access prevention on the bucket.",
			DetectedAt:     time.Now().UTC(),
			Metadata: map[string]any{
				"public_members": b.PublicMembers,
				"public_roles":   b.PublicRoles,
			},
		})
	}
	return findings
}
