package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

// GCPBucketUniformAccessDisabledRule flags buckets that still allow
// object-level ACLs.
type GCPBucketUniformAccessDisabledRule struct{}

func (r GCPBucketUniformAccessDisabledRule) ID() string {
	return "GCP_BUCKET_UNIFORM_ACCESS_DISABLED"
}
func (r GCPBucketUniformAccessDisabledRule) Name() string {
	return "Cloud Storage Bucket Without Uniform Bucket-Level Access"
}

func (r GCPBucketUniformAccessDisabledRule) Evaluate(ctx RuleContext) []models.Finding {
	if ctx.Security == nil {
		return nil
	}
	var findings []models.Finding
	for _, b := range ctx.Security.Buckets {
		if b.UniformAccessEnabled {
			continue
		}
		findings = append(findings, models.Finding{
			ID:             fmt.Sprintf("%s-%s", r.ID(), b.Name),
			RuleID:         r.ID(),
			ResourceID:     b.Name,
			ResourceType:   models.ResourceGCPBucket,
			ProjectID:      b.ProjectID,
			Region:         strings.ToLower(b.Location),
			Severity:       models.SeverityMedium,
			Explanation:    "Uniform bucket-level access is disabled; object ACLs can grant access outside IAM.",
			Recommendation: "Enable uniform bucket-level access so bucket IAM is the only access control.",
			DetectedAt:     time.Now().UTC(),
		})
	}
	return findings
}
