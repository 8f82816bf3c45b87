package rules

import (
	"fmt"
	"time"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

// GCPServiceAPIUnverifiedRule reports projects that were left out of a
// service's scan because the API state could not be read. Disabled APIs are
// not reported: nothing of that service can exist in the project.
type GCPServiceAPIUnverifiedRule struct{}

func (r GCPServiceAPIUnverifiedRule) ID() string   { return "GCP_SERVICE_API_UNVERIFIED" }
func (r GCPServiceAPIUnverifiedRule) Name() string { return "Service API State Could Not Be Verified" }

func (r GCPServiceAPIUnverifiedRule) Evaluate(ctx RuleContext) []models.Finding {
	if ctx.Security == nil {
		return nil
	}
	var findings []models.Finding
	for _, ex := range ctx.Security.Excluded {
		if ex.Outcome != "permission_denied" && ex.Outcome != "error" {
			continue
		}
		resourceID := ex.ProjectID + "/" + ex.Service
		findings = append(findings, models.Finding{
			ID:             fmt.Sprintf("%s-%s", r.ID(), resourceID),
			RuleID:         r.ID(),
			ResourceID:     resourceID,
			ResourceType:   models.ResourceGCPServiceAPI,
			ProjectID:      ex.ProjectID,
			Region:         "global",
			Severity:       models.SeverityLow,
			Explanation:    fmt.Sprintf("Could not verify the %s API state (%s); the project was not scanned for it.", ex.Service, ex.Outcome),
			Recommendation: unverifiedRecommendation(ex),
			DetectedAt:     time.Now().UTC(),
			Metadata: map[string]any{
				"outcome": ex.Outcome,
				"reason":  ex.Reason,
				"error":   ex.Error,
			},
		})
	}
	return findings
}

func unverifiedRecommendation(ex models.GCPExcludedProject) string {
	switch {
	case ex.Reason == models.ReasonUsageAPIDisabled:
		return "Enable serviceusage.googleapis.com in the quota project of the audit credentials."
	case ex.Outcome == "permission_denied":
		return "Grant serviceusage.services.get on the project to the audit identity."
	default:
		return "Check the recorded error and rerun the audit for this project."
	}
}
