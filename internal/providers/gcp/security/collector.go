// Package gcpsecurity collects raw security posture data from GCP projects.
package gcpsecurity

import (
	"context"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/providers/gcp/common"
)

// SecurityCollector collects raw security posture data from the projects in
// info. The returned data is passed to the security rule engine.
//
// Implementations must never apply business logic or produce findings.
// Non-fatal collection failures (one project's firewalls unreachable) are
// logged and skipped so the rest of the audit can complete.
type SecurityCollector interface {
	CollectAll(ctx context.Context, info *common.AuditInfo) (*models.GCPSecurityData, error)
}
