package engine

import (
	"context"

	"google.golang.org/api/option"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

// AuditType identifies the category of audit to run.
type AuditType string

const (
	AuditTypeSecurity AuditType = "security"
)

// ReportFormat controls the CLI output format.
type ReportFormat string

const (
	ReportFormatJSON  ReportFormat = "json"
	ReportFormatTable ReportFormat = "table"
)

// AuditOptions configures a single audit run.
// It is the sole input to Engine.RunAudit.
type AuditOptions struct {
	// AuditType selects the audit module (e.g. "security").
	AuditType AuditType

	// CredentialsFile is a service account or authorized-user JSON key.
	// Empty means Application Default Credentials.
	CredentialsFile string

	// DefaultProject overrides the project the credentials resolve to.
	DefaultProject string

	// Projects is an explicit list of project IDs to audit.
	// When empty the engine discovers every ACTIVE project.
	Projects []string

	// ReportFormat controls how the CLI renders the returned report.
	ReportFormat ReportFormat

	// ClientOptions are applied to every Google API client the audit builds.
	ClientOptions []option.ClientOption
}

// Engine is the central orchestration interface.
// It coordinates provider collection and rule evaluation, returning a fully
// populated AuditReport.
//
// Engine must not call GCP API clients directly; it delegates to the
// appropriate provider and rule interfaces.
type Engine interface {
	RunAudit(ctx context.Context, opts AuditOptions) (*models.AuditReport, error)
}
