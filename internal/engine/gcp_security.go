package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/policy"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/providers/gcp/common"
	gcpsecurity "github.com/pankaj-dahiya-devops/dp-gcp/internal/providers/gcp/security"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/rules"
)

// GCPSecurityEngine implements Engine for AuditTypeSecurity.
// It coordinates audit info loading, security data collection, rule
// evaluation and report assembly. It never calls GCP APIs directly; all calls
// are delegated to the AuditInfoProvider and SecurityCollector.
type GCPSecurityEngine struct {
	provider  common.AuditInfoProvider
	collector gcpsecurity.SecurityCollector
	registry  rules.RuleRegistry
	policy    *policy.PolicyConfig
	logger    zerolog.Logger
}

// NewGCPSecurityEngine constructs a GCPSecurityEngine wired to the supplied
// provider, security collector and rule registry. policyCfg may be nil.
func NewGCPSecurityEngine(
	provider common.AuditInfoProvider,
	collector gcpsecurity.SecurityCollector,
	registry rules.RuleRegistry,
	policyCfg *policy.PolicyConfig,
	logger zerolog.Logger,
) *GCPSecurityEngine {
	return &GCPSecurityEngine{
		provider:  provider,
		collector: collector,
		registry:  registry,
		policy:    policyCfg,
		logger:    logger,
	}
}

// RunAudit implements Engine. Only AuditTypeSecurity is accepted.
func (e *GCPSecurityEngine) RunAudit(ctx context.Context, opts AuditOptions) (*models.AuditReport, error) {
	if opts.AuditType != AuditTypeSecurity {
		return nil, fmt.Errorf("unsupported audit type: %q", opts.AuditType)
	}

	info, err := e.provider.LoadAuditInfo(ctx, common.LoadOptions{
		CredentialsFile: opts.CredentialsFile,
		DefaultProject:  opts.DefaultProject,
		Projects:        opts.Projects,
		ClientOptions:   opts.ClientOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("load audit info: %w", err)
	}
	e.logger.Info().Ctx(ctx).
		Str("default_project", info.DefaultProjectID).
		Int("projects", len(info.ProjectIDs)).
		Msg("starting security audit")

	secData, err := e.collector.CollectAll(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("collect security data: %w", err)
	}

	findings := e.evaluateSecurity(secData, info.DefaultProjectID)
	report := buildSecurityReport(info, secData, findings)
	e.logger.Info().Ctx(ctx).
		Int("findings", report.Summary.TotalFindings).
		Int("projects_excluded", report.Summary.ProjectsExcluded).
		Msg("security audit complete")
	return report, nil
}

// evaluateSecurity evaluates all registered rules against the collected
// snapshot in a single RuleContext; every entry carries its own project.
// Policy is applied per rule before findings on the same resource merge.
func (e *GCPSecurityEngine) evaluateSecurity(secData *models.GCPSecurityData, defaultProject string) []models.Finding {
	rctx := rules.RuleContext{
		DefaultProjectID: defaultProject,
		Security:         secData,
	}
	raw := e.registry.EvaluateAll(rctx)
	stampDomain(raw, string(AuditTypeSecurity))
	raw = policy.ApplyPolicy(raw, string(AuditTypeSecurity), e.policy)
	return mergeFindings(raw)
}

// buildSecurityReport assembles the final AuditReport for a security audit.
func buildSecurityReport(
	info *common.AuditInfo,
	secData *models.GCPSecurityData,
	findings []models.Finding,
) *models.AuditReport {
	sortFindings(findings)

	summary := computeSummary(findings)
	summary.ProjectsAudited = len(info.ProjectIDs)
	summary.ProjectsExcluded = countExcludedProjects(secData.Excluded)

	return &models.AuditReport{
		ReportID:         fmt.Sprintf("audit-%d", time.Now().UnixNano()),
		GeneratedAt:      time.Now().UTC(),
		AuditType:        string(AuditTypeSecurity),
		DefaultProjectID: info.DefaultProjectID,
		Projects:         info.ProjectIDs,
		Summary:          summary,
		Findings:         findings,
		Excluded:         secData.Excluded,
	}
}
