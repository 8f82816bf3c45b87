package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/config"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/engine"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/output"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/policy"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/providers/gcp/common"
	gcpsecurity "github.com/pankaj-dahiya-devops/dp-gcp/internal/providers/gcp/security"
	gcppack "github.com/pankaj-dahiya-devops/dp-gcp/internal/rulepacks/gcp_security"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/rules"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/telemetry"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/version"
)

// exitError ends the process with code without printing anything further.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// app holds global flag values and the process-wide logger, config and
// telemetry set up before any subcommand runs.
type app struct {
	configPath     string
	logLevel       string
	logFormat      string
	maxConcurrency int
	metricsFile    string

	cfg             *config.Config
	logger          zerolog.Logger
	shutdownTracing func(context.Context) error
}

func newApp() *app {
	return &app{cfg: config.Default(), logger: zerolog.Nop()}
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dp",
		Short:         "GCP security posture auditor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default ~/.config/dp-gcp/config.yaml)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format: json or console")
	pf.IntVar(&a.maxConcurrency, "max-concurrency", 0, "Maximum in-flight API calls per service")
	pf.StringVar(&a.metricsFile, "metrics-textfile", "", "Write Prometheus metrics to this file after the run")

	root.AddCommand(newGCPCmd(a))
	root.AddCommand(newDoctorCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// setup loads the config file, applies flag overrides and starts logging
// and tracing.
func (a *app) setup(cmd *cobra.Command) error {
	loader := config.NewFileLoader(a.configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("max-concurrency") {
		cfg.GCP.MaxConcurrency = a.maxConcurrency
	}
	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = a.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration %q: %w", loader.ConfigPath(), err)
	}

	logger, err := telemetry.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, telemetry.LogFormat(strings.ToLower(cfg.Log.Format)))
	if err != nil {
		return err
	}
	shutdown, err := telemetry.SetupTracing(cmd.Context(), telemetry.TracingConfig{
		Endpoint:   cfg.Telemetry.OTLPEndpoint,
		Insecure:   cfg.Telemetry.Insecure,
		SampleRate: cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.shutdownTracing = shutdown
	return nil
}

// finish flushes spans and writes the metrics textfile. Failures are logged
// only; they never change the exit status.
func (a *app) finish(ctx context.Context) {
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("flush traces")
		}
	}
	if a.cfg.Metrics.Textfile != "" {
		if err := telemetry.WriteMetrics(a.cfg.Metrics.Textfile); err != nil {
			a.logger.Warn().Err(err).Str("path", a.cfg.Metrics.Textfile).Msg("write metrics textfile")
		}
	}
}

// loadOptions merges per-command flags over the config file.
func (a *app) loadOptions(credentials, defaultProject string, projects []string) common.LoadOptions {
	opts := common.LoadOptions{
		CredentialsFile: a.cfg.GCP.CredentialsFile,
		DefaultProject:  a.cfg.GCP.DefaultProject,
		Projects:        a.cfg.GCP.Projects,
		ClientOptions:   []option.ClientOption{option.WithUserAgent(version.UserAgent())},
	}
	if credentials != "" {
		opts.CredentialsFile = credentials
	}
	if defaultProject != "" {
		opts.DefaultProject = defaultProject
	}
	if len(projects) > 0 {
		opts.Projects = projects
	}
	return opts
}

func (a *app) serviceOptions() []common.ServiceOption {
	return []common.ServiceOption{
		common.WithLogger(a.logger),
		common.WithConcurrency(a.cfg.GCP.MaxConcurrency),
	}
}

func newGCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gcp",
		Short: "GCP provider commands",
	}
	cmd.AddCommand(newAuditCmd(a))
	cmd.AddCommand(newServicesCmd(a))
	return cmd
}

func newAuditCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run an audit against GCP projects",
	}
	cmd.AddCommand(newSecurityCmd(a))
	return cmd
}

// reportView selects how an AuditReport is presented.
type reportView struct {
	format  string
	summary bool
	output  string
}

func newSecurityCmd(a *app) *cobra.Command {
	var (
		projects       []string
		credentials    string
		defaultProject string
		policyPath     string
		view           reportView
	)

	cmd := &cobra.Command{
		Use:   "security",
		Short: "Audit firewall exposure and Cloud Storage access",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := rules.NewDefaultRuleRegistry(gcppack.New()...)
			polCfg, err := loadPolicy(policyPath, registry.IDs())
			if err != nil {
				return err
			}
			eng := engine.NewGCPSecurityEngine(
				common.NewDefaultAuditInfoProvider(a.logger),
				gcpsecurity.NewDefaultSecurityCollector(a.logger, common.WithConcurrency(a.cfg.GCP.MaxConcurrency)),
				registry,
				polCfg,
				a.logger,
			)

			lo := a.loadOptions(credentials, defaultProject, projects)
			opts := engine.AuditOptions{
				AuditType:       engine.AuditTypeSecurity,
				CredentialsFile: lo.CredentialsFile,
				DefaultProject:  lo.DefaultProject,
				Projects:        lo.Projects,
				ReportFormat:    engine.ReportFormat(view.format),
				ClientOptions:   lo.ClientOptions,
			}

			failing, err := runSecurityAudit(cmd.Context(), eng, opts, polCfg, cmd.OutOrStdout(), view)
			if err != nil {
				return err
			}
			if len(failing) > 0 {
				a.logger.Error().
					Int("findings", len(failing)).
					Str("top_finding", failing[0].ResourceID).
					Str("fail_on_severity", polCfg.Enforcement[string(engine.AuditTypeSecurity)].FailOnSeverity).
					Msg("policy enforcement failed")
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&projects, "project", nil, "GCP project ID(s) to audit (default: every ACTIVE project)")
	cmd.Flags().StringVar(&credentials, "credentials", "", "Service account JSON key (default: Application Default Credentials)")
	cmd.Flags().StringVar(&defaultProject, "default-project", "", "Project used for global calls (default: the credentials' project)")
	cmd.Flags().StringVar(&policyPath, "policy", policy.DefaultPath, "Policy file; ignored when absent")
	cmd.Flags().StringVar(&view.format, "report", "table", "Output format: json or table")
	cmd.Flags().BoolVar(&view.summary, "summary", false, "Print compact summary: totals, severity breakdown, top-5 findings")
	cmd.Flags().StringVar(&view.output, "output", "", "Write full JSON report to this file path (in addition to stdout output)")

	return cmd
}

// loadPolicy reads the optional policy file and checks it against ruleIDs.
// A missing file yields a nil policy.
func loadPolicy(path string, ruleIDs []string) (*policy.PolicyConfig, error) {
	cfg, err := policy.LoadOptional(path)
	if err != nil {
		return nil, fmt.Errorf("load policy %q: %w", path, err)
	}
	if cfg == nil {
		return nil, nil
	}
	if errs := policy.Validate(cfg, ruleIDs); len(errs) > 0 {
		return nil, fmt.Errorf("invalid policy %q: %w", path, errors.Join(errs...))
	}
	return cfg, nil
}

// runSecurityAudit runs the audit, renders the report to w and returns the
// findings that reach the policy's fail_on_severity threshold.
func runSecurityAudit(
	ctx context.Context,
	eng engine.Engine,
	opts engine.AuditOptions,
	polCfg *policy.PolicyConfig,
	w io.Writer,
	view reportView,
) ([]models.Finding, error) {
	report, err := eng.RunAudit(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("audit failed: %w", err)
	}

	if view.output != "" {
		if err := writeReportToFile(view.output, report); err != nil {
			return nil, err
		}
	}

	switch {
	case view.summary:
		printSummary(w, report)
	case view.format == string(engine.ReportFormatJSON):
		if err := printJSON(w, report); err != nil {
			return nil, err
		}
	default:
		printTable(w, report)
	}

	return policy.FailingFindings(string(engine.AuditTypeSecurity), report.Findings, polCfg), nil
}

func newServicesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "Inspect GCP service API state across projects",
	}
	cmd.AddCommand(newServicesStatusCmd(a))
	return cmd
}

func newServicesStatusCmd(a *app) *cobra.Command {
	var (
		services       []string
		projects       []string
		credentials    string
		defaultProject string
		format         string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which projects have each service API enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runServicesStatus(
				cmd.Context(),
				common.NewDefaultAuditInfoProvider(a.logger),
				common.NewServiceUsageClient,
				services,
				a.loadOptions(credentials, defaultProject, projects),
				a.serviceOptions(),
				cmd.OutOrStdout(),
				format,
			)
			return err
		},
	}

	cmd.Flags().StringSliceVar(&services, "service", []string{"compute", "storage"}, "Service name(s), e.g. compute, storage, sqladmin")
	cmd.Flags().StringSliceVar(&projects, "project", nil, "GCP project ID(s) to check (default: every ACTIVE project)")
	cmd.Flags().StringVar(&credentials, "credentials", "", "Service account JSON key (default: Application Default Credentials)")
	cmd.Flags().StringVar(&defaultProject, "default-project", "", "Project used for global calls")
	cmd.Flags().StringVar(&format, "format", "table", `Output format: "table" or "json"`)
	return cmd
}

// ServiceStatus is the per-service result of dp gcp services status.
type ServiceStatus struct {
	Service    string                      `json:"service"`
	Candidates int                         `json:"candidates"`
	Active     []string                    `json:"active"`
	Excluded   []models.GCPExcludedProject `json:"excluded,omitempty"`
}

// noClient is the adapter client for status-only checks, which need nothing
// beyond the service usage client the adapter builds itself.
func noClient(context.Context, ...option.ClientOption) (struct{}, error) {
	return struct{}{}, nil
}

// runServicesStatus builds one adapter per service and renders which
// candidate projects each one kept.
func runServicesStatus(
	ctx context.Context,
	provider common.AuditInfoProvider,
	usage common.UsageClientFactory,
	services []string,
	loadOpts common.LoadOptions,
	serviceOpts []common.ServiceOption,
	w io.Writer,
	format string,
) ([]ServiceStatus, error) {
	info, err := provider.LoadAuditInfo(ctx, loadOpts)
	if err != nil {
		return nil, fmt.Errorf("load audit info: %w", err)
	}

	opts := append([]common.ServiceOption{common.WithUsageClientFactory(usage)}, serviceOpts...)
	statuses := make([]ServiceStatus, 0, len(services))
	for _, name := range services {
		svc, err := common.NewService(ctx, name, info, noClient, opts...)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, ServiceStatus{
			Service:    svc.Name,
			Candidates: len(info.ProjectIDs),
			Active:     svc.ProjectIDs,
			Excluded:   svc.ExcludedProjects(),
		})
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(statuses); err != nil {
			return statuses, fmt.Errorf("encode service status: %w", err)
		}
		return statuses, nil
	}
	renderServiceStatus(w, statuses)
	return statuses, nil
}

func renderServiceStatus(w io.Writer, statuses []ServiceStatus) {
	for i, st := range statuses {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s: %d/%d projects active\n", st.Service, len(st.Active), st.Candidates)
		if len(st.Active) > 0 {
			fmt.Fprintf(w, "  active: %s\n", strings.Join(st.Active, ", "))
		}
		if len(st.Excluded) > 0 {
			fmt.Fprintln(w)
			output.RenderExcluded(w, st.Excluded)
		}
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dp version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// printJSON writes the report as indented JSON to w.
func printJSON(w io.Writer, report *models.AuditReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// writeReportToFile serialises report as indented JSON and writes it to path,
// creating or overwriting the file. It does not affect stdout output.
func writeReportToFile(path string, report *models.AuditReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report file %q: %w", path, err)
	}
	return nil
}

// printSummary renders a compact summary view to w:
//   - Default project and project counts header
//   - Total findings
//   - Per-severity finding counts
//   - Top 5 findings (the report is already ordered by severity)
//
// It reuses the already-computed AuditReport; no engine logic is duplicated.
func printSummary(w io.Writer, report *models.AuditReport) {
	s := report.Summary

	fmt.Fprintf(w, "Default Project:  %s\n", report.DefaultProjectID)
	fmt.Fprintf(w, "Projects:         %d audited, %d excluded\n", s.ProjectsAudited, s.ProjectsExcluded)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Findings:   %d\n", s.TotalFindings)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Severity Breakdown")
	fmt.Fprintf(w, "  %-10s  %d\n", "CRITICAL", s.CriticalFindings)
	fmt.Fprintf(w, "  %-10s  %d\n", "HIGH", s.HighFindings)
	fmt.Fprintf(w, "  %-10s  %d\n", "MEDIUM", s.MediumFindings)
	fmt.Fprintf(w, "  %-10s  %d\n", "LOW", s.LowFindings)

	top := topFindings(report.Findings, 5)
	if len(top) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Top Findings")
	fmt.Fprintf(w, "  %-42s  %-24s  %-10s  %s\n", "RESOURCE ID", "PROJECT", "SEVERITY", "RULE")
	fmt.Fprintf(w, "  %s\n", strings.Repeat("-", 100))
	for _, f := range top {
		fmt.Fprintf(w, "  %-42s  %-24s  %-10s  %s\n",
			f.ResourceID, f.ProjectID, string(f.Severity), f.RuleID)
	}
}

// topFindings returns up to n findings from the front of findings.
// The original slice is not modified.
func topFindings(findings []models.Finding, n int) []models.Finding {
	if n > len(findings) {
		n = len(findings)
	}
	out := make([]models.Finding, n)
	copy(out, findings[:n])
	return out
}

// printTable renders a one-line header, the findings table and, when any
// project was skipped, the excluded projects table.
func printTable(w io.Writer, report *models.AuditReport) {
	s := report.Summary
	fmt.Fprintf(w,
		"Default Project: %-24s  Projects: %d  Excluded: %d  Findings: %d\n",
		report.DefaultProjectID,
		s.ProjectsAudited,
		s.ProjectsExcluded,
		s.TotalFindings,
	)
	fmt.Fprintln(w)

	output.RenderTable(w, report.Findings, output.TableOptions{
		IncludeRules:   true,
		IncludeProject: len(report.Projects) > 1,
		LocationLabel:  "LOCATION",
	})

	if len(report.Excluded) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Excluded projects")
		output.RenderExcluded(w, report.Excluded)
	}
}
