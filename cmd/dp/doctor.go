package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/policy"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/providers/gcp/common"
	gcppack "github.com/pankaj-dahiya-devops/dp-gcp/internal/rulepacks/gcp_security"
)

// doctorServices are the service APIs dp gcp audit security depends on.
var doctorServices = []string{"compute", "storage"}

// DoctorResult is the structured output of dp doctor. It can be serialised to
// JSON via --format=json or rendered as a human-readable table (default).
type DoctorResult struct {
	GCP struct {
		CredentialsFile string `json:"credentials_file,omitempty"`
		Credentials     bool   `json:"credentials_ok"`
		DefaultProject  string `json:"default_project,omitempty"`
		ProjectsOK      bool   `json:"projects_ok"`
		ProjectCount    int    `json:"project_count"`
		Error           string `json:"error,omitempty"`
	} `json:"gcp"`

	Services []DoctorServiceCheck `json:"services"`

	Policy struct {
		Path    string   `json:"path"`
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"policy"`

	OverallHealthy bool `json:"overall_healthy"`
}

// DoctorServiceCheck is the service usage state of one API in the default
// project. Reachable is true when the state could be read at all.
type DoctorServiceCheck struct {
	Service   string `json:"service"`
	Project   string `json:"project"`
	Outcome   string `json:"outcome"`
	Reachable bool   `json:"reachable"`
	Detail    string `json:"detail,omitempty"`
}

// doctorDeps are the GCP entry points diagnostics exercise; tests replace
// them with fakes.
type doctorDeps struct {
	credentials common.CredentialsFunc
	provider    common.AuditInfoProvider
	usage       common.UsageClientFactory
}

func newDoctorCmd(a *app) *cobra.Command {
	var credentials, defaultProject, policyPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run environment diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			deps := doctorDeps{
				credentials: common.LoadCredentials,
				provider:    common.NewDefaultAuditInfoProvider(a.logger),
				usage:       common.NewServiceUsageClient,
			}
			result, err := runDoctor(
				cmd.Context(),
				deps,
				a.loadOptions(credentials, defaultProject, nil),
				policyPath,
				cmd.OutOrStdout(),
				format,
			)
			if err != nil {
				// Rendering failure; let main report it.
				return err
			}
			if !result.OverallHealthy {
				// The diagnostics already explain the failure.
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	cmd.Flags().StringVar(&credentials, "credentials", "", "Service account JSON key (default: Application Default Credentials)")
	cmd.Flags().StringVar(&defaultProject, "default-project", "", "Project whose service APIs are probed")
	cmd.Flags().StringVar(&policyPath, "policy", policy.DefaultPath, "Policy file to validate")
	return cmd
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result.
// The returned error covers only rendering failures (e.g. JSON encode error).
// Callers must inspect result.OverallHealthy to determine whether the
// environment is healthy.
func runDoctor(ctx context.Context, deps doctorDeps, opts common.LoadOptions, policyPath string, w io.Writer, format string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, deps, opts, policyPath)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}

	return result, nil
}

// collectDoctorResult runs all environment checks and populates a DoctorResult.
// It performs no rendering; callers decide how to present the result.
func collectDoctorResult(ctx context.Context, deps doctorDeps, opts common.LoadOptions, policyPath string) DoctorResult {
	var result DoctorResult
	result.GCP.CredentialsFile = opts.CredentialsFile

	// GCP: credentials → project discovery → service usage per API.
	creds, err := deps.credentials(ctx, opts.CredentialsFile)
	if err != nil {
		result.GCP.Error = err.Error()
	} else {
		result.GCP.Credentials = true
		if creds != nil {
			result.GCP.DefaultProject = creds.ProjectID
		}

		info, err := deps.provider.LoadAuditInfo(ctx, opts)
		if err != nil {
			result.GCP.Error = err.Error()
		} else {
			result.GCP.ProjectsOK = true
			result.GCP.ProjectCount = len(info.ProjectIDs)
			result.GCP.DefaultProject = info.DefaultProjectID
			result.Services = probeServices(ctx, deps.usage, info)
		}
	}

	// Policy: stat → load → validate (file is optional).
	result.Policy.Path = policyPath
	_, statErr := os.Stat(policyPath)
	if statErr == nil {
		result.Policy.Present = true
		cfg, loadErr := policy.LoadPolicy(policyPath)
		if loadErr != nil {
			result.Policy.Errors = []string{loadErr.Error()}
		} else {
			errs := policy.Validate(cfg, gcppack.IDs())
			if len(errs) == 0 {
				result.Policy.Valid = true
			} else {
				for _, e := range errs {
					result.Policy.Errors = append(result.Policy.Errors, e.Error())
				}
			}
		}
	} else if !os.IsNotExist(statErr) {
		// Stat error other than "not found": present but unreadable.
		result.Policy.Present = true
		result.Policy.Errors = []string{statErr.Error()}
	}

	servicesOK := len(result.Services) > 0
	for _, s := range result.Services {
		servicesOK = servicesOK && s.Reachable
	}
	result.OverallHealthy = result.GCP.Credentials &&
		result.GCP.ProjectsOK &&
		servicesOK &&
		(!result.Policy.Present || result.Policy.Valid)

	return result
}

// probeServices checks each audited API against the default project only.
// A disabled API is reachable: the audit runs and excludes the project.
func probeServices(ctx context.Context, usage common.UsageClientFactory, info *common.AuditInfo) []DoctorServiceCheck {
	probe := &common.AuditInfo{
		Credentials:      info.Credentials,
		DefaultProjectID: info.DefaultProjectID,
		ProjectIDs:       []string{info.DefaultProjectID},
		ClientOptions:    info.ClientOptions,
	}

	checks := make([]DoctorServiceCheck, 0, len(doctorServices))
	for _, name := range doctorServices {
		check := DoctorServiceCheck{Service: name, Project: info.DefaultProjectID}
		svc, err := common.NewService(ctx, name, probe, noClient, common.WithUsageClientFactory(usage))
		switch {
		case err != nil:
			check.Outcome = string(common.OutcomeError)
			check.Detail = err.Error()
		case len(svc.ProjectIDs) == 1:
			check.Outcome = string(common.OutcomeActive)
			check.Reachable = true
		default:
			ex := svc.ExcludedProjects()[0]
			check.Outcome = ex.Outcome
			check.Reachable = ex.Outcome == string(common.OutcomeDisabled)
			check.Detail = ex.RemediationURL
			if ex.Error != "" {
				check.Detail = ex.Error
			}
		}
		checks = append(checks, check)
	}
	return checks
}

// renderDoctorTable writes the human-readable diagnostic output from result to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	fmt.Fprintln(w, "\nGCP:")
	source := "Application Default Credentials"
	if result.GCP.CredentialsFile != "" {
		source = result.GCP.CredentialsFile
	}
	if !result.GCP.Credentials {
		doctorPrint(w, "Credentials", "FAIL", result.GCP.Error)
		doctorPrint(w, "Project Discovery", "FAIL", "skipped")
	} else {
		doctorPrint(w, "Credentials", "OK", source)
		if result.GCP.ProjectsOK {
			doctorPrint(w, "Project Discovery", "OK",
				fmt.Sprintf("%d project(s), default: %s", result.GCP.ProjectCount, result.GCP.DefaultProject))
		} else {
			doctorPrint(w, "Project Discovery", "FAIL", result.GCP.Error)
		}
	}

	fmt.Fprintln(w, "\nService APIs:")
	if len(result.Services) == 0 {
		doctorPrint(w, "Service Usage", "FAIL", "skipped")
	}
	for _, s := range result.Services {
		label := s.Service + " (" + s.Project + ")"
		switch {
		case s.Outcome == string(common.OutcomeActive):
			doctorPrint(w, label, "OK", "")
		case s.Reachable:
			doctorPrint(w, label, "DISABLED", s.Detail)
		default:
			doctorPrint(w, label, "FAIL", s.Outcome+": "+s.Detail)
		}
	}

	fmt.Fprintln(w, "\nPolicy:")
	if !result.Policy.Present {
		doctorPrint(w, result.Policy.Path+" present", "Not found (optional)", "")
	} else {
		doctorPrint(w, result.Policy.Path+" present", "YES", "")
		if result.Policy.Valid {
			doctorPrint(w, "Policy valid", "OK", "")
		} else {
			for _, e := range result.Policy.Errors {
				doctorPrint(w, "Policy valid", "FAIL", e)
			}
		}
	}
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
