package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/fanout"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/telemetry"
)

// StateDisabled is the service usage state that excludes a project.
const StateDisabled = "DISABLED"

// Outcome classifies a service usage status check.
type Outcome string

const (
	OutcomeActive           Outcome = telemetry.OutcomeActive
	OutcomeDisabled         Outcome = telemetry.OutcomeDisabled
	OutcomePermissionDenied Outcome = telemetry.OutcomePermissionDenied
	OutcomeError            Outcome = telemetry.OutcomeError
)

// ProjectStatus is the result of checking one candidate project.
type ProjectStatus struct {
	ProjectID string
	Outcome   Outcome

	// Err is set for OutcomePermissionDenied and OutcomeError.
	Err error
}

// RemediationURL returns the console page where the service API can be
// enabled for the project.
func RemediationURL(service, projectID string) string {
	return fmt.Sprintf("https://console.developers.google.com/apis/api/%s.googleapis.com/overview?project=%s", service, projectID)
}

// ServiceResourceName returns the service usage resource name for service in
// projectID.
func ServiceResourceName(service, projectID string) string {
	return fmt.Sprintf("projects/%s/services/%s.googleapis.com", projectID, service)
}

var errDisabled = errors.New("service disabled")

// ErrUsageAPIDisabled marks a status check rejected because the Service Usage
// API itself is not enabled for the caller's quota project. Granting
// permissions does not help; the API must be enabled.
var ErrUsageAPIDisabled = errors.New("serviceusage.googleapis.com is not enabled for the caller's quota project")

// usageAPIDisabledReasons are the error reasons Google returns when the
// called API is disabled: the legacy errors[].reason and the ErrorInfo
// reason in details.
var usageAPIDisabledReasons = map[string]struct{}{
	"accessNotConfigured": {},
	"SERVICE_DISABLED":    {},
}

// CheckActiveProjects checks service for every project in projectIDs with at
// most limit checks in flight. It returns the projects whose state is not
// DISABLED, in input order, plus the status of every excluded project.
// A failed check excludes only the project it was made for.
func CheckActiveProjects(
	ctx context.Context,
	usage ServiceUsageClient,
	service string,
	projectIDs []string,
	limit int,
	logger zerolog.Logger,
) (active []string, excluded []ProjectStatus) {
	results := fanout.Run(ctx, limit, projectIDs, func(ctx context.Context, projectID string) error {
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("gcp.service", service),
			attribute.String("gcp.project_id", projectID),
		)
		state, err := usage.ServiceState(ctx, ServiceResourceName(service, projectID))
		if err != nil {
			return err
		}
		if state == StateDisabled {
			return errDisabled
		}
		return nil
	})

	for _, r := range results {
		st := classify(r.Item, r.Err)
		telemetry.ObserveStatusCheck(service, string(st.Outcome))
		logStatus(ctx, logger, service, st)
		if st.Outcome == OutcomeActive {
			active = append(active, st.ProjectID)
			continue
		}
		excluded = append(excluded, st)
	}
	return active, excluded
}

func classify(projectID string, err error) ProjectStatus {
	switch {
	case err == nil:
		return ProjectStatus{ProjectID: projectID, Outcome: OutcomeActive}
	case errors.Is(err, errDisabled):
		return ProjectStatus{ProjectID: projectID, Outcome: OutcomeDisabled}
	case isUsageAPIDisabled(err):
		return ProjectStatus{ProjectID: projectID, Outcome: OutcomeError, Err: fmt.Errorf("%w: %w", ErrUsageAPIDisabled, err)}
	case isPermissionDenied(err):
		return ProjectStatus{ProjectID: projectID, Outcome: OutcomePermissionDenied, Err: err}
	default:
		return ProjectStatus{ProjectID: projectID, Outcome: OutcomeError, Err: err}
	}
}

func isPermissionDenied(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusForbidden
}

func isUsageAPIDisabled(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	for _, item := range gerr.Errors {
		if _, ok := usageAPIDisabledReasons[item.Reason]; ok {
			return true
		}
	}
	for _, d := range gerr.Details {
		info, ok := d.(map[string]any)
		if !ok {
			continue
		}
		reason, _ := info["reason"].(string)
		if _, ok := usageAPIDisabledReasons[reason]; ok {
			return true
		}
	}
	return false
}

func logStatus(ctx context.Context, logger zerolog.Logger, service string, st ProjectStatus) {
	switch st.Outcome {
	case OutcomeDisabled:
		logger.Info().Ctx(ctx).
			Str("service", service).
			Str("project_id", st.ProjectID).
			Str("remediation_url", RemediationURL(service, st.ProjectID)).
			Msgf("%s API has not been used in project %s before or it is disabled", service, st.ProjectID)
	case OutcomePermissionDenied:
		logger.Warn().Ctx(ctx).
			Str("service", service).
			Str("project_id", st.ProjectID).
			Str("error_kind", ErrorKind(st.Err)).
			Err(st.Err).
			Msg("permission denied reading service state; project excluded")
	case OutcomeError:
		logger.Error().Ctx(ctx).Caller().
			Str("service", service).
			Str("project_id", st.ProjectID).
			Str("error_kind", ErrorKind(st.Err)).
			Err(st.Err).
			Msg("service state check failed; project excluded")
	}
}

// ErrorKind returns the dynamic type of err for log fields.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%T", err)
}
