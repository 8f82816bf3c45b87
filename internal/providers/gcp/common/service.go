package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/fanout"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

const (
	DefaultRegion     = "global"
	DefaultAPIVersion = "v1"
)

// Service is the per-service adapter used by collectors: it owns an
// authenticated API client of type T and the list of candidate projects
// where the service API is enabled.
//
// A Service is read-only after NewService returns and is safe to share
// across goroutines as long as T is.
type Service[T any] struct {
	// Name is the lowercase service name, e.g. "compute".
	Name string

	APIVersion string
	Region     string

	DefaultProjectID string

	// ProjectIDs are the candidate projects whose service state was not
	// DISABLED at construction time, in candidate order.
	ProjectIDs []string

	// Excluded holds the status of every candidate left out of ProjectIDs.
	Excluded []ProjectStatus

	credentials *google.Credentials
	client      T
	concurrency int
	logger      zerolog.Logger
}

type serviceOptions struct {
	region       string
	apiVersion   string
	concurrency  int
	logger       zerolog.Logger
	usageFactory UsageClientFactory
}

// ServiceOption configures NewService.
type ServiceOption func(*serviceOptions)

// WithRegion sets the region scope. Defaults to "global".
func WithRegion(region string) ServiceOption {
	return func(o *serviceOptions) { o.region = region }
}

// WithAPIVersion records the API version the client factory targets.
// Defaults to "v1".
func WithAPIVersion(v string) ServiceOption {
	return func(o *serviceOptions) { o.apiVersion = v }
}

// WithConcurrency caps in-flight status checks and RunConcurrent calls.
// Non-positive values select fanout.DefaultLimit.
func WithConcurrency(n int) ServiceOption {
	return func(o *serviceOptions) { o.concurrency = n }
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(o *serviceOptions) { o.logger = l }
}

// WithUsageClientFactory replaces the Service Usage client used for the
// project activity check.
func WithUsageClientFactory(f UsageClientFactory) ServiceOption {
	return func(o *serviceOptions) { o.usageFactory = f }
}

// NewService builds the client for service through factory and checks which
// of info.ProjectIDs have the service API enabled.
//
// Only a failure to build the client is returned. Status check failures are
// logged and exclude the affected project; NewService always returns a
// (possibly empty) active project list otherwise.
func NewService[T any](
	ctx context.Context,
	name string,
	info *AuditInfo,
	factory ClientFactory[T],
	opts ...ServiceOption,
) (*Service[T], error) {
	if info == nil {
		return nil, fmt.Errorf("create %s service: nil audit info", name)
	}

	o := serviceOptions{
		region:       DefaultRegion,
		apiVersion:   DefaultAPIVersion,
		concurrency:  fanout.DefaultLimit,
		logger:       zerolog.Nop(),
		usageFactory: NewServiceUsageClient,
	}
	for _, opt := range opts {
		opt(&o)
	}

	name = strings.ToLower(name)
	clientOpts := info.clientOptions()

	client, err := factory(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create %s %s client: %w", name, o.apiVersion, err)
	}

	logger := o.logger.With().Str("service", name).Logger()
	s := &Service[T]{
		Name:             name,
		APIVersion:       o.apiVersion,
		Region:           o.region,
		DefaultProjectID: info.DefaultProjectID,
		credentials:      info.Credentials,
		client:           client,
		concurrency:      o.concurrency,
		logger:           logger,
	}

	if len(info.ProjectIDs) == 0 {
		return s, nil
	}

	usage, err := o.usageFactory(ctx, clientOpts...)
	if err != nil {
		// No project can be verified without the usage client.
		logger.Error().Caller().Str("error_kind", ErrorKind(err)).Err(err).
			Msg("cannot check service state; all projects excluded")
		for _, id := range info.ProjectIDs {
			s.Excluded = append(s.Excluded, ProjectStatus{ProjectID: id, Outcome: OutcomeError, Err: err})
		}
		return s, nil
	}

	s.ProjectIDs, s.Excluded = CheckActiveProjects(ctx, usage, name, info.ProjectIDs, o.concurrency, o.logger)
	return s, nil
}

// Client returns the API client owned by the adapter.
func (s *Service[T]) Client() T {
	return s.client
}

// AuthorizedHTTPClient returns an HTTP client that attaches the adapter's
// credentials to every request, for endpoints the generated client does not
// cover.
func (s *Service[T]) AuthorizedHTTPClient(ctx context.Context) *http.Client {
	var ts oauth2.TokenSource
	if s.credentials != nil {
		ts = s.credentials.TokenSource
	}
	return oauth2.NewClient(ctx, ts)
}

// ExcludedProjects reports every skipped candidate project. Disabled
// projects carry the console URL where the API can be enabled.
func (s *Service[T]) ExcludedProjects() []models.GCPExcludedProject {
	var out []models.GCPExcludedProject
	for _, st := range s.Excluded {
		ex := models.GCPExcludedProject{
			Service:   s.Name,
			ProjectID: st.ProjectID,
			Outcome:   string(st.Outcome),
		}
		if st.Err != nil {
			ex.Error = st.Err.Error()
		}
		if errors.Is(st.Err, ErrUsageAPIDisabled) {
			ex.Reason = models.ReasonUsageAPIDisabled
		}
		if st.Outcome == OutcomeDisabled {
			ex.RemediationURL = RemediationURL(s.Name, st.ProjectID)
		}
		out = append(out, ex)
	}
	return out
}

// ForEachProject runs call once per active project. See RunConcurrent.
func (s *Service[T]) ForEachProject(ctx context.Context, call func(ctx context.Context, projectID string) error) []fanout.Result[string] {
	return RunConcurrent(ctx, s, s.ProjectIDs, call)
}

// RunConcurrent invokes call for every item with at most the adapter's
// concurrency limit in flight, and returns once every call has completed.
// Failed calls are logged and returned in the per-item results; the caller
// collects its own outputs inside call and must guard shared state.
func RunConcurrent[T, I any](ctx context.Context, s *Service[T], items []I, call func(context.Context, I) error) []fanout.Result[I] {
	results := fanout.Run(ctx, s.concurrency, items, call)
	for _, r := range fanout.Failed(results) {
		s.logger.Warn().Ctx(ctx).
			Str("item", fmt.Sprint(r.Item)).
			Str("error_kind", ErrorKind(r.Err)).
			Err(r.Err).
			Msg("concurrent call failed")
	}
	return results
}
