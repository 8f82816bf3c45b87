package common

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/telemetry"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeUsage struct {
	mu     sync.Mutex
	states map[string]string
	errs   map[string]error
	names  []string
}

func (f *fakeUsage) ServiceState(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	f.names = append(f.names, name)
	f.mu.Unlock()

	project := strings.Split(name, "/")[1]
	if err, ok := f.errs[project]; ok {
		return "", err
	}
	return f.states[project], nil
}

func (f *fakeUsage) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

func usageFactory(u ServiceUsageClient) UsageClientFactory {
	return func(context.Context, ...option.ClientOption) (ServiceUsageClient, error) {
		return u, nil
	}
}

type fakeClient struct{ name string }

func fakeFactory(context.Context, ...option.ClientOption) (*fakeClient, error) {
	return &fakeClient{name: "fake"}, nil
}

func newTestService(t *testing.T, name string, projects []string, u ServiceUsageClient, opts ...ServiceOption) *Service[*fakeClient] {
	t.Helper()
	info := &AuditInfo{DefaultProjectID: "default-proj", ProjectIDs: projects}
	opts = append([]ServiceOption{WithUsageClientFactory(usageFactory(u))}, opts...)
	svc, err := NewService(context.Background(), name, info, fakeFactory, opts...)
	require.NoError(t, err)
	return svc
}

// ── construction ──────────────────────────────────────────────────────────────

func TestNewService_FiltersDisabledAndFailedProjects(t *testing.T) {
	u := &fakeUsage{
		states: map[string]string{"p1": "ENABLED", "p3": "DISABLED"},
		errs:   map[string]error{"p2": errors.New("connection reset")},
	}

	svc := newTestService(t, "compute", []string{"p1", "p2", "p3"}, u)

	assert.Equal(t, []string{"p1"}, svc.ProjectIDs)
	require.Len(t, svc.Excluded, 2)
	assert.Equal(t, ProjectStatus{ProjectID: "p2", Outcome: OutcomeError, Err: u.errs["p2"]}, svc.Excluded[0])
	assert.Equal(t, ProjectStatus{ProjectID: "p3", Outcome: OutcomeDisabled}, svc.Excluded[1])
	assert.Len(t, u.calls(), 3)
}

func TestNewService_NormalizesNameAndDefaults(t *testing.T) {
	u := &fakeUsage{states: map[string]string{"p1": "ENABLED"}}

	svc := newTestService(t, "CloudSQL", []string{"p1"}, u)

	assert.Equal(t, "cloudsql", svc.Name)
	assert.Equal(t, DefaultRegion, svc.Region)
	assert.Equal(t, DefaultAPIVersion, svc.APIVersion)
	assert.Equal(t, "default-proj", svc.DefaultProjectID)
	assert.Equal(t, []string{"projects/p1/services/cloudsql.googleapis.com"}, u.calls())
	assert.Equal(t, "fake", svc.Client().name)
}

func TestNewService_OptionsOverrideDefaults(t *testing.T) {
	svc := newTestService(t, "compute", nil, &fakeUsage{},
		WithRegion("europe-west1"),
		WithAPIVersion("beta"),
	)

	assert.Equal(t, "europe-west1", svc.Region)
	assert.Equal(t, "beta", svc.APIVersion)
}

func TestNewService_EmptyCandidatesIssuesNoStatusCalls(t *testing.T) {
	var built bool
	factory := func(context.Context, ...option.ClientOption) (ServiceUsageClient, error) {
		built = true
		return &fakeUsage{}, nil
	}
	info := &AuditInfo{}

	svc, err := NewService(context.Background(), "compute", info, fakeFactory, WithUsageClientFactory(factory))

	require.NoError(t, err)
	assert.Empty(t, svc.ProjectIDs)
	assert.Empty(t, svc.Excluded)
	assert.False(t, built, "usage client must not be built without candidates")
}

func TestNewService_StateOtherThanDisabledIsActive(t *testing.T) {
	u := &fakeUsage{states: map[string]string{"p1": "ENABLED", "p2": "STATE_UNSPECIFIED", "p3": ""}}

	svc := newTestService(t, "compute", []string{"p1", "p2", "p3"}, u)

	assert.Equal(t, []string{"p1", "p2", "p3"}, svc.ProjectIDs)
	assert.Empty(t, svc.Excluded)
}

func TestNewService_DuplicatesPreserved(t *testing.T) {
	u := &fakeUsage{states: map[string]string{"p1": "ENABLED", "p2": "ENABLED"}}

	svc := newTestService(t, "compute", []string{"p1", "p2", "p1"}, u)

	assert.Equal(t, []string{"p1", "p2", "p1"}, svc.ProjectIDs)
}

func TestNewService_PermissionDeniedClassifiedSeparately(t *testing.T) {
	denied := &googleapi.Error{Code: http.StatusForbidden, Message: "caller does not have permission"}
	u := &fakeUsage{
		states: map[string]string{"p1": "ENABLED"},
		errs:   map[string]error{"p2": denied},
	}

	svc := newTestService(t, "compute", []string{"p1", "p2"}, u)

	assert.Equal(t, []string{"p1"}, svc.ProjectIDs)
	require.Len(t, svc.Excluded, 1)
	assert.Equal(t, OutcomePermissionDenied, svc.Excluded[0].Outcome)
	assert.ErrorIs(t, svc.Excluded[0].Err, denied)
}

func TestExcludedProjects_CarriesOutcomeAndRemediation(t *testing.T) {
	u := &fakeUsage{
		states: map[string]string{"p1": "ENABLED", "p3": "DISABLED"},
		errs:   map[string]error{"p2": errors.New("connection reset")},
	}

	svc := newTestService(t, "storage", []string{"p1", "p2", "p3"}, u)

	assert.Equal(t, []models.GCPExcludedProject{
		{Service: "storage", ProjectID: "p2", Outcome: "error", Error: "connection reset"},
		{Service: "storage", ProjectID: "p3", Outcome: "disabled", RemediationURL: RemediationURL("storage", "p3")},
	}, svc.ExcludedProjects())
}

func TestExcludedProjects_MarksUsageAPIDisabled(t *testing.T) {
	u := &fakeUsage{errs: map[string]error{"p1": &googleapi.Error{
		Code:   http.StatusForbidden,
		Errors: []googleapi.ErrorItem{{Reason: "accessNotConfigured"}},
	}}}

	svc := newTestService(t, "compute", []string{"p1"}, u)

	ex := svc.ExcludedProjects()
	require.Len(t, ex, 1)
	assert.Equal(t, "error", ex[0].Outcome)
	assert.Equal(t, models.ReasonUsageAPIDisabled, ex[0].Reason)
	assert.Contains(t, ex[0].Error, "serviceusage.googleapis.com is not enabled")
}

func TestNewService_ClientFactoryErrorIsReturned(t *testing.T) {
	failing := func(context.Context, ...option.ClientOption) (*fakeClient, error) {
		return nil, errors.New("no credentials")
	}

	_, err := NewService(context.Background(), "compute", &AuditInfo{}, failing)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create compute v1 client")
}

func TestNewService_NilAuditInfo(t *testing.T) {
	_, err := NewService[*fakeClient](context.Background(), "compute", nil, fakeFactory)
	require.Error(t, err)
}

func TestNewService_UsageClientErrorExcludesEveryProject(t *testing.T) {
	failing := func(context.Context, ...option.ClientOption) (ServiceUsageClient, error) {
		return nil, errors.New("dial failed")
	}
	info := &AuditInfo{ProjectIDs: []string{"p1", "p2"}}

	svc, err := NewService(context.Background(), "compute", info, fakeFactory, WithUsageClientFactory(failing))

	require.NoError(t, err)
	assert.Empty(t, svc.ProjectIDs)
	require.Len(t, svc.Excluded, 2)
	for _, st := range svc.Excluded {
		assert.Equal(t, OutcomeError, st.Outcome)
	}
}

func TestNewService_PassesAuditClientOptionsToFactories(t *testing.T) {
	var clientOpts, usageOpts int
	factory := func(_ context.Context, opts ...option.ClientOption) (*fakeClient, error) {
		clientOpts = len(opts)
		return &fakeClient{}, nil
	}
	usage := func(_ context.Context, opts ...option.ClientOption) (ServiceUsageClient, error) {
		usageOpts = len(opts)
		return &fakeUsage{states: map[string]string{"p1": "ENABLED"}}, nil
	}
	info := &AuditInfo{
		Credentials:   &google.Credentials{ProjectID: "p1"},
		ProjectIDs:    []string{"p1"},
		ClientOptions: []option.ClientOption{option.WithUserAgent("dp-test")},
	}

	_, err := NewService(context.Background(), "compute", info, factory, WithUsageClientFactory(usage))

	require.NoError(t, err)
	assert.Equal(t, 2, clientOpts, "credentials + user agent")
	assert.Equal(t, 2, usageOpts)
}

// ── logging and metrics ───────────────────────────────────────────────────────

func TestNewService_LogsDisabledProjectWithRemediationURL(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	u := &fakeUsage{states: map[string]string{"p9": "DISABLED"}}

	newTestService(t, "dataproc", []string{"p9"}, u, WithLogger(logger))

	out := buf.String()
	assert.Contains(t, out, `"level":"info"`)
	assert.Contains(t, out, `"project_id":"p9"`)
	assert.Contains(t, out, RemediationURL("dataproc", "p9"))
}

func TestNewService_LogsErrorKind(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	u := &fakeUsage{errs: map[string]error{"p1": &googleapi.Error{Code: 500}}}

	newTestService(t, "compute", []string{"p1"}, u, WithLogger(logger))

	out := buf.String()
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"error_kind":"*googleapi.Error"`)
	assert.Contains(t, out, `"caller"`)
}

func TestNewService_RecordsStatusCheckMetrics(t *testing.T) {
	u := &fakeUsage{states: map[string]string{"p1": "ENABLED", "p2": "DISABLED"}}

	newTestService(t, "metricsvc", []string{"p1", "p2"}, u)

	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.ServiceStatusChecks.WithLabelValues("metricsvc", "active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.ServiceStatusChecks.WithLabelValues("metricsvc", "disabled")))
}

// ── RunConcurrent ─────────────────────────────────────────────────────────────

func TestRunConcurrent_InvokesOncePerItemAndWaits(t *testing.T) {
	svc := newTestService(t, "compute", nil, &fakeUsage{}, WithConcurrency(3))
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}

	var (
		calls    atomic.Int32
		inFlight atomic.Int32
		maxSeen  atomic.Int32
		mu       sync.Mutex
		done     = map[int]bool{}
	)
	results := RunConcurrent(context.Background(), svc, items, func(_ context.Context, n int) error {
		calls.Add(1)
		cur := inFlight.Add(1)
		for {
			prev := maxSeen.Load()
			if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)

		mu.Lock()
		done[n] = true
		mu.Unlock()
		return nil
	})

	assert.Equal(t, int32(len(items)), calls.Load())
	assert.Len(t, done, len(items), "every call completed before return")
	assert.LessOrEqual(t, maxSeen.Load(), int32(3))
	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, items[i], r.Item)
		assert.NoError(t, r.Err)
	}
}

func TestRunConcurrent_SurfacesFailuresAndLogsThem(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService(t, "compute", nil, &fakeUsage{}, WithLogger(zerolog.New(&buf)))

	results := RunConcurrent(context.Background(), svc, []string{"a", "b"}, func(_ context.Context, s string) error {
		if s == "b" {
			return errors.New("boom")
		}
		return nil
	})

	assert.NoError(t, results[0].Err)
	assert.EqualError(t, results[1].Err, "boom")
	assert.Contains(t, buf.String(), `"item":"b"`)
	assert.Contains(t, buf.String(), "concurrent call failed")
}

func TestForEachProject_UsesActiveProjects(t *testing.T) {
	u := &fakeUsage{states: map[string]string{"p1": "ENABLED", "p2": "DISABLED", "p3": "ENABLED"}}
	svc := newTestService(t, "compute", []string{"p1", "p2", "p3"}, u)

	var (
		mu   sync.Mutex
		seen []string
	)
	svc.ForEachProject(context.Background(), func(_ context.Context, id string) error {
		mu.Lock()
		seen = append(seen, id)
		mu.Unlock()
		return nil
	})

	assert.ElementsMatch(t, []string{"p1", "p3"}, seen)
}

// ── AuthorizedHTTPClient ──────────────────────────────────────────────────────

func TestAuthorizedHTTPClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	creds := &google.Credentials{TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-123"})}
	info := &AuditInfo{Credentials: creds}
	svc, err := NewService(context.Background(), "compute", info, fakeFactory)
	require.NoError(t, err)

	resp, err := svc.AuthorizedHTTPClient(context.Background()).Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestAuthorizedHTTPClient_WithoutCredentials(t *testing.T) {
	svc := newTestService(t, "compute", nil, &fakeUsage{})
	assert.NotNil(t, svc.AuthorizedHTTPClient(context.Background()))
}
