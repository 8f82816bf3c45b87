package common

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// CloudPlatformScope is the OAuth scope requested for every credential.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// CredentialsFunc loads credentials from a JSON key file, or Application
// Default Credentials when file is empty.
type CredentialsFunc func(ctx context.Context, file string) (*google.Credentials, error)

// DefaultAuditInfoProvider is the production AuditInfoProvider.
//
// Inject custom factories via NewDefaultAuditInfoProviderWithFactories to
// replace credential loading and project discovery in unit tests.
type DefaultAuditInfoProvider struct {
	credentials CredentialsFunc
	projects    ProjectListerFactory
	logger      zerolog.Logger
}

// NewDefaultAuditInfoProvider returns a provider backed by the real Google
// credential chain and Resource Manager API.
func NewDefaultAuditInfoProvider(logger zerolog.Logger) *DefaultAuditInfoProvider {
	return &DefaultAuditInfoProvider{
		credentials: LoadCredentials,
		projects:    NewProjectLister,
		logger:      logger,
	}
}

// NewDefaultAuditInfoProviderWithFactories returns a provider that uses the
// supplied credential loader and project lister factory.
func NewDefaultAuditInfoProviderWithFactories(c CredentialsFunc, p ProjectListerFactory, logger zerolog.Logger) *DefaultAuditInfoProvider {
	return &DefaultAuditInfoProvider{credentials: c, projects: p, logger: logger}
}

// LoadAuditInfo resolves credentials, the default project and the candidate
// project list.
//
// The candidate list is opts.Projects when given; otherwise every ACTIVE
// project visible to the credentials; otherwise the default project alone.
// Discovery failures are non-fatal as long as a default project is known.
func (p *DefaultAuditInfoProvider) LoadAuditInfo(ctx context.Context, opts LoadOptions) (*AuditInfo, error) {
	creds, err := p.credentials(ctx, opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("load GCP credentials: %w", err)
	}

	defaultProject := opts.DefaultProject
	if defaultProject == "" && creds != nil {
		defaultProject = creds.ProjectID
	}

	projects := dedupe(opts.Projects)
	if len(projects) == 0 {
		projects, err = p.discoverProjects(ctx, creds, opts.ClientOptions)
		if err != nil {
			if defaultProject == "" {
				return nil, err
			}
			p.logger.Warn().Err(err).Str("default_project", defaultProject).
				Msg("project discovery failed; auditing default project only")
		}
	}
	if len(projects) == 0 && defaultProject != "" {
		projects = []string{defaultProject}
	}
	if len(projects) == 0 {
		return nil, errors.New("no GCP projects to audit: pass --project or grant resourcemanager.projects.list")
	}
	if defaultProject == "" {
		defaultProject = projects[0]
	}

	return &AuditInfo{
		Credentials:      creds,
		DefaultProjectID: defaultProject,
		ProjectIDs:       projects,
		ClientOptions:    opts.ClientOptions,
	}, nil
}

func (p *DefaultAuditInfoProvider) discoverProjects(ctx context.Context, creds *google.Credentials, extra []option.ClientOption) ([]string, error) {
	var opts []option.ClientOption
	if creds != nil {
		opts = append(opts, option.WithCredentials(creds))
	}
	opts = append(opts, extra...)
	lister, err := p.projects(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("discover projects: %w", err)
	}
	ids, err := lister.ListActiveProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover projects: %w", err)
	}
	return dedupe(ids), nil
}

// LoadCredentials is the production CredentialsFunc.
func LoadCredentials(ctx context.Context, file string) (*google.Credentials, error) {
	if file == "" {
		return google.FindDefaultCredentials(ctx, CloudPlatformScope)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read credentials file %q: %w", file, err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, CloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials file %q: %w", file, err)
	}
	return creds, nil
}

// dedupe removes empty and repeated IDs, preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
