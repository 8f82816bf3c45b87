package common

import (
	"context"
	"fmt"

	crm "google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/serviceusage/v1"
)

// ---------------------------------------------------------------------------
// Narrow client interfaces
//
// Each interface covers only the operations used by this package so tests
// can substitute a small struct returning canned data.
// ---------------------------------------------------------------------------

// ServiceUsageClient reads the enablement state of a service for a project.
type ServiceUsageClient interface {
	// ServiceState returns the state of the service resource name, e.g.
	// "projects/p1/services/compute.googleapis.com" → "ENABLED".
	ServiceState(ctx context.Context, name string) (string, error)
}

// ProjectLister enumerates the projects visible to the credentials.
type ProjectLister interface {
	ListActiveProjects(ctx context.Context) ([]string, error)
}

// ClientFactory builds the API client an adapter owns. opts always carry
// the audit credentials.
type ClientFactory[T any] func(ctx context.Context, opts ...option.ClientOption) (T, error)

// UsageClientFactory builds the client used for service usage checks.
type UsageClientFactory = ClientFactory[ServiceUsageClient]

// ProjectListerFactory builds the client used for project discovery.
type ProjectListerFactory = ClientFactory[ProjectLister]

// ---------------------------------------------------------------------------
// Production implementations
// ---------------------------------------------------------------------------

type usageClient struct {
	svc *serviceusage.Service
}

// NewServiceUsageClient is the production UsageClientFactory backed by the
// Service Usage v1 API.
func NewServiceUsageClient(ctx context.Context, opts ...option.ClientOption) (ServiceUsageClient, error) {
	svc, err := serviceusage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create serviceusage client: %w", err)
	}
	return &usageClient{svc: svc}, nil
}

func (c *usageClient) ServiceState(ctx context.Context, name string) (string, error) {
	resp, err := c.svc.Services.Get(name).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return resp.State, nil
}

type projectLister struct {
	svc *crm.Service
}

// NewProjectLister is the production ProjectListerFactory backed by the
// Cloud Resource Manager v1 API.
func NewProjectLister(ctx context.Context, opts ...option.ClientOption) (ProjectLister, error) {
	svc, err := crm.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create resource manager client: %w", err)
	}
	return &projectLister{svc: svc}, nil
}

// ListActiveProjects pages through every project with lifecycle state
// ACTIVE. Projects pending deletion cannot be scanned.
func (l *projectLister) ListActiveProjects(ctx context.Context) ([]string, error) {
	var ids []string
	err := l.svc.Projects.List().Filter("lifecycleState:ACTIVE").Pages(ctx, func(page *crm.ListProjectsResponse) error {
		for _, p := range page.Projects {
			if p.LifecycleState != "" && p.LifecycleState != "ACTIVE" {
				continue
			}
			ids = append(ids, p.ProjectId)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return ids, nil
}
