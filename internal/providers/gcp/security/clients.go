package gcpsecurity

import (
	"context"
	"fmt"

	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// FirewallClient is the narrow Compute Engine interface used for firewall
// collection.
type FirewallClient interface {
	ListFirewalls(ctx context.Context, projectID string) ([]*compute.Firewall, error)
}

// BucketClient is the narrow Cloud Storage interface used for bucket
// collection: listing and bucket IAM policy inspection.
type BucketClient interface {
	ListBuckets(ctx context.Context, projectID string) ([]*storage.Bucket, error)
	GetBucketIAMPolicy(ctx context.Context, bucket string) (*storage.Policy, error)
}

type firewallClient struct {
	svc *compute.Service
}

// NewFirewallClient is the production FirewallClient factory.
func NewFirewallClient(ctx context.Context, opts ...option.ClientOption) (FirewallClient, error) {
	svc, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &firewallClient{svc: svc}, nil
}

func (c *firewallClient) ListFirewalls(ctx context.Context, projectID string) ([]*compute.Firewall, error) {
	var out []*compute.Firewall
	err := c.svc.Firewalls.List(projectID).Pages(ctx, func(page *compute.FirewallList) error {
		out = append(out, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list firewalls in %s: %w", projectID, err)
	}
	return out, nil
}

type bucketClient struct {
	svc *storage.Service
}

// NewBucketClient is the production BucketClient factory.
func NewBucketClient(ctx context.Context, opts ...option.ClientOption) (BucketClient, error) {
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &bucketClient{svc: svc}, nil
}

func (c *bucketClient) ListBuckets(ctx context.Context, projectID string) ([]*storage.Bucket, error) {
	var out []*storage.Bucket
	err := c.svc.Buckets.List(projectID).Pages(ctx, func(page *storage.Buckets) error {
		out = append(out, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list buckets in %s: %w", projectID, err)
	}
	return out, nil
}

func (c *bucketClient) GetBucketIAMPolicy(ctx context.Context, bucket string) (*storage.Policy, error) {
	p, err := c.svc.Buckets.GetIamPolicy(bucket).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get IAM policy for bucket %s: %w", bucket, err)
	}
	return p, nil
}
