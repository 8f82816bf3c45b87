package gcpsecurity

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
	"github.com/pankaj-dahiya-devops/dp-gcp/internal/providers/gcp/common"
)

const (
	computeService = "compute"
	storageService = "storage"
)

// DefaultSecurityCollector is the production SecurityCollector.
// It builds one adapter per GCP service (compute, storage) and collects
// firewall rules and buckets from every project where that service's API
// is enabled.
type DefaultSecurityCollector struct {
	firewalls   common.ClientFactory[FirewallClient]
	buckets     common.ClientFactory[BucketClient]
	serviceOpts []common.ServiceOption
	logger      zerolog.Logger
}

// NewDefaultSecurityCollector returns a DefaultSecurityCollector wired to
// production GCP API clients. serviceOpts are passed to every adapter.
func NewDefaultSecurityCollector(logger zerolog.Logger, serviceOpts ...common.ServiceOption) *DefaultSecurityCollector {
	return NewDefaultSecurityCollectorWithFactories(NewFirewallClient, NewBucketClient, logger, serviceOpts...)
}

// NewDefaultSecurityCollectorWithFactories returns a DefaultSecurityCollector
// that uses the supplied factories, allowing tests to inject fake clients.
func NewDefaultSecurityCollectorWithFactories(
	fw common.ClientFactory[FirewallClient],
	b common.ClientFactory[BucketClient],
	logger zerolog.Logger,
	serviceOpts ...common.ServiceOption,
) *DefaultSecurityCollector {
	opts := append([]common.ServiceOption{common.WithLogger(logger)}, serviceOpts...)
	return &DefaultSecurityCollector{
		firewalls:   fw,
		buckets:     b,
		serviceOpts: opts,
		logger:      logger,
	}
}

// CollectAll gathers firewall and bucket data across info.ProjectIDs.
// Only a failure to build an API client is returned; per-project and
// per-bucket failures are logged and skipped.
func (c *DefaultSecurityCollector) CollectAll(ctx context.Context, info *common.AuditInfo) (*models.GCPSecurityData, error) {
	computeSvc, err := common.NewService(ctx, computeService, info, c.firewalls, c.serviceOpts...)
	if err != nil {
		return nil, fmt.Errorf("collect firewalls: %w", err)
	}
	storageSvc, err := common.NewService(ctx, storageService, info, c.buckets, c.serviceOpts...)
	if err != nil {
		return nil, fmt.Errorf("collect buckets: %w", err)
	}

	data := &models.GCPSecurityData{
		Firewalls: c.collectFirewalls(ctx, computeSvc),
		Buckets:   c.collectBuckets(ctx, storageSvc),
	}
	data.Excluded = append(computeSvc.ExcludedProjects(), storageSvc.ExcludedProjects()...)

	c.logger.Debug().Ctx(ctx).
		Int("firewalls", len(data.Firewalls)).
		Int("buckets", len(data.Buckets)).
		Int("excluded", len(data.Excluded)).
		Msg("security data collected")
	return data, nil
}

func (c *DefaultSecurityCollector) collectFirewalls(ctx context.Context, svc *common.Service[FirewallClient]) []models.GCPFirewallRule {
	var (
		mu    sync.Mutex
		rules []models.GCPFirewallRule
	)
	svc.ForEachProject(ctx, func(ctx context.Context, projectID string) error {
		fws, err := svc.Client().ListFirewalls(ctx, projectID)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		for _, fw := range fws {
			rules = append(rules, toFirewallRule(projectID, fw))
		}
		return nil
	})

	slices.SortFunc(rules, func(a, b models.GCPFirewallRule) int {
		return cmp.Or(cmp.Compare(a.ProjectID, b.ProjectID), cmp.Compare(a.Name, b.Name))
	})
	return rules
}

// collectBuckets lists buckets per project, then reads every bucket's IAM
// policy in a second fan-out. A bucket whose policy cannot be read is kept
// with IAMAvailable == false.
func (c *DefaultSecurityCollector) collectBuckets(ctx context.Context, svc *common.Service[BucketClient]) []models.GCPBucket {
	var (
		mu      sync.Mutex
		buckets []*models.GCPBucket
	)
	svc.ForEachProject(ctx, func(ctx context.Context, projectID string) error {
		bs, err := svc.Client().ListBuckets(ctx, projectID)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		for _, b := range bs {
			bucket := toBucket(projectID, b)
			buckets = append(buckets, &bucket)
		}
		return nil
	})

	// Each call writes only to its own bucket.
	common.RunConcurrent(ctx, svc, buckets, func(ctx context.Context, b *models.GCPBucket) error {
		policy, err := svc.Client().GetBucketIAMPolicy(ctx, b.Name)
		if err != nil {
			return err
		}
		applyIAMPolicy(b, policy)
		return nil
	})

	out := make([]models.GCPBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b models.GCPBucket) int {
		return cmp.Or(cmp.Compare(a.ProjectID, b.ProjectID), cmp.Compare(a.Name, b.Name))
	})
	return out
}
