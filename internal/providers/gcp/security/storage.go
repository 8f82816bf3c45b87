package gcpsecurity

import (
	"slices"

	storage "google.golang.org/api/storage/v1"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

var publicMembers = []string{"allUsers", "allAuthenticatedUsers"}

func toBucket(projectID string, b *storage.Bucket) models.GCPBucket {
	bucket := models.GCPBucket{
		ProjectID: projectID,
		Name:      b.Name,
		Location:  b.Location,
	}
	if cfg := b.IamConfiguration; cfg != nil && cfg.UniformBucketLevelAccess != nil {
		bucket.UniformAccessEnabled = cfg.UniformBucketLevelAccess.Enabled
	}
	return bucket
}

// applyIAMPolicy records every binding that grants a role to a public member.
func applyIAMPolicy(b *models.GCPBucket, p *storage.Policy) {
	b.IAMAvailable = true
	if p == nil {
		return
	}
	for _, binding := range p.Bindings {
		public := false
		for _, m := range binding.Members {
			if !slices.Contains(publicMembers, m) {
				continue
			}
			public = true
			if !slices.Contains(b.PublicMembers, m) {
				b.PublicMembers = append(b.PublicMembers, m)
			}
		}
		if public && !slices.Contains(b.PublicRoles, binding.Role) {
			b.PublicRoles = append(b.PublicRoles, binding.Role)
		}
	}
}
