package common

import (
	"context"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// AuditInfo is the audit context a scan runs with: the credentials, the
// project used when a call needs a single project, and every candidate
// project to scan. It is owned by the caller and treated as immutable.
type AuditInfo struct {
	// Credentials authenticate every client built from this AuditInfo.
	// Nil means the clients rely on ClientOptions alone.
	Credentials *google.Credentials

	// DefaultProjectID is the project billed for global calls.
	DefaultProjectID string

	// ProjectIDs lists the candidate projects to scan.
	ProjectIDs []string

	// ClientOptions are appended after the credentials option when
	// constructing API clients (endpoint overrides, user agent, ...).
	ClientOptions []option.ClientOption
}

// clientOptions returns the options every API client is built with.
func (a *AuditInfo) clientOptions() []option.ClientOption {
	opts := make([]option.ClientOption, 0, len(a.ClientOptions)+1)
	if a.Credentials != nil {
		opts = append(opts, option.WithCredentials(a.Credentials))
	}
	return append(opts, a.ClientOptions...)
}

// LoadOptions selects the credentials and projects for an audit.
type LoadOptions struct {
	// CredentialsFile is a service account or authorized user JSON key.
	// Empty means Application Default Credentials.
	CredentialsFile string

	// DefaultProject overrides the project embedded in the credentials.
	DefaultProject string

	// Projects is an explicit candidate list. When empty every ACTIVE
	// project visible to the credentials is discovered.
	Projects []string

	// ClientOptions are copied into the resulting AuditInfo and used for
	// project discovery.
	ClientOptions []option.ClientOption
}

// AuditInfoProvider resolves credentials and candidate projects.
// It is the sole entry point for GCP credential management across the
// provider layer.
type AuditInfoProvider interface {
	LoadAuditInfo(ctx context.Context, opts LoadOptions) (*AuditInfo, error)
}
