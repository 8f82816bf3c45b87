package common

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

type fakeLister struct {
	ids []string
	err error
}

func (f *fakeLister) ListActiveProjects(context.Context) ([]string, error) {
	return f.ids, f.err
}

func credsWithProject(project string) CredentialsFunc {
	return func(context.Context, string) (*google.Credentials, error) {
		return &google.Credentials{ProjectID: project}, nil
	}
}

func listerFactory(l ProjectLister) ProjectListerFactory {
	return func(context.Context, ...option.ClientOption) (ProjectLister, error) { return l, nil }
}

func TestLoadAuditInfo_ExplicitProjects(t *testing.T) {
	lister := &fakeLister{ids: []string{"should-not-be-used"}}
	p := NewDefaultAuditInfoProviderWithFactories(credsWithProject("cred-proj"), listerFactory(lister), zerolog.Nop())

	info, err := p.LoadAuditInfo(context.Background(), LoadOptions{Projects: []string{"a", "b", "a", ""}})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, info.ProjectIDs)
	assert.Equal(t, "cred-proj", info.DefaultProjectID)
	assert.NotNil(t, info.Credentials)
}

func TestLoadAuditInfo_DiscoversProjects(t *testing.T) {
	lister := &fakeLister{ids: []string{"x", "y"}}
	p := NewDefaultAuditInfoProviderWithFactories(credsWithProject(""), listerFactory(lister), zerolog.Nop())

	info, err := p.LoadAuditInfo(context.Background(), LoadOptions{})

	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, info.ProjectIDs)
	assert.Equal(t, "x", info.DefaultProjectID, "first project is the fallback default")
}

func TestLoadAuditInfo_DefaultProjectOverride(t *testing.T) {
	lister := &fakeLister{ids: []string{"x"}}
	p := NewDefaultAuditInfoProviderWithFactories(credsWithProject("cred-proj"), listerFactory(lister), zerolog.Nop())

	info, err := p.LoadAuditInfo(context.Background(), LoadOptions{DefaultProject: "override"})

	require.NoError(t, err)
	assert.Equal(t, "override", info.DefaultProjectID)
}

func TestLoadAuditInfo_DiscoveryFailureFallsBackToDefaultProject(t *testing.T) {
	lister := &fakeLister{err: errors.New("permission denied")}
	p := NewDefaultAuditInfoProviderWithFactories(credsWithProject("cred-proj"), listerFactory(lister), zerolog.Nop())

	info, err := p.LoadAuditInfo(context.Background(), LoadOptions{})

	require.NoError(t, err)
	assert.Equal(t, []string{"cred-proj"}, info.ProjectIDs)
}

func TestLoadAuditInfo_NoProjectResolvable(t *testing.T) {
	lister := &fakeLister{err: errors.New("permission denied")}
	p := NewDefaultAuditInfoProviderWithFactories(credsWithProject(""), listerFactory(lister), zerolog.Nop())

	_, err := p.LoadAuditInfo(context.Background(), LoadOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover projects")
}

func TestLoadAuditInfo_EmptyDiscoveryWithoutDefault(t *testing.T) {
	p := NewDefaultAuditInfoProviderWithFactories(credsWithProject(""), listerFactory(&fakeLister{}), zerolog.Nop())

	_, err := p.LoadAuditInfo(context.Background(), LoadOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no GCP projects to audit")
}

func TestLoadAuditInfo_CredentialsError(t *testing.T) {
	failing := func(context.Context, string) (*google.Credentials, error) {
		return nil, errors.New("could not find default credentials")
	}
	p := NewDefaultAuditInfoProviderWithFactories(failing, listerFactory(&fakeLister{}), zerolog.Nop())

	_, err := p.LoadAuditInfo(context.Background(), LoadOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load GCP credentials")
}

func TestLoadCredentials_MissingFile(t *testing.T) {
	_, err := LoadCredentials(context.Background(), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read credentials file")
}

func TestLoadCredentials_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadCredentials(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse credentials file")
}
