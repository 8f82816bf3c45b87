package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/version"
)

func TestVersionCmd_PrintsInfo(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version command returned error: %v", err)
	}
	if out.String() != version.Info() {
		t.Errorf("version output = %q; want %q", out.String(), version.Info())
	}
}
