package version

import "testing"

// stamp sets the build variables for one test and restores them afterwards.
func stamp(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = v, c, d })
	Version, Commit, Date = version, commit, date
}

func TestInfo(t *testing.T) {
	tests := []struct {
		name                  string
		version, commit, date string
		want                  string
	}{
		{
			name:    "release build",
			version: "v1.2.3", commit: "deadbeef", date: "2026-01-15",
			want: "dp version v1.2.3\ncommit: deadbeef\nbuilt: 2026-01-15\n",
		},
		{
			name:    "local build",
			version: "dev", commit: "none", date: "unknown",
			want: "dp version dev\ncommit: none\nbuilt: unknown\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stamp(t, tt.version, tt.commit, tt.date)
			if got := Info(); got != tt.want {
				t.Errorf("Info() = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestUserAgent_CarriesVersion(t *testing.T) {
	stamp(t, "v0.4.0", "none", "unknown")
	if got := UserAgent(); got != "dp-gcp/v0.4.0" {
		t.Errorf("UserAgent() = %q; want dp-gcp/v0.4.0", got)
	}
}
