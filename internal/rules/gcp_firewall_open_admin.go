package rules

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

const (
	sshPort = 22
	rdpPort = 3389
)

var internetRanges = []string{"0.0.0.0/0", "::/0"}

// GCPFirewallOpenAdminRule flags enabled ingress firewall rules that allow
// remote admin ports (SSH 22 or RDP 3389) from the whole internet. Each
// firewall produces at most one finding.
type GCPFirewallOpenAdminRule struct{}

func (r GCPFirewallOpenAdminRule) ID() string { return "GCP_FIREWALL_OPEN_ADMIN" }
func (r GCPFirewallOpenAdminRule) Name() string {
	return "Firewall Rule With Open Remote Admin Access"
}

func (r GCPFirewallOpenAdminRule) Evaluate(ctx RuleContext) []models.Finding {
	if ctx.Security == nil {
		return nil
	}
	var findings []models.Finding
	for _, fw := range ctx.Security.Firewalls {
		if fw.Disabled || !strings.EqualFold(fw.Direction, "INGRESS") {
			continue
		}
		cidr := openRange(fw.SourceRanges)
		if cidr == "" {
			continue
		}
		port, ok := exposedAdminPort(fw.Ports)
		if !ok {
			continue
		}
		resourceID := fw.ProjectID + "/" + fw.Name
		findings = append(findings, models.Finding{
			ID:             fmt.Sprintf("%s-%s", r.ID(), resourceID),
			RuleID:         r.ID(),
			ResourceID:     resourceID,
			ResourceType:   models.ResourceGCPFirewall,
			ProjectID:      fw.ProjectID,
			Region:         "global",
			Severity:       models.SeverityHigh,
			Explanation:    fmt.Sprintf("Firewall rule %s allows remote admin access (port %d) from %s.", fw.Name, port, cidr),
			Recommendation: "Restrict SSH/RDP source ranges to trusted networks or use Identity-Aware Proxy TCP forwarding.",
			DetectedAt:     time.Now().UTC(),
			Metadata: map[string]any{
				"network":   fw.Network,
				"open_cidr": cidr,
				"port":      port,
			},
		})
	}
	return findings
}

func openRange(ranges []string) string {
	for _, r := range ranges {
		if slices.Contains(internetRanges, r) {
			return r
		}
	}
	return ""
}

// exposedAdminPort returns the first admin port covered by specs. A spec is
// a single port ("22") or an inclusive range ("20-30").
func exposedAdminPort(specs []string) (int, bool) {
	for _, admin := range []int{sshPort, rdpPort} {
		for _, spec := range specs {
			if portInSpec(admin, spec) {
				return admin, true
			}
		}
	}
	return 0, false
}

func portInSpec(port int, spec string) bool {
	lo, hi, isRange := strings.Cut(spec, "-")
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return false
	}
	to := from
	if isRange {
		if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
			return false
		}
	}
	return port >= from && port <= to
}
