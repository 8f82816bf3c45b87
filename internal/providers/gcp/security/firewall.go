package gcpsecurity

import (
	"path"
	"strings"

	compute "google.golang.org/api/compute/v1"

	"github.com/pankaj-dahiya-devops/dp-gcp/internal/models"
)

const allPorts = "0-65535"

// toFirewallRule flattens a compute firewall. Only port-bearing protocols
// contribute to Ports; an allowed entry for tcp, udp or "all" without a port
// list opens every port.
func toFirewallRule(projectID string, fw *compute.Firewall) models.GCPFirewallRule {
	rule := models.GCPFirewallRule{
		ProjectID:    projectID,
		Name:         fw.Name,
		Direction:    fw.Direction,
		Disabled:     fw.Disabled,
		SourceRanges: fw.SourceRanges,
	}
	if fw.Network != "" {
		rule.Network = path.Base(fw.Network)
	}
	if rule.Direction == "" {
		rule.Direction = "INGRESS"
	}
	for _, a := range fw.Allowed {
		switch strings.ToLower(a.IPProtocol) {
		case "tcp", "udp", "all":
		default:
			continue
		}
		if len(a.Ports) == 0 {
			rule.Ports = append(rule.Ports, allPorts)
			continue
		}
		rule.Ports = append(rule.Ports, a.Ports...)
	}
	return rule
}
