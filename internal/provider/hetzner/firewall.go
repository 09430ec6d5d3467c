package hetzner

import (
	"context"
	"fmt"
	"net"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/adam-stokes/ogc-sub000/internal/config"
	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
	"github.com/adam-stokes/ogc-sub000/internal/util/retry"
)

var (
	anyIPv4 = net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)}
	anyIPv6 = net.IPNet{IP: net.IPv6zero, Mask: net.CIDRMask(0, 128)}
)

// firewallRules opens every layout port range to the world over TCP.
func firewallRules(l config.Layout) ([]hcloud.FirewallRule, error) {
	ranges, err := l.PortRanges()
	if err != nil {
		return nil, err
	}
	rules := make([]hcloud.FirewallRule, 0, len(ranges))
	for _, r := range ranges {
		rules = append(rules, hcloud.FirewallRule{
			Direction:   hcloud.FirewallRuleDirectionIn,
			Protocol:    hcloud.FirewallRuleProtocolTCP,
			Port:        hcloud.Ptr(r.String()),
			SourceIPs:   []net.IPNet{anyIPv4, anyIPv6},
			Description: hcloud.Ptr("ogc " + l.Name),
		})
	}
	return rules, nil
}

func (a *Adapter) ensureFirewall(ctx context.Context, instance string, l config.Layout, fwLabels map[string]string) (*hcloud.Firewall, error) {
	rules, err := firewallRules(l)
	if err != nil {
		return nil, retry.Fatal(err)
	}
	name := naming.Firewall(instance)

	return (&ensureOperation[*hcloud.Firewall, hcloud.FirewallCreateOpts]{
		Name:         name,
		ResourceType: "firewall",
		Get:          a.client.Firewall.Get,
		Create: func(ctx context.Context, opts hcloud.FirewallCreateOpts) (*hcloud.Firewall, []*hcloud.Action, error) {
			res, _, err := a.client.Firewall.Create(ctx, opts)
			if err != nil {
				return nil, nil, err
			}
			return res.Firewall, res.Actions, nil
		},
		Opts: func() hcloud.FirewallCreateOpts {
			return hcloud.FirewallCreateOpts{Name: name, Rules: rules, Labels: fwLabels}
		},
	}).execute(ctx, a)
}

func (a *Adapter) deleteFirewall(ctx context.Context, instance string) (bool, error) {
	found, err := (&deleteOperation[*hcloud.Firewall]{
		Name:         naming.Firewall(instance),
		ResourceType: "firewall",
		Get:          a.client.Firewall.Get,
		Delete:       a.client.Firewall.Delete,
	}).execute(ctx, a)
	if err != nil {
		return found, fmt.Errorf("server %s: %w", instance, err)
	}
	return found, nil
}
