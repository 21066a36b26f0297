// Package ruleset turns raw rule records into typed, normalized ACL rules.
// Internal components never see untyped rule data; everything crosses this
// boundary first.
package ruleset

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"strconv"
	"strings"

	"github.com/netops-tools/aclpush/internal/domain"
)

// ParseRules converts a sequence of raw rule records into normalized
// ACLRules. The first malformed record aborts parsing with a
// *domain.MalformedRuleError naming the record and field. No side effects.
func ParseRules(raw []domain.RawRule) ([]domain.ACLRule, error) {
	rules := make([]domain.ACLRule, 0, len(raw))
	for i, rr := range raw {
		rule, err := parseRule(i, rr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ParseRulesJSON reads a JSON array of rule records and parses it.
func ParseRulesJSON(r io.Reader) ([]domain.ACLRule, error) {
	var raw []domain.RawRule
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding rule records: %w", err)
	}
	return ParseRules(raw)
}

func parseRule(index int, rr domain.RawRule) (domain.ACLRule, error) {
	var rule domain.ACLRule

	if rr.ACLNumber <= 0 {
		return rule, malformed(index, "acl_number", "must be a positive integer")
	}
	rule.ACLNumber = rr.ACLNumber
	rule.Sequence = rr.Sequence

	action := domain.Action(strings.ToLower(strings.TrimSpace(rr.Action)))
	if !domain.ValidAction(action) {
		return rule, malformed(index, "action", fmt.Sprintf("must be %q or %q", domain.ActionPermit, domain.ActionDeny))
	}
	rule.Action = action

	// Protocol defaults to ip when absent.
	proto := domain.Protocol(strings.ToLower(strings.TrimSpace(rr.Protocol)))
	if proto == "" {
		proto = domain.ProtocolIP
	}
	if !domain.ValidProtocol(proto) {
		return rule, malformed(index, "protocol", fmt.Sprintf("unknown protocol %q", rr.Protocol))
	}
	rule.Protocol = proto

	src, err := parsePrefix(rr.Source)
	if err != nil {
		return rule, malformed(index, "source", err.Error())
	}
	rule.Source = src

	dst, err := parsePrefix(rr.Destination)
	if err != nil {
		return rule, malformed(index, "destination", err.Error())
	}
	rule.Destination = dst

	if src.Addr().Is4() != dst.Addr().Is4() {
		return rule, malformed(index, "destination", "source and destination address families differ")
	}

	ports, err := parsePorts(rr.Port)
	if err != nil {
		return rule, malformed(index, "port", err.Error())
	}
	if !ports.Any() && !proto.HasPorts() {
		return rule, malformed(index, "port", fmt.Sprintf("ports are not meaningful for protocol %q", proto))
	}
	rule.Ports = ports

	return rule, nil
}

// parsePrefix canonicalizes a CIDR or bare host address. A bare host becomes
// a /32 (or /128) network.
func parsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Prefix{}, fmt.Errorf("must not be empty")
	}
	if s == "any" {
		return netip.PrefixFrom(netip.IPv4Unspecified(), 0), nil
	}
	if !strings.Contains(s, "/") {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid host address %q", s)
		}
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR %q", s)
	}
	return prefix.Masked(), nil
}

// parsePorts canonicalizes a port field: empty means any, a single value
// becomes a range of length one, "lo-hi" is an inclusive range.
func parsePorts(spec domain.PortSpec) (domain.PortRange, error) {
	s := strings.TrimSpace(string(spec))
	if s == "" || s == "any" {
		return domain.PortRange{}, nil
	}

	lo, hi, isRange := strings.Cut(s, "-")
	loPort, err := parsePort(lo)
	if err != nil {
		return domain.PortRange{}, err
	}
	if !isRange {
		return domain.PortRange{Lo: loPort, Hi: loPort}, nil
	}
	hiPort, err := parsePort(hi)
	if err != nil {
		return domain.PortRange{}, err
	}
	if hiPort < loPort {
		return domain.PortRange{}, fmt.Errorf("port range %q is inverted", s)
	}
	return domain.PortRange{Lo: loPort, Hi: hiPort}, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return 0, fmt.Errorf("invalid port number %q", s)
	}
	return uint16(n), nil
}

func malformed(index int, field, reason string) error {
	return &domain.MalformedRuleError{Index: index, Field: field, Reason: reason}
}
