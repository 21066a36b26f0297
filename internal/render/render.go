// Package render converts validated rules into device-native configuration
// command lines. The mapping is pure and stateless; line order follows rule
// order because device ACLs evaluate top-down with first-match semantics.
package render

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/netops-tools/aclpush/internal/domain"
)

// Commands renders the command lines for a single rule.
func Commands(rule domain.ACLRule) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "access-list %d %s %s %s %s",
		rule.ACLNumber, rule.Action, rule.Protocol,
		address(rule.Source), address(rule.Destination))
	if rule.Protocol.HasPorts() && !rule.Ports.Any() {
		if rule.Ports.Lo == rule.Ports.Hi {
			fmt.Fprintf(&b, " eq %d", rule.Ports.Lo)
		} else {
			fmt.Fprintf(&b, " range %d %d", rule.Ports.Lo, rule.Ports.Hi)
		}
	}
	return []string{b.String()}
}

// RuleSet renders all rules in order into one command sequence.
func RuleSet(rules []domain.ACLRule) []string {
	var out []string
	for _, r := range rules {
		out = append(out, Commands(r)...)
	}
	return out
}

// ACLNumbers returns the distinct ACL numbers in rule order.
func ACLNumbers(rules []domain.ACLRule) []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range rules {
		if !seen[r.ACLNumber] {
			seen[r.ACLNumber] = true
			out = append(out, r.ACLNumber)
		}
	}
	return out
}

// ClearACL renders the command removing every entry of one ACL. Rollback
// clears the touched ACLs before replaying the backed-up lines.
func ClearACL(aclNumber int) string {
	return fmt.Sprintf("no access-list %d", aclNumber)
}

// address renders a prefix in the device's address syntax: "any" for the
// default route, "host A.B.C.D" for a single address, and network plus
// wildcard mask otherwise. IPv6 prefixes render in CIDR form.
func address(p netip.Prefix) string {
	if p.Bits() == 0 {
		return "any"
	}
	addr := p.Addr()
	if p.Bits() == addr.BitLen() {
		return "host " + addr.String()
	}
	if addr.Is6() {
		return p.String()
	}
	return addr.String() + " " + wildcardMask(p)
}

// wildcardMask renders the inverted netmask of an IPv4 prefix.
func wildcardMask(p netip.Prefix) string {
	bits := p.Bits()
	var mask uint32
	if bits > 0 {
		mask = ^uint32(0) << (32 - bits)
	}
	wild := ^mask
	return fmt.Sprintf("%d.%d.%d.%d", byte(wild>>24), byte(wild>>16), byte(wild>>8), byte(wild))
}
