package domain

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// Action is what a rule does with matching traffic.
type Action string

const (
	ActionPermit Action = "permit"
	ActionDeny   Action = "deny"
)

// ValidAction reports whether a is a known action.
func ValidAction(a Action) bool {
	return a == ActionPermit || a == ActionDeny
}

// Protocol is the IP protocol a rule matches.
type Protocol string

const (
	ProtocolIP   Protocol = "ip"
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolICMP Protocol = "icmp"
)

// ValidProtocol reports whether p is a known protocol.
func ValidProtocol(p Protocol) bool {
	switch p {
	case ProtocolIP, ProtocolTCP, ProtocolUDP, ProtocolICMP:
		return true
	}
	return false
}

// HasPorts reports whether the protocol carries port numbers.
func (p Protocol) HasPorts() bool {
	return p == ProtocolTCP || p == ProtocolUDP
}

// PortRange is an inclusive TCP/UDP port range. The zero value matches any
// port. A single port is a range of length one.
type PortRange struct {
	Lo uint16 `json:"lo"`
	Hi uint16 `json:"hi"`
}

// Any reports whether the range matches every port.
func (r PortRange) Any() bool {
	return r.Lo == 0 && r.Hi == 0
}

// Contains reports whether every port matched by other is matched by r.
func (r PortRange) Contains(other PortRange) bool {
	if r.Any() {
		return true
	}
	if other.Any() {
		return false
	}
	return r.Lo <= other.Lo && other.Hi <= r.Hi
}

// Overlaps reports whether r and other match at least one common port.
func (r PortRange) Overlaps(other PortRange) bool {
	if r.Any() || other.Any() {
		return true
	}
	return r.Lo <= other.Hi && other.Lo <= r.Hi
}

// String renders the range in the form accepted by RawRule.Port.
func (r PortRange) String() string {
	switch {
	case r.Any():
		return "any"
	case r.Lo == r.Hi:
		return strconv.Itoa(int(r.Lo))
	default:
		return fmt.Sprintf("%d-%d", r.Lo, r.Hi)
	}
}

// ACLRule is a single normalized access-list entry. Source and Destination
// are canonical prefixes (a bare host parses to /32 or /128), Ports is only
// meaningful when Protocol carries ports, and Sequence orders entries within
// the same ACLNumber.
type ACLRule struct {
	ACLNumber   int          `json:"acl_number"`
	Sequence    int          `json:"sequence"`
	Action      Action       `json:"action"`
	Protocol    Protocol     `json:"protocol"`
	Source      netip.Prefix `json:"source"`
	Destination netip.Prefix `json:"destination"`
	Ports       PortRange    `json:"ports"`
}

// Equal reports whether two rules have identical match space and action.
func (r ACLRule) Equal(other ACLRule) bool {
	return r.ACLNumber == other.ACLNumber &&
		r.Action == other.Action &&
		r.Protocol == other.Protocol &&
		r.Source == other.Source &&
		r.Destination == other.Destination &&
		r.Ports == other.Ports
}

// CatchAll reports whether the rule matches all traffic of its address family.
func (r ACLRule) CatchAll() bool {
	return r.Protocol == ProtocolIP &&
		r.Source.Bits() == 0 &&
		r.Destination.Bits() == 0 &&
		r.Ports.Any()
}

// RawRule is the boundary form of a rule as it appears in rule record files
// and API request bodies. It is parsed and normalized into an ACLRule before
// any other component sees it.
type RawRule struct {
	ACLNumber   int      `json:"acl_number"`
	Sequence    int      `json:"sequence,omitempty"`
	Action      string   `json:"action"`
	Protocol    string   `json:"protocol,omitempty"`
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Port        PortSpec `json:"port,omitempty"`
}

// PortSpec is a raw port field. Accepts a JSON number (single port) or a
// string holding a single port or a "lo-hi" range; empty means any.
type PortSpec string

// UnmarshalJSON accepts both string and numeric port fields.
func (p *PortSpec) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*p = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = PortSpec(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PortSpec(n.String())
	return nil
}
