// Package validation checks a device's ruleset for syntactic well-formedness,
// semantic legality, and pairwise logical conflicts. ACLs evaluate top-down
// with first-match semantics, so a later rule whose match space is covered by
// an earlier one can never take effect.
package validation

import (
	"fmt"
	"net/netip"

	"github.com/netops-tools/aclpush/internal/domain"
)

// Policy assigns severities to the finding kinds whose weight is a matter of
// operational taste rather than correctness. DefaultPolicy reflects the
// safest reading: an always-shadowed rule with the opposite action is a logic
// bug, everything else is advisory.
type Policy struct {
	Conflict   domain.Severity
	Overlap    domain.Severity
	Shadowed   domain.Severity
	Duplicate  domain.Severity
	NoCatchAll domain.Severity
}

// DefaultPolicy returns the default severity assignment.
func DefaultPolicy() Policy {
	return Policy{
		Conflict:   domain.SeverityError,
		Overlap:    domain.SeverityWarning,
		Shadowed:   domain.SeverityWarning,
		Duplicate:  domain.SeverityWarning,
		NoCatchAll: domain.SeverityWarning,
	}
}

// Validator validates rulesets under a severity policy.
type Validator struct {
	policy Policy
}

// New creates a Validator with the given policy.
func New(policy Policy) *Validator {
	return &Validator{policy: policy}
}

// Validate checks rules with the default policy.
func Validate(rules []domain.ACLRule) domain.ValidationResult {
	return New(DefaultPolicy()).Validate(rules)
}

// Validate runs all checks over the ruleset and collects every finding; it is
// pure and deterministic. Valid is true iff no error-severity finding exists.
func (v *Validator) Validate(rules []domain.ACLRule) domain.ValidationResult {
	var findings []domain.Finding

	findings = append(findings, v.checkSyntax(rules)...)
	findings = append(findings, v.checkPairs(rules)...)
	findings = append(findings, v.checkCatchAll(rules)...)

	result := domain.ValidationResult{Valid: true, Findings: findings}
	for _, f := range findings {
		if f.Severity == domain.SeverityError {
			result.Valid = false
			break
		}
	}
	return result
}

// checkSyntax verifies each rule is in the parser's normalized form. Rules
// arriving through the parser always pass; this guards direct construction.
func (v *Validator) checkSyntax(rules []domain.ACLRule) []domain.Finding {
	var findings []domain.Finding
	for i, r := range rules {
		if msg := syntaxProblem(r); msg != "" {
			findings = append(findings, domain.Finding{
				Severity:    domain.SeverityError,
				Kind:        domain.FindingSyntax,
				RuleIndexes: []int{i},
				Message:     fmt.Sprintf("rule %d: %s", i, msg),
			})
		}
	}
	return findings
}

func syntaxProblem(r domain.ACLRule) string {
	switch {
	case r.ACLNumber <= 0:
		return "acl_number must be positive"
	case !domain.ValidAction(r.Action):
		return fmt.Sprintf("unknown action %q", r.Action)
	case !domain.ValidProtocol(r.Protocol):
		return fmt.Sprintf("unknown protocol %q", r.Protocol)
	case !r.Source.IsValid():
		return "source prefix is invalid"
	case !r.Destination.IsValid():
		return "destination prefix is invalid"
	case !r.Ports.Any() && !r.Protocol.HasPorts():
		return fmt.Sprintf("ports are not meaningful for protocol %q", r.Protocol)
	}
	return ""
}

// checkPairs compares every later rule against every earlier rule in the
// same ACL. Exact duplicates are reported once as duplicates, full coverage
// with opposing action as a conflict, full coverage with the same action as
// shadowing, and partial overlap with opposing action as an overlap.
func (v *Validator) checkPairs(rules []domain.ACLRule) []domain.Finding {
	var findings []domain.Finding
	for j := 1; j < len(rules); j++ {
		for i := 0; i < j; i++ {
			earlier, later := rules[i], rules[j]
			if earlier.ACLNumber != later.ACLNumber {
				continue
			}
			if syntaxProblem(earlier) != "" || syntaxProblem(later) != "" {
				continue
			}

			switch {
			case earlier.Equal(later):
				findings = append(findings, domain.Finding{
					Severity:    v.policy.Duplicate,
					Kind:        domain.FindingDuplicate,
					RuleIndexes: []int{i, j},
					Message:     fmt.Sprintf("rule %d duplicates rule %d", j, i),
				})
			case subsumes(earlier, later) && earlier.Action != later.Action:
				findings = append(findings, domain.Finding{
					Severity:    v.policy.Conflict,
					Kind:        domain.FindingConflict,
					RuleIndexes: []int{i, j},
					Message: fmt.Sprintf("rule %d (%s) can never take effect: rule %d (%s) already matches its entire space",
						j, later.Action, i, earlier.Action),
				})
			case subsumes(earlier, later):
				findings = append(findings, domain.Finding{
					Severity:    v.policy.Shadowed,
					Kind:        domain.FindingShadowed,
					RuleIndexes: []int{i, j},
					Message:     fmt.Sprintf("rule %d is redundant: rule %d already matches its entire space with the same action", j, i),
				})
			case overlaps(earlier, later) && earlier.Action != later.Action:
				findings = append(findings, domain.Finding{
					Severity:    v.policy.Overlap,
					Kind:        domain.FindingOverlap,
					RuleIndexes: []int{i, j},
					Message: fmt.Sprintf("rules %d (%s) and %d (%s) partially overlap; match order decides which wins",
						i, earlier.Action, j, later.Action),
				})
			}
		}
	}
	return findings
}

// checkCatchAll warns for each ACL number with no explicit final catch-all,
// since the device's implicit deny will apply to unmatched traffic.
func (v *Validator) checkCatchAll(rules []domain.ACLRule) []domain.Finding {
	hasCatchAll := make(map[int]bool)
	seen := make(map[int][]int) // acl number -> rule indexes, in order
	var order []int
	for i, r := range rules {
		if _, ok := seen[r.ACLNumber]; !ok {
			order = append(order, r.ACLNumber)
		}
		seen[r.ACLNumber] = append(seen[r.ACLNumber], i)
		if r.CatchAll() {
			hasCatchAll[r.ACLNumber] = true
		}
	}

	var findings []domain.Finding
	for _, acl := range order {
		if hasCatchAll[acl] {
			continue
		}
		findings = append(findings, domain.Finding{
			Severity:    v.policy.NoCatchAll,
			Kind:        domain.FindingNoCatchAll,
			RuleIndexes: seen[acl],
			Message:     fmt.Sprintf("ACL %d has no explicit catch-all; the device's implicit deny will apply", acl),
		})
	}
	return findings
}

// subsumes reports whether every packet matched by inner is matched by outer:
// compatible protocol, source within source, destination within destination,
// and port range within port range ("any" being the universal superset).
func subsumes(outer, inner domain.ACLRule) bool {
	return protocolContains(outer.Protocol, inner.Protocol) &&
		prefixContains(outer.Source, inner.Source) &&
		prefixContains(outer.Destination, inner.Destination) &&
		outer.Ports.Contains(inner.Ports)
}

// overlaps reports whether two rules match at least one common packet.
func overlaps(a, b domain.ACLRule) bool {
	return protocolOverlaps(a.Protocol, b.Protocol) &&
		a.Source.Overlaps(b.Source) &&
		a.Destination.Overlaps(b.Destination) &&
		a.Ports.Overlaps(b.Ports)
}

func protocolContains(outer, inner domain.Protocol) bool {
	return outer == inner || outer == domain.ProtocolIP
}

func protocolOverlaps(a, b domain.Protocol) bool {
	return a == b || a == domain.ProtocolIP || b == domain.ProtocolIP
}

// prefixContains reports whether inner is entirely within outer. Overlapping
// prefixes are always nested, so overlap plus a shorter-or-equal mask on the
// outer prefix is containment.
func prefixContains(outer, inner netip.Prefix) bool {
	return outer.Overlaps(inner) && outer.Bits() <= inner.Bits()
}
