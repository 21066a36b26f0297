package validation

import (
	"net/netip"
	"testing"

	"github.com/netops-tools/aclpush/internal/domain"
)

func rule(acl int, action domain.Action, proto domain.Protocol, src, dst string, ports domain.PortRange) domain.ACLRule {
	return domain.ACLRule{
		ACLNumber:   acl,
		Action:      action,
		Protocol:    proto,
		Source:      netip.MustParsePrefix(src),
		Destination: netip.MustParsePrefix(dst),
		Ports:       ports,
	}
}

func findingsOfKind(result domain.ValidationResult, kind string) []domain.Finding {
	var out []domain.Finding
	for _, f := range result.Findings {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestValidate_SubsetWithOpposingActionIsError(t *testing.T) {
	// The narrower deny comes after a broader permit covering its entire
	// space: it can never take effect.
	rules := []domain.ACLRule{
		rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
		rule(100, domain.ActionDeny, domain.ProtocolTCP, "10.0.0.0/25", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
	}
	result := Validate(rules)

	if result.Valid {
		t.Error("expected result to be invalid")
	}
	conflicts := findingsOfKind(result, domain.FindingConflict)
	if len(conflicts) != 1 {
		t.Fatalf("expected exactly 1 conflict finding, got %d", len(conflicts))
	}
	f := conflicts[0]
	if f.Severity != domain.SeverityError {
		t.Errorf("expected error severity, got %s", f.Severity)
	}
	if len(f.RuleIndexes) != 2 || f.RuleIndexes[0] != 0 || f.RuleIndexes[1] != 1 {
		t.Errorf("expected rule indexes [0 1], got %v", f.RuleIndexes)
	}
}

func TestValidate_SameActionSubsetIsShadowWarning(t *testing.T) {
	rules := []domain.ACLRule{
		rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{}),
		rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.0.0/25", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
	}
	result := Validate(rules)

	if !result.Valid {
		t.Errorf("warnings must not invalidate the ruleset: %+v", result.Findings)
	}
	shadows := findingsOfKind(result, domain.FindingShadowed)
	if len(shadows) != 1 {
		t.Fatalf("expected 1 shadow finding, got %d", len(shadows))
	}
	if shadows[0].Severity != domain.SeverityWarning {
		t.Errorf("expected warning severity, got %s", shadows[0].Severity)
	}
}

func TestValidate_PartialOverlapOpposingActionIsWarning(t *testing.T) {
	// Same networks but port ranges only partially overlap: neither rule
	// subsumes the other.
	rules := []domain.ACLRule{
		rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 443}),
		rule(100, domain.ActionDeny, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 400, Hi: 500}),
	}
	result := Validate(rules)

	if !result.Valid {
		t.Errorf("overlap should be a warning only: %+v", result.Findings)
	}
	if got := findingsOfKind(result, domain.FindingOverlap); len(got) != 1 {
		t.Fatalf("expected 1 overlap finding, got %d: %+v", len(got), result.Findings)
	}
}

func TestValidate_IPProtocolSubsumesTCP(t *testing.T) {
	// An ip-protocol deny covers a later tcp permit on the same networks.
	rules := []domain.ACLRule{
		rule(100, domain.ActionDeny, domain.ProtocolIP, "10.0.0.0/16", "0.0.0.0/0", domain.PortRange{}),
		rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.1.0/24", "10.2.0.0/16", domain.PortRange{Lo: 22, Hi: 22}),
	}
	result := Validate(rules)

	if result.Valid {
		t.Error("expected conflict error")
	}
	if got := findingsOfKind(result, domain.FindingConflict); len(got) != 1 {
		t.Fatalf("expected 1 conflict finding, got %d", len(got))
	}
}

func TestValidate_DisjointRulesProduceNoPairFindings(t *testing.T) {
	rules := []domain.ACLRule{
		rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
		rule(100, domain.ActionDeny, domain.ProtocolTCP, "192.168.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
		rule(100, domain.ActionDeny, domain.ProtocolUDP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
	}
	result := Validate(rules)

	for _, kind := range []string{domain.FindingConflict, domain.FindingOverlap, domain.FindingShadowed} {
		if got := findingsOfKind(result, kind); len(got) != 0 {
			t.Errorf("expected no %s findings, got %+v", kind, got)
		}
	}
}

func TestValidate_RulesInDifferentACLsNeverConflict(t *testing.T) {
	rules := []domain.ACLRule{
		rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
		rule(101, domain.ActionDeny, domain.ProtocolTCP, "10.0.0.0/25", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
	}
	result := Validate(rules)

	if got := findingsOfKind(result, domain.FindingConflict); len(got) != 0 {
		t.Errorf("expected no conflicts across ACL numbers, got %+v", got)
	}
}

func TestValidate_DuplicateRule(t *testing.T) {
	r := rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80})
	result := Validate([]domain.ACLRule{r, r})

	dups := findingsOfKind(result, domain.FindingDuplicate)
	if len(dups) != 1 {
		t.Fatalf("expected 1 duplicate finding, got %d: %+v", len(dups), result.Findings)
	}
	// A duplicate must not additionally be reported as shadowed.
	if got := findingsOfKind(result, domain.FindingShadowed); len(got) != 0 {
		t.Errorf("duplicate also reported as shadowed: %+v", got)
	}
}

func TestValidate_MissingCatchAll(t *testing.T) {
	rules := []domain.ACLRule{
		rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
		rule(200, domain.ActionPermit, domain.ProtocolIP, "10.0.0.0/8", "0.0.0.0/0", domain.PortRange{}),
		rule(200, domain.ActionDeny, domain.ProtocolIP, "0.0.0.0/0", "0.0.0.0/0", domain.PortRange{}),
	}
	result := Validate(rules)

	warns := findingsOfKind(result, domain.FindingNoCatchAll)
	if len(warns) != 1 {
		t.Fatalf("expected 1 catch-all warning (ACL 100 only), got %d: %+v", len(warns), warns)
	}
	if warns[0].Severity != domain.SeverityWarning {
		t.Errorf("expected warning severity, got %s", warns[0].Severity)
	}
}

func TestValidate_SyntaxErrorOnDirectConstruction(t *testing.T) {
	bad := domain.ACLRule{
		ACLNumber:   100,
		Action:      "drop",
		Protocol:    domain.ProtocolTCP,
		Source:      netip.MustParsePrefix("10.0.0.0/24"),
		Destination: netip.MustParsePrefix("10.0.1.0/24"),
	}
	result := Validate([]domain.ACLRule{bad})

	if result.Valid {
		t.Error("expected invalid result")
	}
	if got := findingsOfKind(result, domain.FindingSyntax); len(got) != 1 {
		t.Fatalf("expected 1 syntax finding, got %d", len(got))
	}
}

func TestValidate_PolicyOverridesSeverity(t *testing.T) {
	policy := DefaultPolicy()
	policy.Conflict = domain.SeverityWarning
	v := New(policy)

	rules := []domain.ACLRule{
		rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
		rule(100, domain.ActionDeny, domain.ProtocolTCP, "10.0.0.0/25", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 80}),
	}
	result := v.Validate(rules)

	if !result.Valid {
		t.Error("downgraded conflict should not invalidate the ruleset")
	}
	conflicts := findingsOfKind(result, domain.FindingConflict)
	if len(conflicts) != 1 || conflicts[0].Severity != domain.SeverityWarning {
		t.Errorf("expected 1 warning-severity conflict, got %+v", conflicts)
	}
}

func TestValidate_Deterministic(t *testing.T) {
	rules := []domain.ACLRule{
		rule(100, domain.ActionPermit, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 80, Hi: 443}),
		rule(100, domain.ActionDeny, domain.ProtocolTCP, "10.0.0.0/24", "10.0.1.0/24", domain.PortRange{Lo: 400, Hi: 500}),
		rule(100, domain.ActionDeny, domain.ProtocolIP, "0.0.0.0/0", "0.0.0.0/0", domain.PortRange{}),
	}
	first := Validate(rules)
	second := Validate(rules)

	if len(first.Findings) != len(second.Findings) {
		t.Fatalf("finding counts differ: %d vs %d", len(first.Findings), len(second.Findings))
	}
	for i := range first.Findings {
		if first.Findings[i].String() != second.Findings[i].String() {
			t.Errorf("finding %d differs between runs", i)
		}
	}
}
