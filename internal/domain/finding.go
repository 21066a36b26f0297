package domain

import "fmt"

// Severity classifies a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding kinds. Machine-readable; the Message carries the human-readable
// explanation.
const (
	FindingSyntax     = "syntax"
	FindingConflict   = "conflict"    // opposing action, later rule fully shadowed
	FindingOverlap    = "overlap"     // opposing action, partial overlap
	FindingShadowed   = "shadowed"    // same action, later rule fully shadowed
	FindingDuplicate  = "duplicate"   // identical rule repeated
	FindingNoCatchAll = "no_catchall" // ACL relies on the device's implicit deny
)

// Finding is one validator observation about a ruleset. RuleIndexes refer to
// positions in the validated rule slice, earliest rule first.
type Finding struct {
	Severity    Severity `json:"severity"`
	Kind        string   `json:"kind"`
	RuleIndexes []int    `json:"rule_indexes,omitempty"`
	Message     string   `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s (%s): %s", f.Severity, f.Kind, f.Message)
}

// ValidationResult is the outcome of validating one device's ruleset.
// Valid is true iff no error-severity finding exists; warnings never block
// application but are always surfaced.
type ValidationResult struct {
	Valid    bool      `json:"valid"`
	Findings []Finding `json:"findings,omitempty"`
}

// Errors returns only the error-severity findings.
func (r ValidationResult) Errors() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}
