package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that make a document unfit to deploy.
	SeverityError Severity = "error"

	// SeverityCritical is for findings that must be addressed immediately.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity fail a document.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a Rego module whose deny rules lint a configuration document.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Description provides a human-readable description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Rego contains the policy module. It must define a deny set.
	Rego string `json:"rego" yaml:"rego" validate:"required"`

	// Severity is the default severity for violations that do not carry one.
	Severity Severity `json:"severity,omitempty" yaml:"severity,omitempty" validate:"omitempty,oneof=info warning error critical"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled" yaml:"enabled"`

	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// Source is the file the policy was read from, or "builtin".
	Source string `json:"source,omitempty" yaml:"-"`

	LoadedAt time.Time `json:"loaded_at" yaml:"-"`
}

// SourceBuiltin marks policies compiled into the binary.
const SourceBuiltin = "builtin"

// Violation is one finding reported by a policy's deny rule.
type Violation struct {
	// Policy is the name of the policy that reported the finding.
	Policy string `json:"policy"`

	// Entity locates the offending entity, e.g. "vpcs/management".
	Entity string `json:"entity,omitempty"`

	Message string `json:"message"`

	Severity Severity `json:"severity"`

	// Details carries any extra keys the deny rule returned.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Result is the outcome of linting one document.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists all findings, sorted by policy, entity and message.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of the enabled policies, sorted.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	Duration time.Duration `json:"duration"`
}

// Blocking returns the violations that make the document fail.
func (r *Result) Blocking() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Summary aggregates the result by severity.
func (r *Result) Summary() *Summary {
	s := &Summary{
		TotalPolicies:        len(r.EvaluatedPolicies),
		TotalViolations:      len(r.Violations),
		ViolationsBySeverity: make(map[Severity]int),
		FailedPolicies:       len(r.Warnings),
		Duration:             r.Duration,
	}
	for _, v := range r.Violations {
		s.ViolationsBySeverity[v.Severity]++
	}
	return s
}

// Input is the document handed to policies as input.
type Input struct {
	// Document is the configuration document in its JSON shape.
	Document interface{} `json:"document"`

	Context *EvalContext `json:"context"`
}

// EvalContext provides context information for policy evaluation.
type EvalContext struct {
	// Operation is what triggered the lint, e.g. "validate" or "watch".
	Operation string `json:"operation,omitempty"`

	// Source is the document path, if the document came from a file.
	Source string `json:"source,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Bundle is a named collection of related policies.
type Bundle struct {
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Version     string   `json:"version" yaml:"version"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Policies    []Policy `json:"policies" yaml:"policies" validate:"dive"`
}

// Summary provides aggregate statistics for a Result.
type Summary struct {
	TotalPolicies        int              `json:"total_policies"`
	TotalViolations      int              `json:"total_violations"`
	ViolationsBySeverity map[Severity]int `json:"violations_by_severity"`
	FailedPolicies       int              `json:"failed_policies"`
	Duration             time.Duration    `json:"duration"`
}
