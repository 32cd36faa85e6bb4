package rule

// Severity classifies a Diagnostic (spec §4.5).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DiagnosticCode is a stable identifier for a specific diagnostic rule.
type DiagnosticCode string

const (
	CodeDepthExceeded       DiagnosticCode = "CONDITION_DEPTH_EXCEEDED"
	CodeNoEffects           DiagnosticCode = "NO_EFFECTS"
	CodeDuplicateEffect     DiagnosticCode = "DUPLICATE_EFFECT"
	CodeInvalidTemporalSpan DiagnosticCode = "INVALID_TEMPORAL_SPAN"
	CodeEffectCountExceeded DiagnosticCode = "EFFECT_COUNT_EXCEEDED"

	// Verifier-only codes (spec §4.5); WellFormed never emits these.
	CodeTypeIncompatible     DiagnosticCode = "TYPE_INCOMPATIBLE"
	CodeAlwaysFalse          DiagnosticCode = "ALWAYS_FALSE"
	CodeAlwaysTrue           DiagnosticCode = "ALWAYS_TRUE"
	CodeContradictingEffects DiagnosticCode = "CONTRADICTING_EFFECTS"
	CodeHierarchyViolation   DiagnosticCode = "HIERARCHY_VIOLATION"
	CodeDanglingReference    DiagnosticCode = "DANGLING_REFERENCE"
)

// Diagnostic is one finding from well-formedness checking or the
// Verifier (spec §4.2, §4.5): a statute id (or pair, for cross-statute
// checks), a severity, and a stable code.
type Diagnostic struct {
	StatuteID  string
	OtherID    string // populated for cross-statute diagnostics
	Severity   Severity
	Code       DiagnosticCode
	Message    string
}
