package audit

import "strings"

// Severity represents the severity of an audit entry.
type Severity string

// Audit severities, ordered INFO < WARNING < ERROR.
const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// severityRanks maps severities to their ordering rank.
var severityRanks = map[Severity]int{
	SeverityInfo:    0,
	SeverityWarning: 1,
	SeverityError:   2,
}

// ParseSeverity parses a severity string case-insensitively. Unknown or
// empty values default to INFO, matching the lenient behavior expected of
// the audit path: a malformed event level must never abort a log write.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityWarning:
		return SeverityWarning
	case SeverityError:
		return SeverityError
	default:
		return SeverityInfo
	}
}

// IsValid reports whether the severity is one of the known values.
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// AtLeast reports whether the severity is at or above the given minimum.
func (s Severity) AtLeast(min Severity) bool {
	return severityRanks[s] >= severityRanks[min]
}
