package cleanup

// OutcomeKind classifies a single removal attempt
type OutcomeKind int

const (
	Removed OutcomeKind = iota
	SkippedProtected
	SkippedPermission
	SkippedMissing
	SkippedError
)

func (k OutcomeKind) String() string {
	switch k {
	case Removed:
		return "removed"
	case SkippedProtected:
		return "skipped_protected"
	case SkippedPermission:
		return "skipped_permission"
	case SkippedMissing:
		return "skipped_missing"
	case SkippedError:
		return "skipped_error"
	default:
		return "unknown"
	}
}

// Reason is the short label used for skip metrics and history rows
func (k OutcomeKind) Reason() string {
	switch k {
	case SkippedProtected:
		return "protected"
	case SkippedPermission:
		return "permission"
	case SkippedMissing:
		return "missing"
	case SkippedError:
		return "error"
	default:
		return ""
	}
}

// Outcome is the result of RemoveEntry. Bytes is set for Removed; Err
// carries the failure for SkippedPermission and SkippedError.
type Outcome struct {
	Kind  OutcomeKind
	Bytes uint64
	Err   error
}
