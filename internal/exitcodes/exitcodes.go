package exitcodes

// Exit codes for disk-cleaner
// These codes form the contract with scripts and operators
const (
	Success      = 0   // Run completed (individual skips are not failures)
	Failure      = 1   // No cleanup targets found or unexpected runtime error
	InvalidUsage = 2   // Flags invalid or conflicting
	Interrupted  = 130 // Cancelled by the user (SIGINT/SIGTERM)
)
