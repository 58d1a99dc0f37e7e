// Package exitcodes defines the standard exit codes used by webspec.
package exitcodes

// Exit code constants used by webspec
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when all specs pass
// * SpecFailure (1): Used when one or more specs fail
// * SetupErr (2): Used for setup failures such as an unreachable base URL,
//   a backend that cannot boot, or invalid configuration
const (
	Success     = 0 // All specs pass
	SpecFailure = 1 // Spec failures
	SetupErr    = 2 // Setup failures or runtime errors
)
