package exitcodes

// Exit codes for trashtrim
// Scripts wrapping the tool rely on these values
const (
	Success         = 0 // Run completed, individual file failures included
	InvalidConfig   = 2 // Bad flags or unusable root path
	SafetyViolation = 3 // Safety validator refused the root
	RuntimeError    = 4 // Run aborted (strict mode, cancellation, setup failure)
)
