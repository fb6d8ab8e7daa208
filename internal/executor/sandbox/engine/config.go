package engine

// Config controls sandbox engine behavior.
type Config struct {
	// HelperPath is the sandbox-init binary. HelperArgs and HelperEnv are
	// passed to it verbatim, which lets tests re-exec the test binary.
	HelperPath           string
	HelperArgs           []string
	HelperEnv            []string
	StdoutStderrMaxBytes int64
}
