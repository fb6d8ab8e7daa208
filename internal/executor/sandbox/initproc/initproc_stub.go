//go:build !linux

package initproc

import (
	"fmt"
	"os"
)

// Main reports that the helper is unavailable on this platform.
func Main() {
	_, _ = fmt.Fprintln(os.Stderr, "sandbox-init is only supported on linux")
	os.Exit(ExitSetupFailed)
}
