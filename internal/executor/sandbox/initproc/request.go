// Package initproc implements the sandbox-init helper: it receives one RunSpec
// on stdin, confines itself with rlimits and replaces itself with the target command.
package initproc

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gradebox/internal/executor/sandbox/spec"
)

// ExitSetupFailed is the helper exit status when it fails before exec.
const ExitSetupFailed = 127

const defaultPath = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Request is the document the engine streams to the helper's stdin.
type Request struct {
	RunSpec spec.RunSpec `json:"runSpec"`
}

// Encode writes req as a single JSON document.
func Encode(w io.Writer, req Request) error {
	return json.NewEncoder(w).Encode(req)
}

func decodeRequest(r io.Reader) (Request, error) {
	dec := json.NewDecoder(r)
	var req Request
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func validateRequest(req Request) error {
	if len(req.RunSpec.Cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	if req.RunSpec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	return nil
}

// buildEnv returns env with a PATH entry guaranteed.
func buildEnv(env []string) []string {
	out := make([]string, 0, len(env)+1)
	hasPath := false
	for _, kv := range env {
		if !strings.Contains(kv, "=") {
			continue
		}
		if strings.HasPrefix(kv, "PATH=") {
			hasPath = true
		}
		out = append(out, kv)
	}
	if !hasPath {
		out = append(out, defaultPath)
	}
	return out
}
