// Package workspace manages per-request scratch directories.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const dirPrefix = "run-"

// Manager creates workspaces under Root.
type Manager struct {
	Root string
}

// NewManager returns a manager rooted at root, or the system temp dir when empty.
func NewManager(root string) *Manager {
	if root == "" {
		root = os.TempDir()
	}
	return &Manager{Root: root}
}

// Workspace is one isolated directory. It is owned by a single request.
type Workspace struct {
	ID  string
	Dir string
}

// Create makes a fresh workspace directory.
func (m *Manager) Create(ctx context.Context) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.Root, 0755); err != nil {
		return nil, errors.Wrap(err, "create workspace root")
	}
	id := dirPrefix + uuid.NewString()
	dir := filepath.Join(m.Root, id)
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create workspace %s", id)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, errors.Wrap(err, "resolve workspace path")
	}
	return &Workspace{ID: id, Dir: abs}, nil
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// WriteFile writes content under name. Names must stay inside the workspace.
func (w *Workspace) WriteFile(name string, content []byte) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", errors.Errorf("invalid workspace file name %q", name)
	}
	path := w.Path(name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", errors.Wrapf(err, "write %s", name)
	}
	return path, nil
}

// Cleanup removes the workspace and everything in it.
func (w *Workspace) Cleanup() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	return errors.Wrapf(os.RemoveAll(w.Dir), "remove workspace %s", w.ID)
}
