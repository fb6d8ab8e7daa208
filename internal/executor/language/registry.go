// Package language holds the table of supported languages and how to build and run them.
package language

import (
	"path/filepath"
	"strings"
	"time"

	"gradebox/internal/executor/sandbox/spec"
	appErr "gradebox/pkg/errors"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/shlex"
)

const (
	defaultTimeoutSec        = 10
	defaultCompileTimeoutSec = 30
	defaultMemoryLimitMB     = 256
	defaultMaxProcesses      = 10
	defaultBinaryFile        = "solution"
)

// Spec describes how one language is compiled and run.
type Spec struct {
	ID                string   `yaml:"id" json:"id"`
	Name              string   `yaml:"name" json:"name"`
	Version           string   `yaml:"version" json:"version"`
	Aliases           []string `yaml:"aliases" json:"aliases,omitempty"`
	Extension         string   `yaml:"extension" json:"extension"`
	SourceFile        string   `yaml:"sourceFile" json:"source_file"`
	BinaryFile        string   `yaml:"binaryFile" json:"binary_file,omitempty"`
	CompileCmd        string   `yaml:"compileCmd" json:"compile_cmd,omitempty"`
	RunCmd            string   `yaml:"runCmd" json:"run_cmd"`
	Env               []string `yaml:"env" json:"env,omitempty"`
	TimeoutSec        int      `yaml:"timeoutSec" json:"timeout"`
	CompileTimeoutSec int      `yaml:"compileTimeoutSec" json:"compile_timeout"`
	MemoryLimitMB     int64    `yaml:"memoryLimitMB" json:"memory_limit_mb"`
	MaxProcesses      int64    `yaml:"maxProcesses" json:"max_processes"`
}

// Compiled reports whether the language has a compile step.
func (s Spec) Compiled() bool {
	return strings.TrimSpace(s.CompileCmd) != ""
}

// Timeout returns the default per-run timeout.
func (s Spec) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// CompileTimeout returns the compile step bound.
func (s Spec) CompileTimeout() time.Duration {
	return time.Duration(s.CompileTimeoutSec) * time.Second
}

// RunLimits derives the runtime limits for one execution bounded by timeout.
func (s Spec) RunLimits(timeout time.Duration) spec.ResourceLimit {
	if timeout <= 0 {
		timeout = s.Timeout()
	}
	return spec.ResourceLimit{
		CPUTimeMs:  timeout.Milliseconds(),
		WallTimeMs: timeout.Milliseconds(),
		MemoryMB:   s.MemoryLimitMB,
		PIDs:       s.MaxProcesses,
	}
}

// CompileLimits derives the limits for the compile step. Compilers get no
// address-space or process cap.
func (s Spec) CompileLimits() spec.ResourceLimit {
	ms := s.CompileTimeout().Milliseconds()
	return spec.ResourceLimit{
		CPUTimeMs:  ms,
		WallTimeMs: ms,
	}
}

// BuildCompileCommand expands the compile template against workDir.
func (s Spec) BuildCompileCommand(workDir string) ([]string, error) {
	return buildCommand(s.CompileCmd, s, workDir)
}

// BuildRunCommand expands the run template against workDir.
func (s Spec) BuildRunCommand(workDir string) ([]string, error) {
	return buildCommand(s.RunCmd, s, workDir)
}

func buildCommand(tpl string, lang Spec, workDir string) ([]string, error) {
	if strings.TrimSpace(tpl) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command template is required")
	}
	expanded := tpl
	expanded = strings.ReplaceAll(expanded, "{src}", filepath.Join(workDir, lang.SourceFile))
	expanded = strings.ReplaceAll(expanded, "{bin}", filepath.Join(workDir, lang.BinaryFile))
	expanded = strings.ReplaceAll(expanded, "{dir}", workDir)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return fields, nil
}

// Registry resolves language ids and aliases. It is read-only after construction.
type Registry struct {
	specs  []Spec
	byName map[string]int
}

// NewRegistry validates specs and builds a registry in the given order.
func NewRegistry(specs []Spec) (*Registry, error) {
	if len(specs) == 0 {
		return nil, appErr.ValidationError("languages", "at least one language is required")
	}
	reg := &Registry{
		specs:  make([]Spec, 0, len(specs)),
		byName: make(map[string]int, len(specs)*2),
	}
	taken := mapset.NewThreadUnsafeSet[string]()
	for _, s := range specs {
		s = withDefaults(s)
		if err := validateSpec(s); err != nil {
			return nil, err
		}
		names := append([]string{s.ID}, s.Aliases...)
		for _, name := range names {
			key := normalizeName(name)
			if key == "" {
				continue
			}
			if !taken.Add(key) {
				return nil, appErr.ValidationError("languages", "duplicate language name "+key)
			}
			reg.byName[key] = len(reg.specs)
		}
		reg.specs = append(reg.specs, s)
	}
	return reg, nil
}

// NewDefaultRegistry builds the registry from the built-in table.
func NewDefaultRegistry() *Registry {
	reg, err := NewRegistry(DefaultSpecs())
	if err != nil {
		panic(err)
	}
	return reg
}

// Get resolves an id or alias case-insensitively.
func (r *Registry) Get(name string) (Spec, error) {
	idx, ok := r.byName[normalizeName(name)]
	if !ok {
		return Spec{}, appErr.Newf(appErr.LanguageNotSupported, "Unsupported language: %s", name).
			WithDetail("language", name)
	}
	return r.specs[idx], nil
}

// List returns every language in registration order.
func (r *Registry) List() []Spec {
	out := make([]Spec, len(r.specs))
	copy(out, r.specs)
	return out
}

// IDs returns the canonical language ids.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s.ID)
	}
	return out
}

// MergeSpecs overlays overrides onto defaults by id. Unknown ids are appended.
func MergeSpecs(defaults, overrides []Spec) []Spec {
	merged := make([]Spec, len(defaults))
	copy(merged, defaults)
	index := make(map[string]int, len(merged))
	for i, s := range merged {
		index[normalizeName(s.ID)] = i
	}
	for _, o := range overrides {
		key := normalizeName(o.ID)
		i, ok := index[key]
		if !ok {
			index[key] = len(merged)
			merged = append(merged, o)
			continue
		}
		merged[i] = overlay(merged[i], o)
	}
	return merged
}

func overlay(base, o Spec) Spec {
	if o.Name != "" {
		base.Name = o.Name
	}
	if o.Version != "" {
		base.Version = o.Version
	}
	if len(o.Aliases) > 0 {
		base.Aliases = o.Aliases
	}
	if o.Extension != "" {
		base.Extension = o.Extension
	}
	if o.SourceFile != "" {
		base.SourceFile = o.SourceFile
	}
	if o.BinaryFile != "" {
		base.BinaryFile = o.BinaryFile
	}
	if o.CompileCmd != "" {
		base.CompileCmd = o.CompileCmd
	}
	if o.RunCmd != "" {
		base.RunCmd = o.RunCmd
	}
	if len(o.Env) > 0 {
		base.Env = o.Env
	}
	if o.TimeoutSec > 0 {
		base.TimeoutSec = o.TimeoutSec
	}
	if o.CompileTimeoutSec > 0 {
		base.CompileTimeoutSec = o.CompileTimeoutSec
	}
	if o.MemoryLimitMB > 0 {
		base.MemoryLimitMB = o.MemoryLimitMB
	}
	if o.MaxProcesses > 0 {
		base.MaxProcesses = o.MaxProcesses
	}
	return base
}

func withDefaults(s Spec) Spec {
	s.ID = normalizeName(s.ID)
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.TimeoutSec <= 0 {
		s.TimeoutSec = defaultTimeoutSec
	}
	if s.CompileTimeoutSec <= 0 {
		s.CompileTimeoutSec = defaultCompileTimeoutSec
	}
	if s.MemoryLimitMB <= 0 {
		s.MemoryLimitMB = defaultMemoryLimitMB
	}
	if s.MaxProcesses <= 0 {
		s.MaxProcesses = defaultMaxProcesses
	}
	if s.SourceFile == "" && s.Extension != "" {
		s.SourceFile = "solution." + s.Extension
	}
	if s.BinaryFile == "" {
		s.BinaryFile = defaultBinaryFile
	}
	return s
}

func validateSpec(s Spec) error {
	if s.ID == "" {
		return appErr.ValidationError("languages.id", "required")
	}
	field := "languages." + s.ID
	if s.SourceFile == "" {
		return appErr.ValidationError(field+".sourceFile", "required")
	}
	if strings.ContainsAny(s.SourceFile, `/\`) || strings.ContainsAny(s.BinaryFile, `/\`) {
		return appErr.ValidationError(field, "file names must not contain path separators")
	}
	if _, err := buildCommand(s.RunCmd, s, "/work"); err != nil {
		return appErr.ValidationError(field+".runCmd", err.Error())
	}
	if s.Compiled() {
		if _, err := buildCommand(s.CompileCmd, s, "/work"); err != nil {
			return appErr.ValidationError(field+".compileCmd", err.Error())
		}
	}
	return nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
