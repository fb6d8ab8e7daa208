// Package security statically rejects submissions that use forbidden
// modules, builtins or system APIs. It is a best-effort filter: the regex
// rules can be evaded and are paired with process resource limits.
package security

import (
	"errors"
	"strings"

	"gradebox/internal/executor/language"
	appErr "gradebox/pkg/errors"

	mapset "github.com/deckarep/golang-set/v2"
)

// Validator checks source code before any workspace or process exists.
// It is immutable and safe for concurrent use.
type Validator struct {
	pythonModules mapset.Set[string]
	blockedCalls  mapset.Set[string]
	patterns      map[string]*patternSet
}

// NewValidator builds the validator with the built-in rule sets.
func NewValidator() *Validator {
	return &Validator{
		pythonModules: newStringSet(pythonAllowedModules),
		blockedCalls:  newStringSet(pythonBlockedCalls),
		patterns: map[string]*patternSet{
			"javascript": javascriptPatterns,
			"java":       javaPatterns,
			"cpp":        cPatterns,
			"c":          cPatterns,
		},
	}
}

// Validate returns a SecurityViolation error when code breaks a rule.
// Languages without rules pass unchecked.
func (v *Validator) Validate(code string, lang language.Spec) error {
	if lang.ID == "python" {
		return v.validatePython(code)
	}
	ps, ok := v.patterns[lang.ID]
	if !ok {
		return nil
	}
	if name, line, hit := ps.match(code); hit {
		return appErr.Violation("pattern", "Forbidden pattern detected: %s", name).
			WithDetail("line", line).
			WithDetail("language", lang.ID)
	}
	return nil
}

func (v *Validator) validatePython(code string) error {
	mod, err := ParsePython(code)
	if err != nil {
		var syn *SyntaxError
		if errors.As(err, &syn) {
			return appErr.Violation("syntax", "%s", syn.Error()).WithDetail("line", syn.Line)
		}
		return appErr.Violation("syntax", "%s", err.Error())
	}
	for _, stmt := range mod.Imports {
		for _, alias := range stmt.Names {
			if !v.moduleAllowed(alias.Name) {
				return importViolation(alias.Name, stmt.Line)
			}
		}
	}
	for _, stmt := range mod.FromImports {
		if stmt.Level > 0 {
			return appErr.Violation("import", "Relative imports are not allowed").WithDetail("line", stmt.Line)
		}
		if !v.moduleAllowed(stmt.Module) {
			return importViolation(stmt.Module, stmt.Line)
		}
	}
	for _, call := range mod.Calls {
		if v.blockedCalls.Contains(call.Func) {
			return appErr.Violation("call", "Call to '%s' is not allowed", call.Func).WithDetail("line", call.Line)
		}
	}
	return nil
}

func (v *Validator) moduleAllowed(name string) bool {
	root, _, _ := strings.Cut(name, ".")
	return v.pythonModules.Contains(root)
}

func importViolation(module string, line int) error {
	return appErr.Violation("import", "Import of module '%s' is not allowed", module).WithDetail("line", line)
}
