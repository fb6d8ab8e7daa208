package security

import (
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// pythonAllowedModules lists the root packages Python code may import.
var pythonAllowedModules = []string{
	"math", "random", "collections", "itertools", "functools", "operator",
	"bisect", "heapq", "copy", "string", "datetime", "decimal", "fractions",
	"re", "json", "hashlib", "base64", "statistics", "typing",
}

// pythonBlockedCalls lists builtins that must not be called by name.
var pythonBlockedCalls = []string{"eval", "exec", "compile", "__import__"}

type rule struct {
	name string
	re   *regexp.Regexp
}

// patternSet is a regex deny-list. Allowed constructs are blanked out before
// the deny rules run.
type patternSet struct {
	allow []*regexp.Regexp
	deny  []rule
}

func newPatternSet(allow []string, deny [][2]string) *patternSet {
	ps := &patternSet{}
	for _, expr := range allow {
		ps.allow = append(ps.allow, regexp.MustCompile(expr))
	}
	for _, d := range deny {
		ps.deny = append(ps.deny, rule{name: d[0], re: regexp.MustCompile(d[1])})
	}
	return ps
}

// match returns the first deny rule hit and its 1-based line.
func (ps *patternSet) match(code string) (string, int, bool) {
	for _, re := range ps.allow {
		code = re.ReplaceAllStringFunc(code, blank)
	}
	for _, r := range ps.deny {
		loc := r.re.FindStringIndex(code)
		if loc == nil {
			continue
		}
		return r.name, strings.Count(code[:loc[0]], "\n") + 1, true
	}
	return "", 0, false
}

func blank(s string) string {
	return strings.Repeat(" ", len(s))
}

var javascriptPatterns = newPatternSet(
	[]string{
		`\bprocess\.stdin\b`,
		`\bprocess\.stdout\b`,
		`\brequire\s*\(\s*['"]readline['"]\s*\)`,
	},
	[][2]string{
		{"require(", `\brequire\s*\(`},
		{"process.", `\bprocess\.`},
		{"fs.", `\bfs\.`},
		{"child_process", `child_process`},
		{"eval(", `\beval\s*\(`},
		{"new Function(", `\bnew\s+Function\s*\(`},
		{"import(", `\bimport\s*\(`},
	},
)

var javaPatterns = newPatternSet(
	[]string{
		`\bjava\.io\.BufferedReader\b`,
		`\bjava\.io\.InputStreamReader\b`,
		`\bjava\.io\.IOException\b`,
	},
	[][2]string{
		{"java.io", `\bjava\.io\b`},
		{"java.net", `\bjava\.net\b`},
		{"java.nio.file", `\bjava\.nio\.file\b`},
		{"Runtime.getRuntime", `\bRuntime\s*\.\s*getRuntime\b`},
		{"ProcessBuilder", `\bProcessBuilder\b`},
		{"System.exit", `\bSystem\s*\.\s*exit\b`},
		{"Thread.", `\bThread\s*\.`},
		{"java.lang.reflect", `\bjava\.lang\.reflect\b`},
	},
)

var cPatterns = newPatternSet(
	nil,
	[][2]string{
		{"#include <fstream>", `#\s*include\s*<\s*fstream\s*>`},
		{"#include <cstdlib>", `#\s*include\s*<\s*cstdlib\s*>`},
		{"#include <unistd.h>", `#\s*include\s*<\s*unistd\.h\s*>`},
		{"#include <sys/...>", `#\s*include\s*<\s*sys/[^>]*>`},
		{"system(", `\bsystem\s*\(`},
		{"exec*(", `\bexec(l|lp|le|v|vp|vpe|ve)\s*\(`},
		{"fork(", `\bv?fork\s*\(`},
		{"popen(", `\bpopen\s*\(`},
		{"exit(", `\b(_|_E|quick_)?exit\s*\(`},
		{"abort(", `\babort\s*\(`},
	},
)

func newStringSet(values []string) mapset.Set[string] {
	return mapset.NewSet[string](values...)
}
