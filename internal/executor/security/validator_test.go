package security

import (
	"strings"
	"testing"

	"gradebox/internal/executor/language"
	appErr "gradebox/pkg/errors"
)

func langSpec(t *testing.T, id string) language.Spec {
	t.Helper()
	lang, err := language.NewDefaultRegistry().Get(id)
	if err != nil {
		t.Fatalf("get language failed: %v", err)
	}
	return lang
}

func TestValidatePythonAllowed(t *testing.T) {
	cases := map[string]string{
		"json max": "import json\nline = input()\nprint(max(json.loads(line)))\n",
		"re.compile": "import re\npattern = re.compile(r'\\d+')\nprint(pattern.findall(input()))\n",
		"from import": "from collections import defaultdict, Counter as C\nfrom math import *\n",
		"dotted allowed": "import collections.abc\n",
		"parenthesized names": "from typing import (\n    List,\n    Dict,\n)\n",
		"strings and comments": "# import os\ns = \"import os\"\nt = '''\neval('x')\n'''\nprint(s, t)\n",
		"method named eval": "class Solution:\n    def eval(self):\n        return 1\n\nprint(Solution().eval())\n",
		"blocks": "def solve(nums):\n    best = 0\n    for n in nums:\n        if n > best:\n            best = n\n        else:\n            pass\n    return best\n\n\nprint(solve([1, 2]))\n",
		"one line block":  "if True: print(1)\nwhile False: pass\n",
		"continuation":    "total = 1 + \\\n    2\nprint(total)\n",
		"crlf":            "import math\r\nprint(math.pi)\r\n",
		"string prefixes": "x = f'{1}' + rb'\\x' + u\"y\"\nprint(x)\n",
		"empty":           "",
		"tabs":            "if True:\n\tx = 1\n\tprint(x)\n",
		"lambda":          "f = lambda x: x * 2\nprint(f(2))\n",
		"decorator":       "import functools\n@functools.lru_cache(None)\ndef f(n):\n    return n\n",
		"f-string fields": "x = 3\nprint(f\"{x!r:>10} {x=} {{literal}} {'q'} {x:{x}} {x != 2}\")\n",
		"marker params":   "def f(a, /, b, *, c):\n    return a\n\n\ng = lambda *, k: k\n",
		"slices":          "a = [1, 2, 3]\nprint(*a[::-1], sep=', ')\nb = {**{'k': -1}}\nc = a[1:] + a[:-1]\n",
		"annotations":     "def g(n: int = 0) -> int:\n    if (m := n + 1) > 0:\n        return m\n    return -n\n",
		"implicit concat": "s = 'a' 'b'\nprint(type(s) == str)\n",
	}
	v := NewValidator()
	py := langSpec(t, "python")
	for name, code := range cases {
		t.Run(name, func(t *testing.T) {
			if err := v.Validate(code, py); err != nil {
				t.Fatalf("expected code to pass, got %v", err)
			}
		})
	}
}

func TestValidatePythonRejected(t *testing.T) {
	cases := []struct {
		name string
		code string
		msg  string
	}{
		{name: "import os", code: "import os\nprint(os.getcwd())\n", msg: "Import of module 'os' is not allowed"},
		{name: "import sys", code: "import sys\n", msg: "Import of module 'sys' is not allowed"},
		{name: "second name", code: "import math, subprocess\n", msg: "Import of module 'subprocess' is not allowed"},
		{name: "dotted", code: "import os.path\n", msg: "Import of module 'os.path' is not allowed"},
		{name: "from", code: "from os import path\n", msg: "Import of module 'os' is not allowed"},
		{name: "from dotted", code: "from os.path import join\n", msg: "Import of module 'os.path' is not allowed"},
		{name: "relative", code: "from . import helper\n", msg: "Relative imports are not allowed"},
		{name: "nested block", code: "def f():\n    if True:\n        import socket\n", msg: "Import of module 'socket' is not allowed"},
		{name: "after colon", code: "if True: import shutil\n", msg: "Import of module 'shutil' is not allowed"},
		{name: "after semicolon", code: "x = 1; import ctypes\n", msg: "Import of module 'ctypes' is not allowed"},
		{name: "eval", code: "print(eval('1+1'))\n", msg: "Call to 'eval' is not allowed"},
		{name: "exec", code: "exec('print(1)')\n", msg: "Call to 'exec' is not allowed"},
		{name: "compile", code: "code = compile('1', '<s>', 'eval')\n", msg: "Call to 'compile' is not allowed"},
		{name: "dunder import", code: "m = __import__('os')\n", msg: "Call to '__import__' is not allowed"},
		{name: "call in lambda", code: "f = lambda s: eval(s)\n", msg: "Call to 'eval' is not allowed"},
		{name: "f-string dunder import", code: "print(f\"{__import__('os').system('id')}\")\n", msg: "Call to '__import__' is not allowed"},
		{name: "f-string eval", code: "x = f'{eval(\"1+1\")}'\n", msg: "Call to 'eval' is not allowed"},
		{name: "f-string format spec", code: "x = f'{1:{compile(\"1\", \"s\", \"eval\")}}'\n", msg: "Call to 'compile' is not allowed"},
		{name: "parenthesized callee", code: "(exec)(\"print(1)\")\n", msg: "Call to 'exec' is not allowed"},
		{name: "nested parens callee", code: "y = ((eval))('1')\n", msg: "Call to 'eval' is not allowed"},
	}
	v := NewValidator()
	py := langSpec(t, "python")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.code, py)
			if !appErr.Is(err, appErr.SecurityViolation) {
				t.Fatalf("expected SecurityViolation, got %v", err)
			}
			if err.Error() != tc.msg {
				t.Fatalf("unexpected message %q, want %q", err.Error(), tc.msg)
			}
		})
	}
}

func TestValidatePythonSyntaxErrors(t *testing.T) {
	cases := []struct {
		name string
		code string
		line int
		msg  string
	}{
		{name: "unterminated string", code: "x = 1\nprint('hi)\n", line: 2, msg: "unterminated string literal"},
		{name: "unterminated triple", code: "s = \"\"\"abc\n", line: 1, msg: "unterminated triple-quoted string literal"},
		{name: "never closed", code: "print((1)\n", line: 1, msg: "'(' was never closed"},
		{name: "mismatched", code: "x = [1, 2)\n", line: 1, msg: "does not match opening parenthesis"},
		{name: "unmatched", code: "x = 1)\n", line: 1, msg: "unmatched ')'"},
		{name: "missing block", code: "if True:\nprint(1)\n", line: 1, msg: "expected an indented block"},
		{name: "block at eof", code: "for i in range(3):\n", line: 1, msg: "expected an indented block"},
		{name: "unexpected indent", code: "x = 1\n    y = 2\n", line: 2, msg: "unexpected indent"},
		{name: "bad dedent", code: "if x:\n    a = 1\n  b = 2\n", line: 3, msg: "unindent does not match"},
		{name: "bare import", code: "import\n", line: 1, msg: "invalid syntax"},
		{name: "from without import", code: "from math\n", line: 1, msg: "invalid syntax"},
		{name: "trailing tokens", code: "import math math\n", line: 1, msg: "invalid syntax"},
		{name: "invalid character", code: "x = 1 $ 2\n", line: 1, msg: "invalid character"},
		{name: "bad continuation", code: "x = 1 \\ 2\n", line: 1, msg: "line continuation"},
		{name: "missing operand", code: "print(1 +)\n", line: 1, msg: "invalid syntax"},
		{name: "double assign", code: "x = = 1\n", line: 1, msg: "invalid syntax"},
		{name: "adjacent operands", code: "print(1 2)\n", line: 1, msg: "invalid syntax"},
		{name: "empty subscript", code: "x = [1]\ny = x[]\n", line: 2, msg: "invalid syntax"},
		{name: "empty argument", code: "print(1,, 2)\n", line: 1, msg: "invalid syntax"},
		{name: "operand on next line", code: "x = 1\ny = (2 +\n)\n", line: 2, msg: "invalid syntax"},
		{name: "empty f-string field", code: "x = f'{}'\n", line: 1, msg: "f-string: valid expression required"},
		{name: "f-string bad field", code: "x = 1\ny = f'{x +}'\n", line: 2, msg: "invalid syntax"},
		{name: "f-string single brace", code: "x = f'a}'\n", line: 1, msg: "single '}' is not allowed"},
	}
	v := NewValidator()
	py := langSpec(t, "python")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.code, py)
			if !appErr.Is(err, appErr.SecurityViolation) {
				t.Fatalf("expected SecurityViolation, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("unexpected message %q, want %q", err.Error(), tc.msg)
			}
			if got := appErr.GetError(err).Details["line"]; got != tc.line {
				t.Fatalf("unexpected line %v, want %d", got, tc.line)
			}
		})
	}
}

func TestValidatePatterns(t *testing.T) {
	cases := []struct {
		name string
		lang string
		code string
		rule string
	}{
		{name: "js ok", lang: "javascript", code: "const readline = require('readline');\nconst rl = readline.createInterface({ input: process.stdin });\nrl.on('line', l => process.stdout.write(String(Math.max(...JSON.parse(l)))));\n"},
		{name: "js require fs", lang: "javascript", code: "const fs = require('fs');\n", rule: "require("},
		{name: "js process exit", lang: "javascript", code: "process.exit(1);\n", rule: "process."},
		{name: "js eval", lang: "javascript", code: "console.log(eval('1'));\n", rule: "eval("},
		{name: "js function ctor", lang: "javascript", code: "new Function('return 1')();\n", rule: "new Function("},
		{name: "js dynamic import", lang: "javascript", code: "import('child');\n", rule: "import("},
		{name: "java ok", lang: "java", code: "import java.io.BufferedReader;\nimport java.io.InputStreamReader;\nimport java.io.IOException;\nimport java.util.*;\npublic class Solution {\n  public static void main(String[] a) throws IOException {\n    BufferedReader r = new BufferedReader(new InputStreamReader(System.in));\n    System.out.println(r.readLine());\n  }\n}\n"},
		{name: "java file", lang: "java", code: "import java.io.File;\n", rule: "java.io"},
		{name: "java net", lang: "java", code: "import java.net.Socket;\n", rule: "java.net"},
		{name: "java runtime", lang: "java", code: "Runtime.getRuntime().exec(\"ls\");\n", rule: "Runtime.getRuntime"},
		{name: "java exit", lang: "java", code: "System.exit(0);\n", rule: "System.exit"},
		{name: "java thread", lang: "java", code: "Thread.sleep(10);\n", rule: "Thread."},
		{name: "java process", lang: "java", code: "new ProcessBuilder(\"ls\");\n", rule: "ProcessBuilder"},
		{name: "c ok", lang: "c", code: "#include <stdio.h>\nint main(){int a,b;scanf(\"%d %d\",&a,&b);printf(\"%d\\n\",a+b);return 0;}\n"},
		{name: "cpp ok", lang: "cpp", code: "#include <bits/stdc++.h>\nusing namespace std;\nint main(){vector<int> v; cout << v.size() << endl;}\n"},
		{name: "c unistd", lang: "c", code: "#include <unistd.h>\n", rule: "#include <unistd.h>"},
		{name: "c sys", lang: "c", code: "#include <sys/socket.h>\n", rule: "#include <sys/...>"},
		{name: "cpp fstream", lang: "cpp", code: "#include <fstream>\n", rule: "#include <fstream>"},
		{name: "cpp cstdlib", lang: "cpp", code: "#include <cstdlib>\n", rule: "#include <cstdlib>"},
		{name: "c system", lang: "c", code: "int main(){\n  system(\"ls\");\n}\n", rule: "system("},
		{name: "c fork", lang: "c", code: "int main(){ fork(); }\n", rule: "fork("},
		{name: "c exec", lang: "c", code: "int main(){ execvp(\"ls\", 0); }\n", rule: "exec*("},
		{name: "cpp exit", lang: "cpp", code: "int main(){ std::exit(1); }\n", rule: "exit("},
		{name: "cpp abort", lang: "cpp", code: "int main(){ abort(); }\n", rule: "abort("},
	}
	v := NewValidator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.code, langSpec(t, tc.lang))
			if tc.rule == "" {
				if err != nil {
					t.Fatalf("expected code to pass, got %v", err)
				}
				return
			}
			if !appErr.Is(err, appErr.SecurityViolation) {
				t.Fatalf("expected SecurityViolation, got %v", err)
			}
			if want := "Forbidden pattern detected: " + tc.rule; err.Error() != want {
				t.Fatalf("unexpected message %q, want %q", err.Error(), want)
			}
		})
	}
}

func TestValidatePatternLine(t *testing.T) {
	err := NewValidator().Validate("int main(){\n  int x = 1;\n  system(\"ls\");\n}\n", langSpec(t, "c"))
	if got := appErr.GetError(err).Details["line"]; got != 3 {
		t.Fatalf("unexpected line %v", got)
	}
}

func TestValidateUnknownLanguagePasses(t *testing.T) {
	if err := NewValidator().Validate("anything goes", language.Spec{ID: "go"}); err != nil {
		t.Fatalf("languages without rules pass, got %v", err)
	}
}

func TestParsePythonNodes(t *testing.T) {
	mod, err := ParsePython("import math as m, json\nfrom collections import deque\nx = m.floor(eval('1'))\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(mod.Imports) != 1 || len(mod.Imports[0].Names) != 2 || mod.Imports[0].Names[0].AsName != "m" {
		t.Fatalf("unexpected imports: %+v", mod.Imports)
	}
	if len(mod.FromImports) != 1 || mod.FromImports[0].Module != "collections" || mod.FromImports[0].Line != 2 {
		t.Fatalf("unexpected from imports: %+v", mod.FromImports)
	}
	if len(mod.Calls) != 1 || mod.Calls[0].Func != "eval" || mod.Calls[0].Line != 3 {
		t.Fatalf("unexpected calls: %+v", mod.Calls)
	}
}
