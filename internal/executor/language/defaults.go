package language

const javaRunCmd = "java -Xss64m -XX:+UseSerialGC -XX:TieredStopAtLevel=1 -XX:ReservedCodeCacheSize=64m " +
	"-XX:CompressedClassSpaceSize=64m -XX:MaxMetaspaceSize=128m -Xmx256m -cp {dir} Solution"

// DefaultSpecs returns the built-in language table.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			ID:            "python",
			Name:          "Python",
			Version:       "3",
			Aliases:       []string{"py", "python3"},
			Extension:     "py",
			SourceFile:    "solution.py",
			RunCmd:        "python3 {src}",
			Env:           []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1"},
			TimeoutSec:    10,
			MemoryLimitMB: 256,
		},
		{
			ID:         "javascript",
			Name:       "JavaScript",
			Version:    "node",
			Aliases:    []string{"js", "node"},
			Extension:  "js",
			SourceFile: "solution.js",
			RunCmd:     "node {src}",
			TimeoutSec: 10,
			// V8 reserves a large virtual range up front.
			MemoryLimitMB: 2048,
		},
		{
			ID:            "java",
			Name:          "Java",
			Version:       "17",
			Extension:     "java",
			SourceFile:    "Solution.java",
			CompileCmd:    "javac -encoding UTF-8 -d {dir} {src}",
			RunCmd:        javaRunCmd,
			TimeoutSec:    15,
			MemoryLimitMB: 1024,
		},
		{
			ID:            "cpp",
			Name:          "C++",
			Version:       "17",
			Aliases:       []string{"c++", "cc"},
			Extension:     "cpp",
			SourceFile:    "solution.cpp",
			BinaryFile:    "solution",
			CompileCmd:    "g++ -O2 -std=c++17 -o {bin} {src}",
			RunCmd:        "{bin}",
			TimeoutSec:    10,
			MemoryLimitMB: 256,
		},
		{
			ID:            "c",
			Name:          "C",
			Version:       "11",
			Extension:     "c",
			SourceFile:    "solution.c",
			BinaryFile:    "solution",
			CompileCmd:    "gcc -O2 -std=c11 -o {bin} {src} -lm",
			RunCmd:        "{bin}",
			TimeoutSec:    10,
			MemoryLimitMB: 256,
		},
	}
}
