package diagnostics

import "regexp"

// BuiltinMatchers returns the five built-in regex problem matchers:
// tsc, eslint-stylish, gcc, go, python. The list has no "rustc" entry,
// so looking up the name "rustc" in it finds nothing; rustc's two-line
// format is recognized by Engine.MatchLine itself, on every Engine,
// whatever patterns the Engine was built with.
func BuiltinMatchers() []Pattern {
	return []Pattern{
		tscMatcher(),
		eslintStylishMatcher(),
		gccMatcher(),
		goMatcher(),
		pythonMatcher(),
	}
}

// tscMatcher handles TypeScript compiler output:
//   src/index.ts(12,5): error TS2322: Type 'string' is not assignable to type 'number'.
func tscMatcher() Pattern {
	return Pattern{
		Name:          "tsc",
		Regex:         regexp.MustCompile(`^(.+)\((\d+),(\d+)\):\s+(error|warning)\s+(TS\d+):\s+(.*)$`),
		FileGroup:     1,
		LineGroup:     2,
		ColumnGroup:   3,
		SeverityGroup: 4,
		CodeGroup:     5,
		MessageGroup:  6,
		SourceName:    "tsc",
	}
}

// eslintStylishMatcher handles eslint's default "stylish" formatter:
//   12:5  error  'x' is defined but never used  no-unused-vars
func eslintStylishMatcher() Pattern {
	return Pattern{
		Name:          "eslint-stylish",
		Regex:         regexp.MustCompile(`^\s*(\d+):(\d+)\s+(error|warning)\s+(.+?)\s{2,}(\S+)\s*$`),
		LineGroup:     1,
		ColumnGroup:   2,
		SeverityGroup: 3,
		MessageGroup:  4,
		CodeGroup:     5,
		SourceName:    "eslint",
	}
}

// gccMatcher handles gcc/clang-style output:
//   main.c:10:3: error: 'foo' undeclared
func gccMatcher() Pattern {
	return Pattern{
		Name:          "gcc",
		Regex:         regexp.MustCompile(`^(.+):(\d+):(\d+):\s+(error|warning|note):\s+(.*)$`),
		FileGroup:     1,
		LineGroup:     2,
		ColumnGroup:   3,
		SeverityGroup: 4,
		MessageGroup:  5,
		SourceName:    "gcc",
	}
}

// goMatcher handles `go build`/`go vet` output:
//   ./main.go:15:2: undefined: fmt.Printl
func goMatcher() Pattern {
	return Pattern{
		Name:         "go",
		Regex:        regexp.MustCompile(`^(.+\.go):(\d+):(\d+):\s+(.*)$`),
		FileGroup:    1,
		LineGroup:    2,
		ColumnGroup:  3,
		MessageGroup: 4,
		Fallback:     SeverityError,
		SourceName:   "go",
	}
}

// pythonMatcher matches each "File ..., line N" frame line of a Python
// traceback. Only the frame line is read, so the diagnostic's Message
// is empty: the error class and message on the traceback's last line
// are not captured.
func pythonMatcher() Pattern {
	return Pattern{
		Name:         "python",
		Regex:        regexp.MustCompile(`^\s*File\s+"(.+)",\s+line\s+(\d+),.*$`),
		FileGroup:    1,
		LineGroup:    2,
		MessageGroup: 0,
		Fallback:     SeverityError,
		SourceName:   "python",
	}
}
