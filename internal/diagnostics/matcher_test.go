package diagnostics

import "testing"

func TestTscMatcherExtractsFileLineColumnAndCode(t *testing.T) {
	e := NewEngine(tscMatcher())
	d, ok := e.MatchLine(`src/index.ts(12,5): error TS2322: Type 'string' is not assignable to type 'number'.`)
	if !ok {
		t.Fatal("expected a match")
	}
	if d.URI != "src/index.ts" || d.Range.Start.Line != 11 || d.Range.Start.Character != 4 {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
	if d.Code != "TS2322" || d.Severity != SeverityError {
		t.Fatalf("unexpected code/severity: %+v", d)
	}
}

func TestEslintStylishMatcherExtractsRuleAsCode(t *testing.T) {
	e := NewEngine(eslintStylishMatcher())
	d, ok := e.MatchLine(`  12:5  error  'x' is defined but never used  no-unused-vars`)
	if !ok {
		t.Fatal("expected a match")
	}
	if d.Code != "no-unused-vars" || d.Severity != SeverityError {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
}

func TestGccMatcherExtractsLocationAndSeverity(t *testing.T) {
	e := NewEngine(gccMatcher())
	d, ok := e.MatchLine(`main.c:10:3: error: 'foo' undeclared`)
	if !ok {
		t.Fatal("expected a match")
	}
	if d.URI != "main.c" || d.Range.Start.Line != 9 || d.Severity != SeverityError {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
}

func TestGoMatcherDefaultsToError(t *testing.T) {
	e := NewEngine(goMatcher())
	d, ok := e.MatchLine(`./main.go:15:2: undefined: fmt.Printl`)
	if !ok {
		t.Fatal("expected a match")
	}
	if d.Severity != SeverityError || d.Message != "undefined: fmt.Printl" {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
}

func TestRustcTwoLineContextRuleEmitsOnLocationLine(t *testing.T) {
	e := NewEngine()
	if _, ok := e.MatchLine(`error[E0308]: mismatched types`); ok {
		t.Fatal("expected the message line alone to not emit a diagnostic")
	}
	d, ok := e.MatchLine(` --> src/main.rs:4:13`)
	if !ok {
		t.Fatal("expected the location line to emit a diagnostic using the pending context")
	}
	if d.URI != "src/main.rs" || d.Range.Start.Line != 3 || d.Range.Start.Character != 12 {
		t.Fatalf("unexpected location: %+v", d)
	}
	if d.Severity != SeverityError || d.Code != "E0308" || d.Message != "mismatched types" {
		t.Fatalf("unexpected severity/code/message: %+v", d)
	}
}

func TestRustcContextDoesNotLeakAcrossUnrelatedLines(t *testing.T) {
	e := NewEngine()
	e.MatchLine(`warning: unused variable: x`)
	if _, ok := e.MatchLine(`note: some unrelated line`); ok {
		t.Fatal("expected unrelated line to not emit")
	}
	if _, ok := e.MatchLine(` --> src/main.rs:1:1`); ok {
		t.Fatal("expected context to have been cleared by the intervening line")
	}
}

func TestEngineTriesPatternsInOrderAndStopsAtFirstMatch(t *testing.T) {
	e := NewEngine(gccMatcher(), goMatcher())
	d, ok := e.MatchLine(`main.c:10:3: error: 'foo' undeclared`)
	if !ok || d.SourceName != "gcc" {
		t.Fatalf("expected gcc matcher to win since it is tried first, got %+v ok=%v", d, ok)
	}
}

func TestNoPatternMatchesReturnsFalse(t *testing.T) {
	e := NewEngine(tscMatcher())
	if _, ok := e.MatchLine(`just some ordinary log line`); ok {
		t.Fatal("expected no match")
	}
}
