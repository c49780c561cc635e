package diagnostics

import (
	"regexp"
	"strconv"
)

// Pattern describes one named regex-indexed problem matcher.
type Pattern struct {
	Name          string
	Regex         *regexp.Regexp
	FileGroup     int
	LineGroup     int
	ColumnGroup   int
	SeverityGroup int // 0 means "no capture group; Fallback applies"
	MessageGroup  int
	CodeGroup     int // 0 means "no code capture"

	// Fallback is used when SeverityGroup is 0.
	Fallback Severity

	// SourceName labels diagnostics emitted by this pattern, e.g. "tsc".
	SourceName string
}

// rustcStartRe recognizes the rolling-context line rustc emits before
// the file/line/column line.
var rustcStartRe = regexp.MustCompile(`^(error|warning)(\[(E\d+)\])?:\s+(.*)$`)

// rustcLocationRe recognizes the follow-up "--> FILE:LINE:COL" line.
var rustcLocationRe = regexp.MustCompile(`^\s*-->\s+(.+):(\d+):(\d+)\s*$`)

// Engine walks tool output lines, applying each configured Pattern in
// order and emitting a Diagnostic on the first match. It also
// implements the rustc two-line context rule as a special case since
// that format splits severity+message from location across lines.
type Engine struct {
	patterns []Pattern

	// rustcContext holds the most recently seen (severity, message,
	// code) pending a location line, or nil if none is pending.
	rustcContext *rustcPending
}

type rustcPending struct {
	severity Severity
	code     string
	message  string
}

// NewEngine builds a matcher engine from the given patterns, in the
// order they should be tried.
func NewEngine(patterns ...Pattern) *Engine {
	return &Engine{patterns: patterns}
}

// MatchLine applies the rustc context rule first, then every
// configured pattern in order, returning the first Diagnostic
// produced (if any).
func (e *Engine) MatchLine(line string) (Diagnostic, bool) {
	if m := rustcStartRe.FindStringSubmatch(line); m != nil {
		sev := SeverityError
		if m[1] == "warning" {
			sev = SeverityWarning
		}
		e.rustcContext = &rustcPending{severity: sev, code: m[3], message: m[4]}
		return Diagnostic{}, false
	}
	if e.rustcContext != nil {
		if m := rustcLocationRe.FindStringSubmatch(line); m != nil {
			ctx := e.rustcContext
			e.rustcContext = nil
			lineNo, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			return Diagnostic{
				URI:        m[1],
				Range:      pointRange(lineNo, col),
				Severity:   ctx.severity,
				Source:     SourceBuild,
				SourceName: "rustc",
				Message:    ctx.message,
				Code:       ctx.code,
			}, true
		}
		// Any other line breaks the pending context (rustc interleaves
		// the location line immediately after the message line).
		e.rustcContext = nil
	}

	for _, p := range e.patterns {
		m := p.Regex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		return p.buildDiagnostic(m), true
	}
	return Diagnostic{}, false
}

func (p Pattern) buildDiagnostic(m []string) Diagnostic {
	lineNo, _ := strconv.Atoi(group(m, p.LineGroup))
	col, _ := strconv.Atoi(group(m, p.ColumnGroup))
	sev := p.Fallback
	if p.SeverityGroup > 0 {
		sev = normalizeSeverity(group(m, p.SeverityGroup))
	}
	var code string
	if p.CodeGroup > 0 {
		code = group(m, p.CodeGroup)
	}
	return Diagnostic{
		URI:        group(m, p.FileGroup),
		Range:      pointRange(lineNo, col),
		Severity:   sev,
		Source:     SourceTask,
		SourceName: p.SourceName,
		Message:    group(m, p.MessageGroup),
		Code:       code,
	}
}

func group(m []string, idx int) string {
	if idx <= 0 || idx >= len(m) {
		return ""
	}
	return m[idx]
}

// pointRange builds a zero-width Range at (line, col), converting from
// the matcher's 1-based convention to the store's 0-based convention.
func pointRange(line, col int) Range {
	l := line - 1
	if l < 0 {
		l = 0
	}
	c := col - 1
	if c < 0 {
		c = 0
	}
	pos := Position{Line: l, Character: c}
	return Range{Start: pos, End: pos}
}

func normalizeSeverity(raw string) Severity {
	switch raw {
	case "error", "Error", "ERROR", "E":
		return SeverityError
	case "warning", "Warning", "WARNING", "W":
		return SeverityWarning
	case "info", "information", "Information", "I":
		return SeverityInformation
	case "hint", "Hint":
		return SeverityHint
	default:
		return SeverityError
	}
}

// Reset clears any pending rustc rolling context. Callers should call
// this between distinct task runs sharing one Engine instance.
func (e *Engine) Reset() { e.rustcContext = nil }
