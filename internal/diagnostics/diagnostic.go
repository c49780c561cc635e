// Package diagnostics is the unified source-of-truth for errors and
// warnings flowing in from language servers, task output matchers, and
// build tooling. It owns three partitioned maps (lsp/build/task); a
// push replaces every diagnostic sharing a key, never patches one in
// place.
package diagnostics

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Severity is one of the four LSP-convention severities.
type Severity string

const (
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
	SeverityHint        Severity = "hint"
)

// Source names the origin family of a Diagnostic.
type Source string

const (
	SourceLSP        Source = "lsp"
	SourceTypeScript Source = "typescript"
	SourceESLint     Source = "eslint"
	SourceBuild      Source = "build"
	SourceTask       Source = "task"
	SourceCustom     Source = "custom"
)

// Position is a 0-based UTF-16 code unit position, per LSP convention.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range spans from Start (inclusive) to End (exclusive).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is a single error/warning/info/hint attached to a URI.
type Diagnostic struct {
	URI        string   `json:"uri"`
	Range      Range    `json:"range"`
	Severity   Severity `json:"severity"`
	Source     Source   `json:"source"`
	SourceName string   `json:"source_name,omitempty"`
	Message    string   `json:"message"`
	Code       string   `json:"code,omitempty"`
}

// groupKey is (producer_kind, producer_id, uri) — the only mutation key.
type groupKey struct {
	producerID string
	uri        string
}

// partition is one of the three maps (lsp/build/task), each keyed by
// producer+uri and guarded by its own lock so one partition's writers
// never block another's readers.
type partition struct {
	mu      sync.RWMutex
	entries map[groupKey][]Diagnostic
}

func newPartition() *partition {
	return &partition{entries: make(map[groupKey][]Diagnostic)}
}

func (p *partition) replace(key groupKey, diags []Diagnostic) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(diags) == 0 {
		delete(p.entries, key)
		return
	}
	cp := make([]Diagnostic, len(diags))
	copy(cp, diags)
	p.entries[key] = cp
}

func (p *partition) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[groupKey][]Diagnostic)
}

func (p *partition) all() []Diagnostic {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Diagnostic
	for _, diags := range p.entries {
		out = append(out, diags...)
	}
	return out
}

// Summary is the aggregate count across all partitions by severity.
type Summary struct {
	Error       int `json:"error"`
	Warning     int `json:"warning"`
	Information int `json:"information"`
	Hint        int `json:"hint"`
	Total       int `json:"total"`
}

// FileGroup is the per-file rollup produced by GroupByFile.
type FileGroup struct {
	URI          string       `json:"uri"`
	Diagnostics  []Diagnostic `json:"diagnostics"`
	ErrorCount   int          `json:"error_count"`
	WarningCount int          `json:"warning_count"`
}

// OnSummaryChanged is invoked after every push/clear with the updated
// summary, matching the spec's "emits a summary event" requirement.
// The store does not import the event bus directly — callers wire a
// closure that forwards to internal/events.
type OnSummaryChanged func(Summary)

// Store aggregates diagnostics across lsp/build/task partitions.
type Store struct {
	lsp   *partition
	build *partition
	task  *partition

	onSummaryChanged OnSummaryChanged

	// recent tracks the most recently touched URIs across every
	// partition, bounded so a long session doesn't grow this unbounded;
	// it backs the "Problems panel, most recently changed first" query
	// the UI wants without rescanning every partition on each keystroke.
	recent *lru.Cache[string, time.Time]
}

// NewStore constructs an empty Store. onSummaryChanged may be nil.
func NewStore(onSummaryChanged OnSummaryChanged) *Store {
	recent, _ := lru.New[string, time.Time](512)
	return &Store{
		lsp:              newPartition(),
		build:            newPartition(),
		task:             newPartition(),
		onSummaryChanged: onSummaryChanged,
		recent:           recent,
	}
}

func (s *Store) notify() {
	if s.onSummaryChanged != nil {
		s.onSummaryChanged(s.Summary())
	}
}

func (s *Store) touch(uri string) {
	if uri != "" {
		s.recent.Add(uri, now())
	}
}

// RecentFiles returns up to n URIs touched most recently by any push,
// newest first.
func (s *Store) RecentFiles(n int) []string {
	type stamped struct {
		uri string
		at  time.Time
	}
	keys := s.recent.Keys()
	stampedKeys := make([]stamped, 0, len(keys))
	for _, k := range keys {
		if at, ok := s.recent.Peek(k); ok {
			stampedKeys = append(stampedKeys, stamped{uri: k, at: at})
		}
	}
	sort.Slice(stampedKeys, func(i, j int) bool { return stampedKeys[i].at.After(stampedKeys[j].at) })
	if n > 0 && n < len(stampedKeys) {
		stampedKeys = stampedKeys[:n]
	}
	out := make([]string, len(stampedKeys))
	for i, sk := range stampedKeys {
		out[i] = sk.uri
	}
	return out
}

// PushLSP replaces the entry for (server_id, uri) in the lsp partition.
func (s *Store) PushLSP(serverID, uri string, diags []Diagnostic) {
	s.lsp.replace(groupKey{producerID: serverID, uri: uri}, diags)
	s.touch(uri)
	s.notify()
}

// AddBuild replaces the entry for uri in the build partition. There is
// no producer ID for build output — the uri alone is the key.
func (s *Store) AddBuild(uri string, diags []Diagnostic) {
	s.build.replace(groupKey{uri: uri}, diags)
	s.touch(uri)
	s.notify()
}

// ClearBuild empties the build partition entirely.
func (s *Store) ClearBuild() {
	s.build.clear()
	s.notify()
}

// AddTask replaces the entry for (task_id, uri) in the task partition.
func (s *Store) AddTask(taskID, uri string, diags []Diagnostic) {
	s.task.replace(groupKey{producerID: taskID, uri: uri}, diags)
	s.touch(uri)
	s.notify()
}

// GetAll returns the union of all three partitions.
func (s *Store) GetAll() []Diagnostic {
	var out []Diagnostic
	out = append(out, s.lsp.all()...)
	out = append(out, s.build.all()...)
	out = append(out, s.task.all()...)
	return out
}

// Filter returns the union, restricted by the given optional predicates.
// A zero-value field (empty string) means "no restriction".
func (s *Store) Filter(severity Severity, source Source, uriSubstring string) []Diagnostic {
	var out []Diagnostic
	for _, d := range s.GetAll() {
		if severity != "" && d.Severity != severity {
			continue
		}
		if source != "" && d.Source != source {
			continue
		}
		if uriSubstring != "" && !strings.Contains(d.URI, uriSubstring) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// GroupByFile buckets the given diagnostics by uri, sorted by
// descending error count then descending warning count.
func GroupByFile(diags []Diagnostic) []FileGroup {
	byURI := make(map[string][]Diagnostic)
	order := make([]string, 0)
	for _, d := range diags {
		if _, seen := byURI[d.URI]; !seen {
			order = append(order, d.URI)
		}
		byURI[d.URI] = append(byURI[d.URI], d)
	}
	groups := make([]FileGroup, 0, len(order))
	for _, uri := range order {
		ds := byURI[uri]
		g := FileGroup{URI: uri, Diagnostics: ds}
		for _, d := range ds {
			switch d.Severity {
			case SeverityError:
				g.ErrorCount++
			case SeverityWarning:
				g.WarningCount++
			}
		}
		groups = append(groups, g)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].ErrorCount != groups[j].ErrorCount {
			return groups[i].ErrorCount > groups[j].ErrorCount
		}
		return groups[i].WarningCount > groups[j].WarningCount
	})
	return groups
}

// Summary tallies severities across the full union.
func (s *Store) Summary() Summary {
	var sum Summary
	for _, d := range s.GetAll() {
		switch d.Severity {
		case SeverityError:
			sum.Error++
		case SeverityWarning:
			sum.Warning++
		case SeverityInformation:
			sum.Information++
		case SeverityHint:
			sum.Hint++
		}
	}
	sum.Total = sum.Error + sum.Warning + sum.Information + sum.Hint
	return sum
}

// now is a seam for tests; production code always uses time.Now.
var now = time.Now
