// Package pathpolicy gates every filesystem-touching call behind a
// configured set of read and write roots. It is the single chokepoint
// the rest of the core relies on to keep extensions and remote peers
// from escaping the workspace via ".." or absolute paths outside the
// configured roots. Checks are lexical: symlinks are not resolved, so a
// symlink inside a root that points outside it is not detected.
package pathpolicy

import (
	"path/filepath"
	"strings"

	coreerrors "github.com/cortex-ide/core/internal/errors"
)

// Policy validates paths against a configured set of read and write roots.
// A zero-value Policy denies everything; use New to build one from config.
type Policy struct {
	readRoots  []string
	writeRoots []string

	// extensionAllowlist additionally restricts which canonical roots
	// sandboxed extensions may touch, independent of read/write roots.
	extensionAllowlist []string
}

// New builds a Policy from a list of read roots and write roots. Every
// write root is implicitly a read root, matching the spec's "write
// implies read" rule.
func New(readRoots, writeRoots []string) *Policy {
	p := &Policy{
		readRoots:  canonicalizeAll(readRoots),
		writeRoots: canonicalizeAll(writeRoots),
	}
	return p
}

// WithExtensionAllowlist restricts extension-originated calls (as
// opposed to the UI's own calls) to a further subset of roots.
func (p *Policy) WithExtensionAllowlist(roots []string) *Policy {
	p.extensionAllowlist = canonicalizeAll(roots)
	return p
}

func canonicalizeAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, filepath.Clean(p))
	}
	return out
}

// canonicalize resolves ".." and symlink-free lexical cleanup. It does
// not consult the filesystem: callers may validate paths that do not
// yet exist (e.g. a file about to be created).
func canonicalize(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join("/", path)
	}
	return filepath.Clean(path)
}

func underAnyRoot(path string, roots []string) bool {
	for _, root := range roots {
		if isUnderRoot(path, root) {
			return true
		}
	}
	return false
}

func isUnderRoot(path, root string) bool {
	if path == root {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(path, strings.TrimSuffix(root, sep)+sep)
}

// ValidateForRead canonicalizes path and checks it against the read
// roots (which include every write root).
func (p *Policy) ValidateForRead(path string) (string, error) {
	canon := canonicalize(path)
	if underAnyRoot(canon, p.readRoots) || underAnyRoot(canon, p.writeRoots) {
		return canon, nil
	}
	return "", coreerrors.PolicyDenied("path %q is outside configured read roots", path)
}

// ValidateForWrite canonicalizes path and checks it against the write
// roots only.
func (p *Policy) ValidateForWrite(path string) (string, error) {
	canon := canonicalize(path)
	if underAnyRoot(canon, p.writeRoots) {
		return canon, nil
	}
	return "", coreerrors.PolicyDenied("path %q is outside configured write roots", path)
}

// ValidateForExtensionRead applies the extension allowlist, if one was
// configured, on top of the ordinary read check.
func (p *Policy) ValidateForExtensionRead(path string) (string, error) {
	canon, err := p.ValidateForRead(path)
	if err != nil {
		return "", err
	}
	if len(p.extensionAllowlist) > 0 && !underAnyRoot(canon, p.extensionAllowlist) {
		return "", coreerrors.PolicyDenied("path %q is outside the extension allowlist", path)
	}
	return canon, nil
}

// ValidateForExtensionWrite applies the extension allowlist on top of
// the ordinary write check.
func (p *Policy) ValidateForExtensionWrite(path string) (string, error) {
	canon, err := p.ValidateForWrite(path)
	if err != nil {
		return "", err
	}
	if len(p.extensionAllowlist) > 0 && !underAnyRoot(canon, p.extensionAllowlist) {
		return "", coreerrors.PolicyDenied("path %q is outside the extension allowlist", path)
	}
	return canon, nil
}

// ReadRoots returns a copy of the configured read roots.
func (p *Policy) ReadRoots() []string { return append([]string(nil), p.readRoots...) }

// WriteRoots returns a copy of the configured write roots.
func (p *Policy) WriteRoots() []string { return append([]string(nil), p.writeRoots...) }
