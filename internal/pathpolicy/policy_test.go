package pathpolicy

import (
	"testing"

	coreerrors "github.com/cortex-ide/core/internal/errors"
)

func TestValidateForReadAllowsPathUnderRoot(t *testing.T) {
	p := New([]string{"/workspace"}, nil)
	canon, err := p.ValidateForRead("/workspace/src/main.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if canon != "/workspace/src/main.go" {
		t.Fatalf("unexpected canonical path: %q", canon)
	}
}

func TestValidateForReadRejectsTraversalEscape(t *testing.T) {
	p := New([]string{"/workspace"}, nil)
	_, err := p.ValidateForRead("/workspace/../etc/passwd")
	if !coreerrors.IsPolicyDenied(err) {
		t.Fatalf("expected PolicyDenied, got %v", err)
	}
}

func TestValidateForReadRejectsOutsideRoot(t *testing.T) {
	p := New([]string{"/workspace"}, nil)
	_, err := p.ValidateForRead("/etc/passwd")
	if !coreerrors.IsPolicyDenied(err) {
		t.Fatalf("expected PolicyDenied, got %v", err)
	}
}

func TestValidateForWriteRejectsReadOnlyRoot(t *testing.T) {
	p := New([]string{"/workspace"}, nil)
	_, err := p.ValidateForWrite("/workspace/src/main.go")
	if !coreerrors.IsPolicyDenied(err) {
		t.Fatalf("expected write to a read-only root to be denied, got %v", err)
	}
}

func TestWriteRootImpliesRead(t *testing.T) {
	p := New(nil, []string{"/workspace/out"})
	if _, err := p.ValidateForRead("/workspace/out/build.log"); err != nil {
		t.Fatalf("expected write root to imply read access, got %v", err)
	}
	if _, err := p.ValidateForWrite("/workspace/out/build.log"); err != nil {
		t.Fatalf("expected write to succeed under write root, got %v", err)
	}
}

func TestRelativePathIsAnchoredToRootSlash(t *testing.T) {
	p := New([]string{"/workspace"}, nil)
	_, err := p.ValidateForRead("workspace/../../etc/passwd")
	if !coreerrors.IsPolicyDenied(err) {
		t.Fatalf("expected PolicyDenied for escaping relative path, got %v", err)
	}
}

func TestExtensionAllowlistFurtherRestrictsRoots(t *testing.T) {
	p := New([]string{"/workspace"}, nil).WithExtensionAllowlist([]string{"/workspace/src"})
	if _, err := p.ValidateForExtensionRead("/workspace/src/main.go"); err != nil {
		t.Fatalf("expected allowlisted path to pass, got %v", err)
	}
	if _, err := p.ValidateForExtensionRead("/workspace/secrets/token"); !coreerrors.IsPolicyDenied(err) {
		t.Fatalf("expected non-allowlisted path to be denied, got %v", err)
	}
}

func TestExactRootItselfIsValid(t *testing.T) {
	p := New([]string{"/workspace"}, nil)
	if _, err := p.ValidateForRead("/workspace"); err != nil {
		t.Fatalf("expected root path itself to validate, got %v", err)
	}
}

func TestSiblingDirectoryWithSharedPrefixIsRejected(t *testing.T) {
	p := New([]string{"/workspace"}, nil)
	_, err := p.ValidateForRead("/workspace-evil/file.go")
	if !coreerrors.IsPolicyDenied(err) {
		t.Fatalf("expected sibling dir with shared prefix to be denied, got %v", err)
	}
}
