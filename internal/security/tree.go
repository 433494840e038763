// Package security confines file writes to the signer checkout.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"arbiter-launcher/internal/domain"
)

// Tree enforces that paths taken from configuration stay inside a
// directory tree after symlinks are resolved.
type Tree struct {
	root string // absolute, resolved root
}

// NewTree creates a Tree rooted at the given directory.
func NewTree(root string) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve tree root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("eval symlinks for tree root: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat tree root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("tree root %q is not a directory", resolved)
	}

	return &Tree{root: resolved}, nil
}

// Resolve maps a slash-separated path relative to the root onto the
// filesystem and checks that it does not escape. Components that do not
// exist yet are allowed; the deepest existing ancestor is resolved.
func (t *Tree) Resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", domain.NewDomainError("Tree.Resolve", domain.ErrPathOutsideTree,
			fmt.Sprintf("%q is not a relative path", rel))
	}

	joined := filepath.Join(t.root, filepath.FromSlash(rel))
	if !t.contains(joined) {
		return "", domain.NewDomainError("Tree.Resolve", domain.ErrPathOutsideTree,
			fmt.Sprintf("%q leaves %q", rel, t.root))
	}

	existing, rest := joined, ""
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", domain.NewDomainError("Tree.Resolve", domain.ErrPathOutsideTree, err.Error())
	}
	resolved = filepath.Join(resolved, rest)

	if !t.contains(resolved) {
		return "", domain.NewDomainError("Tree.Resolve", domain.ErrPathOutsideTree,
			fmt.Sprintf("resolved %q is outside root %q", resolved, t.root))
	}
	return resolved, nil
}

// Root returns the resolved root directory.
func (t *Tree) Root() string { return t.root }

func (t *Tree) contains(path string) bool {
	return path == t.root || strings.HasPrefix(path, t.root+string(os.PathSeparator))
}
