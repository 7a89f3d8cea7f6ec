package domain

import "strings"

// RootPath scopes the visible document tree to a folder subtree.
// The zero value ("") means the whole tree is visible. Matching is
// case-insensitive so "work/Notes" and "Work/notes" scope the same
// subtree.
type RootPath string

// NormalizeRoot canonicalises a user-supplied root folder. "", "/" and
// whitespace all mean unscoped; anything else loses leading and trailing
// slashes, so "/Work/Projects/" becomes "Work/Projects".
func NormalizeRoot(raw string) RootPath {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "/")
	return RootPath(s)
}

// IsUnscoped reports whether the whole tree is visible.
func (r RootPath) IsUnscoped() bool { return r == "" }

// Contains reports whether a full document path lies inside the scope.
// The root folder itself is not contained; its children are.
func (r RootPath) Contains(fullPath string) bool {
	if r.IsUnscoped() {
		return true
	}
	p := strings.Trim(fullPath, "/")
	prefix := string(r) + "/"
	return len(p) > len(prefix)-1 && strings.EqualFold(p[:len(prefix)], prefix)
}

// Apply strips the root prefix from a full path for display, so callers
// inside the scope see paths relative to it. Paths outside the scope are
// returned unchanged.
func (r RootPath) Apply(fullPath string) string {
	if r.IsUnscoped() {
		return fullPath
	}
	p := strings.Trim(fullPath, "/")
	prefix := string(r) + "/"
	if len(p) >= len(prefix) && strings.EqualFold(p[:len(prefix)], prefix) {
		return p[len(prefix):]
	}
	return fullPath
}

// Resolve prepends the root to a scope-relative path, producing the full
// tree path.
func (r RootPath) Resolve(relPath string) string {
	p := strings.Trim(relPath, "/")
	if r.IsUnscoped() {
		return p
	}
	if p == "" {
		return string(r)
	}
	return string(r) + "/" + p
}
