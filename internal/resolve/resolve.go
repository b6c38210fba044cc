// Package resolve locates the file backing an out-of-line `mod name;` declaration.
package resolve

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// NotFoundError reports that none of the candidate files for a module exist.
type NotFoundError struct {
	Module     string
	Candidates []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("module %q not found in any of the expected paths: %s",
		e.Module, strings.Join(e.Candidates, ", "))
}

// Resolver searches for module files on a filesystem.
type Resolver struct {
	fs afero.Fs
}

// New returns a Resolver reading from fs.
func New(fs afero.Fs) *Resolver {
	return &Resolver{fs: fs}
}

// Candidates returns the paths searched for module name declared by a file in
// dir, in precedence order: dir/<name>.rs, then dir/<name>/mod.rs.
func Candidates(name, dir string) []string {
	file := strings.TrimPrefix(name, "r#")
	return []string{
		filepath.Join(dir, file+".rs"),
		filepath.Join(dir, file, "mod.rs"),
	}
}

// Module returns the first candidate that exists as a regular file. Names
// that would lead outside dir are never looked up.
func (r *Resolver) Module(name, dir string) (string, error) {
	candidates := Candidates(name, dir)
	if !validName(name) {
		return "", &NotFoundError{Module: name, Candidates: candidates}
	}

	for _, path := range candidates {
		info, err := r.fs.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		return path, nil
	}
	return "", &NotFoundError{Module: name, Candidates: candidates}
}

func validName(name string) bool {
	name = strings.TrimPrefix(name, "r#")
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
