// Package discover locates crate entry files from Cargo manifests.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	ignore "github.com/sabhiram/go-gitignore"
	"gitlab.com/tozd/go/errors"

	"github.com/phobologic/cratemap/internal/lang"
)

// ManifestName is the file that marks a crate or workspace root.
const ManifestName = "Cargo.toml"

// Crate is a package found under a workspace root.
type Crate struct {
	Name  string
	Dir   string // Relative to the walked root
	Entry string
}

var skipDirs = map[string]struct{}{
	"target":       {},
	"node_modules": {},
	"vendor":       {},
	".git":         {},
	".hg":          {},
	".svn":         {},
}

// defaultEntries are tried in order when the manifest names no target path.
var defaultEntries = []string{
	filepath.Join("src", "main.rs"),
	filepath.Join("src", "lib.rs"),
}

type target struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

type manifest struct {
	Package *struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Lib       *target  `toml:"lib"`
	Bin       []target `toml:"bin"`
	Workspace *struct {
		Members []string `toml:"members"`
		Exclude []string `toml:"exclude"`
	} `toml:"workspace"`
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// entry returns the first existing target file of the crate in dir, or ""
// if there is none.
func (m *manifest) entry(dir string) string {
	var candidates []string
	if m.Lib != nil && m.Lib.Path != "" {
		candidates = append(candidates, m.Lib.Path)
	}
	if len(m.Bin) > 0 && m.Bin[0].Path != "" {
		candidates = append(candidates, m.Bin[0].Path)
	}
	candidates = append(candidates, defaultEntries...)

	for _, c := range candidates {
		path := filepath.Join(dir, filepath.FromSlash(c))
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// Entry resolves path to the file a traversal should start from. A .rs file
// is returned unchanged. A directory is searched upward for Cargo.toml,
// whose crate entry is returned; for a virtual workspace the entry of the
// first crate matched by its members list is used. An empty path means the
// working directory.
func Entry(path string) (string, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.Errorf("getting working directory: %w", err)
		}
		path = wd
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Errorf("entry path: %w", err)
	}
	if !info.IsDir() {
		if !lang.Rust.HasExtension(path) {
			return "", errors.Errorf("%s: not a Rust source file", path)
		}
		return path, nil
	}

	dir, err := findManifestDir(path)
	if err != nil {
		return "", err
	}
	m, err := readManifest(filepath.Join(dir, ManifestName))
	if err != nil {
		return "", errors.Errorf("reading manifest: %w", err)
	}

	if m.Package == nil && m.Workspace != nil {
		crates, err := Crates(dir)
		if err != nil {
			return "", err
		}
		crates = Members(crates, m.Workspace.Members, m.Workspace.Exclude)
		if len(crates) == 0 {
			return "", errors.Errorf("workspace %s has no member crate with an entry file", dir)
		}
		return crates[0].Entry, nil
	}

	if entry := m.entry(dir); entry != "" {
		return entry, nil
	}
	return "", errors.Errorf("no entry file found for crate in %s", dir)
}

// Members orders crates the way a workspace manifest lists them. Each pattern
// is a glob over crate directories relative to the workspace root; crates
// matched by one pattern keep their directory order. Crates matched by no
// pattern, or by an exclude pattern, are dropped. With no patterns every
// crate not excluded is kept.
func Members(crates []Crate, members, exclude []string) []Crate {
	excluded := func(c Crate) bool {
		return matchesAny(c.Dir, exclude)
	}

	if len(members) == 0 {
		var kept []Crate
		for _, c := range crates {
			if !excluded(c) {
				kept = append(kept, c)
			}
		}
		return kept
	}

	seen := make(map[string]struct{}, len(crates))
	var ordered []Crate
	for _, pattern := range members {
		for _, c := range crates {
			if _, ok := seen[c.Dir]; ok || excluded(c) || !matchesAny(c.Dir, []string{pattern}) {
				continue
			}
			seen[c.Dir] = struct{}{}
			ordered = append(ordered, c)
		}
	}
	return ordered
}

func matchesAny(dir string, patterns []string) bool {
	dir = filepath.ToSlash(dir)
	for _, p := range patterns {
		p = path.Clean(strings.TrimPrefix(p, "./"))
		if ok, err := path.Match(p, dir); err == nil && ok {
			return true
		}
	}
	return false
}

func findManifestDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", errors.Errorf("resolving %s: %w", start, err)
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ManifestName)); err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.Errorf("no %s found in %s or any parent directory", ManifestName, start)
		}
		dir = parent
	}
}

// Crates finds every package manifest under root that has an entry file.
// Build output, hidden directories and ignored paths are skipped.
func Crates(root string) ([]Crate, error) {
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []Crate

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if name != ManifestName {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		m, err := readManifest(path)
		if err != nil || m.Package == nil {
			return nil
		}

		dir := filepath.Dir(path)
		entry := m.entry(dir)
		if entry == "" {
			return nil
		}

		results = append(results, Crate{
			Name:  m.Package.Name,
			Dir:   filepath.Dir(rel),
			Entry: entry,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Dir < results[j].Dir
	})

	return results, nil
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
