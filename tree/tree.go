// Package tree abstracts the state store behind the tracked dotfiles tree.
//
// The production implementation shells out to git; orchestrators depend on the Store
// interface so tests can substitute a deterministic fake.
package tree

import (
	"os"
	"path/filepath"

	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/where"
	"github.com/spf13/afero"
)

// Store is the contract the update and rollback workflows hold against the tracked tree.
type Store interface {
	// Root returns the absolute path of the tracked tree.
	Root() string
	// Head returns the locally recorded version identifier.
	Head() (string, error)
	// Dirty reports whether the tree carries uncommitted local modifications.
	Dirty() (bool, error)
	// Fetch refreshes remote refs without touching the working tree.
	Fetch() error
	// FastForward advances the tree to ref, failing without partial changes when the
	// advance is not a strict continuation of local state.
	FastForward(ref string) error
	// Intact reports whether the underlying state store metadata is structurally sound.
	Intact() error
	// Files returns the absolute paths of every tracked regular file.
	Files() ([]string, error)
}

// PreserveSet returns the paths inside the tree that must survive a whole-tree replacement
// regardless of backup contents: the state-store metadata and the backup registries.
func PreserveSet(root string) []string {
	return []string{
		filepath.Join(root, ".git"),
		filepath.Join(root, ".dotkeep"),
	}
}

// TrackedFiles walks the tree and returns every regular file outside the preserve-set.
// It backs Store.Files for stores that have no cheaper listing.
func TrackedFiles(root string) ([]string, error) {
	fs := filesystem.API()
	preserved := PreserveSet(root)

	var files []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		for _, p := range preserved {
			if path == p || within(path, p) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// within reports whether path is beneath dir.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && rel != "." && !startsWithDotDot(rel)
}

func startsWithDotDot(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}

// Default returns the production git-backed store rooted at the configured tree path.
func Default() Store {
	return NewGitStore(where.Tree())
}
