//go:build unix

package procio

import (
	"cmp"
	"os"
	"path/filepath"
	"strings"
)

// LookPath searches for an executable named file in the directories named
// by the PATH environment variable. If file contains a slash, it is tried
// directly and the PATH is not consulted. Otherwise, on success, the result
// is an absolute path.
//
// A match found through a relative PATH entry is returned together with an
// error satisfying errors.Is(err, ErrDot), and Spawn refuses to run it.
func LookPath(file string) (string, error) {
	return lookPath(file, os.Getenv("PATH"))
}

// lookPath is LookPath against an explicit search path, which lets Spawn
// honor a PATH set through Cmd.Env the way execvp in the child would.
func lookPath(file, path string) (string, error) {
	if strings.Contains(file, "/") {
		if err := checkExecutable(file); err != nil {
			return "", lookPathError(file, err)
		}
		return file, nil
	}
	for _, candidate := range searchCandidates(file, path) {
		if checkExecutable(candidate) != nil {
			continue
		}
		if !filepath.IsAbs(candidate) {
			return candidate, lookPathError(file, ErrDot)
		}
		return candidate, nil
	}
	return "", lookPathError(file, ErrNotFound)
}

// searchCandidates lists file joined to each PATH element in order. An
// empty element stands for the current directory.
func searchCandidates(file, path string) []string {
	dirs := filepath.SplitList(path)
	candidates := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		candidates = append(candidates, filepath.Join(cmp.Or(dir, "."), file))
	}
	return candidates
}

// checkExecutable reports os.ErrPermission for directories and files with
// no execute bit set.
func checkExecutable(name string) error {
	fi, err := os.Stat(name)
	switch {
	case err != nil:
		return err
	case fi.IsDir(), fi.Mode().Perm()&0o111 == 0:
		return os.ErrPermission
	}
	return nil
}

func lookPathError(file string, err error) error {
	return newError(ConfigurationError, "lookpath", file, err)
}
