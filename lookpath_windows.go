package procio

import (
	"os"
	"path/filepath"
	"strings"
)

// LookPath searches for an executable named file in the directories named
// by the PATH environment variable. Names without an extension are tried
// with each extension in PATHEXT. If file contains a path separator it is
// tried directly and the PATH is not consulted.
func LookPath(file string) (string, error) {
	return lookPath(file, os.Getenv("PATH"))
}

func lookPath(file, path string) (string, error) {
	exts := pathExts()
	if strings.ContainsAny(file, `:\/`) {
		f, err := findExecutable(file, exts)
		if err != nil {
			return "", lookPathError(file, err)
		}
		return f, nil
	}
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			continue
		}
		if f, err := findExecutable(filepath.Join(dir, file), exts); err == nil {
			if !filepath.IsAbs(f) {
				return f, lookPathError(file, ErrDot)
			}
			return f, nil
		}
	}
	return "", lookPathError(file, ErrNotFound)
}

func pathExts() []string {
	x := os.Getenv("PATHEXT")
	if x == "" {
		return []string{".com", ".exe", ".bat", ".cmd"}
	}
	var exts []string
	for _, e := range strings.Split(strings.ToLower(x), ";") {
		if e == "" {
			continue
		}
		if e[0] != '.' {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

// findExecutable tries file as given when it already carries one of exts,
// then file with each of exts appended.
func findExecutable(file string, exts []string) (string, error) {
	ext := strings.ToLower(filepath.Ext(file))
	for _, e := range exts {
		if ext == e {
			if err := chkStat(file); err == nil {
				return file, nil
			}
			break
		}
	}
	for _, e := range exts {
		if f := file + e; chkStat(f) == nil {
			return f, nil
		}
	}
	return "", os.ErrNotExist
}

func chkStat(file string) error {
	fi, err := os.Stat(file)
	if err != nil {
		return err
	}
	if fi.Mode().IsDir() {
		return os.ErrPermission
	}
	return nil
}

func lookPathError(file string, err error) error {
	return newError(ConfigurationError, "lookpath", file, err)
}
