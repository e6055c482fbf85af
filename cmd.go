// Package procio spawns child processes and connects to their standard
// streams, on Unix through fork and exec and on Windows through
// CreateProcess, with the same behavior on both.
//
// A Cmd describes the program to run. Each of its standard streams is
// connected according to a Stdio: inherited from the parent, a new pipe, the
// null device, or an endpoint of another child, which chains the two
// processes together:
//
//	producer, err := procio.Command("git", "log").Stdout(procio.Pipe()).Spawn()
//	...
//	out, err := procio.Command("wc", "-l").Stdin(procio.From(producer.Stdout)).Output()
//
// Every file descriptor or handle created by the package has exactly one
// owner and is closed exactly once.
package procio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
)

// Cmd represents an external command being prepared. The methods that
// configure it return the Cmd so calls can be chained.
//
// A Cmd can be spawned more than once, except that a Stdio built with From
// is consumed by the first spawn that uses it, whether or not that spawn
// succeeds.
type Cmd struct {
	program string
	args    []string
	dir     string

	envClear bool
	envEdits []envEdit

	stdin  Stdio
	stdout Stdio
	stderr Stdio

	log *zerolog.Logger
}

// Command returns a Cmd that runs program with the given arguments. All
// three standard streams are inherited and the environment is the parent's.
//
// If program contains no path separator it is searched for in the
// directories named by PATH when the Cmd is spawned.
func Command(program string, args ...string) *Cmd {
	return &Cmd{
		program: program,
		args:    append([]string(nil), args...),
	}
}

// Arg appends one argument.
func (c *Cmd) Arg(arg string) *Cmd {
	c.args = append(c.args, arg)
	return c
}

// Args appends arguments in order.
func (c *Cmd) Args(args ...string) *Cmd {
	c.args = append(c.args, args...)
	return c
}

// CurrentDir sets the working directory of the child. A leading "~" is
// replaced by the user's home directory. If dir is relative, it is
// evaluated relative to the parent's working directory.
func (c *Cmd) CurrentDir(dir string) *Cmd {
	c.dir = dir
	return c
}

// Env sets an environment variable for the child. If the same key is set
// more than once, the last value wins.
func (c *Cmd) Env(key, value string) *Cmd {
	c.envEdits = append(c.envEdits, envEdit{key: key, value: value})
	return c
}

// Envs sets several environment variables, in key order.
func (c *Cmd) Envs(vars map[string]string) *Cmd {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.Env(k, vars[k])
	}
	return c
}

// EnvRemove removes key from the child's environment.
func (c *Cmd) EnvRemove(key string) *Cmd {
	c.envEdits = append(c.envEdits, envEdit{key: key, remove: true})
	return c
}

// EnvClear drops the inherited environment and every variable set so far.
// Only variables set afterwards reach the child.
func (c *Cmd) EnvClear() *Cmd {
	c.envClear = true
	c.envEdits = nil
	return c
}

// Stdin sets how the child's standard input is connected.
func (c *Cmd) Stdin(s Stdio) *Cmd {
	c.stdin = s
	return c
}

// Stdout sets how the child's standard output is connected.
func (c *Cmd) Stdout(s Stdio) *Cmd {
	c.stdout = s
	return c
}

// Stderr sets how the child's standard error is connected.
func (c *Cmd) Stderr(s Stdio) *Cmd {
	c.stderr = s
	return c
}

// Logger sets the logger for this command and the children it spawns,
// overriding the one set with SetLogger.
func (c *Cmd) Logger(l zerolog.Logger) *Cmd {
	c.log = &l
	return c
}

// Program returns the program as given to Command.
func (c *Cmd) Program() string {
	return c.program
}

// Environ returns the environment the child would be started with as the
// Cmd is currently configured.
func (c *Cmd) Environ() []string {
	var base []string
	if !c.envClear {
		base = os.Environ()
	}
	return mergeEnv(base, c.envEdits)
}

// String returns a human-readable description of c.
// It is intended only for debugging.
// In particular, it is not suitable for use as input to a shell.
func (c *Cmd) String() string {
	var b strings.Builder
	b.WriteString(c.program)
	for _, a := range c.args {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	return b.String()
}

// Spawn starts the command and returns the running Child.
//
// The standard streams are resolved in order, then the process is created
// with them attached, then the child's side of every pipe is closed in the
// parent. If any step fails, everything created so far is released.
//
// The parent's ends of pipes are available on the Child. The caller must
// eventually call Wait, Output or WaitWithOutput on it to release the
// process.
func (c *Cmd) Spawn() (*Child, error) {
	log := c.logger()
	env := c.Environ()
	dir, err := c.workDir()
	if err != nil {
		c.discardStdio()
		return nil, err
	}
	path, err := c.programPath(env, dir)
	if err != nil {
		c.discardStdio()
		return nil, err
	}
	argv := append([]string{c.program}, c.args...)

	lockSpawn()
	defer unlockSpawn()

	streams := [...]Stdio{c.stdin, c.stdout, c.stderr}
	var stdio [3]resolved
	for i, s := range streams {
		r, err := s.resolve(i, log)
		if err != nil {
			releaseStdio(stdio[:i])
			for _, rest := range streams[i+1:] {
				rest.discard()
			}
			return nil, err
		}
		stdio[i] = r
	}

	proc, err := startProcess(path, argv, env, dir, &stdio)
	var closeErr error
	for i := range stdio {
		closeErr = errors.Join(closeErr, stdio[i].closeChildSide())
	}
	if err != nil {
		releaseStdio(stdio[:])
		return nil, newError(SpawnError, "spawn", c.program, err)
	}
	if closeErr != nil {
		log.Debug().Err(closeErr).Str("program", c.program).Msg("closing child side of stdio")
	}

	child := newChild(c.program, proc, &stdio, log)
	log.Debug().
		Str("program", path).
		Int("pid", proc.id()).
		Stringer("stdin", c.stdin).
		Stringer("stdout", c.stdout).
		Stringer("stderr", c.stderr).
		Msg("spawned child")
	return child, nil
}

// Status runs the command with standard output and standard error
// inherited, waits for it and returns its exit status. Standard input is
// connected as configured. An endpoint given to Stdout or Stderr through
// From is closed unused.
func (c *Cmd) Status() (ExitStatus, error) {
	cc := *c
	cc.stdout.discard()
	cc.stderr.discard()
	cc.stdout, cc.stderr = Inherit(), Inherit()
	child, err := cc.Spawn()
	if err != nil {
		return ExitStatus{}, err
	}
	return child.Wait()
}

// Output runs the command with standard output and standard error piped,
// collects both and waits for it. Standard input is connected as
// configured. An endpoint given to Stdout or Stderr through From is closed
// unused.
func (c *Cmd) Output() (*Output, error) {
	cc := *c
	cc.stdout.discard()
	cc.stderr.discard()
	cc.stdout, cc.stderr = Pipe(), Pipe()
	child, err := cc.Spawn()
	if err != nil {
		return nil, err
	}
	return child.WaitWithOutput()
}

func (c *Cmd) logger() zerolog.Logger {
	if c.log != nil {
		return *c.log
	}
	return packageLogger()
}

// workDir expands and checks the configured working directory.
func (c *Cmd) workDir() (string, error) {
	if c.dir == "" {
		return "", nil
	}
	dir, err := homedir.Expand(c.dir)
	if err != nil {
		return "", newError(ConfigurationError, "chdir", c.dir, err)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return "", newError(ConfigurationError, "chdir", c.dir, err)
	}
	if !fi.IsDir() {
		return "", newError(ConfigurationError, "chdir", c.dir, fmt.Errorf("%s is not a directory", dir))
	}
	return dir, nil
}

// programPath resolves the program to the file that will be executed. A
// bare name is searched on the PATH the child will see, falling back to the
// parent's; a path relative to the working directory is made absolute.
func (c *Cmd) programPath(env []string, dir string) (string, error) {
	if c.program == "" {
		return "", newError(ConfigurationError, "lookpath", c.program, errors.New("empty program name"))
	}
	if filepath.Base(c.program) == c.program {
		pathEnv, ok := lookupEnv(env, "PATH")
		if !ok {
			pathEnv = os.Getenv("PATH")
		}
		return lookPath(c.program, pathEnv)
	}
	path := c.program
	if dir != "" && !filepath.IsAbs(path) {
		abs, err := filepath.Abs(filepath.Join(dir, path))
		if err != nil {
			return "", newError(ConfigurationError, "lookpath", c.program, err)
		}
		path = abs
	}
	return lookPath(path, "")
}

// discardStdio closes the endpoints handed to c through From when the spawn
// fails before they are attached.
func (c *Cmd) discardStdio() {
	for _, s := range [...]Stdio{c.stdin, c.stdout, c.stderr} {
		s.discard()
	}
}

func releaseStdio(stdio []resolved) {
	for i := range stdio {
		stdio[i].release()
	}
}
