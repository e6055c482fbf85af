package procio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCommandString tests the String method
func TestCommandString(t *testing.T) {
	cmd := Command("echo", "hello").Arg("big").Args("wide", "world")
	assert.Equal(t, "echo hello big wide world", cmd.String())
	assert.Equal(t, "echo", cmd.Program())
}

// TestArgsOrder tests that Arg and Args keep insertion order
func TestArgsOrder(t *testing.T) {
	out, err := helperCommand("lines").Arg("a").Args("b", "c").Arg("d e").Output()
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\nd e\n", string(out.Stdout))
}

// TestStatus tests that Status reports exit codes
func TestStatus(t *testing.T) {
	for _, code := range []int{0, 1, 3, 42} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			status, err := helperCommand("exit", fmt.Sprint(code)).Status()
			require.NoError(t, err)
			got, ok := status.Code()
			require.True(t, ok)
			assert.Equal(t, code, got)
			assert.Equal(t, code, status.ExitCode())
			assert.Equal(t, code == 0, status.Success())
		})
	}
}

// TestOutput tests Output on a program writing only to stdout
func TestOutput(t *testing.T) {
	out, err := helperCommand("echo", "hello", "world").Output()
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", string(out.Stdout))
	assert.Empty(t, out.Stderr)
	assert.True(t, out.Status.Success())
}

// TestOutputStderr tests Output on a program writing only to stderr
func TestOutputStderr(t *testing.T) {
	out, err := helperCommand("stderr", "oops").Output()
	require.NoError(t, err)
	assert.Empty(t, out.Stdout)
	assert.Equal(t, "oops", string(out.Stderr))
}

// TestOutputBoth tests Output on a program writing to both streams
func TestOutputBoth(t *testing.T) {
	out, err := helperCommand("both", "to out", "to err").Output()
	require.NoError(t, err)
	assert.Equal(t, "to out", string(out.Stdout))
	assert.Equal(t, "to err", string(out.Stderr))
}

// TestOutputLarge tests that output larger than a pipe buffer is captured whole
func TestOutputLarge(t *testing.T) {
	type res struct {
		out *Output
		err error
	}
	r := result(t, 30*time.Second, func() res {
		out, err := helperCommand("stdout-bytes", "100000").Output()
		return res{out, err}
	})
	require.NoError(t, r.err)
	assert.Len(t, r.out.Stdout, 100000)
	assert.Empty(t, r.out.Stderr)
}

// TestWaitWithOutputDrainsBothStreams tests that a child filling both pipes
// at once is captured without deadlock or truncation
func TestWaitWithOutputDrainsBothStreams(t *testing.T) {
	const n = 1 << 20
	child, err := helperCommand("flood", fmt.Sprint(n)).
		Stdout(Pipe()).
		Stderr(Pipe()).
		Spawn()
	require.NoError(t, err)

	type res struct {
		out *Output
		err error
	}
	r := result(t, time.Minute, func() res {
		out, err := child.WaitWithOutput()
		return res{out, err}
	})
	require.NoError(t, r.err)
	assert.Len(t, r.out.Stdout, n)
	assert.Len(t, r.out.Stderr, n)
	assert.Equal(t, strings.Repeat("o", n), string(r.out.Stdout))
	assert.True(t, r.out.Status.Success())
}

// TestChain tests feeding one child's stdout into another child's stdin
func TestChain(t *testing.T) {
	producer, err := helperCommand("lines", "hello", "from", "out").Stdout(Pipe()).Spawn()
	require.NoError(t, err)
	require.NotNil(t, producer.Stdout)

	consumer, err := helperCommand("readlines", "3").
		Stdin(From(producer.Stdout)).
		Stdout(Pipe()).
		Stderr(Pipe()).
		Spawn()
	require.NoError(t, err)

	out, err := consumer.WaitWithOutput()
	require.NoError(t, err)
	status, err := producer.Wait()
	require.NoError(t, err)

	assert.True(t, status.Success())
	assert.Equal(t, "hellofromout", string(out.Stdout))
	assert.Empty(t, out.Stderr)
	assert.True(t, out.Status.Success())
}

// TestChainIntoStdin tests connecting a child's stdout to another child's
// stdin endpoint
func TestChainIntoStdin(t *testing.T) {
	consumer, err := helperCommand("cat").Stdin(Pipe()).Stdout(Pipe()).Spawn()
	require.NoError(t, err)

	producer, err := helperCommand("echo", "reversed").Stdout(From(consumer.Stdin)).Spawn()
	require.NoError(t, err)
	status, err := producer.Wait()
	require.NoError(t, err)
	assert.True(t, status.Success())

	out, err := consumer.WaitWithOutput()
	require.NoError(t, err)
	assert.Equal(t, "reversed\n", string(out.Stdout))
}

// TestRoundTrip tests writing lines to a child and reading them back
func TestRoundTrip(t *testing.T) {
	child, err := helperCommand("cat").Stdin(Pipe()).Stdout(Pipe()).Spawn()
	require.NoError(t, err)

	var want strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&want, "line %d\n", i)
	}
	writeErr := make(chan error, 1)
	go func() {
		_, err := child.Stdin.Write([]byte(want.String()))
		if cerr := child.Stdin.Close(); err == nil {
			err = cerr
		}
		writeErr <- err
	}()

	got, err := child.Stdout.ReadToString()
	require.NoError(t, err)
	require.NoError(t, <-writeErr)
	assert.Equal(t, want.String(), got)

	status, err := child.Wait()
	require.NoError(t, err)
	assert.True(t, status.Success())
}

// TestKill tests that a killed child can be waited promptly
func TestKill(t *testing.T) {
	child, err := helperCommand("sleep", "1m").Spawn()
	require.NoError(t, err)
	assert.Positive(t, child.ID())

	require.NoError(t, child.Kill())
	type res struct {
		status ExitStatus
		err    error
	}
	r := result(t, 10*time.Second, func() res {
		status, err := child.Wait()
		return res{status, err}
	})
	require.NoError(t, r.err)
	assert.False(t, r.status.Success())
}

// TestKillAfterWait tests that Kill fails once the child was reaped
func TestKillAfterWait(t *testing.T) {
	child, err := helperCommand("exit", "0").Spawn()
	require.NoError(t, err)
	_, err = child.Wait()
	require.NoError(t, err)

	err = child.Kill()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidUse)
	assert.Equal(t, InvalidUse, KindOf(err))
}

// TestWaitTwice tests that a second Wait returns the cached status
func TestWaitTwice(t *testing.T) {
	child, err := helperCommand("exit", "7").Spawn()
	require.NoError(t, err)

	first, err := child.Wait()
	require.NoError(t, err)
	second, err := child.Wait()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 7, second.ExitCode())
}

// TestTryWait tests polling a child for completion
func TestTryWait(t *testing.T) {
	child, err := helperCommand("sleep", "1m").Spawn()
	require.NoError(t, err)

	_, exited, err := child.TryWait()
	require.NoError(t, err)
	assert.False(t, exited)

	require.NoError(t, child.Kill())
	var status ExitStatus
	require.Eventually(t, func() bool {
		status, exited, err = child.TryWait()
		return err == nil && exited
	}, 10*time.Second, 10*time.Millisecond)
	assert.False(t, status.Success())

	again, err := child.Wait()
	require.NoError(t, err)
	assert.Equal(t, status, again)
}

// TestFromConsumesEndpoint tests that an endpoint handed to From is unusable
func TestFromConsumesEndpoint(t *testing.T) {
	child, err := helperCommand("echo", "hi").Stdout(Pipe()).Spawn()
	require.NoError(t, err)
	stdout := child.Stdout

	s := From(stdout)
	_, err = stdout.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrInvalidUse)
	_, err = stdout.ReadToEnd()
	assert.ErrorIs(t, err, ErrInvalidUse)

	_, err = helperCommand("cat").Stdin(From(stdout)).Spawn()
	assert.ErrorIs(t, err, ErrInvalidUse)

	out, err := helperCommand("cat").Stdin(s).Output()
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(out.Stdout))

	_, err = child.Wait()
	require.NoError(t, err)
}

// TestFromUsedOnce tests that a From stdio cannot serve two spawns
func TestFromUsedOnce(t *testing.T) {
	child, err := helperCommand("echo", "once").Stdout(Pipe()).Spawn()
	require.NoError(t, err)
	cmd := helperCommand("cat").Stdin(From(child.Stdout))

	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Equal(t, "once\n", string(out.Stdout))

	_, err = cmd.Output()
	assert.ErrorIs(t, err, ErrInvalidUse)

	_, err = child.Wait()
	require.NoError(t, err)
}

// TestFromWrongDirection tests that a stdin endpoint cannot feed a stdin
func TestFromWrongDirection(t *testing.T) {
	child, err := helperCommand("cat").Stdin(Pipe()).Spawn()
	require.NoError(t, err)

	_, err = helperCommand("cat").Stdin(From(child.Stdin)).Spawn()
	assert.ErrorIs(t, err, ErrInvalidUse)

	_, err = child.Wait()
	require.NoError(t, err)
}

// TestFromNil tests From with missing endpoints
func TestFromNil(t *testing.T) {
	_, err := helperCommand("cat").Stdin(From(nil)).Spawn()
	assert.ErrorIs(t, err, ErrInvalidUse)

	var stdout *ChildStdout
	_, err = helperCommand("cat").Stdin(From(stdout)).Spawn()
	assert.ErrorIs(t, err, ErrInvalidUse)
}

// TestNullStdin tests that a null stdin reads as empty
func TestNullStdin(t *testing.T) {
	out, err := helperCommand("cat").Stdin(Null()).Output()
	require.NoError(t, err)
	assert.Empty(t, out.Stdout)
	assert.True(t, out.Status.Success())
}

// TestNullStdout tests that a null stdout leaves no endpoint
func TestNullStdout(t *testing.T) {
	child, err := helperCommand("echo", "discarded").Stdout(Null()).Stderr(Null()).Spawn()
	require.NoError(t, err)
	assert.Nil(t, child.Stdin)
	assert.Nil(t, child.Stdout)
	assert.Nil(t, child.Stderr)

	out, err := child.WaitWithOutput()
	require.NoError(t, err)
	assert.Empty(t, out.Stdout)
	assert.True(t, out.Status.Success())
}

// TestEnv tests that environment variables overlay the parent's
func TestEnv(t *testing.T) {
	t.Setenv("PROCIO_PARENT", "parent")
	out, err := helperCommand("getenv", "PROCIO_PARENT", "PROCIO_CHILD").
		Env("PROCIO_CHILD", "child").
		Output()
	require.NoError(t, err)
	assert.Equal(t, "PROCIO_PARENT=parent\nPROCIO_CHILD=child\n", string(out.Stdout))
}

// TestEnvLastWins tests that the last value of a duplicate key wins
func TestEnvLastWins(t *testing.T) {
	t.Setenv("PROCIO_DUP", "parent")
	out, err := helperCommand("getenv", "PROCIO_DUP").
		Env("PROCIO_DUP", "first").
		Env("PROCIO_DUP", "second").
		Output()
	require.NoError(t, err)
	assert.Equal(t, "PROCIO_DUP=second\n", string(out.Stdout))
}

// TestEnvClear tests that a cleared environment only holds explicit variables
func TestEnvClear(t *testing.T) {
	t.Setenv("PROCIO_PARENT", "parent")
	out, err := helperEnvOnly("getenv", "PROCIO_PARENT", "PROCIO_CHILD").
		Env("PROCIO_CHILD", "child").
		Output()
	require.NoError(t, err)
	assert.Equal(t, "PROCIO_PARENT unset\nPROCIO_CHILD=child\n", string(out.Stdout))
}

// TestEnvRemove tests removing an inherited variable
func TestEnvRemove(t *testing.T) {
	t.Setenv("PROCIO_GONE", "parent")
	out, err := helperCommand("getenv", "PROCIO_GONE").EnvRemove("PROCIO_GONE").Output()
	require.NoError(t, err)
	assert.Equal(t, "PROCIO_GONE unset\n", string(out.Stdout))
}

// TestCurrentDir tests that the working directory is set correctly
func TestCurrentDir(t *testing.T) {
	dir := t.TempDir()
	out, err := helperCommand("pwd").CurrentDir(dir).Output()
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(string(out.Stdout))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestCurrentDirMissing tests that a missing directory fails before spawn
func TestCurrentDirMissing(t *testing.T) {
	_, err := helperCommand("pwd").CurrentDir(filepath.Join(t.TempDir(), "missing")).Spawn()
	require.Error(t, err)
	assert.Equal(t, ConfigurationError, KindOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestProgramNotFound tests spawning programs that do not exist
func TestProgramNotFound(t *testing.T) {
	_, err := Command("this-command-definitely-does-not-exist-xyz123").Spawn()
	require.Error(t, err)
	assert.Equal(t, ConfigurationError, KindOf(err))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Command(filepath.Join(t.TempDir(), "missing-program")).Status()
	require.Error(t, err)
	assert.Equal(t, ConfigurationError, KindOf(err))
}

// TestLookPathNotFound tests LookPath with non-existent command
func TestLookPathNotFound(t *testing.T) {
	_, err := LookPath("this-command-definitely-does-not-exist-xyz123")
	require.Error(t, err)
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "lookpath", perr.Op)
}

// TestStdinCloseTwice tests that closing an endpoint twice is harmless
func TestStdinCloseTwice(t *testing.T) {
	child, err := helperCommand("cat").Stdin(Pipe()).Spawn()
	require.NoError(t, err)

	require.NoError(t, child.Stdin.Close())
	require.NoError(t, child.Stdin.Close())
	_, err = child.Stdin.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrInvalidUse)

	_, err = child.Wait()
	require.NoError(t, err)
}

// TestReadAfterWait tests that output buffered in the pipe survives Wait
func TestReadAfterWait(t *testing.T) {
	child, err := helperCommand("echo", "buffered").Stdout(Pipe()).Spawn()
	require.NoError(t, err)

	_, err = child.Wait()
	require.NoError(t, err)
	got, err := child.Stdout.ReadToString()
	require.NoError(t, err)
	assert.Equal(t, "buffered\n", got)
	require.NoError(t, child.Close())
}

// TestStatusKeepsStdin tests that Status only overrides stdout and stderr
func TestStatusKeepsStdin(t *testing.T) {
	status, err := helperCommand("cat").Stdin(Null()).Stdout(Pipe()).Status()
	require.NoError(t, err)
	assert.True(t, status.Success())
}

// TestStatusClosesUnusedFrom tests that Status and Output close an endpoint
// handed to Stdout through From instead of keeping it open
func TestStatusClosesUnusedFrom(t *testing.T) {
	for _, tt := range []struct {
		name string
		run  func(*Cmd) error
	}{
		{"status", func(c *Cmd) error { _, err := c.Status(); return err }},
		{"output", func(c *Cmd) error { _, err := c.Output(); return err }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			consumer, err := helperCommand("cat").Stdin(Pipe()).Stdout(Pipe()).Spawn()
			require.NoError(t, err)

			s := From(consumer.Stdin)
			require.NoError(t, tt.run(helperCommand("exit", "0").Stdout(s)))

			type res struct {
				out *Output
				err error
			}
			r := result(t, 10*time.Second, func() res {
				out, err := consumer.WaitWithOutput()
				return res{out, err}
			})
			require.NoError(t, r.err)
			assert.Empty(t, r.out.Stdout)
			assert.True(t, r.out.Status.Success())

			_, err = helperCommand("exit", "0").Stdout(s).Spawn()
			assert.ErrorIs(t, err, ErrInvalidUse)
		})
	}
}

// TestKillDuringWait tests that Kill from one goroutine ends a Wait blocked
// in another
func TestKillDuringWait(t *testing.T) {
	child, err := helperCommand("sleep", "1m").Spawn()
	require.NoError(t, err)

	type res struct {
		status ExitStatus
		err    error
	}
	waited := make(chan res, 1)
	go func() {
		status, err := child.Wait()
		waited <- res{status, err}
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, child.Kill())

	select {
	case r := <-waited:
		require.NoError(t, r.err)
		assert.False(t, r.status.Success())
		again, err := child.Wait()
		require.NoError(t, err)
		assert.Equal(t, r.status, again)
	case <-time.After(10 * time.Second):
		t.Fatal("Wait still blocked after Kill")
	}

	assert.ErrorIs(t, child.Kill(), ErrInvalidUse)
}

// TestTryWaitDuringWait tests that TryWait does not block or reap while
// another goroutine is waiting
func TestTryWaitDuringWait(t *testing.T) {
	child, err := helperCommand("sleep", "1m").Spawn()
	require.NoError(t, err)

	type res struct {
		status ExitStatus
		err    error
	}
	waited := make(chan res, 1)
	go func() {
		status, err := child.Wait()
		waited <- res{status, err}
	}()
	time.Sleep(100 * time.Millisecond)

	type try struct {
		exited bool
		err    error
	}
	tr := result(t, 5*time.Second, func() try {
		_, exited, err := child.TryWait()
		return try{exited, err}
	})
	require.NoError(t, tr.err)
	assert.False(t, tr.exited)

	require.NoError(t, child.Kill())
	var r res
	select {
	case r = <-waited:
	case <-time.After(10 * time.Second):
		t.Fatal("Wait still blocked after Kill")
	}
	require.NoError(t, r.err)

	status, exited, err := child.TryWait()
	require.NoError(t, err)
	assert.True(t, exited)
	assert.Equal(t, r.status, status)
}

// TestFromReleasedOnFailedSpawn tests that a failed spawn still consumes a
// From stdio
func TestFromReleasedOnFailedSpawn(t *testing.T) {
	child, err := helperCommand("echo", "lost").Stdout(Pipe()).Spawn()
	require.NoError(t, err)
	s := From(child.Stdout)

	_, err = Command("this-command-definitely-does-not-exist-xyz123").Stdin(s).Spawn()
	assert.Equal(t, ConfigurationError, KindOf(err))

	_, err = helperCommand("cat").Stdin(s).Spawn()
	assert.ErrorIs(t, err, ErrInvalidUse)

	_, err = child.Wait()
	require.NoError(t, err)
}
