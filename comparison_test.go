//go:build unix

package procio_test

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/spawnexec/procio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Comparison benchmarks between procio and os/exec

// BenchmarkProcioStatusTrue benchmarks procio.Command("true").Status()
func BenchmarkProcioStatusTrue(b *testing.B) {
	for i := 0; i < b.N; i++ {
		procio.Command("true").Status()
	}
}

// BenchmarkOsExecRunTrue benchmarks exec.Command("true").Run()
func BenchmarkOsExecRunTrue(b *testing.B) {
	for i := 0; i < b.N; i++ {
		exec.Command("true").Run()
	}
}

// BenchmarkProcioOutput benchmarks procio.Command("echo").Output()
func BenchmarkProcioOutput(b *testing.B) {
	for i := 0; i < b.N; i++ {
		procio.Command("echo", "hello").Output()
	}
}

// BenchmarkOsExecOutput benchmarks exec.Command("echo").Output()
func BenchmarkOsExecOutput(b *testing.B) {
	for i := 0; i < b.N; i++ {
		exec.Command("echo", "hello").Output()
	}
}

// BenchmarkProcioWithStdin benchmarks procio with a piped stdin
func BenchmarkProcioWithStdin(b *testing.B) {
	input := []byte("hello world")
	for i := 0; i < b.N; i++ {
		child, err := procio.Command("cat").Stdin(procio.Pipe()).Stdout(procio.Pipe()).Spawn()
		if err != nil {
			b.Fatal(err)
		}
		child.Stdin.Write(input)
		child.WaitWithOutput()
	}
}

// BenchmarkOsExecWithStdin benchmarks os/exec with stdin
func BenchmarkOsExecWithStdin(b *testing.B) {
	input := "hello world"
	for i := 0; i < b.N; i++ {
		cmd := exec.Command("cat")
		cmd.Stdin = strings.NewReader(input)
		cmd.Output()
	}
}

// BenchmarkProcioWithEnv benchmarks procio with custom environment
func BenchmarkProcioWithEnv(b *testing.B) {
	for i := 0; i < b.N; i++ {
		procio.Command("true").EnvClear().Env("FOO", "bar").Env("BAZ", "qux").Status()
	}
}

// BenchmarkOsExecWithEnv benchmarks os/exec with custom environment
func BenchmarkOsExecWithEnv(b *testing.B) {
	env := []string{"FOO=bar", "BAZ=qux"}
	for i := 0; i < b.N; i++ {
		cmd := exec.Command("true")
		cmd.Env = env
		cmd.Run()
	}
}

// BenchmarkProcioChain benchmarks a two stage pipeline
func BenchmarkProcioChain(b *testing.B) {
	for i := 0; i < b.N; i++ {
		producer, err := procio.Command("echo", "hello").Stdout(procio.Pipe()).Spawn()
		if err != nil {
			b.Fatal(err)
		}
		procio.Command("cat").Stdin(procio.From(producer.Stdout)).Output()
		producer.Wait()
	}
}

// BenchmarkOsExecChain benchmarks a two stage pipeline through StdoutPipe
func BenchmarkOsExecChain(b *testing.B) {
	for i := 0; i < b.N; i++ {
		producer := exec.Command("echo", "hello")
		pipe, err := producer.StdoutPipe()
		if err != nil {
			b.Fatal(err)
		}
		producer.Start()
		consumer := exec.Command("cat")
		consumer.Stdin = pipe
		consumer.Output()
		producer.Wait()
	}
}

// TestCompareOutputWithOsExec verifies that procio produces identical output to os/exec
func TestCompareOutputWithOsExec(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"echo hello", []string{"echo", "hello"}},
		{"echo multiple args", []string{"echo", "hello", "world", "foo", "bar"}},
		{"printf", []string{"printf", "%s %d\n", "test", "42"}},
		{"env var", []string{"sh", "-c", "echo $HOME"}},
		{"exit status zero", []string{"true"}},
		{"stderr", []string{"sh", "-c", "echo out; echo err >&2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := procio.Command(tt.args[0], tt.args[1:]...).Output()
			require.NoError(t, err)

			var osErr bytes.Buffer
			osCmd := exec.Command(tt.args[0], tt.args[1:]...)
			osCmd.Stderr = &osErr
			osOut, err := osCmd.Output()
			require.NoError(t, err)

			assert.Equal(t, string(osOut), string(out.Stdout))
			assert.Equal(t, osErr.String(), string(out.Stderr))
		})
	}
}

// TestCompareExitCodeWithOsExec verifies that exit codes match
func TestCompareExitCodeWithOsExec(t *testing.T) {
	for _, code := range []string{"0", "1", "42", "255"} {
		t.Run("exit "+code, func(t *testing.T) {
			status, err := procio.Command("sh", "-c", "exit "+code).Status()
			require.NoError(t, err)

			osErr := exec.Command("sh", "-c", "exit "+code).Run()
			osCode := 0
			var ee *exec.ExitError
			if errors.As(osErr, &ee) {
				osCode = ee.ExitCode()
			} else {
				require.NoError(t, osErr)
			}

			assert.Equal(t, osCode, status.ExitCode())
			assert.Equal(t, osErr == nil, status.Success())
		})
	}
}
