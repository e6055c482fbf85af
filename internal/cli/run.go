package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spawnexec/procio"
)

type runOptions struct {
	capture  bool
	dir      string
	env      []string
	clearEnv bool
	stdin    string
}

func newRunCmd(ctx *context) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [flags] -- program [args...]",
		Short: "Run one program and report its exit status",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdin, err := stdioFromName(opts.stdin)
			if err != nil {
				return err
			}
			c := procio.Command(args[0], args[1:]...).
				CurrentDir(opts.dir).
				Stdin(stdin)
			if opts.clearEnv {
				c.EnvClear()
			}
			if err := applyEnv(c, opts.env); err != nil {
				return err
			}
			if opts.capture {
				return runCaptured(cmd, ctx, c)
			}
			return runInherited(cmd, ctx, c)
		},
	}
	cmd.Flags().BoolVar(&opts.capture, "capture", false, "Capture stdout and stderr and print them after the program exits")
	cmd.Flags().StringVarP(&opts.dir, "dir", "C", "", "Working directory of the program")
	cmd.Flags().StringArrayVarP(&opts.env, "env", "e", nil, "Set an environment variable (KEY=VALUE), may be repeated")
	cmd.Flags().BoolVar(&opts.clearEnv, "clear-env", false, "Start the program with an empty environment")
	cmd.Flags().StringVar(&opts.stdin, "stdin", "inherit", "Standard input of the program (inherit, null)")
	return cmd
}

func runInherited(cmd *cobra.Command, ctx *context, c *procio.Cmd) error {
	child, err := c.Stdout(procio.Inherit()).Stderr(procio.Inherit()).Spawn()
	if err != nil {
		return err
	}
	defer killOnDone(cmd.Context(), child, ctx.log)()

	status, err := child.Wait()
	if err != nil {
		return err
	}
	ctx.log.Info().Str("program", c.String()).Stringer("status", status).Msg("finished")
	return exitFor(status)
}

func runCaptured(cmd *cobra.Command, ctx *context, c *procio.Cmd) error {
	child, err := c.Stdout(procio.Pipe()).Stderr(procio.Pipe()).Spawn()
	if err != nil {
		return err
	}
	defer killOnDone(cmd.Context(), child, ctx.log)()

	out, err := child.WaitWithOutput()
	if err != nil {
		return err
	}
	writeOutput(cmd.OutOrStdout(), out)
	return exitFor(out.Status)
}

func writeOutput(w io.Writer, out *procio.Output) {
	fmt.Fprintln(w, "--- stdout ---")
	writeSection(w, out.Stdout)
	fmt.Fprintln(w, "--- stderr ---")
	writeSection(w, out.Stderr)
	fmt.Fprintf(w, "--- %s ---\n", out.Status)
}

func writeSection(w io.Writer, b []byte) {
	if len(b) == 0 {
		return
	}
	w.Write(b)
	if b[len(b)-1] != '\n' {
		fmt.Fprintln(w)
	}
}

// applyEnv sets each KEY=VALUE entry on c.
func applyEnv(c *procio.Cmd, env []string) error {
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid environment entry %q: want KEY=VALUE", kv)
		}
		c.Env(k, v)
	}
	return nil
}

func stdioFromName(name string) (procio.Stdio, error) {
	switch strings.ToLower(name) {
	case "", "inherit":
		return procio.Inherit(), nil
	case "null":
		return procio.Null(), nil
	}
	return procio.Stdio{}, fmt.Errorf("unknown stdio %q: want inherit or null", name)
}
