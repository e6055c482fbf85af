package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/spawnexec/procio"
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	ctx := &context{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "procio",
		Short: "Spawn child processes and wire their standard streams",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&ctx.configFile, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newPipeCmd(ctx))
	root.AddCommand(newWhichCmd(ctx))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint. The process exits with the code of the
// child it ran, or 1 if procio itself failed.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		stop()
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

type context struct {
	configFile string
	logLevel   string

	cfg *Config
	log zerolog.Logger
}

// load reads the configuration and installs the logger it describes as the
// library logger.
func (c *context) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(c.configFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
		if err := cfg.Log.Validate(); err != nil {
			return err
		}
	}
	c.cfg = cfg
	c.log = newLogger(cfg.Log, cmd.ErrOrStderr())
	procio.SetLogger(c.log)
	return nil
}

// exitError carries a child's exit code out of a command without printing
// anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitFor maps a child's status to the error a command returns.
func exitFor(status procio.ExitStatus) error {
	if status.Success() {
		return nil
	}
	if code, ok := status.Code(); ok {
		return &exitError{code: code}
	}
	if sig, ok := status.Signal(); ok {
		return &exitError{code: 128 + int(sig)}
	}
	return &exitError{code: 1}
}

// killOnDone kills child once ctx is cancelled. The returned function stops
// the watch.
func killOnDone(ctx stdcontext.Context, child *procio.Child, log zerolog.Logger) func() bool {
	return stdcontext.AfterFunc(ctx, func() {
		if err := child.Kill(); err != nil {
			log.Debug().Err(err).Int("pid", child.ID()).Msg("kill on cancel")
		}
	})
}
