package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spawnexec/procio"
)

func newWhichCmd(ctx *context) *cobra.Command {
	return &cobra.Command{
		Use:   "which program...",
		Short: "Show the file each program name resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed bool
			for _, name := range args {
				path, err := procio.LookPath(name)
				if err != nil {
					ctx.log.Debug().Err(err).Str("program", name).Msg("lookup failed")
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					failed = true
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			if failed {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}
