package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/spawnexec/procio"
)

func newPipeCmd(ctx *context) *cobra.Command {
	var (
		capture  bool
		pipefail bool
	)
	cmd := &cobra.Command{
		Use:   "pipe",
		Short: "Run the pipeline from the configuration file",
		Long: "Spawn every stage of the configured pipeline with each stage's stdout\n" +
			"connected to the next stage's stdin, then wait for all of them.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ctx.cfg.Pipeline) == 0 {
				return errors.New("no pipeline stages configured")
			}
			p, err := startPipeline(ctx, ctx.cfg.Pipeline, capture)
			if err != nil {
				return err
			}
			for _, child := range p.children {
				defer killOnDone(cmd.Context(), child, ctx.log)()
			}

			res, err := p.wait()
			if err != nil {
				return err
			}
			if capture {
				writeOutput(cmd.OutOrStdout(), res.output)
			}
			writeReport(cmd.ErrOrStderr(), ctx.cfg.Pipeline, res.statuses)
			return exitFor(res.exitStatus(pipefail))
		},
	}
	cmd.Flags().BoolVar(&capture, "capture", false, "Capture the last stage's stdout and stderr")
	cmd.Flags().BoolVar(&pipefail, "pipefail", false, "Exit with the status of the first failing stage instead of the last stage")
	return cmd
}

type pipeline struct {
	children []*procio.Child
	capture  bool
}

type pipelineResult struct {
	statuses []procio.ExitStatus
	output   *procio.Output
}

// startPipeline spawns stages in order, feeding each one's stdout into the
// next one's stdin. If a stage fails to spawn, the stages already running are
// killed and reaped.
func startPipeline(ctx *context, stages []StageConfig, capture bool) (*pipeline, error) {
	p := &pipeline{capture: capture}
	for i, stage := range stages {
		c, err := stage.command()
		if err != nil {
			p.abort(ctx)
			return nil, fmt.Errorf("stage %s: %w", stage.label(i), err)
		}
		if i > 0 {
			c.Stdin(procio.From(p.children[i-1].Stdout))
		}
		switch {
		case i < len(stages)-1:
			c.Stdout(procio.Pipe())
		case capture:
			c.Stdout(procio.Pipe()).Stderr(procio.Pipe())
		}
		child, err := c.Spawn()
		if err != nil {
			p.abort(ctx)
			return nil, fmt.Errorf("stage %s: %w", stage.label(i), err)
		}
		ctx.log.Debug().Str("stage", stage.label(i)).Int("pid", child.ID()).Msg("stage started")
		p.children = append(p.children, child)
	}
	return p, nil
}

func (p *pipeline) abort(ctx *context) {
	for _, child := range p.children {
		if err := child.Kill(); err != nil {
			ctx.log.Debug().Err(err).Int("pid", child.ID()).Msg("kill stage")
		}
		child.Wait()
		child.Close()
	}
}

// wait waits for every stage at once so no stage blocks on a full pipe
// while an earlier one is being waited.
func (p *pipeline) wait() (*pipelineResult, error) {
	res := &pipelineResult{statuses: make([]procio.ExitStatus, len(p.children))}
	var g errgroup.Group
	for i, child := range p.children {
		if p.capture && i == len(p.children)-1 {
			g.Go(func() error {
				out, err := child.WaitWithOutput()
				if err != nil {
					return err
				}
				res.output = out
				res.statuses[i] = out.Status
				return nil
			})
			continue
		}
		g.Go(func() error {
			status, err := child.Wait()
			res.statuses[i] = status
			child.Close()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// exitStatus is the status of the last stage, or with pipefail that of the
// first stage that did not succeed.
func (r *pipelineResult) exitStatus(pipefail bool) procio.ExitStatus {
	if pipefail {
		for _, s := range r.statuses {
			if !s.Success() {
				return s
			}
		}
	}
	return r.statuses[len(r.statuses)-1]
}

func writeReport(w io.Writer, stages []StageConfig, statuses []procio.ExitStatus) {
	for i, s := range statuses {
		fmt.Fprintf(w, "%s: %s\n", stages[i].label(i), s)
	}
}
