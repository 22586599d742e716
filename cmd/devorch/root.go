package main

import (
	"io"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	out        io.Writer
	errOut     io.Writer
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:     "devorch",
		Version: Version + " (" + Commit + ")",
		Short:   "Run role-based development workflows against a git repository",
		Long: `devorch turns a development goal into a task plan, lets specialized roles
(architect, implementer, tester, documenter, reviewer) propose file changes,
applies them on a fresh branch and commits the result.

Every run is recorded under the runs directory with its state, plan, role
outputs, execution log and a markdown report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file (default devorch.yaml)")

	cmd.AddCommand(
		newRunCmd(opts),
		newStatusCmd(opts),
		newListCmd(opts),
		newReportCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}
