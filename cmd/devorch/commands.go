package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Strob0t/devorch/internal/domain/run"
	"github.com/Strob0t/devorch/internal/service"
)

const (
	goalColumn = 50
	redacted   = "********"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var req service.RunRequest

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Plan and execute a goal against a repository",
		Example: `  devorch run --repo ./myproject --goal "Add healthcheck endpoint"
  devorch run --repo . --goal "fix login bug" --mode phased
  devorch run --repo . --goal "add billing feature" --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			runner, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}
			res, err := runner.Execute(cmd.Context(), req)
			if res != nil {
				printResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&req.RepoPath, "repo", "r", "", "path to the git repository (required)")
	cmd.Flags().StringVarP(&req.Goal, "goal", "g", "", "development goal (required)")
	cmd.Flags().StringVarP(&req.Mode, "mode", "m", "", "execution mode: linear or phased (default from config)")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "plan only: no branch, no changes, no commit")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("goal")
	return cmd
}

func printResult(w io.Writer, res *service.RunResult) {
	s := newStyler(w)
	r := res.Run

	fmt.Fprintln(w, s.header("Run "+r.ID))
	row := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %s %s\n", s.label(fmt.Sprintf("%-8s", label)), value)
		}
	}
	row("Status", s.status(r.Status))
	row("Branch", r.BranchName)
	if res.Plan != nil {
		row("Tasks", fmt.Sprint(len(res.Plan.Tasks)))
	}
	if len(res.Applied) > 0 {
		row("Files", strings.Join(res.Applied, ", "))
	}
	row("Commit", res.Commit)
	row("Report", res.ReportPath)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s %s\n", s.render(statusErr, "error"), e)
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status [run_id]",
		Short: "Show one run, or the most recent runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			q := service.NewQueryService(a.store, a.log)

			if len(args) == 1 {
				r, err := q.Status(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printRun(cmd.OutOrStdout(), r)
				return nil
			}
			runs, err := q.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", service.DefaultRecent, "number of recent runs to show")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every recorded run, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := service.NewQueryService(a.store, a.log).List(cmd.Context())
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), runs)
			return nil
		},
	}
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report <run_id>",
		Short: "Print the markdown report of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			md, err := service.NewQueryService(a.store, a.log).Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), md)
			return err
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			shown := *cfg
			if shown.LiteLLM.MasterKey != "" {
				shown.LiteLLM.MasterKey = redacted
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(shown); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

func printSummaries(w io.Writer, runs []run.Summary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	s := newStyler(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, s.header("RUN ID")+"\t"+s.header("STATUS")+"\t"+s.header("CREATED")+"\t"+s.header("ERRORS")+"\t"+s.header("GOAL"))
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			r.ID, s.status(r.Status), r.CreatedAt.Local().Format(time.DateTime), r.ErrorCount, shorten(r.Goal, goalColumn))
	}
	_ = tw.Flush()
}

func printRun(w io.Writer, r *run.Run) {
	s := newStyler(w)
	fmt.Fprintln(w, s.header("Run "+r.ID))
	fmt.Fprintf(w, "  %s %s\n", s.label("Goal:   "), r.Goal)
	fmt.Fprintf(w, "  %s %s\n", s.label("Repo:   "), r.RepoPath)
	fmt.Fprintf(w, "  %s %s\n", s.label("Status: "), s.status(r.Status))
	if r.BranchName != "" {
		fmt.Fprintf(w, "  %s %s\n", s.label("Branch: "), r.BranchName)
	}
	fmt.Fprintf(w, "  %s %s\n", s.label("Created:"), r.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  %s %s\n", s.label("Updated:"), r.UpdatedAt.Local().Format(time.DateTime))
	if len(r.Tasks) > 0 {
		fmt.Fprintf(w, "  %s %s\n", s.label("Tasks:  "), strings.Join(r.Tasks, ", "))
	}
	for _, name := range slices.Sorted(maps.Keys(r.Artifacts)) {
		fmt.Fprintf(w, "  %s %s\n", s.label(fmt.Sprintf("%-8s", name+":")), r.Artifacts[name])
	}
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, s.header("Errors"))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
