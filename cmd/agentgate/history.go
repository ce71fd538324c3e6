package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentgate/internal/config"
	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/internal/state"
)

var (
	historyLimit     int
	historyJSON      bool
	historyOlderThan time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past runs",
	Long: `Show runs recorded in the history database (default .agentgate/state.db).

  agentgate history                 # most recent runs
  agentgate history show <run-id>   # one run with its tasks
  agentgate history prune --older-than 720h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistoryForRead()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if historyJSON {
			return writeIndented(cmd.OutOrStdout(), runs)
		}
		return printRuns(cmd.OutOrStdout(), runs)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistoryForRead()
		if err != nil {
			return err
		}
		defer db.Close()

		run, err := db.GetRun(args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no run with id %s", args[0])
		}
		tasks, err := db.ListTasks(run.ID)
		if err != nil {
			return err
		}
		if historyJSON {
			return writeIndented(cmd.OutOrStdout(), struct {
				*state.Run
				Tasks []state.TaskRecord `json:"tasks"`
			}{run, tasks})
		}
		printRun(cmd.OutOrStdout(), run, tasks)
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistoryForRead()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.PurgeOldRuns(historyOlderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s) older than %s\n", n, historyOlderThan)
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "Print as JSON")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show (0 for all)")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "Delete runs started before this age")
	historyCmd.AddCommand(historyShowCmd, historyPruneCmd)
}

// openHistory opens the history database for recording. It returns nil when
// history is disabled or the database cannot be opened; runs then go
// unrecorded rather than failing.
func openHistory(cfg *config.Config, logger *logging.Logger) *state.DB {
	if !cfg.History.Enabled {
		return nil
	}
	db, err := state.OpenMigrated(cfg.History.Path)
	if err != nil {
		logger.Infof("history disabled: %v", err)
		return nil
	}
	if marked, err := db.MarkInterrupted(); err != nil {
		logger.Infof("mark interrupted runs: %v", err)
	} else if len(marked) > 0 {
		logger.Infof("marked %d run(s) interrupted", len(marked))
	}
	return db
}

// openHistoryForRead opens the history database for the history commands.
func openHistoryForRead() (*state.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.History.Enabled {
		return nil, errors.New("history is disabled (set history.enabled to true)")
	}
	db, err := state.OpenMigrated(cfg.History.Path)
	if err != nil {
		return nil, err
	}
	if _, err := db.MarkInterrupted(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func statusColor(s state.RunStatus) string {
	switch s {
	case state.RunCompleted:
		return color.GreenString(string(s))
	case state.RunFailed, state.RunInterrupted:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

// printRuns renders a run table.
func printRuns(w io.Writer, runs []state.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tITER\tORIGIN\tINPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), statusColor(r.Status),
			r.Iterations, r.Origin, truncateLine(r.Input, 60))
	}
	return tw.Flush()
}

// printRun renders one run with its tasks grouped by iteration.
func printRun(w io.Writer, r *state.Run, tasks []state.TaskRecord) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %s (%s)\n", bold("Run"), r.ID, statusColor(r.Status))
	fmt.Fprintf(w, "%s %s\n", bold("Question:"), r.Input)
	fmt.Fprintf(w, "%s %s", bold("Started:"), r.StartedAt.Local().Format(time.RFC3339))
	if r.FinishedAt != nil {
		fmt.Fprintf(w, " (took %s)", r.FinishedAt.Sub(r.StartedAt))
	}
	fmt.Fprintln(w)
	if r.Output != "" {
		fmt.Fprintf(w, "%s\n%s\n", bold("Answer:"), r.Output)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "%s %s\n", bold("Error:"), r.Error)
	}

	iteration := -1
	for _, t := range tasks {
		if t.Iteration != iteration {
			iteration = t.Iteration
			fmt.Fprintf(w, "\n%s\n", color.CyanString("iteration %d", iteration+1))
		}
		action := t.Action
		if action == "" {
			action = t.Tool
		}
		fmt.Fprintf(w, "  %d. %-10s %s", t.TaskID, t.State, action)
		if t.Detail != "" {
			fmt.Fprintf(w, "  %s", t.Detail)
		}
		fmt.Fprintln(w)
	}
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
