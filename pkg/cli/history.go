package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dshills/flowmod/pkg/domain/submission"
	"github.com/dshills/flowmod/pkg/domain/types"
	"github.com/spf13/cobra"
)

func newHistoryCommand(cfg *Config) *cobra.Command {
	var (
		instance string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List submitted modification requests",
		Long: `List submitted modification requests, newest first.

Examples:
  flowmod history
  flowmod history --instance 2251799813685249
  flowmod history show <submission-id>
  flowmod history delete <submission-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			var subs []*submission.Submission
			if instance != "" {
				subs, err = repo.ListByInstance(types.InstanceID(instance))
			} else {
				subs, err = repo.List(limit)
			}
			if err != nil {
				return fmt.Errorf("failed to list submissions: %w", err)
			}
			if limit > 0 && len(subs) > limit {
				subs = subs[:limit]
			}

			printHistory(cmd.OutOrStdout(), subs)
			return nil
		},
	}

	cmd.Flags().StringVar(&instance, "instance", "", "Only show submissions for this process instance")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of submissions to display")

	cmd.AddCommand(newHistoryShowCommand(cfg))
	cmd.AddCommand(newHistoryDeleteCommand(cfg))

	return cmd
}

func newHistoryShowCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <submission-id>",
		Short: "Print a submitted request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			sub, err := repo.Load(types.SubmissionID(args[0]))
			if err != nil {
				return err
			}

			var body any
			if err := json.Unmarshal(sub.Payload, &body); err != nil {
				return fmt.Errorf("stored payload is not valid JSON: %w", err)
			}
			data, err := json.MarshalIndent(body, "", "  ")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Submission %s\n", sub.ID)
			_, _ = fmt.Fprintf(out, "  Instance:  %s\n", sub.InstanceID)
			if sub.ProcessID != "" {
				_, _ = fmt.Fprintf(out, "  Process:   %s\n", sub.ProcessID)
			}
			_, _ = fmt.Fprintf(out, "  Submitted: %s\n", sub.SubmittedAt.Format("2006-01-02 15:04:05 MST"))
			_, _ = fmt.Fprintln(out, string(data))
			return nil
		},
	}
}

func newHistoryDeleteCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <submission-id>",
		Short: "Remove a submission from the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			if err := repo.Delete(types.SubmissionID(args[0])); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func printHistory(out io.Writer, subs []*submission.Submission) {
	if len(subs) == 0 {
		_, _ = fmt.Fprintln(out, "No submissions found.")
		return
	}

	_, _ = fmt.Fprintf(out, "%-36s  %-20s  %-19s  %s\n", "ID", "INSTANCE", "SUBMITTED", "INSTRUCTIONS")
	for _, s := range subs {
		_, _ = fmt.Fprintf(out, "%-36s  %-20s  %-19s  %d (%s)\n",
			s.ID, s.InstanceID, s.SubmittedAt.Local().Format("2006-01-02 15:04:05"),
			s.InstructionCount, formatSummary(s.Summary))
	}
}

// formatSummary renders per operation counts in a stable order.
func formatSummary(summary map[string]int) string {
	ops := make([]string, 0, len(summary))
	for op := range summary {
		ops = append(ops, op)
	}
	slices.Sort(ops)

	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, fmt.Sprintf("%s=%d", op, summary[op]))
	}
	return strings.Join(parts, " ")
}
