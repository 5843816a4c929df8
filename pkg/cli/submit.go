package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type submitFlags struct {
	stageFlags
	JSON bool
}

func newSubmitCommand(cfg *Config) *cobra.Command {
	flags := &submitFlags{}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Replay an action script and record the resulting request",
		Long: `Replay an action script, validate the modification request it produces and
record it in the submission history. The script must leave modification
mode enabled with at least one staged modification.

Examples:
  flowmod submit --script edits.yaml --diagram order-process
  flowmod submit --script edits.yaml --instance 2251799813685249 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, cfg, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Print the submitted request body")

	return cmd
}

func runSubmit(cmd *cobra.Command, cfg *Config, flags *submitFlags) error {
	repo, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	st, err := stage(cfg, &flags.stageFlags, repo, nil)
	if err != nil {
		return err
	}

	sub, err := st.session.Submit()
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if flags.JSON {
		_, _ = fmt.Fprintln(out, string(sub.Payload))
		return nil
	}

	_, _ = fmt.Fprintf(out, "Submitted %s\n", sub.ID)
	_, _ = fmt.Fprintf(out, "  Instance:     %s\n", sub.InstanceID)
	_, _ = fmt.Fprintf(out, "  Request:      %s\n", sub.RequestID)
	_, _ = fmt.Fprintf(out, "  Instructions: %d (%s)\n", sub.InstructionCount, formatSummary(sub.Summary))
	return nil
}
