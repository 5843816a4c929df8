package cli

import (
	"fmt"

	"github.com/dshills/flowmod/pkg/diagram"
	"github.com/dshills/flowmod/pkg/storage"
	"github.com/spf13/cobra"
)

func newDiagramCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Manage imported process diagrams",
		Long: `Import process diagram metadata so scripts can refer to a diagram by its
process id. YAML diagrams and engine node metadata (.json) are accepted.`,
	}

	cmd.AddCommand(newDiagramImportCommand(cfg))
	cmd.AddCommand(newDiagramListCommand(cfg))
	cmd.AddCommand(newDiagramShowCommand(cfg))

	return cmd
}

func newDiagramImportCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a diagram file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := diagram.LoadFile(args[0])
			if err != nil {
				return err
			}
			if err := d.Validate(); err != nil {
				return fmt.Errorf("invalid diagram: %w", err)
			}

			repo, err := storage.NewFilesystemDiagramRepository(cfg.DiagramDir)
			if err != nil {
				return err
			}
			if err := repo.Save(d); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%d flow nodes)\n", d.ProcessID, d.Len())
			return nil
		},
	}
}

func newDiagramListCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List imported diagrams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := storage.NewFilesystemDiagramRepository(cfg.DiagramDir)
			if err != nil {
				return err
			}
			ids, err := repo.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				_, _ = fmt.Fprintln(out, "No diagrams imported.")
				return nil
			}
			for _, id := range ids {
				_, _ = fmt.Fprintln(out, id)
			}
			return nil
		},
	}
}

func newDiagramShowCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <process-id>",
		Short: "Show the flow nodes of an imported diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDiagram(cfg, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s (%s)\n", d.ProcessID, d.Name)
			for _, n := range d.FlowNodes() {
				marker := ""
				if n.MultiInstance {
					marker = " [multi-instance]"
				}
				_, _ = fmt.Fprintf(out, "  %-20s %-24s %s%s\n", n.ID, n.Name, n.Type, marker)
			}
			return nil
		},
	}
}
