package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/dshills/flowmod/pkg/domain/types"
	"github.com/dshills/flowmod/pkg/modification"
	"github.com/dshills/flowmod/pkg/session"
	"github.com/spf13/cobra"
)

type planFlags struct {
	stageFlags
	Filter string
	JSON   bool
	Trace  bool
	Watch  bool
}

func newPlanCommand(cfg *Config) *cobra.Command {
	flags := &planFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Replay an action script and show the staged modifications",
		Long: `Replay an action script into a fresh editing session and show what it stages:
per flow node token counts, variable edits and the modification request that
would be submitted. Nothing is recorded.

Examples:
  # Show the plan for a script against a diagram file
  flowmod plan --script edits.yaml --diagram order.yaml

  # Print the request body only
  flowmod plan --script edits.yaml --json

  # Show only moves affecting more than one token
  flowmod plan --script edits.yaml --filter 'operation == "MOVE_TOKEN" && count > 1'

  # Print every change event emitted while replaying
  flowmod plan --script edits.yaml --trace

  # Re-plan whenever the script or diagram file is saved
  flowmod plan --script edits.yaml --diagram order.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, cfg, flags)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.Filter, "filter", "", "Only list token modifications matching this expression")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "Print the modification request as JSON")
	cmd.Flags().BoolVar(&flags.Trace, "trace", false, "Print change events emitted during replay")
	cmd.Flags().BoolVarP(&flags.Watch, "watch", "w", false, "Re-plan when the script or its diagram file (given or imported) changes")

	return cmd
}

func runPlan(cmd *cobra.Command, cfg *Config, flags *planFlags) error {
	if !flags.Watch {
		return planOnce(cmd.OutOrStdout(), cfg, flags)
	}

	fw, err := newFileWatcher(watchedFiles(cfg, &flags.stageFlags)...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	replan := func() {
		if err := planOnce(cmd.OutOrStdout(), cfg, flags); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "\nWatching for changes... (Press Ctrl+C to exit)")
	}
	replan()
	return fw.run(ctx, watchDebounce, replan)
}

func planOnce(out io.Writer, cfg *Config, flags *planFlags) error {
	var tracer *eventTracer
	var before func(*session.Session, *session.Script)
	if flags.Trace {
		tracer = &eventTracer{}
		before = tracer.attach
	}

	st, err := stage(cfg, &flags.stageFlags, nil, before)
	if tracer != nil && st != nil {
		tracer.detach(st.session)
		tracer.print(out)
	}
	if err != nil {
		return err
	}

	if flags.JSON {
		req, err := st.session.Preview()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(req, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(data))
		return nil
	}

	if flags.Filter != "" {
		matched, err := session.Filter(st.session.Log(), flags.Filter)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "%d token modification(s) match %q\n", len(matched), flags.Filter)
		for _, m := range matched {
			printFlowNodeModification(out, m)
		}
		return nil
	}

	printPlan(out, st.session)
	return nil
}

func printPlan(out io.Writer, sess *session.Session) {
	log := sess.Log()

	_, _ = fmt.Fprintf(out, "Instance: %s\n", sess.InstanceID())
	_, _ = fmt.Fprintf(out, "Status: %s\n", log.Status())
	_, _ = fmt.Fprintf(out, "Staged: %d modification(s)\n", log.Len())

	counts := log.ModificationsByFlowNode()
	if len(counts) > 0 {
		ids := make([]types.FlowNodeID, 0, len(counts))
		for id := range counts {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		_, _ = fmt.Fprintln(out, "\nFlow nodes:")
		for _, id := range ids {
			ref := sess.FlowNodeRef(id)
			c := counts[id]
			_, _ = fmt.Fprintf(out, "  %-20s %-24s +%d -%d\n", ref.ID, ref.Name, c.NewTokens, c.CancelledTokens)
		}
	}

	vars := log.VariableModifications()
	if len(vars) > 0 {
		_, _ = fmt.Fprintln(out, "\nVariables:")
		for _, v := range vars {
			_, _ = fmt.Fprintf(out, "  %-13s %s = %s (scope %s)\n", v.Operation, v.Name, v.NewValue, v.ScopeID)
		}
	}

	req, err := sess.Preview()
	switch {
	case err == nil:
		_, _ = fmt.Fprintf(out, "\nRequest: %d instruction(s)\n", len(req.Modifications))
	case log.Len() > 0:
		_, _ = fmt.Fprintf(out, "\nRequest: invalid: %v\n", err)
	}
}

func printFlowNodeModification(out io.Writer, m modification.FlowNodeModification) {
	switch m.Operation {
	case modification.OperationMoveToken:
		_, _ = fmt.Fprintf(out, "  %-12s %s -> %s (%d)\n", m.Operation, m.FlowNode.ID, m.TargetFlowNode.ID, m.AffectedTokenCount)
	case modification.OperationAddToken:
		_, _ = fmt.Fprintf(out, "  %-12s %s in scope %s (%d)\n", m.Operation, m.FlowNode.ID, m.ScopeID, m.AffectedTokenCount)
	default:
		_, _ = fmt.Fprintf(out, "  %-12s %s (%d)\n", m.Operation, m.FlowNode.ID, m.AffectedTokenCount)
	}
}

// eventTracer collects change events while a script is replayed.
type eventTracer struct {
	ch     <-chan modification.ChangeEvent
	wg     sync.WaitGroup
	events []modification.ChangeEvent
}

// attach subscribes with room for every event the script can emit, so none
// are dropped while the replay outpaces the collector.
func (t *eventTracer) attach(sess *session.Session, script *session.Script) {
	t.ch = sess.Log().SubscribeBuffered(len(script.Actions)*2 + 1)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for ev := range t.ch {
			t.events = append(t.events, ev)
		}
	}()
}

func (t *eventTracer) detach(sess *session.Session) {
	if t.ch == nil {
		return
	}
	sess.Log().Unsubscribe(t.ch)
	t.wg.Wait()
}

func (t *eventTracer) print(out io.Writer) {
	for _, ev := range t.events {
		line := fmt.Sprintf("[%s] %-21s status=%s entries=%d", ev.Timestamp.Format("15:04:05.000"), ev.Type, ev.Status, ev.Count)
		if ev.Modification != nil {
			line += fmt.Sprintf(" op=%s", ev.Modification.Op())
		}
		if ev.Removed > 0 {
			line += fmt.Sprintf(" removed=%d", ev.Removed)
		}
		_, _ = fmt.Fprintln(out, line)
	}
}
