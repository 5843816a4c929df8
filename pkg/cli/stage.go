package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dshills/flowmod/pkg/diagram"
	"github.com/dshills/flowmod/pkg/domain/types"
	"github.com/dshills/flowmod/pkg/session"
	"github.com/dshills/flowmod/pkg/storage"
	"github.com/spf13/cobra"
)

// stageFlags are shared by the commands that replay a script into a session.
type stageFlags struct {
	Script    string
	Instance  string
	Diagram   string
	MoveCount int
	Strict    bool
}

func (f *stageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Script, "script", "s", "", "Action script to replay (YAML)")
	cmd.Flags().StringVar(&f.Instance, "instance", "", "Process instance key (overrides the script)")
	cmd.Flags().StringVarP(&f.Diagram, "diagram", "d", "", "Diagram file or imported process id")
	cmd.Flags().IntVar(&f.MoveCount, "move-count", 0, "Tokens affected by each move (default 2)")
	cmd.Flags().BoolVar(&f.Strict, "strict", false, "Require variable scopes to be element instance keys")
	_ = cmd.MarkFlagRequired("script")
}

// staged is the result of replaying a script.
type staged struct {
	session *session.Session
	script  *session.Script
	diagram *diagram.Diagram
}

// stage loads the script and diagram, builds a session and replays the
// script into it. Replay errors are returned after the session is built
// so callers can still report partial state.
func stage(cfg *Config, flags *stageFlags, recorder session.Recorder, beforeReplay func(*session.Session, *session.Script)) (*staged, error) {
	script, err := session.LoadScript(flags.Script)
	if err != nil {
		return nil, err
	}
	if err := script.Validate(); err != nil {
		return nil, fmt.Errorf("invalid script %s: %w", flags.Script, err)
	}

	instance := flags.Instance
	if instance == "" {
		instance = script.Instance
	}
	if instance == "" {
		return nil, errors.New("no process instance: set --instance or 'instance' in the script")
	}

	diagramRef := flags.Diagram
	if diagramRef == "" {
		diagramRef = script.Process
	}
	d, err := loadDiagram(cfg, diagramRef)
	if err != nil {
		return nil, err
	}

	sc := session.Config{
		InstanceID:      types.InstanceID(instance),
		ProcessID:       script.Process,
		Recorder:        recorder,
		Logger:          slog.Default(),
		MoveTokenCount:  flags.MoveCount,
		StrictScopeKeys: flags.Strict,
	}
	if d != nil {
		sc.Diagram = d
		sc.ProcessID = d.ProcessID
	}

	sess, err := session.New(sc)
	if err != nil {
		return nil, err
	}
	if beforeReplay != nil {
		beforeReplay(sess, script)
	}

	result := &staged{session: sess, script: script, diagram: d}
	if err := sess.Replay(script); err != nil {
		return result, fmt.Errorf("failed to replay %s: %w", flags.Script, err)
	}
	return result, nil
}

// loadDiagram resolves ref as a diagram file first, then as the process id
// of an imported diagram. An empty ref means no diagram.
func loadDiagram(cfg *Config, ref string) (*diagram.Diagram, error) {
	path, err := diagramFile(cfg, ref)
	if err != nil || path == "" {
		return nil, err
	}
	return diagram.LoadFile(path)
}

// diagramFile returns the file ref resolves to, following the same order
// as loadDiagram. An empty ref resolves to no file.
func diagramFile(cfg *Config, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}

	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, nil
	}

	repo, err := storage.NewFilesystemDiagramRepository(cfg.DiagramDir)
	if err != nil {
		return "", err
	}
	path, err := repo.Path(ref)
	if err != nil {
		return "", fmt.Errorf("failed to load diagram %q: %w", ref, err)
	}
	return path, nil
}

// watchedFiles lists the script and the diagram file it resolves to, from
// --diagram or the script's process key. A script that cannot be read yet
// is still watched on its own.
func watchedFiles(cfg *Config, flags *stageFlags) []string {
	paths := []string{flags.Script}

	ref := flags.Diagram
	if ref == "" {
		if script, err := session.LoadScript(flags.Script); err == nil {
			ref = script.Process
		}
	}
	if path, err := diagramFile(cfg, ref); err == nil && path != "" {
		paths = append(paths, path)
	}
	return paths
}

// openHistory opens the submission history database.
func openHistory(cfg *Config) (*storage.SQLiteSubmissionRepository, error) {
	repo, err := storage.NewSQLiteSubmissionRepository(cfg.DatabasePath, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to open submission history: %w", err)
	}
	return repo, nil
}
