package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/flowmod/pkg/diagram"
	"github.com/dshills/flowmod/pkg/validation"
)

// ErrDiagramNotFound is returned when no diagram is stored for a process id.
var ErrDiagramNotFound = errors.New("diagram not found")

// FilesystemDiagramRepository stores diagrams as YAML files named after their process id.
type FilesystemDiagramRepository struct {
	baseDir string
}

// NewFilesystemDiagramRepository creates a repository rooted at baseDir, creating it if needed.
func NewFilesystemDiagramRepository(baseDir string) (*FilesystemDiagramRepository, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("diagram directory cannot be empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create diagrams directory: %w", err)
	}
	return &FilesystemDiagramRepository{baseDir: baseDir}, nil
}

// Save writes d to disk, replacing any diagram with the same process id.
func (r *FilesystemDiagramRepository) Save(d *diagram.Diagram) error {
	if d == nil {
		return fmt.Errorf("cannot save nil diagram")
	}

	filePath, err := r.diagramPath(d.ProcessID)
	if err != nil {
		return err
	}

	data, err := diagram.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal diagram to YAML: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial file
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write diagram file: %w", err)
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to save diagram file: %w", err)
	}

	return nil
}

// Load reads the diagram stored for processID.
func (r *FilesystemDiagramRepository) Load(processID string) (*diagram.Diagram, error) {
	filePath, err := r.diagramPath(processID)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrDiagramNotFound, processID)
	}

	return diagram.LoadFile(filePath)
}

// Delete removes the diagram stored for processID.
func (r *FilesystemDiagramRepository) Delete(processID string) error {
	filePath, err := r.diagramPath(processID)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrDiagramNotFound, processID)
		}
		return fmt.Errorf("failed to delete diagram file: %w", err)
	}
	return nil
}

// List returns the process ids of all stored diagrams, sorted.
func (r *FilesystemDiagramRepository) List() ([]string, error) {
	entries, err := os.ReadDir(r.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read diagrams directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".yaml"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Path returns the file an existing diagram for processID is stored in.
func (r *FilesystemDiagramRepository) Path(processID string) (string, error) {
	filePath, err := r.diagramPath(processID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", ErrDiagramNotFound, processID)
	}
	return filePath, nil
}

// diagramPath maps a process id to its file, rejecting ids that could escape baseDir.
func (r *FilesystemDiagramRepository) diagramPath(processID string) (string, error) {
	if err := validation.ValidateFlowNodeID(processID); err != nil {
		return "", fmt.Errorf("invalid process id: %w", err)
	}
	if strings.Contains(processID, "..") {
		return "", fmt.Errorf("invalid process id: %q", processID)
	}
	return filepath.Join(r.baseDir, processID+".yaml"), nil
}
