package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dshills/flowmod/pkg/diagram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDiagram(t *testing.T, processID string) *diagram.Diagram {
	t.Helper()
	d := diagram.New(processID, "Order process")
	require.NoError(t, d.AddFlowNode(diagram.FlowNode{ID: "checkPayment", Name: "Check payment", Type: "serviceTask"}))
	require.NoError(t, d.AddFlowNode(diagram.FlowNode{ID: "shipItems", Type: "subProcess", MultiInstance: true}))
	return d
}

func TestFilesystemDiagramRepository(t *testing.T) {
	repo, err := NewFilesystemDiagramRepository(filepath.Join(t.TempDir(), "diagrams"))
	require.NoError(t, err)

	require.NoError(t, repo.Save(testDiagram(t, "order-process")))
	require.NoError(t, repo.Save(testDiagram(t, "billing")))

	ids, err := repo.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "order-process"}, ids)

	loaded, err := repo.Load("order-process")
	require.NoError(t, err)
	assert.Equal(t, "Check payment", loaded.FlowNodeName("checkPayment"))
	assert.True(t, loaded.IsMultiInstance("shipItems"))

	require.NoError(t, repo.Delete("billing"))
	_, err = repo.Load("billing")
	assert.True(t, errors.Is(err, ErrDiagramNotFound))
	assert.True(t, errors.Is(repo.Delete("billing"), ErrDiagramNotFound))
}

func TestFilesystemDiagramRepository_RejectsUnsafeIDs(t *testing.T) {
	repo, err := NewFilesystemDiagramRepository(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "../etc", "a/b", "x..y"} {
		_, err := repo.Load(id)
		assert.Error(t, err, "id %q", id)
	}
	assert.Error(t, repo.Save(nil))
}

func TestNewFilesystemDiagramRepository_EmptyDir(t *testing.T) {
	_, err := NewFilesystemDiagramRepository("")
	assert.Error(t, err)
}

func TestFilesystemDiagramRepository_Path(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFilesystemDiagramRepository(dir)
	require.NoError(t, err)
	require.NoError(t, repo.Save(testDiagram(t, "order-process")))

	path, err := repo.Path("order-process")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "order-process.yaml"), path)

	_, err = repo.Path("missing")
	assert.ErrorIs(t, err, ErrDiagramNotFound)
}
