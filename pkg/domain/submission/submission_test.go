package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s, err := New("42", "order-process", "req-1", map[string]int{"ADD_TOKEN": 2, "EDIT_VARIABLE": 1}, []byte(`{}`))
	require.NoError(t, err)

	assert.False(t, s.ID.IsZero())
	assert.Equal(t, 3, s.InstructionCount)
	assert.False(t, s.SubmittedAt.IsZero())
}

func TestNew_Errors(t *testing.T) {
	_, err := New("", "p", "r", nil, []byte(`{}`))
	assert.Error(t, err)

	_, err = New("42", "p", "r", nil, nil)
	assert.Error(t, err)
}
