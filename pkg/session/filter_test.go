package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replayed(t *testing.T) *Session {
	t.Helper()
	s := newTestSession(t, nil)
	script, err := ParseScript([]byte(moveScript))
	require.NoError(t, err)
	require.NoError(t, s.Replay(script))
	return s
}

func TestFilter(t *testing.T) {
	s := replayed(t)

	tests := []struct {
		expression string
		want       []string
	}{
		{`operation == "MOVE_TOKEN"`, []string{"ship"}},
		{`count > 2`, []string{"approve"}},
		{`target == "notify" || scope != ""`, []string{"ship", "notify"}},
		{`flowNodeName startsWith "Approve"`, []string{"approve"}},
		{`false`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.expression, func(t *testing.T) {
			matched, err := Filter(s.Log(), tt.expression)
			require.NoError(t, err)

			var ids []string
			for _, m := range matched {
				ids = append(ids, string(m.FlowNode.ID))
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestFilter_InvalidExpression(t *testing.T) {
	s := replayed(t)

	_, err := Filter(s.Log(), `count +`)
	assert.Error(t, err)

	_, err = Filter(s.Log(), `count`)
	assert.Error(t, err, "non-boolean expressions are rejected")

	_, err = Filter(s.Log(), `unknownField == 1`)
	assert.Error(t, err)
}

func TestFilter_Unsafe(t *testing.T) {
	s := replayed(t)

	for _, expression := range []string{`os.Getenv("HOME") != ""`, `flowNode == "__proto__"`, `  `} {
		_, err := Filter(s.Log(), expression)
		assert.Error(t, err, expression)
	}

	_, err := Filter(s.Log(), `OS.Exit(1)`)
	assert.ErrorIs(t, err, ErrUnsafeFilter)
}
