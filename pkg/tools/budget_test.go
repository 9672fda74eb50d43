package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsy-labs/deepresearch/pkg/toolerrors"
)

func TestBudget_CallLimitReached(t *testing.T) {
	b := NewBudget(map[string]int{"web_search": 2}, 0)

	require.Nil(t, b.Check("web_search"))
	b.RecordCall("web_search")
	require.Nil(t, b.Check("web_search"))
	b.RecordCall("web_search")

	tErr := b.Check("web_search")
	require.NotNil(t, tErr)
	assert.Equal(t, toolerrors.ToolCallLimitReached, tErr.ErrorCode)
}

func TestBudget_UnlimitedToolNeverBlocked(t *testing.T) {
	b := NewBudget(nil, 0)
	for i := 0; i < 50; i++ {
		require.Nil(t, b.Check("file"))
		b.RecordCall("file")
	}
}

func TestBudget_ConsecutiveFailureCutoff(t *testing.T) {
	b := NewBudget(nil, 2)

	b.RecordCall("code_interpreter")
	b.RecordFailure("code_interpreter")
	assert.Nil(t, b.Check("code_interpreter"))

	b.RecordCall("code_interpreter")
	b.RecordFailure("code_interpreter")

	tErr := b.Check("code_interpreter")
	require.NotNil(t, tErr)
	assert.Equal(t, toolerrors.ToolCallLimitReached, tErr.ErrorCode)
}

func TestBudget_SuccessResetsFailureStreak(t *testing.T) {
	b := NewBudget(nil, 2)

	b.RecordCall("code_interpreter")
	b.RecordFailure("code_interpreter")
	b.RecordCall("code_interpreter")
	b.RecordSuccess("code_interpreter")

	assert.Nil(t, b.Check("code_interpreter"))
}

func TestDefaultSubAgentLimits(t *testing.T) {
	limits := DefaultSubAgentLimits(20, 15, 5, 5)
	assert.Equal(t, 20, limits[ToolWebSearch])
	assert.Equal(t, 15, limits[ToolFile])
	assert.Equal(t, 5, limits[ToolCodeInterpreter])
	assert.Equal(t, 5, limits[ToolViewImage])
}
