package cmdutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally/internal/cmd/alerts"
	"github.com/agentstation/tally/pkg/errors"
)

func TestReported(t *testing.T) {
	assert.NoError(t, Reported(nil))

	base := errors.NewBackendError("reset", "sheet locked")
	err := Reported(base)
	assert.ErrorIs(t, err, ErrReported)
	assert.ErrorIs(t, err, errors.ErrResetRejected)
	assert.Equal(t, base.Error(), err.Error())
}

func TestFail(t *testing.T) {
	var buf bytes.Buffer
	err := Fail(&buf, "table", alerts.NewError("Reset failed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReported)
	assert.Equal(t, "✗ Reset failed\n", buf.String())
}
