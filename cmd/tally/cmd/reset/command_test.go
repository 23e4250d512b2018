package reset

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally/internal/appcontext"
	"github.com/agentstation/tally/internal/cmd/cmdutil"
	"github.com/agentstation/tally/pkg/backend"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/records"
	"github.com/agentstation/tally/pkg/store"
)

func seeded(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(store.NewMemoryBackend())
	r := records.New("Ana", "123", time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), nil)
	require.NoError(t, st.Save(context.Background(), records.List{r}))
	return st
}

func TestResetClearsSlot(t *testing.T) {
	ctx := context.Background()
	st := seeded(t)
	calls := 0
	app := &appcontext.Mock{
		StoreFunc: appcontext.WithStore(st),
		BackendFunc: appcontext.WithBackend(&appcontext.BackendStub{
			ResetFunc: func(context.Context) (backend.ResetResult, error) {
				calls++
				return backend.ResetResult{OK: true}, nil
			},
		}),
	}

	var buf bytes.Buffer
	require.NoError(t, run(ctx, app, &buf, false))
	assert.Equal(t, 1, calls)
	assert.Empty(t, st.Load(ctx))
	assert.Contains(t, buf.String(), "All records were reset")
}

func TestResetRejectedKeepsSlot(t *testing.T) {
	ctx := context.Background()
	st := seeded(t)
	app := &appcontext.Mock{
		StoreFunc: appcontext.WithStore(st),
		BackendFunc: appcontext.WithBackend(&appcontext.BackendStub{
			ResetFunc: func(context.Context) (backend.ResetResult, error) {
				return backend.ResetResult{Error: "locked"}, errors.NewBackendError("reset", "locked")
			},
		}),
	}

	var buf bytes.Buffer
	err := run(ctx, app, &buf, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cmdutil.ErrReported))
	assert.True(t, errors.IsResetRejected(err))
	assert.Len(t, st.Load(ctx), 1)
	assert.Contains(t, buf.String(), "Reset failed")
	assert.Contains(t, buf.String(), "refused")
}

func TestResetLocalOnly(t *testing.T) {
	ctx := context.Background()
	st := seeded(t)
	app := &appcontext.Mock{StoreFunc: appcontext.WithStore(st)}

	var buf bytes.Buffer
	require.NoError(t, run(ctx, app, &buf, true))
	assert.Empty(t, st.Load(ctx))
	assert.Contains(t, buf.String(), "Local records cleared")
}

func TestResetWithoutBackend(t *testing.T) {
	ctx := context.Background()
	st := seeded(t)
	app := &appcontext.Mock{StoreFunc: appcontext.WithStore(st)}

	err := run(ctx, app, &bytes.Buffer{}, false)
	require.Error(t, err)
	assert.Len(t, st.Load(ctx), 1)
}
