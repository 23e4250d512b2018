package list

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally/internal/appcontext"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/records"
	"github.com/agentstation/tally/pkg/store"
)

func seeded(t *testing.T, n int) *store.Store {
	t.Helper()
	st := store.New(store.NewMemoryBackend())
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	list := make(records.List, 0, n)
	for i := range n {
		v := float64(1000 * (i + 1))
		list = append(list, records.New("Ana", "proc-"+string(rune('a'+i)), base.Add(-time.Duration(i)*time.Minute), &v))
	}
	require.NoError(t, st.Save(context.Background(), list))
	return st
}

func TestListJSON(t *testing.T) {
	app := &appcontext.Mock{
		StoreFunc:  appcontext.WithStore(seeded(t, 3)),
		FormatFunc: func() string { return "json" },
	}

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), app, &buf, nil, 0))

	var got records.List
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Len(t, got, 3)
	assert.Equal(t, "proc-a", got[0].ProcessNumber)
}

func TestListLimit(t *testing.T) {
	app := &appcontext.Mock{StoreFunc: appcontext.WithStore(seeded(t, 4))}

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), app, &buf, nil, 2))

	out := buf.String()
	assert.Contains(t, out, "proc-a")
	assert.Contains(t, out, "proc-b")
	assert.NotContains(t, out, "proc-c")
	assert.Contains(t, out, "showing 2 of 4 records")
}

func TestListEmpty(t *testing.T) {
	app := &appcontext.Mock{}

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), app, &buf, nil, 0))
	assert.Contains(t, buf.String(), "No records")
}

func TestListFiltered(t *testing.T) {
	app := &appcontext.Mock{StoreFunc: appcontext.WithStore(seeded(t, 4))}

	f, err := (&Flags{Process: "proc-c"}).Filter(time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), app, &buf, f, 0))
	assert.Contains(t, buf.String(), "proc-c")
	assert.NotContains(t, buf.String(), "proc-a")
}

func TestFlagsFilter(t *testing.T) {
	_, err := (&Flags{Since: "last week"}).Filter(time.Now())
	assert.True(t, errors.IsValidationError(err))

	_, err = (&Flags{MinValue: -1}).Filter(time.Now())
	assert.True(t, errors.IsValidationError(err))

	f, err := (&Flags{Since: "1h", Search: "ana"}).Filter(time.Now())
	require.NoError(t, err)
	assert.False(t, f.Since.IsZero())
	assert.Equal(t, "ana", f.Search)
}

func TestListCommandFlags(t *testing.T) {
	cmd := NewCommand(&appcontext.Mock{})
	assert.Equal(t, "list", cmd.Name())
	for _, name := range []string{"limit", "name", "process", "since", "min-value", "search"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Contains(t, cmd.Aliases, "ls")
}
