package submit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/tally/internal/appcontext"
	"github.com/agentstation/tally/pkg/errors"
	"github.com/agentstation/tally/pkg/records"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestPayloadFromFlags(t *testing.T) {
	f := &Flags{Name: "Ana", ProcessNumber: "0001234-56.2025", Value: "R$ 1.500,00"}

	p, err := f.Payload(nil, now)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p["nome"])
	assert.Equal(t, "0001234-56.2025", p["numero"])
	assert.Equal(t, "2025-03-10T12:00:00.000Z", p["timestamp"])
	assert.InDelta(t, 1500.0, p["valor"], 0.001)

	r := records.Normalize(p)
	assert.Equal(t, "Ana", r.Name)
	require.NotNil(t, r.Value)
	assert.InDelta(t, 1500.0, *r.Value, 0.001)
}

func TestPayloadValidation(t *testing.T) {
	_, err := (&Flags{}).Payload(nil, now)
	assert.True(t, errors.IsValidationError(err))

	_, err = (&Flags{Name: "Ana", Value: "abc"}).Payload(nil, now)
	assert.True(t, errors.IsValidationError(err))
}

func TestPayloadFromStdin(t *testing.T) {
	f := &Flags{File: "-"}
	p, err := f.Payload(strings.NewReader(`{"Nome": "Ana", "Número do processo": "123"}`), now)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p["Nome"])

	_, err = f.Payload(strings.NewReader(`[1, 2]`), now)
	assert.Error(t, err)

	_, err = f.Payload(strings.NewReader(`null`), now)
	assert.True(t, errors.IsValidationError(err))
}

func TestPayloadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name": "Bia"}`), 0o600))

	p, err := (&Flags{File: path}).Payload(nil, now)
	require.NoError(t, err)
	assert.Equal(t, "Bia", p["name"])

	_, err = (&Flags{File: filepath.Join(t.TempDir(), "missing.json")}).Payload(nil, now)
	assert.Error(t, err)
}

func TestSubmitPostsPayload(t *testing.T) {
	var got records.Payload
	app := &appcontext.Mock{
		BackendFunc: appcontext.WithBackend(&appcontext.BackendStub{
			SubmitFunc: func(_ context.Context, p records.Payload) error {
				got = p
				return nil
			},
		}),
	}

	var buf bytes.Buffer
	payload := records.Payload{"nome": "Ana", "numero": "123"}
	require.NoError(t, run(context.Background(), app, &buf, payload))
	assert.Equal(t, payload, got)
	assert.Contains(t, buf.String(), "Record submitted")
	assert.Contains(t, buf.String(), "Ana 123")
}

func TestSubmitFailure(t *testing.T) {
	app := &appcontext.Mock{
		BackendFunc: appcontext.WithBackend(&appcontext.BackendStub{
			SubmitFunc: func(context.Context, records.Payload) error {
				return errors.NewAPIError("/webhook/form", 500, "boom")
			},
		}),
	}

	var buf bytes.Buffer
	err := run(context.Background(), app, &buf, records.Payload{"nome": "Ana"})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "Submit failed")
}
