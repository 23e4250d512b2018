package tally

import (
	"context"

	"github.com/agentstation/tally/pkg/errors"
)

// Reset asks the backend to drop every record. Only an {"ok": true} answer
// empties the list and the slot; rejections and transport failures are
// returned and leave both untouched.
func (c *client) Reset(ctx context.Context) (ResetResult, error) {
	if c.options.backend == nil {
		return ResetResult{}, errors.NewConfigError("backend", "no backend configured", nil)
	}

	result, err := c.options.backend.Reset(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Str("error_message", result.Error).Msg("Reset failed")
		return result, err
	}

	if err := c.mutate(ctx, "reset", func() { c.clear(ctx) }); err != nil {
		return result, err
	}
	c.logger.Info().Msg("Records reset")
	return result, nil
}
